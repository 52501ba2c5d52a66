// Package service contains the application services: the aggregation and
// scoring cores, query parsing, feature extraction, and search orchestration.
package service

import (
	"fmt"
	"math"
	"time"

	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/models"
)

const (
	// defaultExtractionConfidence stands in when a model returned no
	// confidence for an extraction.
	defaultExtractionConfidence = 0.6

	// defaultRatingWeight stands in when the source review has no star rating.
	defaultRatingWeight = 0.6

	// minRecencyWeight floors the exponential decay so old reviews never
	// vanish from the aggregate entirely.
	minRecencyWeight = 0.35

	// recencyDecayMonths is the e-folding time of the recency weight.
	recencyDecayMonths = 6

	// minRatingWeight floors the star-rating weight (a 1-star review still
	// carries signal about the place).
	minRatingWeight = 0.3

	// coverageSaturation is the average per-feature contribution count at
	// which the coverage term of the confidence score saturates. Hand-picked,
	// deliberately not derived from the feature count.
	coverageSaturation = 3

	// noSignalConfidence is returned when extractions exist but none produced
	// a usable confidence sample. Distinct from the nil confidence of an
	// empty input.
	noSignalConfidence = 0.4

	daysPerMonth = 30
)

// AggregationService blends per-review feature extractions into one
// aggregated feature vector per restaurant. It performs no I/O; persistence
// and pipeline chaining belong to the calling worker.
type AggregationService struct {
	now func() time.Time
}

// NewAggregationService creates an AggregationService using the wall clock.
func NewAggregationService() *AggregationService {
	return &AggregationService{now: time.Now}
}

// Aggregate computes the weighted per-feature averages, overall confidence,
// and model version for one restaurant's extractions. Calling it twice with
// the same input yields identical output.
func (s *AggregationService) Aggregate(extractions []models.FeatureExtraction) models.AggregatedFeatures {
	if len(extractions) == 0 {
		return models.AggregatedFeatures{Values: map[features.Name]float64{}}
	}

	now := s.now()
	values := make(map[features.Name]float64, len(features.All))

	var (
		totalContributions int
		confidenceSum      float64
		confidenceCount    int
	)

	for _, name := range features.All {
		var weightedSum, totalWeight float64

		for i := range extractions {
			extraction := &extractions[i]

			raw, ok := extraction.Features[name]
			if !ok || math.IsNaN(raw) || math.IsInf(raw, 0) {
				continue
			}

			confidence := defaultExtractionConfidence
			if extraction.ExtractionConfidence != nil && !math.IsNaN(*extraction.ExtractionConfidence) {
				confidence = *extraction.ExtractionConfidence
			}

			weight := s.recencyWeight(extraction, now) * confidence * ratingWeight(extraction.ReviewRating)
			if weight <= 0 {
				// Defensive: the floors above should make this unreachable.
				continue
			}

			weightedSum += raw * weight
			totalWeight += weight
			totalContributions++
			confidenceSum += confidence
			confidenceCount++
		}

		if totalWeight > 0 {
			values[name] = round2(weightedSum / totalWeight)
		}
	}

	confidence := overallConfidence(totalContributions, confidenceSum, confidenceCount)

	return models.AggregatedFeatures{
		Values:              values,
		ConfidenceScore:     &confidence,
		ReviewCountAnalyzed: len(extractions),
		ModelVersion:        latestModelVersion(extractions),
	}
}

// recencyWeight decays with the extraction's age in 30-day months, floored at
// minRecencyWeight. Future timestamps clamp to "now" (age 0).
func (s *AggregationService) recencyWeight(extraction *models.FeatureExtraction, now time.Time) float64 {
	effective, ok := extraction.EffectiveTimestamp()
	if !ok {
		effective = now
	}

	ageHours := math.Max(0, now.Sub(effective).Hours())
	monthsOld := ageHours / (24 * daysPerMonth)

	return math.Max(minRecencyWeight, math.Exp(-monthsOld/recencyDecayMonths))
}

func ratingWeight(rating *int) float64 {
	if rating == nil {
		return defaultRatingWeight
	}

	return math.Max(minRatingWeight, float64(*rating)/5)
}

// overallConfidence blends average extraction confidence with feature
// coverage. Coverage saturates once features have averaged coverageSaturation
// contributing extractions each.
func overallConfidence(totalContributions int, confidenceSum float64, confidenceCount int) float64 {
	if confidenceCount == 0 {
		return noSignalConfidence
	}

	avgConfidence := confidenceSum / float64(confidenceCount)
	coverage := math.Min(1, float64(totalContributions)/float64(len(features.All)*coverageSaturation))

	score := 0.3 + 0.4*avgConfidence + 0.3*coverage

	return round2(math.Min(0.99, math.Max(0.3, score)))
}

// latestModelVersion returns "model:promptVersion" of the extraction with the
// newest timestamp (extractedAt, falling back to updatedAt, falling back to
// the epoch).
func latestModelVersion(extractions []models.FeatureExtraction) *string {
	if len(extractions) == 0 {
		return nil
	}

	latest := &extractions[0]
	latestAt := modelVersionTimestamp(latest)

	for i := 1; i < len(extractions); i++ {
		candidate := &extractions[i]
		if at := modelVersionTimestamp(candidate); at.After(latestAt) {
			latest = candidate
			latestAt = at
		}
	}

	version := fmt.Sprintf("%s:%s", latest.ModelUsed, latest.PromptVersion)

	return &version
}

func modelVersionTimestamp(e *models.FeatureExtraction) time.Time {
	switch {
	case e.ExtractedAt != nil:
		return *e.ExtractedAt
	case e.UpdatedAt != nil:
		return *e.UpdatedAt
	default:
		return time.Unix(0, 0)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
