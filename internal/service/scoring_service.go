package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/geo"
	"github.com/platewise/backend/internal/models"
)

const (
	featureBlendWeight   = 0.7
	qualityBlendWeight   = 0.2
	proximityBlendWeight = 0.1

	// neutralRating is the normalized rating prior for unrated places.
	neutralRating = 0.6

	// requiredMatchThreshold is the match below which a required feature's
	// contribution is halved.
	requiredMatchThreshold = 0.7
	requiredPenaltyFactor  = 0.5

	// confidenceMultiplierBase and Span map confidence in [0,1] onto a score
	// multiplier in [0.65, 1.0].
	confidenceMultiplierBase = 0.65
	confidenceMultiplierSpan = 0.35

	// defaultScoringConfidence stands in when a feature vector carries no
	// confidence at blend time.
	defaultScoringConfidence = 0.6

	lowConfidenceThreshold = 0.5
	minAnalyzedReviews     = 5
	staleFeaturesAfter     = 30 * 24 * time.Hour

	explanationMatchThreshold = 0.7
	explanationTopMatches     = 3
)

// warningPenalties is the score deduction per warning. The missing_features
// entry is unreachable in practice: the blend floors the score to 0 before
// penalties apply. Kept so the table stays exhaustive over the warning enum.
var warningPenalties = map[models.Warning]float64{
	models.WarningMissingFeatures:     0.15,
	models.WarningStaleFeatures:       0.07,
	models.WarningLowConfidence:       0.05,
	models.WarningInsufficientReviews: 0.05,
	models.WarningInvalidFeatureValue: 0.03,
}

// ScoringService ranks candidate restaurants against a parsed query, blending
// feature fit, rating, proximity, and data trustworthiness. Pure computation:
// no I/O, safe for concurrent use.
type ScoringService struct {
	now func() time.Time
}

// NewScoringService creates a ScoringService using the wall clock.
func NewScoringService() *ScoringService {
	return &ScoringService{now: time.Now}
}

// ScoreRestaurants scores every candidate, drops those outside radiusMiles,
// and returns the rest sorted descending by match score. Candidates with
// equal scores keep their input order. Callers must guarantee
// radiusMiles > 0.
func (s *ScoringService) ScoreRestaurants(
	candidates []models.Candidate,
	parsedQuery models.ParsedQuery,
	userLocation models.Location,
	radiusMiles float64,
) []models.ScoredRestaurant {
	scored := make([]models.ScoredRestaurant, 0, len(candidates))

	for i := range candidates {
		result := s.scoreCandidate(&candidates[i], parsedQuery, userLocation, radiusMiles)
		if result.DistanceMiles > radiusMiles {
			continue
		}

		scored = append(scored, result)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].MatchScore > scored[j].MatchScore
	})

	return scored
}

func (s *ScoringService) scoreCandidate(
	candidate *models.Candidate,
	parsedQuery models.ParsedQuery,
	userLocation models.Location,
	radiusMiles float64,
) models.ScoredRestaurant {
	restaurant := &candidate.Restaurant

	distance := geo.HaversineMiles(
		restaurant.Latitude, restaurant.Longitude,
		userLocation.Lat, userLocation.Lng,
	)

	warnings := &models.WarningSet{}
	quality := s.evaluateDataQuality(candidate.Features, warnings)
	featureScore, matches := scoreFeatures(candidate.Features, parsedQuery.Features, warnings)
	matchScore := blendScore(featureScore, restaurant.GoogleRating, distance, radiusMiles, quality.Confidence, warnings)

	quality.Warnings = warnings.Slice()

	return models.ScoredRestaurant{
		ID:             restaurant.ID,
		Name:           restaurant.Name,
		Latitude:       restaurant.Latitude,
		Longitude:      restaurant.Longitude,
		PriceLevel:     restaurant.PriceLevel,
		GoogleRating:   restaurant.GoogleRating,
		CuisineTags:    restaurant.CuisineTags,
		PhotoURLs:      restaurant.PhotoURLs,
		DistanceMiles:  distance,
		FeatureScore:   featureScore,
		MatchScore:     matchScore,
		FeatureMatches: matches,
		DataQuality:    quality,
		Explanation:    buildExplanation(restaurant.Name, matches, quality, warnings),
	}
}

// evaluateDataQuality inspects the feature vector independently of the query
// and accrues warnings for thin, stale, or low-confidence data.
func (s *ScoringService) evaluateDataQuality(fv *models.RestaurantFeatures, warnings *models.WarningSet) models.DataQuality {
	if fv == nil {
		warnings.Add(models.WarningMissingFeatures)

		return models.DataQuality{ReviewCount: 0}
	}

	quality := models.DataQuality{
		ReviewCount:   fv.ReviewCountAnalyzed,
		LastUpdatedAt: fv.UpdatedAt,
	}

	if fv.ConfidenceScore != nil {
		clamped := math.Min(1, math.Max(0, *fv.ConfidenceScore))
		quality.Confidence = &clamped
	}

	if quality.Confidence != nil && *quality.Confidence < lowConfidenceThreshold {
		warnings.Add(models.WarningLowConfidence)
	}

	if quality.ReviewCount < minAnalyzedReviews {
		warnings.Add(models.WarningInsufficientReviews)
	}

	if fv.UpdatedAt == nil || s.now().Sub(*fv.UpdatedAt) > staleFeaturesAfter {
		warnings.Add(models.WarningStaleFeatures)
	}

	return quality
}

// scoreFeatures computes the weighted feature-match score against the query.
// Features the restaurant was never assessed on are skipped, not scored;
// stored values outside [0,1] are excluded with a warning.
func scoreFeatures(
	fv *models.RestaurantFeatures,
	queryFeatures map[features.Name]models.ParsedFeature,
	warnings *models.WarningSet,
) (float64, map[features.Name]models.FeatureMatch) {
	matches := map[features.Name]models.FeatureMatch{}

	if fv == nil {
		warnings.Add(models.WarningMissingFeatures)

		return 0, matches
	}

	var weightedSum, totalWeight float64

	for name, queryFeature := range queryFeatures {
		actual, ok := fv.Values[name]
		if !ok {
			continue
		}

		if math.IsNaN(actual) || actual < 0 || actual > 1 {
			warnings.Add(models.WarningInvalidFeatureValue)

			continue
		}

		match := round2(math.Max(0, 1-math.Abs(queryFeature.Target-actual)))

		matches[name] = models.FeatureMatch{
			Target: queryFeature.Target,
			Actual: actual,
			Match:  match,
		}

		if queryFeature.Required && match < requiredMatchThreshold {
			weightedSum += match * queryFeature.Weight * requiredPenaltyFactor
		} else {
			weightedSum += match * queryFeature.Weight
		}

		totalWeight += queryFeature.Weight
	}

	if totalWeight == 0 {
		return 0, matches
	}

	return round2(weightedSum / totalWeight), matches
}

// blendScore combines feature fit, rating, and proximity, scales by
// confidence, and subtracts warning penalties. Missing features floor the
// score to 0 outright: no signal means no recommendation.
func blendScore(
	featureScore float64,
	googleRating *float64,
	distance, radiusMiles float64,
	confidence *float64,
	warnings *models.WarningSet,
) float64 {
	if warnings.Contains(models.WarningMissingFeatures) {
		return 0
	}

	normalizedRating := neutralRating
	if googleRating != nil {
		normalizedRating = math.Min(1, math.Max(0, *googleRating/5))
	}

	proximityScore := 1 - math.Min(distance/radiusMiles, 1)

	base := featureBlendWeight*featureScore +
		qualityBlendWeight*normalizedRating +
		proximityBlendWeight*proximityScore

	conf := defaultScoringConfidence
	if confidence != nil {
		conf = *confidence
	}

	multiplier := confidenceMultiplierBase + confidenceMultiplierSpan*conf

	var penalty float64
	for _, w := range warnings.Slice() {
		penalty += warningPenalties[w]
	}

	return round2(math.Min(1, math.Max(0, base*multiplier-penalty)))
}

// buildExplanation renders the human-readable justification for a result's
// placement, with a confidence caveat when data quality is thin.
func buildExplanation(
	name string,
	matches map[features.Name]models.FeatureMatch,
	quality models.DataQuality,
	warnings *models.WarningSet,
) string {
	if warnings.Contains(models.WarningMissingFeatures) {
		return fmt.Sprintf("%s has not been analyzed yet, so there is insufficient data to assess the match.", name)
	}

	top := topMatchNames(matches)

	var sentence string

	switch len(top) {
	case 0:
		sentence = fmt.Sprintf("%s is a good option in the area.", name)
	case 1:
		sentence = fmt.Sprintf("%s stands out for %s.", name, top[0])
	default:
		last := top[len(top)-1]
		sentence = fmt.Sprintf("%s matches your preferences with strong scores for %s and %s.",
			name, strings.Join(top[:len(top)-1], ", "), last)
	}

	if warnings.Contains(models.WarningLowConfidence) ||
		warnings.Contains(models.WarningInsufficientReviews) ||
		warnings.Contains(models.WarningStaleFeatures) {
		if quality.ReviewCount > 0 {
			sentence += fmt.Sprintf(" Confidence in this match is limited (based on %d analyzed reviews).", quality.ReviewCount)
		} else {
			sentence += " Confidence in this match is limited."
		}
	}

	return sentence
}

// topMatchNames returns up to explanationTopMatches display names of features
// matching at or above the threshold, strongest first. Ties break by name so
// output is deterministic.
func topMatchNames(matches map[features.Name]models.FeatureMatch) []string {
	type scoredName struct {
		name  features.Name
		match float64
	}

	qualified := make([]scoredName, 0, len(matches))

	for name, m := range matches {
		if m.Match >= explanationMatchThreshold {
			qualified = append(qualified, scoredName{name: name, match: m.Match})
		}
	}

	sort.Slice(qualified, func(i, j int) bool {
		if qualified[i].match != qualified[j].match {
			return qualified[i].match > qualified[j].match
		}

		return qualified[i].name < qualified[j].name
	})

	if len(qualified) > explanationTopMatches {
		qualified = qualified[:explanationTopMatches]
	}

	out := make([]string, len(qualified))
	for i, q := range qualified {
		out[i] = strings.ReplaceAll(string(q.name), "_", " ")
	}

	return out
}
