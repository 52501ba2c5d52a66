package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/models"
)

// ErrEmptyReviewText is returned when extraction is attempted on a review
// without text.
var ErrEmptyReviewText = errors.New("review text is required for feature extraction")

const (
	// maxReviewChars bounds the review text sent to the model.
	maxReviewChars = 4000

	// defaultExtractionResponseConfidence stands in when the model omits or
	// garbles its confidence value.
	defaultExtractionResponseConfidence = 0.6

	defaultExtractionConcurrency = 3
	maxExtractionConcurrency     = 6

	stubModelName = "stub"
)

// ExtractionResult is one review's extracted feature scores with usage
// accounting, before persistence assigns ids and timestamps.
type ExtractionResult struct {
	Features         map[features.Name]float64
	Confidence       float64
	ModelUsed        string
	PromptVersion    string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// TotalTokens returns prompt plus completion tokens.
func (r *ExtractionResult) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// ExtractionProvider scores one review's text against the feature catalog.
type ExtractionProvider interface {
	Extract(ctx context.Context, review models.Review) (ExtractionResult, error)
}

// LLMExtractionProvider extracts features with a JSON-mode chat completion.
type LLMExtractionProvider struct {
	client CompletionClient
	model  string
	prompt string
}

// LLMExtractionProviderParams configures LLMExtractionProvider. Model is the
// name recorded on results, normally the client's configured model.
type LLMExtractionProviderParams struct {
	Client CompletionClient
	Model  string
}

// NewLLMExtractionProvider creates an LLMExtractionProvider.
func NewLLMExtractionProvider(p LLMExtractionProviderParams) *LLMExtractionProvider {
	return &LLMExtractionProvider{
		client: p.Client,
		model:  p.Model,
		prompt: buildExtractionPrompt(),
	}
}

// Extract scores review.Text. Unlike query parsing there is no fallback: a
// failed extraction is an error for the caller's retry policy.
func (p *LLMExtractionProvider) Extract(ctx context.Context, review models.Review) (ExtractionResult, error) {
	text := strings.TrimSpace(review.Text)
	if text == "" {
		return ExtractionResult{}, ErrEmptyReviewText
	}

	if len(text) > maxReviewChars {
		text = text[:maxReviewChars]
	}

	payload, err := json.Marshal(map[string]any{
		"review_text": text,
		"rating":      review.Rating,
	})
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("marshal extraction input: %w", err)
	}

	completion, err := p.client.CompleteJSON(ctx, p.prompt, string(payload))
	if err != nil {
		return ExtractionResult{}, fmt.Errorf("feature extraction: %w", err)
	}

	var raw rawExtraction
	if err := json.Unmarshal([]byte(completion.Content), &raw); err != nil {
		return ExtractionResult{}, fmt.Errorf("parse extraction JSON: %w", err)
	}

	return ExtractionResult{
		Features:         sanitizeFeatureScores(raw.Features),
		Confidence:       sanitizeConfidence(raw.Confidence),
		ModelUsed:        p.model,
		PromptVersion:    features.PromptVersion,
		PromptTokens:     completion.PromptTokens,
		CompletionTokens: completion.CompletionTokens,
		CostUSD:          completion.CostUSD,
	}, nil
}

// rawExtraction is the untrusted model output. Values stay untyped because
// models occasionally return scores as strings or null.
type rawExtraction struct {
	Features   map[string]any `json:"features"`
	Confidence any            `json:"confidence"`
}

// sanitizeFeatureScores keeps only known feature names with coercible numeric
// scores, clamped into [0,1].
func sanitizeFeatureScores(raw map[string]any) map[features.Name]float64 {
	sanitized := make(map[features.Name]float64, len(raw))

	for _, name := range features.All {
		value, ok := raw[string(name)]
		if !ok {
			continue
		}

		score, ok := coerceScore(value)
		if !ok {
			continue
		}

		sanitized[name] = score
	}

	return sanitized
}

func sanitizeConfidence(value any) float64 {
	if score, ok := coerceScore(value); ok {
		return score
	}

	return defaultExtractionResponseConfidence
}

// coerceScore accepts numbers and numeric strings, rejects everything else,
// and clamps the result to [0,1] at three decimals.
func coerceScore(value any) (float64, bool) {
	var numeric float64

	switch v := value.(type) {
	case float64:
		numeric = v
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}

		numeric = parsed
	default:
		return 0, false
	}

	if math.IsNaN(numeric) || math.IsInf(numeric, 0) {
		return 0, false
	}

	return clampScore(numeric), true
}

func clampScore(v float64) float64 {
	return math.Min(1, math.Max(0, math.Round(v*1000)/1000))
}

func buildExtractionPrompt() string {
	var guidance strings.Builder

	for _, name := range features.All {
		fmt.Fprintf(&guidance, "- %s: %s\n", name, features.Guidance[name])
	}

	return fmt.Sprintf(`You evaluate restaurant reviews and score specific experiential features.

For each review you must:
- Only score features that are explicitly mentioned or strongly implied.
- Scores are 0.0 (very negative) to 1.0 (very positive).
- Return null when the review does not mention the feature.
- Include a confidence value between 0.0 and 1.0 for your overall extraction quality.

Feature guidance:
%s
Return STRICT JSON with the following shape:
{
  "features": {
    "romantic": 0.9,
    "noise_level": 0.2
  },
  "confidence": 0.82
}

Rules:
- Keep keys in snake_case as provided.
- Do not include features that are not in the list.
- Confidence reflects how certain you are in these scores.
- Do not include commentary or explanations.`, guidance.String())
}

// StubExtractionProvider scores reviews with fixed keyword rules. Used in
// tests and offline environments where no model is available.
type StubExtractionProvider struct{}

// NewStubExtractionProvider creates a StubExtractionProvider.
func NewStubExtractionProvider() *StubExtractionProvider {
	return &StubExtractionProvider{}
}

// Extract scores review.Text against the keyword tables. Confidence is 0.75
// when any keyword matched, 0.5 otherwise.
func (p *StubExtractionProvider) Extract(_ context.Context, review models.Review) (ExtractionResult, error) {
	text := strings.TrimSpace(review.Text)
	if text == "" {
		return ExtractionResult{}, ErrEmptyReviewText
	}

	lower := strings.ToLower(text)
	scores := map[features.Name]float64{}

	if containsAny(lower, "romantic", "date") {
		scores[features.Romantic] = 0.9
		scores[features.GoodForDates] = 0.9
	}

	if containsAny(lower, "cozy", "intimate") {
		scores[features.Cozy] = 0.85
	}

	if containsAny(lower, "noisy", "loud") {
		scores[features.NoiseLevel] = 0.8
	}

	if strings.Contains(lower, "quiet") {
		scores[features.NoiseLevel] = 0.2
	}

	if strings.Contains(lower, "service") && strings.Contains(lower, "slow") {
		scores[features.FastService] = 0.1
		scores[features.AttentiveService] = 0.3
	}

	confidence := 0.5
	if len(scores) > 0 {
		confidence = 0.75
	}

	return ExtractionResult{
		Features:      scores,
		Confidence:    confidence,
		ModelUsed:     stubModelName,
		PromptVersion: features.PromptVersion,
	}, nil
}

// BatchExtraction is one review's outcome within a batch. Exactly one of
// Result and Err is set.
type BatchExtraction struct {
	Review models.Review
	Result *ExtractionResult
	Err    error
}

// ExtractionService runs a provider over review batches with bounded
// concurrency. One review's failure never discards its siblings' results.
type ExtractionService struct {
	provider    ExtractionProvider
	concurrency int
	logger      *slog.Logger
}

// ExtractionServiceParams configures ExtractionService. Concurrency outside
// [1, 6] falls back to the default of 3. Logger may be nil.
type ExtractionServiceParams struct {
	Provider    ExtractionProvider
	Concurrency int
	Logger      *slog.Logger
}

// NewExtractionService creates an ExtractionService.
func NewExtractionService(p ExtractionServiceParams) *ExtractionService {
	concurrency := p.Concurrency
	if concurrency < 1 || concurrency > maxExtractionConcurrency {
		concurrency = defaultExtractionConcurrency
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ExtractionService{
		provider:    p.Provider,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Extract runs the provider for a single review.
func (s *ExtractionService) Extract(ctx context.Context, review models.Review) (ExtractionResult, error) {
	return s.provider.Extract(ctx, review)
}

// ExtractBatch extracts every review, at most s.concurrency in flight.
// Results keep input order.
func (s *ExtractionService) ExtractBatch(ctx context.Context, reviews []models.Review) []BatchExtraction {
	results := make([]BatchExtraction, len(reviews))
	sem := make(chan struct{}, s.concurrency)

	var wg sync.WaitGroup

	for i := range reviews {
		sem <- struct{}{} // acquire (blocks if at cap)
		wg.Add(1)

		go func(idx int) {
			defer func() {
				<-sem
				wg.Done()
			}()

			review := reviews[idx]
			results[idx] = BatchExtraction{Review: review}

			result, err := s.provider.Extract(ctx, review)
			if err != nil {
				s.logger.Warn("feature extraction failed",
					"reviewId", review.ID.String(), "error", err)
				results[idx].Err = err

				return
			}

			results[idx].Result = &result
		}(i)
	}

	wg.Wait()

	return results
}
