package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/platewise/backend/internal/features"
	"github.com/platewise/backend/internal/models"
	"github.com/platewise/backend/internal/observability"
	"github.com/platewise/backend/internal/openai"
)

const (
	defaultQueryIntent     = "general"
	fallbackConfidence     = 0.5
	minPriceLevel          = 1
	maxPriceLevel          = 4
	defaultParseConfidence = 0.5
)

// QueryParser turns a natural-language query into a structured ParsedQuery.
type QueryParser interface {
	Parse(ctx context.Context, queryText string) (models.ParsedQuery, error)
}

// CompletionClient is the completion operation the LLM parser needs.
type CompletionClient interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (*openai.Completion, error)
}

// LLMQueryParser parses queries with a JSON-mode chat completion and falls
// back to keyword rules when the model call or its output is unusable.
type LLMQueryParser struct {
	client   CompletionClient
	fallback *RuleQueryParser
	prompt   string
	metrics  observability.SearchMetrics
	logger   *slog.Logger
}

// LLMQueryParserParams configures LLMQueryParser. Metrics and Logger may be nil.
type LLMQueryParserParams struct {
	Client  CompletionClient
	Metrics observability.SearchMetrics
	Logger  *slog.Logger
}

// NewLLMQueryParser creates an LLMQueryParser.
func NewLLMQueryParser(p LLMQueryParserParams) *LLMQueryParser {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LLMQueryParser{
		client:   p.Client,
		fallback: NewRuleQueryParser(),
		prompt:   buildQueryParsingPrompt(),
		metrics:  p.Metrics,
		logger:   logger,
	}
}

// Parse parses queryText with the model. A model or decode failure degrades
// to the rule-based fallback rather than failing the search.
func (p *LLMQueryParser) Parse(ctx context.Context, queryText string) (models.ParsedQuery, error) {
	completion, err := p.client.CompleteJSON(ctx, p.prompt, queryText)
	if err != nil {
		p.logger.Warn("query parsing failed, using fallback", "error", err)
		p.recordFallback(ctx)

		return p.fallback.Parse(ctx, queryText)
	}

	var raw rawParsedQuery
	if err := json.Unmarshal([]byte(completion.Content), &raw); err != nil {
		p.logger.Warn("query parse response is not valid JSON, using fallback", "error", err)
		p.recordFallback(ctx)

		return p.fallback.Parse(ctx, queryText)
	}

	return sanitizeParsedQuery(raw, p.logger), nil
}

func (p *LLMQueryParser) recordFallback(ctx context.Context) {
	if p.metrics != nil {
		p.metrics.RecordParseFallback(ctx)
	}
}

// rawParsedQuery is the untrusted model output before sanitization.
type rawParsedQuery struct {
	Features     map[string]models.ParsedFeature `json:"features"`
	Intent       string                          `json:"intent"`
	Confidence   *float64                        `json:"confidence"`
	Cuisines     []string                        `json:"cuisines"`
	MaxPrice     *float64                        `json:"maxPrice"`     //nolint:tagliatelle // parser contract
	OccasionType string                          `json:"occasionType"` //nolint:tagliatelle // parser contract
}

// sanitizeParsedQuery validates model output: unknown feature names are
// dropped, numeric fields are clamped to their documented ranges.
func sanitizeParsedQuery(raw rawParsedQuery, logger *slog.Logger) models.ParsedQuery {
	parsed := models.ParsedQuery{
		Features:     make(map[features.Name]models.ParsedFeature, len(raw.Features)),
		Intent:       raw.Intent,
		Confidence:   defaultParseConfidence,
		Cuisines:     raw.Cuisines,
		OccasionType: raw.OccasionType,
	}

	if parsed.Intent == "" {
		parsed.Intent = defaultQueryIntent
	}

	if raw.Confidence != nil && !math.IsNaN(*raw.Confidence) {
		parsed.Confidence = clamp01(*raw.Confidence)
	}

	for rawName, pf := range raw.Features {
		name := features.Name(rawName)
		if !features.IsValid(rawName) {
			if fromCamel, ok := features.FromCamel(rawName); ok {
				name = fromCamel
			} else {
				logger.Debug("dropping unknown feature from parsed query", "feature", rawName)

				continue
			}
		}

		parsed.Features[name] = models.ParsedFeature{
			Weight:   clamp01(pf.Weight),
			Target:   clamp01(pf.Target),
			Required: pf.Required,
		}
	}

	if raw.MaxPrice != nil && !math.IsNaN(*raw.MaxPrice) {
		price := int(math.Round(*raw.MaxPrice))
		if price >= minPriceLevel && price <= maxPriceLevel {
			parsed.MaxPrice = &price
		}
	}

	return parsed
}

func buildQueryParsingPrompt() string {
	names := make([]string, len(features.All))
	for i, name := range features.All {
		names[i] = string(name)
	}

	return fmt.Sprintf(`You are a restaurant query parser. Extract feature preferences from the user's natural language query.

Available features: %s

For each relevant feature mentioned or implied, return:
- weight: 0.0-1.0 (importance)
- target: 0.0-1.0 (desired value)
- required: boolean (if must-have)

Return only valid JSON with the following shape:
{
  "features": {
    "romantic": { "weight": 1.0, "target": 0.9, "required": true }
  },
  "intent": "date_night",
  "confidence": 0.95,
  "cuisines": ["Italian"],
  "maxPrice": 3,
  "occasionType": "romantic_dinner"
}`, strings.Join(names, ", "))
}

// RuleQueryParser is the keyword-based parser used as the LLM fallback and as
// the stub provider in tests and offline environments.
type RuleQueryParser struct{}

// NewRuleQueryParser creates a RuleQueryParser.
func NewRuleQueryParser() *RuleQueryParser {
	return &RuleQueryParser{}
}

var knownCuisines = []string{
	"italian", "japanese", "sushi", "thai", "mexican", "indian", "french",
	"korean", "mediterranean", "vegan", "vegetarian", "bbq", "pizza",
	"seafood", "brunch",
}

// Parse matches fixed keyword rules against the lowercased query. It never
// fails; a query with no recognized keywords yields an empty feature map.
func (p *RuleQueryParser) Parse(_ context.Context, queryText string) (models.ParsedQuery, error) {
	lower := strings.ToLower(queryText)
	parsed := models.ParsedQuery{
		Features:   map[features.Name]models.ParsedFeature{},
		Intent:     defaultQueryIntent,
		Confidence: fallbackConfidence,
	}

	if containsAny(lower, "romantic", "date") {
		parsed.Features[features.Romantic] = models.ParsedFeature{Weight: 1, Target: 0.9, Required: true}
		parsed.Features[features.GoodForDates] = models.ParsedFeature{Weight: 1, Target: 0.9}
	}

	if containsAny(lower, "cozy", "intimate") {
		parsed.Features[features.Cozy] = models.ParsedFeature{Weight: 0.9, Target: 0.85}
	}

	if containsAny(lower, "quiet", "not loud") {
		parsed.Features[features.NoiseLevel] = models.ParsedFeature{Weight: 0.8, Target: 0.2}
	}

	if containsAny(lower, "casual", "relaxed") {
		parsed.Features[features.Casual] = models.ParsedFeature{Weight: 0.8, Target: 0.85}
		parsed.Features[features.Formality] = models.ParsedFeature{Weight: 0.6, Target: 0.2}
	}

	if containsAny(lower, "family", "kids") {
		parsed.Features[features.FamilyFriendly] = models.ParsedFeature{Weight: 0.9, Target: 0.9}
	}

	parsed.Cuisines = extractCuisines(lower)
	parsed.MaxPrice = extractMaxPrice(lower)

	return parsed, nil
}

func extractCuisines(lower string) []string {
	var cuisines []string

	for _, cuisine := range knownCuisines {
		if strings.Contains(lower, cuisine) {
			cuisines = append(cuisines, capitalizeWords(cuisine))
		}
	}

	return cuisines
}

func extractMaxPrice(lower string) *int {
	switch {
	case containsAny(lower, "cheap", "budget", "affordable"):
		return intRef(1)
	case containsAny(lower, "moderate", "not too expensive"):
		return intRef(2)
	case containsAny(lower, "fine dining", "high-end", "expensive"):
		return intRef(4)
	default:
		return nil
	}
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}

	return false
}

func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}

	return strings.Join(words, " ")
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func intRef(v int) *int { return &v }
