package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ridgelinehq/docpipe/internal/core/domain"
	"github.com/ridgelinehq/docpipe/internal/core/ports"
)

const (
	phraseWeight  = 3
	keywordWeight = 1

	// scoreFloor is the minimum pattern score required to accept a
	// taxonomy type; anything below it classifies as Unknown with full
	// manual review.
	scoreFloor = 0.3

	// phraseBaseScore is the minimum score for any full phrase hit. A
	// phrase is high-precision evidence on its own; keyword breadth in
	// a definition must not dilute it below the acceptance floor.
	phraseBaseScore = 0.4

	maxExcerpt = 3000
)

// Classifier scores OCR text against the maintained taxonomy and then
// runs an LLM enhancement pass for tax importance and risk signals.
// Enhancement failures are absorbed; the pattern result stands alone.
type Classifier struct {
	llm    ports.CompletionClient
	defs   []typeDefinition
	logger *slog.Logger
}

func New(llm ports.CompletionClient, logger *slog.Logger) (*Classifier, error) {
	defs, err := loadTaxonomy()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{llm: llm, defs: defs, logger: logger}, nil
}

func (c *Classifier) Classify(ctx context.Context, text string) (*domain.Classification, error) {
	result := c.scorePatterns(text)

	enhancement, err := c.enhance(ctx, text, result)
	if err != nil {
		c.logger.Warn("classification_enhancement_skipped", "type", result.Type, "error", err)
		return result, nil
	}

	if enhancement.TaxImportance != "" {
		result.TaxImportance = parseImportance(enhancement.TaxImportance, result.TaxImportance)
	}
	if enhancement.EstimatedMinutes > 0 {
		result.EstimatedMinutes = enhancement.EstimatedMinutes
	}
	result.RiskFactors = append(result.RiskFactors, enhancement.RiskFactors...)

	// Max of the two phases, never sum or product: weak agreement must
	// not inflate confidence.
	if enhancement.Confidence > result.Confidence {
		result.Confidence = enhancement.Confidence
	}
	return result, nil
}

func (c *Classifier) scorePatterns(text string) *domain.Classification {
	lower := strings.ToLower(text)

	var best *typeDefinition
	var bestScore float64
	for i := range c.defs {
		def := &c.defs[i]
		score := scoreDefinition(lower, def)
		if score > bestScore {
			best, bestScore = def, score
		}
	}

	if best == nil || bestScore < scoreFloor {
		return &domain.Classification{
			Type:           domain.DocTypeUnknown,
			Confidence:     0,
			AutoFillTier:   domain.AutoFillManual,
			RequiresReview: true,
			TaxImportance:  domain.ImportanceLow,
		}
	}

	return &domain.Classification{
		Type:              domain.ParseDocumentType(best.Type),
		Subtype:           best.category,
		Confidence:        bestScore,
		AutoFillTier:      parseTier(best.AutoFillTier),
		RequiresReview:    bestScore < 0.6,
		TaxImportance:     parseImportance(best.TaxImportance, domain.ImportanceMedium),
		EstimatedMinutes:  best.EstimatedMinutes,
		RelatedForms:      best.RelatedForms,
		ExtractableFields: best.ExtractableFields,
	}
}

func scoreDefinition(lower string, def *typeDefinition) float64 {
	var matchedPhrases, matched int
	for _, phrase := range def.Phrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			matchedPhrases++
			matched += phraseWeight
		}
	}
	for _, keyword := range def.Keywords {
		if strings.Contains(lower, strings.ToLower(keyword)) {
			matched += keywordWeight
		}
	}
	max := def.maxWeight()
	if max == 0 {
		return 0
	}
	score := float64(matched) / max
	if matchedPhrases > 0 && score < phraseBaseScore {
		score = phraseBaseScore
	}
	return score
}

type enhancementReply struct {
	TaxImportance    string   `json:"tax_importance"`
	RiskFactors      []string `json:"risk_factors"`
	EstimatedMinutes int      `json:"estimated_minutes"`
	Confidence       float64  `json:"confidence"`
	Notes            string   `json:"notes"`
}

func (c *Classifier) enhance(ctx context.Context, text string, pattern *domain.Classification) (*enhancementReply, error) {
	reply, err := c.llm.Complete(ctx, buildEnhancementPrompt(text, pattern), ports.CompletionOptions{
		Temperature: 0.1,
		MaxTokens:   400,
		JSONMode:    true,
	})
	if err != nil {
		return nil, err
	}

	var parsed enhancementReply
	if err := json.Unmarshal([]byte(extractJSONObject(reply)), &parsed); err != nil {
		return nil, fmt.Errorf("parse enhancement json: %w", err)
	}
	if parsed.Confidence < 0 || parsed.Confidence > 1 {
		parsed.Confidence = 0
	}
	return &parsed, nil
}

func buildEnhancementPrompt(text string, pattern *domain.Classification) string {
	excerpt := text
	if len(excerpt) > maxExcerpt {
		excerpt = excerpt[:maxExcerpt]
	}
	return fmt.Sprintf(`You are reviewing a tax document classification.
Pattern matching identified the document as %q with confidence %.2f.
Return strict JSON with keys:
tax_importance (one of critical, high, medium, low),
risk_factors (array of strings),
estimated_minutes (number),
confidence (number from 0 to 1),
notes (string sanity check of the identified type).
No markdown, no extra keys.

Document excerpt:
%s`, pattern.Type, pattern.Confidence, excerpt)
}

func parseTier(s string) domain.AutoFillTier {
	switch domain.AutoFillTier(s) {
	case domain.AutoFillFull, domain.AutoFillPartial, domain.AutoFillManual:
		return domain.AutoFillTier(s)
	default:
		return domain.AutoFillManual
	}
}

func parseImportance(s string, fallback domain.TaxImportance) domain.TaxImportance {
	switch domain.TaxImportance(s) {
	case domain.ImportanceCritical, domain.ImportanceHigh, domain.ImportanceMedium, domain.ImportanceLow:
		return domain.TaxImportance(s)
	default:
		return fallback
	}
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
