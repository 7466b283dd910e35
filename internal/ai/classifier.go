package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"

	"github.com/leadintake/pkg/models"
)

const budgetPrompt = `Classify a home-remodeling customer's budget answer into exactly one tier.

Tiers:
- LOW: small budget, tight on money, under roughly $15k
- MID: moderate budget, roughly $15k to $50k
- HIGH: large budget, over roughly $50k, or "money is not an issue"
- UNKNOWN: no budget information or unsure

Answer: %q

Respond with JSON only, like {"value": "MID"}.`

const timelinePrompt = `Classify when a home-remodeling customer wants to start into exactly one tier.

Tiers:
- ASAP: right away, this week, urgent
- SOON: within the next month or two
- LATER: several months out or next year
- EXPLORING: just looking, no plans yet, or unsure

Answer: %q

Respond with JSON only, like {"value": "SOON"}.`

// LeadClassifier maps free-text answers onto budget and timeline tiers
type LeadClassifier struct {
	gen     Generator
	timeout time.Duration
}

func NewLeadClassifier(gen Generator, timeout time.Duration) *LeadClassifier {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &LeadClassifier{gen: gen, timeout: timeout}
}

// ClassifyBudget returns UNKNOWN when the model is unavailable or unsure
func (c *LeadClassifier) ClassifyBudget(ctx context.Context, text string) models.Budget {
	raw, err := c.ask(ctx, fmt.Sprintf(budgetPrompt, text))
	if err != nil {
		log.Warn().Err(err).Msg("Budget classification failed")
		return models.BudgetUnknown
	}
	b, _ := models.ParseBudget(raw)
	return b
}

// ClassifyTimeline returns EXPLORING when the model is unavailable or unsure
func (c *LeadClassifier) ClassifyTimeline(ctx context.Context, text string) models.Timeline {
	raw, err := c.ask(ctx, fmt.Sprintf(timelinePrompt, text))
	if err != nil {
		log.Warn().Err(err).Msg("Timeline classification failed")
		return models.TimelineExploring
	}
	t, _ := models.ParseTimeline(raw)
	return t
}

func (c *LeadClassifier) ask(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.gen == nil {
		return "", errors.New("no model configured")
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	return parseClassification(out)
}

type classification struct {
	Value string `json:"value"`
}

// parseClassification pulls the "value" field out of a model reply,
// repairing the JSON when the model mangled it.
func parseClassification(out string) (string, error) {
	body := extractJSONObject(out)
	if body == "" {
		return "", fmt.Errorf("no JSON object in model reply %q", truncate(out, 80))
	}

	var cls classification
	if err := json.Unmarshal([]byte(body), &cls); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return "", fmt.Errorf("repair classification JSON: %w", rerr)
		}
		if err := json.Unmarshal([]byte(repaired), &cls); err != nil {
			return "", fmt.Errorf("decode repaired classification JSON: %w", err)
		}
		log.Debug().Str("original", truncate(body, 80)).Msg("Repaired classification JSON")
	}

	value := strings.TrimSpace(cls.Value)
	if value == "" {
		return "", errors.New("classification has no value")
	}
	return value, nil
}

// extractJSONObject returns the text from the first '{' to the last '}',
// or from the first '{' to the end when the object was cut off.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return strings.TrimSpace(s[start:])
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
