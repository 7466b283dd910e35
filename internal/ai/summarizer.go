package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/leadintake/internal/logging"
	"github.com/leadintake/internal/retry"
	"github.com/leadintake/pkg/models"
)

const summaryPromptTemplate = `You are an AI assistant helping contractors evaluate new remodeling leads.

Generate a short structured summary with:

1. Lead Quality Score Explanation
2. Urgency Level
3. Estimated Project Value Tier
4. Recommended Sales Angle

Project Type: %s
Budget: %s
Timeline: %s
ZIP: %s
Score: %d

Keep it concise but actionable.`

// BuildSummaryPrompt renders the summary request for a lead
func BuildSummaryPrompt(lead *models.Lead) string {
	zip := "unknown"
	if lead.Zip != nil && *lead.Zip != "" {
		zip = *lead.Zip
	}
	return fmt.Sprintf(summaryPromptTemplate, lead.ProjectType, lead.Budget, lead.Timeline, zip, lead.Score)
}

// LeadSummarizer asks the model for a lead analysis under a deadline
type LeadSummarizer struct {
	gen     Generator
	timeout time.Duration
	retry   retry.Config
}

// NewLeadSummarizer bounds every Summarize call by timeout, retries
// included. maxRetries < 0 keeps the default.
func NewLeadSummarizer(gen Generator, timeout time.Duration, maxRetries int) *LeadSummarizer {
	cfg := retry.ExternalCallConfig()
	if maxRetries >= 0 {
		cfg.MaxRetries = maxRetries
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &LeadSummarizer{gen: gen, timeout: timeout, retry: cfg}
}

// Summarize never fails; problems come back as an unavailable Summary
func (s *LeadSummarizer) Summarize(ctx context.Context, lead *models.Lead) Summary {
	if s == nil || s.gen == nil {
		return Unavailable("no model configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	logger := logging.Component("summarizer")
	prompt := BuildSummaryPrompt(lead)

	var text string
	result := retry.Do(ctx, s.retry, func(ctx context.Context) error {
		out, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, &logger)

	if !result.Success {
		return Unavailable(fmt.Sprintf("model call failed after %d attempt(s): %v", result.Attempts, result.LastError))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Unavailable("model returned an empty response")
	}
	return Available(text)
}
