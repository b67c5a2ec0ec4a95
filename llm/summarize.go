package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/berserkarray/webscraperv2/cleaner"
	"github.com/berserkarray/webscraperv2/models"
)

// TruncationMarker is appended to any body cut by Truncate.
const TruncationMarker = "\n...[truncated]..."

const systemPrompt = "You are an expert web scraper. Given the truncated HTML content and the visible text from a product page, " +
	"analyze the page structure and extract all the product information as a single text block. " +
	"The product is specified by the term provided by the user."

// Truncate returns text unchanged when it has at most max characters,
// otherwise its first max characters followed by TruncationMarker.
// Characters are counted as runes, so multi-byte text is never split.
func Truncate(text string, max int) string {
	if max < 0 {
		max = 0
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i] + TruncationMarker
		}
		n++
	}
	return text
}

// Completer is the chat completion call the Summarizer depends on.
// *Client implements it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// SummarizerConfig fixes the model parameters and the truncation limit.
type SummarizerConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	MaxChars    int
}

// Summarizer turns a rendered page into a product-information text block.
type Summarizer struct {
	client Completer
	cfg    SummarizerConfig
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer. A nil logger uses slog.Default().
func NewSummarizer(client Completer, cfg SummarizerConfig, logger *slog.Logger) *Summarizer {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 10000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{client: client, cfg: cfg, logger: logger}
}

// Summarize truncates html and text independently, asks the model for the
// product information about term, and returns the trimmed answer.
//
// An answer that does not mention term is logged but still returned.
func (s *Summarizer) Summarize(ctx context.Context, html, text, term string) (string, error) {
	messages := BuildMessages(Truncate(html, s.cfg.MaxChars), Truncate(text, s.cfg.MaxChars), term)

	s.logger.Debug("sending page to LLM",
		"model", s.cfg.Model,
		"estimated_prompt_tokens", cleaner.EstimateTokens(messages[0].Content)+cleaner.EstimateTokens(messages[1].Content),
	)

	completion, err := s.client.Complete(ctx, CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
		TopP:        s.cfg.TopP,
	})
	if err != nil {
		s.logger.Error("LLM analysis failed", "error", err)
		if models.CodeOf(err) == models.ErrCodeSummarization {
			return "", err
		}
		return "", models.NewScrapeError(models.ErrCodeSummarization, "LLM analysis failed", err)
	}

	out := strings.TrimSpace(completion.Content)
	s.logger.Info("LLM analysis complete",
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
	)

	if !strings.Contains(strings.ToLower(out), strings.ToLower(term)) {
		s.logger.Warn("term not clearly found in output", "term", term)
	}
	return out, nil
}

// BuildMessages assembles the fixed system/user prompt pair.
func BuildMessages(html, text, term string) []Message {
	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf(
			"Product term: %s\n\n"+
				"HTML Content:\n%s\n\n"+
				"Visible Text:\n%s\n\n"+
				"Please return the final product information as a single, cohesive text block without extra commentary.",
			term, html, text,
		)},
	}
}
