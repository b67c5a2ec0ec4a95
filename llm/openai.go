package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/berserkarray/webscraperv2/models"
)

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewClient creates a client for baseURL (e.g. "https://api.openai.com/v1").
// The API key is not validated here; a missing key surfaces as an auth
// failure on the first call. Pass a nil httpClient to use a default one.
func NewClient(httpClient *http.Client, apiKey, baseURL string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the OpenAI chat completion request body.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
}

// Completion is the part of a chat completion response we use.
type Completion struct {
	Content string
	Usage   Usage
}

// Usage reports token consumption from the LLM call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatResponse is the minimal OpenAI chat completion response we need.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// chatErrorResponse captures an API error from the LLM provider.
type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends a chat completion request and returns the first choice.
// Every failure is reported as a SUMMARIZATION_FAILED ScrapeError.
func (c *Client) Complete(ctx context.Context, creq CompletionRequest) (*Completion, error) {
	bodyBytes, err := json.Marshal(creq)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSummarization, "failed to marshal LLM request", err)
	}

	endpoint := c.baseURL + "/chat/completions"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSummarization, "failed to create LLM request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSummarization, "LLM request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSummarization, "failed to read LLM response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyLLMError(resp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeSummarization, "failed to parse LLM response", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeSummarization, "LLM returned no choices", nil)
	}

	return &Completion{
		Content: chatResp.Choices[0].Message.Content,
		Usage:   chatResp.Usage,
	}, nil
}

// classifyLLMError turns a non-200 response into a descriptive error.
func classifyLLMError(statusCode int, body []byte) *models.ScrapeError {
	var errResp chatErrorResponse
	msg := "LLM API error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		msg = errResp.Error.Message
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeSummarization, "LLM authentication failed: "+msg, nil)
	case statusCode == http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeSummarization, "LLM quota or rate limit exceeded: "+msg, nil)
	default:
		return models.NewScrapeError(models.ErrCodeSummarization, fmt.Sprintf("LLM API returned %d: %s", statusCode, msg), nil)
	}
}
