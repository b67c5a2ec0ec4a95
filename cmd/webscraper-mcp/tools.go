package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// scrapeRequest mirrors the webscraper API request model.
type scrapeRequest struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Term string `json:"term"`
}

// scrapeResponse covers both the success and the error body of POST /scrape.
type scrapeResponse struct {
	Message string `json:"message"`
	Payload *struct {
		ID            string `json:"id"`
		PrimaryText   string `json:"primary_text"`
		SecondaryText string `json:"secondary_text"`
	} `json:"payload"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

type healthResponse struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	ActiveJobs int    `json:"active_jobs"`
	Version    string `json:"version"`
}

type apiClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// A single scrape may run three attempts with a one-minute navigation
// budget each, plus backoff and the LLM call.
func newAPIClient(baseURL, apiKey string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, in any) (int, []byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, out, nil
}

func handleScrapeProduct(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		term, err := request.RequireString("term")
		if err != nil {
			return mcp.NewToolResultError("term is required"), nil
		}
		id := request.GetString("id", "")
		if id == "" {
			id = uuid.NewString()
		}

		status, body, err := c.do(ctx, http.MethodPost, "/scrape", scrapeRequest{ID: id, URL: url, Term: term})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp scrapeResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response (status %d): %v", status, err)), nil
		}

		if status != http.StatusOK || resp.Payload == nil {
			msg := resp.Detail
			if msg == "" {
				msg = fmt.Sprintf("scrape failed with status %d", status)
			}
			if resp.Code != "" {
				msg = fmt.Sprintf("[%s] %s", resp.Code, msg)
			}
			return mcp.NewToolResultError(msg), nil
		}

		text := fmt.Sprintf("ID: %s\nSource: %s\n\n%s", resp.Payload.ID, url, resp.Payload.PrimaryText)
		if resp.Payload.SecondaryText != "" {
			text += "\n\n" + resp.Payload.SecondaryText
		}
		return mcp.NewToolResultText(text), nil
	}
}

func handleHealth(c *apiClient) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		status, body, err := c.do(ctx, http.MethodGet, "/health", nil)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		var h healthResponse
		if status != http.StatusOK || json.Unmarshal(body, &h) != nil {
			return mcp.NewToolResultError(fmt.Sprintf("health check failed with status %d", status)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Status: %s\nUptime: %s\nActive jobs: %d\nVersion: %s",
			h.Status, h.Uptime, h.ActiveJobs, h.Version)), nil
	}
}
