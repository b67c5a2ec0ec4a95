package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func callTool(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return res
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func TestScrapeProduct_Success(t *testing.T) {
	var got scrapeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scrape" || r.Header.Get("X-API-Key") != "k" {
			t.Errorf("unexpected request %s key=%q", r.URL.Path, r.Header.Get("X-API-Key"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":"ok","payload":{"id":"9","primary_text":"Widget XL — $19.99","secondary_text":""}}`))
	}))
	defer srv.Close()

	res := callTool(t, handleScrapeProduct(newAPIClient(srv.URL, "k")), map[string]any{
		"url": "https://example.com/p", "term": "Widget XL", "id": "9",
	})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(res))
	}
	if !strings.Contains(resultText(res), "Widget XL — $19.99") {
		t.Errorf("result = %q", resultText(res))
	}
	if got.ID != "9" || got.Term != "Widget XL" {
		t.Errorf("forwarded request = %+v", got)
	}
}

func TestScrapeProduct_DefaultsID(t *testing.T) {
	var got scrapeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"message":"ok","payload":{"id":"x","primary_text":"t","secondary_text":""}}`))
	}))
	defer srv.Close()

	callTool(t, handleScrapeProduct(newAPIClient(srv.URL, "")), map[string]any{
		"url": "https://example.com/p", "term": "Widget XL",
	})
	if len(got.ID) != 36 {
		t.Errorf("expected generated UUID, got %q", got.ID)
	}
}

func TestScrapeProduct_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"scraping failed after 3 attempts","code":"SCRAPE_FAILED"}`))
	}))
	defer srv.Close()

	res := callTool(t, handleScrapeProduct(newAPIClient(srv.URL, "")), map[string]any{
		"url": "https://example.com/p", "term": "Widget XL",
	})
	if !res.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(resultText(res), "[SCRAPE_FAILED]") {
		t.Errorf("result = %q", resultText(res))
	}
}

func TestScrapeProduct_MissingTerm(t *testing.T) {
	res := callTool(t, handleScrapeProduct(newAPIClient("http://127.0.0.1:1", "")), map[string]any{
		"url": "https://example.com/p",
	})
	if !res.IsError {
		t.Error("expected error for missing term")
	}
}
