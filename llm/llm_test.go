package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/berserkarray/webscraperv2/models"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"shorter", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"longer", "abcdef", 5, "abcde" + TruncationMarker},
		{"empty", "", 3, ""},
		{"zero max", "a", 0, TruncationMarker},
		{"multibyte", "héllo wörld", 7, "héllo w" + TruncationMarker},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.text, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.text, tt.max, got, tt.want)
			}
		})
	}
}

func TestTruncate_LongInputKeepsExactlyMax(t *testing.T) {
	text := strings.Repeat("x", 10050)
	got := Truncate(text, 10000)

	if !strings.HasSuffix(got, TruncationMarker) {
		t.Fatal("expected truncation marker")
	}
	if body := strings.TrimSuffix(got, TruncationMarker); len(body) != 10000 {
		t.Errorf("kept %d characters, want 10000", len(body))
	}
}

// newLLMServer returns a fake OpenAI endpoint that records the last request
// body and answers with reply.
func newLLMServer(t *testing.T, status int, reply string, captured *CompletionRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if captured != nil {
			if err := json.Unmarshal(body, captured); err != nil {
				t.Errorf("request body is not JSON: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
}

func completionJSON(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
	})
	return string(b)
}

func testConfig() SummarizerConfig {
	return SummarizerConfig{Model: "gpt-4o", Temperature: 0.2, MaxTokens: 2048, TopP: 1, MaxChars: 10000}
}

func TestSummarize_RequestCarriesBodiesAndTerm(t *testing.T) {
	var captured CompletionRequest
	srv := newLLMServer(t, http.StatusOK, completionJSON("  Widget XL — $19.99 \n"), &captured)
	defer srv.Close()

	s := NewSummarizer(NewClient(srv.Client(), "sk-test", srv.URL+"/"), testConfig(), nil)

	html := "<html><body><h1>Widget XL</h1>" + strings.Repeat("<p>detail</p>", 2000) + "</body></html>"
	text := "Widget XL, $19.99"

	out, err := s.Summarize(context.Background(), html, text, "Widget")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "Widget XL — $19.99" {
		t.Errorf("output = %q, want trimmed completion", out)
	}

	if captured.Model != "gpt-4o" || captured.Temperature != 0.2 || captured.MaxTokens != 2048 || captured.TopP != 1 {
		t.Errorf("unexpected model parameters: %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("expected system+user messages, got %+v", captured.Messages)
	}

	user := captured.Messages[1].Content
	if !strings.Contains(user, "Product term: Widget") {
		t.Error("user message missing the term")
	}
	if !strings.Contains(user, Truncate(html, 10000)) {
		t.Error("user message missing the truncated HTML body")
	}
	if !strings.Contains(user, "Visible Text:\n"+text) {
		t.Error("user message missing the visible text")
	}
	if strings.Contains(user, html) {
		t.Error("HTML body should have been truncated")
	}
}

func TestSummarize_TermMissingIsLoggedNotFailed(t *testing.T) {
	srv := newLLMServer(t, http.StatusOK, completionJSON("Some gadget, $5"), nil)
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSummarizer(NewClient(srv.Client(), "sk-test", srv.URL), testConfig(), logger)

	out, err := s.Summarize(context.Background(), "<p>x</p>", "x", "Widget")
	if err != nil {
		t.Fatalf("missing term must not fail: %v", err)
	}
	if out != "Some gadget, $5" {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(logs.String(), "term not clearly found in output") {
		t.Errorf("expected warning in logs, got:\n%s", logs.String())
	}
}

func TestSummarize_TermMatchIsCaseInsensitive(t *testing.T) {
	srv := newLLMServer(t, http.StatusOK, completionJSON("WIDGET xl"), nil)
	defer srv.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s := NewSummarizer(NewClient(srv.Client(), "sk-test", srv.URL), testConfig(), logger)

	if _, err := s.Summarize(context.Background(), "", "", "widget"); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(logs.String(), "term not clearly found") {
		t.Error("case-insensitive match should not warn")
	}
}

func TestSummarize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, "authentication failed: bad key"},
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"quota"}}`, "rate limit exceeded: quota"},
		{"server error", http.StatusInternalServerError, `oops`, "LLM API returned 500"},
		{"malformed", http.StatusOK, `{not json`, "failed to parse LLM response"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "LLM returned no choices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newLLMServer(t, tt.status, tt.body, nil)
			defer srv.Close()

			s := NewSummarizer(NewClient(srv.Client(), "sk-test", srv.URL), testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
			_, err := s.Summarize(context.Background(), "h", "t", "term")
			if err == nil {
				t.Fatal("expected error")
			}
			if code := models.CodeOf(err); code != models.ErrCodeSummarization {
				t.Errorf("code = %s, want %s", code, models.ErrCodeSummarization)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err, tt.wantMsg)
			}
		})
	}
}

type failingCompleter struct{ err error }

func (f failingCompleter) Complete(context.Context, CompletionRequest) (*Completion, error) {
	return nil, f.err
}

func TestSummarize_WrapsForeignErrors(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	s := NewSummarizer(failingCompleter{err: cause}, testConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := s.Summarize(context.Background(), "h", "t", "term")
	if models.CodeOf(err) != models.ErrCodeSummarization {
		t.Errorf("code = %s", models.CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be preserved")
	}
}
