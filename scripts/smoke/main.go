package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/BurntSushi/toml"
)

// CLI flags
var (
	apiURL      = flag.String("api-url", "http://localhost:8000", "webscraper API base URL")
	apiKey      = flag.String("api-key", "", "API key for authenticated requests")
	targetsFile = flag.String("targets", "scripts/smoke/targets.toml", "TOML file listing [[target]] entries")
	runs        = flag.Int("runs", 1, "Number of runs per target")
	output      = flag.String("output", "smoke-results.json", "JSON output file path")
)

type target struct {
	Label string `toml:"label"`
	URL   string `toml:"url"`
	Term  string `toml:"term"`
}

type targetsConfig struct {
	Targets []target `toml:"target"`
}

// --- Request / Response types (mirrors models package) ---

type scrapeRequest struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Term string `json:"term"`
}

type scrapeResponse struct {
	Message string `json:"message"`
	Payload struct {
		ID          string `json:"id"`
		PrimaryText string `json:"primary_text"`
	} `json:"payload"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// --- Smoke result types ---

type runResult struct {
	Run        int    `json:"run"`
	LatencyMs  int64  `json:"latency_ms"`
	HTTPStatus int    `json:"http_status"`
	TextLength int    `json:"text_length"`
	TermFound  bool   `json:"term_found"`
	Success    bool   `json:"success"`
	Code       string `json:"code,omitempty"`
	Error      string `json:"error,omitempty"`
}

type targetResult struct {
	Label string      `json:"label"`
	URL   string      `json:"url"`
	Term  string      `json:"term"`
	Runs  []runResult `json:"runs"`
}

type smokeReport struct {
	Timestamp  string         `json:"timestamp"`
	APIURL     string         `json:"api_url"`
	RunsPerURL int            `json:"runs_per_url"`
	Results    []targetResult `json:"results"`
}

func main() {
	flag.Parse()

	var cfg targetsConfig
	if _, err := toml.DecodeFile(*targetsFile, &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading targets: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Targets) == 0 {
		fmt.Fprintf(os.Stderr, "Error: %s defines no [[target]] entries\n", *targetsFile)
		os.Exit(1)
	}

	fmt.Println("=== webscraper smoke run ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Targets:   %d\n", len(cfg.Targets))
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		os.Exit(1)
	}

	report := smokeReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	for ti, t := range cfg.Targets {
		fmt.Printf("Scraping [%s] %s ...\n", t.Label, t.URL)
		tr := targetResult{Label: t.Label, URL: t.URL, Term: t.Term}

		for i := 1; i <= *runs; i++ {
			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := scrapeTarget(t, fmt.Sprintf("smoke-%d-%d", ti+1, i), i)
			if rr.Success {
				fmt.Printf("OK  %dms  %d chars\n", rr.LatencyMs, rr.TextLength)
			} else {
				fmt.Printf("FAILED: %s\n", rr.Error)
			}
			tr.Runs = append(tr.Runs, rr)
		}

		report.Results = append(report.Results, tr)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func scrapeTarget(t target, id string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(scrapeRequest{ID: id, URL: t.URL, Term: t.Term})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	req, err := http.NewRequest(http.MethodPost, *apiURL+"/scrape", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request error: %v", err)
		return rr
	}
	req.Header.Set("Content-Type", "application/json")
	if *apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+*apiKey)
	}

	// Three attempts with a one-minute navigation budget each, plus backoff.
	client := &http.Client{Timeout: 5 * time.Minute}
	start := time.Now()
	resp, err := client.Do(req)
	rr.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()
	rr.HTTPStatus = resp.StatusCode

	var sr scrapeResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	if resp.StatusCode != http.StatusOK {
		rr.Code = sr.Code
		rr.Error = sr.Detail
		return rr
	}

	rr.Success = true
	rr.TextLength = len(sr.Payload.PrimaryText)
	rr.TermFound = strings.Contains(strings.ToLower(sr.Payload.PrimaryText), strings.ToLower(t.Term))
	return rr
}

func printTable(results []targetResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Target\tOK\tAvg Latency\tTerm Found\tLast Error\n")
	fmt.Fprintf(w, "──────\t──\t───────────\t──────────\t──────────\n")

	for _, r := range results {
		var ok, found int
		var totalMs int64
		lastErr := "-"
		for _, run := range r.Runs {
			if run.Success {
				ok++
				totalMs += run.LatencyMs
				if run.TermFound {
					found++
				}
			} else if run.Code != "" {
				lastErr = run.Code
			} else {
				lastErr = "transport"
			}
		}
		avg := "-"
		if ok > 0 {
			avg = fmt.Sprintf("%dms", totalMs/int64(ok))
		}
		fmt.Fprintf(w, "%s\t%d/%d\t%s\t%d/%d\t%s\n",
			truncate(r.Label+" "+r.URL, 40), ok, len(r.Runs), avg, found, ok, lastErr)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func writeJSON(path string, report smokeReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
