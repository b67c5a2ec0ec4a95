package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	apiURL := strings.TrimRight(os.Getenv("WEBSCRAPER_API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8000"
	}
	// Only needed when the API runs with WEBSCRAPER_AUTH_ENABLED.
	apiKey := os.Getenv("WEBSCRAPER_API_KEY")

	s := server.NewMCPServer(
		"webscraper",
		"2.0.0",
		server.WithToolCapabilities(false),
	)

	c := newAPIClient(apiURL, apiKey)

	scrapeProductTool := mcp.NewTool("scrape_product",
		mcp.WithDescription("Render a product page in a headless browser, extract the product information for a search term with an LLM, and post it to the configured collector. Returns the delivered text."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the product page"),
		),
		mcp.WithString("term",
			mcp.Required(),
			mcp.Description("The product name or search term to extract information about"),
		),
		mcp.WithString("id",
			mcp.Description("Identifier echoed to the collector (default: a new UUID)"),
		),
	)
	s.AddTool(scrapeProductTool, handleScrapeProduct(c))

	healthTool := mcp.NewTool("service_health",
		mcp.WithDescription("Report the scraper service status, uptime and number of running jobs."),
	)
	s.AddTool(healthTool, handleHealth(c))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
