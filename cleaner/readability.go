package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum TextContent length (in characters) for
// readability output to be considered valid. Product pages are often short,
// so anything below this is treated as a miss.
const minContentLength = 50

// ExtractContent runs the Mozilla Readability algorithm on rawHTML.
//
// The second return value is false when the caller should keep using the
// raw HTML: unparsable URL, readability error, or too little text.
func ExtractContent(rawHTML string, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, keeping raw HTML",
			"url", sourceURL, "error", err,
		)
		return readability.Article{}, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, keeping raw HTML",
			"url", sourceURL, "error", err,
		)
		return readability.Article{}, false
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		slog.Warn("readability: extracted content too short, keeping raw HTML",
			"url", sourceURL, "length", len(article.TextContent),
		)
		return readability.Article{}, false
	}

	return article, true
}
