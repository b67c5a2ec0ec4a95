package cleaner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/strikethrough"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// HTML condensing modes.
const (
	// ModeRaw sends the rendered HTML unchanged.
	ModeRaw = "raw"
	// ModeMarkdown converts the whole document to Markdown.
	ModeMarkdown = "markdown"
	// ModeSanitized keeps structural markup but drops scripts, styles,
	// event handlers and other attributes the model does not need.
	ModeSanitized = "sanitized"
	// ModeReadability extracts the main content with readability, then
	// converts it to Markdown.
	ModeReadability = "readability"
)

// Condenser shrinks rendered HTML before it is truncated and sent to the
// model, so more of the product content fits in the prompt window.
//
// The converter is created once and reused across all jobs (goroutine-safe).
type Condenser struct {
	mode        string
	selector    string
	mdConverter *converter.Converter
	policy      *bluemonday.Policy
}

// NewCondenser validates mode and builds a Condenser. An empty mode means
// ModeRaw. selector, when non-empty, narrows the HTML to matching elements
// before any conversion.
func NewCondenser(mode, selector string) (*Condenser, error) {
	switch mode {
	case "":
		mode = ModeRaw
	case ModeRaw, ModeMarkdown, ModeSanitized, ModeReadability:
	default:
		return nil, fmt.Errorf("cleaner: unknown html mode %q", mode)
	}
	return &Condenser{
		mode:        mode,
		selector:    selector,
		mdConverter: newProductConverter(),
		policy:      newSanitizePolicy(),
	}, nil
}

// Mode returns the configured condensing mode.
func (c *Condenser) Mode() string { return c.mode }

// Condense returns the HTML body to send to the model. It never fails: any
// conversion error falls back to the (selector-filtered) raw HTML.
func (c *Condenser) Condense(rawHTML, sourceURL string) string {
	html := rawHTML
	if c.selector != "" {
		html = ApplyContentSelector(html, c.selector)
	}

	switch c.mode {
	case ModeMarkdown:
		md, err := c.mdConverter.ConvertString(html, converter.WithDomain(sourceURL))
		if err != nil {
			slog.Warn("markdown conversion failed, sending raw HTML",
				"url", sourceURL, "error", err,
			)
			return html
		}
		return md

	case ModeSanitized:
		return c.policy.Sanitize(html)

	case ModeReadability:
		article, ok := ExtractContent(html, sourceURL)
		if !ok {
			return html
		}
		md, err := c.mdConverter.ConvertString(article.Content, converter.WithDomain(sourceURL))
		if err != nil {
			slog.Warn("markdown conversion failed, sending readability HTML",
				"url", sourceURL, "error", err,
			)
			return article.Content
		}
		return md

	default:
		return html
	}
}

// ApplyContentSelector keeps only the outer HTML of elements matching
// selector. If nothing matches (or the HTML cannot be parsed) the input is
// returned unchanged so the model still sees the page.
func ApplyContentSelector(rawHTML, selector string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML
	}

	matches := doc.Find(selector)
	if matches.Length() == 0 {
		return rawHTML
	}

	var buf strings.Builder
	matches.Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			buf.WriteString(h)
		}
	})
	return buf.String()
}

// newProductConverter renders product pages for the model. Crossed-out list
// prices keep their ~~strikethrough~~ so the model can tell them from the
// current price. Spec tables stay tables, with empty rows dropped and
// merged cells repeated so every row reads on its own.
func newProductConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(
				commonmark.WithBulletListMarker("-"),
				commonmark.WithListEndComment(false),
			),
			strikethrough.NewStrikethroughPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorNone),
				table.WithSpanCellBehavior(table.SpanBehaviorMirror),
				table.WithSkipEmptyRows(true),
			),
		),
	)
}

// newSanitizePolicy is the UGC policy plus schema.org microdata attributes,
// which often carry the price and availability of a product.
func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("itemprop", "itemscope", "itemtype", "content").Globally()
	return p
}
