package scraper

import (
	"context"
	"errors"
	"strings"

	"github.com/berserkarray/webscraperv2/cleaner"
	"github.com/berserkarray/webscraperv2/models"
)

const (
	rootSelector  = "body"
	innerTextJS   = `() => document.body ? document.body.innerText : ""`
	documentTitle = `() => document.title`
)

// extract waits for the page body, then reads HTML, visible text and title.
// It never mutates the page.
func (s *Scraper) extract(ctx context.Context, sess Session, url string) (*models.PageSnapshot, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancel()

	if err := sess.WaitElement(waitCtx, rootSelector); err != nil {
		if ctx.Err() != nil {
			return nil, models.NewScrapeError(models.ErrCodeCanceled, "extraction canceled", ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, models.NewScrapeError(models.ErrCodeExtractionTimeout, "page body did not appear", err)
		}
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed waiting for page body", err)
	}

	readCtx, cancelRead := context.WithTimeout(ctx, s.cfg.ExtractTimeout)
	defer cancelRead()

	html, err := sess.HTML(readCtx)
	if err != nil {
		s.logger.Error("error during extraction", "url", url, "error", err)
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to read page HTML", err)
	}

	text, err := sess.Eval(readCtx, innerTextJS)
	if err != nil {
		s.logger.Error("error during extraction", "url", url, "error", err)
		return nil, models.NewScrapeError(models.ErrCodeExtraction, "failed to read visible text", err)
	}
	if strings.TrimSpace(text) == "" && html != "" {
		text = cleaner.VisibleText(html)
	}

	// Title is best-effort; it only feeds the logs.
	title, _ := sess.Eval(readCtx, documentTitle)

	s.logger.Info("page extracted",
		"url", url, "title", title, "html_len", len(html), "text_len", len(text),
	)

	return &models.PageSnapshot{
		HTML:        html,
		VisibleText: text,
		Title:       title,
		URL:         url,
	}, nil
}
