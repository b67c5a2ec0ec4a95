package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/berserkarray/webscraperv2/config"
	"github.com/berserkarray/webscraperv2/models"
)

// PopupAction says what to do when a rule's selector is present.
type PopupAction int

const (
	// Dismiss clicks the element (cookie/consent buttons).
	Dismiss PopupAction = iota
	// Block aborts the attempt (sign-in walls).
	Block
)

// PopupOutcome is the result of checking one rule.
type PopupOutcome int

const (
	PopupNotFound PopupOutcome = iota
	PopupDismissed
	PopupBlocked
)

func (o PopupOutcome) String() string {
	switch o {
	case PopupDismissed:
		return "dismissed"
	case PopupBlocked:
		return "blocked"
	default:
		return "not_found"
	}
}

// PopupRule pairs a selector with the action taken when it appears.
type PopupRule struct {
	Selector string
	Action   PopupAction
}

// RulesFromSelectors orders consent rules before sign-in rules.
func RulesFromSelectors(sel config.Selectors) []PopupRule {
	rules := make([]PopupRule, 0, len(sel.Consent)+len(sel.SignIn))
	for _, s := range sel.Consent {
		rules = append(rules, PopupRule{Selector: s, Action: Dismiss})
	}
	for _, s := range sel.SignIn {
		rules = append(rules, PopupRule{Selector: s, Action: Block})
	}
	return rules
}

// Check waits up to timeout for the rule's selector. Absence within the
// timeout is PopupNotFound with a nil error.
func (r PopupRule) Check(ctx context.Context, sess Session, timeout time.Duration) (PopupOutcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := sess.WaitElement(waitCtx, r.Selector); err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return PopupNotFound, nil
		}
		return PopupNotFound, err
	}

	if r.Action == Block {
		return PopupBlocked, nil
	}

	clickCtx, cancelClick := context.WithTimeout(ctx, timeout)
	defer cancelClick()
	if err := sess.Click(clickCtx, r.Selector); err != nil {
		return PopupNotFound, err
	}
	return PopupDismissed, nil
}

// PopupHandler walks an ordered rule list. Dismiss rules stop being checked
// after the first successful dismissal; the first Block hit fails the
// attempt with BLOCKED_BY_SIGN_IN_WALL.
type PopupHandler struct {
	rules   []PopupRule
	timeout time.Duration
	logger  *slog.Logger
}

// NewPopupHandler creates a handler over rules.
func NewPopupHandler(rules []PopupRule, timeout time.Duration, logger *slog.Logger) *PopupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PopupHandler{rules: rules, timeout: timeout, logger: logger}
}

// Handle runs every applicable rule against the live page.
func (h *PopupHandler) Handle(ctx context.Context, sess Session) error {
	dismissed := false
	for _, r := range h.rules {
		if r.Action == Dismiss && dismissed {
			continue
		}

		outcome, err := r.Check(ctx, sess, h.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return models.NewScrapeError(models.ErrCodeCanceled, "pop-up handling canceled", ctx.Err())
			}
			h.logger.Warn("pop-up check failed, treating as absent",
				"selector", r.Selector, "error", err,
			)
			continue
		}

		switch outcome {
		case PopupDismissed:
			h.logger.Info("cookie popup dismissed", "selector", r.Selector)
			dismissed = true
		case PopupBlocked:
			h.logger.Error("sign-in popup detected, aborting extraction", "selector", r.Selector)
			return models.NewScrapeError(models.ErrCodeSignInWall,
				"sign-in wall detected ("+r.Selector+"); manual intervention required", nil)
		}
	}
	return nil
}
