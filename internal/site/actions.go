package site

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/retry"
)

// alreadyDoneMarkers are page texts meaning today's check-in happened
// earlier. Matched case-insensitively against the whole body.
var alreadyDoneMarkers = []string{
	"already checked",
	"come back tomorrow",
	"claimed today",
	"daily check in completed",
}

// Actions drives check-in and convert against the dashboard.
type Actions struct {
	logger *slog.Logger

	// ConvertThreshold is the minimum convertible balance worth
	// converting. At or below it, Convert is a no-op.
	ConvertThreshold float64

	// MaxRetries is the attempt budget beyond the first try for each
	// action.
	MaxRetries int

	sleep      func(ctx context.Context, d time.Duration)
	retrySleep func(ctx context.Context, d time.Duration) error
}

// NewActions builds the action driver with the given convert threshold.
func NewActions(logger *slog.Logger, convertThreshold float64, maxRetries int) *Actions {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actions{
		logger:           logger,
		ConvertThreshold: convertThreshold,
		MaxRetries:       maxRetries,
		sleep:            sleepCtx,
	}
}

func (a *Actions) retryCfg(label string) retry.Config {
	return retry.Config{
		MaxRetries: a.MaxRetries,
		Label:      label,
		Logger:     a.logger,
		Sleep:      a.retrySleep,
	}
}

// CheckIn performs the daily check-in. A missing button with an
// "already checked" page text is ALREADY_DONE, not a failure. The
// outcome message records what was observed.
func (a *Actions) CheckIn(ctx context.Context, page Page) domain.ActionStatus {
	status, err := retry.Do(ctx, a.retryCfg("check-in"), func() (domain.ActionStatus, error) {
		return a.checkInOnce(ctx, page)
	})
	if err != nil {
		return domain.ActionStatus{State: domain.ActionFailed, Message: err.Error()}
	}
	return status
}

func (a *Actions) checkInOnce(ctx context.Context, page Page) (domain.ActionStatus, error) {
	a.logger.Info("attempting check-in")

	if err := ensureDashboard(ctx, page); err != nil {
		return domain.ActionStatus{}, err
	}
	if err := validateHealth(ctx, page); err != nil {
		return domain.ActionStatus{}, err
	}

	if err := a.openSidebar(ctx, page); err != nil {
		return domain.ActionStatus{}, err
	}

	hasButton, err := page.EvaluateBool(ctx, "document.querySelector('#check-in-btn-sidebar') !== null")
	if err != nil {
		return domain.ActionStatus{}, err
	}
	if !hasButton {
		text := bodyText(ctx, page)
		for _, marker := range alreadyDoneMarkers {
			if strings.Contains(text, marker) {
				a.logger.Info("already checked in today")
				return domain.ActionStatus{State: domain.ActionAlreadyDone, Message: "already checked in today"}, nil
			}
		}
		return domain.ActionStatus{}, fmt.Errorf("check-in button not found")
	}

	if _, err := page.Evaluate(ctx, clickExpr("#check-in-btn-sidebar")); err != nil {
		return domain.ActionStatus{}, err
	}
	a.sleep(ctx, 2*time.Second)

	notif, err := page.EvaluateString(ctx, `(() => {
		const notif = document.querySelector('#notification');
		return notif ? (notif.textContent || '').toLowerCase() : '';
	})()`)
	if err != nil {
		return domain.ActionStatus{}, err
	}

	switch {
	case strings.Contains(notif, "success") || strings.Contains(notif, "checked"):
		a.logger.Info("check-in successful")
		return domain.ActionStatus{State: domain.ActionDone, Message: "check-in completed"}, nil
	case strings.Contains(notif, "already") || strings.Contains(notif, "come back"):
		return domain.ActionStatus{State: domain.ActionAlreadyDone, Message: "already checked in today"}, nil
	default:
		// no error notification appeared; treat as done. Best-effort
		// reading, the site gives no positive confirmation here.
		a.logger.Info("check-in possibly completed")
		return domain.ActionStatus{State: domain.ActionDone, Message: "check-in completed"}, nil
	}
}

// Convert exchanges the convertible SHARE balance. Balances at or below
// the threshold are skipped as ALREADY_DONE so the pipeline does not
// count them against the profile.
func (a *Actions) Convert(ctx context.Context, page Page, balance float64) domain.ActionStatus {
	if balance <= a.ConvertThreshold {
		msg := fmt.Sprintf("balance (%.0f) <= %.0f, skipping", balance, a.ConvertThreshold)
		return domain.ActionStatus{State: domain.ActionAlreadyDone, Message: msg}
	}

	status, err := retry.Do(ctx, a.retryCfg("convert"), func() (domain.ActionStatus, error) {
		return a.convertOnce(ctx, page, balance)
	})
	if err != nil {
		return domain.ActionStatus{State: domain.ActionFailed, Message: err.Error()}
	}
	return status
}

func (a *Actions) convertOnce(ctx context.Context, page Page, balance float64) (domain.ActionStatus, error) {
	a.logger.Info("converting SHARE", "balance", balance)

	if err := ensureDashboard(ctx, page); err != nil {
		return domain.ActionStatus{}, err
	}
	if err := validateHealth(ctx, page); err != nil {
		return domain.ActionStatus{}, err
	}
	if err := a.openSidebar(ctx, page); err != nil {
		return domain.ActionStatus{}, err
	}
	if err := a.openConvertPage(ctx, page); err != nil {
		return domain.ActionStatus{}, err
	}

	amount := int64(math.Floor(balance))
	if err := fillInput(ctx, page, "#convert-amount-input", strconv.FormatInt(amount, 10)); err != nil {
		return domain.ActionStatus{}, err
	}

	if _, err := page.Evaluate(ctx, clickExpr("#convert-share-btn")); err != nil {
		return domain.ActionStatus{}, err
	}
	a.sleep(ctx, time.Second)

	if _, err := page.Evaluate(ctx, clickExpr("#modal-confirm-btn")); err != nil {
		return domain.ActionStatus{}, err
	}
	a.sleep(ctx, 2*time.Second)

	a.logger.Info("convert successful", "amount", amount)
	msg := fmt.Sprintf("converted %d SHARE", amount)
	return domain.ActionStatus{State: domain.ActionDone, Message: msg}, nil
}

// ConvertibleBalance reads the convertible SHARE balance from the
// convert page. A zero return with nil error is a real zero balance;
// read failures come back as errors so callers can keep an earlier
// reading instead.
func (a *Actions) ConvertibleBalance(ctx context.Context, page Page) (float64, error) {
	if err := ensureDashboard(ctx, page); err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	if err := validateHealth(ctx, page); err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	if err := a.openSidebar(ctx, page); err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}
	if err := a.openConvertPage(ctx, page); err != nil {
		a.logger.Warn("convert menu not found", "error", err)
	}
	a.sleep(ctx, time.Second)

	text, err := page.EvaluateString(ctx, `(() => {
		const el = document.querySelector('#convertible-share-balance');
		return el ? (el.textContent || '').trim() : '0';
	})()`)
	if err != nil {
		return 0, fmt.Errorf("reading balance: %w", err)
	}

	balance, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable balance %q", text)
	}
	a.logger.Info("convertible SHARE", "balance", balance)
	return balance, nil
}

// CheckInStreak reads the streak value from the dashboard. The card
// lazy-loads, so the whole page is scrolled first. Returns "N/A" when
// the card cannot be found.
func (a *Actions) CheckInStreak(ctx context.Context, page Page) string {
	if err := ensureDashboard(ctx, page); err != nil {
		a.logger.Error("failed to reach dashboard", "error", err)
		return "N/A"
	}
	if err := validateHealth(ctx, page); err != nil {
		a.logger.Error("failed to read streak", "error", err)
		return "N/A"
	}

	if _, err := page.Evaluate(ctx, scrollPageExpr); err != nil {
		a.logger.Warn("page scroll failed", "error", err)
	}
	a.sleep(ctx, time.Second)

	streak, err := page.EvaluateString(ctx, streakExpr)
	if err != nil {
		a.logger.Error("failed to read streak", "error", err)
		return "N/A"
	}
	a.logger.Info("check-in streak", "streak", streak)
	return streak
}

// openSidebar clicks the sidebar toggle and gives it a moment to slide
// out.
func (a *Actions) openSidebar(ctx context.Context, page Page) error {
	if _, err := page.Evaluate(ctx, clickExpr("#openSidebar")); err != nil {
		return err
	}
	a.sleep(ctx, 500*time.Millisecond)
	return nil
}

// openConvertPage clicks the convert entry, the 7th link in the sidebar
// nav. There is no stable id on it.
func (a *Actions) openConvertPage(ctx context.Context, page Page) error {
	clicked, err := page.EvaluateBool(ctx, `(() => {
		const links = document.querySelectorAll('#sidebar nav a');
		if (links.length >= 7) {
			links[6].click();
			return true;
		}
		return false;
	})()`)
	if err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("convert link not found")
	}
	a.sleep(ctx, time.Second)
	return nil
}

// scrollPageExpr scrolls the full document in steps to trigger lazy
// loading of dashboard cards.
const scrollPageExpr = `(async () => {
	const scrollHeight = document.documentElement.scrollHeight;
	const windowHeight = window.innerHeight;
	const steps = 5;
	for (let i = 0; i <= steps; i++) {
		window.scrollTo({top: (scrollHeight - windowHeight) * (i / steps), behavior: 'smooth'});
		await new Promise(resolve => setTimeout(resolve, 300));
	}
	return true;
})()`

// streakExpr finds the check-in streak card by heading text and pulls
// its value, preferring the animation's final text attribute.
const streakExpr = `(() => {
	const containers = ['#dashboard-page', 'main', 'body'];
	for (const container of containers) {
		const parent = document.querySelector(container);
		if (!parent) continue;
		const cards = Array.from(parent.querySelectorAll(':scope > div, div[class*="card"], div[class*="border"]'));
		for (const card of cards) {
			const heading = card.querySelector('h1, h2, h3, h4, h5, h6');
			if (!heading) continue;
			const headingText = (heading.textContent || '').toLowerCase();
			if (!headingText.includes('check-in') || !headingText.includes('streak')) continue;
			const valueEl = card.querySelector('.shuffle-text, .text-3xl, [class*="text-3xl"], [class*="font-bold"]');
			if (!valueEl) continue;
			const attrText = valueEl.getAttribute('data-final-text');
			if (attrText) return attrText;
			const text = (valueEl.textContent || '').trim();
			if (text) return text;
		}
	}
	return 'N/A';
})()`
