// Package otp fetches login verification codes from the profile's
// Gmail inbox. The inbox is opened in a fresh tab of the same browser,
// so the profile's existing Google session is reused; no mail API
// credentials are involved.
package otp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/cdp"
)

const gmailURL = "https://mail.google.com/mail/u/0/"

// codePattern matches the "is: XXXXXX" phrasing of the verification
// mail. anyCode is the fallback when the phrasing changes.
var (
	codePattern = regexp.MustCompile(`is:\s*(\d{6})`)
	anyCode     = regexp.MustCompile(`\b\d{6}\b`)
)

// ErrTimeout means no code appeared within the polling window.
var ErrTimeout = errors.New("OTP timeout")

// Pick selects which of several codes found in one mail to use.
type Pick string

const (
	// PickLast takes the last code on the page. Mails often restate the
	// code at the bottom, and scrolling loads the newest content last.
	PickLast Pick = "last"

	// PickFirst takes the first code, for inboxes that render newest
	// content at the top.
	PickFirst Pick = "first"
)

// TabOpener opens a new browser tab. *cdp.Session satisfies it.
type TabOpener interface {
	OpenTab(ctx context.Context, url string) (*cdp.Client, error)
	CloseTab(ctx context.Context, targetID string) error
}

// Extractor polls Gmail for a Namso verification code. One Extractor
// is shared by every concurrently running pipeline, so it carries no
// mutable per-call state.
type Extractor struct {
	Timeout time.Duration // total polling window, default 60s
	Pick    Pick
	logger  *slog.Logger

	gmailWarn sync.Once

	sleep func(ctx context.Context, d time.Duration)
}

// NewExtractor builds an extractor with the given polling window.
func NewExtractor(timeout time.Duration, pick Pick, logger *slog.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if pick == "" {
		pick = PickLast
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{Timeout: timeout, Pick: pick, logger: logger, sleep: sleepCtx}
}

// Extract polls the inbox every 3s until a code turns up or the window
// elapses. Each poll opens and closes its own Gmail tab so a stale
// inbox view never hides the new mail.
func (e *Extractor) Extract(ctx context.Context, browser TabOpener, account string) (string, error) {
	e.logger.Info("extracting OTP", "account", account)

	deadline := time.Now().Add(e.Timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code, err := e.pollOnce(ctx, browser)
		if err == nil && code != "" {
			e.logger.Info("OTP found", "account", account)
			return code, nil
		}
		if err != nil {
			e.logger.Debug("OTP poll failed", "error", err)
		}

		e.sleep(ctx, 3*time.Second)
	}

	return "", fmt.Errorf("%w (%s)", ErrTimeout, e.Timeout)
}

// pollOnce opens Gmail, finds the newest Namso mail, and reads a code
// out of it. Returns empty without error when the mail is not there
// yet.
func (e *Extractor) pollOnce(ctx context.Context, browser TabOpener) (string, error) {
	tab, err := browser.OpenTab(ctx, gmailURL)
	if err != nil {
		return "", fmt.Errorf("opening Gmail tab: %w", err)
	}
	defer func() {
		tab.Close()
		browser.CloseTab(ctx, tab.TargetID())
	}()

	e.sleep(ctx, 2*time.Second)

	if !e.gmailLoggedIn(ctx, tab) {
		e.gmailWarn.Do(func() { e.logger.Warn("Gmail not logged in") })
		return "", nil
	}
	e.sleep(ctx, 2*time.Second)

	clicked, err := tab.EvaluateBool(ctx, openMailExpr)
	if err != nil {
		return "", err
	}
	if !clicked {
		return "", nil
	}
	e.sleep(ctx, 3*time.Second)

	if _, err := tab.Evaluate(ctx, scrollMailExpr); err != nil {
		return "", err
	}
	e.sleep(ctx, time.Second)

	body, err := tab.EvaluateString(ctx, "document.body ? document.body.innerText : ''")
	if err != nil {
		return "", err
	}
	return FindCode(body, e.Pick), nil
}

func (e *Extractor) gmailLoggedIn(ctx context.Context, tab *cdp.Client) bool {
	url, err := tab.URL(ctx)
	if err != nil {
		return false
	}
	// redirect to a Google login page means the session is gone
	return !strings.Contains(url, "accounts.google.com") && !strings.Contains(url, "ServiceLogin")
}

// FindCode pulls a 6-digit verification code out of mail text. The
// "is: XXXXXX" phrasing wins; any bare 6-digit run is the fallback.
// Returns empty when nothing matches.
func FindCode(text string, pick Pick) string {
	matches := codePattern.FindAllStringSubmatch(text, -1)
	if len(matches) > 0 {
		return pickMatch(matches, pick, 1)
	}

	bare := anyCode.FindAllStringSubmatch(text, -1)
	if len(bare) > 0 {
		return pickMatch(bare, pick, 0)
	}
	return ""
}

func pickMatch(matches [][]string, pick Pick, group int) string {
	if pick == PickFirst {
		return matches[0][group]
	}
	return matches[len(matches)-1][group]
}

// openMailExpr clicks the newest inbox row from Namso.
const openMailExpr = `(() => {
	const rows = Array.from(document.querySelectorAll('[role="listitem"], tr, [data-thread-id]'));
	for (const row of rows) {
		const text = row.textContent || '';
		if (text.includes('Namso') || text.includes('namso.network')) {
			row.click();
			return true;
		}
	}
	return false;
})()`

// scrollMailExpr scrolls the opened mail so long messages load fully.
const scrollMailExpr = `(async () => {
	const scrollHeight = document.documentElement.scrollHeight;
	const steps = 3;
	for (let i = 0; i <= steps; i++) {
		window.scrollTo({top: (scrollHeight * i) / steps, behavior: 'smooth'});
		await new Promise(r => setTimeout(r, 300));
	}
	return true;
})()`

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
