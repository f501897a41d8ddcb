package site

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

// Authenticator drives the Namso login flow.
type Authenticator struct {
	logger *slog.Logger

	// sleep is swappable so tests do not pace in real time
	sleep func(ctx context.Context, d time.Duration)
}

// NewAuthenticator builds the login flow driver.
func NewAuthenticator(logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{logger: logger, sleep: sleepCtx}
}

// IsLoggedIn reports whether the page already carries an authenticated
// session. The dashboard URL is definitive; otherwise a visible email
// input means logged out, and dashboard-only text means logged in.
func (a *Authenticator) IsLoggedIn(ctx context.Context, page Page) bool {
	url, err := page.URL(ctx)
	if err == nil && strings.Contains(url, "dashboard") {
		return true
	}

	hasEmail, err := page.EvaluateBool(ctx, "document.querySelector('#email') !== null")
	if err == nil && hasEmail {
		return false
	}

	text := bodyText(ctx, page)
	for _, marker := range []string{"sign out", "logout", "convert", "check-in"} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Login opens the app and enters credentials. It returns NeedsOTP after
// requesting a verification code; the caller fetches and submits the
// code separately.
func (a *Authenticator) Login(ctx context.Context, page Page, email, password string) (domain.LoginStatus, error) {
	if err := page.Navigate(ctx, BaseURL); err != nil {
		return domain.LoginFailed, fmt.Errorf("opening login page: %w", err)
	}
	a.sleep(ctx, 2*time.Second)

	if a.IsLoggedIn(ctx, page) {
		a.logger.Info("already logged in")
		return domain.LoginAlreadyLoggedIn, nil
	}

	// value assignment instead of typing; autofill can leave stale text
	if err := fillInput(ctx, page, "#email", email); err != nil {
		return domain.LoginFailed, fmt.Errorf("entering email: %w", err)
	}
	if err := fillInput(ctx, page, "#password", password); err != nil {
		return domain.LoginFailed, fmt.Errorf("entering password: %w", err)
	}

	if _, err := page.Evaluate(ctx, clickExpr("#send-code-btn")); err != nil {
		return domain.LoginFailed, fmt.Errorf("requesting verification code: %w", err)
	}
	a.logger.Info("verification code requested")

	a.sleep(ctx, 3*time.Second)
	return domain.LoginNeedsOTP, nil
}

// SubmitOTP enters the code and confirms the session reached the
// dashboard.
func (a *Authenticator) SubmitOTP(ctx context.Context, page Page, code string) (bool, error) {
	if err := fillInput(ctx, page, "#otp", code); err != nil {
		return false, fmt.Errorf("entering code: %w", err)
	}
	a.sleep(ctx, 2*time.Second)

	if onDashboard(ctx, page) {
		return true, nil
	}

	// the confirm button's markup varies; match by text
	clicked, err := page.EvaluateBool(ctx, `(() => {
		const buttons = Array.from(document.querySelectorAll('button'));
		for (const btn of buttons) {
			const text = (btn.textContent || '').toLowerCase();
			if (text.includes('enter') || text.includes('dashboard') || text.includes('verify')) {
				btn.click();
				return true;
			}
		}
		return false;
	})()`)
	if err == nil && clicked {
		a.sleep(ctx, 3*time.Second)
	}

	if !onDashboard(ctx, page) {
		a.logger.Info("navigating to dashboard directly")
		if err := page.Navigate(ctx, DashboardURL); err != nil {
			return false, fmt.Errorf("opening dashboard: %w", err)
		}
		a.sleep(ctx, 2*time.Second)
	}

	return onDashboard(ctx, page), nil
}

func onDashboard(ctx context.Context, page Page) bool {
	url, err := page.URL(ctx)
	return err == nil && strings.Contains(url, "dashboard")
}

// fillInput clears a field and assigns its value directly.
func fillInput(ctx context.Context, page Page, selector, value string) error {
	expr := fmt.Sprintf(`(() => {
		const input = document.querySelector(%q);
		if (!input) return false;
		input.value = '';
		input.focus();
		input.value = %q;
		input.dispatchEvent(new Event('input', {bubbles: true}));
		return true;
	})()`, selector, value)

	ok, err := page.EvaluateBool(ctx, expr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("element %s not found", selector)
	}
	return nil
}

func clickExpr(selector string) string {
	return fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el) el.click();
		return el !== null;
	})()`, selector)
}
