// Package site automates the Namso web app through a DevTools page
// connection: login with OTP challenge, daily check-in, SHARE
// conversion, and balance/streak reads. Selectors come from a recorded
// session against app.namso.network; if the site's markup changes they
// have to be re-recorded.
package site

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	// BaseURL is the app's landing page; unauthenticated visits show
	// the login form here.
	BaseURL = "https://app.namso.network/"

	// DashboardURL is where authenticated sessions land.
	DashboardURL = "https://app.namso.network/dashboard/"
)

// serverErrorPatterns flag a page that is not worth interacting with.
var serverErrorPatterns = []string{
	"502 bad gateway",
	"503 service unavailable",
	"service unavailable",
	"maintenance mode",
	"under maintenance",
	"server error",
	"cloudflare",
}

// Page is the slice of the DevTools client the automation needs.
// *cdp.Client satisfies it.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Evaluate(ctx context.Context, expr string) (json.RawMessage, error)
	EvaluateString(ctx context.Context, expr string) (string, error)
	EvaluateBool(ctx context.Context, expr string) (bool, error)
	URL(ctx context.Context) (string, error)
}

// bodyText reads the page's visible text, lowercased. Read failures
// yield an empty string; callers treat that as "nothing matched".
func bodyText(ctx context.Context, page Page) string {
	text, err := page.EvaluateString(ctx, "document.body ? document.body.innerText : ''")
	if err != nil {
		return ""
	}
	return strings.ToLower(text)
}

// validateHealth fails when the page shows a server-side error screen
// instead of the app.
func validateHealth(ctx context.Context, page Page) error {
	text := bodyText(ctx, page)
	for _, pattern := range serverErrorPatterns {
		if strings.Contains(text, pattern) {
			return fmt.Errorf("server error detected: %s", pattern)
		}
	}
	return nil
}

// ensureDashboard navigates to the dashboard unless already there.
func ensureDashboard(ctx context.Context, page Page) error {
	url, err := page.URL(ctx)
	if err == nil && strings.Contains(url, "dashboard") {
		return nil
	}
	return page.Navigate(ctx, DashboardURL)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
