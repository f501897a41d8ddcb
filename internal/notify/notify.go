package notify

import "github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"

// Notifier delivers per-profile alerts and the end-of-batch report.
// Delivery is best-effort throughout; a notification failure must never
// fail a run.
type Notifier interface {
	Alert(account, message string) error
	Report(summary domain.Summary, results []domain.Result) error
}

// MultiNotifier fans out to several notifiers.
type MultiNotifier struct {
	notifiers []Notifier
}

// NewMultiNotifier creates a notifier that sends to all provided notifiers.
func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Alert sends the alert to all notifiers, returning the last error.
func (m *MultiNotifier) Alert(account, message string) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Alert(account, message); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Report sends the report to all notifiers, returning the last error.
func (m *MultiNotifier) Report(summary domain.Summary, results []domain.Result) error {
	var lastErr error
	for _, n := range m.notifiers {
		if err := n.Report(summary, results); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// NoopNotifier does nothing (for testing or disabled notifications).
type NoopNotifier struct{}

func (NoopNotifier) Alert(account, message string) error { return nil }

func (NoopNotifier) Report(summary domain.Summary, results []domain.Result) error { return nil }
