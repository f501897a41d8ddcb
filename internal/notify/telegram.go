package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/domain"
)

// TelegramNotifier sends alerts and batch reports through the Telegram
// Bot API. With no token or chat id it stays silently disabled.
type TelegramNotifier struct {
	token  string
	chatID string
	client *http.Client

	// apiBase is overridable for tests
	apiBase string
}

// telegramMessage is the sendMessage payload.
type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// NewTelegramNotifier creates a notifier for the given bot token and
// chat id. Either being empty disables delivery.
func NewTelegramNotifier(token, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: "https://api.telegram.org",
	}
}

// Enabled reports whether delivery is configured.
func (t *TelegramNotifier) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// Alert reports one profile's failure.
func (t *TelegramNotifier) Alert(account, message string) error {
	if !t.Enabled() {
		return nil
	}
	text := fmt.Sprintf("⚠️ *Namso Alert*\n\n📧 *Profile:* %s\n❗ *Issue:* %s", account, message)
	return t.send(text)
}

// Report delivers the end-of-batch summary, listing failed profiles
// when there are any.
func (t *TelegramNotifier) Report(summary domain.Summary, results []domain.Result) error {
	if !t.Enabled() {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Namso Check-in Report*\n")
	fmt.Fprintf(&b, "⏰ %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "✅ *Success:* %d\n", summary.Processed-len(summary.FailureList))
	fmt.Fprintf(&b, "❌ *Failed:* %d\n", len(summary.FailureList))
	fmt.Fprintf(&b, "📈 *Total SHARE:* %s\n", humanize.CommafWithDigits(summary.TotalShare, 2))

	if len(summary.FailureList) > 0 {
		fmt.Fprintf(&b, "\n🚨 *Failed Profiles:*\n")
		for _, r := range summary.FailureList {
			reason := r.Error
			if reason == "" {
				reason = "unknown error"
			}
			fmt.Fprintf(&b, "• %s: %s\n", r.Email, reason)
		}
	}

	return t.send(b.String())
}

func (t *TelegramNotifier) send(text string) error {
	payload, err := json.Marshal(telegramMessage{
		ChatID:    t.chatID,
		Text:      text,
		ParseMode: "Markdown",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}
	return nil
}
