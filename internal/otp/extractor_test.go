package otp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/cdp"
)

func TestFindCodePrefersPhrasedMatch(t *testing.T) {
	text := "Order 123456 confirmed. Your verification code is: 654321. Thanks."
	if got := FindCode(text, PickLast); got != "654321" {
		t.Errorf("code = %q, want 654321", got)
	}
}

func TestFindCodeTakesLastPhrasedMatch(t *testing.T) {
	text := "Your code is: 111111. Reminder, your code is: 222222."
	if got := FindCode(text, PickLast); got != "222222" {
		t.Errorf("code = %q, want 222222", got)
	}
}

func TestFindCodeFirstStrategy(t *testing.T) {
	text := "Your code is: 111111. Reminder, your code is: 222222."
	if got := FindCode(text, PickFirst); got != "111111" {
		t.Errorf("code = %q, want 111111", got)
	}
}

func TestFindCodeFallsBackToBareDigits(t *testing.T) {
	text := "Welcome back. Use 987654 to continue."
	if got := FindCode(text, PickLast); got != "987654" {
		t.Errorf("code = %q, want 987654", got)
	}
}

func TestFindCodeEmptyWhenNothingMatches(t *testing.T) {
	if got := FindCode("no codes here, just 12345 and 1234567", PickLast); got != "" {
		t.Errorf("code = %q, want empty", got)
	}
}

func newTestExtractor(timeout time.Duration) *Extractor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewExtractor(timeout, PickLast, logger)
	e.sleep = func(ctx context.Context, d time.Duration) {}
	return e
}

// failingOpener never produces a tab.
type failingOpener struct{}

func (failingOpener) OpenTab(ctx context.Context, url string) (*cdp.Client, error) {
	return nil, errors.New("browser gone")
}

func (failingOpener) CloseTab(ctx context.Context, targetID string) error { return nil }

func TestExtractTimesOutWhenNoCodeAppears(t *testing.T) {
	e := newTestExtractor(30 * time.Millisecond)
	_, err := e.Extract(context.Background(), failingOpener{}, "a@b.c")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestExtractStopsOnCancelledContext(t *testing.T) {
	e := newTestExtractor(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Extract(ctx, failingOpener{}, "a@b.c")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

// loggedOutBrowser serves DevTools tab endpoints whose only page
// reports a Google login URL, the logged-out-of-Gmail case.
func loggedOutBrowser(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/json/new", func(w http.ResponseWriter, r *http.Request) {
		wsBase := "ws" + strings.TrimPrefix(srv.URL, "http")
		json.NewEncoder(w).Encode(map[string]string{
			"id":                   "tab-1",
			"type":                 "page",
			"webSocketDebuggerUrl": wsBase + "/devtools/page/tab-1",
		})
	})
	mux.HandleFunc("/json/close/", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("/devtools/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var cmd struct {
				ID int64 `json:"id"`
			}
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			reply := map[string]any{
				"id": cmd.ID,
				"result": map[string]any{
					"result": map[string]any{
						"type":  "string",
						"value": "https://accounts.google.com/ServiceLogin",
					},
				},
			}
			if err := conn.WriteJSON(reply); err != nil {
				return
			}
		}
	})
	srv = httptest.NewServer(mux)
	return srv
}

func TestExtractSafeAcrossConcurrentPipelines(t *testing.T) {
	srv := loggedOutBrowser(t)
	defer srv.Close()
	session := cdp.NewSession(strings.TrimPrefix(srv.URL, "http://"))

	e := newTestExtractor(50 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Extract(context.Background(), session, "a@b.c"); !errors.Is(err, ErrTimeout) {
				t.Errorf("err = %v, want ErrTimeout", err)
			}
		}()
	}
	wg.Wait()
}
