package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General GeneralConfig `toml:"general"`
	GPM     GPMConfig     `toml:"gpm"`
	Window  WindowConfig  `toml:"window"`
	OTP     OTPConfig     `toml:"otp"`
	Actions ActionsConfig `toml:"actions"`

	Telegram TelegramConfig `toml:"telegram"`
}

// GeneralConfig holds batch-runner settings
type GeneralConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	ResultsFile     string `toml:"results_file"`
	HistoryDB       string `toml:"history_db"`
	Concurrency     int    `toml:"concurrency"`
	StaggerDelayMs  int    `toml:"stagger_delay_ms"`
	PauseMs         int    `toml:"pause_ms"`
}

// GPMConfig holds GPM-Login API settings
type GPMConfig struct {
	APIBase string `toml:"api_base"`
}

// WindowConfig holds browser window placement settings
type WindowConfig struct {
	ScreenWidth  int     `toml:"screen_width"`
	ScreenHeight int     `toml:"screen_height"`
	WindowWidth  int     `toml:"window_width"`
	WindowHeight int     `toml:"window_height"`
	Padding      int     `toml:"padding"`
	Scale        float64 `toml:"scale"`
}

// OTPConfig holds OTP mailbox extraction settings
type OTPConfig struct {
	TimeoutMs int `toml:"timeout_ms"`
	// Pick selects which code wins when a message carries several:
	// "last" (default, assumes recency ordering) or "first".
	Pick string `toml:"pick"`
}

// ActionsConfig holds site-action tuning
type ActionsConfig struct {
	ConvertThreshold float64 `toml:"convert_threshold"`
	MaxRetries       int     `toml:"max_retries"`
}

// TelegramConfig holds notification settings; empty token disables delivery
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			CredentialsFile: "./config/credentials.xlsx",
			ResultsFile:     "./config/results.xlsx",
			HistoryDB:       "./config/history.db",
			Concurrency:     5,
			StaggerDelayMs:  3000,
			PauseMs:         2000,
		},
		GPM: GPMConfig{
			APIBase: "http://127.0.0.1:19995",
		},
		Window: WindowConfig{
			ScreenWidth:  1920,
			ScreenHeight: 1080,
			WindowWidth:  800,
			WindowHeight: 600,
			Padding:      10,
			Scale:        0.8,
		},
		OTP: OTPConfig{
			TimeoutMs: 60000,
			Pick:      "last",
		},
		Actions: ActionsConfig{
			ConvertThreshold: 10000,
			MaxRetries:       2,
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
// when the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.CredentialsFile = ExpandPath(cfg.General.CredentialsFile)
	cfg.General.ResultsFile = ExpandPath(cfg.General.ResultsFile)
	cfg.General.HistoryDB = ExpandPath(cfg.General.HistoryDB)

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv honors the environment knobs the runner has always accepted.
// They win over the config file so one-off runs need no file edits.
func (c *Config) applyEnv() {
	if v := os.Getenv("CREDENTIALS_FILE"); v != "" {
		c.General.CredentialsFile = v
	}
	if v := os.Getenv("RESULTS_FILE"); v != "" {
		c.General.ResultsFile = v
	}
	if v := os.Getenv("GPM_API_URL"); v != "" {
		c.GPM.APIBase = v
	}
	if v := os.Getenv("MAX_CONCURRENT_PROFILES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.General.Concurrency = n
		}
	}
	if v := os.Getenv("OTP_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.OTP.TimeoutMs = n
		}
	}
	if v := os.Getenv("SCREEN_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Window.ScreenWidth = n
		}
	}
	if v := os.Getenv("SCREEN_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Window.ScreenHeight = n
		}
	}
	// WINDOW_SIZE uses the WIDTHxHEIGHT shorthand, e.g. "800x600".
	if v := os.Getenv("WINDOW_SIZE"); v != "" {
		if w, h, ok := parseWindowSize(v); ok {
			c.Window.WindowWidth = w
			c.Window.WindowHeight = h
		}
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
}

func parseWindowSize(s string) (w, h int, ok bool) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// StaggerDelay returns the launch stagger as a Duration.
func (c *Config) StaggerDelay() time.Duration {
	return time.Duration(c.General.StaggerDelayMs) * time.Millisecond
}

// Pause returns the between-step pacing pause as a Duration.
func (c *Config) Pause() time.Duration {
	return time.Duration(c.General.PauseMs) * time.Millisecond
}

// OTPTimeout returns the OTP polling deadline as a Duration.
func (c *Config) OTPTimeout() time.Duration {
	return time.Duration(c.OTP.TimeoutMs) * time.Millisecond
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	return "./config/namso-checkin.toml"
}
