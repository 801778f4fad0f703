// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes bot credentials,
// database paths, access-control parameters, renderer endpoints, delivery
// retry tuning, and observability settings.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RenderConfig holds the remote document-rendering endpoints and client tuning.
type RenderConfig struct {
	FeeURL     string        // RENDER_URL_FEE
	ReceiptURL string        // RENDER_URL_RECEIPT
	Secret     string        // RENDER_SECRET, optional shared-secret header value
	Timeout    time.Duration // RENDER_TIMEOUT per HTTP attempt
}

// Config holds all configuration values for the application.
type Config struct {
	// Transport
	BotToken  string        // BOT_TOKEN (required)
	SendRPS   float64       // per-chat outbound sends per second
	SendBurst int           // per-chat burst size
	PollTO    time.Duration // long-poll timeout
	UploadTO  time.Duration // document upload timeout

	// Ops HTTP server
	Port    string // just the number
	GinMode string // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// Storage
	DBPath       string // SQLite path
	SessionStore string // memory|redis (dialog session driver)
	RedisAddr    string // only for SESSION_STORE=redis

	// Access control
	AllowedChatIDs []int64       // static allow-list
	OperatorIDs    []int64       // user ids permitted to run operator commands
	GrantMaxDays   int           // clamp for temporary grants
	DialogTimeout  time.Duration // dialog abandonment deadline

	// Reporting
	SummaryChatID int64  // chat that receives the daily summary (0 disables)
	SummaryHour   int    // local hour [0..23] for the daily push
	LedgerTZ      string // IANA zone the ledger day is computed in

	// Delivery
	DeliveryAttempts int           // transmit attempts per document
	DeliveryBackoff  time.Duration // linear backoff unit (attempt n waits n*backoff)

	Render RenderConfig
	OTEL   OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Transport
		BotToken:  getenv("BOT_TOKEN", ""),
		SendRPS:   getfloat("SEND_RPS", 1.0),
		SendBurst: getint("SEND_BURST", 3),
		PollTO:    getdur("POLL_TIMEOUT", 50*time.Second),
		UploadTO:  getdur("UPLOAD_TIMEOUT", 180*time.Second),

		// Ops HTTP server
		Port:    getenv("PORT", "8080"),
		GinMode: strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// Storage
		DBPath:       getenv("DB_PATH", "bot.db"),
		SessionStore: strings.ToLower(getenv("SESSION_STORE", "memory")),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),

		// Access control
		AllowedChatIDs: splitInt64CSV(getenv("ALLOWED_CHAT_IDS", "")),
		OperatorIDs:    splitInt64CSV(getenv("OPERATOR_IDS", "")),
		GrantMaxDays:   getint("GRANT_MAX_DAYS", 30),
		DialogTimeout:  getdur("DIALOG_TIMEOUT", 3*time.Minute),

		// Reporting
		SummaryChatID: getint64("SUMMARY_CHAT_ID", 0),
		SummaryHour:   getint("SUMMARY_HOUR", 21),
		LedgerTZ:      getenv("LEDGER_TZ", "Europe/Istanbul"),

		// Delivery
		DeliveryAttempts: getint("DELIVERY_ATTEMPTS", 3),
		DeliveryBackoff:  getdur("DELIVERY_BACKOFF", 2*time.Second),

		Render: RenderConfig{
			FeeURL:     getenv("RENDER_URL_FEE", "https://pdf-admin1.onrender.com/generate"),
			ReceiptURL: getenv("RENDER_URL_RECEIPT", "https://pdf-admin1.onrender.com/dekont"),
			Secret:     getenv("RENDER_SECRET", ""),
			Timeout:    getdur("RENDER_TIMEOUT", 120*time.Second),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "pdftelegram"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.BotToken) == "" {
		return cfg, errors.New("BOT_TOKEN must not be empty")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	switch cfg.SessionStore {
	case "memory", "redis":
	default:
		return cfg, errors.New("SESSION_STORE must be memory or redis")
	}
	if cfg.GrantMaxDays < 1 {
		return cfg, errors.New("GRANT_MAX_DAYS must be >= 1")
	}
	if cfg.DialogTimeout <= 0 {
		return cfg, errors.New("DIALOG_TIMEOUT must be a positive duration")
	}
	if cfg.SummaryHour < 0 || cfg.SummaryHour > 23 {
		return cfg, errors.New("SUMMARY_HOUR must be in [0,23]")
	}
	if cfg.DeliveryAttempts < 1 {
		return cfg, errors.New("DELIVERY_ATTEMPTS must be >= 1")
	}
	if cfg.DeliveryBackoff < 0 {
		return cfg, errors.New("DELIVERY_BACKOFF must be >= 0")
	}
	if cfg.SendRPS < 0 {
		return cfg, errors.New("SEND_RPS must be >= 0")
	}
	if cfg.SendBurst < 1 {
		return cfg, errors.New("SEND_BURST must be >= 1")
	}
	if cfg.UploadTO <= 0 {
		return cfg, errors.New("UPLOAD_TIMEOUT must be a positive duration")
	}
	if cfg.Render.Timeout <= 0 {
		return cfg, errors.New("RENDER_TIMEOUT must be a positive duration")
	}
	if strings.TrimSpace(cfg.Render.FeeURL) == "" || strings.TrimSpace(cfg.Render.ReceiptURL) == "" {
		return cfg, errors.New("RENDER_URL_FEE and RENDER_URL_RECEIPT must not be empty")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getint64(k string, def int64) int64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// splitInt64CSV parses a comma-separated list of integer IDs, skipping blanks
// and malformed entries.
func splitInt64CSV(s string) []int64 {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t == "" {
			continue
		}
		if id, err := strconv.ParseInt(t, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
