package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Vipr728/Cascadia/pkg/relay/language"
)

type Config struct {
	Addr string

	// Reply generation.
	GeminiAPIKey string
	GeminiModel  string

	// Post-call analysis backend.
	AnalysisURL     string
	AnalysisTimeout time.Duration

	// Per-call analysis artifacts are written here.
	DataDir string

	DefaultLanguage string

	// Outbound call placement (optional; POST /v1/calls returns 503 when unset).
	TwilioAccountSid string
	TwilioAuthToken  string
	TwilioFrom       string
	TwilioBaseURL    string
	// Externally reachable websocket URL handed to Twilio in TwiML.
	PublicRelayURL string

	MaxJSONMessageBytes int64
	WSWriteTimeout      time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("CASCADIA_ADDR", ":8080"),
		GeminiAPIKey:        envOr("CASCADIA_GEMINI_API_KEY", ""),
		GeminiModel:         envOr("CASCADIA_GEMINI_MODEL", "gemini-1.5-flash"),
		AnalysisURL:         envOr("CASCADIA_ANALYSIS_URL", "http://localhost:3000/api/analysis"),
		AnalysisTimeout:     envDurationOr("CASCADIA_ANALYSIS_TIMEOUT", 60*time.Second),
		DataDir:             envOr("CASCADIA_DATA_DIR", "data/analyses"),
		DefaultLanguage:     envOr("CASCADIA_DEFAULT_LANGUAGE", "en-US"),
		TwilioAccountSid:    envOr("CASCADIA_TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:     envOr("CASCADIA_TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:          envOr("CASCADIA_TWILIO_FROM", ""),
		TwilioBaseURL:       envOr("CASCADIA_TWILIO_BASE_URL", "https://api.twilio.com"),
		PublicRelayURL:      envOr("CASCADIA_PUBLIC_RELAY_URL", ""),
		MaxJSONMessageBytes: envInt64Or("CASCADIA_MAX_JSON_MESSAGE_BYTES", 64*1024),
		WSWriteTimeout:      envDurationOr("CASCADIA_WS_WRITE_TIMEOUT", 5*time.Second),
		ReadHeaderTimeout:   envDurationOr("CASCADIA_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("CASCADIA_READ_TIMEOUT", 0),
		ShutdownGracePeriod: envDurationOr("CASCADIA_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if cfg.GeminiAPIKey == "" {
		return Config{}, fmt.Errorf("CASCADIA_GEMINI_API_KEY must be set")
	}
	if cfg.GeminiModel == "" {
		return Config{}, fmt.Errorf("CASCADIA_GEMINI_MODEL must not be empty")
	}
	if strings.TrimSpace(cfg.AnalysisURL) == "" {
		return Config{}, fmt.Errorf("CASCADIA_ANALYSIS_URL must not be empty")
	}
	if cfg.AnalysisTimeout < 0 {
		return Config{}, fmt.Errorf("CASCADIA_ANALYSIS_TIMEOUT must be >= 0")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return Config{}, fmt.Errorf("CASCADIA_DATA_DIR must not be empty")
	}
	if _, ok := language.ByCode(cfg.DefaultLanguage); !ok {
		return Config{}, fmt.Errorf("CASCADIA_DEFAULT_LANGUAGE %q is not a supported language", cfg.DefaultLanguage)
	}
	if cfg.MaxJSONMessageBytes <= 0 {
		return Config{}, fmt.Errorf("CASCADIA_MAX_JSON_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("CASCADIA_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("CASCADIA_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout < 0 {
		return Config{}, fmt.Errorf("CASCADIA_READ_TIMEOUT must be >= 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("CASCADIA_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	// Twilio is all-or-nothing: a partial credential set is a deployment mistake.
	twilioSet := 0
	for _, v := range []string{cfg.TwilioAccountSid, cfg.TwilioAuthToken, cfg.TwilioFrom} {
		if v != "" {
			twilioSet++
		}
	}
	if twilioSet != 0 && twilioSet != 3 {
		return Config{}, fmt.Errorf("CASCADIA_TWILIO_ACCOUNT_SID, CASCADIA_TWILIO_AUTH_TOKEN and CASCADIA_TWILIO_FROM must be set together")
	}
	if twilioSet == 3 && strings.TrimSpace(cfg.PublicRelayURL) == "" {
		return Config{}, fmt.Errorf("CASCADIA_PUBLIC_RELAY_URL must be set when twilio calling is configured")
	}

	return cfg, nil
}

func (c Config) TwilioConfigured() bool {
	return c.TwilioAccountSid != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
