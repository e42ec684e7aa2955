package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

type Config struct {
	Port string

	// Model
	LLMProvider    string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	Model          string
	Temperature    float64
	MaxTokens      int
	PromptMaxChars int
	CollationLang  string

	// Uploads
	UploadDir      string
	MaxUploadBytes int64
	PreviewCount   int

	// Admission (per IP / process)
	RateLimitEvery        time.Duration
	RateLimitBurst        int
	MaxConcurrentRequests int64

	// Server timeouts
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration

	// Export
	ExportFontPath string

	LogLevel string
}

// Load reads .env (if present) and then the process environment.
func Load() Config {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from the current environment only. Unparseable
// values fall back to defaults; out-of-range ones are kept for Validate.
func FromEnv() Config {
	return Config{
		Port: envStr("PORT", "3000"),

		LLMProvider:    strings.ToLower(envStr("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIAPIKey:   envStr("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  envStr("OPENAI_BASE_URL", ""),
		Model:          envStr("OPENAI_MODEL", "gpt-4-turbo"),
		Temperature:    envFloat("LLM_TEMPERATURE", 0.7),
		MaxTokens:      envInt("LLM_MAX_TOKENS", 4000),
		PromptMaxChars: envInt("PROMPT_MAX_CHARS", 8000),
		CollationLang:  envStr("COLLATION_LANG", "he"),

		UploadDir:      envStr("UPLOAD_DIR", "./uploads"),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 50<<20)),
		PreviewCount:   envInt("PREVIEW_COUNT", 5),

		RateLimitEvery:        envDur("RATE_LIMIT_EVERY", 2*time.Second),
		RateLimitBurst:        envInt("RATE_LIMIT_BURST", 10),
		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 8)),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 5*time.Minute),
		ShutdownTimeout:   envDur("SHUTDOWN_TIMEOUT", 15*time.Second),

		ExportFontPath: envStr("EXPORT_FONT_PATH", ""),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}
}

func (c Config) Validate() error {
	switch c.LLMProvider {
	case ProviderOpenAI:
		if strings.TrimSpace(c.OpenAIAPIKey) == "" {
			return eris.New("OPENAI_API_KEY environment variable is not set")
		}
	case ProviderMock:
	default:
		return eris.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	if _, err := language.Parse(c.CollationLang); err != nil {
		return eris.Wrapf(err, "COLLATION_LANG %q", c.CollationLang)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return eris.Errorf("LLM_TEMPERATURE must be within [0, 2], got %v", c.Temperature)
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return eris.New("UPLOAD_DIR must not be empty")
	}
	for _, l := range []struct {
		key string
		v   int64
	}{
		{"LLM_MAX_TOKENS", int64(c.MaxTokens)},
		{"PROMPT_MAX_CHARS", int64(c.PromptMaxChars)},
		{"MAX_UPLOAD_BYTES", c.MaxUploadBytes},
		{"PREVIEW_COUNT", int64(c.PreviewCount)},
		{"RATE_LIMIT_EVERY", int64(c.RateLimitEvery)},
		{"RATE_LIMIT_BURST", int64(c.RateLimitBurst)},
		{"MAX_CONCURRENT_REQUESTS", c.MaxConcurrentRequests},
		{"READ_HEADER_TIMEOUT", int64(c.ReadHeaderTimeout)},
		{"WRITE_TIMEOUT", int64(c.WriteTimeout)},
		{"SHUTDOWN_TIMEOUT", int64(c.ShutdownTimeout)},
	} {
		if l.v <= 0 {
			return eris.Errorf("%s must be positive", l.key)
		}
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
