package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	JWTTTL         time.Duration `mapstructure:"JWT_TTL"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	AIProvider    string        `mapstructure:"AI_PROVIDER"`
	OpenAIKey     string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel   string        `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL string        `mapstructure:"OPENAI_BASE_URL"`
	GeminiKey     string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel   string        `mapstructure:"GEMINI_MODEL"`
	AIMaxTokens   int           `mapstructure:"AI_MAX_TOKENS"`
	AITimeout     time.Duration `mapstructure:"AI_TIMEOUT"`

	ClassifierMaxAttempts int           `mapstructure:"CLASSIFIER_MAX_ATTEMPTS"`
	ClassifierBackoff     time.Duration `mapstructure:"CLASSIFIER_BACKOFF"`
	ClassifierCacheTTL    time.Duration `mapstructure:"CLASSIFIER_CACHE_TTL"`

	EnrichWorkers      int    `mapstructure:"ENRICH_WORKERS"`
	EnrichModeEmail    string `mapstructure:"ENRICH_MODE_EMAIL"`
	EnrichModeWhatsApp string `mapstructure:"ENRICH_MODE_WHATSAPP"`
	EnrichModeManual   string `mapstructure:"ENRICH_MODE_MANUAL"`

	WhatsAppVerifyToken string `mapstructure:"WHATSAPP_VERIFY_TOKEN"`

	IMAPHost     string `mapstructure:"IMAP_HOST"`
	IMAPPort     int    `mapstructure:"IMAP_PORT"`
	IMAPUser     string `mapstructure:"IMAP_USER"`
	IMAPPassword string `mapstructure:"IMAP_PASSWORD"`
	IMAPMailbox  string `mapstructure:"IMAP_MAILBOX"`
	IMAPTLS      bool   `mapstructure:"IMAP_TLS"`

	RedisURL   string        `mapstructure:"REDIS_URL"`
	RateLimit  int           `mapstructure:"RATE_LIMIT"`
	RateWindow time.Duration `mapstructure:"RATE_WINDOW"`

	ArchiveBucket   string `mapstructure:"ARCHIVE_BUCKET"`
	ArchiveEndpoint string `mapstructure:"ARCHIVE_ENDPOINT"`
	AWSRegion       string `mapstructure:"AWS_REGION"`
	AWSAccessKey    string `mapstructure:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey    string `mapstructure:"AWS_SECRET_ACCESS_KEY"`
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	setDefaults(v)

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"DATABASE_URL", "JWT_SECRET", "OPENAI_API_KEY", "OPENAI_BASE_URL", "GEMINI_API_KEY",
		"WHATSAPP_VERIFY_TOKEN", "IMAP_HOST", "IMAP_USER", "IMAP_PASSWORD", "REDIS_URL",
		"ARCHIVE_BUCKET", "ARCHIVE_ENDPOINT", "AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("AI_PROVIDER", "auto")
	v.SetDefault("OPENAI_MODEL", "gpt-4o-mini")
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("AI_MAX_TOKENS", 300)
	v.SetDefault("AI_TIMEOUT", "20s")

	v.SetDefault("CLASSIFIER_MAX_ATTEMPTS", 3)
	v.SetDefault("CLASSIFIER_BACKOFF", "300ms")
	v.SetDefault("CLASSIFIER_CACHE_TTL", "10m")

	v.SetDefault("ENRICH_WORKERS", 4)
	v.SetDefault("ENRICH_MODE_EMAIL", "async")
	v.SetDefault("ENRICH_MODE_WHATSAPP", "async")
	v.SetDefault("ENRICH_MODE_MANUAL", "sync")

	v.SetDefault("IMAP_PORT", 993)
	v.SetDefault("IMAP_MAILBOX", "INBOX")
	v.SetDefault("IMAP_TLS", true)

	v.SetDefault("RATE_LIMIT", 300)
	v.SetDefault("RATE_WINDOW", "15m")

	v.SetDefault("AWS_REGION", "us-east-1")
}

// Validate reports settings the process cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	modes := []struct{ name, value string }{
		{"ENRICH_MODE_EMAIL", c.EnrichModeEmail},
		{"ENRICH_MODE_WHATSAPP", c.EnrichModeWhatsApp},
		{"ENRICH_MODE_MANUAL", c.EnrichModeManual},
	}
	for _, m := range modes {
		if m.value != "sync" && m.value != "async" {
			errs = append(errs, fmt.Errorf("%s must be sync or async, got %q", m.name, m.value))
		}
	}
	switch c.AIProvider {
	case "auto", "openai", "gemini", "none":
	default:
		errs = append(errs, fmt.Errorf("AI_PROVIDER must be auto, openai, gemini or none, got %q", c.AIProvider))
	}
	return errors.Join(errs...)
}

func (c Config) IMAPEnabled() bool {
	return c.IMAPHost != "" && c.IMAPUser != ""
}
