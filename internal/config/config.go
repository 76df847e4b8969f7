package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env            string        `mapstructure:"ENV"`
	Port           string        `mapstructure:"PORT"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	StoreDriver    string        `mapstructure:"STORE_DRIVER"`
	JWTSecret      string        `mapstructure:"JWT_SECRET"`
	CORSAllowed    string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`

	SMTPHost     string `mapstructure:"SMTP_HOST"`
	SMTPPort     int    `mapstructure:"SMTP_PORT"`
	SMTPUsername string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword string `mapstructure:"SMTP_PASSWORD"`
	MailFrom     string `mapstructure:"MAIL_FROM"`
	AppBaseURL   string `mapstructure:"APP_BASE_URL"`

	NotifyPollInterval time.Duration `mapstructure:"NOTIFY_POLL_INTERVAL"`
	NotifyBatchSize    int           `mapstructure:"NOTIFY_BATCH_SIZE"`
	NotifyMaxAttempts  int           `mapstructure:"NOTIFY_MAX_ATTEMPTS"`

	AssignmentCASRetries   int           `mapstructure:"ASSIGNMENT_CAS_RETRIES"`
	AssignmentTolerateRace bool          `mapstructure:"ASSIGNMENT_TOLERATE_RACE"`
	RepInactivityWindow    time.Duration `mapstructure:"REP_INACTIVITY_WINDOW"`

	WebsiteRatePerMinute int `mapstructure:"WEBSITE_RATE_PER_MINUTE"`
}

func (c Config) Production() bool {
	return c.Env == "production"
}

func Load() (Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STORE_DRIVER", "postgres")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("MAIL_FROM", "no-reply@tripdesk.local")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")

	v.SetDefault("NOTIFY_POLL_INTERVAL", "5s")
	v.SetDefault("NOTIFY_BATCH_SIZE", 20)
	v.SetDefault("NOTIFY_MAX_ATTEMPTS", 5)

	v.SetDefault("ASSIGNMENT_CAS_RETRIES", 3)
	v.SetDefault("ASSIGNMENT_TOLERATE_RACE", false)
	v.SetDefault("REP_INACTIVITY_WINDOW", "720h")

	v.SetDefault("WEBSITE_RATE_PER_MINUTE", 20)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
