package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App struct {
		Env         string
		Timezone    string
		WebAppURL   string
		BotUsername string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		LogLevel string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Host             string
		Port             string
		ReadTimeout      time.Duration
		WriteTimeout     time.Duration
		AllowedOrigins   []string
		AllowCredentials bool
	}

	Auth struct {
		Verifier       string
		InitDataMaxAge time.Duration
		JWTSecret      string
		JWTTTL         time.Duration
		DevHeader      bool
		AdminKeyHash   string
	}

	Telegram struct {
		BotToken string
		Polling  bool
	}

	AI struct {
		GeminiAPIKey string
		Model        string
		Timeout      time.Duration
	}

	Reminders struct {
		Enabled  bool
		Hour     int
		Interval time.Duration
	}
}

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	VerifierTelegram = "telegram"
	VerifierTrusted  = "trusted"
)

// New loads configuration from .env (when present) and the process environment.
func New() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := &Config{}

	// App
	cfg.App.Env = strings.ToLower(v.GetString("APP_ENV"))
	cfg.App.Timezone = v.GetString("APP_TIMEZONE")
	cfg.App.WebAppURL = v.GetString("WEBAPP_URL")
	cfg.App.BotUsername = v.GetString("BOT_USERNAME")

	// Logger
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Format = v.GetString("LOG_FORMAT")
	cfg.Log.Component = v.GetString("LOG_COMPONENT")
	cfg.Log.Source = v.GetBool("LOG_SOURCE")

	// Database
	cfg.DB.Driver = strings.ToLower(v.GetString("DB_DRIVER"))
	cfg.DB.DSN = v.GetString("DB_DSN")
	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSL_MODE")
	cfg.DB.LogLevel = v.GetString("DB_LOG_LEVEL")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = cfg.buildDSN()
	}

	// Redis
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// gRPC
	cfg.GRPC.Host = v.GetString("GRPC_HOST")
	cfg.GRPC.Port = v.GetString("GRPC_PORT")

	// HTTP
	cfg.HTTP.Host = v.GetString("HTTP_HOST")
	cfg.HTTP.Port = v.GetString("HTTP_PORT")
	cfg.HTTP.ReadTimeout = v.GetDuration("HTTP_READ_TIMEOUT")
	cfg.HTTP.WriteTimeout = v.GetDuration("HTTP_WRITE_TIMEOUT")
	cfg.HTTP.AllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"))
	cfg.HTTP.AllowCredentials = v.GetBool("CORS_ALLOW_CREDENTIALS")

	// Auth
	cfg.Auth.Verifier = strings.ToLower(v.GetString("AUTH_VERIFIER"))
	cfg.Auth.InitDataMaxAge = v.GetDuration("AUTH_INIT_DATA_MAX_AGE")
	cfg.Auth.JWTSecret = v.GetString("JWT_SECRET")
	cfg.Auth.JWTTTL = v.GetDuration("JWT_TTL")
	cfg.Auth.DevHeader = v.GetBool("AUTH_DEV_HEADER")
	cfg.Auth.AdminKeyHash = v.GetString("ADMIN_KEY_HASH")

	// Telegram
	cfg.Telegram.BotToken = v.GetString("BOT_TOKEN")
	cfg.Telegram.Polling = v.GetBool("BOT_POLLING")

	// AI
	cfg.AI.GeminiAPIKey = v.GetString("GEMINI_API_KEY")
	cfg.AI.Model = v.GetString("GEMINI_MODEL")
	cfg.AI.Timeout = v.GetDuration("AI_TIMEOUT")

	// Reminders
	cfg.Reminders.Enabled = v.GetBool("REMINDERS_ENABLED")
	cfg.Reminders.Hour = v.GetInt("REMINDERS_HOUR")
	cfg.Reminders.Interval = v.GetDuration("REMINDERS_INTERVAL")

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("APP_TIMEZONE", "Europe/Moscow")
	v.SetDefault("WEBAPP_URL", "http://localhost:5173")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_COMPONENT", "pulse")

	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "pulse")
	v.SetDefault("DB_PASSWORD", "pulse")
	v.SetDefault("DB_NAME", "pulse")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_LOG_LEVEL", "warn")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("GRPC_HOST", "127.0.0.1")
	v.SetDefault("GRPC_PORT", "50051")

	v.SetDefault("HTTP_HOST", "0.0.0.0")
	v.SetDefault("HTTP_PORT", "3000")
	v.SetDefault("HTTP_READ_TIMEOUT", "15s")
	v.SetDefault("HTTP_WRITE_TIMEOUT", "30s")

	v.SetDefault("AUTH_VERIFIER", VerifierTelegram)
	v.SetDefault("AUTH_INIT_DATA_MAX_AGE", "24h")
	v.SetDefault("JWT_TTL", "168h")

	v.SetDefault("BOT_POLLING", true)

	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("AI_TIMEOUT", "30s")

	v.SetDefault("REMINDERS_ENABLED", true)
	v.SetDefault("REMINDERS_HOUR", 9)
	v.SetDefault("REMINDERS_INTERVAL", "1m")
}

func (c *Config) buildDSN() string {
	switch c.DB.Driver {
	case "mysql":
		port := c.DB.Port
		if port == "" {
			port = "3306"
		}
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			c.DB.User, c.DB.Password, c.DB.Host, port, c.DB.Name,
		)
	case "sqlite":
		return c.DB.Name + ".db"
	default:
		port := c.DB.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			c.DB.Host, port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode,
		)
	}
}

// IsDevelopment reports whether the process runs with APP_ENV=development.
func (c *Config) IsDevelopment() bool { return c.App.Env == EnvDevelopment }

// Location resolves App.Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the settings a production deployment cannot run without.
func (c *Config) Validate() error {
	var errs []error

	switch c.DB.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DB.Driver))
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.App.Timezone, err))
	}

	switch c.Auth.Verifier {
	case VerifierTelegram:
		if c.Telegram.BotToken == "" {
			errs = append(errs, errors.New("BOT_TOKEN is required for telegram initData verification"))
		}
	case VerifierTrusted:
		if !c.IsDevelopment() {
			errs = append(errs, errors.New("AUTH_VERIFIER=trusted is only allowed in development"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_VERIFIER %q", c.Auth.Verifier))
	}

	if c.Auth.DevHeader && !c.IsDevelopment() {
		errs = append(errs, errors.New("AUTH_DEV_HEADER is only allowed in development"))
	}

	if len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters"))
	}

	if c.Reminders.Hour < 0 || c.Reminders.Hour > 23 {
		errs = append(errs, fmt.Errorf("REMINDERS_HOUR must be within 0..23, got %d", c.Reminders.Hour))
	}

	return errors.Join(errs...)
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
