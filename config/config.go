package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	Env               string `mapstructure:"ENV"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`
	CORSOrigins       string `mapstructure:"CORS_ORIGINS"`

	// Secret used to sign renderer tokens for the local kiosk API.
	// Empty disables token checks.
	KioskAPISecret string `mapstructure:"KIOSK_API_SECRET"`

	// Print backend.
	APIBaseURL   string        `mapstructure:"API_BASE_URL"`
	APITimeout   time.Duration `mapstructure:"API_TIMEOUT"`
	APIAuthToken string        `mapstructure:"API_AUTH_TOKEN"`

	// Checkout collaborator.
	CheckoutKey  string `mapstructure:"CHECKOUT_KEY"`
	CheckoutName string `mapstructure:"CHECKOUT_NAME"`
	Currency     string `mapstructure:"CURRENCY"`

	// Workflow timing.
	PollInterval      time.Duration `mapstructure:"POLL_INTERVAL"`
	CountdownInterval time.Duration `mapstructure:"COUNTDOWN_INTERVAL"`
	AutoAdvanceDelay  time.Duration `mapstructure:"AUTO_ADVANCE_DELAY"`

	// "multipart" or "presigned".
	UploadMode string `mapstructure:"UPLOAD_MODE"`

	// "memory" or "redis".
	SessionCache string `mapstructure:"SESSION_CACHE"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`

	// Cloudinary configuration, used for document previews.
	CloudinaryCloudName string `mapstructure:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
}

var AppConfig Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8090")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("MAX_REQUESTS_PER_MIN", 120)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("KIOSK_API_SECRET", "")
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("API_TIMEOUT", 30*time.Second)
	v.SetDefault("API_AUTH_TOKEN", "")
	v.SetDefault("CHECKOUT_KEY", "")
	v.SetDefault("CHECKOUT_NAME", "ATP Printing System")
	v.SetDefault("CURRENCY", "INR")
	v.SetDefault("POLL_INTERVAL", 2*time.Second)
	v.SetDefault("COUNTDOWN_INTERVAL", time.Second)
	v.SetDefault("AUTO_ADVANCE_DELAY", 2*time.Second)
	v.SetDefault("UPLOAD_MODE", "multipart")
	v.SetDefault("SESSION_CACHE", "memory")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_CACHE_DB", 0)
	v.SetDefault("CLOUDINARY_CLOUD_NAME", "")
	v.SetDefault("CLOUDINARY_API_KEY", "")
	v.SetDefault("CLOUDINARY_API_SECRET", "")
}

// LoadConfig reads config.yaml (current or ./config directory), environment
// variables and defaults into AppConfig.
func LoadConfig() {
	cfg, err := Load(viper.GetViper(), ".", "./config")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	AppConfig = cfg
}

// Load builds a Config from v. Missing config files are not an error.
func Load(v *viper.Viper, paths ...string) (Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("No config file found, using environment variables only")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the workflow cannot run with.
func (c Config) Validate() error {
	switch c.UploadMode {
	case "multipart", "presigned":
	default:
		return fmt.Errorf("invalid UPLOAD_MODE %q", c.UploadMode)
	}
	switch c.SessionCache {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid SESSION_CACHE %q", c.SessionCache)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.CountdownInterval <= 0 {
		return fmt.Errorf("COUNTDOWN_INTERVAL must be positive")
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	return nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// CloudinaryEnabled reports whether preview credentials are complete.
func (c Config) CloudinaryEnabled() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
