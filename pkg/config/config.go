package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	JWT           JWTConfig
	APIKey        string
	Stripe        StripeConfig
	Storage       StorageConfig
	ProfileLookup ProfileLookupConfig
	Email         EmailConfig
	Redis         RedisConfig
	Social        SocialConfig
	Timeouts      TimeoutConfig
	SeedPlans     bool
}

type ServerConfig struct {
	Port         string
	Env          string
	AllowOrigins string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// StorageConfig points at a Cloudflare R2 bucket.
type StorageConfig struct {
	AccountID     string
	AccessKey     string
	SecretKey     string
	Bucket        string
	PublicBaseURL string
}

type ProfileLookupConfig struct {
	APIKey  string
	Host    string
	Timeout time.Duration
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SocialConfig struct {
	ExtraNetworks []string
}

type TimeoutConfig struct {
	Upstream time.Duration
	Database time.Duration
}

// Load reads .env when present and binds the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("CORS_ALLOW_ORIGINS", "*")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("STRIPE_CURRENCY", "usd")
	v.SetDefault("RAPIDAPI_HOST", "linkedin-data-api.p.rapidapi.com")
	v.SetDefault("PROFILE_LOOKUP_TIMEOUT", "10s")
	v.SetDefault("EMAIL_FROM", "Contactbook <noreply@contactbook.app>")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("UPSTREAM_TIMEOUT", "15s")
	v.SetDefault("DATABASE_TIMEOUT", "10s")
	v.SetDefault("SEED_PLANS", false)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("PORT"),
			Env:          v.GetString("APP_ENV"),
			AllowOrigins: v.GetString("CORS_ALLOW_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL: v.GetString("DATABASE_URL"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("JWT_SECRET"),
			TTL:    v.GetDuration("JWT_TTL"),
		},
		APIKey: v.GetString("API_KEY"),
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToLower(v.GetString("STRIPE_CURRENCY")),
		},
		Storage: StorageConfig{
			AccountID:     v.GetString("R2_ACCOUNT_ID"),
			AccessKey:     v.GetString("R2_ACCESS_KEY"),
			SecretKey:     v.GetString("R2_SECRET_KEY"),
			Bucket:        v.GetString("R2_BUCKET_NAME"),
			PublicBaseURL: strings.TrimSuffix(v.GetString("R2_PUBLIC_URL"), "/"),
		},
		ProfileLookup: ProfileLookupConfig{
			APIKey:  v.GetString("RAPIDAPI_KEY"),
			Host:    v.GetString("RAPIDAPI_HOST"),
			Timeout: v.GetDuration("PROFILE_LOOKUP_TIMEOUT"),
		},
		Email: EmailConfig{
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			From:         v.GetString("EMAIL_FROM"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Social: SocialConfig{
			ExtraNetworks: splitList(v.GetString("SOCIAL_NETWORKS")),
		},
		Timeouts: TimeoutConfig{
			Upstream: v.GetDuration("UPSTREAM_TIMEOUT"),
			Database: v.GetDuration("DATABASE_TIMEOUT"),
		},
		SeedPlans: v.GetBool("SEED_PLANS"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing required setting.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	return nil
}

// StorageEnabled reports whether R2 credentials are present.
func (c *Config) StorageEnabled() bool {
	return c.Storage.AccountID != "" && c.Storage.AccessKey != "" && c.Storage.SecretKey != "" && c.Storage.Bucket != ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
