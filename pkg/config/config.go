package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "TABLETALK_DB_DSN"
	EnvDBHost = "TABLETALK_DB_HOST"
	EnvDBUser = "TABLETALK_DB_USER"
	EnvDBName = "TABLETALK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	Twilio       TwilioConfig
	VoiceAgent   VoiceAgentConfig
	Eventing     EventingConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TABLETALK_APP_ENV" required:"true"`
	Port         string `envconfig:"TABLETALK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TABLETALK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TABLETALK_LOG_WARN_STACK" default:"false"`

	// PublicURL is the browser-facing origin used for checkout/portal
	// redirects. Endpoints that need it fail with a 500 when it is unset.
	PublicURL string `envconfig:"TABLETALK_PUBLIC_APP_URL"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TABLETALK_DB_DSN"`
	Driver string `envconfig:"TABLETALK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TABLETALK_DB_HOST"`
	LegacyPort     int    `envconfig:"TABLETALK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TABLETALK_DB_USER"`
	LegacyPassword string `envconfig:"TABLETALK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TABLETALK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TABLETALK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TABLETALK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TABLETALK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TABLETALK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TABLETALK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TABLETALK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TABLETALK_REDIS_ADDR"`
	Password     string        `envconfig:"TABLETALK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TABLETALK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TABLETALK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TABLETALK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TABLETALK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TABLETALK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TABLETALK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies access tokens minted by the hosted auth provider.
type JWTConfig struct {
	Secret string `envconfig:"TABLETALK_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"TABLETALK_JWT_ISSUER" required:"true"`
}

type StripeConfig struct {
	APIKey              string `envconfig:"TABLETALK_STRIPE_API_KEY"`
	WebhookSecret       string `envconfig:"TABLETALK_STRIPE_WEBHOOK_SECRET"`
	Env                 string `envconfig:"TABLETALK_STRIPE_ENV" default:"test"`
	BasicPriceID        string `envconfig:"TABLETALK_STRIPE_BASIC_PRICE_ID"`
	ProfessionalPriceID string `envconfig:"TABLETALK_STRIPE_PROFESSIONAL_PRICE_ID"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// IsConfigured reports whether the Stripe integration can be wired at all.
func (s StripeConfig) IsConfigured() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.WebhookSecret) != ""
}

type TwilioConfig struct {
	AccountSID string `envconfig:"TABLETALK_TWILIO_ACCOUNT_SID"`
	AuthToken  string `envconfig:"TABLETALK_TWILIO_AUTH_TOKEN"`
	Country    string `envconfig:"TABLETALK_TWILIO_COUNTRY" default:"GB"`
}

// IsConfigured reports whether telephony provisioning can be wired.
func (t TwilioConfig) IsConfigured() bool {
	return strings.TrimSpace(t.AccountSID) != "" && strings.TrimSpace(t.AuthToken) != ""
}

type VoiceAgentConfig struct {
	BaseURL string `envconfig:"TABLETALK_VOICE_AGENT_URL"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"TABLETALK_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

type RateLimitConfig struct {
	ProvisionWindow time.Duration `envconfig:"TABLETALK_RATE_LIMIT_PROVISION_WINDOW" default:"1m"`
	ProvisionLimit  int64         `envconfig:"TABLETALK_RATE_LIMIT_PROVISION_LIMIT" default:"3"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TABLETALK_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
