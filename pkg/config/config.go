package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Settlement   SettlementConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Settlement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"HOTMESS_APP_ENV" required:"true"`
	Port         string `envconfig:"HOTMESS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"HOTMESS_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"HOTMESS_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"HOTMESS_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"HOTMESS_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"HOTMESS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN string `envconfig:"HOTMESS_DB_DSN"`

	LegacyHost     string `envconfig:"HOTMESS_DB_HOST"`
	LegacyPort     int    `envconfig:"HOTMESS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"HOTMESS_DB_USER"`
	LegacyPassword string `envconfig:"HOTMESS_DB_PASSWORD"`
	LegacyName     string `envconfig:"HOTMESS_DB_NAME"`
	LegacySSLMode  string `envconfig:"HOTMESS_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"HOTMESS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"HOTMESS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"HOTMESS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"HOTMESS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"HOTMESS_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"HOTMESS_REDIS_URL"`
	Address      string        `envconfig:"HOTMESS_REDIS_ADDR"`
	Password     string        `envconfig:"HOTMESS_REDIS_PASSWORD"`
	DB           int           `envconfig:"HOTMESS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"HOTMESS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"HOTMESS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"HOTMESS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"HOTMESS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"HOTMESS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the Supabase project's access token verification settings.
type JWTConfig struct {
	Secret string `envconfig:"HOTMESS_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"HOTMESS_JWT_ISSUER"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"HOTMESS_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	WebhookReceiptTTL time.Duration `envconfig:"HOTMESS_EVENTING_WEBHOOK_RECEIPT_TTL" default:"72h"`
	IdempotencyKeyTTL time.Duration `envconfig:"HOTMESS_EVENTING_IDEMPOTENCY_KEY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"HOTMESS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	SettlementTopic string `envconfig:"HOTMESS_PUBSUB_SETTLEMENT_TOPIC" default:"hotmess-settlement-events"`
}

type OutboxConfig struct {
	BatchSize      int    `envconfig:"HOTMESS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int    `envconfig:"HOTMESS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int    `envconfig:"HOTMESS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MetricsAddr    string `envconfig:"HOTMESS_OUTBOX_METRICS_ADDR" default:":9091"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"HOTMESS_CRON_INTERVAL" default:"5m"`
	LockTTL     time.Duration `envconfig:"HOTMESS_CRON_LOCK_TTL" default:"4m"`
	ReconcileOn bool          `envconfig:"HOTMESS_CRON_RECONCILE_ENABLED" default:"true"`
}

type StripeConfig struct {
	APIKey            string `envconfig:"HOTMESS_STRIPE_API_KEY"`
	Secret            string `envconfig:"HOTMESS_STRIPE_WEBHOOK_SECRET"`
	Env               string `envconfig:"HOTMESS_STRIPE_ENV" default:"test"`
	SuccessURL        string `envconfig:"HOTMESS_STRIPE_SUCCESS_URL" default:"https://hotmessldn.com/checkout/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL         string `envconfig:"HOTMESS_STRIPE_CANCEL_URL" default:"https://hotmessldn.com/checkout/cancelled"`
	ConnectRefreshURL string `envconfig:"HOTMESS_STRIPE_CONNECT_REFRESH_URL" default:"https://hotmessldn.com/seller/onboarding"`
	ConnectReturnURL  string `envconfig:"HOTMESS_STRIPE_CONNECT_RETURN_URL" default:"https://hotmessldn.com/seller/dashboard"`
	ConnectCountry    string `envconfig:"HOTMESS_STRIPE_CONNECT_COUNTRY" default:"GB"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// SettlementConfig carries the pricing and release parameters shared by checkout,
// settlement and escrow release.
type SettlementConfig struct {
	PlatformFeeRate      string        `envconfig:"HOTMESS_PLATFORM_FEE_RATE" default:"0.10"`
	XPPerMinorUnit       int64         `envconfig:"HOTMESS_XP_PER_MINOR_UNIT" default:"1"`
	CreditPriceCents     string        `envconfig:"HOTMESS_CREDIT_PRICE_CENTS" default:"100"`
	CreditMaxPerPurchase int64         `envconfig:"HOTMESS_CREDIT_MAX_PER_PURCHASE" default:"10000"`
	PickupRadiusMeters   float64       `envconfig:"HOTMESS_PICKUP_RADIUS_METERS" default:"50"`
	BeaconTTL            time.Duration `envconfig:"HOTMESS_PICKUP_BEACON_TTL" default:"2h"`
	PlatformAccountID    string        `envconfig:"HOTMESS_PLATFORM_ACCOUNT_ID" default:"00000000-0000-0000-0000-000000000001"`
	DefaultCurrency      string        `envconfig:"HOTMESS_DEFAULT_CURRENCY" default:"gbp"`
}

// FeeRate parses the platform fee rate.
func (s SettlementConfig) FeeRate() decimal.Decimal {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.PlatformFeeRate))
	if err != nil {
		return decimal.Zero
	}
	return rate
}

// CreditPrice parses the per-credit price in minor units.
func (s SettlementConfig) CreditPrice() decimal.Decimal {
	price, err := decimal.NewFromString(strings.TrimSpace(s.CreditPriceCents))
	if err != nil {
		return decimal.Zero
	}
	return price
}

func (s SettlementConfig) validate() error {
	rate, err := decimal.NewFromString(strings.TrimSpace(s.PlatformFeeRate))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvPlatformFeeRate, err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be within [0, 1]", EnvPlatformFeeRate)
	}
	price, err := decimal.NewFromString(strings.TrimSpace(s.CreditPriceCents))
	if err != nil {
		return fmt.Errorf("%s: %w", EnvCreditPriceCents, err)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%s must be positive", EnvCreditPriceCents)
	}
	if s.XPPerMinorUnit <= 0 {
		return fmt.Errorf("%s must be positive", EnvXPPerMinorUnit)
	}
	if s.PickupRadiusMeters <= 0 {
		return fmt.Errorf("%s must be positive", EnvPickupRadiusMeters)
	}
	return nil
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
