package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App            AppConfig
	Service        ServiceConfig
	DB             DBConfig
	Redis          RedisConfig
	JWT            JWTConfig
	FeatureFlags   FeatureFlagsConfig
	Eventing       EventingConfig
	GCP            GCPConfig
	PubSub         PubSubConfig
	BigQuery       BigQueryConfig
	Square         SquareConfig
	Outbox         OutboxConfig
	Wallet         WalletConfig
	Marketplace    MarketplaceConfig
	Payments       PaymentsConfig
	Reconciliation ReconciliationConfig
	Cron           CronConfig
	RateLimit      RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Reconciliation.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"WALLETCORE_APP_ENV" required:"true"`
	Port         string   `envconfig:"WALLETCORE_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"WALLETCORE_LOG_LEVEL" default:"info"`
	LogFormat    string   `envconfig:"WALLETCORE_LOG_FORMAT" default:"json"`
	LogWarnStack bool     `envconfig:"WALLETCORE_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"WALLETCORE_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"WALLETCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"WALLETCORE_DB_DSN"`
	Driver string `envconfig:"WALLETCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"WALLETCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"WALLETCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WALLETCORE_DB_USER"`
	LegacyPassword string `envconfig:"WALLETCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"WALLETCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"WALLETCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WALLETCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WALLETCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WALLETCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WALLETCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"WALLETCORE_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WALLETCORE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"WALLETCORE_REDIS_ADDR"`
	Password     string        `envconfig:"WALLETCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"WALLETCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WALLETCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WALLETCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WALLETCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WALLETCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WALLETCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret used to verify access tokens issued by
// the forum's auth service.
type JWTConfig struct {
	Secret            string `envconfig:"WALLETCORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WALLETCORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"WALLETCORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"WALLETCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"WALLETCORE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"WALLETCORE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"WALLETCORE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"WALLETCORE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"WALLETCORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	WalletTopic              string `envconfig:"WALLETCORE_PUBSUB_WALLET_TOPIC" default:"wallet-events"`
	EscrowTopic              string `envconfig:"WALLETCORE_PUBSUB_ESCROW_TOPIC" default:"escrow-events"`
	LedgerExportSubscription string `envconfig:"WALLETCORE_PUBSUB_LEDGER_EXPORT_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"WALLETCORE_BIGQUERY_DATASET" default:"walletcore"`
	LedgerTable string `envconfig:"WALLETCORE_BIGQUERY_LEDGER_TABLE" default:"wallet_ledger_entries"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"WALLETCORE_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"WALLETCORE_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"WALLETCORE_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"WALLETCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"WALLETCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"WALLETCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"WALLETCORE_OUTBOX_RETENTION" default:"720h"`
}

// WalletConfig tunes the balance mutator.
type WalletConfig struct {
	MutatorMaxAttempts int           `envconfig:"WALLETCORE_WALLET_MAX_ATTEMPTS" default:"3"`
	RetryBackoff       time.Duration `envconfig:"WALLETCORE_WALLET_RETRY_BACKOFF" default:"25ms"`
	MutationTimeout    time.Duration `envconfig:"WALLETCORE_WALLET_MUTATION_TIMEOUT" default:"5s"`
}

// MarketplaceConfig is the default marketplace policy. CommissionBps is in
// basis points of the listing price.
type MarketplaceConfig struct {
	CommissionBps        int64  `envconfig:"WALLETCORE_MARKETPLACE_COMMISSION_BPS" default:"1000"`
	PremiumCommissionBps int64  `envconfig:"WALLETCORE_MARKETPLACE_PREMIUM_COMMISSION_BPS" default:"500"`
	BoostCostKobo        int64  `envconfig:"WALLETCORE_MARKETPLACE_BOOST_COST_KOBO" default:"50000"`
	BoostHours           int    `envconfig:"WALLETCORE_MARKETPLACE_BOOST_HOURS" default:"24"`
	ActiveListingLimit   int    `envconfig:"WALLETCORE_MARKETPLACE_ACTIVE_LISTING_LIMIT" default:"20"`
	PlatformUserID       string `envconfig:"WALLETCORE_MARKETPLACE_PLATFORM_USER_ID"`
}

type PaymentsConfig struct {
	TipPlatformCutBps     int64         `envconfig:"WALLETCORE_TIP_PLATFORM_CUT_BPS" default:"0"`
	PremiumMonthlyKobo    int64         `envconfig:"WALLETCORE_PREMIUM_MONTHLY_KOBO" default:"200000"`
	PremiumYearlyKobo     int64         `envconfig:"WALLETCORE_PREMIUM_YEARLY_KOBO" default:"2000000"`
	GatewayIdempotencyTTL time.Duration `envconfig:"WALLETCORE_GATEWAY_IDEMPOTENCY_TTL" default:"15m"`
}

// ReconciliationConfig holds the severity tiers, in kobo, applied to the
// absolute drift between a wallet and its ledger.
type ReconciliationConfig struct {
	BatchSize       int           `envconfig:"WALLETCORE_RECON_BATCH_SIZE" default:"500"`
	Interval        time.Duration `envconfig:"WALLETCORE_RECON_INTERVAL" default:"1h"`
	LowThreshold    int64         `envconfig:"WALLETCORE_RECON_LOW_THRESHOLD" default:"10000"`
	MediumThreshold int64         `envconfig:"WALLETCORE_RECON_MEDIUM_THRESHOLD" default:"500000"`
}

func (r ReconciliationConfig) validate() error {
	if r.LowThreshold <= 0 || r.MediumThreshold <= r.LowThreshold {
		return fmt.Errorf("%s must be positive and below %s", EnvReconLowThreshold, EnvReconMediumThreshold)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"WALLETCORE_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"WALLETCORE_CRON_LOCK_TTL" default:"55m"`
	Disabled []string      `envconfig:"WALLETCORE_CRON_DISABLED_JOBS"`
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

// RateLimitConfig throttles money-moving endpoints per user and per IP.
// A zero window disables limiting.
type RateLimitConfig struct {
	Window    time.Duration `envconfig:"WALLETCORE_RATE_LIMIT_WINDOW" default:"1m"`
	UserLimit int           `envconfig:"WALLETCORE_RATE_LIMIT_USER" default:"30"`
	IPLimit   int           `envconfig:"WALLETCORE_RATE_LIMIT_IP" default:"120"`
}
