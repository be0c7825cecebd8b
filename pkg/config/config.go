package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Checkout     CheckoutConfig
	Stripe       StripeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Eventing     EventingConfig
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
	Env          string `envconfig:"REGENMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"REGENMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"REGENMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REGENMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"REGENMARKET_DB_DSN"`
	Driver string `envconfig:"REGENMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REGENMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"REGENMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REGENMARKET_DB_USER"`
	LegacyPassword string `envconfig:"REGENMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"REGENMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"REGENMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REGENMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REGENMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REGENMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REGENMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REGENMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"REGENMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"REGENMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"REGENMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REGENMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REGENMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REGENMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REGENMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REGENMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"REGENMARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"REGENMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"REGENMARKET_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"REGENMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"REGENMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"REGENMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"REGENMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"REGENMARKET_ARGON_KEY_LEN" default:"32"`
}

type CheckoutConfig struct {
	ShippingFlatCents int `envconfig:"REGENMARKET_CHECKOUT_SHIPPING_FLAT_CENTS" default:"1000"`
	TaxRateBasisPts   int `envconfig:"REGENMARKET_CHECKOUT_TAX_RATE_BPS" default:"1000"`
}

type StripeConfig struct {
	APIKey string `envconfig:"REGENMARKET_STRIPE_API_KEY"`
	Secret string `envconfig:"REGENMARKET_STRIPE_SECRET"`
	Env    string `envconfig:"REGENMARKET_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GCPConfig struct {
	ProjectID              string `envconfig:"REGENMARKET_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"REGENMARKET_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"REGENMARKET_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the event topics and their consumer subscriptions. The
// orders topic fans out to both the notifications and analytics consumers
// through separate subscriptions.
type PubSubConfig struct {
	OrdersTopic              string `envconfig:"REGENMARKET_PUBSUB_ORDERS_TOPIC" default:"rm-order-events"`
	NotificationTopic        string `envconfig:"REGENMARKET_PUBSUB_NOTIFICATION_TOPIC" default:"rm-notification-events"`
	OrdersSubscription       string `envconfig:"REGENMARKET_PUBSUB_ORDERS_SUBSCRIPTION"`
	NotificationSubscription string `envconfig:"REGENMARKET_PUBSUB_NOTIFICATION_SUBSCRIPTION"`
	AnalyticsSubscription    string `envconfig:"REGENMARKET_PUBSUB_ANALYTICS_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"REGENMARKET_BIGQUERY_DATASET" default:"regenmarket"`
	OrderEventsTable string `envconfig:"REGENMARKET_BIGQUERY_ORDER_EVENTS_TABLE" default:"order_events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"REGENMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"REGENMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"REGENMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"REGENMARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
	WebhookTTL     time.Duration `envconfig:"REGENMARKET_WEBHOOK_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REGENMARKET_AUTO_MIGRATE" default:"false"`
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
