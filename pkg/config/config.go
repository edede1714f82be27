package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable consumed by the platform.
	EnvPrefix = "MERAKIMART"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "MERAKIMART_DB_DSN"
	EnvDBHost = "MERAKIMART_DB_HOST"
	EnvDBUser = "MERAKIMART_DB_USER"
	EnvDBName = "MERAKIMART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Razorpay      RazorpayConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
	FeatureFlags  FeatureFlagsConfig
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
	Env          string `envconfig:"MERAKIMART_APP_ENV" required:"true"`
	Port         string `envconfig:"MERAKIMART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MERAKIMART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERAKIMART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MERAKIMART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MERAKIMART_DB_DSN"`
	Driver string `envconfig:"MERAKIMART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MERAKIMART_DB_HOST"`
	LegacyPort     int    `envconfig:"MERAKIMART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MERAKIMART_DB_USER"`
	LegacyPassword string `envconfig:"MERAKIMART_DB_PASSWORD"`
	LegacyName     string `envconfig:"MERAKIMART_DB_NAME"`
	LegacySSLMode  string `envconfig:"MERAKIMART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERAKIMART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERAKIMART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERAKIMART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERAKIMART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERAKIMART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MERAKIMART_REDIS_ADDR"`
	Password     string        `envconfig:"MERAKIMART_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERAKIMART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERAKIMART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERAKIMART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERAKIMART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERAKIMART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERAKIMART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"MERAKIMART_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"MERAKIMART_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"MERAKIMART_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"MERAKIMART_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"MERAKIMART_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"MERAKIMART_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"MERAKIMART_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"MERAKIMART_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"MERAKIMART_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"MERAKIMART_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"MERAKIMART_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"MERAKIMART_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"MERAKIMART_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"MERAKIMART_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"MERAKIMART_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// RazorpayConfig carries the payment gateway credentials. KeySecret signs both
// the outgoing basic auth and the incoming payment callback HMAC.
type RazorpayConfig struct {
	KeyID         string        `envconfig:"MERAKIMART_RAZORPAY_KEY_ID"`
	KeySecret     string        `envconfig:"MERAKIMART_RAZORPAY_KEY_SECRET"`
	WebhookSecret string        `envconfig:"MERAKIMART_RAZORPAY_WEBHOOK_SECRET"`
	Currency      string        `envconfig:"MERAKIMART_RAZORPAY_CURRENCY" default:"INR"`
	CallTimeout   time.Duration `envconfig:"MERAKIMART_RAZORPAY_CALL_TIMEOUT" default:"10s"`
	MaxRetries    int           `envconfig:"MERAKIMART_RAZORPAY_MAX_RETRIES" default:"3"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"MERAKIMART_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"MERAKIMART_PUBSUB_ORDERS_TOPIC" default:"mm-order-events"`
	OrdersSubscription string `envconfig:"MERAKIMART_PUBSUB_ORDERS_SUBSCRIPTION" default:"mm-order-events-sub"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MERAKIMART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MERAKIMART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MERAKIMART_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"MERAKIMART_CRON_INTERVAL" default:"1h"`
	PendingPaymentTTL time.Duration `envconfig:"MERAKIMART_PENDING_PAYMENT_TTL" default:"24h"`
	OutboxRetention   time.Duration `envconfig:"MERAKIMART_OUTBOX_RETENTION" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MERAKIMART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MERAKIMART_AUTO_MIGRATE" default:"false"`
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
