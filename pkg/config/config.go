package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	Checkout  CheckoutConfig
	Scheduler SchedulerConfig
	Webhook   WebhookConfig
	Reward    RewardConfig
	Flags     FeatureFlagsConfig
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
	Env          string `envconfig:"TOKOKU_APP_ENV" required:"true"`
	Port         string `envconfig:"TOKOKU_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TOKOKU_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TOKOKU_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TOKOKU_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TOKOKU_DB_DSN"`
	Driver string `envconfig:"TOKOKU_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TOKOKU_DB_HOST"`
	LegacyPort     int    `envconfig:"TOKOKU_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TOKOKU_DB_USER"`
	LegacyPassword string `envconfig:"TOKOKU_DB_PASSWORD"`
	LegacyName     string `envconfig:"TOKOKU_DB_NAME"`
	LegacySSLMode  string `envconfig:"TOKOKU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TOKOKU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TOKOKU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TOKOKU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TOKOKU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TOKOKU_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TOKOKU_REDIS_ADDR"`
	Password     string        `envconfig:"TOKOKU_REDIS_PASSWORD"`
	DB           int           `envconfig:"TOKOKU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TOKOKU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TOKOKU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TOKOKU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TOKOKU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TOKOKU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CheckoutConfig bounds the reservation and pending-payment windows.
type CheckoutConfig struct {
	HoldWindow      time.Duration `envconfig:"TOKOKU_CHECKOUT_HOLD_WINDOW" default:"10m"`
	PendingOrderTTL time.Duration `envconfig:"TOKOKU_CHECKOUT_PENDING_ORDER_TTL" default:"24h"`
}

type SchedulerConfig struct {
	Interval time.Duration `envconfig:"TOKOKU_SCHEDULER_INTERVAL" default:"15m"`
	LockTTL  time.Duration `envconfig:"TOKOKU_SCHEDULER_LOCK_TTL" default:"30m"`
}

// WebhookConfig guards the payment gateway callback and the scheduler trigger.
type WebhookConfig struct {
	APIKey string `envconfig:"TOKOKU_WEBHOOK_API_KEY" required:"true"`
}

// RewardConfig drives the top-spender voucher grant job.
type RewardConfig struct {
	VoucherCode string        `envconfig:"TOKOKU_REWARD_VOUCHER_CODE" default:""`
	Window      time.Duration `envconfig:"TOKOKU_REWARD_WINDOW" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TOKOKU_AUTO_MIGRATE" default:"false"`
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
