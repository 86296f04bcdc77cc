package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "SHOPORA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Cron    CronConfig
	Payment PaymentConfig
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
	Env          string `envconfig:"SHOPORA_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPORA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPORA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPORA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHOPORA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPORA_DB_DSN"`
	Driver string `envconfig:"SHOPORA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHOPORA_DB_HOST"`
	Port     int    `envconfig:"SHOPORA_DB_PORT" default:"5432"`
	User     string `envconfig:"SHOPORA_DB_USER"`
	Password string `envconfig:"SHOPORA_DB_PASSWORD"`
	Name     string `envconfig:"SHOPORA_DB_NAME"`
	SSLMode  string `envconfig:"SHOPORA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPORA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPORA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPORA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPORA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHOPORA_REDIS_URL"`
	Address      string        `envconfig:"SHOPORA_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPORA_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPORA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPORA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPORA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPORA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPORA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPORA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPORA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPORA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPORA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type CronConfig struct {
	Interval    time.Duration `envconfig:"SHOPORA_CRON_INTERVAL" default:"1h"`
	ItemTimeout time.Duration `envconfig:"SHOPORA_CRON_ITEM_TIMEOUT" default:"30s"`
}

type PaymentConfig struct {
	ExpirationDays int `envconfig:"SHOPORA_PAYMENT_EXPIRATION_DAYS" default:"3"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"SHOPORA_DB_HOST": db.Host,
		"SHOPORA_DB_USER": db.User,
		"SHOPORA_DB_NAME": db.Name,
	}
	for _, envVar := range []string{"SHOPORA_DB_HOST", "SHOPORA_DB_USER", "SHOPORA_DB_NAME"} {
		if required[envVar] == "" {
			missing = append(missing, envVar)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either SHOPORA_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
