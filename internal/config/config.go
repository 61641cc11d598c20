package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Database struct {
	Host     string `envconfig:"BLUEPRINT_DB_HOST" default:"localhost"`
	Port     string `envconfig:"BLUEPRINT_DB_PORT" default:"5432"`
	Database string `envconfig:"BLUEPRINT_DB_DATABASE" default:"tourguide"`
	Username string `envconfig:"BLUEPRINT_DB_USERNAME" default:"postgres"`
	Password string `envconfig:"BLUEPRINT_DB_PASSWORD"`
	Schema   string `envconfig:"BLUEPRINT_DB_SCHEMA" default:"public"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"50"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"1h"`
}

func (d Database) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.Username, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     d.Database,
		RawQuery: "sslmode=disable&search_path=" + url.QueryEscape(d.Schema),
	}
	return u.String()
}

type Gateway struct {
	// Kind selects the payment gateway adapter: "stripe" or "mock".
	Kind          string  `envconfig:"PAYMENT_GATEWAY" default:"stripe"`
	Currency      string  `envconfig:"PAYMENT_CURRENCY" default:"usd"`
	StripeSecret  string  `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret string  `envconfig:"STRIPE_WEBHOOK_SECRET"`
	MockFailRate  float64 `envconfig:"MOCK_GATEWAY_FAIL_RATE" default:"0"`
}

type Reconciliation struct {
	Enabled  bool          `envconfig:"RECONCILE_ENABLED" default:"true"`
	Interval time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	MinAge   time.Duration `envconfig:"RECONCILE_MIN_AGE" default:"15m"`
	Batch    int           `envconfig:"RECONCILE_BATCH" default:"100"`
	// Pending intents older than this are cancelled at the gateway.
	ExpireAfter time.Duration `envconfig:"RECONCILE_EXPIRE_AFTER" default:"24h"`
}

type Config struct {
	Env       string `envconfig:"APP_ENV" default:"local"`
	HTTPAddr  string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	RedisURL  string `envconfig:"REDIS_URL"`

	// CORSOrigins is a comma separated list; "*" allows any origin.
	CORSOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	DB        Database
	Gateway   Gateway
	Reconcile Reconciliation
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadDatabase reads only the database settings, for tools that do not
// serve HTTP.
func LoadDatabase() (Database, error) {
	_ = godotenv.Load()

	var d Database
	if err := envconfig.Process("", &d); err != nil {
		return Database{}, fmt.Errorf("load database config: %w", err)
	}
	return d, nil
}

func (c Config) validate() error {
	switch c.Gateway.Kind {
	case "stripe":
		if c.Gateway.StripeSecret == "" {
			return fmt.Errorf("config: STRIPE_SECRET_KEY is required for the stripe gateway")
		}
	case "mock":
	default:
		return fmt.Errorf("config: unknown PAYMENT_GATEWAY %q", c.Gateway.Kind)
	}
	if c.Gateway.WebhookSecret == "" {
		return fmt.Errorf("config: STRIPE_WEBHOOK_SECRET is required")
	}
	return nil
}

func (c Config) Pretty() bool {
	return c.Env == "local"
}
