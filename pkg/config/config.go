package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for all environment variables read by the service.
const EnvPrefix = "CARHUB"

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	Mpesa         MpesaConfig
	Payments      PaymentsConfig
	AuthRateLimit AuthRateLimitConfig
}

type AppConfig struct {
	Name            string        `envconfig:"APP_NAME" default:"carhub-api"`
	Env             string        `envconfig:"APP_ENV" default:"development"`
	Host            string        `envconfig:"APP_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"APP_PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
	CORSOrigins     []string      `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
}

type DBConfig struct {
	DSN string `envconfig:"DB_DSN"`

	// Legacy discrete settings, used only when DB_DSN is unset.
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"carhub"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`

	AutoMigrate bool `envconfig:"DB_AUTO_MIGRATE" default:"false"`
}

func (c *DBConfig) ensureDSN() {
	if strings.TrimSpace(c.DSN) != "" {
		return
	}
	c.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr      string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string `envconfig:"REDIS_PASSWORD" default:""`
	DB        int    `envconfig:"REDIS_DB" default:"0"`
	Namespace string `envconfig:"REDIS_NAMESPACE" default:"carhub"`
}

type JWTConfig struct {
	Secret          string        `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`
	Issuer          string        `envconfig:"JWT_ISSUER" default:"carhub-api"`
	AccessTTL       time.Duration `envconfig:"JWT_ACCESS_TTL" default:"15m"`
	RefreshTTL      time.Duration `envconfig:"JWT_REFRESH_TTL" default:"720h"`
	SessionRequired bool          `envconfig:"JWT_SESSION_REQUIRED" default:"true"`
}

type PasswordConfig struct {
	Memory      uint32 `envconfig:"PASSWORD_ARGON_MEMORY" default:"65536"`
	Iterations  uint32 `envconfig:"PASSWORD_ARGON_ITERATIONS" default:"3"`
	Parallelism uint8  `envconfig:"PASSWORD_ARGON_PARALLELISM" default:"2"`
	SaltLength  uint32 `envconfig:"PASSWORD_ARGON_SALT_LENGTH" default:"16"`
	KeyLength   uint32 `envconfig:"PASSWORD_ARGON_KEY_LENGTH" default:"32"`
}

type MpesaConfig struct {
	BaseURL           string        `envconfig:"MPESA_BASE_URL" default:"https://sandbox.safaricom.co.ke"`
	ConsumerKey       string        `envconfig:"MPESA_CONSUMER_KEY" default:""`
	ConsumerSecret    string        `envconfig:"MPESA_CONSUMER_SECRET" default:""`
	ShortCode         string        `envconfig:"MPESA_SHORT_CODE" default:"174379"`
	Passkey           string        `envconfig:"MPESA_PASSKEY" default:""`
	CallbackURL       string        `envconfig:"MPESA_CALLBACK_URL" default:"http://localhost:8080/api/v1/payments/mpesa/callback"`
	HTTPTimeout       time.Duration `envconfig:"MPESA_HTTP_TIMEOUT" default:"30s"`
	SimulateResponses bool          `envconfig:"MPESA_SIMULATE" default:"true"`
}

type PaymentsConfig struct {
	// StartGuardTTL bounds how long a user's in-flight payment blocks a new one.
	StartGuardTTL  time.Duration `envconfig:"PAYMENTS_START_GUARD_TTL" default:"2m"`
	RequestTimeout time.Duration `envconfig:"PAYMENTS_REQUEST_TIMEOUT" default:"2m"`
}

type AuthRateLimitConfig struct {
	LoginWindow     time.Duration `envconfig:"AUTH_RL_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit    int           `envconfig:"AUTH_RL_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit int           `envconfig:"AUTH_RL_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow  time.Duration `envconfig:"AUTH_RL_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit int           `envconfig:"AUTH_RL_REGISTER_IP_LIMIT" default:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}
	cfg.DB.ensureDSN()
	return &cfg, nil
}
