package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security"`
	Rates         RatesConfig         `mapstructure:"rates"`
	Oracle        OracleConfig        `mapstructure:"distance_oracle"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source"`
}

type SecurityConfig struct {
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenDuration time.Duration `mapstructure:"token_duration"`
	BCryptCost    int           `mapstructure:"bcrypt_cost"`
}

// RatesConfig is the ConfigProvider for reimbursement tariffs. Defaults apply
// when a field is unset so the engine never runs with a zero rate.
type RatesConfig struct {
	PerKm           float64 `mapstructure:"per_km"`
	PerMachineVisit float64 `mapstructure:"per_machine_visit"`
}

const (
	DefaultRatePerKm           = 8.0
	DefaultCostPerMachineVisit = 150.0
)

func (c *RatesConfig) RatePerKm() float64 {
	if c.PerKm <= 0 {
		return DefaultRatePerKm
	}
	return c.PerKm
}

func (c *RatesConfig) CostPerMachineVisit() float64 {
	if c.PerMachineVisit <= 0 {
		return DefaultCostPerMachineVisit
	}
	return c.PerMachineVisit
}

// OracleConfig configures the optional remote distance-matrix lookup.
// An empty APIKey disables the oracle entirely; the estimator then runs
// Haversine-only.
type OracleConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

func (c *OracleConfig) Enabled() bool {
	return c.APIKey != ""
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ----------------- ENV LOADING -----------------

// LoadConfigFromEnv builds a Config purely from environment variables,
// used for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			BaseURL:           getEnv("SERVER_BASE_URL", "http://localhost:8080"),
			ReadHeaderTimeout: getEnvAsDuration("SERVER_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenDuration: getEnvAsDuration("TOKEN_DURATION", 24*time.Hour),
			BCryptCost:    getEnvAsInt("BCRYPT_COST", 10),
		},
		Rates: RatesConfig{
			PerKm:           getEnvAsFloat("RATE_PER_KM", DefaultRatePerKm),
			PerMachineVisit: getEnvAsFloat("COST_PER_MACHINE_VISIT", DefaultCostPerMachineVisit),
		},
		Oracle: OracleConfig{
			BaseURL:        getEnv("DISTANCE_ORACLE_URL", ""),
			APIKey:         getEnv("DISTANCE_ORACLE_API_KEY", ""),
			AttemptTimeout: getEnvAsDuration("DISTANCE_ORACLE_TIMEOUT", 3*time.Second),
			MaxRetries:     getEnvAsInt("DISTANCE_ORACLE_MAX_RETRIES", 3),
			InitialBackoff: getEnvAsDuration("DISTANCE_ORACLE_INITIAL_BACKOFF", 200*time.Millisecond),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Oracle.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("distance oracle config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.Source == "" {
		return errors.New("database source is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if len(c.JWTSecret) < 32 {
		return errors.New("jwt secret must be at least 32 characters")
	}
	return nil
}

func (c *OracleConfig) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.BaseURL == "" {
		return errors.New("base_url is required when an api key is set")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries cannot be negative")
	}
	return nil
}
