package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Service names accepted by Load.
const (
	ServiceReception = "reception"
	ServiceChief     = "chief"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Notification protocols used by reception when calling the chief service.
const (
	ProtocolHL7  = "hl7"
	ProtocolFHIR = "fhir"
)

type Config struct {
	Service            string        `mapstructure:"-"`
	Port               string        `mapstructure:"PORT"`
	Env                string        `mapstructure:"ENV"`
	DBDriver           string        `mapstructure:"DB_DRIVER"`
	DatabaseURL        string        `mapstructure:"DATABASE_URL"`
	DBMaxConns         int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns         int32         `mapstructure:"DB_MIN_CONNS"`
	ChiefServerURL     string        `mapstructure:"CHIEF_SERVER_URL"`
	ChiefProtocol      string        `mapstructure:"CHIEF_PROTOCOL"`
	ChiefNotifyTimeout time.Duration `mapstructure:"CHIEF_NOTIFY_TIMEOUT"`
	ChiefTLSInsecure   bool          `mapstructure:"CHIEF_TLS_INSECURE"`
	WSHeartbeat        time.Duration `mapstructure:"WS_HEARTBEAT_INTERVAL"`
	WSWriteTimeout     time.Duration `mapstructure:"WS_WRITE_TIMEOUT"`
	WSQueueSize        int           `mapstructure:"WS_QUEUE_SIZE"`
	PatientListLimit   int           `mapstructure:"PATIENT_LIST_LIMIT"`
	StaticDir          string        `mapstructure:"STATIC_DIR"`
	CORSOrigins        []string      `mapstructure:"CORS_ORIGINS"`
	MessageLog         bool          `mapstructure:"MESSAGE_LOG"`
	TLSEnabled         bool          `mapstructure:"TLS_ENABLED"`
	TLSCertFile        string        `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile         string        `mapstructure:"TLS_KEY_FILE"`
}

var envKeys = []string{
	"PORT", "ENV", "DB_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CHIEF_SERVER_URL", "CHIEF_PROTOCOL", "CHIEF_NOTIFY_TIMEOUT", "CHIEF_TLS_INSECURE",
	"WS_HEARTBEAT_INTERVAL", "WS_WRITE_TIMEOUT", "WS_QUEUE_SIZE", "PATIENT_LIST_LIMIT",
	"STATIC_DIR", "CORS_ORIGINS", "MESSAGE_LOG", "TLS_ENABLED", "TLS_CERT_FILE", "TLS_KEY_FILE",
}

// Load reads configuration for the named service from the environment and an
// optional .env file. Port and database defaults differ per service so both
// can run side by side on one machine.
func Load(service string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults
	switch service {
	case ServiceReception:
		v.SetDefault("PORT", "8000")
		v.SetDefault("DATABASE_URL", "patients.db")
	case ServiceChief:
		v.SetDefault("PORT", "8002")
		v.SetDefault("DATABASE_URL", "chief_patients.db")
	default:
		return nil, fmt.Errorf("unknown service %q", service)
	}
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("CHIEF_SERVER_URL", "https://127.0.0.1:8002")
	v.SetDefault("CHIEF_PROTOCOL", ProtocolHL7)
	v.SetDefault("CHIEF_NOTIFY_TIMEOUT", "5s")
	v.SetDefault("CHIEF_TLS_INSECURE", true)
	v.SetDefault("WS_HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("WS_WRITE_TIMEOUT", "10s")
	v.SetDefault("WS_QUEUE_SIZE", 64)
	v.SetDefault("PATIENT_LIST_LIMIT", 10)
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("MESSAGE_LOG", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Service = service

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.ChiefProtocol = strings.ToLower(cfg.ChiefProtocol)
	cfg.ChiefServerURL = strings.TrimRight(cfg.ChiefServerURL, "/")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// Validate checks enum values, positive timings and TLS material.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DBDriver)
	}
	if c.DBDriver == DriverPostgres && !strings.HasPrefix(c.DatabaseURL, "postgres") {
		return fmt.Errorf("DATABASE_URL must be a postgres URL when DB_DRIVER is postgres")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}

	if c.Service == ServiceReception {
		switch c.ChiefProtocol {
		case ProtocolHL7, ProtocolFHIR:
		default:
			return fmt.Errorf("CHIEF_PROTOCOL must be %q or %q, got %q", ProtocolHL7, ProtocolFHIR, c.ChiefProtocol)
		}
		if c.ChiefServerURL == "" {
			return fmt.Errorf("CHIEF_SERVER_URL is required")
		}
		if c.ChiefNotifyTimeout <= 0 {
			return fmt.Errorf("CHIEF_NOTIFY_TIMEOUT must be positive, got %s", c.ChiefNotifyTimeout)
		}
	}

	if c.Service == ServiceChief {
		if c.WSHeartbeat <= 0 {
			return fmt.Errorf("WS_HEARTBEAT_INTERVAL must be positive, got %s", c.WSHeartbeat)
		}
		if c.WSWriteTimeout <= 0 {
			return fmt.Errorf("WS_WRITE_TIMEOUT must be positive, got %s", c.WSWriteTimeout)
		}
		if c.WSQueueSize <= 0 {
			return fmt.Errorf("WS_QUEUE_SIZE must be positive, got %d", c.WSQueueSize)
		}
	}

	if c.PatientListLimit <= 0 {
		return fmt.Errorf("PATIENT_LIST_LIMIT must be positive, got %d", c.PatientListLimit)
	}

	// TLS validation: when TLS is enabled, cert and key files must exist.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
		for _, f := range []string{c.TLSCertFile, c.TLSKeyFile} {
			if _, err := os.Stat(f); err != nil {
				return fmt.Errorf("tls file: %w", err)
			}
		}
	}

	return nil
}
