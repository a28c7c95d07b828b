// --- File: relayservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	DefaultListenAddr  = ":8888"
	DefaultBundleID    = "com.joachimneumann.bisqremotetest"
	DefaultDatabaseURL = "https://bisqremotetest.firebaseio.com"
)

type FCMConfig struct {
	CredentialsFile string
	ProjectID       string
	DatabaseURL     string
}

// APNSConfig selects certificate auth (CertificateFile) or token auth (KeyFile).
type APNSConfig struct {
	CertificateFile     string
	CertificatePassword string
	KeyFile             string
	KeyID               string
	TeamID              string
	BundleID            string
	AlertBody           string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type FirestoreConfig struct {
	ProjectID  string
	Collection string
}

// LedgerConfig picks where dead tokens are recorded: "none", "redis" or "firestore".
type LedgerConfig struct {
	Backend   string
	Redis     RedisConfig
	Firestore FirestoreConfig
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ListenAddr      string
	Production      bool
	DispatchTimeout time.Duration

	FCM        FCMConfig
	APNS       APNSConfig
	CorsConfig middleware.CorsConfig
	Ledger     LedgerConfig
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("APNS_PRODUCTION"); val != "" {
		production, err := strconv.ParseBool(val)
		if err != nil {
			return nil, fmt.Errorf("APNS_PRODUCTION must be a boolean: %w", err)
		}
		logger.Debug("Overriding config value", "key", "APNS_PRODUCTION", "source", "env")
		cfg.Production = production
	}
	if val := os.Getenv("DISPATCH_TIMEOUT"); val != "" {
		timeout, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("DISPATCH_TIMEOUT must be a duration: %w", err)
		}
		logger.Debug("Overriding config value", "key", "DISPATCH_TIMEOUT", "source", "env")
		cfg.DispatchTimeout = timeout
	}

	// FCM Overrides
	if val := os.Getenv("FCM_CREDENTIALS_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_CREDENTIALS_FILE", "source", "env")
		cfg.FCM.CredentialsFile = val
	}
	if val := os.Getenv("FCM_PROJECT_ID"); val != "" {
		cfg.FCM.ProjectID = val
	}

	// APNs Overrides
	if val := os.Getenv("APNS_CERT_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_CERT_FILE", "source", "env")
		cfg.APNS.CertificateFile = val
	}
	if val := os.Getenv("APNS_CERT_PASSWORD"); val != "" {
		cfg.APNS.CertificatePassword = val
	}
	if val := os.Getenv("APNS_KEY_FILE"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_KEY_FILE", "source", "env")
		cfg.APNS.KeyFile = val
	}
	if val := os.Getenv("APNS_KEY_ID"); val != "" {
		cfg.APNS.KeyID = val
	}
	if val := os.Getenv("APNS_TEAM_ID"); val != "" {
		cfg.APNS.TeamID = val
	}
	if val := os.Getenv("APNS_BUNDLE_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "APNS_BUNDLE_ID", "source", "env")
		cfg.APNS.BundleID = val
	}

	// Ledger Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Ledger.Redis.Addr = val
		cfg.Ledger.Backend = "redis"
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Ledger.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Ledger.Redis.DB = db
		}
	}
	if val := os.Getenv("INVALID_TOKEN_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "INVALID_TOKEN_BACKEND", "source", "env")
		cfg.Ledger.Backend = val
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		var cleanOrigins []string
		for _, o := range strings.Split(corsOrigins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Final Validation
	if cfg.FCM.CredentialsFile == "" {
		return nil, fmt.Errorf("%w: fcm credentials_file is required (set via YAML or FCM_CREDENTIALS_FILE env var)", ErrConfiguration)
	}
	if cfg.APNS.CertificateFile == "" && cfg.APNS.KeyFile == "" {
		return nil, fmt.Errorf("%w: apns certificate_file or key_file is required", ErrConfiguration)
	}
	if cfg.APNS.KeyFile != "" && cfg.APNS.CertificateFile == "" && (cfg.APNS.KeyID == "" || cfg.APNS.TeamID == "") {
		return nil, fmt.Errorf("%w: apns key_id and team_id are required with key_file", ErrConfiguration)
	}
	switch cfg.Ledger.Backend {
	case "", "none":
		cfg.Ledger.Backend = "none"
	case "redis":
		if cfg.Ledger.Redis.Addr == "" {
			return nil, fmt.Errorf("%w: redis addr is required for the redis ledger", ErrConfiguration)
		}
	case "firestore":
		if cfg.Ledger.Firestore.ProjectID == "" {
			cfg.Ledger.Firestore.ProjectID = cfg.FCM.ProjectID
		}
		if cfg.Ledger.Firestore.ProjectID == "" {
			return nil, fmt.Errorf("%w: firestore project_id is required for the firestore ledger", ErrConfiguration)
		}
	default:
		return nil, fmt.Errorf("%w: unknown invalid token backend %q", ErrConfiguration, cfg.Ledger.Backend)
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.APNS.BundleID == "" {
		cfg.APNS.BundleID = DefaultBundleID
	}
	if cfg.FCM.DatabaseURL == "" {
		cfg.FCM.DatabaseURL = DefaultDatabaseURL
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}
