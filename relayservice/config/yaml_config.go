// --- File: relayservice/config/yaml_config.go ---
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlFCMConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
	DatabaseURL     string `yaml:"database_url"`
}

type YamlAPNSConfig struct {
	CertificateFile     string `yaml:"certificate_file"`
	CertificatePassword string `yaml:"certificate_password"`
	KeyFile             string `yaml:"key_file"`
	KeyID               string `yaml:"key_id"`
	TeamID              string `yaml:"team_id"`
	BundleID            string `yaml:"bundle_id"`
	AlertBody           string `yaml:"alert_body"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTL      string `yaml:"ttl"`
}

type YamlFirestoreConfig struct {
	ProjectID  string `yaml:"project_id"`
	Collection string `yaml:"collection"`
}

type YamlLedgerConfig struct {
	Backend   string              `yaml:"backend"`
	Redis     YamlRedisConfig     `yaml:"redis"`
	Firestore YamlFirestoreConfig `yaml:"firestore"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ListenAddr      string           `yaml:"listen_addr"`
	Production      bool             `yaml:"production"`
	DispatchTimeout string           `yaml:"dispatch_timeout"`
	FCM             YamlFCMConfig    `yaml:"fcm"`
	APNS            YamlAPNSConfig   `yaml:"apns"`
	CorsConfig      YamlCorsConfig   `yaml:"cors"`
	InvalidTokens   YamlLedgerConfig `yaml:"invalid_tokens"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	timeout, err := parseOptionalDuration(baseCfg.DispatchTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dispatch_timeout: %w", err)
	}
	ttl, err := parseOptionalDuration(baseCfg.InvalidTokens.Redis.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid invalid_tokens.redis.ttl: %w", err)
	}

	cfg := &Config{
		ListenAddr:      baseCfg.ListenAddr,
		Production:      baseCfg.Production,
		DispatchTimeout: timeout,
		FCM: FCMConfig{
			CredentialsFile: baseCfg.FCM.CredentialsFile,
			ProjectID:       baseCfg.FCM.ProjectID,
			DatabaseURL:     baseCfg.FCM.DatabaseURL,
		},
		APNS: APNSConfig{
			CertificateFile:     baseCfg.APNS.CertificateFile,
			CertificatePassword: baseCfg.APNS.CertificatePassword,
			KeyFile:             baseCfg.APNS.KeyFile,
			KeyID:               baseCfg.APNS.KeyID,
			TeamID:              baseCfg.APNS.TeamID,
			BundleID:            baseCfg.APNS.BundleID,
			AlertBody:           baseCfg.APNS.AlertBody,
		},
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Ledger: LedgerConfig{
			Backend: baseCfg.InvalidTokens.Backend,
			Redis: RedisConfig{
				Addr:     baseCfg.InvalidTokens.Redis.Addr,
				Password: baseCfg.InvalidTokens.Redis.Password,
				DB:       baseCfg.InvalidTokens.Redis.DB,
				TTL:      ttl,
			},
			Firestore: FirestoreConfig{
				ProjectID:  baseCfg.InvalidTokens.Firestore.ProjectID,
				Collection: baseCfg.InvalidTokens.Firestore.Collection,
			},
		},
	}

	logger.Debug("YAML config mapping complete",
		"listen_addr", cfg.ListenAddr,
		"production", cfg.Production,
		"ledger", cfg.Ledger.Backend,
	)

	return cfg, nil
}

func parseOptionalDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
