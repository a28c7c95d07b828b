// --- File: relayservice/config/config_test.go ---
package config_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpdateConfigWithEnvOverrides(t *testing.T) {
	logger := newTestLogger()

	baseConfig := func() *config.Config {
		return &config.Config{
			ListenAddr: ":8888",
			FCM:        config.FCMConfig{CredentialsFile: "serviceAccountKey.json"},
			APNS:       config.APNSConfig{CertificateFile: "push_certificate.production.p12"},
		}
	}

	t.Run("Success - All overrides applied", func(t *testing.T) {
		cfg := baseConfig()

		t.Setenv("PORT", "9090")
		t.Setenv("APNS_PRODUCTION", "true")
		t.Setenv("DISPATCH_TIMEOUT", "3s")
		t.Setenv("FCM_CREDENTIALS_FILE", "/secrets/fcm.json")
		t.Setenv("APNS_CERT_FILE", "/secrets/apns.p12")
		t.Setenv("APNS_BUNDLE_ID", "com.example.app")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, ":9090", finalCfg.ListenAddr)
		assert.True(t, finalCfg.Production)
		assert.Equal(t, 3*time.Second, finalCfg.DispatchTimeout)
		assert.Equal(t, "/secrets/fcm.json", finalCfg.FCM.CredentialsFile)
		assert.Equal(t, "/secrets/apns.p12", finalCfg.APNS.CertificateFile)
		assert.Equal(t, "com.example.app", finalCfg.APNS.BundleID)
		assert.Equal(t, "redis", finalCfg.Ledger.Backend)
		assert.Equal(t, "localhost:6379", finalCfg.Ledger.Redis.Addr)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, finalCfg.CorsConfig.AllowedOrigins)
	})

	t.Run("Success - Defaults filled", func(t *testing.T) {
		cfg := baseConfig()
		cfg.ListenAddr = ""

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)

		assert.Equal(t, config.DefaultListenAddr, finalCfg.ListenAddr)
		assert.Equal(t, config.DefaultBundleID, finalCfg.APNS.BundleID)
		assert.Equal(t, config.DefaultDatabaseURL, finalCfg.FCM.DatabaseURL)
		assert.Equal(t, "none", finalCfg.Ledger.Backend)
		assert.False(t, finalCfg.Production)
	})

	t.Run("Validation Failure - Missing FCM credentials", func(t *testing.T) {
		cfg := baseConfig()
		cfg.FCM.CredentialsFile = ""
		os.Unsetenv("FCM_CREDENTIALS_FILE")

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})

	t.Run("Validation Failure - Missing APNs credentials", func(t *testing.T) {
		cfg := baseConfig()
		cfg.APNS.CertificateFile = ""

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})

	t.Run("Validation Failure - Token auth needs ids", func(t *testing.T) {
		cfg := baseConfig()
		cfg.APNS.CertificateFile = ""
		cfg.APNS.KeyFile = "AuthKey.p8"

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})

	t.Run("Validation Failure - Bad production flag", func(t *testing.T) {
		t.Setenv("APNS_PRODUCTION", "maybe")

		_, err := config.UpdateConfigWithEnvOverrides(baseConfig(), logger)
		assert.Error(t, err)
	})

	t.Run("Validation Failure - Unknown ledger backend", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Ledger.Backend = "postgres"

		_, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})

	t.Run("Firestore ledger falls back to FCM project", func(t *testing.T) {
		cfg := baseConfig()
		cfg.FCM.ProjectID = "bisq-relay"
		cfg.Ledger.Backend = "firestore"

		finalCfg, err := config.UpdateConfigWithEnvOverrides(cfg, logger)
		require.NoError(t, err)
		assert.Equal(t, "bisq-relay", finalCfg.Ledger.Firestore.ProjectID)
	})
}

func TestLoadCredentials(t *testing.T) {
	dir := t.TempDir()
	fcmFile := filepath.Join(dir, "serviceAccountKey.json")
	p12File := filepath.Join(dir, "push_certificate.production.p12")
	require.NoError(t, os.WriteFile(fcmFile, []byte(`{"type":"service_account"}`), 0o600))
	require.NoError(t, os.WriteFile(p12File, []byte{0x30, 0x82}, 0o600))

	t.Run("Success - certificate auth", func(t *testing.T) {
		cfg := &config.Config{
			FCM:  config.FCMConfig{CredentialsFile: fcmFile},
			APNS: config.APNSConfig{CertificateFile: p12File},
		}

		creds, err := config.LoadCredentials(cfg)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"type":"service_account"}`), creds.FCMServiceAccount)
		assert.Equal(t, []byte{0x30, 0x82}, creds.APNSCertificate)
		assert.Empty(t, creds.APNSKey)
	})

	t.Run("Failure - missing iOS certificate", func(t *testing.T) {
		cfg := &config.Config{
			FCM:  config.FCMConfig{CredentialsFile: fcmFile},
			APNS: config.APNSConfig{CertificateFile: filepath.Join(dir, "missing.p12")},
		}

		_, err := config.LoadCredentials(cfg)
		require.ErrorIs(t, err, config.ErrConfiguration)
		assert.Contains(t, err.Error(), "missing.p12")
	})

	t.Run("Failure - missing Android credentials", func(t *testing.T) {
		cfg := &config.Config{
			FCM:  config.FCMConfig{CredentialsFile: filepath.Join(dir, "nope.json")},
			APNS: config.APNSConfig{CertificateFile: p12File},
		}

		_, err := config.LoadCredentials(cfg)
		assert.ErrorIs(t, err, config.ErrConfiguration)
	})
}
