// --- File: cmd/relay/runrelay.go ---
package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-relay-service/internal/dispatch"
	"github.com/tinywideclouds/go-relay-service/internal/platform/apns"
	"github.com/tinywideclouds/go-relay-service/internal/platform/fcm"
	"github.com/tinywideclouds/go-relay-service/internal/storage/cache"
	fsStore "github.com/tinywideclouds/go-relay-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
	"github.com/tinywideclouds/go-relay-service/relayservice"
	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-relay-service")
	slog.SetDefault(logger)

	ctx := context.Background()
	logger.Info("Relay starting", "version", relayservice.Version)

	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		logger.Error("Failed to unmarshal embedded yaml config", "err", err)
		os.Exit(1)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		logger.Error("Config mapping failed", "err", err)
		os.Exit(1)
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		logger.Error("Config failed", "err", err)
		os.Exit(1)
	}
	creds, err := config.LoadCredentials(cfg)
	if err != nil {
		logger.Error("Credentials failed", "err", err)
		os.Exit(1)
	}

	// --- Dispatchers ---

	// A. Android (FCM)
	fcmMessaging, err := fcm.NewMessagingClient(ctx, fcm.Config{
		CredentialsJSON: creds.FCMServiceAccount,
		ProjectID:       cfg.FCM.ProjectID,
		DatabaseURL:     cfg.FCM.DatabaseURL,
	})
	if err != nil {
		logger.Error("Failed to create FCM messaging client", "err", err)
		os.Exit(1)
	}
	fcmDispatcher := fcm.NewDispatcher(fcmMessaging, logger)

	// B. iOS (APNs)
	apnsClient, err := apns.NewClient(apns.Config{
		Production:          cfg.Production,
		CertificateP12:      creds.APNSCertificate,
		CertificatePassword: cfg.APNS.CertificatePassword,
		KeyID:               cfg.APNS.KeyID,
		TeamID:              cfg.APNS.TeamID,
		P8KeyContent:        creds.APNSKey,
	})
	if err != nil {
		logger.Error("Failed to create APNs client", "err", err)
		os.Exit(1)
	}
	apnsDispatcher := apns.NewDispatcher(apnsClient, cfg.APNS.BundleID, cfg.APNS.AlertBody, logger)
	logger.Info("APNs dispatcher enabled", "production", cfg.Production, "bundle_id", cfg.APNS.BundleID)

	// --- Invalid Token Ledger ---
	recorder, closeRecorder, err := newRecorder(ctx, cfg.Ledger, logger)
	if err != nil {
		logger.Error("Invalid token ledger failed", "err", err)
		os.Exit(1)
	}
	defer closeRecorder()

	dispatcher := dispatch.New(fcmDispatcher, apnsDispatcher, recorder, cfg.DispatchTimeout, logger)
	service := relayservice.New(cfg, dispatcher, logger)

	// --- Run ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr)
		if err := service.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Error("Service shutdown with error", "err", err)
		closeRecorder()
		os.Exit(1)
	case sig := <-stop:
		logger.Info("Received signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", "err", err)
	}
}

func newRecorder(ctx context.Context, cfg config.LedgerConfig, logger *slog.Logger) (relay.InvalidTokenRecorder, func(), error) {
	switch cfg.Backend {
	case "redis":
		logger.Info("Initializing Redis invalid token ledger...", "addr", cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return cache.NewInvalidTokenCache(redisClient, cfg.Redis.TTL), func() { _ = redisClient.Close() }, nil
	case "firestore":
		logger.Info("Initializing Firestore invalid token ledger...", "project_id", cfg.Firestore.ProjectID)
		fsClient, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client failed: %w", err)
		}
		return fsStore.NewInvalidTokenLedger(fsClient, cfg.Firestore.Collection), func() { _ = fsClient.Close() }, nil
	default:
		return dispatch.NopRecorder{}, func() {}, nil
	}
}
