// --- File: relayservice/service.go ---
package relayservice

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-relay-service/internal/api"
	"github.com/tinywideclouds/go-relay-service/relayservice/config"
)

// Version is the relay release reported at startup.
const Version = "0.6.4"

type Wrapper struct {
	*microservice.BaseServer
	logger *slog.Logger
}

// New assembles the service.
func New(
	cfg *config.Config,
	dispatcher api.Dispatcher,
	logger *slog.Logger,
) *Wrapper {
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	relayAPI := api.NewRelayAPI(dispatcher, logger)
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	mux := baseServer.Mux()
	mux.Handle("GET /relay", corsMiddleware(http.HandlerFunc(relayAPI.Relay)))

	return &Wrapper{
		BaseServer: baseServer,
		logger:     logger,
	}
}

func (w *Wrapper) Start() error {
	w.SetReady(true)
	w.logger.Info("Service is now ready.", "version", Version)
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	w.logger.Info("Service shutdown complete.")
	return nil
}
