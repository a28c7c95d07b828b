// --- File: internal/platform/fcm/fcmdispatcher.go ---
// Package fcm delivers relay notifications to Android devices through
// Firebase Cloud Messaging.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// This interface allows us to mock the client for unit testing.
type MessagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Config holds what is needed to build the Firebase app.
type Config struct {
	// CredentialsJSON is the raw content of the service-account key file.
	CredentialsJSON []byte
	ProjectID       string
	DatabaseURL     string
}

// NewMessagingClient initializes a Firebase app from a service account and
// returns its messaging client.
func NewMessagingClient(ctx context.Context, cfg Config) (*messaging.Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:   cfg.ProjectID,
		DatabaseURL: cfg.DatabaseURL,
	}, option.WithCredentialsJSON(cfg.CredentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create fcm messaging client: %w", err)
	}
	return client, nil
}

type Dispatcher struct {
	client MessagingClient
	logger *slog.Logger
}

// NewDispatcher accepts the concrete client but stores it as the interface.
// Note: *messaging.Client automatically satisfies this interface.
func NewDispatcher(client MessagingClient, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		client: client,
		logger: logger.With("component", "FCMDispatcher"),
	}
}

// Send pushes a data-only message to one registration token.
func (d *Dispatcher) Send(ctx context.Context, req relay.NotificationRequest) relay.Result {
	msg := &messaging.Message{
		Token: req.DeviceToken,
		Data:  DataPayload(req),
	}

	id, err := d.client.Send(ctx, msg)
	if err != nil {
		d.logger.Error("FCM send failed", "err", err)
		result := relay.TransportFailure(err)
		if IsDeadToken(err) {
			result.TokenInvalid = true
			result.Reason = err.Error()
		}
		return result
	}

	d.logger.Info("FCM accepted message", "message_id", id)
	return relay.Delivered(id)
}

// IsDeadToken reports whether FCM rejected the token as unregistered.
// INVALID_ARGUMENT alone is not enough: FCM also returns it for malformed
// payloads sent to healthy tokens.
func IsDeadToken(err error) bool {
	return messaging.IsUnregistered(err)
}

// DataPayload builds the custom data map carried by the Android message.
func DataPayload(req relay.NotificationRequest) map[string]string {
	data := map[string]string{"encrypted": req.EncryptedMessage}
	if req.UseSound {
		data["sound"] = "default"
	}
	return data
}
