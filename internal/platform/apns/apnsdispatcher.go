// --- File: internal/platform/apns/apnsdispatcher.go ---
// Package apns provides the client for the Apple Push Notification Service.
package apns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/certificate"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// DefaultAlertBody is the alert text shown on iOS. The spelling is what
// deployed clients have always received.
const DefaultAlertBody = "Bisq notifcation"

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to reach APNs.
// Either CertificateP12 or P8KeyContent must be set.
type Config struct {
	Production bool

	// CertificateP12 is the raw content of a .p12 client certificate.
	CertificateP12      []byte
	CertificatePassword string

	KeyID  string
	TeamID string
	// P8KeyContent is the raw content of the .p8 file
	P8KeyContent []byte
}

// NewClient builds an apns2 client for the configured credentials and host.
// It parses the credentials immediately to fail fast on startup.
func NewClient(cfg Config) (*apns2.Client, error) {
	var client *apns2.Client
	switch {
	case len(cfg.CertificateP12) > 0:
		cert, err := certificate.FromP12Bytes(cfg.CertificateP12, cfg.CertificatePassword)
		if err != nil {
			return nil, fmt.Errorf("failed to parse APNs p12 certificate: %w", err)
		}
		client = apns2.NewClient(cert)
	case len(cfg.P8KeyContent) > 0:
		authKey, err := token.AuthKeyFromBytes(cfg.P8KeyContent)
		if err != nil {
			return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
		}
		client = apns2.NewTokenClient(&token.Token{
			AuthKey: authKey,
			KeyID:   cfg.KeyID,
			TeamID:  cfg.TeamID,
		})
	default:
		return nil, errors.New("no APNs certificate or key supplied")
	}

	if cfg.Production {
		return client.Production(), nil
	}
	return client.Development(), nil
}

type Dispatcher struct {
	client    APNSClient
	topic     string // The App Bundle ID
	alertBody string
	logger    *slog.Logger
}

// NewDispatcher creates an APNS dispatcher bound to one app bundle.
func NewDispatcher(client APNSClient, bundleID, alertBody string, logger *slog.Logger) *Dispatcher {
	if alertBody == "" {
		alertBody = DefaultAlertBody
	}
	return &Dispatcher{
		client:    client,
		topic:     bundleID,
		alertBody: alertBody,
		logger:    logger.With("component", "APNSDispatcher"),
	}
}

// Send pushes one notification. APNs HTTP/2 is unary so this is a single
// request, cancelled when ctx is done.
func (d *Dispatcher) Send(ctx context.Context, req relay.NotificationRequest) relay.Result {
	notification := &apns2.Notification{
		DeviceToken: req.DeviceToken,
		Topic:       d.topic,
		Payload:     d.payload(req),
	}

	res, err := d.client.PushWithContext(ctx, notification)
	if err != nil {
		d.logger.Error("APNs transport failed", "err", err)
		return relay.TransportFailure(err)
	}

	if res.Sent() {
		d.logger.Info("Push notification accepted by APNs gateway", "apns_id", res.ApnsID)
		return relay.Delivered("success")
	}

	result := relay.Rejected(res.Reason, res.Timestamp.Time)
	switch res.Reason {
	case apns2.ReasonBadDeviceToken, apns2.ReasonUnregistered, apns2.ReasonDeviceTokenNotForTopic:
		result.TokenInvalid = true
	default:
		result.TokenInvalid = !result.TokenInvalidAt.IsZero()
	}
	d.logger.Info("APNs rejected notification", "reason", res.Reason, "status", res.StatusCode)
	return result
}

func (d *Dispatcher) payload(req relay.NotificationRequest) *payload.Payload {
	p := payload.NewPayload().
		AlertBody(d.alertBody).
		Custom("encrypted", req.EncryptedMessage)
	if req.UseSound {
		p.Sound("default")
	}
	return p
}
