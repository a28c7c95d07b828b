// --- File: internal/dispatch/dispatcher.go ---
// Package dispatch routes a decoded relay request to the push network for
// its platform and normalizes what comes back.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// DefaultTimeout bounds a single vendor call when none is configured.
const DefaultTimeout = 10 * time.Second

// ErrDispatchTimeout is wrapped by the error of a timed-out Result.
var ErrDispatchTimeout = errors.New("dispatch timed out")

// Dispatcher holds the two vendor senders built at startup. They are never
// mutated afterwards, so one Dispatcher serves all requests concurrently.
type Dispatcher struct {
	android  relay.Sender
	ios      relay.Sender
	recorder relay.InvalidTokenRecorder
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates the dispatcher. A nil recorder disables invalid token tracking.
func New(android, ios relay.Sender, recorder relay.InvalidTokenRecorder, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		android:  android,
		ios:      ios,
		recorder: recorder,
		timeout:  timeout,
		logger:   logger.With("component", "Dispatcher"),
	}
}

// Send makes one attempt on the sender for req.Platform and waits for it at
// most the configured timeout. Nothing is retried or queued.
func (d *Dispatcher) Send(ctx context.Context, req relay.NotificationRequest) relay.Result {
	sender := d.ios
	if req.Platform == relay.PlatformAndroid {
		sender = d.android
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	// Buffered so an abandoned sender can still finish and exit.
	done := make(chan relay.Result, 1)
	go func() {
		done <- sender.Send(ctx, req)
	}()

	var result relay.Result
	select {
	case result = <-done:
	case <-ctx.Done():
		result = d.contextResult(ctx)
	}

	if result.TokenInvalid {
		d.record(ctx, req, result)
	}
	return result
}

// SendLegacy is the original string contract: the DispatchResult text.
func (d *Dispatcher) SendLegacy(ctx context.Context, isAndroid bool, token, message string, useSound bool) string {
	return d.Send(ctx, relay.NotificationRequest{
		Platform:         relay.PlatformFromFlag(isAndroid),
		UseSound:         useSound,
		DeviceToken:      token,
		EncryptedMessage: message,
	}).String()
}

func (d *Dispatcher) contextResult(ctx context.Context) relay.Result {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		d.logger.Warn("Vendor call exceeded timeout", "timeout", d.timeout)
		return relay.TimedOut(fmt.Errorf("%w after %s", ErrDispatchTimeout, d.timeout))
	}
	return relay.TransportFailure(ctx.Err())
}

func (d *Dispatcher) record(ctx context.Context, req relay.NotificationRequest, result relay.Result) {
	// The request context may already be spent; the ledger write gets its own.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	invalid := relay.InvalidToken{
		Platform:     req.Platform,
		Token:        req.DeviceToken,
		Reason:       result.Reason,
		InvalidSince: result.TokenInvalidAt,
	}
	if err := d.recorder.RecordInvalid(recCtx, invalid); err != nil {
		d.logger.Warn("Failed to record invalid token", "platform", req.Platform, "err", err)
	}
}

// NopRecorder discards invalid token reports.
type NopRecorder struct{}

func (NopRecorder) RecordInvalid(context.Context, relay.InvalidToken) error { return nil }
