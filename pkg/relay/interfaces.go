// --- File: pkg/relay/interfaces.go ---
// Package relay contains the public interfaces and domain models for the
// push relay.
package relay

import (
	"context"
	"time"
)

// Sender defines the contract for a component that delivers a single
// notification to one push network (Apple's APNs, Google's FCM).
type Sender interface {
	// Send makes exactly one delivery attempt and reports its outcome.
	Send(ctx context.Context, req NotificationRequest) Result
}

// InvalidTokenRecorder remembers device tokens a push network declared dead.
// It is observational only; the send path never consults it.
type InvalidTokenRecorder interface {
	RecordInvalid(ctx context.Context, token InvalidToken) error
}

// InvalidToken describes a token rejected as unusable by a push network.
type InvalidToken struct {
	Platform     Platform  `json:"platform"`
	Token        string    `json:"token"`
	Reason       string    `json:"reason"`
	InvalidSince time.Time `json:"invalid_since,omitempty"`
}
