package relay

import (
	"errors"
	"time"
)

// Outcome discriminates the ways a dispatch can end.
type Outcome int

const (
	OutcomeDelivered Outcome = iota
	OutcomeRejected
	OutcomeTransportError
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeRejected:
		return "rejected"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ErrorPrefix marks a failed DispatchResult string.
const ErrorPrefix = "Error: "

// Result is the structured outcome of a single dispatch.
// String renders the legacy DispatchResult text returned to HTTP callers.
type Result struct {
	Outcome Outcome
	// MessageID is the vendor id on FCM, or "success" on APNs.
	MessageID string
	// Reason is the vendor's rejection reason (APNs only).
	Reason string
	// TokenInvalidAt is set when APNs reports when the token stopped being valid.
	TokenInvalidAt time.Time
	Err            error

	// TokenInvalid is set by a Sender when the vendor response proves the
	// device token is dead.
	TokenInvalid bool
}

func Delivered(messageID string) Result {
	return Result{Outcome: OutcomeDelivered, MessageID: messageID}
}

func Rejected(reason string, invalidAt time.Time) Result {
	return Result{Outcome: OutcomeRejected, Reason: reason, TokenInvalidAt: invalidAt}
}

func TransportFailure(err error) Result {
	return Result{Outcome: OutcomeTransportError, Err: err}
}

func TimedOut(err error) Result {
	return Result{Outcome: OutcomeTimeout, Err: err}
}

// OK reports whether the notification was accepted by the push network.
func (r Result) OK() bool {
	return r.Outcome == OutcomeDelivered
}

func (r Result) String() string {
	switch r.Outcome {
	case OutcomeDelivered:
		return r.MessageID
	case OutcomeRejected:
		msg := "Notification rejected by the APNs gateway: " + r.Reason
		if !r.TokenInvalidAt.IsZero() {
			msg += " and the token is invalid as of " + r.TokenInvalidAt.UTC().Format(time.RFC3339)
		}
		return ErrorPrefix + msg
	default:
		err := r.Err
		if err == nil {
			err = errors.New(r.Outcome.String())
		}
		return ErrorPrefix + err.Error()
	}
}
