package api

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

var (
	ErrMissingParameter = errors.New("missing parameter")
	ErrDecode           = errors.New("parameter decode failed")
)

const (
	HeaderOutcome   = "X-Relay-Outcome"
	HeaderRequestID = "X-Request-ID"
)

// Dispatcher is the part of dispatch.Dispatcher the handler needs.
type Dispatcher interface {
	Send(ctx context.Context, req relay.NotificationRequest) relay.Result
}

type RelayAPI struct {
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

func NewRelayAPI(dispatcher Dispatcher, logger *slog.Logger) *RelayAPI {
	return &RelayAPI{
		Dispatcher: dispatcher,
		Logger:     logger,
	}
}

// Relay handles GET /relay?isAndroid=&snd=&token=&msg=.
// Vendor failures still answer 200; the body text starts with "Error: ".
func (api *RelayAPI) Relay(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set(HeaderRequestID, requestID)
	logger := api.Logger.With("request_id", requestID)

	req, err := ParseRequest(r)
	if err != nil {
		logger.Warn("Rejected relay request", "user_agent", r.UserAgent(), "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	logger.Info("Incoming relay request",
		"user_agent", r.UserAgent(),
		"is_android", req.Platform == relay.PlatformAndroid,
		"use_sound", req.UseSound,
		"token", req.DeviceToken,
		"encrypted_message", req.EncryptedMessage,
	)

	result := api.Dispatcher.Send(r.Context(), req)
	logger.Info("Relay request dispatched", "outcome", result.Outcome.String())

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(HeaderOutcome, result.Outcome.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(result.String()))
}

// ParseRequest extracts and validates the four relay parameters.
func ParseRequest(r *http.Request) (relay.NotificationRequest, error) {
	q := r.URL.Query()

	isAndroid, err := boolParam(q, "isAndroid")
	if err != nil {
		return relay.NotificationRequest{}, err
	}
	useSound, err := boolParam(q, "snd")
	if err != nil {
		return relay.NotificationRequest{}, err
	}
	token, err := hexParam(q, "token")
	if err != nil {
		return relay.NotificationRequest{}, err
	}
	msg, err := hexParam(q, "msg")
	if err != nil {
		return relay.NotificationRequest{}, err
	}

	return relay.NotificationRequest{
		Platform:         relay.PlatformFromFlag(isAndroid),
		UseSound:         useSound,
		DeviceToken:      token,
		EncryptedMessage: msg,
	}, nil
}

// boolParam is true only for a case-insensitive "true".
func boolParam(q url.Values, name string) (bool, error) {
	if !q.Has(name) {
		return false, fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	return strings.EqualFold(q.Get(name), "true"), nil
}

func hexParam(q url.Values, name string) (string, error) {
	if !q.Has(name) {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, name)
	}
	raw, err := hex.DecodeString(q.Get(name))
	if err != nil {
		return "", fmt.Errorf("%w: %s is not valid hex: %v", ErrDecode, name, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrDecode, name)
	}
	return string(raw), nil
}
