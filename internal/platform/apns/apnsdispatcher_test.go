// --- File: internal/platform/apns/apnsdispatcher_test.go ---
package apns

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

type MockAPNSClient struct {
	mock.Mock
}

func (m *MockAPNSClient) PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error) {
	args := m.Called(n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apns2.Response), args.Error(1)
}

func decodePayload(t *testing.T, n *apns2.Notification) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(n.Payload)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestSend_Internal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()
	req := relay.NotificationRequest{
		Platform:         relay.PlatformIOS,
		UseSound:         true,
		DeviceToken:      "ios-token",
		EncryptedMessage: "cipher-text",
	}

	t.Run("Happy Path - Accepted", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := NewDispatcher(mockClient, "com.test.app", "", logger)

		var sent *apns2.Notification
		mockClient.On("PushWithContext", mock.MatchedBy(func(n *apns2.Notification) bool {
			return n.DeviceToken == "ios-token" && n.Topic == "com.test.app"
		})).Run(func(args mock.Arguments) {
			sent = args.Get(0).(*apns2.Notification)
		}).Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

		result := dispatcher.Send(ctx, req)

		assert.Equal(t, "success", result.String())
		mockClient.AssertExpectations(t)

		body := decodePayload(t, sent)
		assert.Equal(t, "cipher-text", body["encrypted"])
		aps := body["aps"].(map[string]interface{})
		assert.Equal(t, "default", aps["sound"])
		alert := aps["alert"].(map[string]interface{})
		assert.Equal(t, DefaultAlertBody, alert["body"])
	})

	t.Run("No sound - payload omits sound", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := NewDispatcher(mockClient, "com.test.app", "Custom alert", logger)

		var sent *apns2.Notification
		mockClient.On("PushWithContext", mock.Anything).Run(func(args mock.Arguments) {
			sent = args.Get(0).(*apns2.Notification)
		}).Return(&apns2.Response{StatusCode: http.StatusOK}, nil)

		quiet := req
		quiet.UseSound = false
		dispatcher.Send(ctx, quiet)

		aps := decodePayload(t, sent)["aps"].(map[string]interface{})
		_, hasSound := aps["sound"]
		assert.False(t, hasSound)
		assert.Equal(t, "Custom alert", aps["alert"].(map[string]interface{})["body"])
	})

	t.Run("Rejected - Bad Device Token", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := NewDispatcher(mockClient, "com.test.app", "", logger)

		mockClient.On("PushWithContext", mock.Anything).Return(&apns2.Response{
			StatusCode: http.StatusBadRequest,
			Reason:     apns2.ReasonBadDeviceToken,
		}, nil)

		result := dispatcher.Send(ctx, req)

		assert.Equal(t, relay.OutcomeRejected, result.Outcome)
		assert.True(t, result.TokenInvalid)
		assert.Contains(t, result.String(), "Error:")
		assert.Contains(t, result.String(), "BadDeviceToken")
		assert.NotContains(t, result.String(), "invalid as of")
	})

	t.Run("Rejected - Unregistered with timestamp", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := NewDispatcher(mockClient, "com.test.app", "", logger)

		invalidAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
		mockClient.On("PushWithContext", mock.Anything).Return(&apns2.Response{
			StatusCode: http.StatusGone,
			Reason:     apns2.ReasonUnregistered,
			Timestamp:  apns2.Time{Time: invalidAt},
		}, nil)

		result := dispatcher.Send(ctx, req)

		assert.True(t, result.TokenInvalid)
		assert.Equal(t,
			"Error: Notification rejected by the APNs gateway: Unregistered and the token is invalid as of 2024-01-02T03:04:05Z",
			result.String())
	})

	t.Run("Rejected - configuration problem keeps token", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := NewDispatcher(mockClient, "com.test.app", "", logger)

		mockClient.On("PushWithContext", mock.Anything).Return(&apns2.Response{
			StatusCode: http.StatusBadRequest,
			Reason:     apns2.ReasonTopicDisallowed,
		}, nil)

		result := dispatcher.Send(ctx, req)

		assert.Equal(t, relay.OutcomeRejected, result.Outcome)
		assert.False(t, result.TokenInvalid)
	})

	t.Run("Transport Failure", func(t *testing.T) {
		mockClient := new(MockAPNSClient)
		dispatcher := NewDispatcher(mockClient, "com.test.app", "", logger)

		mockClient.On("PushWithContext", mock.Anything).Return(nil, errors.New("connection refused"))

		result := dispatcher.Send(ctx, req)

		assert.Equal(t, relay.OutcomeTransportError, result.Outcome)
		assert.Equal(t, "Error: connection refused", result.String())
	})
}

// stalledClient holds every push open until the caller gives up.
type stalledClient struct {
	delivered chan struct{}
}

func (c *stalledClient) PushWithContext(ctx apns2.Context, _ *apns2.Notification) (*apns2.Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Second):
		close(c.delivered)
		return &apns2.Response{StatusCode: http.StatusOK}, nil
	}
}

func TestSend_HonoursContextDeadline(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &stalledClient{delivered: make(chan struct{})}
	dispatcher := NewDispatcher(client, "com.test.app", "", logger)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	result := dispatcher.Send(ctx, relay.NotificationRequest{DeviceToken: "ios-token"})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, relay.OutcomeTransportError, result.Outcome)
	assert.ErrorIs(t, result.Err, context.DeadlineExceeded)
	select {
	case <-client.delivered:
		t.Fatal("notification delivered after the deadline")
	default:
	}
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{Production: true})
	require.Error(t, err)

	_, err = NewClient(Config{CertificateP12: []byte("not-a-p12")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "p12")

	_, err = NewClient(Config{P8KeyContent: []byte("not-a-key")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P8")
}
