// Package firestore keeps a durable ledger of dead device tokens.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

const DefaultCollection = "invalid_tokens"

// InvalidTokenLedger implements relay.InvalidTokenRecorder using Google Cloud Firestore.
type InvalidTokenLedger struct {
	client     *firestore.Client
	collection string
}

func NewInvalidTokenLedger(client *firestore.Client, collection string) *InvalidTokenLedger {
	if collection == "" {
		collection = DefaultCollection
	}
	return &InvalidTokenLedger{client: client, collection: collection}
}

// ledgerRecord is the internal DB representation.
type ledgerRecord struct {
	Platform     string    `firestore:"platform"`
	Token        string    `firestore:"token"`
	Reason       string    `firestore:"reason"`
	InvalidSince time.Time `firestore:"invalid_since,omitempty"`
	RecordedAt   time.Time `firestore:"recorded_at"`
}

func (s *InvalidTokenLedger) RecordInvalid(ctx context.Context, token relay.InvalidToken) error {
	record := ledgerRecord{
		Platform:     token.Platform.String(),
		Token:        token.Token,
		Reason:       token.Reason,
		InvalidSince: token.InvalidSince,
		RecordedAt:   time.Now().UTC(),
	}

	// Set replaces the whole document: the latest rejection wins.
	if _, err := s.client.Collection(s.collection).Doc(DocID(token.Platform, token.Token)).Set(ctx, record); err != nil {
		return fmt.Errorf("firestore write failed: %w", err)
	}
	return nil
}

// DocID is the document id of a token's ledger entry. The same token bytes
// on different platforms are different tokens.
func DocID(platform relay.Platform, token string) string {
	sum := sha256.Sum256([]byte(platform.String() + ":" + token))
	return hex.EncodeToString(sum[:])
}
