// Package userkeys stores per-user upstream API keys. A user who registers
// their own key bypasses the pooled credentials and the trial quota. Keys
// are sealed before hitting shared storage so a Redis dump never exposes
// them in plaintext.
package userkeys

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("userkeys: not found")

// Store persists one upstream key per user.
type Store interface {
	Set(ctx context.Context, userID, apiKey string) error
	Get(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, userID string) error
	Close() error
}
