package store

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidKey = errors.New("invalid key")

// KeyValue is the small persistence surface the payment-status cache is
// written against. Get reports whether the key exists.
type KeyValue interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// ValidateKey rejects blank keys. Backends call it before touching storage.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
