package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

const (
	retryAttempts   = 3
	retryBackoff    = 50 * time.Millisecond
	retryMaxBackoff = 500 * time.Millisecond
)

// Retry runs op, retrying with linear backoff while SQLite reports lock
// contention. The live handler and the sync engine write concurrently, so a
// busy database is expected occasionally.
func Retry(ctx context.Context, name string, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return fmt.Errorf("%s: %w", name, err)
		}
		if attempt == retryAttempts {
			break
		}

		backoff := min(time.Duration(attempt)*retryBackoff, retryMaxBackoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, retryAttempts, lastErr)
}

// IsRetryable reports whether err is transient lock contention or I/O.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked || se.Code == sqlite3.ErrIoErr
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "disk I/O error")
}
