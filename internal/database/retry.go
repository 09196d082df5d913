package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ventura-coast-web-design/california-kids-camp/internal/logger"
)

const (
	RetryWait     = 5 * time.Second
	RetryAttempts = 2
)

// IsConnectionError reports whether err looks like a dropped or refused
// database connection rather than a query or constraint failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"connection refused", "connection reset", "broken pipe", "database is locked", "server closed the connection"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithRetry runs fn, retrying up to RetryAttempts times with a constant wait
// when it fails with a connection error. Other errors are returned at once.
func WithRetry(ctx context.Context, op string, fn func() error) error {
	return withRetry(ctx, op, RetryWait, fn)
}

func withRetry(ctx context.Context, op string, wait time.Duration, fn func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(wait), RetryAttempts), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !IsConnectionError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, next time.Duration) {
		logger.Warnw("database_retry", "op", op, "wait", next, "error", err)
	})
}
