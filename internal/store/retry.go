package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BackoffFactory returns a fresh backoff schedule per command
type BackoffFactory func() retry.Backoff

// DefaultBackoff retries three times after 100ms, 400ms and 1.6s
func DefaultBackoff() retry.Backoff {
	return Geometric(100*time.Millisecond, 4, 3)
}

// Geometric multiplies the delay by factor after each of at most retries waits
func Geometric(base time.Duration, factor int64, retries int) retry.Backoff {
	delay := base
	attempt := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		if attempt >= retries {
			return 0, true
		}
		attempt++
		d := delay
		delay *= time.Duration(factor)
		return d, false
	})
}

// Retry runs fn, retrying while it fails with ExternalUnavailable
func (s *Store) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if errors.Is(err, domain.ErrExternalUnavailable) {
			s.logger.Warn("Store unavailable, retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) && !errors.Is(err, domain.ErrCancelled) {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	return err
}

// Classify maps driver and context errors onto the domain error kinds.
// Errors that already carry a kind, or that repositories translate
// themselves (record not found, duplicate key), pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{
		domain.ErrValidation,
		domain.ErrPermissionDenied,
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrCancelled,
		domain.ErrExternalUnavailable,
		domain.ErrInternal,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	if IsUnavailable(err) {
		return fmt.Errorf("%w: %v", domain.ErrExternalUnavailable, err)
	}
	return err
}

var unavailableMarkers = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"bad connection",
	"database is locked",
	"database table is locked",
	"too many clients",
	"the database system is starting up",
	"the database system is shutting down",
}

// IsUnavailable reports whether err looks like a transient store outage
func IsUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range unavailableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
