// Package store wraps gorm transactions with the commit discipline the
// ticket core relies on: post-commit hooks run in commit order, an expired
// deadline aborts instead of committing, and transient store failures are
// retried with bounded backoff.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store begins transactions against the relational store
type Store struct {
	db        *gorm.DB
	logger    *zap.Logger
	txTimeout time.Duration
	backoff   BackoffFactory

	// commitMu orders COMMIT together with the hooks that follow it, so that
	// hook side effects (PushBus publishes) observe commit order.
	commitMu sync.Mutex

	keysMu sync.Mutex
	keys   map[string]*keyLock
}

// Option configures a Store
type Option func(*Store)

// WithTxTimeout bounds transactions whose context carries no deadline
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.txTimeout = d
	}
}

// WithBackoff replaces the retry schedule for ExternalUnavailable failures
func WithBackoff(f BackoffFactory) Option {
	return func(s *Store) {
		s.backoff = f
	}
}

// New creates a Store over db
func New(db *gorm.DB, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		db:        db,
		logger:    logger,
		txTimeout: 30 * time.Second,
		backoff:   DefaultBackoff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying handle for reads that need no transaction
func (s *Store) DB(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Tx is one open transaction. It is not safe for concurrent use.
type Tx struct {
	store  *Store
	ctx    context.Context
	cancel context.CancelFunc
	db     *gorm.DB
	hooks  []func()
	done   bool
}

// Begin opens a transaction. The returned Tx must be committed or aborted.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}

	cancel := context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok && s.txTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
	}

	db := s.db.WithContext(ctx).Begin()
	if db.Error != nil {
		cancel()
		return nil, Classify(db.Error)
	}
	return &Tx{store: s, ctx: ctx, cancel: cancel, db: db}, nil
}

// DB returns the transaction-bound gorm handle
func (tx *Tx) DB() *gorm.DB {
	return tx.db
}

// Context returns the transaction's context
func (tx *Tx) Context() context.Context {
	return tx.ctx
}

// AfterCommit registers fn to run once the transaction has committed.
// Hooks run in registration order, serialized against other commits.
func (tx *Tx) AfterCommit(fn func()) {
	tx.hooks = append(tx.hooks, fn)
}

// Commit commits the transaction. A context that expired before the commit
// aborts the transaction and returns ErrCancelled.
func (tx *Tx) Commit() error {
	if tx.done {
		return fmt.Errorf("%w: transaction already finished", domain.ErrInternal)
	}
	if err := tx.ctx.Err(); err != nil {
		tx.Abort()
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}

	tx.store.commitMu.Lock()
	defer tx.store.commitMu.Unlock()

	tx.done = true
	defer tx.cancel()

	if err := tx.db.Commit().Error; err != nil {
		return Classify(err)
	}
	for _, hook := range tx.hooks {
		tx.store.runHook(hook)
	}
	return nil
}

// Abort rolls the transaction back. Safe to call after Commit.
func (tx *Tx) Abort() {
	if tx.done {
		return
	}
	tx.done = true
	defer tx.cancel()
	if err := tx.db.Rollback().Error; err != nil && !errors.Is(err, gorm.ErrInvalidTransaction) {
		tx.store.logger.Warn("Rollback failed", zap.Error(err))
	}
}

func (s *Store) runHook(hook func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Post-commit hook panicked", zap.Any("panic", r))
		}
	}()
	hook()
}

// InTx runs fn inside a transaction and commits it. ExternalUnavailable
// failures are retried with the store's backoff; every other error aborts and
// propagates immediately.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.Retry(ctx, func(ctx context.Context) error {
		return s.runTx(ctx, fn)
	})
}

func (s *Store) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Abort()

	if err := fn(tx); err != nil {
		if ctxErr := tx.ctx.Err(); ctxErr != nil && !errors.Is(err, domain.ErrCancelled) {
			return fmt.Errorf("%w: %v", domain.ErrCancelled, ctxErr)
		}
		return Classify(err)
	}
	return tx.Commit()
}
