package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"go.uber.org/zap"
)

type keyLock struct {
	ch   chan struct{}
	refs int
}

// LockKey serializes work on one blob content key. Uploads hold it from the
// blob write until their attachment row commits; the sweeps hold it from the
// reference check until the blob is deleted. On PostgreSQL the lock is also
// a session advisory lock, so it holds across instances.
//
// The returned unlock must be called exactly once.
func (s *Store) LockKey(ctx context.Context, key string) (func(), error) {
	release, err := s.lockLocal(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.db.Dialector.Name() != "postgres" {
		return release, nil
	}

	conn, err := s.advisoryLock(ctx, key)
	if err != nil {
		release()
		return nil, err
	}
	return func() {
		s.advisoryUnlock(conn, key)
		release()
	}, nil
}

func (s *Store) lockLocal(ctx context.Context, key string) (func(), error) {
	s.keysMu.Lock()
	if s.keys == nil {
		s.keys = make(map[string]*keyLock)
	}
	kl, ok := s.keys[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		s.keys[key] = kl
	}
	kl.refs++
	s.keysMu.Unlock()

	drop := func() {
		s.keysMu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(s.keys, key)
		}
		s.keysMu.Unlock()
	}

	select {
	case kl.ch <- struct{}{}:
	case <-ctx.Done():
		drop()
		return nil, fmt.Errorf("%w: waiting for key lock: %v", domain.ErrCancelled, ctx.Err())
	}
	return func() {
		<-kl.ch
		drop()
	}, nil
}

func (s *Store) advisoryLock(ctx context.Context, key string) (*sql.Conn, error) {
	sqlDB, err := s.db.DB()
	if err != nil {
		return nil, err
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, Classify(err)
	}
	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock(hashtextextended($1, 0))", key); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: waiting for key lock: %v", domain.ErrCancelled, ctx.Err())
		}
		return nil, Classify(err)
	}
	return conn, nil
}

func (s *Store) advisoryUnlock(conn *sql.Conn, key string) {
	if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock(hashtextextended($1, 0))", key); err != nil {
		s.logger.Warn("Failed to release key lock, discarding connection", zap.String("key", key), zap.Error(err))
		// A pooled session would keep holding the lock
		_ = conn.Raw(func(interface{}) error { return driver.ErrBadConn })
	}
	conn.Close()
}
