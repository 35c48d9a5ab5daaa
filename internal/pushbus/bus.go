// Package pushbus delivers committed ledger events to connected user
// sessions. Delivery is best effort: the notification ledger is authoritative
// and reconnecting clients reconcile by listing since their last seen event.
package pushbus

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zmang24/si-opportunity-manager/internal/domain"
	"go.uber.org/zap"
)

// DefaultBuffer is the per-subscription send buffer
const DefaultBuffer = 256

// Event is one frame for a subscriber
type Event = domain.EventFrame

// Relay forwards locally published events to other instances
type Relay interface {
	Forward(userID *uuid.UUID, ev Event)
}

// Subscription is one connected session of a user
type Subscription struct {
	id     uint64
	userID uuid.UUID
	send   chan Event
	closed atomic.Bool
	slow   atomic.Bool
}

// UserID returns the subscribing user
func (s *Subscription) UserID() uuid.UUID {
	return s.userID
}

// C receives events until the subscription is dropped or unsubscribed,
// at which point it is closed.
func (s *Subscription) C() <-chan Event {
	return s.send
}

// Dropped reports whether the bus removed the subscription for falling behind
func (s *Subscription) Dropped() bool {
	return s.slow.Load()
}

// Bus is an in-process pub/sub keyed by user id. Publishes take the read
// lock and never block; subscribe, unsubscribe and drops take the write lock.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[uint64]*Subscription
	nextID atomic.Uint64
	buffer int
	relay  Relay
	logger *zap.Logger
}

// New creates a Bus with the given per-subscription buffer
func New(buffer int, logger *zap.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{
		subs:   make(map[uuid.UUID]map[uint64]*Subscription),
		buffer: buffer,
		logger: logger,
	}
}

// SetRelay attaches a cross-instance relay. Call before serving traffic.
func (b *Bus) SetRelay(r Relay) {
	b.relay = r
}

// Subscribe registers a new session for userID
func (b *Bus) Subscribe(userID uuid.UUID) *Subscription {
	sub := &Subscription{
		id:     b.nextID.Add(1),
		userID: userID,
		send:   make(chan Event, b.buffer),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[uint64]*Subscription)
	}
	b.subs[userID][sub.id] = sub

	b.logger.Debug("Push subscriber registered",
		zap.String("user_id", userID.String()),
		zap.Uint64("subscription_id", sub.id))
	return sub
}

// Unsubscribe removes the session and closes its channel. Idempotent.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

func (b *Bus) removeLocked(sub *Subscription) {
	userSubs, ok := b.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := userSubs[sub.id]; !ok {
		return
	}
	delete(userSubs, sub.id)
	if len(userSubs) == 0 {
		delete(b.subs, sub.userID)
	}
	if sub.closed.CompareAndSwap(false, true) {
		close(sub.send)
	}
}

// Publish delivers ev to every session of userID and forwards it to the relay
func (b *Bus) Publish(userID uuid.UUID, ev Event) {
	b.PublishLocal(userID, ev)
	if b.relay != nil {
		id := userID
		b.relay.Forward(&id, ev)
	}
}

// Broadcast delivers ev to every session and forwards it to the relay
func (b *Bus) Broadcast(ev Event) {
	b.BroadcastLocal(ev)
	if b.relay != nil {
		b.relay.Forward(nil, ev)
	}
}

// PublishLocal delivers ev to this instance's sessions of userID only
func (b *Bus) PublishLocal(userID uuid.UUID, ev Event) {
	b.mu.RLock()
	var full []*Subscription
	for _, sub := range b.subs[userID] {
		if !trySend(sub, ev) {
			full = append(full, sub)
		}
	}
	b.mu.RUnlock()

	b.drop(full)
}

// BroadcastLocal delivers ev to every session on this instance
func (b *Bus) BroadcastLocal(ev Event) {
	b.mu.RLock()
	var full []*Subscription
	for _, userSubs := range b.subs {
		for _, sub := range userSubs {
			if !trySend(sub, ev) {
				full = append(full, sub)
			}
		}
	}
	b.mu.RUnlock()

	b.drop(full)
}

func trySend(sub *Subscription, ev Event) bool {
	select {
	case sub.send <- ev:
		return true
	default:
		return false
	}
}

// drop removes sessions whose buffer was full
func (b *Bus) drop(subs []*Subscription) {
	if len(subs) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range subs {
		sub.slow.Store(true)
		b.removeLocked(sub)
		b.logger.Warn("Dropped slow push subscriber",
			zap.String("user_id", sub.userID.String()),
			zap.Uint64("subscription_id", sub.id))
	}
}

// SubscriberCount returns the number of sessions for userID
func (b *Bus) SubscriberCount(userID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}

// Close drops every session
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, userSubs := range b.subs {
		for _, sub := range userSubs {
			if sub.closed.CompareAndSwap(false, true) {
				close(sub.send)
			}
		}
	}
	b.subs = make(map[uuid.UUID]map[uint64]*Subscription)
}
