package docstore

import (
	"context"
	"sync"
)

// Op names the store operation an Event describes.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
)

// Event is delivered to subscribers for every read, write and delete.
//
// Payload is the value returned by a read, the pre-serialization value passed
// to a write, and nil for a delete.
type Event struct {
	Op      Op
	Path    string
	Payload any
}

// Listener receives events synchronously in the goroutine that issued the
// operation. A slow listener slows the operation down.
type Listener func(ctx context.Context, ev Event)

type subscription struct {
	id  uint64
	fn  Listener
	ops map[Op]struct{}
}

func (s subscription) wants(op Op) bool {
	if len(s.ops) == 0 {
		return true
	}
	_, ok := s.ops[op]
	return ok
}

// Bus fans events out to subscribers. The zero value is ready to use.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers fn for the given ops, or for every op when none are
// given. The returned function removes the subscription and is safe to call
// more than once.
func (b *Bus) Subscribe(fn Listener, ops ...Op) (cancel func()) {
	sub := subscription{fn: fn}
	if len(ops) > 0 {
		sub.ops = make(map[Op]struct{}, len(ops))
		for _, op := range ops {
			sub.ops[op] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(sub.id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Emit delivers ev to every matching subscriber in subscription order.
// Listeners are called outside the lock so they may subscribe or cancel.
func (b *Bus) Emit(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()

	for _, s := range subs {
		if s.wants(ev.Op) {
			s.fn(ctx, ev)
		}
	}
}
