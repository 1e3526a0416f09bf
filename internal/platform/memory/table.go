package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/phrazzld/recallcode-api/internal/domain"
)

// keyedLocks hands out one exclusive lock per key. A lock is a buffered
// channel of capacity one so waiters can give up when their context ends.
type keyedLocks[K comparable] struct {
	mu    sync.Mutex
	slots map[K]chan struct{}
}

func newKeyedLocks[K comparable]() *keyedLocks[K] {
	return &keyedLocks[K]{slots: make(map[K]chan struct{})}
}

func (l *keyedLocks[K]) slot(key K) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *keyedLocks[K]) lock(ctx context.Context, key K) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}

	select {
	case l.slot(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for row lock: %v", domain.ErrStoreUnavailable, ctx.Err())
	}
}

func (l *keyedLocks[K]) unlock(key K) {
	<-l.slot(key)
}

// table is a versioned map of rows. Reads and writes copy values so callers
// never share memory with stored rows.
type table[K comparable, V any] struct {
	mu      sync.RWMutex
	rows    map[K]V
	locks   *keyedLocks[K]
	clone   func(V) V
	version func(V) int64
}

func newTable[K comparable, V any](clone func(V) V, version func(V) int64) *table[K, V] {
	return &table[K, V]{
		rows:    make(map[K]V),
		locks:   newKeyedLocks[K](),
		clone:   clone,
		version: version,
	}
}

func (t *table[K, V]) get(key K) (V, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.rows[key]
	if !ok {
		return v, false
	}
	return t.clone(v), true
}

// scan returns copies of every row accepted by keep.
func (t *table[K, V]) scan(keep func(V) bool) []V {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]V, 0)
	for _, v := range t.rows {
		if keep(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}

// change is a write staged by a transaction. base is the committed version
// the write was derived from.
type change[V any] struct {
	value  V
	create bool
	base   int64
}

// tx buffers writes until commit and holds row locks until it ends.
type tx[K comparable, V any] struct {
	t       *table[K, V]
	held    map[K]struct{}
	changes map[K]change[V]
}

func (t *table[K, V]) begin() *tx[K, V] {
	return &tx[K, V]{
		t:       t,
		held:    make(map[K]struct{}),
		changes: make(map[K]change[V]),
	}
}

func (x *tx[K, V]) lock(ctx context.Context, key K) error {
	if _, ok := x.held[key]; ok {
		return nil
	}
	if err := x.t.locks.lock(ctx, key); err != nil {
		return err
	}
	x.held[key] = struct{}{}
	return nil
}

// get reads through the transaction's own writes.
func (x *tx[K, V]) get(key K) (V, bool) {
	if c, ok := x.changes[key]; ok {
		return x.t.clone(c.value), true
	}
	return x.t.get(key)
}

func (x *tx[K, V]) stage(key K, v V, create bool, base int64) {
	if prev, ok := x.changes[key]; ok {
		create, base = prev.create, prev.base
	}
	x.changes[key] = change[V]{value: x.t.clone(v), create: create, base: base}
}

// overlay replaces rows in committed with this transaction's writes.
func (x *tx[K, V]) overlay(committed []V, key func(V) K, keep func(V) bool) []V {
	if len(x.changes) == 0 {
		return committed
	}

	out := make([]V, 0, len(committed)+len(x.changes))
	for _, v := range committed {
		if _, staged := x.changes[key(v)]; !staged {
			out = append(out, v)
		}
	}
	for _, c := range x.changes {
		if keep(c.value) {
			out = append(out, x.t.clone(c.value))
		}
	}
	return out
}

func (x *tx[K, V]) release() {
	for key := range x.held {
		x.t.locks.unlock(key)
	}
	x.held = nil
}

// commit applies every staged write or none of them.
func (t *table[K, V]) commit(x *tx[K, V]) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key, c := range x.changes {
		cur, exists := t.rows[key]
		switch {
		case c.create && exists:
			return fmt.Errorf("%w: row created concurrently", domain.ErrConcurrentModification)
		case !c.create && (!exists || t.version(cur) != c.base):
			return fmt.Errorf("%w: row changed since version %d", domain.ErrConcurrentModification, c.base)
		}
	}

	for key, c := range x.changes {
		t.rows[key] = c.value
	}
	return nil
}

// runInTx runs fn against a fresh transaction and commits it if fn succeeds.
// Row locks are released however fn exits.
func (t *table[K, V]) runInTx(fn func(*tx[K, V]) error) error {
	x := t.begin()
	defer x.release()

	if err := fn(x); err != nil {
		return err
	}
	return t.commit(x)
}
