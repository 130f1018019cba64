// Package cache is the client-side query cache. Entries are keyed by entity kind and id and are
// invalidated (marked stale) rather than mutated when the server confirms a change.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"example.com/sia/internal/observability"
)

// Kind names a cached entity kind.
type Kind string

const (
	KindActivities      Kind = "activities"
	KindActivityDetails Kind = "activityDetails"
	KindActivityItem    Kind = "activityItem"
	KindProfile         Kind = "profile"
)

// Key identifies one cached query.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string {
	if k.ID == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + "/" + k.ID
}

// ActivitiesKey is the key of the dashboard list.
func ActivitiesKey() Key { return Key{Kind: KindActivities} }

// DetailsKey is the key of one activity aggregate.
func DetailsKey(activityID string) Key { return Key{Kind: KindActivityDetails, ID: activityID} }

// ItemKey is the key of one activity item.
func ItemKey(activityID, itemID string) Key {
	return Key{Kind: KindActivityItem, ID: activityID + "/" + itemID}
}

// ProfileKey is the key of the current user's profile.
func ProfileKey() Key { return Key{Kind: KindProfile} }

// Invalidator defines a cache invalidation contract.
type Invalidator interface {
	Invalidate(ctx context.Context, key Key) error
}

// NoopInvalidator is a no-op implementation.
type NoopInvalidator struct{}

// Invalidate performs no action.
func (NoopInvalidator) Invalidate(context.Context, Key) error { return nil }

type entry struct {
	value      any
	stale      bool
	generation uint64
	fetchedAt  time.Time
}

// Store holds query results. The zero value is not usable; call NewStore.
type Store struct {
	mu          sync.Mutex
	entries     map[Key]*entry
	generations map[Key]uint64
	group       singleflight.Group
	now         func() time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		entries:     make(map[Key]*entry),
		generations: make(map[Key]uint64),
		now:         time.Now,
	}
}

// Peek returns the cached value for key, fresh or stale.
func (s *Store) Peek(key Key) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return e.value, true
}

// Stale reports whether key is missing or has been invalidated.
func (s *Store) Stale(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return !ok || e.stale
}

// Set stores a fresh value for key.
func (s *Store) Set(key Key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &entry{value: value, generation: s.generations[key], fetchedAt: s.now()}
}

// Invalidate marks key stale so the next Fetch reloads it.
func (s *Store) Invalidate(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations[key]++
	if e, ok := s.entries[key]; ok && !e.stale {
		e.stale = true
		observability.RecordInvalidation(string(key.Kind), 1)
	}
	return nil
}

// InvalidateKind marks every entry of kind stale.
func (s *Store) InvalidateKind(_ context.Context, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for key, e := range s.entries {
		if key.Kind != kind {
			continue
		}
		s.generations[key]++
		if !e.stale {
			e.stale = true
			n++
		}
	}
	observability.RecordInvalidation(string(kind), n)
	return nil
}

// lookup returns the cached value when fresh and the generation a reload must match.
func (s *Store) lookup(key Key) (any, bool, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	generation := s.generations[key]
	if e, ok := s.entries[key]; ok && !e.stale {
		observability.RecordCacheLookup(string(key.Kind), "hit")
		return e.value, true, generation
	} else if ok {
		observability.RecordCacheLookup(string(key.Kind), "stale")
	} else {
		observability.RecordCacheLookup(string(key.Kind), "miss")
	}
	return nil, false, generation
}

// store saves a loaded value. A value loaded across an invalidation is kept but stays stale,
// and never replaces a value loaded for a later generation.
func (s *Store) store(key Key, value any, generation uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && e.generation > generation {
		return
	}
	s.entries[key] = &entry{
		value:      value,
		stale:      s.generations[key] != generation,
		generation: generation,
		fetchedAt:  s.now(),
	}
}

// Fetch returns the fresh cached value for key or loads it. Concurrent fetches of a key within
// one generation share a load; a fetch issued after an invalidation never joins an earlier
// load. The shared load outlives any single caller's cancellation. Failed loads leave the
// previous entry untouched.
func Fetch[T any](ctx context.Context, s *Store, key Key, load func(context.Context) (T, error)) (T, error) {
	var zero T
	cached, ok, generation := s.lookup(key)
	if ok {
		if typed, ok := cached.(T); ok {
			return typed, nil
		}
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(key.String()+"#"+strconv.FormatUint(generation, 10), func() (any, error) {
		value, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		s.store(key, value, generation)
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
