package store

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/wx-briefing/internal/weather"
)

// Snapshot keys for the two worldview variants.
const (
	KeyAll    = "all"
	KeySevere = "severe"
)

var (
	// ErrNotFound is returned when no worldview is stored under a key.
	ErrNotFound = errors.New("no worldview snapshot")
)

// Key returns the snapshot key for a worldview variant.
func Key(severeOnly bool) string {
	if severeOnly {
		return KeySevere
	}
	return KeyAll
}

// SnapshotHistory holds a time-ordered list of worldviews for one key.
type SnapshotHistory struct {
	Snapshots []weather.Worldview
}

// MemoryStore is a concurrency-safe in-memory worldview store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: variant key, value: history
	data map[string]*SnapshotHistory

	// retention configuration
	maxHistory int           // max number of snapshots per key
	maxAge     time.Duration // optional max age for snapshots
	clock      clockwork.Clock
}

var _ weather.Store = (*MemoryStore)(nil)

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock replaces the clock used for age-based retention.
func WithClock(c clockwork.Clock) Option {
	return func(s *MemoryStore) { s.clock = c }
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		data:       make(map[string]*SnapshotHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SaveSnapshot appends a worldview under key and enforces retention. The
// worldview's GeneratedAt is its timestamp.
func (s *MemoryStore) SaveSnapshot(key string, wv weather.Worldview) {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &SnapshotHistory{}
		s.data[key] = history
	}

	history.Snapshots = append(history.Snapshots, wv)

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Snapshots) > s.maxHistory {
		over := len(history.Snapshots) - s.maxHistory
		history.Snapshots = history.Snapshots[over:]
	}

	// Enforce retention by age. The newest snapshot is always kept.
	if s.maxAge > 0 {
		cutoff := s.clock.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history.Snapshots)-1; i++ {
			if !history.Snapshots[i].GeneratedAt.Before(cutoff) {
				break
			}
		}
		history.Snapshots = history.Snapshots[i:]
	}
}

// GetLatest returns the most recent worldview for key.
func (s *MemoryStore) GetLatest(key string) (weather.Worldview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Snapshots) == 0 {
		return weather.Worldview{}, ErrNotFound
	}
	return history.Snapshots[len(history.Snapshots)-1], nil
}

// GetRange returns all worldviews for key generated between from and to (inclusive).
func (s *MemoryStore) GetRange(key string, from, to time.Time) ([]weather.Worldview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[key]
	if !ok || len(history.Snapshots) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.Worldview
	for _, snap := range history.Snapshots {
		ts := snap.GeneratedAt
		if !ts.Before(from) && !ts.After(to) {
			result = append(result, snap)
		}
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
