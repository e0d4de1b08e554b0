// Package trail implements the per-user activity trail: an append-only,
// newest-first log of human-readable actions, capped at the 100 most
// recent entries and persisted through the storage port.
package trail

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/amberline/waypost/internal/apperr"
	"github.com/amberline/waypost/internal/storage"
)

// MaxEntries is the retention cap. Appending beyond it silently discards
// the oldest entries.
const MaxEntries = 100

const (
	keyPrefix   = "activityLogs_"
	stampLayout = "2006-01-02 15:04:05"
)

// StorageKey returns the persistence key holding a user's trail.
func StorageKey(userKey string) string { return keyPrefix + userKey }

// Subscriber receives every appended message, synchronously, after the
// trail entry has been committed locally. An append is never published
// without its trail entry existing first.
type Subscriber interface {
	OnTrailEvent(message string)
}

// SyncFunc mirrors an appended entry to the activity archive. It runs
// fire-and-forget: failures are logged and never retried, and they never
// block the local append.
type SyncFunc func(userKey, message, stamped string) error

// Trail is the bounded activity log for the current user.
type Trail struct {
	mu      sync.Mutex
	store   storage.Provider
	logger  *slog.Logger
	syncFn  SyncFunc
	now     func() time.Time
	userKey string
	entries []string // stamped lines, newest first
	subs    []Subscriber
}

// New creates a Trail with no active user. syncFn may be nil.
func New(store storage.Provider, syncFn SyncFunc, logger *slog.Logger) *Trail {
	return &Trail{
		store:  store,
		logger: logger,
		syncFn: syncFn,
		now:    time.Now,
	}
}

// Subscribe registers a subscriber for future appends.
func (t *Trail) Subscribe(s Subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subs = append(t.subs, s)
}

// Reset re-keys the trail to a new user, loading that user's persisted
// entries. An empty userKey clears in-memory state without touching
// persisted data.
func (t *Trail) Reset(userKey string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userKey = userKey
	t.entries = nil
	if userKey == "" {
		return
	}
	raw, err := t.store.Get(keyPrefix + userKey)
	if err != nil {
		// First session for this user, or a storage failure: either way
		// the session starts from an empty trail.
		return
	}
	if err := json.Unmarshal(raw, &t.entries); err != nil {
		t.logger.Warn("trail: corrupt persisted log, starting empty",
			slog.String("user", userKey), slog.String("error", err.Error()))
		t.entries = nil
	}
	if len(t.entries) > MaxEntries {
		t.entries = t.entries[:MaxEntries]
	}
}

// Append stamps the message, prepends it, truncates to the cap, persists,
// mirrors it to the archive, and finally publishes to subscribers. The
// whole sequence is synchronous with respect to the caller except the
// archive mirror.
func (t *Trail) Append(message string) error {
	t.mu.Lock()
	if t.userKey == "" {
		t.mu.Unlock()
		return apperr.ErrNoSession
	}
	userKey := t.userKey
	stamped := t.now().Format(stampLayout) + " — " + message
	t.entries = append([]string{stamped}, t.entries...)
	if len(t.entries) > MaxEntries {
		t.entries = t.entries[:MaxEntries]
	}
	t.persistLocked()
	subs := make([]Subscriber, len(t.subs))
	copy(subs, t.subs)
	t.mu.Unlock()

	if t.syncFn != nil {
		go func() {
			if err := t.syncFn(userKey, message, stamped); err != nil {
				t.logger.Warn("trail: archive sync failed",
					slog.String("user", userKey), slog.String("error", err.Error()))
			}
		}()
	}

	for _, s := range subs {
		s.OnTrailEvent(message)
	}
	return nil
}

// List returns a page of stamped entries, newest first. It is idempotent
// and side-effect-free: an offset past the end yields an empty page, and
// limit <= 0 means the rest of the trail.
func (t *Trail) List(offset, limit int) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(t.entries) {
		return []string{}
	}
	end := len(t.entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	out := make([]string, end-offset)
	copy(out, t.entries[offset:end])
	return out
}

// Len returns the number of retained entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Remove deletes one entry by position and re-persists the remainder.
func (t *Trail) Remove(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.userKey == "" {
		return apperr.ErrNoSession
	}
	if index < 0 || index >= len(t.entries) {
		return apperr.ErrOutOfRange
	}
	t.entries = append(t.entries[:index], t.entries[index+1:]...)
	t.persistLocked()
	return nil
}

// Clear empties the trail and removes its persisted representation.
// Invoked exactly once per logout.
func (t *Trail) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.userKey == "" {
		return
	}
	t.entries = nil
	if err := t.store.Delete(keyPrefix + t.userKey); err != nil {
		t.logger.Warn("trail: clear persisted log failed",
			slog.String("user", t.userKey), slog.String("error", err.Error()))
	}
}

// persistLocked writes the current entries. Storage failures are logged;
// the in-memory trail stays authoritative for the session.
func (t *Trail) persistLocked() {
	raw, err := json.Marshal(t.entries)
	if err != nil {
		t.logger.Error("trail: marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := t.store.Set(keyPrefix+t.userKey, raw); err != nil {
		t.logger.Warn("trail: persist failed",
			slog.String("user", t.userKey), slog.String("error", err.Error()))
	}
}
