// Package layout persists dashboard widget geometry per user. Saves are
// read-merge-write over the whole mapping so that high-frequency drag
// commits on one slot never clobber another slot's geometry.
package layout

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/storage"
	"github.com/amberline/waypost/internal/trail"
)

const keyPrefix = "dashboardLayout_"

// Store reads and merges widget slot geometry for any user key. Unlike
// the session-scoped stores it is stateless: every call round-trips
// through the persistence port.
type Store struct {
	mu     sync.Mutex
	store  storage.Provider
	trail  *trail.Trail
	logger *slog.Logger
}

// New creates a layout store. tr may be nil.
func New(store storage.Provider, tr *trail.Trail, logger *slog.Logger) *Store {
	return &Store{store: store, trail: tr, logger: logger}
}

// Get loads the persisted layout for a user, or an empty mapping when
// nothing has been saved yet.
func (s *Store) Get(userKey string) models.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(userKey)
}

// Save merges one slot's geometry into the stored mapping and persists
// the whole mapping, then notes the change on the activity trail.
// Missing arguments surface as validation.Errors; a failed write keeps
// its storage error so callers can tell caller fault from degradation.
func (s *Store) Save(userKey, slotID string, geom models.SlotGeometry) error {
	args := validation.Errors{}
	if userKey == "" {
		args["user"] = fmt.Errorf("cannot be blank")
	}
	if slotID == "" {
		args["slot"] = fmt.Errorf("cannot be blank")
	}
	if err := args.Filter(); err != nil {
		return err
	}
	s.mu.Lock()
	l := s.loadLocked(userKey)
	l[slotID] = geom
	raw, err := json.Marshal(l)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("layout: marshal: %w", err)
	}
	if err := s.store.Set(keyPrefix+userKey, raw); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("layout: persist: %w", err)
	}
	s.mu.Unlock()

	if s.trail != nil {
		if err := s.trail.Append("user changed layout"); err != nil {
			s.logger.Warn("layout: trail append failed", slog.String("error", err.Error()))
		}
	}
	return nil
}

func (s *Store) loadLocked(userKey string) models.Layout {
	l := models.Layout{}
	if userKey == "" {
		return l
	}
	raw, err := s.store.Get(keyPrefix + userKey)
	if err != nil {
		return l
	}
	if err := json.Unmarshal(raw, &l); err != nil {
		s.logger.Warn("layout: corrupt persisted state, starting empty",
			slog.String("user", userKey), slog.String("error", err.Error()))
		return models.Layout{}
	}
	return l
}
