// Package location implements CRUD over a user's saved points, the
// snap-to-nearest heuristic, and the reverse-geocoding trigger.
package location

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/amberline/waypost/internal/apperr"
	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/spatial"
	"github.com/amberline/waypost/internal/storage"
	"github.com/amberline/waypost/internal/trail"
)

const keyPrefix = "locations_"

// StorageKey returns the persistence key holding a user's locations.
func StorageKey(userKey string) string { return keyPrefix + userKey }

// Geocoder resolves a coordinate pair to a human-readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Input carries the user-submitted fields for add and edit.
type Input struct {
	Name    string              `json:"name"`
	Address string              `json:"address"`
	Type    models.LocationType `json:"type"`
	Lat     float64             `json:"lat"`
	Lng     float64             `json:"lng"`
}

// Validate enforces the field rules. Failures surface to the submitting
// form as a ValidationError (ozzo validation.Errors); they are never
// retried internally.
func (in Input) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(3, 0)),
		validation.Field(&in.Address, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Type, validation.Required,
			validation.In(models.TypeHome, models.TypeOffice, models.TypeShop, models.TypeOther)),
		validation.Field(&in.Lat, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&in.Lng, validation.Min(-180.0), validation.Max(180.0)),
	)
}

// Store owns the current user's saved locations, insertion-ordered with
// the most recent first.
type Store struct {
	mu       sync.Mutex
	store    storage.Provider
	trail    *trail.Trail
	geocoder Geocoder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	userKey  string
	items    []models.Location
}

// New creates a Store with no active user. geocoder may be nil when the
// collaborator is not configured.
func New(store storage.Provider, tr *trail.Trail, geocoder Geocoder, logger *slog.Logger) *Store {
	return &Store{
		store:    store,
		trail:    tr,
		geocoder: geocoder,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Reset re-keys the store to a new user and reloads persisted locations.
// An empty userKey clears in-memory state.
func (s *Store) Reset(userKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userKey = userKey
	s.items = nil
	if userKey == "" {
		return
	}
	raw, err := s.store.Get(keyPrefix + userKey)
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, &s.items); err != nil {
		s.logger.Warn("location: corrupt persisted state, starting empty",
			slog.String("user", userKey), slog.String("error", err.Error()))
		s.items = nil
	}
}

// Add validates the input, assigns id and createdAt, prepends, persists,
// and emits the trail event.
func (s *Store) Add(in Input) (models.Location, error) {
	if err := in.Validate(); err != nil {
		return models.Location{}, err
	}
	s.mu.Lock()
	if s.userKey == "" {
		s.mu.Unlock()
		return models.Location{}, apperr.ErrNoSession
	}
	loc := models.Location{
		ID:        s.newID(),
		Name:      in.Name,
		Address:   in.Address,
		Type:      in.Type,
		Lat:       in.Lat,
		Lng:       in.Lng,
		CreatedAt: s.now(),
	}
	s.items = append([]models.Location{loc}, s.items...)
	s.persistLocked()
	s.mu.Unlock()

	s.emit("added location: " + loc.Name)
	return loc, nil
}

// Edit merges the validated input into an existing location, preserving
// id and createdAt.
func (s *Store) Edit(id string, in Input) (models.Location, error) {
	if err := in.Validate(); err != nil {
		return models.Location{}, err
	}
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return models.Location{}, apperr.ErrNotFound
	}
	loc := s.items[idx]
	loc.Name = in.Name
	loc.Address = in.Address
	loc.Type = in.Type
	loc.Lat = in.Lat
	loc.Lng = in.Lng
	s.items[idx] = loc
	s.persistLocked()
	s.mu.Unlock()

	s.emit("edited location: " + loc.Name)
	return loc, nil
}

// Remove filters out the matching id and persists. Removing an absent id
// is a no-op, not an error: the record is already gone.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	idx := s.indexOfLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	name := s.items[idx].Name
	s.items = append(s.items[:idx], s.items[idx+1:]...)
	s.persistLocked()
	s.mu.Unlock()

	s.emit("Deleted location: " + name)
}

// List returns a copy of the stored locations, most recent first.
func (s *Store) List() []models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Location, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns one location by id.
func (s *Store) Get(id string) (models.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx := s.indexOfLocked(id); idx >= 0 {
		return s.items[idx], nil
	}
	return models.Location{}, apperr.ErrNotFound
}

// SnapToNearest nudges a picked coordinate toward the nearest saved
// point: it returns the planar midpoint between the candidate and its
// planar-nearest neighbour (first-encountered wins ties), or the
// candidate unchanged when nothing is saved yet. This is a deliberate
// approximation, not road snapping.
func (s *Store) SnapToNearest(candidate models.LatLng) models.LatLng {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return candidate
	}
	nearest := s.items[0]
	best := spatial.PlanarDistance(candidate.Lat, candidate.Lng, nearest.Lat, nearest.Lng)
	for _, loc := range s.items[1:] {
		if d := spatial.PlanarDistance(candidate.Lat, candidate.Lng, loc.Lat, loc.Lng); d < best {
			best = d
			nearest = loc
		}
	}
	lat, lng := spatial.Midpoint(candidate.Lat, candidate.Lng, nearest.Lat, nearest.Lng)
	return models.LatLng{Lat: lat, Lng: lng}
}

// ReverseGeocode resolves a coordinate to an address via the external
// collaborator. Failure is surfaced to the caller and never blocks the
// rest of the save flow.
func (s *Store) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	if s.geocoder == nil {
		return "", apperr.ErrRemoteUnavailable
	}
	addr, err := s.geocoder.ReverseGeocode(ctx, lat, lng)
	if err != nil {
		s.logger.Warn("location: reverse geocode failed", slog.String("error", err.Error()))
		return "", err
	}
	return addr, nil
}

func (s *Store) indexOfLocked(id string) int {
	for i, loc := range s.items {
		if loc.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) emit(message string) {
	if s.trail == nil {
		return
	}
	if err := s.trail.Append(message); err != nil {
		s.logger.Warn("location: trail append failed", slog.String("error", err.Error()))
	}
}

// persistLocked writes the current collection. Storage failures are
// logged; in-memory state stays authoritative for the session.
func (s *Store) persistLocked() {
	raw, err := json.Marshal(s.items)
	if err != nil {
		s.logger.Error("location: marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := s.store.Set(keyPrefix+s.userKey, raw); err != nil {
		s.logger.Warn("location: persist failed",
			slog.String("user", s.userKey), slog.String("error", err.Error()))
	}
}
