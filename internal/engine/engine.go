// Package engine wires the per-user state stores into one coordinator:
// locations, the activity trail, notifications, dashboard layout, and the
// derived analytics feeds. It owns the active session key and fans state
// changes out to an optional event publisher.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/amberline/waypost/internal/analytics"
	"github.com/amberline/waypost/internal/archive"
	"github.com/amberline/waypost/internal/layout"
	"github.com/amberline/waypost/internal/location"
	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/notify"
	"github.com/amberline/waypost/internal/report"
	"github.com/amberline/waypost/internal/storage"
	"github.com/amberline/waypost/internal/trail"
)

// Event names published on state changes.
const (
	EventActivityAppended    = "activity.appended"
	EventNotificationUpdated = "notification.updated"
)

// Engine is the session-scoped coordinator. All stores it owns are keyed
// to the same active user at all times.
type Engine struct {
	mu      sync.Mutex
	logger  *slog.Logger
	archive *archive.DB
	trail   *trail.Trail
	center  *notify.Center
	locs    *location.Store
	layouts *layout.Store
	deriver *analytics.Deriver
	reports *report.Builder
	user    string
	publish func(event string)
}

// New wires the stores. archiveDB, geocoder and router may each be nil;
// the corresponding features degrade rather than fail.
func New(store storage.Provider, archiveDB *archive.DB, geocoder location.Geocoder, router analytics.Router, logger *slog.Logger) *Engine {
	e := &Engine{
		logger:  logger,
		archive: archiveDB,
		deriver: analytics.NewDeriver(router, logger),
	}

	var syncFn trail.SyncFunc
	if archiveDB != nil {
		syncFn = archiveDB.Insert
	}
	e.trail = trail.New(store, syncFn, logger)
	e.center = notify.New(store, logger)
	// The notification center subscribes first so that by the time the
	// publisher fires, the badge already reflects the new entry.
	e.trail.Subscribe(e.center)
	e.trail.Subscribe(subscriberFunc(func(string) {
		e.emit(EventActivityAppended)
		e.emit(EventNotificationUpdated)
	}))

	e.locs = location.New(store, e.trail, geocoder, logger)
	e.layouts = layout.New(store, e.trail, logger)
	e.reports = report.NewBuilder(e.trail, logger)
	return e
}

type subscriberFunc func(message string)

func (f subscriberFunc) OnTrailEvent(message string) { f(message) }

// SetPublisher installs the event fan-out callback. It must be set before
// the engine starts receiving traffic.
func (e *Engine) SetPublisher(publish func(event string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publish = publish
}

func (e *Engine) emit(event string) {
	e.mu.Lock()
	publish := e.publish
	e.mu.Unlock()
	if publish != nil {
		publish(event)
	}
}

// CurrentUser returns the active session key, empty when logged out.
func (e *Engine) CurrentUser() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.user
}

// SwitchUser re-keys every session-scoped store to the given user and
// loads that user's persisted state. Switching to the already active user
// is a no-op.
func (e *Engine) SwitchUser(user string) {
	e.mu.Lock()
	if user == e.user || user == "" {
		e.mu.Unlock()
		return
	}
	e.user = user
	e.mu.Unlock()

	e.trail.Reset(user)
	e.center.Reset(user)
	e.locs.Reset(user)
	e.logger.Info("engine: session switched", slog.String("user", user))
}

// Logout clears the active user's persisted trail exactly once, then
// empties every session-scoped store. Calling Logout with no active
// session is a no-op.
func (e *Engine) Logout() {
	e.mu.Lock()
	if e.user == "" {
		e.mu.Unlock()
		return
	}
	user := e.user
	e.user = ""
	e.mu.Unlock()

	e.trail.Clear()
	e.trail.Reset("")
	e.center.Reset("")
	e.locs.Reset("")
	e.logger.Info("engine: session ended", slog.String("user", user))
}

// HandleStorageChange reloads whichever session store backs an
// externally rewritten persistence key. Keys for other users, and all
// keys while logged out, are ignored.
func (e *Engine) HandleStorageChange(key string) {
	user := e.CurrentUser()
	if user == "" {
		return
	}
	switch key {
	case location.StorageKey(user):
		e.locs.Reset(user)
		e.logger.Info("engine: locations reloaded after external change", slog.String("user", user))
	case trail.StorageKey(user):
		e.trail.Reset(user)
		e.logger.Info("engine: trail reloaded after external change", slog.String("user", user))
	case notify.StorageKey(user):
		e.center.Reset(user)
		e.logger.Info("engine: notifications reloaded after external change", slog.String("user", user))
	}
}

// Locations exposes the location store.
func (e *Engine) Locations() *location.Store { return e.locs }

// Trail exposes the activity trail.
func (e *Engine) Trail() *trail.Trail { return e.trail }

// Notifications exposes the notification center.
func (e *Engine) Notifications() *notify.Center { return e.center }

// Layouts exposes the dashboard layout store.
func (e *Engine) Layouts() *layout.Store { return e.layouts }

// DistanceSeries recomputes the cumulative distance chart feed from the
// current location collection.
func (e *Engine) DistanceSeries() analytics.DistanceSeries {
	return analytics.CumulativeDistance(e.locs.List())
}

// Route reconstructs the road polyline through the saved locations in
// the order they were created. Collaborator failure yields an empty
// polyline.
func (e *Engine) Route(ctx context.Context) []models.LatLng {
	return e.deriver.ReconstructRoute(ctx, e.orderedPoints())
}

// orderedPoints returns the saved coordinates ascending by creation time.
func (e *Engine) orderedPoints() []models.LatLng {
	locations := e.locs.List()
	sort.SliceStable(locations, func(i, j int) bool {
		return locations[i].CreatedAt.Before(locations[j].CreatedAt)
	})
	points := make([]models.LatLng, 0, len(locations))
	for _, loc := range locations {
		points = append(points, models.LatLng{Lat: loc.Lat, Lng: loc.Lng})
	}
	return points
}

// QuickReport snapshots the location table and recent activity for a
// renderer, recording the generation on the trail.
func (e *Engine) QuickReport(kind report.Kind) report.Quick {
	return e.reports.Quick(e.CurrentUser(), kind, e.locs.List(), e.trail.List(0, 0))
}

// ArchiveHistory pages through the active user's long-term activity
// archive. Without an archive it returns an empty page.
func (e *Engine) ArchiveHistory(limit, offset int) ([]archive.Entry, error) {
	if e.archive == nil {
		return []archive.Entry{}, nil
	}
	return e.archive.List(e.CurrentUser(), limit, offset)
}

// ArchiveSearch searches the active user's archived activity.
func (e *Engine) ArchiveSearch(query string, limit int) ([]archive.Entry, error) {
	if e.archive == nil {
		return []archive.Entry{}, nil
	}
	return e.archive.Search(e.CurrentUser(), query, limit)
}
