package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/amberline/waypost/internal/engine"
	"github.com/amberline/waypost/internal/sse"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// broker, if non-nil, serves GET /events inside the auth group and
// receives state change events from the handlers.
func NewRouter(eng *engine.Engine, authEnabled bool, token string, broker *sse.Broker) chi.Router {
	h := NewHandler(eng, broker)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Session lifecycle.
	r.Get("/session", h.GetSession)
	r.Post("/session", h.StartSession)
	r.Delete("/session", h.EndSession)

	// Locations CRUD plus coordinate helpers.
	r.Get("/locations", h.ListLocations)
	r.Post("/locations", h.CreateLocation)
	r.Post("/locations/snap", h.SnapLocation)
	r.Get("/locations/{id}", h.GetLocation)
	r.Put("/locations/{id}", h.UpdateLocation)
	r.Delete("/locations/{id}", h.DeleteLocation)
	r.Get("/geocode", h.Geocode)

	// Activity trail and its long-term archive.
	r.Get("/activity", h.ListActivity)
	r.Get("/activity/archive", h.ArchiveActivity)
	r.Delete("/activity/{index}", h.RemoveActivity)

	// Notifications.
	r.Get("/notifications", h.ListNotifications)
	r.Delete("/notifications", h.ClearNotifications)
	r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
	r.Post("/notifications/clear-unread", h.ClearUnreadBadge)
	r.Post("/notifications/{id}/read", h.MarkNotificationRead)
	r.Post("/notifications/{id}/unread", h.MarkNotificationUnread)
	r.Delete("/notifications/{id}", h.DeleteNotification)

	// Dashboard layout.
	r.Get("/layout", h.GetLayout)
	r.Put("/layout/{slot}", h.SaveLayoutSlot)

	// Derived analytics.
	r.Get("/analytics/distance", h.DistanceSeries)
	r.Get("/analytics/route", h.Route)

	// Report snapshots.
	r.Post("/reports/{kind}", h.QuickReport)

	// SSE endpoint (protected by same auth middleware).
	if broker != nil {
		r.Get("/events", http.HandlerFunc(broker.ServeHTTP))
	}

	return r
}
