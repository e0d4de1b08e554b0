package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/amberline/waypost/internal/apperr"
	"github.com/amberline/waypost/internal/archive"
	"github.com/amberline/waypost/internal/engine"
	"github.com/amberline/waypost/internal/location"
	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/report"
	"github.com/amberline/waypost/internal/sse"
)

// Handler holds API route handlers.
type Handler struct {
	eng    *engine.Engine
	broker *sse.Broker
}

// NewHandler creates a new Handler. broker may be nil.
func NewHandler(eng *engine.Engine, broker *sse.Broker) *Handler {
	return &Handler{eng: eng, broker: broker}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrNoSession):
		writeJSON(w, http.StatusConflict, errorBody("no active session"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrOutOfRange):
		writeJSON(w, http.StatusBadRequest, errorBody("index out of range"))
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		writeJSON(w, http.StatusBadGateway, errorBody("upstream unavailable"))
	default:
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func (h *Handler) publishLocation(kind, id string) {
	if h.broker != nil {
		h.broker.PublishLocationEvent(kind, id)
	}
}

func (h *Handler) publish(event string, data any) {
	if h.broker != nil {
		h.broker.Publish(sse.Event{Type: event, Data: data})
	}
}

// GetSession handles GET /api/session.
//
//	@Summary	Report the active session
//	@Tags		session
//	@Produce	json
//	@Success	200	{object}	SessionResponse
//	@Security	BearerAuth
//	@Router		/session [get]
func (h *Handler) GetSession(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, SessionResponse{User: h.eng.CurrentUser()})
}

// StartSession handles POST /api/session.
//
//	@Summary	Start or switch the active session
//	@Tags		session
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SessionRequest	true	"User to activate"
//	@Success	200		{object}	SessionResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/session [post]
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.User == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("user is required"))
		return
	}
	h.eng.SwitchUser(req.User)
	writeJSON(w, http.StatusOK, SessionResponse{User: h.eng.CurrentUser()})
}

// EndSession handles DELETE /api/session.
//
//	@Summary	End the active session
//	@Tags		session
//	@Success	204	"Session ended"
//	@Security	BearerAuth
//	@Router		/session [delete]
func (h *Handler) EndSession(w http.ResponseWriter, _ *http.Request) {
	h.eng.Logout()
	w.WriteHeader(http.StatusNoContent)
}

// ListLocations handles GET /api/locations.
//
//	@Summary	List saved locations, newest first
//	@Tags		locations
//	@Produce	json
//	@Success	200	{object}	LocationListResponse
//	@Security	BearerAuth
//	@Router		/locations [get]
func (h *Handler) ListLocations(w http.ResponseWriter, _ *http.Request) {
	items := h.eng.Locations().List()
	writeJSON(w, http.StatusOK, LocationListResponse{Locations: items, Total: len(items)})
}

// GetLocation handles GET /api/locations/{id}.
//
//	@Summary	Get a single saved location
//	@Tags		locations
//	@Produce	json
//	@Param		id	path		string	true	"Location id"
//	@Success	200	{object}	models.Location
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/locations/{id} [get]
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := h.eng.Locations().Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func decodeLocationInput(r *http.Request) (location.Input, error) {
	var req SaveLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return location.Input{}, err
	}
	return location.Input{
		Name:    req.Name,
		Address: req.Address,
		Type:    models.LocationType(req.Type),
		Lat:     req.Lat,
		Lng:     req.Lng,
	}, nil
}

// CreateLocation handles POST /api/locations.
//
//	@Summary	Save a new location
//	@Tags		locations
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SaveLocationRequest	true	"Location to save"
//	@Success	201		{object}	models.Location
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/locations [post]
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	in, err := decodeLocationInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	loc, err := h.eng.Locations().Add(in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publishLocation("created", loc.ID)
	writeJSON(w, http.StatusCreated, loc)
}

// UpdateLocation handles PUT /api/locations/{id}.
//
//	@Summary	Edit a saved location
//	@Tags		locations
//	@Accept		json
//	@Produce	json
//	@Param		id		path		string				true	"Location id"
//	@Param		body	body		SaveLocationRequest	true	"New field values"
//	@Success	200		{object}	models.Location
//	@Failure	400		{object}	errResponse
//	@Failure	404		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/locations/{id} [put]
func (h *Handler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	in, err := decodeLocationInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	id := chi.URLParam(r, "id")
	loc, err := h.eng.Locations().Edit(id, in)
	if err != nil {
		writeError(w, err)
		return
	}
	h.publishLocation("updated", loc.ID)
	writeJSON(w, http.StatusOK, loc)
}

// DeleteLocation handles DELETE /api/locations/{id}.
//
//	@Summary	Delete a saved location
//	@Tags		locations
//	@Param		id	path	string	true	"Location id"
//	@Success	204	"Location deleted (idempotent)"
//	@Security	BearerAuth
//	@Router		/locations/{id} [delete]
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.eng.Locations().Remove(id)
	h.publishLocation("deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

// SnapLocation handles POST /api/locations/snap.
//
//	@Summary	Snap a raw coordinate against the saved collection
//	@Tags		locations
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SnapRequest	true	"Raw coordinate"
//	@Success	200		{object}	models.LatLng
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/locations/snap [post]
func (h *Handler) SnapLocation(w http.ResponseWriter, r *http.Request) {
	var req SnapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	snapped := h.eng.Locations().SnapToNearest(models.LatLng{Lat: req.Lat, Lng: req.Lng})
	writeJSON(w, http.StatusOK, snapped)
}

// Geocode handles GET /api/geocode.
//
//	@Summary	Reverse geocode a coordinate
//	@Tags		locations
//	@Produce	json
//	@Param		lat	query		number	true	"Latitude"
//	@Param		lng	query		number	true	"Longitude"
//	@Success	200	{object}	GeocodeResponse
//	@Failure	502	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/geocode [get]
func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("lat is required"))
		return
	}
	lng, err := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("lng is required"))
		return
	}
	address, err := h.eng.Locations().ReverseGeocode(r.Context(), lat, lng)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, GeocodeResponse{Address: address})
}

// ListActivity handles GET /api/activity.
//
//	@Summary	Page through the activity trail, newest first
//	@Tags		activity
//	@Produce	json
//	@Param		limit	query		int	false	"Page size"
//	@Param		offset	query		int	false	"Page offset"
//	@Success	200		{object}	ActivityResponse
//	@Security	BearerAuth
//	@Router		/activity [get]
func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	writeJSON(w, http.StatusOK, ActivityResponse{
		Entries: h.eng.Trail().List(offset, limit),
		Total:   h.eng.Trail().Len(),
	})
}

// RemoveActivity handles DELETE /api/activity/{index}.
//
//	@Summary	Remove one trail entry by position
//	@Tags		activity
//	@Param		index	path	int	true	"Entry position, 0 is newest"
//	@Success	204		"Entry removed"
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/activity/{index} [delete]
func (h *Handler) RemoveActivity(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("index must be an integer"))
		return
	}
	if err := h.eng.Trail().Remove(index); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ArchiveActivity handles GET /api/activity/archive.
//
//	@Summary	Page or search the long-term activity archive
//	@Tags		activity
//	@Produce	json
//	@Param		q		query		string	false	"Substring filter"
//	@Param		limit	query		int		false	"Page size"
//	@Param		offset	query		int		false	"Page offset"
//	@Success	200		{object}	ArchiveResponse
//	@Security	BearerAuth
//	@Router		/activity/archive [get]
func (h *Handler) ArchiveActivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	var entries []archive.Entry
	var err error
	if query := q.Get("q"); query != "" {
		entries, err = h.eng.ArchiveSearch(query, limit)
	} else {
		entries, err = h.eng.ArchiveHistory(limit, offset)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ArchiveResponse{Entries: entries})
}

// ListNotifications handles GET /api/notifications.
//
//	@Summary	List notifications with the unread badge count
//	@Tags		notifications
//	@Produce	json
//	@Success	200	{object}	NotificationsResponse
//	@Security	BearerAuth
//	@Router		/notifications [get]
func (h *Handler) ListNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NotificationsResponse{
		Notifications: h.eng.Notifications().List(),
		UnreadCount:   h.eng.Notifications().UnreadCount(),
	})
}

// MarkNotificationRead handles POST /api/notifications/{id}/read.
//
//	@Summary	Mark one notification read
//	@Tags		notifications
//	@Param		id	path	string	true	"Notification id"
//	@Success	204	"Marked"
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notifications/{id}/read [post]
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	h.setNotificationRead(w, r, true)
}

// MarkNotificationUnread handles POST /api/notifications/{id}/unread.
//
//	@Summary	Mark one notification unread
//	@Tags		notifications
//	@Param		id	path	string	true	"Notification id"
//	@Success	204	"Marked"
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notifications/{id}/unread [post]
func (h *Handler) MarkNotificationUnread(w http.ResponseWriter, r *http.Request) {
	h.setNotificationRead(w, r, false)
}

func (h *Handler) setNotificationRead(w http.ResponseWriter, r *http.Request, read bool) {
	id := chi.URLParam(r, "id")
	var err error
	if read {
		err = h.eng.Notifications().MarkAsRead(id)
	} else {
		err = h.eng.Notifications().MarkAsUnread(id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.publish(engine.EventNotificationUpdated, map[string]int{"unread": h.eng.Notifications().UnreadCount()})
	w.WriteHeader(http.StatusNoContent)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all.
//
//	@Summary	Mark every notification read
//	@Tags		notifications
//	@Success	204	"Marked"
//	@Security	BearerAuth
//	@Router		/notifications/read-all [post]
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, _ *http.Request) {
	h.eng.Notifications().MarkAllAsRead()
	h.publish(engine.EventNotificationUpdated, map[string]int{"unread": 0})
	w.WriteHeader(http.StatusNoContent)
}

// ClearUnreadBadge handles POST /api/notifications/clear-unread.
// It zeroes the badge without flipping any per-item read flags.
//
//	@Summary	Zero the unread badge
//	@Tags		notifications
//	@Success	204	"Cleared"
//	@Security	BearerAuth
//	@Router		/notifications/clear-unread [post]
func (h *Handler) ClearUnreadBadge(w http.ResponseWriter, _ *http.Request) {
	h.eng.Notifications().ClearUnread()
	h.publish(engine.EventNotificationUpdated, map[string]int{"unread": 0})
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNotification handles DELETE /api/notifications/{id}.
//
//	@Summary	Delete one notification (idempotent)
//	@Tags		notifications
//	@Param		id	path	string	true	"Notification id"
//	@Success	204	"Deleted"
//	@Security	BearerAuth
//	@Router		/notifications/{id} [delete]
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	h.eng.Notifications().Remove(chi.URLParam(r, "id"))
	h.publish(engine.EventNotificationUpdated, map[string]int{"unread": h.eng.Notifications().UnreadCount()})
	w.WriteHeader(http.StatusNoContent)
}

// ClearNotifications handles DELETE /api/notifications.
//
//	@Summary	Delete every notification
//	@Tags		notifications
//	@Success	204	"Cleared"
//	@Security	BearerAuth
//	@Router		/notifications [delete]
func (h *Handler) ClearNotifications(w http.ResponseWriter, _ *http.Request) {
	h.eng.Notifications().ClearAll()
	h.publish(engine.EventNotificationUpdated, map[string]int{"unread": 0})
	w.WriteHeader(http.StatusNoContent)
}

// GetLayout handles GET /api/layout.
//
//	@Summary	Get the active user's dashboard layout
//	@Tags		layout
//	@Produce	json
//	@Success	200	{object}	models.Layout
//	@Security	BearerAuth
//	@Router		/layout [get]
func (h *Handler) GetLayout(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Layouts().Get(h.eng.CurrentUser()))
}

// SaveLayoutSlot handles PUT /api/layout/{slot}.
//
//	@Summary	Save one widget slot's geometry
//	@Tags		layout
//	@Accept		json
//	@Param		slot	path	string			true	"Slot id"
//	@Param		body	body	SaveSlotRequest	true	"Slot geometry"
//	@Success	204		"Saved"
//	@Failure	400		{object}	errResponse
//	@Failure	500		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/layout/{slot} [put]
func (h *Handler) SaveLayoutSlot(w http.ResponseWriter, r *http.Request) {
	var req SaveSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	geom := models.SlotGeometry{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
	if err := h.eng.Layouts().Save(h.eng.CurrentUser(), chi.URLParam(r, "slot"), geom); err != nil {
		// Missing user/slot is the caller's fault; a failed persist is not.
		writeError(w, err)
		return
	}
	h.publish("layout.updated", map[string]string{"user": h.eng.CurrentUser()})
	w.WriteHeader(http.StatusNoContent)
}

// DistanceSeries handles GET /api/analytics/distance.
//
//	@Summary	Cumulative trip distance series for the chart widget
//	@Tags		analytics
//	@Produce	json
//	@Success	200	{object}	analytics.DistanceSeries
//	@Security	BearerAuth
//	@Router		/analytics/distance [get]
func (h *Handler) DistanceSeries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.DistanceSeries())
}

// Route handles GET /api/analytics/route.
//
//	@Summary	Road-following polyline through the saved locations
//	@Tags		analytics
//	@Produce	json
//	@Success	200	{object}	RouteResponse
//	@Security	BearerAuth
//	@Router		/analytics/route [get]
func (h *Handler) Route(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RouteResponse{Polyline: h.eng.Route(r.Context())})
}

// QuickReport handles POST /api/reports/{kind}.
//
//	@Summary	Build a quick report snapshot for a renderer
//	@Tags		reports
//	@Produce	json
//	@Param		kind	path		string	true	"Renderer kind"	Enums(pdf, excel)
//	@Success	200		{object}	report.Quick
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/reports/{kind} [post]
func (h *Handler) QuickReport(w http.ResponseWriter, r *http.Request) {
	kind := report.Kind(chi.URLParam(r, "kind"))
	if kind != report.KindPDF && kind != report.KindExcel {
		writeJSON(w, http.StatusBadRequest, errorBody("unknown report kind"))
		return
	}
	writeJSON(w, http.StatusOK, h.eng.QuickReport(kind))
}
