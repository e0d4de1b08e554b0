package api

import (
	"github.com/amberline/waypost/internal/archive"
	"github.com/amberline/waypost/internal/models"
)

// SessionRequest is the request body for starting or switching a session.
type SessionRequest struct {
	User string `json:"user" example:"alice" validate:"required"`
}

// SessionResponse reports the active session.
type SessionResponse struct {
	User string `json:"user" example:"alice"`
}

// SaveLocationRequest is the request body for creating or editing a
// location.
type SaveLocationRequest struct {
	Name    string  `json:"name" example:"Head Office" validate:"required"`
	Address string  `json:"address" example:"12 MG Road" validate:"required"`
	Type    string  `json:"type" example:"Office" validate:"required"`
	Lat     float64 `json:"lat" example:"12.9716"`
	Lng     float64 `json:"lng" example:"77.5946"`
}

// LocationListResponse wraps the location collection, newest first.
type LocationListResponse struct {
	Locations []models.Location `json:"locations" validate:"required"`
	Total     int               `json:"total" example:"7" validate:"required"`
}

// SnapRequest is a raw coordinate to snap against the saved collection.
type SnapRequest struct {
	Lat float64 `json:"lat" example:"12.9"`
	Lng float64 `json:"lng" example:"77.6"`
}

// GeocodeResponse carries a resolved address.
type GeocodeResponse struct {
	Address string `json:"address" example:"MG Road, Bengaluru"`
}

// ActivityResponse wraps a page of stamped trail entries, newest first.
type ActivityResponse struct {
	Entries []string `json:"entries" validate:"required"`
	Total   int      `json:"total" example:"42" validate:"required"`
}

// ArchiveResponse wraps a page of long-term archived activity.
type ArchiveResponse struct {
	Entries []archive.Entry `json:"entries" validate:"required"`
}

// NotificationsResponse wraps the notification list and badge count.
type NotificationsResponse struct {
	Notifications []models.Notification `json:"notifications" validate:"required"`
	UnreadCount   int                   `json:"unreadCount" example:"3" validate:"required"`
}

// SaveSlotRequest is one widget slot's geometry.
type SaveSlotRequest struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width" example:"400"`
	Height float64 `json:"height" example:"300"`
}

// RouteResponse is the reconstructed road polyline, possibly empty.
type RouteResponse struct {
	Polyline []models.LatLng `json:"polyline" validate:"required"`
}
