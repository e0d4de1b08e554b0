// Package models defines the domain types for Waypost.
package models

import "time"

// LocationType categorises a saved point.
type LocationType string

// Valid location types.
const (
	TypeHome   LocationType = "Home"
	TypeOffice LocationType = "Office"
	TypeShop   LocationType = "Shop"
	TypeOther  LocationType = "Other"
)

// LocationTypes lists every valid LocationType, in display order.
var LocationTypes = []LocationType{TypeHome, TypeOffice, TypeShop, TypeOther}

// Location is a user-saved geographic point. ID and CreatedAt are assigned
// at creation and preserved across edits. Lat is in [-90, 90], Lng in
// [-180, 180].
type Location struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Address   string       `json:"address"`
	Type      LocationType `json:"type"`
	Lat       float64      `json:"lat"`
	Lng       float64      `json:"lng"`
	CreatedAt time.Time    `json:"createdAt"`
}

// LatLng is a bare coordinate pair, used by snapping and routing.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
