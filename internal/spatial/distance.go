// Package spatial provides the distance and interpolation primitives used
// by snapping and travel analytics.
package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Earth radii matching the chart widget's kilometre scale.
const (
	EarthRadiusKm     = 6371.0
	EarthRadiusMeters = 6371000.0
)

// HaversineKm returns the great-circle distance between two points in
// kilometres.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusKm
}

// PlanarDistance returns the Euclidean distance between two coordinate
// pairs treated as points on a flat plane. Snapping deliberately uses this
// cheap metric instead of a geodesic one.
func PlanarDistance(lat1, lng1, lat2, lng2 float64) float64 {
	return math.Hypot(lat1-lat2, lng1-lng2)
}

// Midpoint returns the arithmetic midpoint of two coordinate pairs.
// This is the planar companion to PlanarDistance, not a geodesic midpoint.
func Midpoint(lat1, lng1, lat2, lng2 float64) (float64, float64) {
	return (lat1 + lat2) / 2, (lng1 + lng2) / 2
}
