// Package analytics derives the chart and map widget data from the saved
// location collection. Everything here is pure and restartable: series
// are recomputed from scratch whenever the collection changes, never
// incrementally maintained.
package analytics

import (
	"context"
	"log/slog"
	"sort"

	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/spatial"
)

const timeLayout = "15:04:05"

// Router resolves an ordered list of coordinates to a road-following
// polyline. It is a network collaborator with unbounded latency.
type Router interface {
	Route(ctx context.Context, points []models.LatLng) ([]models.LatLng, error)
}

// DistanceSeries is the cumulative trip distance feed for the line chart:
// one distance value and one HH:MM:SS label per saved point.
type DistanceSeries struct {
	Distances []float64 `json:"distances"` // km, non-decreasing, first is 0
	Labels    []string  `json:"labels"`
}

// CumulativeDistance sorts a copy of the collection ascending by
// createdAt and accumulates the haversine distance between consecutive
// points. The caller's slice ordering is never touched.
func CumulativeDistance(locations []models.Location) DistanceSeries {
	series := DistanceSeries{Distances: []float64{}, Labels: []string{}}
	if len(locations) == 0 {
		return series
	}

	sorted := make([]models.Location, len(locations))
	copy(sorted, locations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	cumulative := 0.0
	for i, loc := range sorted {
		if i > 0 {
			prev := sorted[i-1]
			cumulative += spatial.HaversineKm(prev.Lat, prev.Lng, loc.Lat, loc.Lng)
		}
		series.Distances = append(series.Distances, cumulative)
		series.Labels = append(series.Labels, loc.CreatedAt.Format(timeLayout))
	}
	return series
}

// Deriver wraps route reconstruction with its collaborator.
type Deriver struct {
	router Router
	logger *slog.Logger
}

// NewDeriver creates a Deriver. router may be nil when the collaborator
// is not configured.
func NewDeriver(router Router, logger *slog.Logger) *Deriver {
	return &Deriver{router: router, logger: logger}
}

// ReconstructRoute resolves the ordered points to a road polyline. Any
// collaborator failure degrades to an empty route: the map falls back to
// straight lines between saved points.
func (d *Deriver) ReconstructRoute(ctx context.Context, points []models.LatLng) []models.LatLng {
	if d.router == nil || len(points) < 2 {
		return []models.LatLng{}
	}
	polyline, err := d.router.Route(ctx, points)
	if err != nil {
		d.logger.Warn("analytics: route reconstruction failed", slog.String("error", err.Error()))
		return []models.LatLng{}
	}
	if polyline == nil {
		return []models.LatLng{}
	}
	return polyline
}
