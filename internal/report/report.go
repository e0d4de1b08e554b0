// Package report produces table snapshots of the saved locations and the
// activity trail for the downstream PDF and Excel renderers. Rendering is
// out of scope here; the snapshot is the contract.
package report

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/trail"
)

// Kind names the renderer a snapshot is destined for.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindExcel Kind = "excel"
)

// quickActivityLimit caps the activity table of a quick report to the
// most recent entries.
const quickActivityLimit = 5

const (
	locationsTitle = "Saved Locations"
	activityTitle  = "Recent Activity"
)

var locationColumns = []string{"Name", "Address", "Type", "Latitude", "Longitude", "Saved At"}

// Quick bundles the two tables of a quick report.
type Quick struct {
	Locations models.TableSnapshot `json:"locations"`
	Activity  models.TableSnapshot `json:"activity"`
}

// LocationsTable snapshots the full location collection in its current
// order, newest first.
func LocationsTable(locations []models.Location) models.TableSnapshot {
	rows := make([][]string, 0, len(locations))
	for _, loc := range locations {
		rows = append(rows, []string{
			loc.Name,
			loc.Address,
			string(loc.Type),
			strconv.FormatFloat(loc.Lat, 'f', 6, 64),
			strconv.FormatFloat(loc.Lng, 'f', 6, 64),
			loc.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return models.TableSnapshot{Title: locationsTitle, Columns: locationColumns, Rows: rows}
}

// ActivityTable snapshots stamped trail entries, newest first. limit <= 0
// includes everything.
func ActivityTable(entries []string, limit int) models.TableSnapshot {
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	rows := make([][]string, 0, len(entries))
	for i, entry := range entries {
		rows = append(rows, []string{strconv.Itoa(i + 1), entry})
	}
	return models.TableSnapshot{Title: activityTitle, Columns: []string{"#", "Activity"}, Rows: rows}
}

// Builder assembles quick reports and notes each generation on the
// activity trail.
type Builder struct {
	trail  *trail.Trail
	logger *slog.Logger
}

// NewBuilder creates a Builder. tr may be nil, in which case generations
// go unrecorded.
func NewBuilder(tr *trail.Trail, logger *slog.Logger) *Builder {
	return &Builder{trail: tr, logger: logger}
}

// Quick builds the quick report for a renderer kind: the full location
// table plus the five most recent activity entries. The generation itself
// becomes a trail entry attributed to the user.
func (b *Builder) Quick(user string, kind Kind, locations []models.Location, entries []string) Quick {
	q := Quick{
		Locations: LocationsTable(locations),
		Activity:  ActivityTable(entries, quickActivityLimit),
	}
	if b.trail != nil {
		msg := fmt.Sprintf("%s generated %s quick reports", user, kind)
		if err := b.trail.Append(msg); err != nil {
			b.logger.Warn("report: trail append failed", slog.String("error", err.Error()))
		}
	}
	return q
}
