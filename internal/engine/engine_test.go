package engine

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/amberline/waypost/internal/location"
	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/report"
	"github.com/amberline/waypost/internal/storage"
	"github.com/amberline/waypost/internal/testutil"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(fs, nil, nil, nil, testLogger())
}

func input(name string, lat, lng float64) location.Input {
	return location.Input{Name: name, Address: "some address", Type: models.TypeOther, Lat: lat, Lng: lng}
}

func TestAddLocationFansOut(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")

	if _, err := e.Locations().Add(input("Cafe", 10, 20)); err != nil {
		t.Fatalf("Add: %v", err)
	}

	entries := e.Trail().List(0, 0)
	if len(entries) != 1 || !strings.Contains(entries[0], "added location: Cafe") {
		t.Errorf("trail = %v", entries)
	}
	if got := e.Notifications().UnreadCount(); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}
	notes := e.Notifications().List()
	if len(notes) != 1 || notes[0].Message != "added location: Cafe" {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestDeleteLocationFansOut(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")
	loc, _ := e.Locations().Add(input("Cafe", 10, 20))
	e.Locations().Remove(loc.ID)

	if got := len(e.Locations().List()); got != 0 {
		t.Errorf("locations = %d, want 0", got)
	}
	entries := e.Trail().List(0, 0)
	if len(entries) != 2 {
		t.Fatalf("trail = %v, want 2 entries", entries)
	}
	// Newest first: the deletion precedes the addition.
	if !strings.Contains(entries[0], "Deleted location: Cafe") {
		t.Errorf("entries[0] = %q", entries[0])
	}
	if got := e.Notifications().UnreadCount(); got != 2 {
		t.Errorf("unread = %d, want 2", got)
	}
}

func TestSwitchUserIsolatesState(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")
	_, _ = e.Locations().Add(input("Cafe", 10, 20))

	e.SwitchUser("bob")
	if got := len(e.Locations().List()); got != 0 {
		t.Errorf("bob sees %d locations", got)
	}
	if got := e.Trail().Len(); got != 0 {
		t.Errorf("bob sees %d trail entries", got)
	}

	// Alice's state is reloaded intact.
	e.SwitchUser("alice")
	if got := len(e.Locations().List()); got != 1 {
		t.Errorf("alice restored %d locations, want 1", got)
	}
	if got := e.Trail().Len(); got != 1 {
		t.Errorf("alice restored %d trail entries, want 1", got)
	}
}

func TestSwitchToSameUserIsNoOp(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")
	_, _ = e.Locations().Add(input("Cafe", 10, 20))
	e.SwitchUser("alice")
	if got := len(e.Locations().List()); got != 1 {
		t.Errorf("locations = %d after same-user switch", got)
	}
}

func TestLogoutClearsTrailOnce(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")
	_, _ = e.Locations().Add(input("Cafe", 10, 20))
	e.Logout()

	if e.CurrentUser() != "" {
		t.Errorf("user = %q after logout", e.CurrentUser())
	}
	if got := e.Trail().Len(); got != 0 {
		t.Errorf("trail = %d entries after logout", got)
	}
	// Repeated logout must not panic or touch storage again.
	e.Logout()

	// The persisted trail is gone: logging back in starts empty.
	e.SwitchUser("alice")
	if got := e.Trail().Len(); got != 0 {
		t.Errorf("trail reloaded %d entries after clear", got)
	}
	// Locations survive logout.
	if got := len(e.Locations().List()); got != 1 {
		t.Errorf("locations = %d after re-login, want 1", got)
	}
}

func TestPublisherReceivesEvents(t *testing.T) {
	e := testEngine(t)
	var events []string
	e.SetPublisher(func(event string) { events = append(events, event) })
	e.SwitchUser("alice")
	_, _ = e.Locations().Add(input("Cafe", 10, 20))

	var gotActivity, gotNotification bool
	for _, ev := range events {
		switch ev {
		case EventActivityAppended:
			gotActivity = true
		case EventNotificationUpdated:
			gotNotification = true
		}
	}
	if !gotActivity || !gotNotification {
		t.Errorf("events = %v", events)
	}
}

func TestDistanceSeriesAndRoute(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")
	_, _ = e.Locations().Add(input("A", 0, 0))
	_, _ = e.Locations().Add(input("B", 1, 1))

	series := e.DistanceSeries()
	if len(series.Distances) != 2 || series.Distances[0] != 0 || series.Distances[1] <= 0 {
		t.Errorf("series = %+v", series)
	}

	// No router configured: the polyline degrades to empty, never nil.
	if got := e.Route(context.Background()); got == nil || len(got) != 0 {
		t.Errorf("route = %v", got)
	}
}

func TestQuickReportRecordsGeneration(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")
	_, _ = e.Locations().Add(input("Cafe", 10, 20))

	q := e.QuickReport(report.KindPDF)
	if len(q.Locations.Rows) != 1 {
		t.Errorf("report rows = %v", q.Locations.Rows)
	}
	entries := e.Trail().List(0, 0)
	if !strings.Contains(entries[0], "alice generated pdf quick reports") {
		t.Errorf("trail = %v", entries)
	}
}

func TestBadgeClearSurvivesWatcherEcho(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := New(fs, nil, nil, nil, testLogger())

	// Wire the data watcher the way the server runtime does, so the
	// engine's own persist writes echo back as reloads.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = storage.Watch(ctx, fs, testLogger(), func(_, key string) {
			e.HandleStorageChange(key)
		})
	}()
	time.Sleep(50 * time.Millisecond)

	e.SwitchUser("alice")
	if _, err := e.Locations().Add(input("Cafe", 10, 20)); err != nil {
		t.Fatal(err)
	}
	// Let the echoes of the add's persist writes land first.
	time.Sleep(200 * time.Millisecond)
	if got := e.Notifications().UnreadCount(); got != 1 {
		t.Fatalf("unread = %d before badge clear, want 1", got)
	}

	e.Notifications().ClearUnread()

	// The clear must write nothing, so no reload may spring the badge
	// back from the unchanged read flags.
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		if got := e.Notifications().UnreadCount(); got != 0 {
			t.Fatalf("unread = %d after badge clear, want 0", got)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHandleStorageChangeReloadsState(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := New(fs, nil, nil, nil, testLogger())
	e.SwitchUser("alice")

	// Simulate another process rewriting alice's persisted trail.
	raw := []byte(`["2026-08-28 09:00:00 — added location: Elsewhere"]`)
	if err := fs.Set("activityLogs_alice", raw); err != nil {
		t.Fatal(err)
	}
	e.HandleStorageChange("activityLogs_alice")
	if got := e.Trail().Len(); got != 1 {
		t.Errorf("trail = %d entries after reload, want 1", got)
	}

	// Another user's key is ignored.
	e.HandleStorageChange("activityLogs_bob")
	if got := e.Trail().Len(); got != 1 {
		t.Errorf("trail = %d entries after foreign key, want 1", got)
	}
}

func TestArchiveHistoryWithoutArchive(t *testing.T) {
	e := testEngine(t)
	e.SwitchUser("alice")
	entries, err := e.ArchiveHistory(10, 0)
	if err != nil || entries == nil || len(entries) != 0 {
		t.Errorf("entries = %v, err = %v", entries, err)
	}
}

func TestArchiveMirrorsTrail(t *testing.T) {
	_, fs := testutil.TestDataDir(t)
	db := testutil.TestArchive(t)

	e := New(fs, db, nil, nil, testLogger())
	e.SwitchUser("alice")
	_, _ = e.Locations().Add(input("Cafe", 10, 20))

	// The mirror is asynchronous; poll briefly.
	deadline := 200
	for i := 0; i < deadline; i++ {
		entries, err := e.ArchiveHistory(10, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) == 1 {
			if entries[0].Message != "added location: Cafe" {
				t.Errorf("entry = %+v", entries[0])
			}
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("archive never received the mirrored entry")
}
