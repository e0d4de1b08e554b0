package location

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/amberline/waypost/internal/apperr"
	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/storage"
	"github.com/amberline/waypost/internal/trail"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testStore(t *testing.T) (*Store, *trail.Trail) {
	t.Helper()
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	tr := trail.New(fs, nil, testLogger())
	tr.Reset("alice")
	s := New(fs, tr, nil, testLogger())
	s.Reset("alice")
	return s, tr
}

func validInput() Input {
	return Input{
		Name:    "Home",
		Address: "12 Main Street",
		Type:    models.TypeHome,
		Lat:     12.9716,
		Lng:     77.5946,
	}
}

func TestAddAssignsIDAndPrepends(t *testing.T) {
	s, _ := testStore(t)
	first, err := s.Add(validInput())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Errorf("id/createdAt not assigned: %+v", first)
	}

	in := validInput()
	in.Name = "Office"
	second, _ := s.Add(in)

	list := s.List()
	if len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	if list[0].ID != second.ID {
		t.Error("most recent location should be first")
	}
}

func TestAddEmitsTrailEvent(t *testing.T) {
	s, tr := testStore(t)
	_, _ = s.Add(validInput())
	entries := tr.List(0, 0)
	if len(entries) != 1 || !strings.Contains(entries[0], "added location: Home") {
		t.Errorf("trail = %v", entries)
	}
}

func TestAddValidation(t *testing.T) {
	s, tr := testStore(t)
	cases := []struct {
		name   string
		mutate func(*Input)
	}{
		{"empty name", func(in *Input) { in.Name = "" }},
		{"short name", func(in *Input) { in.Name = "ab" }},
		{"empty address", func(in *Input) { in.Address = "" }},
		{"long address", func(in *Input) { in.Address = strings.Repeat("x", 201) }},
		{"bad type", func(in *Input) { in.Type = "Castle" }},
		{"lat too low", func(in *Input) { in.Lat = -90.5 }},
		{"lat too high", func(in *Input) { in.Lat = 90.5 }},
		{"lng too low", func(in *Input) { in.Lng = -180.5 }},
		{"lng too high", func(in *Input) { in.Lng = 180.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := s.Add(in)
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				t.Errorf("err = %v, want validation.Errors", err)
			}
		})
	}
	if len(s.List()) != 0 {
		t.Error("invalid input was stored")
	}
	if tr.Len() != 0 {
		t.Error("invalid input emitted a trail event")
	}
}

func TestEditPreservesIDAndCreatedAt(t *testing.T) {
	s, tr := testStore(t)
	orig, _ := s.Add(validInput())

	in := validInput()
	in.Name = "Weekend Home"
	in.Lat = 13.0
	updated, err := s.Edit(orig.ID, in)
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if updated.ID != orig.ID {
		t.Error("id changed on edit")
	}
	if !updated.CreatedAt.Equal(orig.CreatedAt) {
		t.Error("createdAt changed on edit")
	}
	if updated.Name != "Weekend Home" || updated.Lat != 13.0 {
		t.Errorf("fields not merged: %+v", updated)
	}

	entries := tr.List(0, 0)
	if !strings.Contains(entries[0], "edited location: Weekend Home") {
		t.Errorf("trail = %v", entries)
	}
}

func TestEditUnknownID(t *testing.T) {
	s, _ := testStore(t)
	_, err := s.Edit("no-such-id", validInput())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	s, tr := testStore(t)
	loc, _ := s.Add(validInput())

	s.Remove(loc.ID)
	if len(s.List()) != 0 {
		t.Error("location not removed")
	}
	entries := tr.List(0, 0)
	if !strings.Contains(entries[0], "Deleted location: Home") {
		t.Errorf("trail = %v", entries)
	}

	// Absent id is a silent no-op.
	before := tr.Len()
	s.Remove("no-such-id")
	if tr.Len() != before {
		t.Error("no-op remove emitted a trail event")
	}
}

func TestNoDuplicateIDsUnderMutationSequences(t *testing.T) {
	s, _ := testStore(t)
	var ids []string
	for i := 0; i < 20; i++ {
		in := validInput()
		in.Name = "Point " + strconv.Itoa(i)
		loc, err := s.Add(in)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, loc.ID)
	}
	for i := 0; i < 10; i += 2 {
		s.Remove(ids[i])
	}
	for i := 0; i < 5; i++ {
		in := validInput()
		in.Name = "Edited " + strconv.Itoa(i)
		_, _ = s.Edit(ids[11+i], in)
	}

	seen := map[string]bool{}
	for _, loc := range s.List() {
		if seen[loc.ID] {
			t.Fatalf("duplicate id %s", loc.ID)
		}
		seen[loc.ID] = true
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
			t.Fatalf("coordinate out of range: %+v", loc)
		}
	}
}

func TestSnapToNearestEmptyStore(t *testing.T) {
	s, _ := testStore(t)
	cand := models.LatLng{Lat: 2, Lng: 2}
	if got := s.SnapToNearest(cand); got != cand {
		t.Errorf("snap = %+v, want candidate unchanged", got)
	}
}

func TestSnapToNearestMidpoint(t *testing.T) {
	s, _ := testStore(t)
	in := validInput()
	in.Lat, in.Lng = 0, 0
	_, _ = s.Add(in)

	got := s.SnapToNearest(models.LatLng{Lat: 2, Lng: 2})
	if got.Lat != 1 || got.Lng != 1 {
		t.Errorf("snap = %+v, want {1 1}", got)
	}
}

func TestSnapToNearestPicksClosest(t *testing.T) {
	s, _ := testStore(t)
	far := validInput()
	far.Name, far.Lat, far.Lng = "Far", 50, 50
	_, _ = s.Add(far)
	near := validInput()
	near.Name, near.Lat, near.Lng = "Near", 4, 4
	_, _ = s.Add(near)

	got := s.SnapToNearest(models.LatLng{Lat: 2, Lng: 2})
	if got.Lat != 3 || got.Lng != 3 {
		t.Errorf("snap = %+v, want {3 3}", got)
	}
}

type stubGeocoder struct {
	addr string
	err  error
}

func (g stubGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (string, error) {
	return g.addr, g.err
}

func TestReverseGeocode(t *testing.T) {
	fs, _ := storage.NewFS(t.TempDir())
	s := New(fs, nil, stubGeocoder{addr: "12 Main Street, Bengaluru"}, testLogger())
	s.Reset("alice")

	addr, err := s.ReverseGeocode(context.Background(), 12.97, 77.59)
	if err != nil || addr != "12 Main Street, Bengaluru" {
		t.Errorf("addr = %q, err = %v", addr, err)
	}
}

func TestReverseGeocodeFailureSurfaced(t *testing.T) {
	fs, _ := storage.NewFS(t.TempDir())
	s := New(fs, nil, stubGeocoder{err: apperr.ErrRemoteUnavailable}, testLogger())
	s.Reset("alice")

	if _, err := s.ReverseGeocode(context.Background(), 0, 0); !errors.Is(err, apperr.ErrRemoteUnavailable) {
		t.Errorf("err = %v, want ErrRemoteUnavailable", err)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	fs, _ := storage.NewFS(t.TempDir())
	s := New(fs, nil, nil, testLogger())
	s.Reset("alice")
	_, _ = s.Add(validInput())

	s2 := New(fs, nil, nil, testLogger())
	s2.Reset("alice")
	if len(s2.List()) != 1 {
		t.Errorf("persisted locations not reloaded: %v", s2.List())
	}
}
