package layout

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"

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
	return New(fs, tr, testLogger()), tr
}

func TestGetEmptyLayout(t *testing.T) {
	s, _ := testStore(t)
	l := s.Get("alice")
	if l == nil || len(l) != 0 {
		t.Errorf("layout = %v, want empty mapping", l)
	}
}

func TestSaveMergesSlots(t *testing.T) {
	s, _ := testStore(t)
	mapGeom := models.SlotGeometry{X: 0, Y: 0, Width: 400, Height: 300}
	chartGeom := models.SlotGeometry{X: 400, Y: 0, Width: 400, Height: 200}

	if err := s.Save("alice", "map", mapGeom); err != nil {
		t.Fatalf("Save map: %v", err)
	}
	if err := s.Save("alice", "chart", chartGeom); err != nil {
		t.Fatalf("Save chart: %v", err)
	}

	l := s.Get("alice")
	if len(l) != 2 {
		t.Fatalf("slots = %d, want 2 (read-merge-write lost a slot)", len(l))
	}
	if l["map"] != mapGeom || l["chart"] != chartGeom {
		t.Errorf("layout = %+v", l)
	}
}

func TestSaveOverwritesSameSlot(t *testing.T) {
	s, _ := testStore(t)
	_ = s.Save("alice", "map", models.SlotGeometry{Width: 100, Height: 100})
	moved := models.SlotGeometry{X: 50, Y: 60, Width: 100, Height: 100}
	_ = s.Save("alice", "map", moved)

	l := s.Get("alice")
	if len(l) != 1 || l["map"] != moved {
		t.Errorf("layout = %+v", l)
	}
}

func TestSaveAppendsTrailEvent(t *testing.T) {
	s, tr := testStore(t)
	_ = s.Save("alice", "map", models.SlotGeometry{})
	entries := tr.List(0, 0)
	if len(entries) != 1 || !strings.Contains(entries[0], "user changed layout") {
		t.Errorf("trail = %v", entries)
	}
}

func TestLayoutScopedByUser(t *testing.T) {
	s, _ := testStore(t)
	_ = s.Save("alice", "map", models.SlotGeometry{Width: 1})
	_ = s.Save("bob", "map", models.SlotGeometry{Width: 2})

	if s.Get("alice")["map"].Width != 1 || s.Get("bob")["map"].Width != 2 {
		t.Error("layouts leaked across users")
	}
}

func TestSaveRequiresUserAndSlot(t *testing.T) {
	s, _ := testStore(t)
	var verrs validation.Errors
	if err := s.Save("", "map", models.SlotGeometry{}); !errors.As(err, &verrs) {
		t.Errorf("empty user: err = %v, want validation.Errors", err)
	}
	if err := s.Save("alice", "", models.SlotGeometry{}); !errors.As(err, &verrs) {
		t.Errorf("empty slot: err = %v, want validation.Errors", err)
	}
}

type failingSetStore struct {
	storage.Provider
}

func (failingSetStore) Set(string, []byte) error {
	return errors.New("disk full")
}

func TestSavePersistFailureIsNotValidation(t *testing.T) {
	fs, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s := New(failingSetStore{Provider: fs}, nil, testLogger())

	saveErr := s.Save("alice", "map", models.SlotGeometry{Width: 1})
	if saveErr == nil {
		t.Fatal("expected error when the write fails")
	}
	var verrs validation.Errors
	if errors.As(saveErr, &verrs) {
		t.Errorf("persist failure surfaced as validation error: %v", saveErr)
	}
}
