package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/amberline/waypost/internal/engine"
	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/storage"
)

func testServer(t *testing.T) *Server {
	t.Helper()

	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	eng := engine.New(store, nil, nil, nil, logger)
	return New(eng)
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	// mcp-go doesn't expose a direct "call tool" test helper, so we test
	// through the tool handler functions directly.
	var result *mcp.CallToolResult
	var err error

	switch name {
	case "start_session":
		result, err = srv.startSession(ctx, req)
	case "list_locations":
		result, err = srv.listLocations(ctx, req)
	case "save_location":
		result, err = srv.saveLocation(ctx, req)
	case "snap_coordinate":
		result, err = srv.snapCoordinate(ctx, req)
	case "cumulative_distance":
		result, err = srv.cumulativeDistance(ctx, req)
	case "search_activity":
		result, err = srv.searchActivity(ctx, req)
	case "get_location_contract":
		result, err = srv.getLocationContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func validArgs(name string) map[string]interface{} {
	return map[string]interface{}{
		"name":    name,
		"address": "12 MG Road",
		"type":    "Office",
		"lat":     12.9716,
		"lng":     77.5946,
	}
}

func TestSaveAndListLocations(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "start_session", map[string]interface{}{"user": "alice"})

	r := callTool(t, srv, "save_location", validArgs("Head Office"))
	if r.IsError {
		t.Fatalf("save failed: %s", resultText(r))
	}
	var saved models.Location
	if err := json.Unmarshal([]byte(resultText(r)), &saved); err != nil {
		t.Fatal(err)
	}
	if saved.ID == "" || saved.Name != "Head Office" {
		t.Errorf("saved = %+v", saved)
	}

	r = callTool(t, srv, "list_locations", nil)
	var list []models.Location
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != saved.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestStartSessionRejectsEmptyUser(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "start_session", map[string]interface{}{"user": ""})
	if !r.IsError {
		t.Fatalf("expected error, got %q", resultText(r))
	}
	// No session was activated, so saves still fail.
	if r := callTool(t, srv, "save_location", validArgs("Head Office")); !r.IsError {
		t.Error("save succeeded after rejected session start")
	}
}

func TestSaveLocationWithoutSession(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "save_location", validArgs("Head Office"))
	if !r.IsError {
		t.Error("expected error without a session")
	}
}

func TestSaveLocationRejectsBadInput(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "start_session", map[string]interface{}{"user": "alice"})

	args := validArgs("ok")
	args["name"] = "ab"
	if r := callTool(t, srv, "save_location", args); !r.IsError {
		t.Error("expected error for short name")
	}

	args = validArgs("Head Office")
	args["lat"] = 120.0
	if r := callTool(t, srv, "save_location", args); !r.IsError {
		t.Error("expected error for latitude out of range")
	}
}

func TestSnapCoordinate(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "start_session", map[string]interface{}{"user": "alice"})
	args := validArgs("Origin")
	args["lat"], args["lng"] = 0.0, 0.0
	callTool(t, srv, "save_location", args)

	r := callTool(t, srv, "snap_coordinate", map[string]interface{}{"lat": 2.0, "lng": 2.0})
	var snapped models.LatLng
	if err := json.Unmarshal([]byte(resultText(r)), &snapped); err != nil {
		t.Fatal(err)
	}
	if snapped.Lat != 1 || snapped.Lng != 1 {
		t.Errorf("snapped = %+v, want midpoint {1 1}", snapped)
	}
}

func TestCumulativeDistance(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "start_session", map[string]interface{}{"user": "alice"})
	a := validArgs("Origin")
	a["lat"], a["lng"] = 0.0, 0.0
	callTool(t, srv, "save_location", a)
	b := validArgs("Far Point")
	b["lat"], b["lng"] = 1.0, 1.0
	callTool(t, srv, "save_location", b)

	r := callTool(t, srv, "cumulative_distance", nil)
	var series struct {
		Distances []float64 `json:"distances"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &series); err != nil {
		t.Fatal(err)
	}
	if len(series.Distances) != 2 || series.Distances[0] != 0 || series.Distances[1] <= 0 {
		t.Errorf("series = %+v", series)
	}
}

func TestSearchActivityWithoutArchive(t *testing.T) {
	srv := testServer(t)
	callTool(t, srv, "start_session", map[string]interface{}{"user": "alice"})
	r := callTool(t, srv, "search_activity", map[string]interface{}{"query": "added"})
	if r.IsError {
		t.Fatalf("search failed: %s", resultText(r))
	}
	if text := resultText(r); !strings.Contains(text, "[]") {
		t.Errorf("result = %q, want empty list", text)
	}
}

func TestGetLocationContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_location_contract", nil)
	text := resultText(r)
	if !strings.Contains(text, "Location Format Contract") || !strings.Contains(text, "decimal degrees") {
		t.Errorf("contract = %q", text)
	}
}
