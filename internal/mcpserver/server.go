// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Waypost tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/amberline/waypost/internal/engine"
	"github.com/amberline/waypost/internal/location"
	"github.com/amberline/waypost/internal/models"
)

// Server wraps the MCP server with Waypost tools.
type Server struct {
	mcp *server.MCPServer
	eng *engine.Engine
}

// New creates a new MCP server with all Waypost tools registered.
func New(eng *engine.Engine) *Server {
	s := &Server{eng: eng}

	s.mcp = server.NewMCPServer(
		"Waypost",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Activate a user session. Required before saving locations."),
		mcp.WithString("user", mcp.Required(), mcp.Description("User key to activate")),
	), s.startSession)

	s.mcp.AddTool(mcp.NewTool("list_locations",
		mcp.WithDescription("List the active user's saved locations, newest first."),
	), s.listLocations)

	s.mcp.AddTool(mcp.NewTool("save_location",
		mcp.WithDescription("Save a new location for the active user. "+
			"Input MUST follow the canonical location format (name, address, "+
			"closed type set, decimal-degree coordinates). Read the contract "+
			"first via the get_location_contract tool or the "+
			"waypost://location-format resource."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name, at least 3 characters")),
		mcp.WithString("address", mcp.Required(), mcp.Description("Street address, 1 to 200 characters")),
		mcp.WithString("type", mcp.Required(), mcp.Description("One of: Home, Office, Shop, Other")),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in decimal degrees")),
		mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in decimal degrees")),
	), s.saveLocation)

	s.mcp.AddTool(mcp.NewTool("get_location_contract",
		mcp.WithDescription("Returns the canonical Waypost location format contract. "+
			"Call this before saving locations to ensure correct structure."),
	), s.getLocationContract)

	s.mcp.AddTool(mcp.NewTool("snap_coordinate",
		mcp.WithDescription("Snap a rough coordinate toward the nearest saved location "+
			"(returns the midpoint between the candidate and its nearest neighbour)."),
		mcp.WithNumber("lat", mcp.Required(), mcp.Description("Latitude in decimal degrees")),
		mcp.WithNumber("lng", mcp.Required(), mcp.Description("Longitude in decimal degrees")),
	), s.snapCoordinate)

	s.mcp.AddTool(mcp.NewTool("cumulative_distance",
		mcp.WithDescription("Cumulative haversine distance series (km) over the saved "+
			"locations in creation order, with HH:MM:SS labels."),
	), s.cumulativeDistance)

	s.mcp.AddTool(mcp.NewTool("search_activity",
		mcp.WithDescription("Search the active user's long-term activity archive."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to search for")),
	), s.searchActivity)

	// Resource: location format contract.
	s.mcp.AddResource(
		mcp.NewResource("waypost://location-format", "Location Format Contract",
			mcp.WithResourceDescription("Canonical location record format that saved locations must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readLocationFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) startSession(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	user, err := req.RequireString("user")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if user == "" {
		return mcp.NewToolResultError("user must not be empty"), nil
	}
	s.eng.SwitchUser(user)
	return mcp.NewToolResultText(fmt.Sprintf("session active: %s", s.eng.CurrentUser())), nil
}

func (s *Server) listLocations(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.eng.Locations().List(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) saveLocation(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	address, err := req.RequireString("address")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	locType, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	loc, err := s.eng.Locations().Add(location.Input{
		Name:    name,
		Address: address,
		Type:    models.LocationType(locType),
		Lat:     lat,
		Lng:     lng,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(loc, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) snapCoordinate(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lat, err := req.RequireFloat("lat")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lng, err := req.RequireFloat("lng")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snapped := s.eng.Locations().SnapToNearest(models.LatLng{Lat: lat, Lng: lng})
	out, _ := json.Marshal(snapped)
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) cumulativeDistance(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, _ := json.MarshalIndent(s.eng.DistanceSeries(), "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) searchActivity(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entries, err := s.eng.ArchiveSearch(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getLocationContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LocationFormatContract), nil
}

func (s *Server) readLocationFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "waypost://location-format",
			MIMEType: "text/markdown",
			Text:     LocationFormatContract,
		},
	}, nil
}
