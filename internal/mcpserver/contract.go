package mcpserver

// LocationFormatContract describes the canonical location record that
// LLM consumers should follow when saving locations.
const LocationFormatContract = `# Waypost Location Format Contract

Every location saved through Waypost MUST follow this structure.

## Fields

` + "```" + `json
{
  "name": "Head Office",          // REQUIRED - at least 3 characters
  "address": "12 MG Road",        // REQUIRED - 1 to 200 characters
  "type": "Office",               // REQUIRED - one of: Home, Office, Shop, Other
  "lat": 12.9716,                 // REQUIRED - decimal degrees, -90 to 90
  "lng": 77.5946                  // REQUIRED - decimal degrees, -180 to 180
}
` + "```" + `

## Rules

1. **Coordinates are decimal degrees** (WGS84). Never use
   degrees-minutes-seconds strings.
2. **` + "`" + `type` + "`" + ` is a closed set.** Unknown categories go under ` + "`" + `Other` + "`" + `.
3. **An active session is required** before saving. Call the
   ` + "`" + `start_session` + "`" + ` tool first.
4. Saving a location automatically records an activity trail entry and
   raises a notification; do not record these yourself.
5. When the user gives only a rough coordinate, call
   ` + "`" + `snap_coordinate` + "`" + ` first and save the snapped point.
`
