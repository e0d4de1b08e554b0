package models

// TableSnapshot is the tabular form consumed by the external PDF and Excel
// renderers. The engine only produces the snapshot; rendering happens
// outside.
type TableSnapshot struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}
