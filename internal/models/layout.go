package models

// SlotGeometry is the persisted position and size of one dashboard widget
// slot. Slots are created with defaults on first render and overwritten,
// never deleted.
type SlotGeometry struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Layout maps slot ids ("map", "chart", ...) to their geometry.
type Layout map[string]SlotGeometry
