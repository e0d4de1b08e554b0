package models

// Notification is derived 1:1 from a trail append. Read is the only
// mutable field; the unread count is always re-derived from a scan of
// these flags, never maintained incrementally.
type Notification struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Time    string `json:"time"` // HH:MM:SS, display form
	Read    bool   `json:"read"`
}
