// Package storage defines the key-value persistence port backing every
// per-user store. Callers namespace keys explicitly ("locations_<user>",
// "activityLogs_<user>", "dashboardLayout_<user>"); the provider knows
// nothing about users.
package storage

// Provider is the interface for persisted key-value documents.
type Provider interface {
	// Get returns the raw document stored under key, or an error wrapping
	// os.ErrNotExist when the key has never been written.
	Get(key string) ([]byte, error)
	// Set atomically replaces the document stored under key.
	Set(key string, value []byte) error
	// Delete removes the document stored under key. Deleting an absent
	// key is not an error.
	Delete(key string) error
	// Keys returns every stored key with the given prefix.
	Keys(prefix string) ([]string, error)
}
