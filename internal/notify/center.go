// Package notify implements the notification center: a trail subscriber
// that derives one notification per trail event and tracks read state
// independently of the trail's own lifecycle.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/amberline/waypost/internal/apperr"
	"github.com/amberline/waypost/internal/models"
	"github.com/amberline/waypost/internal/storage"
)

const (
	keyPrefix  = "notifications_"
	timeLayout = "15:04:05"
)

// StorageKey returns the persistence key holding a user's notifications.
func StorageKey(userKey string) string { return keyPrefix + userKey }

// Center holds the current user's notifications and the derived unread
// badge count. In-memory state is authoritative for the session: storage
// failures are logged and otherwise ignored.
type Center struct {
	mu            sync.Mutex
	store         storage.Provider
	logger        *slog.Logger
	now           func() time.Time
	userKey       string
	notifications []models.Notification
	unreadCount   int
}

// New creates a Center with no active user. store may be nil, in which
// case notifications live only in memory.
func New(store storage.Provider, logger *slog.Logger) *Center {
	return &Center{store: store, logger: logger, now: time.Now}
}

// Reset re-keys the center to a new user and reloads persisted
// notifications. An empty userKey clears state.
func (c *Center) Reset(userKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userKey = userKey
	c.notifications = nil
	c.unreadCount = 0
	if userKey == "" || c.store == nil {
		return
	}
	raw, err := c.store.Get(keyPrefix + userKey)
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, &c.notifications); err != nil {
		c.logger.Warn("notify: corrupt persisted state, starting empty",
			slog.String("user", userKey), slog.String("error", err.Error()))
		c.notifications = nil
	}
	c.unreadCount = c.scanUnreadLocked()
}

// OnTrailEvent implements trail.Subscriber: every trail append becomes one
// unread notification.
func (c *Center) OnTrailEvent(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = append(c.notifications, models.Notification{
		ID:      uuid.NewString(),
		Message: message,
		Time:    c.now().Format(timeLayout),
		Read:    false,
	})
	c.unreadCount = c.scanUnreadLocked()
	c.persistLocked()
}

// List returns a copy of all notifications, oldest first.
func (c *Center) List() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Notification, len(c.notifications))
	copy(out, c.notifications)
	return out
}

// UnreadCount returns the current badge count.
func (c *Center) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unreadCount
}

// MarkAsRead flags one notification as read.
func (c *Center) MarkAsRead(id string) error {
	return c.setRead(id, true)
}

// MarkAsUnread flags one notification back to unread.
func (c *Center) MarkAsUnread(id string) error {
	return c.setRead(id, false)
}

func (c *Center) setRead(id string, read bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID == id {
			c.notifications[i].Read = read
			c.unreadCount = c.scanUnreadLocked()
			c.persistLocked()
			return nil
		}
	}
	return apperr.ErrNotFound
}

// MarkAllAsRead flags every notification as read.
func (c *Center) MarkAllAsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		c.notifications[i].Read = true
	}
	c.unreadCount = 0
	c.persistLocked()
}

// ClearUnread resets the badge count without touching read flags: opening
// the bell dropdown suppresses the badge but does not mark history read.
// The badge is session state, not persisted state, so nothing is written;
// a write here would echo back through the data watcher as a reload that
// re-derives the count from the unchanged flags.
func (c *Center) ClearUnread() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unreadCount = 0
}

// Remove deletes one notification. Removing an unknown id is a no-op.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.notifications[:0]
	for _, n := range c.notifications {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	c.notifications = kept
	c.unreadCount = c.scanUnreadLocked()
	c.persistLocked()
}

// ClearAll deletes every notification.
func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = nil
	c.unreadCount = 0
	c.persistLocked()
}

// scanUnreadLocked re-derives the unread count from the read flags. Every
// mutation goes through this scan rather than an incremental counter that
// could drift. ClearUnread is the one deliberate exception.
func (c *Center) scanUnreadLocked() int {
	n := 0
	for _, note := range c.notifications {
		if !note.Read {
			n++
		}
	}
	return n
}

func (c *Center) persistLocked() {
	if c.store == nil || c.userKey == "" {
		return
	}
	raw, err := json.Marshal(c.notifications)
	if err != nil {
		c.logger.Error("notify: marshal failed", slog.String("error", err.Error()))
		return
	}
	if err := c.store.Set(keyPrefix+c.userKey, raw); err != nil {
		c.logger.Warn("notify: persist failed",
			slog.String("user", c.userKey), slog.String("error", err.Error()))
	}
}
