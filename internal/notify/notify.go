// Package notify delivers agent-facing notifications. Delivery is fire-and-forget.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/checkfox/go_reachout/internal/logger"
)

// Level is the severity shown to the agent
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier accepts a notification without blocking the caller
type Notifier interface {
	Notify(ctx context.Context, message string, level Level)
}

// Notification is one delivered message
type Notification struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Level     Level     `json:"level"`
	CreatedAt time.Time `json:"createdAt"`
}

// Feed keeps the most recent notifications for the UI to poll and logs each one
type Feed struct {
	mu     sync.Mutex
	items  []Notification
	next   int
	full   bool
	lastID int64
	now    func() time.Time
}

// NewFeed creates a feed holding up to size notifications
func NewFeed(size int) *Feed {
	if size < 1 {
		size = 1
	}
	return &Feed{items: make([]Notification, size), now: time.Now}
}

// Notify records the message and logs it at the matching level
func (f *Feed) Notify(ctx context.Context, message string, level Level) {
	f.mu.Lock()
	f.lastID++
	n := Notification{ID: f.lastID, Message: message, Level: level, CreatedAt: f.now().UTC()}
	f.items[f.next] = n
	f.next = (f.next + 1) % len(f.items)
	if f.next == 0 {
		f.full = true
	}
	f.mu.Unlock()

	switch level {
	case LevelError:
		logger.Error(ctx, message, "notification_id", n.ID)
	case LevelWarning:
		logger.Warn(ctx, message, "notification_id", n.ID)
	default:
		logger.Info(ctx, message, "notification_id", n.ID, "level", string(level))
	}
}

// Recent returns notifications with an ID greater than since, oldest first
func (f *Feed) Recent(since int64) []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ordered []Notification
	if f.full {
		ordered = append(ordered, f.items[f.next:]...)
	}
	ordered = append(ordered, f.items[:f.next]...)

	out := make([]Notification, 0, len(ordered))
	for _, n := range ordered {
		if n.ID > since {
			out = append(out, n)
		}
	}
	return out
}
