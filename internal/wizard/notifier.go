package wizard

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"home-planner/internal/models"
)

const (
	CodePreviewMode  = "PREVIEW_MODE"
	defaultNotifyCap = 20
)

// Notifier keeps the notifications currently shown to the user. Persistent
// notifications stay until dismissed by code; transient ones are dismissible
// by id and the oldest are dropped when the list is full.
type Notifier struct {
	mu       sync.Mutex
	items    []models.Notification
	capacity int
	now      func() time.Time
}

func NewNotifier(capacity int) *Notifier {
	if capacity <= 0 {
		capacity = defaultNotifyCap
	}
	return &Notifier{capacity: capacity, now: time.Now}
}

func (n *Notifier) Push(level models.NotificationLevel, code, message string, persistent bool) models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	item := models.Notification{
		ID:         uuid.NewString(),
		Level:      level,
		Code:       code,
		Message:    message,
		Persistent: persistent,
		CreatedAt:  n.now().UTC(),
	}
	n.items = append(n.items, item)
	n.trimLocked()
	return item
}

// Ensure pushes a persistent notification unless one with the same code is active.
func (n *Notifier) Ensure(level models.NotificationLevel, code, message string) {
	n.mu.Lock()
	for _, item := range n.items {
		if item.Code == code {
			n.mu.Unlock()
			return
		}
	}
	n.mu.Unlock()
	n.Push(level, code, message, true)
}

func (n *Notifier) Dismiss(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, item := range n.items {
		if item.ID == id {
			n.items = append(n.items[:i], n.items[i+1:]...)
			return true
		}
	}
	return false
}

// DismissCode removes every notification with code and returns how many were removed.
func (n *Notifier) DismissCode(code string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	kept := n.items[:0]
	removed := 0
	for _, item := range n.items {
		if item.Code == code {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	n.items = kept
	return removed
}

func (n *Notifier) Active() []models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.Notification, len(n.items))
	copy(out, n.items)
	return out
}

func (n *Notifier) Has(code string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, item := range n.items {
		if item.Code == code {
			return true
		}
	}
	return false
}

func (n *Notifier) Clear() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = nil
}

func (n *Notifier) trimLocked() {
	for len(n.items) > n.capacity {
		drop := 0
		for i, item := range n.items {
			if !item.Persistent {
				drop = i
				break
			}
		}
		n.items = append(n.items[:drop], n.items[drop+1:]...)
	}
}
