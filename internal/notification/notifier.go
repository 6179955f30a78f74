// Package notification sends desktop notifications when long image
// operations finish.
package notification

import (
	"sync"

	"github.com/gen2brain/beeep"
)

// Notifier sends desktop notifications
type Notifier interface {
	Send(title, message string) error
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// BeeepNotifier implements Notifier using the beeep library
type BeeepNotifier struct {
	enabled bool
	appIcon string
	notify  func(title, message, icon string) error
	mu      sync.RWMutex
}

// NewBeeepNotifier creates a new beeep-based notifier
func NewBeeepNotifier(enabled bool) *BeeepNotifier {
	return &BeeepNotifier{
		enabled: enabled,
		notify: func(title, message, icon string) error {
			return beeep.Notify(title, message, icon)
		},
	}
}

// Send sends a notification. It does nothing while disabled.
func (n *BeeepNotifier) Send(title, message string) error {
	n.mu.RLock()
	enabled, icon, notify := n.enabled, n.appIcon, n.notify
	n.mu.RUnlock()

	if !enabled {
		return nil
	}
	return notify(title, message, icon)
}

// SetEnabled enables or disables notifications
func (n *BeeepNotifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled
func (n *BeeepNotifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// SetIcon sets the notification icon
func (n *BeeepNotifier) SetIcon(iconPath string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.appIcon = iconPath
}

// Result notifies the outcome of an operation: success when err is nil.
func Result(n Notifier, operation string, err error) error {
	if err != nil {
		return n.Send("quantum-exegol", operation+" failed: "+err.Error())
	}
	return n.Send("quantum-exegol", operation+" finished")
}
