package notify

import (
	"context"

	"github.com/gen2brain/beeep"
)

// DesktopNotifier shows an alert on the local desktop notification surface.
type DesktopNotifier struct{}

var _ Notifier = (*DesktopNotifier)(nil)

// NewDesktopNotifier creates a desktop notifier.
func NewDesktopNotifier() *DesktopNotifier {
	return &DesktopNotifier{}
}

// Send shows the alert with sound.
func (n *DesktopNotifier) Send(ctx context.Context, title, message string) error {
	return beeep.Alert(title, message, "")
}

// Channel implements Notifier.
func (n *DesktopNotifier) Channel() string {
	return "desktop"
}
