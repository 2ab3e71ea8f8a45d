package backend

import (
	"context"

	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/presentation"
)

// NotificationSurface is the foreground notification shown while a
// session is active.
type NotificationSurface interface {
	// Post shows n, replacing the previously posted notification if any.
	Post(n presentation.Notification) error
	// Cancel removes the notification. It is a no-op if none is posted.
	Cancel() error
}

// MediaSessionSurface is the system media session (lock screen, desktop
// media controls).
type MediaSessionSurface interface {
	// SetActive registers or releases the session. Releasing clears
	// the published metadata.
	SetActive(active bool) error
	Publish(sessionID string, d presentation.Descriptor) error
}

// ArtworkSource resolves artwork references. *artwork.Loader implements it.
type ArtworkSource interface {
	Load(ctx context.Context, ref string) (*artwork.Artwork, error)
}

var (
	_ ArtworkSource       = (*artwork.Loader)(nil)
	_ NotificationSurface = (*DesktopNotifier)(nil)
	_ MediaSessionSurface = (*MPRISHandler)(nil)
)

// used when the environment offers no such surface
type noopNotifier struct{}

func (noopNotifier) Post(presentation.Notification) error { return nil }
func (noopNotifier) Cancel() error                        { return nil }

type noopMediaSession struct{}

func (noopMediaSession) SetActive(bool) error                          { return nil }
func (noopMediaSession) Publish(string, presentation.Descriptor) error { return nil }
