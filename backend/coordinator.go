package backend

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/playback"
	"github.com/rezon/mediasession/backend/presentation"
)

// artworkSlot holds the decoded artwork for exactly one reference.
// art is nil while the load is in flight or after it failed.
type artworkSlot struct {
	ref string
	art *artwork.Artwork
}

// SessionCoordinator owns the playback state of the current session and is
// the only writer of the notification and media session surfaces.
//
// All state and every surface call is guarded by one mutex. Artwork loads
// run in their own goroutines and re-enter the mutex to apply their result,
// checking against the live artwork reference in the same critical section,
// so the last requested reference always wins over the last completed load.
type SessionCoordinator struct {
	mu sync.Mutex

	ctx          context.Context
	loader       ArtworkSource
	notification NotificationSurface
	session      MediaSessionSurface

	defaultTitle  string
	defaultAuthor string

	active     bool
	sessionID  uuid.UUID
	state      playback.State
	slot       artworkSlot
	cancelLoad context.CancelFunc

	loads sync.WaitGroup
}

// NewSessionCoordinator takes ownership of the given surfaces. Nil surfaces
// are replaced with no-ops. In-flight artwork loads are cancelled when ctx is done.
func NewSessionCoordinator(ctx context.Context, loader ArtworkSource, n NotificationSurface, s MediaSessionSurface) *SessionCoordinator {
	if n == nil {
		n = noopNotifier{}
	}
	if s == nil {
		s = noopMediaSession{}
	}
	return &SessionCoordinator{
		ctx:           ctx,
		loader:        loader,
		notification:  n,
		session:       s,
		defaultTitle:  "Unknown Title",
		defaultAuthor: "Unknown Author",
	}
}

// SetDefaults sets the placeholder title and author used by the next
// fresh session.
func (c *SessionCoordinator) SetDefaults(title, author string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if title != "" {
		c.defaultTitle = title
	}
	if author != "" {
		c.defaultAuthor = author
	}
}

// UpdateState merges p into the current state, starting a fresh session if
// none is active, and republishes the presentation with whatever artwork is
// cached right now. A changed artwork reference schedules a background load.
// It never blocks on artwork and never fails.
func (c *SessionCoordinator) UpdateState(p playback.Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		c.startSessionLocked()
	}
	if c.state.Apply(p) {
		c.resetArtworkLocked()
	}
	c.publishLocked()
}

// Stop ends the session: the notification is removed and the media session
// released. Calling Stop without an active session does nothing.
func (c *SessionCoordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return
	}
	log.Printf("Ending playback session %s", c.sessionID)
	c.active = false
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	if err := c.notification.Cancel(); err != nil {
		log.Printf("failed to remove notification: %v", err)
	}
	if err := c.session.SetActive(false); err != nil {
		log.Printf("failed to release media session: %v", err)
	}
	c.state = playback.State{}
	c.slot = artworkSlot{}
}

// State returns a copy of the current state, and false if no session is active.
func (c *SessionCoordinator) State() (playback.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.active
}

// Descriptor returns the presentation as last published, and false if no
// session is active.
func (c *SessionCoordinator) Descriptor() (presentation.Descriptor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return presentation.Descriptor{}, false
	}
	return c.renderLocked(), true
}

// HasArtwork reports whether artwork for the current reference is loaded.
func (c *SessionCoordinator) HasArtwork() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active && c.slot.art != nil && c.slot.ref == c.state.ArtworkRef
}

// SessionID returns the ID of the active session, or the empty string.
func (c *SessionCoordinator) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ""
	}
	return c.sessionID.String()
}

// WaitForArtwork blocks until all artwork loads started so far have finished.
func (c *SessionCoordinator) WaitForArtwork() {
	c.loads.Wait()
}

func (c *SessionCoordinator) startSessionLocked() {
	c.active = true
	c.sessionID = uuid.New()
	c.state = playback.NewState(c.defaultTitle, c.defaultAuthor)
	c.slot = artworkSlot{}
	log.Printf("Starting playback session %s", c.sessionID)
	if err := c.session.SetActive(true); err != nil {
		log.Printf("failed to activate media session: %v", err)
	}
}

func (c *SessionCoordinator) resetArtworkLocked() {
	if c.cancelLoad != nil {
		// superseded loads are discarded on completion regardless
		c.cancelLoad()
		c.cancelLoad = nil
	}
	ref := c.state.ArtworkRef
	c.slot = artworkSlot{ref: ref}
	if ref == "" || c.loader == nil {
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelLoad = cancel
	id := c.sessionID
	c.loads.Add(1)
	go func() {
		defer c.loads.Done()
		defer cancel()
		art, err := c.loader.Load(ctx, ref)
		c.applyArtwork(id, ref, art, err)
	}()
}

func (c *SessionCoordinator) applyArtwork(id uuid.UUID, ref string, art *artwork.Artwork, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active || c.sessionID != id || c.slot.ref != ref {
		return // superseded
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Printf("failed to load artwork: %v", err)
		}
		return
	}
	if art == nil {
		return
	}
	c.slot.art = art
	c.publishLocked()
}

func (c *SessionCoordinator) renderLocked() presentation.Descriptor {
	var art *artwork.Artwork
	if c.slot.ref == c.state.ArtworkRef {
		art = c.slot.art
	}
	return presentation.Render(c.state, art)
}

func (c *SessionCoordinator) publishLocked() {
	d := c.renderLocked()
	if err := c.notification.Post(d.Notification); err != nil {
		log.Printf("failed to post notification: %v", err)
	}
	if err := c.session.Publish(c.sessionID.String(), d); err != nil {
		log.Printf("failed to publish media session: %v", err)
	}
}
