package backend

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/playback"
	"github.com/rezon/mediasession/backend/presentation"
)

type fakeNotifier struct {
	mu       sync.Mutex
	posted   []presentation.Notification
	visible  bool
	cancels  int
	failWith error
}

func (f *fakeNotifier) Post(n presentation.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.posted = append(f.posted, n)
	f.visible = true
	return nil
}

func (f *fakeNotifier) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.visible = false
	return nil
}

func (f *fakeNotifier) last() (presentation.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.posted) == 0 {
		return presentation.Notification{}, false
	}
	return f.posted[len(f.posted)-1], f.visible
}

type fakeSession struct {
	mu          sync.Mutex
	active      bool
	activations int
	published   []presentation.Descriptor
	ids         []string
	failWith    error
}

func (f *fakeSession) SetActive(active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if active {
		f.activations++
	}
	f.active = active
	return nil
}

func (f *fakeSession) Publish(id string, d presentation.Descriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, d)
	f.ids = append(f.ids, id)
	return nil
}

func (f *fakeSession) last() presentation.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[len(f.published)-1]
}

// gatedLoader blocks each load until its ref is released.
type gatedLoader struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	fail    map[string]bool
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{
		gates:   make(map[string]chan struct{}),
		started: make(chan string, 16),
		fail:    make(map[string]bool),
	}
}

func (g *gatedLoader) gate(ref string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[ref]
	if !ok {
		ch = make(chan struct{})
		g.gates[ref] = ch
	}
	return ch
}

func (g *gatedLoader) release(ref string) {
	close(g.gate(ref))
}

func (g *gatedLoader) Load(_ context.Context, ref string) (*artwork.Artwork, error) {
	g.started <- ref
	<-g.gate(ref)
	g.mu.Lock()
	fail := g.fail[ref]
	g.mu.Unlock()
	if fail {
		return nil, errors.New("fetch failed")
	}
	return &artwork.Artwork{Ref: ref, Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}, nil
}

func newTestCoordinator(l ArtworkSource) (*SessionCoordinator, *fakeNotifier, *fakeSession) {
	n := &fakeNotifier{}
	s := &fakeSession{}
	c := NewSessionCoordinator(context.Background(), l, n, s)
	c.SetDefaults("Rezon Audiobooks", "Now Playing")
	return c, n, s
}

func TestUpdateStateRendersImmediately(t *testing.T) {
	c, n, s := newTestCoordinator(newGatedLoader())
	c.UpdateState(playback.Patch{
		Title:      playback.Ptr("Dune"),
		Author:     playback.Ptr("Frank Herbert"),
		IsPlaying:  playback.Ptr(true),
		PositionMs: playback.Ptr(int64(0)),
		DurationMs: playback.Ptr(int64(600000)),
	})

	notif, visible := n.last()
	if !visible {
		t.Fatal("notification not shown")
	}
	if notif.Title != "Dune" || notif.Subtitle != "Frank Herbert" {
		t.Errorf("notification = %q / %q", notif.Title, notif.Subtitle)
	}
	if notif.Actions[presentation.SlotPlayPause].Label != "Pause" {
		t.Errorf("middle slot = %q, want Pause", notif.Actions[presentation.SlotPlayPause].Label)
	}
	d := s.last()
	if d.Session.Status != presentation.StatusPlaying || d.Session.PositionMs != 0 {
		t.Errorf("session = %v at %d", d.Session.Status, d.Session.PositionMs)
	}
	if !s.active {
		t.Error("media session should be active")
	}
}

func TestUpdateStateUsesDefaults(t *testing.T) {
	c, n, _ := newTestCoordinator(nil)
	c.UpdateState(playback.Patch{IsPlaying: playback.Ptr(false)})
	notif, _ := n.last()
	if notif.Title != "Rezon Audiobooks" || notif.Subtitle != "Now Playing" {
		t.Errorf("defaults = %q / %q", notif.Title, notif.Subtitle)
	}
}

func TestUpdateStateDoesNotWaitForArtwork(t *testing.T) {
	l := newGatedLoader()
	c, n, s := newTestCoordinator(l)

	c.UpdateState(playback.Patch{Title: playback.Ptr("Dune"), ArtworkRef: playback.Ptr("A")})
	<-l.started
	// the load is still blocked, yet the update was published
	if _, visible := n.last(); !visible {
		t.Fatal("notification not published while artwork in flight")
	}
	if s.last().HasArtwork() {
		t.Error("no artwork should be shown while in flight")
	}

	l.release("A")
	c.WaitForArtwork()
	if !s.last().HasArtwork() || s.last().Metadata.Art.Ref != "A" {
		t.Error("artwork not published after load completed")
	}
	notif, _ := n.last()
	if notif.LargeIcon == nil {
		t.Error("notification should carry artwork after load")
	}
}

func TestArtworkLastRequestedWins(t *testing.T) {
	l := newGatedLoader()
	c, _, s := newTestCoordinator(l)

	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("A")})
	<-l.started
	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("B")})
	<-l.started

	// B completes first, then A
	l.release("B")
	waitForArt(t, c, "B")
	l.release("A")
	c.WaitForArtwork()

	d, ok := c.Descriptor()
	if !ok {
		t.Fatal("session should be active")
	}
	if !d.HasArtwork() || d.Metadata.Art.Ref != "B" {
		t.Errorf("final artwork = %v, want B", d.Metadata.Art)
	}
	if last := s.last(); last.Metadata.Art == nil || last.Metadata.Art.Ref != "B" {
		t.Error("stale artwork A was published")
	}
}

func TestArtworkStaleLoadDiscardedWhileNewerInFlight(t *testing.T) {
	l := newGatedLoader()
	c, _, _ := newTestCoordinator(l)

	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("A")})
	<-l.started
	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("B")})
	<-l.started

	// A completes while B is still loading: nothing must be shown
	l.release("A")
	time.Sleep(20 * time.Millisecond)
	d, _ := c.Descriptor()
	if d.HasArtwork() {
		t.Errorf("stale artwork %q applied", d.Metadata.Art.Ref)
	}
	l.release("B")
	c.WaitForArtwork()
	d, _ = c.Descriptor()
	if !d.HasArtwork() || d.Metadata.Art.Ref != "B" {
		t.Error("expected artwork B")
	}
}

func TestArtworkClearedDiscardsInFlight(t *testing.T) {
	l := newGatedLoader()
	c, _, _ := newTestCoordinator(l)

	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("A")})
	<-l.started
	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("")})
	l.release("A")
	c.WaitForArtwork()

	if d, _ := c.Descriptor(); d.HasArtwork() {
		t.Error("artwork should stay cleared")
	}
}

func TestArtworkFailureLeavesNoArtwork(t *testing.T) {
	l := newGatedLoader()
	l.fail["https://bad.invalid/x.png"] = true
	c, n, s := newTestCoordinator(l)

	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("good")})
	<-l.started
	l.release("good")
	c.WaitForArtwork()

	c.UpdateState(playback.Patch{ArtworkRef: playback.Ptr("https://bad.invalid/x.png")})
	<-l.started
	l.release("https://bad.invalid/x.png")
	c.WaitForArtwork()

	if s.last().HasArtwork() {
		t.Error("failed load must not leave stale artwork")
	}
	if notif, _ := n.last(); notif.LargeIcon != nil {
		t.Error("notification must not keep stale artwork")
	}
	if st, ok := c.State(); !ok || st.ArtworkRef != "https://bad.invalid/x.png" {
		t.Errorf("state = %+v, %v", st, ok)
	}
}

func TestStopAndFreshSession(t *testing.T) {
	l := newGatedLoader()
	c, n, s := newTestCoordinator(l)

	c.UpdateState(playback.Patch{Title: playback.Ptr("Dune"), IsPlaying: playback.Ptr(true), ArtworkRef: playback.Ptr("A")})
	<-l.started
	firstID := c.SessionID()

	c.Stop()
	c.Stop() // idempotent
	if n.cancels != 1 {
		t.Errorf("notification cancelled %d times, want 1", n.cancels)
	}
	if _, visible := n.last(); visible {
		t.Error("notification should be removed")
	}
	if s.active {
		t.Error("media session should be inactive")
	}
	if _, ok := c.State(); ok {
		t.Error("state should be discarded after stop")
	}

	// the old session's load finishing must not resurrect anything
	l.release("A")
	c.WaitForArtwork()
	if _, ok := c.Descriptor(); ok {
		t.Error("session should stay inactive")
	}

	c.UpdateState(playback.Patch{Author: playback.Ptr("Frank Herbert")})
	st, ok := c.State()
	if !ok {
		t.Fatal("update after stop should start a fresh session")
	}
	if st.Title != "Rezon Audiobooks" || st.IsPlaying || st.ArtworkRef != "" {
		t.Errorf("fresh session carried old state: %+v", st)
	}
	if c.SessionID() == firstID {
		t.Error("fresh session should get a new ID")
	}
	if s.activations != 2 {
		t.Errorf("media session activated %d times, want 2", s.activations)
	}
	if _, visible := n.last(); !visible {
		t.Error("notification should be re-created")
	}
}

func TestEnvironmentErrorsAreNotFatal(t *testing.T) {
	n := &fakeNotifier{failWith: errors.New("no notification daemon")}
	s := &fakeSession{failWith: errors.New("no session bus")}
	c := NewSessionCoordinator(context.Background(), nil, n, s)

	c.UpdateState(playback.Patch{Title: playback.Ptr("Dune")})
	c.UpdateState(playback.Patch{PositionMs: playback.Ptr(int64(1000))})

	st, ok := c.State()
	if !ok || st.Title != "Dune" || st.PositionMs != 1000 {
		t.Errorf("state = %+v, %v; updates should still apply", st, ok)
	}

	// once the surfaces recover, the next update renders
	n.mu.Lock()
	n.failWith = nil
	n.mu.Unlock()
	c.UpdateState(playback.Patch{IsPlaying: playback.Ptr(true)})
	if notif, _ := n.last(); notif.Title != "Dune" {
		t.Errorf("recovered notification title = %q", notif.Title)
	}
}

func TestNilSurfaces(t *testing.T) {
	c := NewSessionCoordinator(context.Background(), nil, nil, nil)
	c.UpdateState(playback.Patch{Title: playback.Ptr("x"), ArtworkRef: playback.Ptr("ignored")})
	c.Stop()
}

// waitForArt waits until the published artwork has the given ref.
func waitForArt(t *testing.T, c *SessionCoordinator, ref string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if d, ok := c.Descriptor(); ok && d.HasArtwork() && d.Metadata.Art.Ref == ref {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("artwork %q never applied", ref)
}
