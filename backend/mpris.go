package backend

import (
	"errors"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/events"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/controls"
	"github.com/rezon/mediasession/backend/playback"
	"github.com/rezon/mediasession/backend/presentation"
)

const (
	dbusSessionPathPrefix = "/Rezon/Session/"
	noTrackObjectPath     = "/org/mpris/MediaPlayer2/TrackList/NoTrack"
)

var (
	_ types.OrgMprisMediaPlayer2Adapter       = (*MPRISHandler)(nil)
	_ types.OrgMprisMediaPlayer2PlayerAdapter = (*MPRISHandler)(nil)
)

var (
	errNotSupported = errors.New("not supported")
	errNoSession    = errors.New("no active session")
)

// MPRISHandler exposes the playback session on D-Bus as an MPRIS player and
// routes the method calls it receives as media session callbacks.
type MPRISHandler struct {
	// Function called if the player is requested to quit through MPRIS.
	// Should *asynchronously* start shutdown and return immediately.
	OnQuit func() error

	// Function to look up a URL for decoded artwork.
	ArtURLLookup func(*artwork.Artwork) (string, error)

	// URI scheme accepted by OpenUri, e.g. "mediasession" for
	// "mediasession:media/<id>".
	URIScheme string

	playerName string
	router     *controls.Router
	s          *server.Server
	evt        *events.EventHandler

	mu        sync.RWMutex
	connErr   error
	active    bool
	trackPath dbus.ObjectPath
	desc      presentation.Descriptor
}

func NewMPRISHandler(playerName string, router *controls.Router) *MPRISHandler {
	m := &MPRISHandler{
		playerName: playerName,
		router:     router,
		connErr:    errors.New("not started"),
		trackPath:  noTrackObjectPath,
	}
	m.s = server.NewServer(playerName, m, m)
	m.evt = events.NewEventHandler(m.s)
	return m
}

// Starts listening for MPRIS method calls.
func (m *MPRISHandler) Start() {
	m.mu.Lock()
	m.connErr = nil
	m.mu.Unlock()
	go func() {
		// exits early with err if unable to establish D-Bus connection
		if err := m.s.Listen(); err != nil {
			m.mu.Lock()
			m.connErr = err
			m.mu.Unlock()
		}
	}()
}

// Stops listening and releases any D-Bus resources.
func (m *MPRISHandler) Shutdown() {
	m.mu.Lock()
	connected := m.connErr == nil
	if connected {
		m.connErr = errors.New("stopped")
	}
	m.mu.Unlock()
	if connected {
		m.s.Stop()
	}
}

// MediaSessionSurface implementation

func (m *MPRISHandler) SetActive(active bool) error {
	m.mu.Lock()
	m.active = active
	if !active {
		m.trackPath = noTrackObjectPath
		m.desc = presentation.Descriptor{}
	}
	connected := m.connErr == nil
	m.mu.Unlock()

	if connected {
		m.evt.Player.OnTitle()
		m.evt.Player.OnPlayPause()
	}
	return nil
}

func (m *MPRISHandler) Publish(sessionID string, d presentation.Descriptor) error {
	m.mu.Lock()
	prev := m.desc
	m.desc = d
	m.trackPath = dbus.ObjectPath(dbusSessionPathPrefix + strings.ReplaceAll(sessionID, "-", "_"))
	connErr := m.connErr
	m.mu.Unlock()

	if connErr != nil {
		return nil
	}
	if metadataChanged(prev.Metadata, d.Metadata) {
		m.evt.Player.OnTitle()
	}
	if prev.Session.Status != d.Session.Status || prev.Session.Speed != d.Session.Speed {
		m.evt.Player.OnPlayPause()
	}
	if prev.Session.PositionMs != d.Session.PositionMs {
		m.evt.Player.OnSeek(msToMicroseconds(d.Session.PositionMs))
	}
	return nil
}

func metadataChanged(a, b presentation.Metadata) bool {
	return a.Title != b.Title || a.Artist != b.Artist || a.Album != b.Album ||
		a.DurationMs != b.DurationMs || a.Art != b.Art
}

// OrgMprisMediaPlayer2Adapter implementation

func (m *MPRISHandler) Identity() (string, error) {
	return m.playerName, nil
}

func (m *MPRISHandler) CanQuit() (bool, error) {
	return m.OnQuit != nil, nil
}

func (m *MPRISHandler) Quit() error {
	if m.OnQuit != nil {
		return m.OnQuit()
	}
	return errors.New("no quit handler added")
}

func (m *MPRISHandler) CanRaise() (bool, error) {
	return false, nil
}

func (m *MPRISHandler) Raise() error {
	return errNotSupported
}

func (m *MPRISHandler) HasTrackList() (bool, error) {
	return false, nil
}

func (m *MPRISHandler) SupportedUriSchemes() ([]string, error) {
	if m.URIScheme == "" {
		return nil, nil
	}
	return []string{m.URIScheme}, nil
}

func (m *MPRISHandler) SupportedMimeTypes() ([]string, error) {
	return nil, nil
}

// OrgMprisMediaPlayer2PlayerAdapter implementation

func (m *MPRISHandler) Next() error {
	return m.callback(controls.SessionCallback{Event: controls.OnSkipToNext})
}

func (m *MPRISHandler) Previous() error {
	return m.callback(controls.SessionCallback{Event: controls.OnSkipToPrevious})
}

func (m *MPRISHandler) Pause() error {
	return m.callback(controls.SessionCallback{Event: controls.OnPause})
}

func (m *MPRISHandler) PlayPause() error {
	m.mu.RLock()
	playing := m.desc.Session.Status == presentation.StatusPlaying
	m.mu.RUnlock()
	if playing {
		return m.Pause()
	}
	return m.Play()
}

func (m *MPRISHandler) Stop() error {
	return m.callback(controls.SessionCallback{Event: controls.OnStop})
}

func (m *MPRISHandler) Play() error {
	return m.callback(controls.SessionCallback{Event: controls.OnPlay})
}

func (m *MPRISHandler) Seek(offset types.Microseconds) error {
	// MPRIS seek is relative to the current position
	m.mu.RLock()
	pos := m.desc.Session.PositionMs + microsecondsToMs(offset)
	m.mu.RUnlock()
	return m.callback(controls.SessionCallback{Event: controls.OnSeekTo, PositionMs: pos})
}

func (m *MPRISHandler) SetPosition(trackId string, position types.Microseconds) error {
	m.mu.RLock()
	current := string(m.trackPath) == trackId
	m.mu.RUnlock()
	if !current {
		return nil // stale track, ignore per MPRIS
	}
	return m.callback(controls.SessionCallback{Event: controls.OnSeekTo, PositionMs: microsecondsToMs(position)})
}

func (m *MPRISHandler) OpenUri(uri string) error {
	prefix := m.URIScheme + ":media/"
	if m.URIScheme == "" || !strings.HasPrefix(uri, prefix) {
		return errNotSupported
	}
	return m.callback(controls.SessionCallback{Event: controls.OnPlayFromMediaID, MediaID: strings.TrimPrefix(uri, prefix)})
}

func (m *MPRISHandler) PlaybackStatus() (types.PlaybackStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.active {
		return types.PlaybackStatusStopped, nil
	}
	if m.desc.Session.Status == presentation.StatusPlaying {
		return types.PlaybackStatusPlaying, nil
	}
	return types.PlaybackStatusPaused, nil
}

func (m *MPRISHandler) Rate() (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.desc.Session.Speed <= 0 {
		return playback.DefaultSpeed, nil
	}
	return m.desc.Session.Speed, nil
}

func (m *MPRISHandler) SetRate(float64) error {
	return errNotSupported
}

func (m *MPRISHandler) Metadata() (types.Metadata, error) {
	m.mu.RLock()
	active := m.active
	trackPath := m.trackPath
	md := m.desc.Metadata
	m.mu.RUnlock()

	if !active {
		return types.Metadata{TrackId: noTrackObjectPath}, nil
	}
	var artURL string
	if md.Art != nil && m.ArtURLLookup != nil {
		if u, err := m.ArtURLLookup(md.Art); err == nil {
			artURL = u
		}
	}
	var artist []string
	if md.Artist != "" {
		artist = []string{md.Artist}
	}
	return types.Metadata{
		TrackId: trackPath,
		Length:  msToMicroseconds(md.DurationMs),
		Title:   md.Title,
		Album:   md.Album,
		Artist:  artist,
		ArtUrl:  artURL,
	}, nil
}

func (m *MPRISHandler) Volume() (float64, error) {
	return 1, nil
}

func (m *MPRISHandler) SetVolume(float64) error {
	return errNotSupported
}

func (m *MPRISHandler) Position() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(msToMicroseconds(m.desc.Session.PositionMs)), nil
}

func (m *MPRISHandler) MinimumRate() (float64, error) {
	r, _ := m.Rate()
	return min(r, playback.DefaultSpeed), nil
}

func (m *MPRISHandler) MaximumRate() (float64, error) {
	r, _ := m.Rate()
	return max(r, playback.DefaultSpeed), nil
}

func (m *MPRISHandler) CanGoNext() (bool, error) {
	return m.can(playback.CapSkipNext), nil
}

func (m *MPRISHandler) CanGoPrevious() (bool, error) {
	return m.can(playback.CapSkipPrevious), nil
}

func (m *MPRISHandler) CanPlay() (bool, error) {
	return m.can(playback.CapPlay), nil
}

func (m *MPRISHandler) CanPause() (bool, error) {
	return m.can(playback.CapPause), nil
}

func (m *MPRISHandler) CanSeek() (bool, error) {
	return m.can(playback.CapSeekTo), nil
}

func (m *MPRISHandler) CanControl() (bool, error) {
	return true, nil
}

func (m *MPRISHandler) can(c playback.Capability) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active && m.desc.Session.CanDo(c)
}

func (m *MPRISHandler) callback(cb controls.SessionCallback) error {
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()
	if !active {
		return errNoSession
	}
	m.router.Session(cb)
	return nil
}

func microsecondsToMs(u types.Microseconds) int64 {
	return int64(u) / 1000
}

func msToMicroseconds(ms int64) types.Microseconds {
	return types.Microseconds(ms * 1000)
}
