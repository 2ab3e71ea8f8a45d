// Package controls normalizes control signals from the notification, the
// system media session and the car display into playback actions, and
// delivers them to the host application over a single channel.
package controls

import (
	"context"

	"github.com/rezon/mediasession/backend/playback"
	"github.com/rezon/mediasession/backend/presentation"
)

const DefaultMaxPending = 64

// SessionEvent is a callback kind of the system media session.
type SessionEvent int

const (
	OnPlay SessionEvent = iota
	OnPause
	OnSkipToNext
	OnSkipToPrevious
	OnFastForward
	OnRewind
	OnSeekTo // arg: PositionMs
	OnStop
	OnPlayFromMediaID // arg: MediaID
)

type SessionCallback struct {
	Event      SessionEvent
	PositionMs int64
	MediaID    string
}

// Car display transport gestures.
const (
	GesturePlay         = "play"
	GesturePause        = "pause"
	GestureSkipPrevious = "skipPrevious"
	GestureSkipNext     = "skipNext"
	GestureFastForward  = "fastForward"
	GestureRewind       = "rewind"
	GestureStop         = "stop"
)

// Selection is what the car display sends: either a playable media item
// or a transport gesture.
type Selection struct {
	MediaID string
	Gesture string
}

// FromNotification maps a notification button key to its action.
func FromNotification(key string) (playback.Action, bool) {
	switch key {
	case presentation.KeyPrevious:
		return playback.SkipPrevious{}, true
	case presentation.KeyRewind:
		return playback.Rewind{}, true
	case presentation.KeyPlay:
		return playback.Play{}, true
	case presentation.KeyPause:
		return playback.Pause{}, true
	case presentation.KeyForward:
		return playback.FastForward{}, true
	case presentation.KeyNext:
		return playback.SkipNext{}, true
	case presentation.KeyDismiss:
		return playback.Stop{}, true
	}
	return nil, false
}

// FromSession maps a media session callback to its action.
func FromSession(cb SessionCallback) (playback.Action, bool) {
	switch cb.Event {
	case OnPlay:
		return playback.Play{}, true
	case OnPause:
		return playback.Pause{}, true
	case OnSkipToNext:
		return playback.SkipNext{}, true
	case OnSkipToPrevious:
		return playback.SkipPrevious{}, true
	case OnFastForward:
		return playback.FastForward{}, true
	case OnRewind:
		return playback.Rewind{}, true
	case OnSeekTo:
		return playback.SeekTo{PositionMs: cb.PositionMs}, true
	case OnStop:
		return playback.Stop{}, true
	case OnPlayFromMediaID:
		if cb.MediaID == "" {
			return nil, false
		}
		return playback.PlayFromID{ID: cb.MediaID}, true
	}
	return nil, false
}

// FromBrowser maps a car display selection to its action.
func FromBrowser(sel Selection) (playback.Action, bool) {
	if sel.MediaID != "" {
		return playback.PlayFromID{ID: sel.MediaID}, true
	}
	switch sel.Gesture {
	case GesturePlay:
		return playback.Play{}, true
	case GesturePause:
		return playback.Pause{}, true
	case GestureSkipPrevious:
		return playback.SkipPrevious{}, true
	case GestureSkipNext:
		return playback.SkipNext{}, true
	case GestureFastForward:
		return playback.FastForward{}, true
	case GestureRewind:
		return playback.Rewind{}, true
	case GestureStop:
		return playback.Stop{}, true
	}
	return nil, false
}

// Router is the single outbound channel of control actions.
// Dispatch never blocks and never waits for the host to acknowledge.
type Router struct {
	q *actionQueue
}

// NewRouter returns a router whose delivery goroutine exits when ctx is done.
// maxPending bounds the undelivered backlog; zero means unbounded.
func NewRouter(ctx context.Context, maxPending int) *Router {
	return &Router{q: newActionQueue(ctx, maxPending)}
}

// C delivers actions in dispatch order.
func (r *Router) C() <-chan playback.Action {
	return r.q.C()
}

func (r *Router) Dispatch(a playback.Action) {
	if a != nil {
		r.q.add(a)
	}
}

// Notification routes a notification button press.
func (r *Router) Notification(key string) bool {
	return r.route(FromNotification(key))
}

// Session routes a media session callback.
func (r *Router) Session(cb SessionCallback) bool {
	return r.route(FromSession(cb))
}

// Browser routes a car display selection.
func (r *Router) Browser(sel Selection) bool {
	return r.route(FromBrowser(sel))
}

// Pending returns the number of actions not yet taken from C.
func (r *Router) Pending() int {
	return r.q.pending()
}

// Dropped returns how many actions were discarded because the backlog was full.
func (r *Router) Dropped() int {
	return r.q.droppedCount()
}

func (r *Router) route(a playback.Action, ok bool) bool {
	if ok {
		r.Dispatch(a)
	}
	return ok
}
