// Package presentation derives what the notification and the system media
// session show from a playback state and optional decoded artwork.
package presentation

import (
	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/playback"
)

// Slot indexes of the five notification buttons.
const (
	SlotPrevious = iota
	SlotRewind
	SlotPlayPause
	SlotForward
	SlotNext

	NumSlots
)

// CompactSlots are the buttons shown in the collapsed notification.
var CompactSlots = [3]int{SlotRewind, SlotPlayPause, SlotForward}

// NotificationAction is one button of the notification.
type NotificationAction struct {
	// Key identifies the button in action-invoked callbacks.
	Key    string
	Label  string
	Icon   string
	Action playback.Action
}

// Notification action keys.
const (
	KeyPrevious = "previous"
	KeyRewind   = "rewind"
	KeyPlay     = "play"
	KeyPause    = "pause"
	KeyForward  = "forward"
	KeyNext     = "next"
	KeyDismiss  = "stop"
)

type Notification struct {
	Title    string
	Subtitle string
	Actions  [NumSlots]NotificationAction

	// Ongoing notifications cannot be swiped away; set while playing.
	Ongoing bool
	// Action delivered when the user dismisses the notification.
	Dismiss  playback.Action
	Category string

	// nil when there is no artwork
	LargeIcon *artwork.Artwork
	// "#RRGGBB" or empty
	Accent string
}

// Compact returns the buttons of the collapsed view, in order.
func (n Notification) Compact() []NotificationAction {
	out := make([]NotificationAction, 0, len(CompactSlots))
	for _, i := range CompactSlots {
		out = append(out, n.Actions[i])
	}
	return out
}

// Metadata is what the media session shows for the current item.
type Metadata struct {
	Title  string
	Artist string
	// mirrors Title: audiobooks have no separate album
	Album      string
	DurationMs int64
	Art        *artwork.Artwork
}

type SessionStatus int

const (
	StatusPaused SessionStatus = iota
	StatusPlaying
)

func (s SessionStatus) String() string {
	if s == StatusPlaying {
		return "Playing"
	}
	return "Paused"
}

// Session is the playback-state record of the media session.
type Session struct {
	Capabilities []playback.Capability
	Status       SessionStatus
	PositionMs   int64
	Speed        float64
}

// CanDo reports whether c is advertised.
func (s Session) CanDo(c playback.Capability) bool {
	for _, have := range s.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Descriptor is the full derived presentation. It is never stored and can
// be recomputed from its inputs at any time.
type Descriptor struct {
	Notification Notification
	Metadata     Metadata
	Session      Session
}

// HasArtwork reports whether any surface carries artwork.
func (d Descriptor) HasArtwork() bool {
	return d.Metadata.Art != nil
}
