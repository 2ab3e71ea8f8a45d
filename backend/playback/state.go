// Package playback holds the authoritative playback snapshot mirrored into
// the system media surfaces, and the closed set of control actions those
// surfaces can send back to the host application.
package playback

import (
	"math"
	"strings"
)

const DefaultSpeed = 1.0

// State is the snapshot of what is currently playing.
// PositionMs is advisory: it only changes when the host pushes a new value.
type State struct {
	Title      string
	Author     string
	ArtworkRef string // empty for no artwork
	IsPlaying  bool
	PositionMs int64
	DurationMs int64
	Speed      float64
}

// NewState returns the state a fresh session starts from.
func NewState(defaultTitle, defaultAuthor string) State {
	return State{
		Title:  defaultTitle,
		Author: defaultAuthor,
		Speed:  DefaultSpeed,
	}
}

// Patch is a partial update. A nil field is absent from the patch
// and leaves the corresponding State field untouched.
// ArtworkRef pointing to "" clears the artwork.
type Patch struct {
	Title      *string
	Author     *string
	ArtworkRef *string
	IsPlaying  *bool
	PositionMs *int64
	DurationMs *int64
	Speed      *float64
}

// IsEmpty reports whether the patch carries no fields at all.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Author == nil && p.ArtworkRef == nil &&
		p.IsPlaying == nil && p.PositionMs == nil && p.DurationMs == nil && p.Speed == nil
}

// Apply merges the present fields of p into s, field by field.
// Out of range values are dropped individually and the prior value kept.
// It returns whether the artwork reference changed.
func (s *State) Apply(p Patch) (artworkChanged bool) {
	if p.Title != nil && strings.TrimSpace(*p.Title) != "" {
		s.Title = *p.Title
	}
	if p.Author != nil && strings.TrimSpace(*p.Author) != "" {
		s.Author = *p.Author
	}
	if p.IsPlaying != nil {
		s.IsPlaying = *p.IsPlaying
	}
	if p.PositionMs != nil && *p.PositionMs >= 0 {
		s.PositionMs = *p.PositionMs
	}
	if p.DurationMs != nil && *p.DurationMs >= 0 {
		s.DurationMs = *p.DurationMs
	}
	if p.Speed != nil && validSpeed(*p.Speed) {
		s.Speed = *p.Speed
	}
	if p.ArtworkRef != nil {
		ref := strings.TrimSpace(*p.ArtworkRef)
		artworkChanged = ref != s.ArtworkRef
		s.ArtworkRef = ref
	}
	return artworkChanged
}

// HasArtwork reports whether an artwork reference is set.
func (s State) HasArtwork() bool {
	return s.ArtworkRef != ""
}

func validSpeed(f float64) bool {
	return f > 0 && !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Ptr is a convenience for building patches.
func Ptr[T any](v T) *T {
	return &v
}
