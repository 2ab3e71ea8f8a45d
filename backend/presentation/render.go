package presentation

import (
	"slices"

	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/playback"
)

const CategoryTransport = "x-media.transport"

var (
	previousAction = NotificationAction{Key: KeyPrevious, Label: "Previous", Icon: "media-skip-backward", Action: playback.SkipPrevious{}}
	rewindAction   = NotificationAction{Key: KeyRewind, Label: "Rewind", Icon: "media-seek-backward", Action: playback.Rewind{}}
	playAction     = NotificationAction{Key: KeyPlay, Label: "Play", Icon: "media-playback-start", Action: playback.Play{}}
	pauseAction    = NotificationAction{Key: KeyPause, Label: "Pause", Icon: "media-playback-pause", Action: playback.Pause{}}
	forwardAction  = NotificationAction{Key: KeyForward, Label: "Forward", Icon: "media-seek-forward", Action: playback.FastForward{}}
	nextAction     = NotificationAction{Key: KeyNext, Label: "Next", Icon: "media-skip-forward", Action: playback.SkipNext{}}
)

// Render derives the presentation for st. art may be nil; a non-nil art
// whose Ref does not match st.ArtworkRef is treated as absent.
func Render(st playback.State, art *artwork.Artwork) Descriptor {
	if art != nil && (art.Image == nil || art.Ref != st.ArtworkRef) {
		art = nil
	}

	toggle := playAction
	status := StatusPaused
	if st.IsPlaying {
		toggle = pauseAction
		status = StatusPlaying
	}

	n := Notification{
		Title:    st.Title,
		Subtitle: st.Author,
		Actions: [NumSlots]NotificationAction{
			SlotPrevious:  previousAction,
			SlotRewind:    rewindAction,
			SlotPlayPause: toggle,
			SlotForward:   forwardAction,
			SlotNext:      nextAction,
		},
		Ongoing:  st.IsPlaying,
		Dismiss:  playback.Stop{},
		Category: CategoryTransport,
	}
	if art != nil {
		n.LargeIcon = art
		n.Accent = art.Accent
	}

	return Descriptor{
		Notification: n,
		Metadata: Metadata{
			Title:      st.Title,
			Artist:     st.Author,
			Album:      st.Title,
			DurationMs: st.DurationMs,
			Art:        art,
		},
		Session: Session{
			Capabilities: slices.Clone(playback.AllCapabilities),
			Status:       status,
			PositionMs:   st.PositionMs,
			Speed:        st.Speed,
		},
	}
}
