package presentation

import (
	"image"
	"testing"

	"github.com/rezon/mediasession/backend/artwork"
	"github.com/rezon/mediasession/backend/playback"
)

func TestRenderNowPlaying(t *testing.T) {
	st := playback.NewState("Rezon Audiobooks", "Now Playing")
	st.Apply(playback.Patch{
		Title:      playback.Ptr("Dune"),
		Author:     playback.Ptr("Frank Herbert"),
		IsPlaying:  playback.Ptr(true),
		PositionMs: playback.Ptr(int64(0)),
		DurationMs: playback.Ptr(int64(600000)),
	})
	d := Render(st, nil)

	n := d.Notification
	if n.Title != "Dune" || n.Subtitle != "Frank Herbert" {
		t.Errorf("notification text = %q / %q", n.Title, n.Subtitle)
	}
	if mid := n.Actions[SlotPlayPause]; mid.Label != "Pause" || mid.Icon != "media-playback-pause" || mid.Action != playback.Action(playback.Pause{}) {
		t.Errorf("middle slot = %+v, want Pause", mid)
	}
	if !n.Ongoing {
		t.Error("notification should be ongoing while playing")
	}
	if d.Session.Status != StatusPlaying || d.Session.PositionMs != 0 {
		t.Errorf("session = %v at %d, want Playing at 0", d.Session.Status, d.Session.PositionMs)
	}
	if d.Metadata.Title != "Dune" || d.Metadata.Artist != "Frank Herbert" || d.Metadata.Album != "Dune" {
		t.Errorf("metadata = %+v", d.Metadata)
	}
	if d.Metadata.DurationMs != 600000 {
		t.Errorf("duration = %d, want 600000", d.Metadata.DurationMs)
	}
	if d.Session.Speed != 1.0 {
		t.Errorf("speed = %v, want 1.0", d.Session.Speed)
	}
}

func TestRenderPlayPauseToggle(t *testing.T) {
	tests := []struct {
		playing    bool
		wantLabel  string
		wantAction playback.Action
		wantStatus SessionStatus
	}{
		{true, "Pause", playback.Pause{}, StatusPlaying},
		{false, "Play", playback.Play{}, StatusPaused},
	}
	for _, tt := range tests {
		st := playback.NewState("t", "a")
		st.IsPlaying = tt.playing
		d := Render(st, nil)
		mid := d.Notification.Actions[SlotPlayPause]
		if mid.Label != tt.wantLabel || mid.Action != tt.wantAction {
			t.Errorf("playing=%v: middle slot = %+v, want %s", tt.playing, mid, tt.wantLabel)
		}
		if d.Session.Status != tt.wantStatus {
			t.Errorf("playing=%v: status = %v, want %v", tt.playing, d.Session.Status, tt.wantStatus)
		}
	}
}

func TestRenderSlotLayout(t *testing.T) {
	for _, playing := range []bool{true, false} {
		st := playback.NewState("t", "a")
		st.IsPlaying = playing
		n := Render(st, nil).Notification

		want := []playback.Action{playback.SkipPrevious{}, playback.Rewind{}, nil, playback.FastForward{}, playback.SkipNext{}}
		for i, a := range n.Actions {
			if i == SlotPlayPause {
				continue
			}
			if a.Action != want[i] {
				t.Errorf("slot %d = %v, want %v", i, a.Action, want[i])
			}
		}

		compact := n.Compact()
		if len(compact) != 3 {
			t.Fatalf("compact view has %d actions, want 3", len(compact))
		}
		for i, slot := range []int{SlotRewind, SlotPlayPause, SlotForward} {
			if compact[i] != n.Actions[slot] {
				t.Errorf("compact[%d] = %+v, want slot %d", i, compact[i], slot)
			}
		}
		if n.Dismiss != playback.Action(playback.Stop{}) {
			t.Errorf("dismiss action = %v, want Stop", n.Dismiss)
		}
	}
}

func TestRenderCapabilitiesFixed(t *testing.T) {
	for _, playing := range []bool{true, false} {
		st := playback.NewState("t", "a")
		st.IsPlaying = playing
		s := Render(st, nil).Session
		for _, c := range playback.AllCapabilities {
			if !s.CanDo(c) {
				t.Errorf("playing=%v: capability %v not advertised", playing, c)
			}
		}
	}

	// the descriptor owns its capability slice
	d := Render(playback.NewState("t", "a"), nil)
	d.Session.Capabilities[0] = playback.CapStop
	if playback.AllCapabilities[0] != playback.CapPlay {
		t.Error("render leaked the shared capability slice")
	}
}

func TestRenderArtwork(t *testing.T) {
	st := playback.NewState("t", "a")
	st.ArtworkRef = "https://example.com/a.png"
	art := &artwork.Artwork{Ref: st.ArtworkRef, Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), Accent: "#112233"}

	d := Render(st, art)
	if d.Metadata.Art != art || d.Notification.LargeIcon != art || !d.HasArtwork() {
		t.Error("matching artwork should be carried on both surfaces")
	}
	if d.Notification.Accent != "#112233" {
		t.Errorf("accent = %q", d.Notification.Accent)
	}

	stale := &artwork.Artwork{Ref: "https://example.com/old.png", Image: art.Image}
	d = Render(st, stale)
	if d.HasArtwork() || d.Notification.LargeIcon != nil {
		t.Error("artwork for another ref must not be rendered")
	}

	d = Render(st, nil)
	if d.HasArtwork() || d.Notification.LargeIcon != nil || d.Notification.Accent != "" {
		t.Error("absent artwork should be omitted")
	}
}
