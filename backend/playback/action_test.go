package playback

import "testing"

func TestActionNamesUnique(t *testing.T) {
	all := []Action{
		Play{}, Pause{}, SkipNext{}, SkipPrevious{}, FastForward{},
		Rewind{}, SeekTo{}, Stop{}, PlayFromID{},
	}
	seen := make(map[string]bool)
	for _, a := range all {
		if seen[a.Name()] {
			t.Errorf("duplicate action name %q", a.Name())
		}
		seen[a.Name()] = true
	}
}

func TestActionsComparable(t *testing.T) {
	var a, b Action = SeekTo{PositionMs: 5000}, SeekTo{PositionMs: 5000}
	if a != b {
		t.Error("equal SeekTo values should compare equal")
	}
	if a == Action(SeekTo{PositionMs: 5001}) {
		t.Error("SeekTo with different positions should differ")
	}
	if Action(PlayFromID{ID: "x"}) == Action(PlayFromID{ID: "y"}) {
		t.Error("PlayFromID with different IDs should differ")
	}
}

func TestCapabilityString(t *testing.T) {
	if len(AllCapabilities) != 9 {
		t.Fatalf("expected 9 capabilities, got %d", len(AllCapabilities))
	}
	for _, c := range AllCapabilities {
		if c.String() == "Unknown" {
			t.Errorf("capability %d has no name", c)
		}
	}
}
