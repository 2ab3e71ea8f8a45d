package playback

// Action is a one-shot control request relayed from a system surface to the
// host application. The set of implementations is closed: Play, Pause,
// SkipNext, SkipPrevious, FastForward, Rewind, SeekTo, Stop and PlayFromID.
//
// All implementations are comparable values, so actions produced by
// different origins for the same gesture compare equal with ==.
type Action interface {
	// Name is the stable wire name of the action.
	Name() string
	isAction()
}

type (
	Play         struct{}
	Pause        struct{}
	SkipNext     struct{}
	SkipPrevious struct{}
	FastForward  struct{}
	Rewind       struct{}
	Stop         struct{}

	// SeekTo carries the requested position verbatim.
	// Bounds are enforced by the host, which knows the real seekable range.
	SeekTo struct {
		PositionMs int64
	}

	// PlayFromID asks the host to start the item with the given media ID.
	PlayFromID struct {
		ID string
	}
)

const (
	ActionPlay         = "play"
	ActionPause        = "pause"
	ActionSkipNext     = "skipNext"
	ActionSkipPrevious = "skipPrevious"
	ActionFastForward  = "fastForward"
	ActionRewind       = "rewind"
	ActionSeekTo       = "seekTo"
	ActionStop         = "stop"
	ActionPlayFromID   = "playFromId"
)

func (Play) Name() string         { return ActionPlay }
func (Pause) Name() string        { return ActionPause }
func (SkipNext) Name() string     { return ActionSkipNext }
func (SkipPrevious) Name() string { return ActionSkipPrevious }
func (FastForward) Name() string  { return ActionFastForward }
func (Rewind) Name() string       { return ActionRewind }
func (SeekTo) Name() string       { return ActionSeekTo }
func (Stop) Name() string         { return ActionStop }
func (PlayFromID) Name() string   { return ActionPlayFromID }

func (Play) isAction()         {}
func (Pause) isAction()        {}
func (SkipNext) isAction()     {}
func (SkipPrevious) isAction() {}
func (FastForward) isAction()  {}
func (Rewind) isAction()       {}
func (SeekTo) isAction()       {}
func (Stop) isAction()         {}
func (PlayFromID) isAction()   {}

// Capability is a transport operation advertised to the system media session.
type Capability int

const (
	CapPlay Capability = iota
	CapPause
	CapPlayPause
	CapSkipNext
	CapSkipPrevious
	CapSeekTo
	CapFastForward
	CapRewind
	CapStop
)

// AllCapabilities is the fixed set every session advertises,
// regardless of the current state.
var AllCapabilities = []Capability{
	CapPlay, CapPause, CapPlayPause, CapSkipNext, CapSkipPrevious,
	CapSeekTo, CapFastForward, CapRewind, CapStop,
}

func (c Capability) String() string {
	switch c {
	case CapPlay:
		return "Play"
	case CapPause:
		return "Pause"
	case CapPlayPause:
		return "PlayPause"
	case CapSkipNext:
		return "SkipNext"
	case CapSkipPrevious:
		return "SkipPrevious"
	case CapSeekTo:
		return "SeekTo"
	case CapFastForward:
		return "FastForward"
	case CapRewind:
		return "Rewind"
	case CapStop:
		return "Stop"
	}
	return "Unknown"
}
