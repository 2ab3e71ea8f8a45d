package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/rezon/mediasession/backend/browse"
	"github.com/rezon/mediasession/backend/playback"
)

const (
	PingPath           = "/ping"
	SessionPath        = "/session"
	SessionStatePath   = "/session/state"
	SessionStopPath    = "/session/stop"
	EventsPath         = "/events"
	PlayPath           = "/transport/play"
	PausePath          = "/transport/pause"
	PlayPausePath      = "/transport/playpause"
	NextPath           = "/transport/next"
	PreviousPath       = "/transport/previous"
	ForwardPath        = "/transport/forward"
	RewindPath         = "/transport/rewind"
	StopPath           = "/transport/stop"
	SeekPath           = "/transport/seek"  // ?ms=<position>
	BrowseChildrenPath = "/browse/children" // ?parent=<id>
	BrowseSearchPath   = "/browse/search"   // ?q=<query>
	BrowseSelectPath   = "/browse/select"
	BrowseItemsPath    = "/browse/items"
)

var ErrUnknownAction = errors.New("unknown action")

type Response struct {
	Error string `json:"error"`
}

// SessionInfo is the body of GET /session.
type SessionInfo struct {
	Active     bool          `json:"active"`
	State      *StateSummary `json:"state,omitempty"`
	HasArtwork bool          `json:"hasArtwork"`
}

type StateSummary struct {
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	ArtworkRef string  `json:"artworkRef,omitempty"`
	IsPlaying  bool    `json:"isPlaying"`
	PositionMs int64   `json:"positionMs"`
	DurationMs int64   `json:"durationMs"`
	Speed      float64 `json:"speed"`
}

func summarize(st playback.State) *StateSummary {
	return &StateSummary{
		Title:      st.Title,
		Author:     st.Author,
		ArtworkRef: st.ArtworkRef,
		IsPlaying:  st.IsPlaying,
		PositionMs: st.PositionMs,
		DurationMs: st.DurationMs,
		Speed:      st.Speed,
	}
}

// StatePatch is the body of POST /session/state. Only present fields are
// set; artworkRef null clears the artwork.
type StatePatch struct {
	Title      *string  `json:"title,omitempty"`
	Author     *string  `json:"author,omitempty"`
	ArtworkRef *string  `json:"artworkRef,omitempty"`
	IsPlaying  *bool    `json:"isPlaying,omitempty"`
	PositionMs *int64   `json:"positionMs,omitempty"`
	DurationMs *int64   `json:"durationMs,omitempty"`
	Speed      *float64 `json:"speed,omitempty"`
}

func (p StatePatch) Patch() playback.Patch {
	return playback.Patch{
		Title:      p.Title,
		Author:     p.Author,
		ArtworkRef: p.ArtworkRef,
		IsPlaying:  p.IsPlaying,
		PositionMs: p.PositionMs,
		DurationMs: p.DurationMs,
		Speed:      p.Speed,
	}
}

// DecodePatch decodes a state patch field by field. A field holding the
// wrong JSON type is skipped and reported in ignored; the rest still apply.
func DecodePatch(data []byte) (p playback.Patch, ignored []string, err error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return p, nil, fmt.Errorf("malformed state patch: %w", err)
	}

	for name, raw := range fields {
		var ok bool
		switch name {
		case "title":
			p.Title, ok = decodeField[string](raw)
		case "author":
			p.Author, ok = decodeField[string](raw)
		case "artworkRef":
			if string(raw) == "null" {
				p.ArtworkRef, ok = playback.Ptr(""), true
			} else {
				p.ArtworkRef, ok = decodeField[string](raw)
			}
		case "isPlaying":
			p.IsPlaying, ok = decodeField[bool](raw)
		case "positionMs":
			p.PositionMs, ok = decodeField[int64](raw)
		case "durationMs":
			p.DurationMs, ok = decodeField[int64](raw)
		case "speed":
			p.Speed, ok = decodeField[float64](raw)
		default:
			ok = true // unknown fields are not an error
		}
		if !ok {
			ignored = append(ignored, name)
		}
	}
	if len(ignored) > 0 {
		log.Printf("ignoring invalid state fields: %v", ignored)
	}
	return p, ignored, nil
}

// null decodes as absent
func decodeField[T any](raw json.RawMessage) (*T, bool) {
	if string(raw) == "null" {
		return nil, true
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, false
	}
	return &v, true
}

// ActionEvent is one line of the GET /events stream.
type ActionEvent struct {
	Action     string `json:"action"`
	PositionMs int64  `json:"positionMs,omitempty"`
	ID         string `json:"id,omitempty"`
}

func EncodeAction(a playback.Action) ActionEvent {
	e := ActionEvent{Action: a.Name()}
	switch a := a.(type) {
	case playback.SeekTo:
		e.PositionMs = a.PositionMs
	case playback.PlayFromID:
		e.ID = a.ID
	}
	return e
}

func (e ActionEvent) Decode() (playback.Action, error) {
	switch e.Action {
	case playback.ActionPlay:
		return playback.Play{}, nil
	case playback.ActionPause:
		return playback.Pause{}, nil
	case playback.ActionSkipNext:
		return playback.SkipNext{}, nil
	case playback.ActionSkipPrevious:
		return playback.SkipPrevious{}, nil
	case playback.ActionFastForward:
		return playback.FastForward{}, nil
	case playback.ActionRewind:
		return playback.Rewind{}, nil
	case playback.ActionStop:
		return playback.Stop{}, nil
	case playback.ActionSeekTo:
		return playback.SeekTo{PositionMs: e.PositionMs}, nil
	case playback.ActionPlayFromID:
		return playback.PlayFromID{ID: e.ID}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, e.Action)
}

// SelectRequest is the body of POST /browse/select.
type SelectRequest struct {
	MediaID string `json:"mediaId,omitempty"`
	Gesture string `json:"gesture,omitempty"`
}

// ItemsRequest is the body of PUT /browse/items.
type ItemsRequest struct {
	Audiobooks []browse.Item `json:"audiobooks"`
	Recent     []browse.Item `json:"recent"`
}

type ItemsResponse struct {
	Items []browse.Item `json:"items"`
}

func SeekToPath(ms int64) string {
	return fmt.Sprintf("%s?ms=%d", SeekPath, ms)
}

func BuildChildrenPath(parentID string) string {
	return fmt.Sprintf("%s?parent=%s", BrowseChildrenPath, url.QueryEscape(parentID))
}

func BuildSearchPath(query string) string {
	return fmt.Sprintf("%s?q=%s", BrowseSearchPath, url.QueryEscape(query))
}
