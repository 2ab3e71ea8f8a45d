package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/rezon/mediasession/backend/browse"
	"github.com/rezon/mediasession/backend/controls"
	"github.com/rezon/mediasession/backend/playback"
)

const maxRequestBytes = 1 << 20

var (
	ErrStreamBusy  = errors.New("another client is reading events")
	ErrNotPlayable = errors.New("item is not playable")
	ErrBadGesture  = errors.New("unknown selection")
)

// SessionHandler is the playback session the host application drives.
type SessionHandler interface {
	UpdateState(playback.Patch)
	Stop()
	State() (playback.State, bool)
	HasArtwork() bool
}

type serverImpl struct {
	session SessionHandler
	router  *controls.Router
	catalog *browse.Catalog

	streaming atomic.Bool
}

// NewServer returns the IPC HTTP server. Requests, including a running
// event stream, are cancelled when ctx is done.
func NewServer(ctx context.Context, session SessionHandler, router *controls.Router, catalog *browse.Catalog) *http.Server {
	s := &serverImpl{session: session, router: router, catalog: catalog}
	return &http.Server{
		Handler:     s.createHandler(),
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
}

func (s *serverImpl) createHandler() http.Handler {
	m := http.NewServeMux()
	m.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("The given path is not valid"))
	})
	m.HandleFunc("GET "+PingPath, s.makeSimpleEndpointHandler(func() error { return nil }))

	m.HandleFunc("GET "+SessionPath, s.serveSession)
	m.HandleFunc("POST "+SessionStatePath, s.serveUpdateState)
	m.HandleFunc("POST "+SessionStopPath, s.makeSimpleEndpointHandler(func() error {
		s.session.Stop()
		return nil
	}))
	m.HandleFunc("GET "+EventsPath, s.serveEvents)

	m.HandleFunc("POST "+PlayPath, s.makeCallbackHandler(controls.OnPlay))
	m.HandleFunc("POST "+PausePath, s.makeCallbackHandler(controls.OnPause))
	m.HandleFunc("POST "+PlayPausePath, func(w http.ResponseWriter, r *http.Request) {
		ev := controls.OnPlay
		if st, ok := s.session.State(); ok && st.IsPlaying {
			ev = controls.OnPause
		}
		s.router.Session(controls.SessionCallback{Event: ev})
		s.writeOK(w)
	})
	m.HandleFunc("POST "+NextPath, s.makeCallbackHandler(controls.OnSkipToNext))
	m.HandleFunc("POST "+PreviousPath, s.makeCallbackHandler(controls.OnSkipToPrevious))
	m.HandleFunc("POST "+ForwardPath, s.makeCallbackHandler(controls.OnFastForward))
	m.HandleFunc("POST "+RewindPath, s.makeCallbackHandler(controls.OnRewind))
	m.HandleFunc("POST "+StopPath, s.makeCallbackHandler(controls.OnStop))
	m.HandleFunc("POST "+SeekPath, func(w http.ResponseWriter, r *http.Request) {
		ms, err := strconv.ParseInt(r.URL.Query().Get("ms"), 10, 64)
		if err != nil {
			s.writeErrStatus(w, http.StatusBadRequest, err)
			return
		}
		s.router.Session(controls.SessionCallback{Event: controls.OnSeekTo, PositionMs: ms})
		s.writeOK(w)
	})

	m.HandleFunc("GET "+BrowseChildrenPath, func(w http.ResponseWriter, r *http.Request) {
		parent := r.URL.Query().Get("parent")
		if parent == "" {
			parent = browse.RootID
		}
		items, err := s.catalog.Children(parent)
		if err != nil {
			s.writeErrStatus(w, http.StatusNotFound, err)
			return
		}
		s.writeJSON(w, ItemsResponse{Items: items})
	})
	m.HandleFunc("GET "+BrowseSearchPath, func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, ItemsResponse{Items: s.catalog.Search(r.URL.Query().Get("q"))})
	})
	m.HandleFunc("POST "+BrowseSelectPath, s.serveSelect)
	m.HandleFunc("PUT "+BrowseItemsPath, func(w http.ResponseWriter, r *http.Request) {
		var req ItemsRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
			s.writeErrStatus(w, http.StatusBadRequest, err)
			return
		}
		s.catalog.SetItems(req.Audiobooks, req.Recent)
		s.writeOK(w)
	})
	return m
}

func (s *serverImpl) serveSession(w http.ResponseWriter, r *http.Request) {
	st, active := s.session.State()
	info := SessionInfo{Active: active}
	if active {
		info.State = summarize(st)
		info.HasArtwork = s.session.HasArtwork()
	}
	s.writeJSON(w, info)
}

func (s *serverImpl) serveUpdateState(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		s.writeErrStatus(w, http.StatusBadRequest, err)
		return
	}
	p, _, err := DecodePatch(body)
	if err != nil {
		s.writeErrStatus(w, http.StatusBadRequest, err)
		return
	}
	s.session.UpdateState(p)
	s.writeOK(w)
}

func (s *serverImpl) serveSelect(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		s.writeErrStatus(w, http.StatusBadRequest, err)
		return
	}
	if req.MediaID != "" && !s.catalog.IsPlayable(req.MediaID) {
		s.writeErrStatus(w, http.StatusBadRequest, ErrNotPlayable)
		return
	}
	if !s.router.Browser(controls.Selection{MediaID: req.MediaID, Gesture: req.Gesture}) {
		s.writeErrStatus(w, http.StatusBadRequest, ErrBadGesture)
		return
	}
	if req.MediaID != "" {
		s.catalog.MarkPlayed(req.MediaID)
	}
	s.writeOK(w)
}

// serveEvents streams routed actions as newline-delimited JSON until the
// client disconnects. Only one stream may be open at a time.
func (s *serverImpl) serveEvents(w http.ResponseWriter, r *http.Request) {
	if !s.streaming.CompareAndSwap(false, true) {
		s.writeErrStatus(w, http.StatusConflict, ErrStreamBusy)
		return
	}
	defer s.streaming.Store(false)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case a := <-s.router.C():
			if err := enc.Encode(EncodeAction(a)); err != nil {
				log.Printf("event stream closed, lost %s: %v", a.Name(), err)
				return
			}
			flush()
		}
	}
}

func (s *serverImpl) makeCallbackHandler(ev controls.SessionEvent) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.router.Session(controls.SessionCallback{Event: ev})
		s.writeOK(w)
	}
}

func (s *serverImpl) makeSimpleEndpointHandler(f func() error) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeSimpleResponse(w, f())
	}
}

func (s *serverImpl) writeSimpleResponse(w http.ResponseWriter, err error) {
	if err == nil {
		s.writeOK(w)
	} else {
		s.writeErr(w, err)
	}
}

func (s *serverImpl) writeJSON(w http.ResponseWriter, v any) (int, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return s.writeErr(w, err)
	}
	w.Header().Set("Content-Type", "application/json")
	return w.Write(b)
}

func (s *serverImpl) writeOK(w http.ResponseWriter) (int, error) {
	var r Response
	b, err := json.Marshal(&r)
	if err != nil {
		return 0, err
	}
	return w.Write(b)
}

func (s *serverImpl) writeErr(w http.ResponseWriter, err error) (int, error) {
	return s.writeErrStatus(w, http.StatusInternalServerError, err)
}

func (s *serverImpl) writeErrStatus(w http.ResponseWriter, status int, err error) (int, error) {
	r := Response{Error: err.Error()}
	b, err := json.Marshal(&r)
	if err != nil {
		return 0, err
	}
	w.WriteHeader(status)
	return w.Write(b)
}
