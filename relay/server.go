// Package relay serves a docstore.Hub to game clients over websocket.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/wojtekolesinski/onchain-battleships/docstore"
)

const (
	writeWait      = 10 * time.Second
	requestTimeout = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	hub    *docstore.Hub
	logger *log.Logger
}

func NewServer(hub *docstore.Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{hub: hub, logger: logger.WithPrefix("relay")}
}

// Handler routes /ws and /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/health", s.serveHealth)
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"watchers": s.hub.Watchers(),
	})
}

// peer is one websocket connection and its live subscriptions.
type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[string]func()
}

func (p *peer) send(f docstore.Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return p.conn.WriteJSON(f)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("serveWS upgrade", "err", err)
		return
	}
	p := &peer{conn: conn, subs: make(map[string]func())}
	s.logger.Debug("serveWS connected", "remote", r.RemoteAddr)

	defer func() {
		p.mu.Lock()
		for _, unsub := range p.subs {
			unsub()
		}
		p.subs = nil
		p.mu.Unlock()
		conn.Close()
		s.logger.Debug("serveWS disconnected", "remote", r.RemoteAddr)
	}()

	for {
		var req docstore.Frame
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("serveWS read", "err", err)
			}
			return
		}
		res := s.handle(r.Context(), p, req)
		if res == nil {
			continue
		}
		if err := p.send(*res); err != nil {
			s.logger.Debug("serveWS write", "err", err)
			return
		}
	}
}

func (s *Server) handle(parent context.Context, p *peer, req docstore.Frame) *docstore.Frame {
	ctx, cancel := context.WithTimeout(parent, requestTimeout)
	defer cancel()

	res := &docstore.Frame{Op: docstore.FrameResult, ReqID: req.ReqID}
	var err error

	switch req.Op {
	case docstore.FrameGet:
		res.Doc, err = s.hub.Get(ctx, req.Collection, req.ID)
	case docstore.FrameSet:
		err = s.hub.Set(ctx, req.Collection, req.ID, req.Doc, req.Merge)
	case docstore.FrameQuery:
		var q docstore.Query
		if req.Query != nil {
			q = *req.Query
		}
		res.Docs, err = s.hub.Query(ctx, req.Collection, q)
	case docstore.FrameWatch:
		err = s.watch(ctx, p, req)
	case docstore.FrameUnwatch:
		p.mu.Lock()
		unsub := p.subs[req.SubID]
		delete(p.subs, req.SubID)
		p.mu.Unlock()
		if unsub != nil {
			unsub()
		}
		return nil
	default:
		res.Error = "unknown op " + string(req.Op)
		return res
	}

	switch {
	case errors.Is(err, docstore.ErrNotFound):
		res.Code = docstore.CodeNotFound
		res.Error = err.Error()
	case err != nil:
		s.logger.Warn("handle", "op", req.Op, "collection", req.Collection, "id", req.ID, "err", err)
		res.Error = err.Error()
	}
	return res
}

func (s *Server) watch(ctx context.Context, p *peer, req docstore.Frame) error {
	subID := req.SubID
	unsub, err := s.hub.Watch(ctx, req.Collection, req.ID, func(doc docstore.Doc) {
		if err := p.send(docstore.Frame{Op: docstore.FrameSnapshot, SubID: subID, Doc: doc}); err != nil {
			s.logger.Debug("watch send", "subId", subID, "err", err)
		}
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.subs == nil {
		unsub()
		return nil
	}
	if prev := p.subs[subID]; prev != nil {
		prev()
	}
	p.subs[subID] = unsub
	return nil
}
