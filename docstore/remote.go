package docstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("relay connection closed")

// Remote is a Store talking to a relay over one websocket.
type Remote struct {
	conn *websocket.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Frame
	subs    map[string]func(Doc)
	err     error

	done chan struct{}
}

// Dial connects to the relay websocket at url (ws://host:port/ws).
func Dial(ctx context.Context, url string) (*Remote, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("docstore.Dial: %w", err)
	}
	r := &Remote{
		conn:    conn,
		pending: make(map[string]chan Frame),
		subs:    make(map[string]func(Doc)),
		done:    make(chan struct{}),
	}
	go r.readLoop()
	return r, nil
}

func (r *Remote) Get(ctx context.Context, collection, id string) (Doc, error) {
	res, err := r.call(ctx, Frame{Op: FrameGet, Collection: collection, ID: id})
	if err != nil {
		return nil, err
	}
	return res.Doc, nil
}

func (r *Remote) Set(ctx context.Context, collection, id string, doc Doc, merge bool) error {
	_, err := r.call(ctx, Frame{Op: FrameSet, Collection: collection, ID: id, Doc: doc, Merge: merge})
	return err
}

func (r *Remote) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	res, err := r.call(ctx, Frame{Op: FrameQuery, Collection: collection, Query: &q})
	if err != nil {
		return nil, err
	}
	return res.Docs, nil
}

func (r *Remote) Watch(ctx context.Context, collection, id string, fn func(Doc)) (func(), error) {
	subID := uuid.NewString()

	r.mu.Lock()
	r.subs[subID] = fn
	r.mu.Unlock()

	if _, err := r.call(ctx, Frame{Op: FrameWatch, SubID: subID, Collection: collection, ID: id}); err != nil {
		r.dropSub(subID)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			r.dropSub(subID)
			if err := r.write(Frame{Op: FrameUnwatch, SubID: subID}); err != nil {
				log.Debug("docstore [Unwatch]", "subId", subID, "err", err)
			}
		})
	}, nil
}

func (r *Remote) Close() error {
	err := r.conn.Close()
	<-r.done
	return err
}

func (r *Remote) dropSub(subID string) {
	r.mu.Lock()
	delete(r.subs, subID)
	r.mu.Unlock()
}

func (r *Remote) call(ctx context.Context, req Frame) (Frame, error) {
	req.ReqID = uuid.NewString()
	ch := make(chan Frame, 1)

	r.mu.Lock()
	if r.err != nil {
		err := r.err
		r.mu.Unlock()
		return Frame{}, err
	}
	r.pending[req.ReqID] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, req.ReqID)
		r.mu.Unlock()
	}()

	if err := r.write(req); err != nil {
		return Frame{}, err
	}

	select {
	case res := <-ch:
		if res.Code == CodeNotFound {
			return Frame{}, ErrNotFound
		}
		if res.Error != "" {
			return Frame{}, fmt.Errorf("docstore.%s: %s", req.Op, res.Error)
		}
		return res, nil
	case <-r.done:
		return Frame{}, ErrClosed
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (r *Remote) write(f Frame) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("docstore.write: %w", err)
	}
	return nil
}

func (r *Remote) readLoop() {
	defer close(r.done)
	for {
		var f Frame
		if err := r.conn.ReadJSON(&f); err != nil {
			r.mu.Lock()
			r.err = ErrClosed
			r.mu.Unlock()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Debug("docstore [readLoop]", "err", err)
			}
			return
		}

		r.mu.Lock()
		switch f.Op {
		case FrameSnapshot:
			fn := r.subs[f.SubID]
			r.mu.Unlock()
			if fn != nil {
				fn(f.Doc)
			}
		default:
			ch := r.pending[f.ReqID]
			r.mu.Unlock()
			if ch != nil {
				ch <- f
			}
		}
	}
}
