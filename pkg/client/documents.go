package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"docdash/internal/dashboard"
	"docdash/internal/document/model"
	"docdash/pkg/logger"
	"docdash/socket"

	"github.com/gorilla/websocket"
)

// ErrSubscriptionClosed is reported when the server ends a live query.
var ErrSubscriptionClosed = errors.New("live query closed by server")

type subscription struct {
	conn    *websocket.Conn
	onError func(error)
	once    sync.Once

	mu   sync.Mutex
	done bool
	// While held, a failure is kept back until release.
	held    bool
	heldErr error
}

func (s *subscription) stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.done = true
		s.mu.Unlock()
		s.conn.Close()
	})
}

func (s *subscription) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// fail reports err unless the subscription was stopped or is held.
func (s *subscription) fail(err error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if s.held {
		s.heldErr = err
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.onError(err)
}

func (s *subscription) hold() {
	s.mu.Lock()
	s.held = true
	s.mu.Unlock()
}

// release reports a failure that arrived while held.
func (s *subscription) release() {
	s.mu.Lock()
	err := s.heldErr
	s.held, s.heldErr = false, nil
	done := s.done
	s.mu.Unlock()
	if err != nil && !done {
		s.onError(err)
	}
}

// Subscribe opens a live query on c. onSnapshot receives the full contents
// on join and after every change. onError is called once the query fails;
// no callbacks follow the returned Unsubscribe.
func (c *Client) Subscribe(ctx context.Context, coll model.Collection, onSnapshot func([]model.Document), onError func(error)) (dashboard.Unsubscribe, error) {
	u, err := c.wsURL("/ws", url.Values{"collection": {coll.Path()}})
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	if token := c.token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := c.Dialer.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
		}
		return nil, err
	}

	sub := &subscription{conn: conn, onError: onError}
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	go c.readLoop(sub, coll, onSnapshot)

	return func() {
		sub.stop()
		c.forget(sub)
	}, nil
}

func (c *Client) readLoop(sub *subscription, coll model.Collection, onSnapshot func([]model.Document)) {
	defer c.forget(sub)

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			if sub.stopped() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				err = ErrSubscriptionClosed
			}
			logger.Sugar.Warnf("Live query on %s ended: %v", coll, err)
			sub.fail(err)
			return
		}

		var msg socket.WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Sugar.Warnf("Dropping malformed message on %s: %v", coll, err)
			continue
		}
		if sub.stopped() {
			return
		}

		switch msg.Type {
		case socket.SnapshotType:
			var docs []model.Document
			if err := json.Unmarshal(msg.Payload, &docs); err != nil {
				sub.fail(err)
				continue
			}
			onSnapshot(docs)
		case socket.ErrorType:
			var payload socket.ErrorPayload
			json.Unmarshal(msg.Payload, &payload)
			sub.fail(errors.New(payload.Message))
		}
	}
}

func (c *Client) forget(sub *subscription) {
	c.mu.Lock()
	delete(c.subs, sub)
	c.mu.Unlock()
}

func (c *Client) liveSubscriptions() []*subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	subs := make([]*subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	return subs
}

func (c *Client) closeSubscriptions() {
	c.mu.Lock()
	subs := make([]*subscription, 0, len(c.subs))
	for sub := range c.subs {
		subs = append(subs, sub)
	}
	c.subs = make(map[*subscription]struct{})
	c.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}
}

func collectionQuery(coll model.Collection, id string) url.Values {
	q := url.Values{"collection": {coll.Path()}}
	if id != "" {
		q.Set("docId", id)
	}
	return q
}

// List reads a collection once.
func (c *Client) List(ctx context.Context, coll model.Collection) ([]model.Document, error) {
	var docs []model.Document
	err := c.do(ctx, http.MethodGet, "/api/documents", collectionQuery(coll, ""), c.token(), nil, &docs)
	return docs, err
}

func (c *Client) Get(ctx context.Context, coll model.Collection, id string) (model.Document, error) {
	var doc model.Document
	err := c.do(ctx, http.MethodGet, "/api/documents/get", collectionQuery(coll, id), c.token(), nil, &doc)
	return doc, err
}

func (c *Client) Add(ctx context.Context, coll model.Collection, req model.WriteDocRequest) (model.Document, error) {
	var resp model.CreateDocResponse
	if err := c.do(ctx, http.MethodPost, "/api/documents/add", collectionQuery(coll, ""), c.token(), req, &resp); err != nil {
		return model.Document{}, err
	}
	return resp.Document, nil
}

func (c *Client) Set(ctx context.Context, coll model.Collection, id string, req model.WriteDocRequest) (model.Document, error) {
	var doc model.Document
	err := c.do(ctx, http.MethodPut, "/api/documents/set", collectionQuery(coll, id), c.token(), req, &doc)
	return doc, err
}

func (c *Client) Update(ctx context.Context, coll model.Collection, id string, patch model.PatchDocRequest) (model.Document, error) {
	var doc model.Document
	err := c.do(ctx, http.MethodPatch, "/api/documents/update", collectionQuery(coll, id), c.token(), patch, &doc)
	return doc, err
}

func (c *Client) Delete(ctx context.Context, coll model.Collection, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/documents/delete", collectionQuery(coll, id), c.token(), nil, nil)
}
