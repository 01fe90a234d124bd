package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/query"
)

// WebSocket timeout constants following Gorilla best practices
// See: https://github.com/gorilla/websocket/blob/master/examples/chat/client.go
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024
)

// clientMessage is the incoming wire format.
type clientMessage struct {
	Type     string      `json:"type"`
	Selector string      `json:"selector,omitempty"`
	Options  wireOptions `json:"options,omitempty"`
}

// wireOptions mirrors query.Options for JSON transport.
type wireOptions struct {
	JobID         string   `json:"job_id,omitempty"`
	JobIDs        []string `json:"job_ids,omitempty"`
	Mine          bool     `json:"mine,omitempty"`
	StatusFilter  string   `json:"status_filter,omitempty"`
	IncludeFiles  bool     `json:"include_files,omitempty"`
	IncludeAssets bool     `json:"include_assets,omitempty"`
	Page          string   `json:"page,omitempty"`
	NoPolling     bool     `json:"no_polling,omitempty"`
}

func (w wireOptions) toOptions() query.Options {
	return query.Options{
		JobID:         w.JobID,
		JobIDs:        w.JobIDs,
		Mine:          w.Mine,
		StatusFilter:  w.StatusFilter,
		IncludeFiles:  w.IncludeFiles,
		IncludeAssets: w.IncludeAssets,
		Page:          w.Page,
		NoPolling:     w.NoPolling,
	}
}

// clientSub is one watched key for one client.
type clientSub struct {
	sub  *query.Subscription
	done chan struct{}
}

// Client is one WebSocket connection and its set of watched queries.
type Client struct {
	server *Server
	conn   *websocket.Conn
	send   chan interface{}
	id     string

	subMu sync.Mutex
	subs  map[cache.Key]*clientSub

	closeOnce sync.Once
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// readPump reads watch/unwatch/refresh messages until the connection
// drops, then tears down every subscription the client held.
func (c *Client) readPump() {
	defer func() {
		c.dropAllSubs()
		c.server.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.server.log.Warnw("WebSocket read error",
					"client_id", c.id,
					"error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.server.log.Warnw("Malformed client message",
				"client_id", c.id,
				"error", err)
			continue
		}

		c.routeMessage(msg)
	}
}

func (c *Client) routeMessage(msg clientMessage) {
	switch msg.Type {
	case "watch":
		c.handleWatch(msg)
	case "unwatch":
		c.handleUnwatch(msg)
	case "refresh":
		c.handleRefresh(msg)
	case "rerun":
		c.handleRerun(msg)
	case "ping":
		// Deadline already extended by the pong handler.
	default:
		c.server.log.Debugw("Unknown message type",
			"type", msg.Type,
			"client_id", c.id)
	}
}

// handleWatch starts an engine subscription for the named selector and
// forwards its cache snapshots to the connection. Watching a key the
// client already watches is a no-op.
func (c *Client) handleWatch(msg clientMessage) {
	sub, err := c.server.engine.Watch(query.Selector(msg.Selector), msg.Options.toOptions())
	if err != nil {
		c.sendError(msg.Selector, err)
		return
	}

	c.subMu.Lock()
	if _, exists := c.subs[sub.Key]; exists {
		c.subMu.Unlock()
		sub.Close()
		return
	}
	cs := &clientSub{sub: sub, done: make(chan struct{})}
	c.subs[sub.Key] = cs
	c.subMu.Unlock()

	go c.forward(cs)

	c.server.log.Debugw("Client watching",
		"client_id", c.id,
		"key", sub.Key)
}

func (c *Client) handleUnwatch(msg clientMessage) {
	req, err := query.Resolve(query.Selector(msg.Selector), msg.Options.toOptions())
	if err != nil {
		c.sendError(msg.Selector, err)
		return
	}

	c.subMu.Lock()
	cs, ok := c.subs[req.Key]
	if ok {
		delete(c.subs, req.Key)
	}
	c.subMu.Unlock()

	if ok {
		close(cs.done)
		cs.sub.Close()
	}
}

func (c *Client) handleRefresh(msg clientMessage) {
	go func() {
		if _, err := c.server.engine.Refresh(c.server.ctx, query.Selector(msg.Selector), msg.Options.toOptions()); err != nil {
			c.sendError(msg.Selector, err)
		}
	}()
}

// handleRerun restarts a job's pipeline. The dispatcher invalidates the
// affected list entries, so watchers deliver the new status without any
// extra plumbing here.
func (c *Client) handleRerun(msg clientMessage) {
	go func() {
		_, err := c.server.dispatcher.Dispatch(c.server.ctx, query.RerunJob{JobID: msg.Options.JobID})
		if err != nil {
			c.sendError(msg.Selector, err)
			return
		}
		ack := map[string]interface{}{
			"type":   "rerun_accepted",
			"job_id": msg.Options.JobID,
		}
		select {
		case c.send <- ack:
		default:
		}
	}()
}

// forward relays one subscription's updates into the client send
// channel. Drops on a full channel; the cache still holds the latest
// value and the next update carries it.
func (c *Client) forward(cs *clientSub) {
	for {
		select {
		case <-cs.done:
			return
		case entry, ok := <-cs.sub.Updates():
			if !ok {
				return
			}
			select {
			case c.send <- newUpdateMessage(cs.sub.Key, entry):
			default:
			}
		}
	}
}

func (c *Client) dropAllSubs() {
	c.subMu.Lock()
	subs := c.subs
	c.subs = make(map[cache.Key]*clientSub)
	c.subMu.Unlock()

	for _, cs := range subs {
		close(cs.done)
		cs.sub.Close()
	}
}

func (c *Client) sendError(selector string, err error) {
	msg := map[string]interface{}{
		"type":     "error",
		"selector": selector,
		"error":    err.Error(),
	}
	select {
	case c.send <- msg:
	default:
	}
}

// writePump writes queued messages and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.server.ctx.Done():
			return
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.log.Debugw("Write error",
					"client_id", c.id,
					"error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
