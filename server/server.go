package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/toppsdigital/cardsync/cache"
	"github.com/toppsdigital/cardsync/config"
	"github.com/toppsdigital/cardsync/errors"
	"github.com/toppsdigital/cardsync/logger"
	"github.com/toppsdigital/cardsync/query"
)

// Server pushes cache updates to browser clients over WebSocket. Views
// send watch/unwatch messages naming a selector; the server runs the
// polling through the shared engine and every committed cache write is
// pushed to the clients watching that key.
type Server struct {
	engine     *query.Engine
	dispatcher *query.Dispatcher
	cfg        *config.Config
	log        *zap.SugaredLogger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a push server over an engine and dispatcher.
func New(engine *query.Engine, dispatcher *query.Dispatcher, cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		engine:     engine,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        logger.Logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin allows same-origin requests plus any configured origin.
// An empty allow-list permits everything; the console is expected to
// run behind the operator's own network controls.
func (s *Server) checkOrigin(r *http.Request) bool {
	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range origins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Start runs the client registry loop and the HTTP listener.
func (s *Server) Start() error {
	s.wg.Add(1)
	go s.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealth)

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infow("Push server listening",
		"addr", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "push server failed")
	}
	return nil
}

// Shutdown closes every client connection and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}

	s.mu.Lock()
	for client := range s.clients {
		client.closeSend()
	}
	s.clients = make(map[*Client]bool)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Infow("Push server stopped")
	return err
}

// run is the registry loop; register/unregister are serialized here so
// handlers never race on the clients map.
func (s *Server) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case client := <-s.register:
			s.mu.Lock()
			s.clients[client] = true
			count := len(s.clients)
			s.mu.Unlock()
			s.log.Infow("Client connected",
				"client_id", client.id,
				"clients", count)
		case client := <-s.unregister:
			s.mu.Lock()
			if _, ok := s.clients[client]; ok {
				delete(s.clients, client)
				client.closeSend()
			}
			count := len(s.clients)
			s.mu.Unlock()
			s.log.Infow("Client disconnected",
				"client_id", client.id,
				"clients", count)
		}
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("WebSocket upgrade failed",
			"remote", r.RemoteAddr,
			"error", err)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan interface{}, 64),
		id:     uuid.NewString()[:8],
		subs:   make(map[cache.Key]*clientSub),
	}

	s.register <- client

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	count := len(s.clients)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": count,
	})
}

// updateMessage is one pushed cache write.
type updateMessage struct {
	Type      string      `json:"type"`
	Key       string      `json:"key"`
	Seq       uint64      `json:"seq"`
	FetchedAt time.Time   `json:"fetched_at"`
	Error     string      `json:"error,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func newUpdateMessage(key cache.Key, entry cache.Entry) updateMessage {
	msg := updateMessage{
		Type:      "cache_update",
		Key:       string(key),
		Seq:       entry.Seq,
		FetchedAt: entry.FetchedAt,
		Data:      entry.Data,
	}
	if entry.Err != nil {
		msg.Error = entry.Err.Error()
	}
	return msg
}
