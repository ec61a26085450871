// Package status serves the node's latest readings over HTTP: a JSON API,
// a websocket feed and prometheus metrics.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/agri_node/internal/node"
)

// HistorySize is the number of cycles the alarm evaluation looks at.
const HistorySize = 20

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server keeps the latest cycles and serves them.
type Server struct {
	nodeID  string
	bands   []Band
	metrics *Metrics
	logger  *log.Logger

	mu      sync.RWMutex
	history []node.Cycle

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
}

func NewServer(nodeID string, logger *log.Logger) *Server {
	return &Server{
		nodeID:  nodeID,
		bands:   DefaultBands(),
		metrics: NewMetrics(nodeID),
		logger:  logger,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Recoverer)
	r.Get("/api/latest", s.LatestHandler)
	r.Get("/api/alarms", s.AlarmsHandler)
	r.Get("/ws", s.WebsocketHandler)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	return r
}

// Observer records every cycle that reaches Idle.
func (s *Server) Observer() node.Observer {
	return node.ObserverFunc(func(st node.State, c node.Cycle) {
		if st == node.Idle {
			s.Record(c)
		}
	})
}

// Record stores c, updates the metrics and pushes it to websocket clients.
func (s *Server) Record(c node.Cycle) {
	s.mu.Lock()
	s.history = append(s.history, c)
	if len(s.history) > HistorySize {
		s.history = s.history[len(s.history)-HistorySize:]
	}
	s.mu.Unlock()

	s.metrics.Record(c)
	s.broadcast(c)
}

func (s *Server) latest() (node.Cycle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return node.Cycle{}, false
	}
	return s.history[len(s.history)-1], true
}

type latestResponse struct {
	Node  string     `json:"node"`
	Cycle node.Cycle `json:"cycle"`
}

func (s *Server) LatestHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := s.latest()
	if !ok {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, latestResponse{Node: s.nodeID, Cycle: c})
}

func (s *Server) AlarmsHandler(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	cycles := make([]node.Cycle, len(s.history))
	copy(cycles, s.history)
	s.mu.RUnlock()

	s.writeJSON(w, Evaluate(s.bands, cycles))
}

func (s *Server) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	if c, ok := s.latest(); ok {
		s.send(conn, c)
	}
	s.clientsMu.Unlock()
	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}

func (s *Server) broadcast(c node.Cycle) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for conn := range s.clients {
		if err := s.send(conn, c); err != nil {
			s.logger.Debug("dropping websocket client", "err", err)
			delete(s.clients, conn)
			conn.Close()
		}
	}
}

// send must be called with clientsMu held.
func (s *Server) send(conn *websocket.Conn, c node.Cycle) error {
	_ = conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	return conn.WriteJSON(latestResponse{Node: s.nodeID, Cycle: c})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response JSON", "err", err)
	}
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Router(), ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("status server listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
