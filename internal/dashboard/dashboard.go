// Package dashboard provides a real-time WebSocket feed of import progress.
//
// The server broadcasts phase transitions and entity creations to connected
// clients, so a tab team can watch a long import from a browser instead of
// tailing logs on the machine running it.
package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// MessageType defines the type of dashboard message.
type MessageType string

const (
	// MessageTypePhase indicates the import moved to a new phase.
	MessageTypePhase MessageType = "phase"

	// MessageTypeEntityCreated indicates a remote entity was created.
	MessageTypeEntityCreated MessageType = "entity_created"

	// MessageTypeRunFinished indicates the import ended.
	MessageTypeRunFinished MessageType = "run_finished"
)

// Message is one dashboard broadcast.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// PhaseData carries a phase transition.
type PhaseData struct {
	Phase string `json:"phase"`
}

// EntityCreatedData carries one created entity.
type EntityCreatedData struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// RunFinishedData carries the import outcome.
type RunFinishedData struct {
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// Server manages WebSocket connections and broadcasts import progress.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]bool
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *zap.Logger
}

// NewServer creates a dashboard server listening on addr (host:port). A nil
// logger falls back to a no-op logger.
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
	}
}

// Start begins listening and serving WebSocket upgrades. Non-blocking; call
// Stop to shut down.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("dashboard listening", zap.String("addr", ln.Addr().String()))
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("dashboard server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop closes all client connections and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down dashboard server: %w", err)
	}

	s.wg.Wait()
	s.logger.Info("dashboard stopped")
	return nil
}

// Phase broadcasts a phase transition. Satisfies the importer's observer
// contract.
func (s *Server) Phase(name string) {
	s.send(MessageTypePhase, PhaseData{Phase: name})
}

// EntityCreated broadcasts one created entity.
func (s *Server) EntityCreated(kind, name, url string) {
	s.send(MessageTypeEntityCreated, EntityCreatedData{Kind: kind, Name: name, URL: url})
}

// RunFinished broadcasts the import outcome.
func (s *Server) RunFinished(runErr error) {
	data := RunFinishedData{Succeeded: runErr == nil}
	if runErr != nil {
		data.Error = runErr.Error()
	}
	s.send(MessageTypeRunFinished, data)
}

func (s *Server) send(typ MessageType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Warn("failed to marshal dashboard message", zap.Error(err))
		return
	}
	msg := Message{Type: typ, Timestamp: time.Now(), Data: raw}
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Warn("broadcast channel full, dropping message",
			zap.String("type", string(typ)))
	}
}

// broadcastLoop fans queued messages out to every connected client.
func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Warn("failed to marshal broadcast", zap.Error(err))
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			// Writes happen outside the lock so one slow client cannot
			// stall new connections.
			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = true
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.logger.Info("dashboard client connected", zap.Int("clients", count))

	go s.readLoop(conn)
}

// readLoop drains client frames so pings are answered, and detects
// disconnects.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)

	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	if _, exists := s.clients[conn]; !exists {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("dashboard client disconnected", zap.Int("clients", count))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": count,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>tabsync dashboard</title>
</head>
<body>
    <h1>tabsync import dashboard</h1>
    <p>WebSocket endpoint: <code>ws://%s/ws</code></p>
    <p>Health check: <a href="/health">/health</a></p>
    <p>Connect a WebSocket client to receive import progress.</p>
</body>
</html>`, r.Host)
}

// Addr returns the listening address, useful when the server was started on
// port 0.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
