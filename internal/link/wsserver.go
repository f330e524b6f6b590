package link

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/picoterm/host/internal/errors"
)

// clientSendBuffer is the per-client outbound queue depth. A slow
// client loses frames rather than stalling the host loop; every frame
// is a full snapshot, so a dropped one is repaired by the next.
const clientSendBuffer = 8

// tokenBuffer bounds queued input tokens across all clients.
const tokenBuffer = 64

// WSServer serves the frame stream over WebSocket and collects input
// tokens from connected viewers. Frames go out as binary messages in
// the same wire format as the serial link; tokens come back as text
// messages, one token line per message.
type WSServer struct {
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	listener net.Listener

	// OnConnect and OnDisconnect, when set before Start, are invoked
	// with the viewer's remote address as clients come and go. Used
	// for session event recording.
	OnConnect    func(remote string)
	OnDisconnect func(remote string)

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	stopped bool

	broadcast chan []byte
	tokens    chan string
	dropped   atomic.Int64
}

// wsClient is one connected viewer.
type wsClient struct {
	server   *WSServer
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

// NewWSServer creates a server that is not yet listening.
func NewWSServer() *WSServer {
	return &WSServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 8192,
			// Viewers on the LAN connect from arbitrary origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:   make(map[*wsClient]struct{}),
		broadcast: make(chan []byte, clientSendBuffer),
		tokens:    make(chan string, tokenBuffer),
	}
}

// Start begins listening on addr and serving /ws. It returns once the
// listener is bound, so Addr is valid immediately after.
func (s *WSServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeLinkOpenFailed,
			"cannot listen on "+addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpSrv = &http.Server{Handler: mux}

	go s.runBroadcaster()
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("WS server: %v", err)
		}
	}()

	log.Printf("WS server listening on %s", ln.Addr())
	return nil
}

// Addr returns the bound listen address.
func (s *WSServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Port returns the bound TCP port, or 0 before Start.
func (s *WSServer) Port() int {
	if s.listener == nil {
		return 0
	}
	if ta, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return ta.Port
	}
	return 0
}

// BroadcastFrame queues an encoded frame for delivery to all connected
// viewers. Non-blocking: if the queue is full the frame is dropped.
func (s *WSServer) BroadcastFrame(data []byte) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.broadcast <- data:
	default:
		s.dropped.Add(1)
		log.Printf("Warning: broadcast queue full, dropping frame")
	}
}

// Dropped reports how many frames were discarded because a queue was
// full, across all clients.
func (s *WSServer) Dropped() int64 {
	return s.dropped.Load()
}

// Tokens returns the channel of input token lines received from
// viewers. Lines are delivered without their trailing newline.
func (s *WSServer) Tokens() <-chan string {
	return s.tokens
}

// ClientCount returns the number of connected viewers.
func (s *WSServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Stop disconnects all viewers and closes the listener.
func (s *WSServer) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.broadcast)
	for c := range s.clients {
		c.close()
	}
	s.mu.Unlock()

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(ctx)
	}
}

// runBroadcaster fans frames out to every connected client. Per-client
// sends are non-blocking so one stuck viewer cannot hold up the rest.
func (s *WSServer) runBroadcaster() {
	for data := range s.broadcast {
		s.mu.RLock()
		for c := range s.clients {
			select {
			case <-c.done:
			case c.send <- data:
			default:
				s.dropped.Add(1)
				log.Printf("Warning: client send buffer full, dropping frame")
			}
		}
		s.mu.RUnlock()
	}
}

func (s *WSServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		server: s,
		conn:   conn,
		send:   make(chan []byte, clientSendBuffer),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()

	log.Printf("Viewer connected from %s (%d total)", r.RemoteAddr, n)
	if s.OnConnect != nil {
		s.OnConnect(r.RemoteAddr)
	}
	go c.writePump()
	go c.readPump()
}

// close signals shutdown exactly once. Only the done channel is closed;
// all senders check it before touching send.
func (c *wsClient) close() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send queue onto the socket and pings every 30s
// so dead connections are noticed.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump receives token lines from the viewer and forwards them to
// the server's token channel. It also drives disconnect cleanup.
func (c *wsClient) readPump() {
	defer func() {
		c.server.mu.Lock()
		delete(c.server.clients, c)
		remaining := len(c.server.clients)
		c.server.mu.Unlock()
		c.close()
		log.Printf("Viewer disconnected (%d remaining)", remaining)
		if c.server.OnDisconnect != nil {
			c.server.OnDisconnect(c.conn.RemoteAddr().String())
		}
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseAbnormalClosure) {
				log.Printf("WS read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		line := string(data)
		select {
		case c.server.tokens <- line:
		default:
			log.Printf("Warning: token queue full, dropping input")
		}
	}
}
