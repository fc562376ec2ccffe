package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	logging "github.com/ipfs/go-log/v2"
	"github.com/navikt/zspatial/internal/timesync"
	"github.com/navikt/zspatial/internal/utils"
)

var log = logging.Logger("web")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

var (
	// ErrConnectionClosed is returned when sending to a participant that has gone away
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a participant cannot keep up with the room
	ErrSendBufferFull = errors.New("send buffer full")
)

// Connection is one participant's WebSocket. Send never blocks; frames are
// written by a dedicated pump in the order they were queued.
type Connection struct {
	id     string
	roomID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newConnection(id, roomID string, conn *websocket.Conn) *Connection {
	return &Connection{
		id:     id,
		roomID: roomID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
	}
}

// Send queues a frame for the participant
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		// A stalled reader is dropped rather than holding up the room
		c.close()
		return ErrSendBufferFull
	}
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.done) })
}

// SocketHandler upgrades participant connections and feeds their messages to the router
type SocketHandler struct {
	rooms    RoomEngine
	router   *MessageRouter
	clock    timesync.Clock
	upgrader websocket.Upgrader

	mu      sync.Mutex
	closing bool
	conns   map[*Connection]struct{}
	wg      sync.WaitGroup
}

// NewSocketHandler creates the /ws handler
func NewSocketHandler(rooms RoomEngine, router *MessageRouter, clock timesync.Clock) *SocketHandler {
	if clock == nil {
		clock = timesync.SystemClock{}
	}
	return &SocketHandler{
		rooms:  rooms,
		router: router,
		clock:  clock,
		conns:  make(map[*Connection]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP admits a participant identified by the roomId and username query parameters
func (h *SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomId")
	username := r.URL.Query().Get("username")
	if roomID == "" || username == "" {
		log.Warnf("Rejected connection from %s without roomId or username", r.RemoteAddr)
		http.Error(w, "roomId and username are required", http.StatusBadRequest)
		return
	}

	if h.isClosing() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	// Registered before joining so a concurrent Close always sees it
	c := newConnection(uuid.NewString(), roomID, ws)
	if !h.register(c) {
		ws.Close()
		return
	}

	if err := h.rooms.AddParticipant(r.Context(), roomID, username, c.id, c); err != nil {
		log.Errorf("Failed to add %s to room %s: %v", c.id, utils.SanitizeLogString(roomID), err)
		h.unregister(c)
		h.wg.Add(-2)
		ws.Close()
		return
	}
	log.Infof("Participant %s (%s) connected to room %s", c.id, utils.SanitizeLogString(username), utils.SanitizeLogString(roomID))

	go h.writePump(c)
	go h.readPump(c)
}

func (h *SocketHandler) isClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// register tracks a connection and reserves its two pumps. It fails once Close has run.
func (h *SocketHandler) register(c *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.conns[c] = struct{}{}
	h.wg.Add(2)
	return true
}

func (h *SocketHandler) unregister(c *Connection) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Close disconnects every participant. Hijacked connections are not
// closed by http.Server.Shutdown.
func (h *SocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing = true
	for c := range h.conns {
		c.close()
	}
}

// Wait blocks until every connection pump has exited
func (h *SocketHandler) Wait() {
	h.wg.Wait()
}

func (h *SocketHandler) readPump(c *Connection) {
	defer h.wg.Done()
	defer func() {
		c.close()
		h.unregister(c)
		h.rooms.RemoveParticipant(context.Background(), c.roomID, c.id)
		log.Infof("Participant %s left room %s", c.id, utils.SanitizeLogString(c.roomID))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	session := Session{RoomID: c.roomID, ClientID: c.id, Channel: c}
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("Unexpected close for %s: %v", c.id, err)
			}
			return
		}
		h.router.Handle(context.Background(), session, data, h.clock.Now())
	}
}

// writePump owns the connection's write side and closes the socket on exit,
// which unblocks readPump.
func (h *SocketHandler) writePump(c *Connection) {
	defer h.wg.Done()
	defer c.conn.Close()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Debugf("Write to %s failed: %v", c.id, err)
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
