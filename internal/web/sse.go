package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/utils"
	"github.com/r3labs/sse/v2"
)

// RoomsStream is the stream carrying room snapshots for every room
const RoomsStream = "rooms"

// observerWriteWait bounds each write to an observer
const observerWriteWait = 10 * time.Second

// SSEManager mirrors room traffic to read-only observers over server-sent events.
// Each room has a stream named after its id; RoomsStream carries snapshots.
// Publishing never blocks: events a stalled observer cannot take are dropped.
type SSEManager struct {
	server *sse.Server
}

// NewSSEManager creates a new server-sent events manager
func NewSSEManager() *SSEManager {
	server := sse.New()
	// Streams appear on first subscription; late observers only see live traffic
	server.AutoStream = true
	server.AutoReplay = false
	server.CreateStream(RoomsStream)

	return &SSEManager{server: server}
}

// Publish forwards an envelope broadcast to a room. Rooms nobody observes are skipped.
func (m *SSEManager) Publish(roomID string, payload []byte) {
	if roomID == RoomsStream || !m.server.StreamExists(roomID) {
		return
	}
	if !m.server.TryPublish(roomID, &sse.Event{Event: []byte("message"), Data: payload}) {
		log.Debugf("Dropped SSE event for room %s, stream is backed up", utils.SanitizeLogString(roomID))
	}
}

// CloseRoom ends the room's stream and disconnects its observers
func (m *SSEManager) CloseRoom(roomID string) {
	if roomID == RoomsStream {
		return
	}
	m.server.RemoveStream(roomID)
}

// PublishSnapshot sends a room snapshot to the rooms stream
func (m *SSEManager) PublishSnapshot(snapshot models.RoomSnapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Errorf("Failed to encode snapshot for room %s: %v", utils.SanitizeLogString(snapshot.ID), err)
		return
	}
	if !m.server.TryPublish(RoomsStream, &sse.Event{Event: []byte("room"), Data: data}) {
		log.Debugf("Dropped snapshot for room %s, rooms stream is backed up", utils.SanitizeLogString(snapshot.ID))
	}
}

// ServeHTTP subscribes an observer to the stream named by the stream query parameter
func (m *SSEManager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	stream := r.URL.Query().Get("stream")
	if stream == "" {
		http.Error(w, "stream is required", http.StatusBadRequest)
		return
	}
	log.Debugf("SSE observer subscribed to %s", utils.SanitizeLogString(stream))
	m.server.ServeHTTP(&deadlineWriter{ResponseWriter: w, rc: http.NewResponseController(w)}, r)
}

// Close disconnects every observer
func (m *SSEManager) Close() {
	m.server.Close()
}

// deadlineWriter renews the write deadline before every write so an observer
// that stops reading fails its writes instead of holding its stream.
type deadlineWriter struct {
	http.ResponseWriter
	rc *http.ResponseController
}

func (w *deadlineWriter) Write(p []byte) (int, error) {
	_ = w.rc.SetWriteDeadline(time.Now().Add(observerWriteWait))
	return w.ResponseWriter.Write(p)
}

func (w *deadlineWriter) Flush() {
	_ = w.rc.SetWriteDeadline(time.Now().Add(observerWriteWait))
	_ = w.rc.Flush()
}
