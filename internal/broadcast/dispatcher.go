// Package broadcast fans envelopes out to the members of a room
package broadcast

import (
	"encoding/json"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	"github.com/navikt/zspatial/internal/utils"
)

var log = logging.Logger("broadcast")

// Channel is the transport endpoint of one participant.
// Send must not block on a slow peer.
type Channel interface {
	Send(payload []byte) error
}

// Observer receives a copy of every room-scoped envelope
type Observer interface {
	Publish(roomID string, payload []byte)
	CloseRoom(roomID string)
}

// Dispatcher owns the connection registry: room -> participant -> channel.
// Participant state never holds a channel; only the dispatcher does.
type Dispatcher struct {
	mu        sync.RWMutex
	groups    map[string]map[string]Channel
	observers []Observer
}

// NewDispatcher creates a dispatcher that mirrors room traffic to observers
func NewDispatcher(observers ...Observer) *Dispatcher {
	return &Dispatcher{
		groups:    make(map[string]map[string]Channel),
		observers: observers,
	}
}

// Join registers a participant's channel in the room's broadcast group
func (d *Dispatcher) Join(roomID, participantID string, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()

	group, ok := d.groups[roomID]
	if !ok {
		group = make(map[string]Channel)
		d.groups[roomID] = group
	}
	group[participantID] = ch
}

// Leave removes a participant's channel. The group is dropped once empty.
func (d *Dispatcher) Leave(roomID, participantID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	group, ok := d.groups[roomID]
	if !ok {
		return
	}
	delete(group, participantID)
	if len(group) == 0 {
		delete(d.groups, roomID)
	}
}

// Members returns the number of channels registered for a room
func (d *Dispatcher) Members(roomID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.groups[roomID])
}

// Unicast sends an envelope to one participant only
func (d *Dispatcher) Unicast(roomID, participantID string, envelope any) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	d.mu.RLock()
	ch, ok := d.groups[roomID][participantID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("participant %s not connected to room %s", participantID, roomID)
	}
	return ch.Send(payload)
}

// Broadcast encodes an envelope once and sends the same bytes to every
// member of the room and to every observer. Per-channel failures are logged.
func (d *Dispatcher) Broadcast(roomID string, envelope any) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	d.mu.RLock()
	for participantID, ch := range d.groups[roomID] {
		if err := ch.Send(payload); err != nil {
			log.Warnf("Failed to deliver to %s in room %s: %v", participantID, utils.SanitizeLogString(roomID), err)
		}
	}
	d.mu.RUnlock()

	for _, o := range d.observers {
		o.Publish(roomID, payload)
	}
	return nil
}

// CloseRoom drops the room's group and tells observers the room is gone
func (d *Dispatcher) CloseRoom(roomID string) {
	d.mu.Lock()
	delete(d.groups, roomID)
	d.mu.Unlock()

	for _, o := range d.observers {
		o.CloseRoom(roomID)
	}
}
