package web

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/navikt/zspatial/internal/broadcast"
	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/timesync"
	"github.com/navikt/zspatial/internal/utils"
)

const invalidMessageFormat = "Invalid message format"

// Session identifies the participant a message came from
type Session struct {
	RoomID   string
	ClientID string
	Channel  broadcast.Channel
}

// MessageRouter decodes participant messages and applies them to the room engine
type MessageRouter struct {
	rooms    RoomEngine
	clock    timesync.Clock
	gridSize float64
}

// NewMessageRouter creates a router validating positions against a plane of gridSize
func NewMessageRouter(rooms RoomEngine, clock timesync.Clock, gridSize float64) *MessageRouter {
	if clock == nil {
		clock = timesync.SystemClock{}
	}
	return &MessageRouter{rooms: rooms, clock: clock, gridSize: gridSize}
}

// Handle processes one raw message. receivedAt is when it was read off the
// connection. Malformed input is answered with ERROR to the sender only;
// unknown types are logged and ignored.
func (m *MessageRouter) Handle(ctx context.Context, s Session, data []byte, receivedAt time.Time) {
	msg, err := models.ParseInbound(data)
	if err != nil {
		log.Warnf("Invalid message from %s in room %s: %v", s.ClientID, utils.SanitizeLogString(s.RoomID), err)
		m.reply(s, models.NewErrorEnvelope(invalidMessageFormat))
		return
	}

	switch msg.Type {
	case models.TypeNTPRequest:
		m.reply(s, models.NewClockEnvelope(timesync.Respond(*msg.T0, receivedAt, m.clock)))
		if msg.RTT != nil {
			m.rooms.UpdateRTT(s.RoomID, s.ClientID, *msg.RTT)
		}

	case models.TypePlay, models.TypePause:
		if err := m.rooms.ScheduleCommand(s.RoomID, msg.Raw); err != nil {
			log.Errorf("Failed to schedule %s: %v", msg.Type, err)
		}

	case models.TypeStartSpatialAudio:
		m.rooms.StartOrbitGenerator(ctx, s.RoomID)

	case models.TypeStartSpiralSpatialAudio:
		m.rooms.StartSpiralGenerator(ctx, s.RoomID)

	case models.TypeStopSpatialAudio:
		m.rooms.StopSpatialAudio(ctx, s.RoomID)

	case models.TypeReuploadAudio:
		src := models.AudioSource{ID: msg.AudioID, Title: msg.AudioName, AddedBy: s.RoomID}
		if err := m.rooms.AnnounceAudioSource(s.RoomID, src); err != nil {
			log.Errorf("Failed to announce audio source: %v", err)
		}

	case models.TypeReorderClient:
		if _, err := m.rooms.ReorderParticipants(ctx, s.RoomID, msg.ClientID); err != nil {
			log.Warnf("Reorder failed in room %s: %v", utils.SanitizeLogString(s.RoomID), err)
			m.reply(s, models.NewErrorEnvelope(err.Error()))
		}

	case models.TypeSetListeningSource:
		pos, ok := m.position(s, msg)
		if ok {
			m.rooms.SetListeningSource(ctx, s.RoomID, pos)
		}

	case models.TypeMoveClient:
		pos, ok := m.position(s, msg)
		if ok {
			m.rooms.MoveParticipant(ctx, s.RoomID, s.ClientID, pos)
		}

	case models.TypeSetSpatialTunables:
		if err := m.rooms.SetTunables(s.RoomID, msg.Tunables); err != nil {
			m.reply(s, models.NewErrorEnvelope(err.Error()))
		}

	default:
		log.Warnf("Unrecognized message type %s from %s", utils.SanitizeLogString(string(msg.Type)), s.ClientID)
	}
}

func (m *MessageRouter) position(s Session, msg *models.Inbound) (models.Position, bool) {
	pos, err := msg.Position(m.gridSize)
	if err != nil {
		reason := invalidMessageFormat
		if errors.Is(err, models.ErrPositionOutOfBounds) {
			reason = err.Error()
		}
		m.reply(s, models.NewErrorEnvelope(reason))
		return models.Position{}, false
	}
	return pos, true
}

func (m *MessageRouter) reply(s Session, envelope *models.Envelope) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		log.Errorf("Failed to encode reply: %v", err)
		return
	}
	if err := s.Channel.Send(payload); err != nil {
		log.Debugf("Failed to reply to %s: %v", s.ClientID, err)
	}
}
