package models

// MessageType is the discriminant of every envelope exchanged with participants
type MessageType string

// Outbound envelope types
const (
	TypeSetClientID     MessageType = "SET_CLIENT_ID"
	TypeRoomEvent       MessageType = "ROOM_EVENT"
	TypeScheduledAction MessageType = "SCHEDULED_ACTION"
	TypeNTPResponse     MessageType = "NTP_RESPONSE"
	TypeError           MessageType = "ERROR"
)

// Inbound message types
const (
	TypeNTPRequest              MessageType = "NTP_REQUEST"
	TypePlay                    MessageType = "PLAY"
	TypePause                   MessageType = "PAUSE"
	TypeStartSpatialAudio       MessageType = "START_SPATIAL_AUDIO"
	TypeStartSpiralSpatialAudio MessageType = "START_SPIRAL_SPATIAL_AUDIO"
	TypeStopSpatialAudio        MessageType = "STOP_SPATIAL_AUDIO"
	TypeReuploadAudio           MessageType = "REUPLOAD_AUDIO"
	TypeReorderClient           MessageType = "REORDER_CLIENT"
	TypeSetListeningSource      MessageType = "SET_LISTENING_SOURCE"
	TypeMoveClient              MessageType = "MOVE_CLIENT"
	TypeSetSpatialTunables      MessageType = "SET_SPATIAL_TUNABLES"
)

// Room event and scheduled payload types
const (
	EventClientChange   MessageType = "CLIENT_CHANGE"
	EventNewAudioSource MessageType = "NEW_AUDIO_SOURCE"
	ActionSpatialConfig MessageType = "SPATIAL_CONFIG"
)

// DefaultRampTime is the client-side interpolation hint, in seconds
const DefaultRampTime = 0.25

const defaultAudioDuration = 1

// Envelope is the single outbound record type. Only the fields that belong
// to Type are populated.
type Envelope struct {
	Type                MessageType `json:"type"`
	ClientID            string      `json:"clientId,omitempty"`
	Event               *RoomEvent  `json:"event,omitempty"`
	ServerTimeToExecute int64       `json:"serverTimeToExecute,omitempty"`
	ScheduledAction     any         `json:"scheduledAction,omitempty"`
	*ClockSample
	Message string `json:"message,omitempty"`
}

// ClockSample is the timestamp triple of a clock-sync exchange, in epoch milliseconds
type ClockSample struct {
	T0 float64 `json:"t0"`
	T1 int64   `json:"t1"`
	T2 int64   `json:"t2"`
}

// RoomEvent reports membership or content changes
type RoomEvent struct {
	Type     MessageType       `json:"type"`
	Clients  []ParticipantView `json:"clients,omitempty"`
	ID       string            `json:"id,omitempty"`
	Title    string            `json:"title,omitempty"`
	Duration float64           `json:"duration,omitempty"`
	AddedAt  int64             `json:"addedAt,omitempty"`
	AddedBy  string            `json:"addedBy,omitempty"`
}

// SpatialConfig is the scheduled payload carrying the source and every participant's parameters
type SpatialConfig struct {
	Type            MessageType              `json:"type"`
	ListeningSource Position                 `json:"listeningSource"`
	Gains           map[string]SpatialParams `json:"gains"`
}

// SpatialParams are the audio parameters for one participant.
// Pan and Pitch are absent on gain-only snapshots.
type SpatialParams struct {
	Gain     float64  `json:"gain"`
	Pan      *float64 `json:"pan,omitempty"`
	Pitch    *float64 `json:"pitch,omitempty"`
	RampTime float64  `json:"rampTime"`
}

// Command is a scheduled payload with no arguments
type Command struct {
	Type MessageType `json:"type"`
}

// NewClientIDEnvelope tells a freshly joined participant its identifier
func NewClientIDEnvelope(clientID string) *Envelope {
	return &Envelope{Type: TypeSetClientID, ClientID: clientID}
}

// NewClientChangeEnvelope carries a full roster snapshot
func NewClientChangeEnvelope(clients []ParticipantView) *Envelope {
	if clients == nil {
		clients = []ParticipantView{}
	}
	return &Envelope{
		Type:  TypeRoomEvent,
		Event: &RoomEvent{Type: EventClientChange, Clients: clients},
	}
}

// NewAudioSourceEnvelope announces an uploaded audio asset
func NewAudioSourceEnvelope(src AudioSource, addedAt int64) *Envelope {
	return &Envelope{
		Type: TypeRoomEvent,
		Event: &RoomEvent{
			Type:     EventNewAudioSource,
			ID:       src.ID,
			Title:    src.Title,
			Duration: defaultAudioDuration,
			AddedAt:  addedAt,
			AddedBy:  src.AddedBy,
		},
	}
}

// NewScheduledEnvelope wraps an action with the server time it should execute at
func NewScheduledEnvelope(action any, executeAt int64) *Envelope {
	return &Envelope{
		Type:                TypeScheduledAction,
		ScheduledAction:     action,
		ServerTimeToExecute: executeAt,
	}
}

// NewClockEnvelope answers a clock-sync request
func NewClockEnvelope(sample ClockSample) *Envelope {
	return &Envelope{Type: TypeNTPResponse, ClockSample: &sample}
}

// NewErrorEnvelope reports malformed input to its sender
func NewErrorEnvelope(message string) *Envelope {
	return &Envelope{Type: TypeError, Message: message}
}
