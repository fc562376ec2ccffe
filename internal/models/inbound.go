package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidMessage is returned when an inbound message cannot be decoded
	ErrInvalidMessage = errors.New("invalid message format")
	// ErrPositionOutOfBounds is returned when a supplied position lies outside the plane
	ErrPositionOutOfBounds = errors.New("position out of bounds")
)

// Inbound is a decoded participant message. Only the fields that belong to
// Type are decoded; the rest stay zero.
type Inbound struct {
	Type      MessageType
	T0        *float64
	RTT       *float64
	ClientID  string
	AudioID   string
	AudioName string
	X         *float64
	Y         *float64
	Tunables

	// Raw is the message as received, forwarded untouched for PLAY and PAUSE
	Raw json.RawMessage
}

type clockRequest struct {
	T0  *float64 `json:"t0"`
	RTT *float64 `json:"rtt"`
}

type reorderRequest struct {
	ClientID string `json:"clientId"`
}

type reuploadRequest struct {
	AudioID   string `json:"audioId"`
	AudioName string `json:"audioName"`
}

type positionRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// ParseInbound decodes and validates a participant message. The type is read
// first and the body is decoded per type, so PLAY, PAUSE and unknown types
// accept any payload. Unknown types are left to the caller to ignore.
func ParseInbound(data []byte) (*Inbound, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}

	msg := &Inbound{Type: head.Type, Raw: append(json.RawMessage(nil), data...)}

	switch head.Type {
	case TypeNTPRequest:
		var body clockRequest
		if err := decodeBody(data, &body); err != nil {
			return nil, err
		}
		if body.T0 == nil {
			return nil, fmt.Errorf("%w: NTP_REQUEST without t0", ErrInvalidMessage)
		}
		msg.T0, msg.RTT = body.T0, body.RTT

	case TypeReorderClient:
		var body reorderRequest
		if err := decodeBody(data, &body); err != nil {
			return nil, err
		}
		if body.ClientID == "" {
			return nil, fmt.Errorf("%w: REORDER_CLIENT without clientId", ErrInvalidMessage)
		}
		msg.ClientID = body.ClientID

	case TypeReuploadAudio:
		var body reuploadRequest
		if err := decodeBody(data, &body); err != nil {
			return nil, err
		}
		if body.AudioID == "" {
			return nil, fmt.Errorf("%w: REUPLOAD_AUDIO without audioId", ErrInvalidMessage)
		}
		msg.AudioID, msg.AudioName = body.AudioID, body.AudioName

	case TypeSetListeningSource, TypeMoveClient:
		var body positionRequest
		if err := decodeBody(data, &body); err != nil {
			return nil, err
		}
		if body.X == nil || body.Y == nil {
			return nil, fmt.Errorf("%w: %s without x/y", ErrInvalidMessage, head.Type)
		}
		msg.X, msg.Y = body.X, body.Y

	case TypeSetSpatialTunables:
		if err := decodeBody(data, &msg.Tunables); err != nil {
			return nil, err
		}
	}

	return msg, nil
}

func decodeBody(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

// Position returns the x/y carried by the message, checked against a plane of the given size
func (m *Inbound) Position(size float64) (Position, error) {
	if m.X == nil || m.Y == nil {
		return Position{}, fmt.Errorf("%w: missing coordinates", ErrInvalidMessage)
	}
	pos := Position{X: *m.X, Y: *m.Y}
	if !pos.Within(size) {
		return Position{}, fmt.Errorf("%w: (%.2f, %.2f) outside [0,%.0f]", ErrPositionOutOfBounds, pos.X, pos.Y, size)
	}
	return pos, nil
}
