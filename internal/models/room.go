package models

import (
	"errors"
	"math"
	"time"
)

// ErrRoomNotFound is returned when a room is neither live nor stored
var ErrRoomNotFound = errors.New("room not found")

// Position is a point on the room plane
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the euclidean distance between two positions
func (p Position) DistanceTo(other Position) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Within reports whether the position lies inside the square plane [0,size]x[0,size]
func (p Position) Within(size float64) bool {
	return p.X >= 0 && p.X <= size && p.Y >= 0 && p.Y <= size
}

// ParticipantView is the serializable state of a participant.
// It never carries transport metadata.
type ParticipantView struct {
	ID       string   `json:"clientId"`
	Name     string   `json:"username"`
	Position Position `json:"position"`
	RTT      float64  `json:"rtt"`
}

// RoomSnapshot is the read model of a room published to the repository
type RoomSnapshot struct {
	ID              string            `json:"id"`
	Participants    []ParticipantView `json:"participants"`
	ListeningSource Position          `json:"listeningSource"`
	Generator       string            `json:"generator,omitempty"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// AudioSource describes an audio asset announced to a room
type AudioSource struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	AddedBy string `json:"addedBy"`
}

// UploadTicket is handed to a client that wants to upload an audio asset
type UploadTicket struct {
	UploadURL  string    `json:"uploadUrl"`
	PublicURL  string    `json:"publicUrl"`
	StorageKey string    `json:"storageKey"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Tunables are optional per-room overrides for motion generators.
// A nil field means the generator default applies.
type Tunables struct {
	Speed              *float64 `json:"speed,omitempty"`
	Radius             *float64 `json:"radius,omitempty"`
	Falloff            *float64 `json:"falloff,omitempty"`
	MinGain            *float64 `json:"minGain,omitempty"`
	MaxGain            *float64 `json:"maxGain,omitempty"`
	MaxHearingDistance *float64 `json:"maxHearingDistance,omitempty"`
}

// IsZero reports whether no override is set
func (t Tunables) IsZero() bool {
	return t.Speed == nil && t.Radius == nil && t.Falloff == nil &&
		t.MinGain == nil && t.MaxGain == nil && t.MaxHearingDistance == nil
}
