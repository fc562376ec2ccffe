package web

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/navikt/zspatial/internal/broadcast"
	"github.com/navikt/zspatial/internal/models"
	"github.com/stretchr/testify/mock"
)

type mockEngine struct {
	mock.Mock
}

func (m *mockEngine) AddParticipant(ctx context.Context, roomID, name, participantID string, ch broadcast.Channel) error {
	args := m.Called(ctx, roomID, name, participantID, ch)
	return args.Error(0)
}

func (m *mockEngine) RemoveParticipant(ctx context.Context, roomID, participantID string) {
	m.Called(ctx, roomID, participantID)
}

func (m *mockEngine) ReorderParticipants(ctx context.Context, roomID, participantID string) ([]models.ParticipantView, error) {
	args := m.Called(ctx, roomID, participantID)
	views, _ := args.Get(0).([]models.ParticipantView)
	return views, args.Error(1)
}

func (m *mockEngine) UpdateRTT(roomID, participantID string, rtt float64) {
	m.Called(roomID, participantID, rtt)
}

func (m *mockEngine) SetListeningSource(ctx context.Context, roomID string, pos models.Position) {
	m.Called(ctx, roomID, pos)
}

func (m *mockEngine) MoveParticipant(ctx context.Context, roomID, participantID string, pos models.Position) {
	m.Called(ctx, roomID, participantID, pos)
}

func (m *mockEngine) SetTunables(roomID string, t models.Tunables) error {
	args := m.Called(roomID, t)
	return args.Error(0)
}

func (m *mockEngine) StartOrbitGenerator(ctx context.Context, roomID string) bool {
	return m.Called(ctx, roomID).Bool(0)
}

func (m *mockEngine) StartSpiralGenerator(ctx context.Context, roomID string) bool {
	return m.Called(ctx, roomID).Bool(0)
}

func (m *mockEngine) StopSpatialAudio(ctx context.Context, roomID string) bool {
	return m.Called(ctx, roomID).Bool(0)
}

func (m *mockEngine) ScheduleCommand(roomID string, raw json.RawMessage) error {
	args := m.Called(roomID, raw)
	return args.Error(0)
}

func (m *mockEngine) AnnounceAudioSource(roomID string, src models.AudioSource) error {
	args := m.Called(roomID, src)
	return args.Error(0)
}

// recordingChannel captures frames sent to a participant
type recordingChannel struct {
	mu     sync.Mutex
	frames [][]byte
}

func (c *recordingChannel) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, payload)
	return nil
}

func (c *recordingChannel) decoded() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]any, 0, len(c.frames))
	for _, f := range c.frames {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err == nil {
			out = append(out, m)
		}
	}
	return out
}
