package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/navikt/zspatial/internal/broadcast"
	"github.com/navikt/zspatial/internal/config"
	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/motion"
	"github.com/navikt/zspatial/internal/repository/memory"
	"github.com/navikt/zspatial/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const horizon = 500 * time.Millisecond

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type scheduledAction struct {
	Type            models.MessageType              `json:"type"`
	ListeningSource models.Position                 `json:"listeningSource"`
	Gains           map[string]models.SpatialParams `json:"gains"`
	AudioID         string                          `json:"audioId"`
}

type received struct {
	Type                models.MessageType `json:"type"`
	ClientID            string             `json:"clientId"`
	Event               *models.RoomEvent  `json:"event"`
	ServerTimeToExecute int64              `json:"serverTimeToExecute"`
	ScheduledAction     *scheduledAction   `json:"scheduledAction"`
}

// recordingChannel decodes everything sent to one participant
type recordingChannel struct {
	mu       sync.Mutex
	messages []received
}

func (c *recordingChannel) Send(payload []byte) error {
	var msg received
	if err := json.Unmarshal(payload, &msg); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

func (c *recordingChannel) all() []received {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]received(nil), c.messages...)
}

func (c *recordingChannel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

func (c *recordingChannel) scheduled() []received {
	var out []received
	for _, m := range c.all() {
		if m.Type == models.TypeScheduledAction {
			out = append(out, m)
		}
	}
	return out
}

type mockCleaner struct {
	mock.Mock
	entered chan struct{}
	release chan struct{}
}

func (m *mockCleaner) CleanupRoom(ctx context.Context, roomID string) error {
	args := m.Called(roomID)
	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	return args.Error(0)
}

type fixture struct {
	svc     *service.RoomService
	clock   *fakeClock
	cleaner *mockCleaner
	repo    *memory.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{now: time.UnixMilli(1_715_000_000_000)}
	cleaner := &mockCleaner{}
	repo := memory.NewRepository()
	svc := service.NewRoomService(broadcast.NewDispatcher(), cleaner, repo, service.Options{
		Grid:         config.GridConfig{Size: 100, OriginX: 50, OriginY: 50, ClientRadius: 25},
		Horizon:      horizon,
		TickInterval: 5 * time.Millisecond,
		Clock:        clock,
		Rand:         func() float64 { return 0 },
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})

	return &fixture{svc: svc, clock: clock, cleaner: cleaner, repo: repo}
}

func (f *fixture) join(t *testing.T, roomID string, ids ...string) map[string]*recordingChannel {
	t.Helper()
	channels := make(map[string]*recordingChannel)
	for _, id := range ids {
		ch := &recordingChannel{}
		require.NoError(t, f.svc.AddParticipant(context.Background(), roomID, "user-"+id, id, ch))
		channels[id] = ch
	}
	return channels
}

func order(views []models.ParticipantView) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestAddParticipant_FirstJoinCreatesRoom(t *testing.T) {
	f := newFixture(t)
	ch := &recordingChannel{}

	require.NoError(t, f.svc.AddParticipant(context.Background(), "R1", "alice", "c1", ch))

	participants := f.svc.Participants("R1")
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].Name)
	assert.Equal(t, models.Position{X: 50, Y: 25}, participants[0].Position)

	msgs := ch.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, models.TypeSetClientID, msgs[0].Type)
	assert.Equal(t, "c1", msgs[0].ClientID)
	assert.Equal(t, models.TypeRoomEvent, msgs[1].Type)
	require.NotNil(t, msgs[1].Event)
	assert.Equal(t, models.EventClientChange, msgs[1].Event.Type)
	assert.Equal(t, participants, msgs[1].Event.Clients)

	stored, err := f.repo.GetRoom(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, order(stored.Participants))
	assert.Equal(t, models.Position{X: 50, Y: 50}, stored.ListeningSource)
}

func TestAddParticipant_MissingIdentifiers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.AddParticipant(ctx, "", "alice", "c1", &recordingChannel{}), service.ErrMissingIdentifier)
	assert.ErrorIs(t, f.svc.AddParticipant(ctx, "R1", "", "c1", &recordingChannel{}), service.ErrMissingIdentifier)
	assert.ErrorIs(t, f.svc.AddParticipant(ctx, "R1", "alice", "", &recordingChannel{}), service.ErrMissingIdentifier)
	assert.ErrorIs(t, f.svc.AddParticipant(ctx, "R1", "alice", "c1", nil), service.ErrMissingIdentifier)
	assert.Equal(t, 0, f.svc.RoomCount())
}

func TestAddParticipant_LayoutAndBroadcastToEveryone(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a", "b")

	participants := f.svc.Participants("R1")
	require.Len(t, participants, 2)
	assert.InDelta(t, 50, participants[0].Position.X, 1e-9)
	assert.InDelta(t, 25, participants[0].Position.Y, 1e-9)
	assert.InDelta(t, 50, participants[1].Position.X, 1e-9)
	assert.InDelta(t, 75, participants[1].Position.Y, 1e-9)

	// a saw its own join and b's join
	last := channels["a"].all()
	require.Len(t, last, 3)
	assert.Equal(t, []string{"a", "b"}, order(last[2].Event.Clients))
}

func TestReorderParticipants(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a", "b", "c", "d")
	channels["a"].reset()

	views, err := f.svc.ReorderParticipants(context.Background(), "R1", "c")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b", "d"}, order(views))
	assert.Equal(t, views, f.svc.Participants("R1"))
	assert.InDelta(t, 25, views[0].Position.Y, 1e-9)

	msgs := channels["a"].all()
	scheduled := channels["a"].scheduled()
	require.Len(t, scheduled, 1, "exactly one immediate spatial snapshot")
	snap := scheduled[0]
	assert.Equal(t, f.clock.Now().UnixMilli(), snap.ServerTimeToExecute)
	assert.Equal(t, models.ActionSpatialConfig, snap.ScheduledAction.Type)
	assert.Len(t, snap.ScheduledAction.Gains, 4)
	for _, params := range snap.ScheduledAction.Gains {
		assert.Nil(t, params.Pan)
		assert.Nil(t, params.Pitch)
		assert.Equal(t, models.DefaultRampTime, params.RampTime)
	}

	require.Len(t, msgs, 2)
	assert.Equal(t, models.TypeRoomEvent, msgs[1].Type)
	assert.Equal(t, []string{"c", "a", "b", "d"}, order(msgs[1].Event.Clients))
}

func TestReorderParticipants_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.join(t, "R1", "a", "b", "c")

	first, err := f.svc.ReorderParticipants(context.Background(), "R1", "b")
	require.NoError(t, err)
	second, err := f.svc.ReorderParticipants(context.Background(), "R1", "b")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "b", second[0].ID)
}

func TestReorderParticipants_Unknown(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a", "b")
	channels["a"].reset()

	_, err := f.svc.ReorderParticipants(context.Background(), "nope", "a")
	assert.ErrorIs(t, err, service.ErrRoomNotFound)

	views, err := f.svc.ReorderParticipants(context.Background(), "R1", "ghost")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order(views))

	// No spatial snapshot, but the unchanged roster is announced
	assert.Empty(t, channels["a"].scheduled())
	msgs := channels["a"].all()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.TypeRoomEvent, msgs[0].Type)
	assert.Equal(t, models.EventClientChange, msgs[0].Event.Type)
	assert.Equal(t, []string{"a", "b"}, order(msgs[0].Event.Clients))
}

func TestRemoveParticipant_RecomputesLayout(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a", "b", "c")
	channels["b"].reset()

	f.svc.RemoveParticipant(context.Background(), "R1", "a")

	participants := f.svc.Participants("R1")
	assert.Equal(t, []string{"b", "c"}, order(participants))
	assert.InDelta(t, 25, participants[0].Position.Y, 1e-9)

	msgs := channels["b"].all()
	require.Len(t, msgs, 1)
	assert.Equal(t, []string{"b", "c"}, order(msgs[0].Event.Clients))
	assert.Len(t, channels["a"].all(), 4, "departed participant receives nothing further")
	f.cleaner.AssertNotCalled(t, "CleanupRoom", mock.Anything)
}

func TestRemoveParticipant_LastOneDeletesRoom(t *testing.T) {
	f := newFixture(t)
	f.cleaner.On("CleanupRoom", "R1").Return(errors.New("storage down")).Once()
	f.join(t, "R1", "a")
	require.True(t, f.svc.StartOrbitGenerator(context.Background(), "R1"))

	f.svc.RemoveParticipant(context.Background(), "R1", "a")

	assert.Equal(t, 0, f.svc.RoomCount())
	_, ok := f.svc.ActiveGenerator("R1")
	assert.False(t, ok)
	_, err := f.repo.GetRoom(context.Background(), "R1")
	assert.ErrorIs(t, err, memory.ErrNotFound)
	f.cleaner.AssertExpectations(t)
}

func TestRemoveParticipant_JoinDuringCleanupKeepsRoom(t *testing.T) {
	f := newFixture(t)
	f.cleaner.entered = make(chan struct{})
	f.cleaner.release = make(chan struct{})
	f.cleaner.On("CleanupRoom", "R1").Return(nil).Once()
	f.join(t, "R1", "a")

	done := make(chan struct{})
	go func() {
		f.svc.RemoveParticipant(context.Background(), "R1", "a")
		close(done)
	}()

	<-f.cleaner.entered
	channels := f.join(t, "R1", "b")
	close(f.cleaner.release)
	<-done

	assert.Equal(t, 1, f.svc.RoomCount())
	participants := f.svc.Participants("R1")
	require.Len(t, participants, 1)
	assert.Equal(t, "b", participants[0].ID)
	assert.Equal(t, models.Position{X: 50, Y: 25}, participants[0].Position)

	// b stays reachable through the room's broadcast group
	channels["b"].reset()
	require.NoError(t, f.svc.AnnounceAudioSource("R1", models.AudioSource{ID: "x", Title: "x"}))
	assert.Len(t, channels["b"].all(), 1)
	f.cleaner.AssertExpectations(t)
}

func TestRemoveParticipant_UnknownIsNoop(t *testing.T) {
	f := newFixture(t)
	f.svc.RemoveParticipant(context.Background(), "nope", "a")
	f.cleaner.AssertNotCalled(t, "CleanupRoom", mock.Anything)
}

func TestUpdateRTT(t *testing.T) {
	f := newFixture(t)
	f.join(t, "R1", "a")

	f.svc.UpdateRTT("R1", "a", 42.5)
	f.svc.UpdateRTT("R1", "ghost", 1)
	f.svc.UpdateRTT("nope", "a", 1)

	assert.Equal(t, 42.5, f.svc.Participants("R1")[0].RTT)
}

func TestSetListeningSource(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a")
	channels["a"].reset()

	f.svc.SetListeningSource(context.Background(), "R1", models.Position{X: 50, Y: 25})

	scheduled := channels["a"].scheduled()
	require.Len(t, scheduled, 1)
	action := scheduled[0].ScheduledAction
	assert.Equal(t, models.Position{X: 50, Y: 25}, action.ListeningSource)
	assert.InDelta(t, 1.0, action.Gains["a"].Gain, 1e-9, "source on top of participant")
	assert.Equal(t, f.clock.Now().UnixMilli(), scheduled[0].ServerTimeToExecute)

	snapshot, err := f.svc.Snapshot("R1")
	require.NoError(t, err)
	assert.Equal(t, models.Position{X: 50, Y: 25}, snapshot.ListeningSource)
}

func TestMoveParticipant(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a", "b")
	channels["b"].reset()

	f.svc.MoveParticipant(context.Background(), "R1", "a", models.Position{X: 50, Y: 50})

	participants := f.svc.Participants("R1")
	assert.Equal(t, models.Position{X: 50, Y: 50}, participants[0].Position)

	scheduled := channels["b"].scheduled()
	require.Len(t, scheduled, 1)
	gains := scheduled[0].ScheduledAction.Gains
	assert.InDelta(t, 1.0, gains["a"].Gain, 1e-9)
	assert.InDelta(t, 0.9375, gains["b"].Gain, 1e-9)

	f.svc.MoveParticipant(context.Background(), "R1", "ghost", models.Position{})
	assert.Len(t, channels["b"].scheduled(), 1)
}

func TestStartOrbitGenerator_TwiceIsNoop(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a")
	channels["a"].reset()
	ctx := context.Background()

	assert.True(t, f.svc.StartOrbitGenerator(ctx, "R1"))
	assert.False(t, f.svc.StartOrbitGenerator(ctx, "R1"))

	kind, ok := f.svc.ActiveGenerator("R1")
	require.True(t, ok)
	assert.Equal(t, motion.KindOrbit, kind)

	assert.False(t, f.svc.StartOrbitGenerator(ctx, "nope"))

	window := 100 * time.Millisecond
	time.Sleep(window)
	require.True(t, f.svc.StopGenerator(ctx, "R1"))
	ticks := channels["a"].scheduled()

	// One generator at a 5ms interval; a second one would double the count
	maxTicks := int(window/(5*time.Millisecond)) + 4
	assert.LessOrEqual(t, len(ticks), maxTicks)
	require.NotEmpty(t, ticks)

	// Every frame follows a single orbit: tick k sits at angle k*speed*pi/30
	origin := models.Position{X: 50, Y: 50}
	radius := motion.OrbitDefaults.Radius
	for k, tick := range ticks {
		angle := float64(k) * motion.OrbitDefaults.Speed * math.Pi / 30
		want := models.Position{X: origin.X + radius*math.Cos(angle), Y: origin.Y + radius*math.Sin(angle)}
		assert.InDelta(t, want.X, tick.ScheduledAction.ListeningSource.X, 1e-9, "tick %d", k)
		assert.InDelta(t, want.Y, tick.ScheduledAction.ListeningSource.Y, 1e-9, "tick %d", k)
	}
}

func TestStartSpiralGenerator_ReplacesOrbit(t *testing.T) {
	f := newFixture(t)
	f.join(t, "R1", "a")
	ctx := context.Background()

	require.True(t, f.svc.StartOrbitGenerator(ctx, "R1"))
	require.True(t, f.svc.StartSpiralGenerator(ctx, "R1"))

	kind, ok := f.svc.ActiveGenerator("R1")
	require.True(t, ok)
	assert.Equal(t, motion.KindSpiral, kind)

	stored, err := f.repo.GetRoom(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, "spiral", stored.Generator)
}

func TestGeneratorTicks(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a", "b")
	channels["a"].reset()

	require.True(t, f.svc.StartOrbitGenerator(context.Background(), "R1"))

	require.Eventually(t, func() bool {
		return len(channels["a"].scheduled()) >= 3
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, f.svc.StopGenerator(context.Background(), "R1"))

	ticks := channels["a"].scheduled()
	now := f.clock.Now().UnixMilli()
	for i, tick := range ticks {
		assert.Equal(t, now+horizon.Milliseconds(), tick.ServerTimeToExecute, "tick %d", i)
		action := tick.ScheduledAction
		require.NotNil(t, action)
		assert.Equal(t, models.ActionSpatialConfig, action.Type)
		require.Len(t, action.Gains, 2)
		for id, params := range action.Gains {
			assert.NotNil(t, params.Pan, id)
			assert.NotNil(t, params.Pitch, id)
			assert.GreaterOrEqual(t, params.Gain, motion.OrbitDefaults.MinGain)
			assert.Equal(t, models.DefaultRampTime, params.RampTime)
		}
		assert.InDelta(t, 25, action.ListeningSource.DistanceTo(models.Position{X: 50, Y: 50}), 1e-9)
	}

	// The first orbit frame sits at angle zero
	assert.InDelta(t, 75, ticks[0].ScheduledAction.ListeningSource.X, 1e-9)
	assert.InDelta(t, 50, ticks[0].ScheduledAction.ListeningSource.Y, 1e-9)

	// The generator's last position becomes the room's source
	snapshot, err := f.svc.Snapshot("R1")
	require.NoError(t, err)
	assert.Empty(t, snapshot.Generator)
	assert.InDelta(t, 25, snapshot.ListeningSource.DistanceTo(models.Position{X: 50, Y: 50}), 1e-9)
}

func TestGeneratorUsesTunables(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a")
	channels["a"].reset()

	radius := 10.0
	assert.ErrorIs(t, f.svc.SetTunables("nope", models.Tunables{Radius: &radius}), service.ErrRoomNotFound)
	require.NoError(t, f.svc.SetTunables("R1", models.Tunables{Radius: &radius}))
	require.True(t, f.svc.StartOrbitGenerator(context.Background(), "R1"))

	require.Eventually(t, func() bool {
		return len(channels["a"].scheduled()) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	source := channels["a"].scheduled()[0].ScheduledAction.ListeningSource
	assert.InDelta(t, 10, source.DistanceTo(models.Position{X: 50, Y: 50}), 1e-9)
}

func TestStopGenerator_NoMoreTicks(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a")
	require.True(t, f.svc.StartSpiralGenerator(context.Background(), "R1"))

	require.Eventually(t, func() bool {
		return len(channels["a"].scheduled()) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	require.True(t, f.svc.StopGenerator(context.Background(), "R1"))
	assert.False(t, f.svc.StopGenerator(context.Background(), "R1"))

	// Ticks that already hold the lock may still land; after that the count is frozen
	time.Sleep(20 * time.Millisecond)
	count := len(channels["a"].scheduled())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, count, len(channels["a"].scheduled()))
}

func TestStopSpatialAudio(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a")
	ctx := context.Background()

	assert.False(t, f.svc.StopSpatialAudio(ctx, "R1"), "nothing running")
	assert.Empty(t, channels["a"].scheduled())

	require.True(t, f.svc.StartOrbitGenerator(ctx, "R1"))
	require.True(t, f.svc.StopSpatialAudio(ctx, "R1"))

	var stops []received
	for _, m := range channels["a"].scheduled() {
		if m.ScheduledAction.Type == models.TypeStopSpatialAudio {
			stops = append(stops, m)
		}
	}
	require.Len(t, stops, 1)
	assert.Equal(t, f.clock.Now().UnixMilli(), stops[0].ServerTimeToExecute)

	_, ok := f.svc.ActiveGenerator("R1")
	assert.False(t, ok)
}

func TestScheduleCommand(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a", "b")
	channels["b"].reset()

	raw := json.RawMessage(`{"type":"PLAY","audioId":"song-1","trackTimeSeconds":3}`)
	require.NoError(t, f.svc.ScheduleCommand("R1", raw))

	scheduled := channels["b"].scheduled()
	require.Len(t, scheduled, 1)
	assert.Equal(t, f.clock.Now().UnixMilli()+horizon.Milliseconds(), scheduled[0].ServerTimeToExecute)
	assert.Equal(t, models.TypePlay, scheduled[0].ScheduledAction.Type)
	assert.Equal(t, "song-1", scheduled[0].ScheduledAction.AudioID)
}

func TestAnnounceAudioSource(t *testing.T) {
	f := newFixture(t)
	channels := f.join(t, "R1", "a")
	channels["a"].reset()

	require.NoError(t, f.svc.AnnounceAudioSource("R1", models.AudioSource{ID: "https://cdn/a.mp3", Title: "a.mp3"}))

	msgs := channels["a"].all()
	require.Len(t, msgs, 1)
	event := msgs[0].Event
	require.NotNil(t, event)
	assert.Equal(t, models.EventNewAudioSource, event.Type)
	assert.Equal(t, "https://cdn/a.mp3", event.ID)
	assert.Equal(t, "R1", event.AddedBy)
	assert.Equal(t, 1.0, event.Duration)
	assert.Equal(t, f.clock.Now().UnixMilli(), event.AddedAt)
}

func TestRegisterUpdateCallback(t *testing.T) {
	f := newFixture(t)
	f.cleaner.On("CleanupRoom", "R1").Return(nil)

	var mu sync.Mutex
	var updates []models.RoomSnapshot
	f.svc.RegisterUpdateCallback(func(s models.RoomSnapshot) {
		mu.Lock()
		defer mu.Unlock()
		updates = append(updates, s)
	})

	f.join(t, "R1", "a")
	f.svc.RemoveParticipant(context.Background(), "R1", "a")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, updates, 2)
	assert.Len(t, updates[0].Participants, 1)
	assert.Equal(t, "R1", updates[1].ID)
	assert.Empty(t, updates[1].Participants)
}

func TestShutdownStopsGenerators(t *testing.T) {
	f := newFixture(t)
	f.join(t, "R1", "a")
	f.join(t, "R2", "b")
	require.True(t, f.svc.StartOrbitGenerator(context.Background(), "R1"))
	require.True(t, f.svc.StartSpiralGenerator(context.Background(), "R2"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(ctx))

	_, ok := f.svc.ActiveGenerator("R1")
	assert.False(t, ok)
	_, ok = f.svc.ActiveGenerator("R2")
	assert.False(t, ok)
}
