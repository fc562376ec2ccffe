package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/navikt/zspatial/internal/broadcast"
	"github.com/navikt/zspatial/internal/config"
	"github.com/navikt/zspatial/internal/layout"
	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/repository"
	"github.com/navikt/zspatial/internal/spatial"
	"github.com/navikt/zspatial/internal/storage"
	"github.com/navikt/zspatial/internal/timesync"
	"github.com/navikt/zspatial/internal/utils"
)

var log = logging.Logger("service")

var (
	// ErrMissingIdentifier is returned when a join lacks a room, name or participant id
	ErrMissingIdentifier = errors.New("missing room, participant or name")
	// ErrRoomNotFound is returned by operations that require a live room
	ErrRoomNotFound = models.ErrRoomNotFound
)

// Dispatcher delivers envelopes to room members
type Dispatcher interface {
	Join(roomID, participantID string, ch broadcast.Channel)
	Leave(roomID, participantID string)
	Unicast(roomID, participantID string, envelope any) error
	Broadcast(roomID string, envelope any) error
	CloseRoom(roomID string)
}

// RoomUpdateCallback is called with the latest snapshot after a room changes.
// A deleted room is reported with no participants.
type RoomUpdateCallback func(snapshot models.RoomSnapshot)

// Options tune the room engine
type Options struct {
	Grid         config.GridConfig
	Horizon      time.Duration
	TickInterval time.Duration
	Clock        timesync.Clock
	// Rand draws the figure-eight phase offset, in [0,1)
	Rand func() float64
}

type room struct {
	id        string
	roster    *roster
	source    models.Position
	tunables  models.Tunables
	generator *generator
}

// RoomService is the room session registry. It exclusively owns room and
// participant state; every mutation happens under one mutex and broadcasts
// are emitted before the lock is released, so all members observe changes
// in the same order.
type RoomService struct {
	mu    sync.Mutex
	rooms map[string]*room

	dispatcher Dispatcher
	cleaner    storage.Cleaner
	repo       repository.Repository

	clock        timesync.Clock
	scheduler    *timesync.Scheduler
	circle       layout.Circle
	origin       models.Position
	tickInterval time.Duration
	random       func() float64

	generators      sync.WaitGroup
	updateCallbacks []RoomUpdateCallback
}

// NewRoomService creates the registry. cleaner and repo may be nil.
func NewRoomService(dispatcher Dispatcher, cleaner storage.Cleaner, repo repository.Repository, opts Options) *RoomService {
	if cleaner == nil {
		cleaner = storage.NopCleaner{}
	}
	if opts.Clock == nil {
		opts.Clock = timesync.SystemClock{}
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 50 * time.Millisecond
	}
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	if opts.Grid.Size == 0 {
		opts.Grid = config.GridConfig{Size: 100, OriginX: 50, OriginY: 50, ClientRadius: 25}
	}

	origin := models.Position{X: opts.Grid.OriginX, Y: opts.Grid.OriginY}
	return &RoomService{
		rooms:        make(map[string]*room),
		dispatcher:   dispatcher,
		cleaner:      cleaner,
		repo:         repo,
		clock:        opts.Clock,
		scheduler:    timesync.NewScheduler(opts.Clock, opts.Horizon),
		circle:       layout.NewCircle(origin, opts.Grid.ClientRadius),
		origin:       origin,
		tickInterval: opts.TickInterval,
		random:       opts.Rand,
	}
}

// RegisterUpdateCallback registers a callback function to be called when room data changes
func (s *RoomService) RegisterUpdateCallback(callback RoomUpdateCallback) {
	s.updateCallbacks = append(s.updateCallbacks, callback)
}

// AddParticipant joins a participant to a room, creating the room if needed.
// The participant is told its id, then the room receives the new roster.
func (s *RoomService) AddParticipant(ctx context.Context, roomID, name, participantID string, ch broadcast.Channel) error {
	if roomID == "" || name == "" || participantID == "" || ch == nil {
		return ErrMissingIdentifier
	}

	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		rm = &room{id: roomID, roster: newRoster(), source: s.origin}
		s.rooms[roomID] = rm
		log.Infof("Created room %s", utils.SanitizeLogString(roomID))
	}

	rm.roster.add(models.ParticipantView{ID: participantID, Name: name})
	s.relayout(rm)
	s.dispatcher.Join(roomID, participantID, ch)

	if err := s.dispatcher.Unicast(roomID, participantID, models.NewClientIDEnvelope(participantID)); err != nil {
		log.Warnf("Failed to send client id to %s: %v", participantID, err)
	}
	s.broadcastRoster(rm)
	snapshot := s.snapshotLocked(rm)
	s.mu.Unlock()

	log.Infof("Participant %s (%s) joined room %s", participantID,
		utils.SanitizeLogString(name), utils.SanitizeLogString(roomID))
	s.publish(ctx, snapshot)
	return nil
}

// RemoveParticipant removes a participant. When the room empties its
// generator is stopped and the room's assets are cleaned up; the room is
// deleted only if nobody joined while cleanup was running.
func (s *RoomService) RemoveParticipant(ctx context.Context, roomID, participantID string) {
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return
	}

	removed := rm.roster.remove(participantID)
	s.dispatcher.Leave(roomID, participantID)
	if removed {
		log.Infof("Participant %s left room %s", participantID, utils.SanitizeLogString(roomID))
	}

	if rm.roster.len() > 0 {
		s.relayout(rm)
		s.broadcastRoster(rm)
		snapshot := s.snapshotLocked(rm)
		s.mu.Unlock()
		s.publish(ctx, snapshot)
		return
	}

	s.stopGeneratorLocked(rm)
	s.mu.Unlock()

	if err := s.cleaner.CleanupRoom(ctx, roomID); err != nil {
		log.Errorf("Cleanup failed for room %s: %v", utils.SanitizeLogString(roomID), err)
	}

	s.mu.Lock()
	if s.rooms[roomID] != rm {
		// Another removal already finished the room off
		s.mu.Unlock()
		return
	}
	if rm.roster.len() > 0 {
		log.Infof("Room %s has new participants, skipping deletion", utils.SanitizeLogString(roomID))
		s.relayout(rm)
		s.broadcastRoster(rm)
		snapshot := s.snapshotLocked(rm)
		s.mu.Unlock()
		s.publish(ctx, snapshot)
		return
	}

	s.stopGeneratorLocked(rm)
	delete(s.rooms, roomID)
	s.dispatcher.CloseRoom(roomID)
	s.mu.Unlock()

	log.Infof("Room %s deleted", utils.SanitizeLogString(roomID))
	s.forget(ctx, roomID)
}

// ReorderParticipants moves a participant to the front, recomputes the
// layout and broadcasts the new spatial snapshot and roster immediately.
// An unknown participant leaves the order untouched; only the roster is re-sent.
func (s *RoomService) ReorderParticipants(ctx context.Context, roomID, participantID string) ([]models.ParticipantView, error) {
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, ErrRoomNotFound
	}

	if !rm.roster.moveToFront(participantID) {
		// The roster is still announced so every member converges on one order
		s.broadcastRoster(rm)
		views := rm.roster.views()
		s.mu.Unlock()
		return views, nil
	}

	s.relayout(rm)
	s.broadcastGains(rm)
	s.broadcastRoster(rm)
	views := rm.roster.views()
	snapshot := s.snapshotLocked(rm)
	s.mu.Unlock()

	s.publish(ctx, snapshot)
	return views, nil
}

// UpdateRTT stores the latest round-trip time reported by a participant
func (s *RoomService) UpdateRTT(roomID, participantID string, rtt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if p, ok := rm.roster.get(participantID); ok {
		p.RTT = rtt
	}
}

// SetListeningSource places the room's virtual source and broadcasts gains
func (s *RoomService) SetListeningSource(ctx context.Context, roomID string, pos models.Position) {
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return
	}

	rm.source = pos
	s.broadcastGains(rm)
	snapshot := s.snapshotLocked(rm)
	s.mu.Unlock()

	s.publish(ctx, snapshot)
}

// MoveParticipant places one participant and broadcasts gains. The move
// holds until the next layout recompute.
func (s *RoomService) MoveParticipant(ctx context.Context, roomID, participantID string, pos models.Position) {
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return
	}
	p, ok := rm.roster.get(participantID)
	if !ok {
		s.mu.Unlock()
		return
	}

	p.Position = pos
	s.broadcastGains(rm)
	snapshot := s.snapshotLocked(rm)
	s.mu.Unlock()

	s.publish(ctx, snapshot)
}

// SetTunables merges per-room generator overrides. They apply from the next generator start.
func (s *RoomService) SetTunables(roomID string, t models.Tunables) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}

	merged := rm.tunables
	if t.Speed != nil {
		merged.Speed = t.Speed
	}
	if t.Radius != nil {
		merged.Radius = t.Radius
	}
	if t.Falloff != nil {
		merged.Falloff = t.Falloff
	}
	if t.MinGain != nil {
		merged.MinGain = t.MinGain
	}
	if t.MaxGain != nil {
		merged.MaxGain = t.MaxGain
	}
	if t.MaxHearingDistance != nil {
		merged.MaxHearingDistance = t.MaxHearingDistance
	}
	rm.tunables = merged
	return nil
}

// ScheduleCommand re-broadcasts a participant's transport command verbatim,
// due one schedule horizon from now
func (s *RoomService) ScheduleCommand(roomID string, raw json.RawMessage) error {
	return s.dispatcher.Broadcast(roomID, models.NewScheduledEnvelope(raw, s.scheduler.Deferred()))
}

// StopSpatialAudio stops the room's generator and, if one was running,
// tells the room to stop spatial playback now
func (s *RoomService) StopSpatialAudio(ctx context.Context, roomID string) bool {
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok || !s.stopGeneratorLocked(rm) {
		s.mu.Unlock()
		return false
	}

	env := models.NewScheduledEnvelope(models.Command{Type: models.TypeStopSpatialAudio}, s.scheduler.Now())
	if err := s.dispatcher.Broadcast(roomID, env); err != nil {
		log.Errorf("Failed to broadcast stop to room %s: %v", utils.SanitizeLogString(roomID), err)
	}
	snapshot := s.snapshotLocked(rm)
	s.mu.Unlock()

	s.publish(ctx, snapshot)
	return true
}

// AnnounceAudioSource tells a room that a new audio asset is available
func (s *RoomService) AnnounceAudioSource(roomID string, src models.AudioSource) error {
	if src.AddedBy == "" {
		src.AddedBy = roomID
	}
	return s.dispatcher.Broadcast(roomID, models.NewAudioSourceEnvelope(src, s.scheduler.Now()))
}

// Participants returns the room's roster in order, or nil for an unknown room
func (s *RoomService) Participants(roomID string) []models.ParticipantView {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.roster.views()
}

// Snapshot returns the live state of a room
func (s *RoomService) Snapshot(roomID string) (*models.RoomSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	snapshot := s.snapshotLocked(rm)
	return &snapshot, nil
}

// RoomCount returns the number of live rooms
func (s *RoomService) RoomCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// Shutdown stops every generator and waits for their goroutines to exit
func (s *RoomService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, rm := range s.rooms {
		s.stopGeneratorLocked(rm)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.generators.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// relayout recomputes the circular layout. Callers hold s.mu.
func (s *RoomService) relayout(rm *room) {
	rm.roster.place(s.circle.Arrange(rm.roster.len()))
}

// broadcastRoster sends the full roster to the room. Callers hold s.mu.
func (s *RoomService) broadcastRoster(rm *room) {
	if err := s.dispatcher.Broadcast(rm.id, models.NewClientChangeEnvelope(rm.roster.views())); err != nil {
		log.Errorf("Failed to broadcast roster for room %s: %v", utils.SanitizeLogString(rm.id), err)
	}
}

// broadcastGains sends an immediate gain-only snapshot using the default
// falloff model. Callers hold s.mu.
func (s *RoomService) broadcastGains(rm *room) {
	gains := make(map[string]models.SpatialParams, rm.roster.len())
	for _, p := range rm.roster.order {
		gains[p.ID] = models.SpatialParams{
			Gain:     spatial.DefaultGainModel.Gain(p.Position, rm.source),
			RampTime: models.DefaultRampTime,
		}
	}

	action := models.SpatialConfig{
		Type:            models.ActionSpatialConfig,
		ListeningSource: rm.source,
		Gains:           gains,
	}
	if err := s.dispatcher.Broadcast(rm.id, models.NewScheduledEnvelope(action, s.scheduler.Now())); err != nil {
		log.Errorf("Failed to broadcast spatial snapshot for room %s: %v", utils.SanitizeLogString(rm.id), err)
	}
}

func (s *RoomService) snapshotLocked(rm *room) models.RoomSnapshot {
	snapshot := models.RoomSnapshot{
		ID:              rm.id,
		Participants:    rm.roster.views(),
		ListeningSource: rm.source,
		UpdatedAt:       s.clock.Now().UTC(),
	}
	if rm.generator != nil {
		snapshot.Generator = string(rm.generator.kind)
	}
	return snapshot
}

// publish stores the snapshot in the read model and notifies listeners.
// Failures are logged; the live room is the source of truth.
func (s *RoomService) publish(ctx context.Context, snapshot models.RoomSnapshot) {
	if s.repo != nil {
		if err := s.repo.SaveRoom(ctx, &snapshot); err != nil {
			log.Warnf("Failed to store snapshot for room %s: %v", utils.SanitizeLogString(snapshot.ID), err)
		}
	}
	for _, callback := range s.updateCallbacks {
		callback(snapshot)
	}
}

func (s *RoomService) forget(ctx context.Context, roomID string) {
	if s.repo != nil {
		if err := s.repo.DeleteRoom(ctx, roomID); err != nil && !errors.Is(err, models.ErrRoomNotFound) {
			log.Warnf("Failed to delete snapshot for room %s: %v", utils.SanitizeLogString(roomID), err)
		}
	}
	for _, callback := range s.updateCallbacks {
		callback(models.RoomSnapshot{ID: roomID, Participants: []models.ParticipantView{}, UpdatedAt: s.clock.Now().UTC()})
	}
}
