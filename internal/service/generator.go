package service

import (
	"context"
	"math"
	"time"

	"github.com/navikt/zspatial/internal/models"
	"github.com/navikt/zspatial/internal/motion"
	"github.com/navikt/zspatial/internal/spatial"
	"github.com/navikt/zspatial/internal/utils"
)

// generator is the cancellable handle of a room's running motion task
type generator struct {
	kind   motion.Kind
	cancel context.CancelFunc
}

// StartOrbitGenerator starts sweeping the room's source around a circle.
// It reports whether a new generator was started.
func (s *RoomService) StartOrbitGenerator(ctx context.Context, roomID string) bool {
	return s.startGenerator(ctx, roomID, motion.KindOrbit)
}

// StartSpiralGenerator starts sweeping the room's source along a figure-eight.
// It reports whether a new generator was started.
func (s *RoomService) StartSpiralGenerator(ctx context.Context, roomID string) bool {
	return s.startGenerator(ctx, roomID, motion.KindSpiral)
}

// StopGenerator cancels the room's generator. It reports whether one was running.
func (s *RoomService) StopGenerator(ctx context.Context, roomID string) bool {
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok || !s.stopGeneratorLocked(rm) {
		s.mu.Unlock()
		return false
	}
	snapshot := s.snapshotLocked(rm)
	s.mu.Unlock()

	s.publish(ctx, snapshot)
	return true
}

// ActiveGenerator returns the kind of generator running in a room, if any
func (s *RoomService) ActiveGenerator(roomID string) (motion.Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok || rm.generator == nil {
		return "", false
	}
	return rm.generator.kind, true
}

// startGenerator enforces at most one generator per room. A request for the
// kind already running is a no-op; another kind replaces the running one.
func (s *RoomService) startGenerator(ctx context.Context, roomID string, kind motion.Kind) bool {
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if rm.generator != nil && rm.generator.kind == kind {
		s.mu.Unlock()
		return false
	}
	s.stopGeneratorLocked(rm)

	var path motion.Path
	switch kind {
	case motion.KindSpiral:
		settings := motion.SpiralDefaults.WithOverrides(rm.tunables)
		path = motion.NewSpiral(s.origin, settings, s.random()*2*math.Pi)
	default:
		settings := motion.OrbitDefaults.WithOverrides(rm.tunables)
		path = motion.NewOrbit(s.origin, settings)
	}

	// Generators outlive the request that started them
	genCtx, cancel := context.WithCancel(context.Background())
	g := &generator{kind: kind, cancel: cancel}
	rm.generator = g

	s.generators.Add(1)
	go s.runGenerator(genCtx, roomID, g, path)

	snapshot := s.snapshotLocked(rm)
	s.mu.Unlock()

	log.Infof("Started %s generator for room %s", kind, utils.SanitizeLogString(roomID))
	s.publish(ctx, snapshot)
	return true
}

// stopGeneratorLocked cancels and clears the room's generator. Callers hold s.mu.
func (s *RoomService) stopGeneratorLocked(rm *room) bool {
	if rm.generator == nil {
		return false
	}
	rm.generator.cancel()
	log.Infof("Stopped %s generator for room %s", rm.generator.kind, utils.SanitizeLogString(rm.id))
	rm.generator = nil
	return true
}

func (s *RoomService) runGenerator(ctx context.Context, roomID string, g *generator, path motion.Path) {
	defer s.generators.Done()

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	started := s.clock.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, roomID, g, path, started)
		}
	}
}

// tick advances the path and broadcasts the full spatial configuration.
// Room state is re-read every tick since membership changes while running.
func (s *RoomService) tick(ctx context.Context, roomID string, g *generator, path motion.Path, started time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	rm, ok := s.rooms[roomID]
	if !ok || rm.generator != g || rm.roster.len() == 0 {
		return
	}

	frame := path.Next(s.clock.Now().Sub(started))
	rm.source = frame.Source

	cfg := path.Config()
	gains := make(map[string]models.SpatialParams, rm.roster.len())
	for _, p := range rm.roster.order {
		gains[p.ID] = spatial.Compute(p.Position, frame.Source, cfg, frame.Phase).ToMessage(models.DefaultRampTime)
	}

	action := models.SpatialConfig{
		Type:            models.ActionSpatialConfig,
		ListeningSource: frame.Source,
		Gains:           gains,
	}
	if err := s.dispatcher.Broadcast(roomID, models.NewScheduledEnvelope(action, s.scheduler.Deferred())); err != nil {
		log.Errorf("Generator broadcast failed for room %s: %v", utils.SanitizeLogString(roomID), err)
	}
}
