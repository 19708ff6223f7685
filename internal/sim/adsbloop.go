package sim

import (
	"context"
	"sync"
	"time"

	"github.com/yegors/uav-cas/internal/physics"
	"github.com/yegors/uav-cas/pkg/logger"
)

// ConflictEvent describes one detected conflict between a pair of
// aircraft, reported to observers and persisted by the driver.
type ConflictEvent struct {
	Cycle                 uint64       `json:"cycle"`
	FirstID               int          `json:"first_id"`
	SecondID              int          `json:"second_id"`
	TimeToClosestApproach float64      `json:"time_to_closest_approach"`
	MissDistance          float64      `json:"miss_distance"`
	MissVector            physics.Vec3 `json:"miss_vector"`
	UnresolvedRegion      float64      `json:"unresolved_region"`
	ManeuverIssued        bool         `json:"maneuver_issued"`
}

// ConflictObserver is invoked for every declared conflict
type ConflictObserver func(ConflictEvent)

// ADSBConfig carries the observer parameters for one run
type ADSBConfig struct {
	Interval          time.Duration // 1/f_adsb
	ConflictHorizon   time.Duration // conflicts beyond this are ignored
	PausePollInterval time.Duration
}

// SnapshotSource provides consistent vehicle snapshots published at
// physics tick boundaries.
type SnapshotSource interface {
	Snapshots() []VehicleSnapshot
}

// ADSBLoop is the low-rate broadcast-surveillance observer. Each cycle
// it snapshots all vehicles, projects pairwise closest approaches, and
// issues geometric vector-sharing evade maneuvers to both FCCs of a
// conflicting pair. It never writes vehicle state.
type ADSBLoop struct {
	aircraft []*Aircraft
	state    *State
	source   SnapshotSource
	clock    Clock
	cfg      ADSBConfig
	logger   *logger.Logger

	stopCh     chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	onConflict ConflictObserver
}

// NewADSBLoop creates the surveillance observer over the given aircraft
func NewADSBLoop(aircraft []*Aircraft, state *State, source SnapshotSource, clock Clock, cfg ADSBConfig, log *logger.Logger) *ADSBLoop {
	if cfg.PausePollInterval <= 0 {
		cfg.PausePollInterval = 50 * time.Millisecond
	}
	return &ADSBLoop{
		aircraft: aircraft,
		state:    state,
		source:   source,
		clock:    clock,
		cfg:      cfg,
		logger:   log.Named("adsb"),
		stopCh:   make(chan struct{}),
	}
}

// SetConflictObserver registers a callback invoked on every declared
// conflict
func (l *ADSBLoop) SetConflictObserver(fn ConflictObserver) {
	l.onConflict = fn
}

// Start launches the realtime observer goroutine
func (l *ADSBLoop) Start(ctx context.Context) {
	l.logger.Info("Starting ADS-B loop",
		logger.Duration("interval", l.cfg.Interval),
		logger.Duration("conflict_horizon", l.cfg.ConflictHorizon),
	)
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop signals the loop to exit and waits for the current cycle to
// finish
func (l *ADSBLoop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
	l.wg.Wait()
}

func (l *ADSBLoop) run(ctx context.Context) {
	defer l.wg.Done()

	next := l.clock.Now()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if l.state.IsPaused() {
			l.clock.Sleep(l.cfg.PausePollInterval)
			next = l.clock.Now()
			continue
		}

		l.Cycle()

		next = next.Add(l.cfg.Interval)
		if d := next.Sub(l.clock.Now()); d > 0 {
			l.clock.Sleep(d)
		} else {
			next = l.clock.Now()
		}
	}
}

// Cycle executes one surveillance pass: pairwise conflict detection,
// maneuver issue/retract, trail sampling and the cycle report. The
// headless driver calls this directly at the configured cadence ratio.
func (l *ADSBLoop) Cycle() {
	if l.state.IsPaused() {
		return
	}

	snaps := l.source.Snapshots()
	for i := 0; i < len(snaps); i++ {
		for j := i + 1; j < len(snaps); j++ {
			l.assessPair(snaps[i], snaps[j], l.aircraft[i].FCC(), l.aircraft[j].FCC())
		}
	}

	for _, a := range l.aircraft {
		a.FCC().AppendVisited()
	}

	cycle := l.state.CountADSBCycle()
	if len(snaps) > 0 {
		first := snaps[0]
		l.logger.Debug("ADS-B report",
			logger.Uint64("cycle", cycle),
			logger.Uint64("physics_cycles", l.state.PhysicsCycles()),
			logger.Float64("speed", first.Velocity.Length()),
			logger.Float64("x", first.Position.X),
			logger.Float64("y", first.Position.Y),
			logger.Float64("z", first.Position.Z),
			logger.Float64("roll", first.Roll),
			logger.Float64("min_distance", l.state.MinimalRelativeDistance()),
		)
	}
}

// assessPair projects the closest approach for one unordered pair and
// issues or retracts evade maneuvers.
func (l *ADSBLoop) assessPair(si, sj VehicleSnapshot, fi, fj *FCC) {
	r := sj.Position.Sub(si.Position)
	v := sj.Velocity.Sub(si.Velocity)

	l.state.UpdateMinimalRelativeDistance(r.Length())

	ap, ok := physics.ClosestApproach(r, v)
	if !ok {
		// Zero relative velocity: no projection, pair skipped.
		return
	}

	minSep := l.state.MinimumSeparation()
	conflict := ap.MissDistance < minSep && ap.Time <= l.cfg.ConflictHorizon.Seconds()

	if !conflict {
		if fi.EvadeManeuver() || fj.EvadeManeuver() {
			fi.ResetEvadeManeuver()
			fj.ResetEvadeManeuver()
			fi.SetSafeZoneOccupied(false)
			fj.SetSafeZoneOccupied(false)
			l.logger.Info("Conflict cleared, evade maneuvers reset",
				logger.Int("first_id", si.ID),
				logger.Int("second_id", sj.ID),
			)
		}
		return
	}

	unresolved := minSep - ap.MissDistance
	event := ConflictEvent{
		Cycle:                 l.state.ADSBCycles() + 1,
		FirstID:               si.ID,
		SecondID:              sj.ID,
		TimeToClosestApproach: ap.Time,
		MissDistance:          ap.MissDistance,
		MissVector:            ap.MissVector,
		UnresolvedRegion:      unresolved,
	}

	if l.state.AvoidCollisions() && (si.Velocity.Length() > 0 || sj.Velocity.Length() > 0) {
		miss := ap.MissVector
		if miss.Length() < 1e-9 {
			// Dead-center projection: resolve perpendicular to the
			// relative velocity in the horizontal plane. The lower id
			// takes the positive perpendicular (-v.Y, v.X), so the
			// pair-frame miss vector is its negation.
			perp := physics.Vec3{X: -v.Y, Y: v.X}.Normalized()
			if perp.Length() < 1e-9 {
				perp = physics.Vec3{X: 1}
			}
			miss = perp.Scale(-1)
		}
		// The maneuvers diverge: i backs away from the projected
		// encounter along -miss, j along +miss.
		fi.ApplyEvadeManeuver(sj.Velocity, miss.Scale(-1), unresolved, ap.Time)
		fj.ApplyEvadeManeuver(si.Velocity, miss, unresolved, ap.Time)
		fi.SetSafeZoneOccupied(true)
		fj.SetSafeZoneOccupied(true)
		event.ManeuverIssued = true

		l.logger.Info("Conflict detected, evade maneuvers issued",
			logger.Int("first_id", si.ID),
			logger.Int("second_id", sj.ID),
			logger.Float64("miss_distance", ap.MissDistance),
			logger.Float64("time_to_closest_approach", ap.Time),
			logger.Float64("unresolved_region", unresolved),
		)
	} else {
		l.logger.Debug("Conflict detected, avoidance disabled",
			logger.Int("first_id", si.ID),
			logger.Int("second_id", sj.ID),
			logger.Float64("miss_distance", ap.MissDistance),
		)
	}

	if l.onConflict != nil {
		l.onConflict(event)
	}
}
