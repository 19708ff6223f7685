package scenario

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yegors/uav-cas/internal/config"
	"github.com/yegors/uav-cas/internal/physics"
	"github.com/yegors/uav-cas/internal/sim"
	"github.com/yegors/uav-cas/pkg/logger"
)

// RunParams selects the mode and rates of one run. Zero rates fall
// back to the configured defaults; the effective rates are recorded in
// the Result.
type RunParams struct {
	AvoidCollisions bool
	Duration        time.Duration
	PhysicsHz       float64
	ADSBHz          float64
}

// Sink receives finished results, e.g. for persistence. Optional.
type Sink interface {
	SaveResult(res *Result) error
}

// BatchStats aggregates a batch run
type BatchStats struct {
	Passed int
	Failed int
}

// Runner is the non-visual scenario driver. It seeds aircraft from a
// Record, drives the physics and ADS-B loops for a bounded simulated
// time, and harvests a Result.
type Runner struct {
	cfg    config.SimulationConfig
	clock  sim.Clock
	logger *logger.Logger

	onTick     sim.TickObserver
	onConflict sim.ConflictObserver
	sink       Sink

	mu         sync.Mutex
	curState   *sim.State
	curPhysics *sim.PhysicsLoop
}

// NewRunner creates a scenario runner with the given engine defaults
func NewRunner(cfg config.SimulationConfig, clock sim.Clock, log *logger.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		clock:  clock,
		logger: log.Named("scenario"),
	}
}

// SetTickObserver forwards physics tick snapshots to fn during runs
func (r *Runner) SetTickObserver(fn sim.TickObserver) { r.onTick = fn }

// SetConflictObserver forwards declared conflicts to fn during runs
func (r *Runner) SetConflictObserver(fn sim.ConflictObserver) { r.onConflict = fn }

// SetSink registers a persistence sink for finished results
func (r *Runner) SetSink(sink Sink) { r.sink = sink }

// Current returns the state and physics loop of the most recent run,
// for status surfaces. Either may be nil before the first run.
func (r *Runner) Current() (*sim.State, *sim.PhysicsLoop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curState, r.curPhysics
}

func (r *Runner) setCurrent(state *sim.State, phys *sim.PhysicsLoop) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.curState = state
	r.curPhysics = phys
}

// BuildAircraft seeds the two aircraft of a record
func (r *Runner) BuildAircraft(rec Record) []*sim.Aircraft {
	aircraft := make([]*sim.Aircraft, 2)
	for i := 0; i < 2; i++ {
		aircraft[i] = sim.NewAircraft(
			i,
			rec.InitialPositions[i],
			rec.InitialVelocities[i],
			rec.InitialTargets[i],
			rec.InitialRollAngles[i],
			r.cfg.VehicleSizeM,
			r.cfg.WorldBoundM,
			r.logger,
		)
	}
	return aircraft
}

func (r *Runner) rates(params RunParams) (physicsHz, adsbHz float64) {
	physicsHz = params.PhysicsHz
	if physicsHz <= 0 {
		physicsHz = r.cfg.PhysicsHz
	}
	adsbHz = params.ADSBHz
	if adsbHz <= 0 {
		adsbHz = r.cfg.ADSBHz
	}
	return physicsHz, adsbHz
}

func (r *Runner) buildLoops(aircraft []*sim.Aircraft, state *sim.State, clock sim.Clock, physicsHz, adsbHz float64) (*sim.PhysicsLoop, *sim.ADSBLoop) {
	phys := sim.NewPhysicsLoop(aircraft, state, clock, sim.PhysicsConfig{
		Interval:          time.Duration(float64(time.Second) / physicsHz),
		RollDynamicDelay:  time.Duration(r.cfg.RollDynamicDelayMs) * time.Millisecond,
		PitchDynamicDelay: time.Duration(r.cfg.PitchDynamicDelayMs) * time.Millisecond,
		MaxAcceleration:   r.cfg.MaxAccelerationMps2,
	}, r.logger)
	phys.SetTickObserver(r.onTick)

	adsb := sim.NewADSBLoop(aircraft, state, phys, clock, sim.ADSBConfig{
		Interval:        time.Duration(float64(time.Second) / adsbHz),
		ConflictHorizon: time.Duration(r.cfg.ConflictHorizonSecs * float64(time.Second)),
	}, r.logger)
	adsb.SetConflictObserver(r.onConflict)

	return phys, adsb
}

// RunHeadless executes one scenario cooperatively at the configured
// cadence ratio, as fast as the host allows. It terminates when the
// simulated time reaches params.Duration, a collision is registered,
// both destination queues drain, or ctx is cancelled (graceful stop,
// not an error).
func (r *Runner) RunHeadless(ctx context.Context, rec Record, params RunParams) (*Result, error) {
	physicsHz, adsbHz := r.rates(params)
	aircraft := r.BuildAircraft(rec)
	state := sim.NewState(false, params.AvoidCollisions, r.cfg.MinimumSeparationM)
	phys, adsb := r.buildLoops(aircraft, state, r.clock, physicsHz, adsbHz)
	r.setCurrent(state, phys)

	dt := 1.0 / physicsHz
	ratio := int(physicsHz/adsbHz + 0.5)
	if ratio < 1 {
		ratio = 1
	}
	steps := int(params.Duration.Seconds() * physicsHz)

	started := r.clock.Now()
	r.logger.Info("Starting headless run",
		logger.Int("test_id", rec.TestID),
		logger.Bool("avoid_collisions", params.AvoidCollisions),
		logger.Float64("physics_hz", physicsHz),
		logger.Float64("adsb_hz", adsbHz),
		logger.Duration("duration", params.Duration),
	)

	adsbCounter := ratio // first surveillance pass right after the first tick
	for step := 0; step < steps; step++ {
		select {
		case <-ctx.Done():
			r.logger.Info("Headless run stopped", logger.Int("test_id", rec.TestID))
			return r.harvest(rec, params, aircraft, state, physicsHz, adsbHz, started), nil
		default:
		}

		phys.Cycle(dt)
		if adsbCounter >= ratio {
			adsb.Cycle()
			adsbCounter = 0
		}
		adsbCounter++

		if state.Collision() {
			r.logger.Info("Headless run stopping on collision", logger.Int("test_id", rec.TestID))
			break
		}
		if aircraft[0].FCC().IgnoreDestinations() && aircraft[1].FCC().IgnoreDestinations() {
			r.logger.Info("Headless run stopping, no further destinations", logger.Int("test_id", rec.TestID))
			break
		}
	}

	res := r.harvest(rec, params, aircraft, state, physicsHz, adsbHz, started)
	if r.sink != nil {
		if err := r.sink.SaveResult(res); err != nil {
			r.logger.Error("Failed to persist result", logger.Error(err), logger.Int("test_id", rec.TestID))
		}
	}
	return res, nil
}

// RunRealtime executes one scenario with the loops as independent
// workers on the wall clock. It blocks until the duration elapses, a
// collision is registered, or ctx is cancelled.
func (r *Runner) RunRealtime(ctx context.Context, rec Record, params RunParams) (*Result, error) {
	physicsHz, adsbHz := r.rates(params)
	aircraft := r.BuildAircraft(rec)
	state := sim.NewState(true, params.AvoidCollisions, r.cfg.MinimumSeparationM)
	phys, adsb := r.buildLoops(aircraft, state, r.clock, physicsHz, adsbHz)
	r.setCurrent(state, phys)

	started := r.clock.Now()
	phys.Start(ctx)
	adsb.Start(ctx)

	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	deadline := params.Duration
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-poll.C:
			if state.Collision() {
				break loop
			}
			if deadline > 0 && state.SimulatedTime() >= deadline {
				break loop
			}
		}
	}

	adsb.Stop()
	phys.Stop()
	if state.IsPaused() {
		state.AppendPausedTime(r.clock.Now())
	}
	state.SetRunning(false)

	res := r.harvest(rec, params, aircraft, state, physicsHz, adsbHz, started)

	simulated := res.SimulatedTime.Seconds()
	wall := (res.WallTime - state.TimePaused()).Seconds()
	if wall > 0 {
		r.logger.Info("Realtime run finished",
			logger.Float64("time_simulated_secs", simulated),
			logger.Float64("time_elapsed_secs", wall),
			logger.Float64("time_efficiency_pct", simulated/wall*100),
			logger.Uint64("skipped_ticks", state.SkippedTicks()),
		)
	}
	if r.sink != nil {
		if err := r.sink.SaveResult(res); err != nil {
			r.logger.Error("Failed to persist result", logger.Error(err), logger.Int("test_id", rec.TestID))
		}
	}
	return res, nil
}

func (r *Runner) harvest(rec Record, params RunParams, aircraft []*sim.Aircraft, state *sim.State, physicsHz, adsbHz float64, started time.Time) *Result {
	res := &Result{
		Record:        rec,
		Avoidance:     params.AvoidCollisions,
		PhysicsHz:     physicsHz,
		ADSBHz:        adsbHz,
		SimulatedTime: state.SimulatedTime(),
		WallTime:      r.clock.Now().Sub(started),
	}
	for i, a := range aircraft {
		res.Outcome.FinalPositions[i] = a.Vehicle().Position()
		res.Outcome.FinalVelocities[i] = a.Vehicle().Velocity()
	}
	res.Outcome.Collision = state.Collision()
	res.Outcome.HeadOnCollision = state.HeadOnCollision()
	res.Outcome.MinimalRelativeDistance = state.MinimalRelativeDistance()
	if math.IsInf(res.Outcome.MinimalRelativeDistance, 1) {
		res.Outcome.MinimalRelativeDistance = rec.InitialPositions[0].DistanceTo(rec.InitialPositions[1])
	}
	return res
}

// RunPair runs one record twice, avoidance off then on, and returns
// both outcomes as a scenario-file entry.
func (r *Runner) RunPair(ctx context.Context, rec Record, duration time.Duration) (Entry, error) {
	noAvoid, err := r.RunHeadless(ctx, rec, RunParams{AvoidCollisions: false, Duration: duration})
	if err != nil {
		return Entry{}, fmt.Errorf("avoidance-off run: %w", err)
	}
	avoid, err := r.RunHeadless(ctx, rec, RunParams{AvoidCollisions: true, Duration: duration})
	if err != nil {
		return Entry{}, fmt.Errorf("avoidance-on run: %w", err)
	}
	return Entry{Record: rec, NoAvoid: noAvoid.Outcome, Avoid: avoid.Outcome}, nil
}

// RunBatch runs every record through RunPair, isolating failures to
// the affected scenario, and streams entries to the writer. Returns
// the aggregate pass/fail counts.
func (r *Runner) RunBatch(ctx context.Context, records []Record, duration time.Duration, w *Writer) (BatchStats, error) {
	var stats BatchStats
	for _, rec := range records {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		entry, err := r.RunPair(ctx, rec, duration)
		if err != nil {
			r.logger.Error("Scenario failed", logger.Int("test_id", rec.TestID), logger.Error(err))
			stats.Failed++
			continue
		}
		if w != nil {
			if err := w.Write(entry); err != nil {
				r.logger.Error("Failed to write result row", logger.Int("test_id", rec.TestID), logger.Error(err))
				stats.Failed++
				continue
			}
		}
		stats.Passed++
	}
	r.logger.Info("Batch finished",
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
	)
	return stats, nil
}

// ExportVisited writes each aircraft's sampled position trail to
// visited-aircraft-<id>-<timestamp>.csv under dir.
func (r *Runner) ExportVisited(dir string, aircraft []*sim.Aircraft, now time.Time) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create visited directory: %w", err)
	}
	stamp := now.Format("2006-01-02-15-04-05")
	for _, a := range aircraft {
		path := filepath.Join(dir, fmt.Sprintf("visited-aircraft-%d-%s.csv", a.ID(), stamp))
		if err := writeVisited(path, a.FCC().Visited()); err != nil {
			return err
		}
	}
	return nil
}

func writeVisited(path string, trail []physics.Vec3) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create visited file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"x", "y", "z"}); err != nil {
		return err
	}
	for _, p := range trail {
		row := []string{
			fmt.Sprintf("%.2f", p.X),
			fmt.Sprintf("%.2f", p.Y),
			fmt.Sprintf("%.2f", p.Z),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
