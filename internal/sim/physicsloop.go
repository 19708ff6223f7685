package sim

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yegors/uav-cas/internal/physics"
	"github.com/yegors/uav-cas/pkg/logger"
)

// TickObserver is invoked at physics tick boundaries with the published
// vehicle snapshots
type TickObserver func(cycle uint64, simulated time.Duration, snapshots []VehicleSnapshot)

// maxYawStepDeg bounds the yaw change of a single tick
const maxYawStepDeg = 180.0

// PhysicsConfig carries the integrator parameters for one run
type PhysicsConfig struct {
	Interval          time.Duration // fixed physics step, 1/f_phys
	RollDynamicDelay  time.Duration // time for a full 90 degree roll swing
	PitchDynamicDelay time.Duration // time for a full 45 degree pitch swing
	MaxAcceleration   float64       // m/s^2
	PausePollInterval time.Duration
}

// PhysicsLoop is the high-rate fixed-step integrator. It refreshes each
// FCC's setpoints, applies inertia-limited angular rates and the speed
// channel to every vehicle, advances positions, and detects
// sphere-sphere collisions. It is the exclusive writer of vehicle
// state; readers consume the snapshots it publishes at tick boundaries.
type PhysicsLoop struct {
	aircraft []*Aircraft
	state    *State
	clock    Clock
	cfg      PhysicsConfig
	logger   *logger.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	snapshots atomic.Value // []VehicleSnapshot
	onTick    TickObserver
}

// NewPhysicsLoop creates the integrator over the given aircraft
func NewPhysicsLoop(aircraft []*Aircraft, state *State, clock Clock, cfg PhysicsConfig, log *logger.Logger) *PhysicsLoop {
	if cfg.PausePollInterval <= 0 {
		cfg.PausePollInterval = 50 * time.Millisecond
	}
	p := &PhysicsLoop{
		aircraft: aircraft,
		state:    state,
		clock:    clock,
		cfg:      cfg,
		logger:   log.Named("physics"),
		stopCh:   make(chan struct{}),
	}
	p.publishSnapshots()
	return p
}

// SetTickObserver registers a callback invoked after every physics tick
func (p *PhysicsLoop) SetTickObserver(fn TickObserver) {
	p.onTick = fn
}

// Snapshots returns the vehicle snapshots published at the last tick
// boundary. Never returns a torn mid-tick state.
func (p *PhysicsLoop) Snapshots() []VehicleSnapshot {
	return p.snapshots.Load().([]VehicleSnapshot)
}

func (p *PhysicsLoop) publishSnapshots() {
	snaps := make([]VehicleSnapshot, len(p.aircraft))
	for i, a := range p.aircraft {
		snaps[i] = a.Vehicle().Snapshot()
	}
	p.snapshots.Store(snaps)
}

// Start launches the realtime integrator goroutine
func (p *PhysicsLoop) Start(ctx context.Context) {
	p.logger.Info("Starting physics loop",
		logger.Duration("interval", p.cfg.Interval),
		logger.Int("aircraft", len(p.aircraft)),
	)
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop signals the loop to exit and waits for the current tick to
// finish
func (p *PhysicsLoop) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	p.wg.Wait()
}

func (p *PhysicsLoop) run(ctx context.Context) {
	defer p.wg.Done()

	next := p.clock.Now()
	prev := next
	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if p.state.IsPaused() {
			p.clock.Sleep(p.cfg.PausePollInterval)
			next = p.clock.Now()
			prev = next
			continue
		}

		p.Cycle(p.cfg.Interval.Seconds())
		if p.state.Collision() {
			p.logger.Info("Collision registered, physics loop stopping")
			return
		}

		next = next.Add(p.cfg.Interval)
		now := p.clock.Now()
		if now.Before(prev) {
			// Clock fault: origin resets to the current instant.
			p.state.CountSkippedTicks(1)
			p.logger.Warn("Non-monotonic clock reading, resetting tick origin")
			next = now
		} else if behind := now.Sub(next); behind > p.cfg.Interval {
			// More than one tick behind: skip the backlog rather than
			// catch up unboundedly.
			skipped := uint64(behind / p.cfg.Interval)
			p.state.CountSkippedTicks(skipped)
			next = now
		} else if behind < 0 {
			p.clock.Sleep(-behind)
		}
		prev = now
	}
}

// Cycle executes one fixed-step physics tick of dt seconds. Reset
// demands are honored at the top; pause suppresses integration. The
// headless driver calls this directly.
func (p *PhysicsLoop) Cycle(dt float64) {
	if p.state.ResetDemanded() {
		p.resetAircraft()
	}
	if p.state.IsPaused() {
		return
	}

	// All aircraft observe the same pre-step snapshot; updates apply in
	// id order and the collision check runs after all have advanced.
	before := make([]VehicleSnapshot, len(p.aircraft))
	for i, a := range p.aircraft {
		before[i] = a.Vehicle().Snapshot()
	}

	for i, a := range p.aircraft {
		p.stepAircraft(a, before, i, dt)
	}

	p.detectCollisions(before, dt)

	cycle := p.state.CountPhysicsCycle(time.Duration(dt * float64(time.Second)))
	p.publishSnapshots()
	if p.onTick != nil {
		p.onTick(cycle, p.state.SimulatedTime(), p.Snapshots())
	}
}

// stepAircraft advances one aircraft by dt: setpoint refresh, bounded
// angular rates, coordinated-turn yaw, speed convergence, then the
// position integral.
func (p *PhysicsLoop) stepAircraft(a *Aircraft, before []VehicleSnapshot, idx int, dt float64) {
	veh := a.Vehicle()
	fcc := a.FCC()

	if p.state.CauseCollision(a.ID()) && len(p.aircraft) > 1 {
		peer := before[p.peerIndex(idx)]
		fcc.UpdateTarget(peer.Position.Add(peer.Velocity))
	} else {
		fcc.Update()
	}

	// Roll approaches its setpoint at 90 deg per RollDynamicDelay.
	rollRate := physics.MaxRollDeg / p.cfg.RollDynamicDelay.Seconds()
	roll := veh.RollAngle()
	newRoll := physics.StepToward(roll, fcc.TargetRoll(), rollRate*dt)
	veh.Roll(newRoll - roll)

	// Pitch approaches its setpoint at 45 deg per PitchDynamicDelay.
	pitchRate := physics.MaxPitchDeg / p.cfg.PitchDynamicDelay.Seconds()
	pitch := veh.Pitch()
	newPitch := physics.StepToward(pitch, fcc.TargetPitch(), pitchRate*dt)

	// Yaw follows the coordinated-turn relation; the bank angle sets
	// both rate and direction. The step never overshoots the target
	// when turning toward it.
	yaw := veh.Yaw()
	newYaw := yaw
	if yawRate := physics.TurnRate(newRoll, veh.HorizontalSpeed()); yawRate != 0 {
		delta := physics.FormatYawAngle(fcc.TargetYaw() - yaw)
		// tan blows up near vertical bank; cap the per-tick step.
		step := physics.Clamp(yawRate*dt, -maxYawStepDeg, maxYawStepDeg)
		if (step > 0) == (delta > 0) && math.Abs(step) >= math.Abs(delta) {
			step = delta
		}
		newYaw = physics.NormalizeAngle(yaw + step)
	}

	newSpeed := physics.StepToward(veh.Speed(), fcc.TargetSpeed(), p.cfg.MaxAcceleration*dt)

	velocity := physics.VelocityFromAngles(newSpeed, newYaw, newPitch)
	veh.SetVelocity(velocity)
	veh.Move(velocity.Scale(dt))
}

func (p *PhysicsLoop) peerIndex(idx int) int {
	if idx == 0 && len(p.aircraft) > 1 {
		return 1
	}
	return 0
}

// detectCollisions runs the pairwise sphere-sphere check after all
// aircraft have advanced. Classification uses the pre-step geometry:
// the contact is head-on when the projected closest approach lands
// within one step of the contact instant and the projected centers
// essentially meet.
func (p *PhysicsLoop) detectCollisions(before []VehicleSnapshot, dt float64) {
	for i := 0; i < len(p.aircraft); i++ {
		for j := i + 1; j < len(p.aircraft); j++ {
			vi := p.aircraft[i].Vehicle()
			vj := p.aircraft[j].Vehicle()
			d := vi.Position().DistanceTo(vj.Position())
			if d > vi.Size()+vj.Size() {
				continue
			}

			r := before[j].Position.Sub(before[i].Position)
			v := before[j].Velocity.Sub(before[i].Velocity)
			headOn := false
			if ap, ok := physics.ClosestApproach(r, v); ok {
				// Head-on: the projected centers essentially meet, and
				// the projected closest-approach point lies within one
				// step of the actual contact point.
				caPoint := before[i].Position.Add(before[i].Velocity.Scale(ap.Time)).
					Add(before[j].Position.Add(before[j].Velocity.Scale(ap.Time))).Scale(0.5)
				contactPoint := vi.Position().Add(vj.Position()).Scale(0.5)
				slack := v.Length() * dt
				headOn = ap.MissDistance <= slack && caPoint.DistanceTo(contactPoint) <= slack
			}
			// The aircraft whose velocity points at the other at
			// contact is the one that caused it.
			firstCause := before[i].Velocity.Dot(r) > 0
			secondCause := before[j].Velocity.Dot(r.Scale(-1)) > 0

			p.state.UpdateMinimalRelativeDistance(d)
			p.state.RegisterCollision(headOn, firstCause, secondCause)
			p.logger.Warn("Aircraft collided",
				logger.Int("first_id", p.aircraft[i].ID()),
				logger.Int("second_id", p.aircraft[j].ID()),
				logger.Float64("distance", d),
				logger.Bool("head_on", headOn),
			)
		}
	}
}

func (p *PhysicsLoop) resetAircraft() {
	for _, a := range p.aircraft {
		a.Reset()
	}
	p.state.ApplyReset()
	p.publishSnapshots()
	p.logger.Info("Aircraft reset to initial state")
}
