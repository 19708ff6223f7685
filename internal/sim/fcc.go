package sim

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/yegors/uav-cas/internal/physics"
	"github.com/yegors/uav-cas/pkg/logger"
)

// ErrInvalidDestination is returned when a destination coincides with
// the current vehicle position.
var ErrInvalidDestination = errors.New("invalid destination")

// yawHoldToleranceDeg is the band inside which the FCC stops commanding
// a turn and levels the wings.
const yawHoldToleranceDeg = 0.001

// FCC is the per-aircraft flight-control computer. It owns the
// destination queue and the yaw/pitch/roll/speed setpoints the physics
// loop steers toward. The physics loop calls Update every tick; the
// ADS-B loop injects and retracts evade maneuvers. Writers serialize on
// the FCC mutex.
type FCC struct {
	mu sync.Mutex

	aircraftID int
	vehicle    *Vehicle
	worldBound float64
	logger     *logger.Logger

	destinations        []physics.Vec3 // head at index 0
	destinationsHistory []physics.Vec3
	visited             []physics.Vec3

	autopilot          bool
	ignoreDestinations bool
	initialTarget      physics.Vec3

	targetYaw   float64 // [0, 360)
	targetPitch float64 // [-45, +45]
	targetRoll  float64 // [-90, +90]
	targetSpeed float64 // >= 0

	turningLeft  bool
	turningRight bool

	safeZoneOccupied        bool
	evadeManeuver           bool
	vectorSharingResolution physics.Vec3
}

// NewFCC creates a flight-control computer steering the given vehicle
// toward initialTarget. Target speed starts at the vehicle's current
// speed so the autopilot holds the entry velocity.
func NewFCC(aircraftID int, initialTarget physics.Vec3, vehicle *Vehicle, worldBound float64, log *logger.Logger) *FCC {
	f := &FCC{
		aircraftID:    aircraftID,
		vehicle:       vehicle,
		worldBound:    worldBound,
		logger:        log.Named("fcc").With(logger.Int("aircraft_id", aircraftID)),
		autopilot:     true,
		initialTarget: initialTarget,
		targetSpeed:   vehicle.Speed(),
	}
	f.destinations = append(f.destinations, f.boundDestination(initialTarget))
	return f
}

func (f *FCC) AircraftID() int { return f.aircraftID }

// Accelerate adjusts the target speed by a, floored at zero
func (f *FCC) Accelerate(a float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targetSpeed = math.Max(0, f.targetSpeed+a)
}

// checkNewDestination validates a candidate destination: it must differ
// from the current position, and components beyond the world bound are
// snapped to the bound.
func (f *FCC) checkNewDestination(p physics.Vec3) (physics.Vec3, error) {
	if p == f.vehicle.Position() {
		return physics.Vec3{}, fmt.Errorf("%w: coincides with current position", ErrInvalidDestination)
	}
	return f.boundDestination(p), nil
}

func (f *FCC) boundDestination(p physics.Vec3) physics.Vec3 {
	if f.worldBound <= 0 {
		return p
	}
	p.X = physics.Clamp(p.X, -f.worldBound, f.worldBound)
	p.Y = physics.Clamp(p.Y, -f.worldBound, f.worldBound)
	p.Z = physics.Clamp(p.Z, 0, f.worldBound)
	return p
}

// AddLastDestination enqueues a destination at the tail of the queue
func (f *FCC) AddLastDestination(p physics.Vec3) error {
	bounded, err := f.checkNewDestination(p)
	if err != nil {
		f.logger.Warn("Rejected destination", logger.Error(err), logger.Any("destination", p))
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destinations = append(f.destinations, bounded)
	f.ignoreDestinations = false
	return nil
}

// AddFirstDestination pushes a destination to the head of the queue
func (f *FCC) AddFirstDestination(p physics.Vec3) error {
	bounded, err := f.checkNewDestination(p)
	if err != nil {
		f.logger.Warn("Rejected destination", logger.Error(err), logger.Any("destination", p))
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destinations = append([]physics.Vec3{bounded}, f.destinations...)
	f.ignoreDestinations = false
	return nil
}

// AppendVisited samples the current vehicle position into the visited
// trail. Called at ADS-B cadence, not physics cadence.
func (f *FCC) AppendVisited() {
	pos := f.vehicle.Position()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visited = append(f.visited, pos)
}

// Update recomputes the yaw/pitch setpoints from the head of the
// destination queue, then the roll setpoint from the heading error.
// Runs every physics tick.
func (f *FCC) Update() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.autopilot {
		return
	}
	f.updateTargetYawPitchAngles()
	f.updateTargetRollAngle()
}

// UpdateTarget steers directly at the given point, bypassing the
// destination queue. Used by forced-collision study runs.
func (f *FCC) UpdateTarget(p physics.Vec3) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setAnglesToward(p)
	f.updateTargetRollAngle()
}

// updateTargetYawPitchAngles pops reached destinations and aims at the
// head of the queue. With an empty queue the previous setpoints hold.
func (f *FCC) updateTargetYawPitchAngles() {
	if len(f.destinations) == 0 {
		return
	}

	pos := f.vehicle.Position()
	head := f.destinations[0]
	if pos.DistanceTo(head) <= f.vehicle.Size() {
		f.destinationsHistory = append(f.destinationsHistory, head)
		f.destinations = f.destinations[1:]
		if f.evadeManeuver {
			// The reached head was the injected avoidance waypoint.
			f.evadeManeuver = false
			f.vectorSharingResolution = physics.Vec3{}
		}
		if len(f.destinations) == 0 {
			f.ignoreDestinations = true
			f.logger.Debug("Visited final destination, holding course")
			return
		}
		head = f.destinations[0]
		f.logger.Debug("Visited destination, taking next one")
	}

	f.setAnglesToward(head)
}

func (f *FCC) setAnglesToward(p physics.Vec3) {
	pos := f.vehicle.Position()
	delta := p.Sub(pos)
	f.targetYaw = physics.NormalizeAngle(math.Atan2(delta.X, delta.Y) * physics.RadToDeg)
	pitch := math.Atan2(delta.Z, delta.HorizontalLength()) * physics.RadToDeg
	f.targetPitch = physics.Clamp(pitch, -physics.MaxPitchDeg, physics.MaxPitchDeg)
}

// updateTargetRollAngle chooses the bank setpoint from the heading
// error: target_roll = sign(delta) * min(|delta|, 90). A target dead
// ahead levels the wings; an exactly reversed target banks right by
// convention.
func (f *FCC) updateTargetRollAngle() {
	delta := physics.FormatYawAngle(f.targetYaw - f.vehicle.Yaw())
	if math.Abs(delta) < yawHoldToleranceDeg {
		f.targetRoll = 0
		f.turningLeft = false
		f.turningRight = false
		return
	}
	magnitude := math.Min(math.Abs(delta), physics.MaxRollDeg)
	if delta > 0 {
		f.targetRoll = magnitude
		f.turningRight = true
		f.turningLeft = false
	} else {
		f.targetRoll = -magnitude
		f.turningLeft = true
		f.turningRight = false
	}
}

// ApplyEvadeManeuver computes the vector-sharing resolution and injects
// a synthetic avoidance waypoint at the head of the destination queue.
//
// missVector is the miss-distance vector already oriented away from the
// opponent for this aircraft; the resolution is its direction scaled by
// the unresolved region and this aircraft's speed share
// w = |v| / (|v| + |v_opponent|). The waypoint offset is stretched so
// the detour clears the opponent safe zone at the predicted encounter
// even if the opponent holds course.
func (f *FCC) ApplyEvadeManeuver(opponentVelocity, missVector physics.Vec3, unresolvedRegion, timeToClosestApproach float64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ownSpeed := f.vehicle.Speed()
	opponentSpeed := opponentVelocity.Length()
	total := ownSpeed + opponentSpeed
	if total < 1e-9 {
		return
	}
	share := ownSpeed / total

	f.vectorSharingResolution = missVector.Normalized().Scale(unresolvedRegion * share)
	resolution := f.vectorSharingResolution.Length()
	if resolution < 1e-9 {
		return
	}

	// Stretch so the detour stays outside the opponent safe zone with
	// enough offset to survive turn inertia and the waypoint-reached
	// radius.
	k := (unresolvedRegion + 4*f.vehicle.Size()) / resolution
	if k < 1 {
		k = 1
	}
	waypoint := f.vehicle.Position().Add(f.vectorSharingResolution.Scale(k))

	if f.evadeManeuver {
		// Replace the previously injected waypoint with the fresh one.
		f.destinations = f.destinations[1:]
	}
	f.destinations = append([]physics.Vec3{waypoint}, f.destinations...)
	f.ignoreDestinations = false
	f.evadeManeuver = true

	f.logger.Debug("Evade maneuver applied",
		logger.Any("waypoint", waypoint),
		logger.Float64("unresolved_region", unresolvedRegion),
		logger.Float64("time_to_closest_approach", timeToClosestApproach),
		logger.Float64("speed_share", share),
	)
}

// ResetEvadeManeuver removes the injected avoidance waypoint and clears
// the evade flag. A no-op when no maneuver is active.
func (f *FCC) ResetEvadeManeuver() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.evadeManeuver {
		return
	}
	f.destinations = f.destinations[1:]
	f.evadeManeuver = false
	f.vectorSharingResolution = physics.Vec3{}
	if len(f.destinations) == 0 {
		f.ignoreDestinations = true
	}
	f.logger.Debug("Evade maneuver reset")
}

// Reset restores the FCC to its initial state with the initial target
// as the sole queued destination.
func (f *FCC) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destinations = []physics.Vec3{f.boundDestination(f.initialTarget)}
	f.destinationsHistory = nil
	f.visited = nil
	f.ignoreDestinations = false
	f.targetYaw = 0
	f.targetPitch = 0
	f.targetRoll = 0
	f.targetSpeed = f.vehicle.Speed()
	f.turningLeft = false
	f.turningRight = false
	f.safeZoneOccupied = false
	f.evadeManeuver = false
	f.vectorSharingResolution = physics.Vec3{}
}

// Accessors below copy under the FCC mutex so the physics loop and
// observers never see torn state.

func (f *FCC) TargetYaw() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetYaw
}

func (f *FCC) TargetPitch() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetPitch
}

func (f *FCC) TargetRoll() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetRoll
}

func (f *FCC) TargetSpeed() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetSpeed
}

// SetTargetSpeed replaces the target speed, floored at zero
func (f *FCC) SetTargetSpeed(speed float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targetSpeed = math.Max(0, speed)
}

func (f *FCC) IsTurningLeft() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turningLeft
}

func (f *FCC) IsTurningRight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turningRight
}

func (f *FCC) Autopilot() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.autopilot
}

func (f *FCC) SetAutopilot(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autopilot = enabled
}

func (f *FCC) IgnoreDestinations() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ignoreDestinations
}

func (f *FCC) SafeZoneOccupied() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.safeZoneOccupied
}

func (f *FCC) SetSafeZoneOccupied(occupied bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.safeZoneOccupied = occupied
}

func (f *FCC) EvadeManeuver() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.evadeManeuver
}

func (f *FCC) VectorSharingResolution() physics.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vectorSharingResolution
}

func (f *FCC) InitialTarget() physics.Vec3 { return f.initialTarget }

// Destinations returns a copy of the queue, head first
func (f *FCC) Destinations() []physics.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]physics.Vec3, len(f.destinations))
	copy(out, f.destinations)
	return out
}

// DestinationsHistory returns a copy of the visited destinations
func (f *FCC) DestinationsHistory() []physics.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]physics.Vec3, len(f.destinationsHistory))
	copy(out, f.destinationsHistory)
	return out
}

// Visited returns a copy of the sampled position trail
func (f *FCC) Visited() []physics.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]physics.Vec3, len(f.visited))
	copy(out, f.visited)
	return out
}
