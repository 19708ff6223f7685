package sim

import (
	"sync"

	"github.com/yegors/uav-cas/internal/physics"
)

// Vehicle holds the physical state of a single airframe: pose, velocity,
// size and bank angle. It has no behavior of its own; the physics loop
// is its only writer, other components read through Snapshot.
type Vehicle struct {
	mu sync.RWMutex

	id               int
	position         physics.Vec3
	velocity         physics.Vec3
	size             float64 // sphere radius, meters
	rollAngle        float64
	initialRollAngle float64
	distanceCovered  float64
}

// VehicleSnapshot is an immutable copy of the vehicle state published at
// physics tick boundaries.
type VehicleSnapshot struct {
	ID       int          `json:"id"`
	Position physics.Vec3 `json:"position"`
	Velocity physics.Vec3 `json:"velocity"`
	Size     float64      `json:"size"`
	Roll     float64      `json:"roll"`
}

// NewVehicle creates a vehicle at the given pose. A negative Z is
// clipped to ground level.
func NewVehicle(id int, position, velocity physics.Vec3, size, rollAngle float64) *Vehicle {
	if position.Z < 0 {
		position.Z = 0
	}
	return &Vehicle{
		id:               id,
		position:         position,
		velocity:         velocity,
		size:             size,
		rollAngle:        physics.Clamp(rollAngle, -physics.MaxRollDeg, physics.MaxRollDeg),
		initialRollAngle: rollAngle,
	}
}

func (v *Vehicle) ID() int { return v.id }

func (v *Vehicle) Position() physics.Vec3 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.position
}

func (v *Vehicle) Velocity() physics.Vec3 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.velocity
}

func (v *Vehicle) Size() float64 {
	return v.size
}

func (v *Vehicle) RollAngle() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rollAngle
}

func (v *Vehicle) InitialRollAngle() float64 {
	return v.initialRollAngle
}

func (v *Vehicle) DistanceCovered() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.distanceCovered
}

// Speed returns the velocity magnitude
func (v *Vehicle) Speed() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.velocity.Length()
}

// HorizontalSpeed returns the magnitude of the X/Y velocity components
func (v *Vehicle) HorizontalSpeed() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.velocity.HorizontalLength()
}

// Yaw returns the current compass heading derived from velocity, in
// degrees normalized to [0, 360)
func (v *Vehicle) Yaw() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return physics.YawOf(v.velocity)
}

// Pitch returns the current flight-path pitch derived from velocity, in
// degrees
func (v *Vehicle) Pitch() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return physics.PitchOf(v.velocity)
}

// SetVelocity replaces the velocity vector. Only the physics loop calls
// this; the speed channel is owned by the FCC through its target speed.
func (v *Vehicle) SetVelocity(vel physics.Vec3) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.velocity = vel
}

// Move applies a position delta and accumulates the covered distance
func (v *Vehicle) Move(delta physics.Vec3) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = v.position.Add(delta)
	v.distanceCovered += delta.Length()
}

// Roll applies a bank angle delta, clamped to the ±90 degree envelope
func (v *Vehicle) Roll(dTheta float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rollAngle = physics.Clamp(v.rollAngle+dTheta, -physics.MaxRollDeg, physics.MaxRollDeg)
}

// Snapshot returns a consistent copy of the vehicle state
func (v *Vehicle) Snapshot() VehicleSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return VehicleSnapshot{
		ID:       v.id,
		Position: v.position,
		Velocity: v.velocity,
		Size:     v.size,
		Roll:     v.rollAngle,
	}
}

// Reset restores the vehicle to the given initial pose
func (v *Vehicle) Reset(position, velocity physics.Vec3) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if position.Z < 0 {
		position.Z = 0
	}
	v.position = position
	v.velocity = velocity
	v.rollAngle = v.initialRollAngle
	v.distanceCovered = 0
}
