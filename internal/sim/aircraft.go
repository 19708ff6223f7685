package sim

import (
	"github.com/yegors/uav-cas/internal/physics"
	"github.com/yegors/uav-cas/pkg/logger"
)

// Aircraft composes one Vehicle with one FCC under a shared id and
// remembers the initial record so a run can be reset exactly.
type Aircraft struct {
	id      int
	vehicle *Vehicle
	fcc     *FCC

	initialPosition  physics.Vec3
	initialVelocity  physics.Vec3
	initialTarget    physics.Vec3
	initialSpeed     float64
	initialRollAngle float64
}

// NewAircraft builds an aircraft from its initial record
func NewAircraft(id int, position, velocity, target physics.Vec3, rollAngle, size, worldBound float64, log *logger.Logger) *Aircraft {
	vehicle := NewVehicle(id, position, velocity, size, rollAngle)
	return &Aircraft{
		id:               id,
		vehicle:          vehicle,
		fcc:              NewFCC(id, target, vehicle, worldBound, log),
		initialPosition:  position,
		initialVelocity:  velocity,
		initialTarget:    target,
		initialSpeed:     velocity.Length(),
		initialRollAngle: rollAngle,
	}
}

func (a *Aircraft) ID() int           { return a.id }
func (a *Aircraft) Vehicle() *Vehicle { return a.vehicle }
func (a *Aircraft) FCC() *FCC         { return a.fcc }

func (a *Aircraft) InitialPosition() physics.Vec3 { return a.initialPosition }
func (a *Aircraft) InitialVelocity() physics.Vec3 { return a.initialVelocity }
func (a *Aircraft) InitialTarget() physics.Vec3   { return a.initialTarget }
func (a *Aircraft) InitialSpeed() float64         { return a.initialSpeed }
func (a *Aircraft) InitialRollAngle() float64     { return a.initialRollAngle }

// Reset restores the exact initial record: pose, velocity, roll and the
// initial target as the sole queued destination. The vehicle resets
// first so the FCC picks up the initial speed as its target speed.
func (a *Aircraft) Reset() {
	a.vehicle.Reset(a.initialPosition, a.initialVelocity)
	a.fcc.Reset()
}
