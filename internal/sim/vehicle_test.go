package sim

import (
	"math"
	"testing"

	"github.com/yegors/uav-cas/internal/physics"
)

func TestVehicleMoveAccumulatesDistance(t *testing.T) {
	v := NewVehicle(0, physics.Vec3{}, physics.Vec3{Y: 50}, 5, 0)

	v.Move(physics.Vec3{X: 3, Y: 4})
	v.Move(physics.Vec3{Z: 5})

	if got := v.Position(); got != (physics.Vec3{X: 3, Y: 4, Z: 5}) {
		t.Errorf("Position = %v", got)
	}
	if got := v.DistanceCovered(); math.Abs(got-10) > 1e-9 {
		t.Errorf("DistanceCovered = %g, want 10", got)
	}
}

func TestVehicleDistanceCoveredNonDecreasing(t *testing.T) {
	v := NewVehicle(0, physics.Vec3{}, physics.Vec3{}, 5, 0)
	prev := 0.0
	for i := 0; i < 50; i++ {
		v.Move(physics.Vec3{X: float64(i%3) - 1, Y: 1})
		d := v.DistanceCovered()
		if d < prev {
			t.Fatalf("distance covered decreased: %g -> %g", prev, d)
		}
		prev = d
	}
}

func TestVehicleRollClamped(t *testing.T) {
	v := NewVehicle(0, physics.Vec3{}, physics.Vec3{}, 5, 0)

	v.Roll(120)
	if got := v.RollAngle(); got != 90 {
		t.Errorf("RollAngle after +120 = %g, want 90", got)
	}
	v.Roll(-300)
	if got := v.RollAngle(); got != -90 {
		t.Errorf("RollAngle after -300 = %g, want -90", got)
	}
}

func TestVehicleGroundClip(t *testing.T) {
	v := NewVehicle(0, physics.Vec3{Z: -10}, physics.Vec3{}, 5, 0)
	if got := v.Position().Z; got != 0 {
		t.Errorf("initial Z = %g, want 0", got)
	}
}

func TestVehicleDerivedAngles(t *testing.T) {
	v := NewVehicle(0, physics.Vec3{}, physics.Vec3{X: 50, Y: 0, Z: 0}, 5, 0)
	if got := v.Yaw(); math.Abs(got-90) > 1e-9 {
		t.Errorf("Yaw = %g, want 90", got)
	}
	v.SetVelocity(physics.Vec3{Y: 10, Z: 10})
	if got := v.Pitch(); math.Abs(got-45) > 1e-9 {
		t.Errorf("Pitch = %g, want 45", got)
	}
	if got := v.HorizontalSpeed(); math.Abs(got-10) > 1e-9 {
		t.Errorf("HorizontalSpeed = %g, want 10", got)
	}
}

func TestVehicleReset(t *testing.T) {
	initPos := physics.Vec3{X: 1, Y: 2, Z: 3}
	initVel := physics.Vec3{Y: 40}
	v := NewVehicle(0, initPos, initVel, 5, 15)

	v.Move(physics.Vec3{X: 100})
	v.Roll(30)
	v.SetVelocity(physics.Vec3{X: -5})

	v.Reset(initPos, initVel)

	if got := v.Position(); got != initPos {
		t.Errorf("Position after reset = %v", got)
	}
	if got := v.Velocity(); got != initVel {
		t.Errorf("Velocity after reset = %v", got)
	}
	if got := v.RollAngle(); got != 15 {
		t.Errorf("RollAngle after reset = %g, want 15", got)
	}
	if got := v.DistanceCovered(); got != 0 {
		t.Errorf("DistanceCovered after reset = %g, want 0", got)
	}
}
