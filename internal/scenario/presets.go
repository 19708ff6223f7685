package scenario

import "github.com/yegors/uav-cas/internal/physics"

// Presets returns the built-in study encounters used when no scenario
// file is given: head-on, trailing catch-up, oblique crossing,
// climb/descent crossing and a no-conflict parallel pair.
func Presets() []Record {
	return []Record{
		{
			TestID:        0, // head-on, equal speed
			AircraftAngle: 180,
			InitialPositions: [2]physics.Vec3{
				{X: 0, Y: 0, Z: 100},
				{X: 0, Y: 5000, Z: 100},
			},
			InitialVelocities: [2]physics.Vec3{
				{X: 0, Y: 50, Z: 0},
				{X: 0, Y: -50, Z: 0},
			},
			InitialTargets: [2]physics.Vec3{
				{X: 0, Y: 5000, Z: 100},
				{X: 0, Y: 0, Z: 100},
			},
		},
		{
			TestID:        1, // trailing catch-up
			AircraftAngle: 0,
			InitialPositions: [2]physics.Vec3{
				{X: 0, Y: 0, Z: 100},
				{X: 0, Y: 500, Z: 100},
			},
			InitialVelocities: [2]physics.Vec3{
				{X: 0, Y: 60, Z: 0},
				{X: 0, Y: 40, Z: 0},
			},
			InitialTargets: [2]physics.Vec3{
				{X: 0, Y: 100_000, Z: 100},
				{X: 0, Y: 100_000, Z: 100},
			},
		},
		{
			TestID:        2, // oblique 45 degree crossing
			AircraftAngle: 45,
			InitialPositions: [2]physics.Vec3{
				{X: 0, Y: 0, Z: 100},
				{X: 3500, Y: 3500, Z: 100},
			},
			InitialVelocities: [2]physics.Vec3{
				{X: 0, Y: 50, Z: 0},
				{X: -35.36, Y: -35.36, Z: 0},
			},
			InitialTargets: [2]physics.Vec3{
				{X: 0, Y: 100_000, Z: 100},
				{X: -70_000, Y: -70_000, Z: 100},
			},
		},
		{
			TestID:        3, // climb/descent crossing
			AircraftAngle: 180,
			InitialPositions: [2]physics.Vec3{
				{X: 0, Y: 0, Z: 50},
				{X: 0, Y: 5000, Z: 150},
			},
			InitialVelocities: [2]physics.Vec3{
				{X: 0, Y: 50, Z: 5},
				{X: 0, Y: -50, Z: -5},
			},
			InitialTargets: [2]physics.Vec3{
				{X: 0, Y: 5000, Z: 550},
				{X: 0, Y: 0, Z: 50},
			},
		},
		{
			TestID:        4, // no-conflict parallel pair
			AircraftAngle: 90,
			InitialPositions: [2]physics.Vec3{
				{X: 0, Y: 0, Z: 100},
				{X: 200, Y: 0, Z: 100},
			},
			InitialVelocities: [2]physics.Vec3{
				{X: 0, Y: 50, Z: 0},
				{X: 0, Y: 50, Z: 0},
			},
			InitialTargets: [2]physics.Vec3{
				{X: 0, Y: 100_000, Z: 100},
				{X: 200, Y: 100_000, Z: 100},
			},
		},
	}
}
