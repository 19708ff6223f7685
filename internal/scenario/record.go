package scenario

import (
	"time"

	"github.com/yegors/uav-cas/internal/physics"
)

// Record seeds one two-aircraft encounter: initial poses, velocities,
// targets and the inter-aircraft bearing at t=0.
type Record struct {
	TestID            int             `json:"test_id"`
	AircraftAngle     float64         `json:"aircraft_angle"`
	InitialPositions  [2]physics.Vec3 `json:"initial_positions"`
	InitialVelocities [2]physics.Vec3 `json:"initial_velocities"`
	InitialTargets    [2]physics.Vec3 `json:"initial_targets"`
	InitialRollAngles [2]float64      `json:"initial_roll_angles"`
}

// Outcome is the harvest of one finished run
type Outcome struct {
	FinalPositions          [2]physics.Vec3 `json:"final_positions"`
	FinalVelocities         [2]physics.Vec3 `json:"final_velocities"`
	Collision               bool            `json:"collision"`
	HeadOnCollision         bool            `json:"head_on_collision"`
	MinimalRelativeDistance float64         `json:"minimal_relative_distance"`
}

// Result is a Record extended with the outcome of one run and the
// rates it was produced under, recorded for reproducibility.
type Result struct {
	Record        Record        `json:"record"`
	Avoidance     bool          `json:"avoidance"`
	Outcome       Outcome       `json:"outcome"`
	PhysicsHz     float64       `json:"physics_hz"`
	ADSBHz        float64       `json:"adsb_hz"`
	SimulatedTime time.Duration `json:"simulated_time"`
	WallTime      time.Duration `json:"wall_time"`
}

// Entry is one scenario-file row: a record plus the recorded outcomes
// of its paired avoidance-off and avoidance-on runs.
type Entry struct {
	Record  Record  `json:"record"`
	NoAvoid Outcome `json:"no_avoid"`
	Avoid   Outcome `json:"avoid"`
}

// ResultsFileName returns the timestamped historical-run file name for
// the given instant, e.g. simulation-2024-05-17-14-03-59.csv.
func ResultsFileName(t time.Time) string {
	return "simulation-" + t.Format("2006-01-02-15-04-05") + ".csv"
}
