package physics

import (
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNormalizeAngle(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{360, 0},
		{-90, 270},
		{450, 90},
		{-720, 0},
		{180, 180},
		{359.5, 359.5},
	}
	for _, tc := range tests {
		if got := NormalizeAngle(tc.in); !almostEqual(got, tc.want, eps) {
			t.Errorf("NormalizeAngle(%g) = %g, want %g", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeAngleIdempotent(t *testing.T) {
	for _, a := range []float64{-1000, -180, -0.5, 0, 13.7, 180, 359.99, 1234} {
		once := NormalizeAngle(a)
		twice := NormalizeAngle(once)
		if !almostEqual(once, twice, eps) {
			t.Errorf("NormalizeAngle not idempotent for %g: %g != %g", a, once, twice)
		}
	}
}

func TestFormatYawAngle(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{180, 180},
		{-180, 180}, // reversed target turns right by convention
		{190, -170},
		{-90, -90},
		{270, -90},
		{360, 0},
	}
	for _, tc := range tests {
		if got := FormatYawAngle(tc.in); !almostEqual(got, tc.want, eps) {
			t.Errorf("FormatYawAngle(%g) = %g, want %g", tc.in, got, tc.want)
		}
	}
}

func TestFormatYawAngleIdempotent(t *testing.T) {
	for _, a := range []float64{-540, -180, -1, 0, 1, 179.5, 180, 500} {
		once := FormatYawAngle(a)
		twice := FormatYawAngle(once)
		if !almostEqual(once, twice, eps) {
			t.Errorf("FormatYawAngle not idempotent for %g: %g != %g", a, once, twice)
		}
	}
}

func TestYawOf(t *testing.T) {
	tests := []struct {
		v    Vec3
		want float64
	}{
		{Vec3{X: 0, Y: 1}, 0},    // north
		{Vec3{X: 1, Y: 0}, 90},   // east
		{Vec3{X: 0, Y: -1}, 180}, // south
		{Vec3{X: -1, Y: 0}, 270}, // west
		{Vec3{X: 1, Y: 1}, 45},
		{Vec3{}, 0},
	}
	for _, tc := range tests {
		if got := YawOf(tc.v); !almostEqual(got, tc.want, 1e-6) {
			t.Errorf("YawOf(%v) = %g, want %g", tc.v, got, tc.want)
		}
	}
}

func TestPitchOf(t *testing.T) {
	tests := []struct {
		v    Vec3
		want float64
	}{
		{Vec3{Y: 10}, 0},
		{Vec3{Y: 10, Z: 10}, 45},
		{Vec3{Y: 10, Z: -10}, -45},
		{Vec3{Z: 5}, 90},
	}
	for _, tc := range tests {
		if got := PitchOf(tc.v); !almostEqual(got, tc.want, 1e-6) {
			t.Errorf("PitchOf(%v) = %g, want %g", tc.v, got, tc.want)
		}
	}
}

func TestVelocityFromAnglesRoundTrip(t *testing.T) {
	tests := []struct {
		speed, yaw, pitch float64
	}{
		{50, 0, 0},
		{50, 90, 0},
		{50, 225, 10},
		{80, 359, -30},
		{10, 45, 44},
	}
	for _, tc := range tests {
		v := VelocityFromAngles(tc.speed, tc.yaw, tc.pitch)
		if !almostEqual(v.Length(), tc.speed, 1e-9) {
			t.Errorf("VelocityFromAngles(%g,%g,%g) magnitude = %g", tc.speed, tc.yaw, tc.pitch, v.Length())
		}
		if !almostEqual(YawOf(v), tc.yaw, 1e-6) {
			t.Errorf("yaw round trip: got %g, want %g", YawOf(v), tc.yaw)
		}
		if !almostEqual(PitchOf(v), tc.pitch, 1e-6) {
			t.Errorf("pitch round trip: got %g, want %g", PitchOf(v), tc.pitch)
		}
	}
}

func TestTurnRate(t *testing.T) {
	// 30 degree bank at 50 m/s: 9.81*tan(30)/50 rad/s.
	want := G * math.Tan(30*DegToRad) / 50 * RadToDeg
	if got := TurnRate(30, 50); !almostEqual(got, want, 1e-9) {
		t.Errorf("TurnRate(30, 50) = %g, want %g", got, want)
	}
	if got := TurnRate(-30, 50); !almostEqual(got, -want, 1e-9) {
		t.Errorf("TurnRate(-30, 50) = %g, want %g", got, -want)
	}
	if got := TurnRate(45, 0); got != 0 {
		t.Errorf("TurnRate with zero speed = %g, want 0", got)
	}
	if got := TurnRate(0, 50); got != 0 {
		t.Errorf("TurnRate with wings level = %g, want 0", got)
	}
}

func TestStepToward(t *testing.T) {
	tests := []struct {
		cur, target, max, want float64
	}{
		{0, 10, 3, 3},
		{0, 10, 20, 10},
		{10, 0, 3, 7},
		{5, 5, 1, 5},
		{-5, 5, 4, -1},
	}
	for _, tc := range tests {
		if got := StepToward(tc.cur, tc.target, tc.max); !almostEqual(got, tc.want, eps) {
			t.Errorf("StepToward(%g,%g,%g) = %g, want %g", tc.cur, tc.target, tc.max, got, tc.want)
		}
	}
}

func TestClosestApproachHeadOn(t *testing.T) {
	// Two aircraft 5000 m apart closing at 100 m/s dead center.
	r := Vec3{Y: 5000}
	v := Vec3{Y: -100}
	ap, ok := ClosestApproach(r, v)
	if !ok {
		t.Fatal("expected a projection")
	}
	if !almostEqual(ap.Time, 50, 1e-9) {
		t.Errorf("Time = %g, want 50", ap.Time)
	}
	if !almostEqual(ap.MissDistance, 0, 1e-9) {
		t.Errorf("MissDistance = %g, want 0", ap.MissDistance)
	}
}

func TestClosestApproachOffset(t *testing.T) {
	// Passing 100 m to the side.
	r := Vec3{X: 100, Y: 2000}
	v := Vec3{Y: -50}
	ap, ok := ClosestApproach(r, v)
	if !ok {
		t.Fatal("expected a projection")
	}
	if !almostEqual(ap.Time, 40, 1e-9) {
		t.Errorf("Time = %g, want 40", ap.Time)
	}
	if !almostEqual(ap.MissDistance, 100, 1e-9) {
		t.Errorf("MissDistance = %g, want 100", ap.MissDistance)
	}
}

func TestClosestApproachDiverging(t *testing.T) {
	// Already past each other: closest approach clamps to now.
	r := Vec3{Y: 500}
	v := Vec3{Y: 60}
	ap, ok := ClosestApproach(r, v)
	if !ok {
		t.Fatal("expected a projection")
	}
	if ap.Time != 0 {
		t.Errorf("Time = %g, want 0", ap.Time)
	}
	if !almostEqual(ap.MissDistance, 500, 1e-9) {
		t.Errorf("MissDistance = %g, want 500", ap.MissDistance)
	}
}

func TestClosestApproachZeroRelativeVelocity(t *testing.T) {
	if _, ok := ClosestApproach(Vec3{X: 200}, Vec3{}); ok {
		t.Error("expected no projection for zero relative velocity")
	}
}

func TestVec3Ops(t *testing.T) {
	a := Vec3{X: 1, Y: 2, Z: 3}
	b := Vec3{X: 4, Y: -2, Z: 1}

	if got := a.Add(b); got != (Vec3{X: 5, Y: 0, Z: 4}) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); got != (Vec3{X: -3, Y: 4, Z: 2}) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Dot(b); got != 3 {
		t.Errorf("Dot = %g, want 3", got)
	}
	if got := (Vec3{X: 3, Y: 4}).Length(); !almostEqual(got, 5, eps) {
		t.Errorf("Length = %g, want 5", got)
	}
	if got := (Vec3{X: 3, Y: 4, Z: 12}).HorizontalLength(); !almostEqual(got, 5, eps) {
		t.Errorf("HorizontalLength = %g, want 5", got)
	}
	n := Vec3{X: 0, Y: 0, Z: 9}.Normalized()
	if !almostEqual(n.Length(), 1, eps) || n.Z != 1 {
		t.Errorf("Normalized = %v", n)
	}
	if got := (Vec3{}).Normalized(); !got.IsZero() {
		t.Errorf("Normalized zero vector = %v", got)
	}
	if got := a.DistanceTo(a); got != 0 {
		t.Errorf("DistanceTo self = %g", got)
	}
}
