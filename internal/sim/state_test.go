package sim

import (
	"math"
	"testing"
	"time"
)

func TestStatePauseAccounting(t *testing.T) {
	s := NewState(false, true, 50)
	t0 := time.Unix(1000, 0)

	s.TogglePause(t0)
	if !s.IsPaused() {
		t.Fatal("expected paused")
	}
	s.TogglePause(t0.Add(3 * time.Second))
	if s.IsPaused() {
		t.Fatal("expected unpaused")
	}
	if got := s.TimePaused(); got != 3*time.Second {
		t.Errorf("TimePaused = %v, want 3s", got)
	}

	// A second pause accumulates.
	s.TogglePause(t0.Add(10 * time.Second))
	s.AppendPausedTime(t0.Add(12 * time.Second))
	if got := s.TimePaused(); got != 5*time.Second {
		t.Errorf("TimePaused = %v, want 5s", got)
	}
}

func TestStatePauseRefusedWhenStopped(t *testing.T) {
	s := NewState(false, true, 50)
	s.SetRunning(false)
	s.TogglePause(time.Unix(0, 0))
	if s.IsPaused() {
		t.Error("stopped run should not pause")
	}
}

func TestStateResetRoundTrip(t *testing.T) {
	s := NewState(false, true, 50)
	s.CountPhysicsCycle(10 * time.Millisecond)
	s.CountADSBCycle()
	s.CountSkippedTicks(2)
	s.RegisterCollision(true, true, false)
	s.UpdateMinimalRelativeDistance(12)

	s.DemandReset()
	if !s.ResetDemanded() {
		t.Fatal("expected reset demanded")
	}
	s.ApplyReset()

	if s.ResetDemanded() {
		t.Error("reset demand not cleared")
	}
	if s.Collision() || s.HeadOnCollision() || s.FirstCauseCollision() || s.SecondCauseCollision() {
		t.Error("collision flags not cleared")
	}
	if s.PhysicsCycles() != 0 || s.ADSBCycles() != 0 || s.SkippedTicks() != 0 {
		t.Error("counters not cleared")
	}
	if s.SimulatedTime() != 0 {
		t.Error("simulated time not cleared")
	}
	if !math.IsInf(s.MinimalRelativeDistance(), 1) {
		t.Error("minimal distance not cleared")
	}
}

func TestStateMinimalDistanceOnlyLowers(t *testing.T) {
	s := NewState(false, true, 50)
	s.UpdateMinimalRelativeDistance(100)
	s.UpdateMinimalRelativeDistance(40)
	s.UpdateMinimalRelativeDistance(70)
	if got := s.MinimalRelativeDistance(); got != 40 {
		t.Errorf("MinimalRelativeDistance = %g, want 40", got)
	}
}

func TestStateAvoidCollisionsOverride(t *testing.T) {
	s := NewState(false, true, 50)
	if !s.AvoidCollisions() {
		t.Fatal("expected avoidance enabled")
	}
	s.SetOverrideAvoidCollisions(true)
	if s.AvoidCollisions() {
		t.Error("override should disable avoidance")
	}
}

func TestStateCauseCollisionFlags(t *testing.T) {
	s := NewState(false, false, 50)
	s.SetCauseCollision(1, true)
	if s.CauseCollision(0) || !s.CauseCollision(1) {
		t.Error("cause flags wrong")
	}
	if !s.SecondCauseCollision() {
		t.Error("second cause flag should be set")
	}
}
