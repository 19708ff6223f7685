package sqlite

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/yegors/uav-cas/internal/physics"
	"github.com/yegors/uav-cas/internal/scenario"
	"github.com/yegors/uav-cas/internal/sim"
	"github.com/yegors/uav-cas/pkg/logger"
)

func newTestStorage(t *testing.T) *ResultStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "uav-cas-test.db")
	storage, err := NewResultStorage(path, logger.NewNop())
	if err != nil {
		t.Fatalf("NewResultStorage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func sampleResult() *scenario.Result {
	return &scenario.Result{
		Record: scenario.Record{
			TestID: 7,
			InitialPositions: [2]physics.Vec3{
				{Y: 0, Z: 100},
				{Y: 5000, Z: 100},
			},
			InitialVelocities: [2]physics.Vec3{
				{Y: 50},
				{Y: -50},
			},
		},
		Avoidance: true,
		Outcome: scenario.Outcome{
			FinalPositions: [2]physics.Vec3{
				{X: 80, Y: 4800, Z: 100},
				{X: -80, Y: 200, Z: 100},
			},
			FinalVelocities: [2]physics.Vec3{
				{Y: 50},
				{Y: -50},
			},
			Collision:               false,
			MinimalRelativeDistance: 61.5,
		},
		PhysicsHz:     100,
		ADSBHz:        1,
		SimulatedTime: 100 * time.Second,
		WallTime:      2 * time.Second,
	}
}

func TestInsertAndReadResult(t *testing.T) {
	storage := newTestStorage(t)

	id, err := storage.InsertResult(sampleResult())
	if err != nil {
		t.Fatalf("InsertResult: %v", err)
	}
	if id <= 0 {
		t.Fatalf("InsertResult id = %d", id)
	}

	count, err := storage.CountResults()
	if err != nil {
		t.Fatalf("CountResults: %v", err)
	}
	if count != 1 {
		t.Errorf("CountResults = %d, want 1", count)
	}

	results, err := storage.GetResults(10)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	got := results[0].Result
	if got.Record.TestID != 7 || !got.Avoidance {
		t.Errorf("stored record = %+v", got)
	}
	if got.Outcome.Collision {
		t.Error("collision flag should be false")
	}
	if got.Outcome.MinimalRelativeDistance != 61.5 {
		t.Errorf("min distance = %g, want 61.5", got.Outcome.MinimalRelativeDistance)
	}
	if got.Outcome.FinalPositions[0] != (physics.Vec3{X: 80, Y: 4800, Z: 100}) {
		t.Errorf("final position = %v", got.Outcome.FinalPositions[0])
	}
}

func TestSaveResultSink(t *testing.T) {
	storage := newTestStorage(t)

	// The storage satisfies the runner's sink interface.
	var sink scenario.Sink = storage
	if err := sink.SaveResult(sampleResult()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}
	count, err := storage.CountResults()
	if err != nil {
		t.Fatalf("CountResults: %v", err)
	}
	if count != 1 {
		t.Errorf("CountResults = %d, want 1", count)
	}
}

func TestInsertConflictEvents(t *testing.T) {
	storage := newTestStorage(t)

	id, err := storage.InsertResult(sampleResult())
	if err != nil {
		t.Fatalf("InsertResult: %v", err)
	}

	events := []sim.ConflictEvent{
		{Cycle: 12, FirstID: 0, SecondID: 1, TimeToClosestApproach: 20, MissDistance: 0, UnresolvedRegion: 50, ManeuverIssued: true},
		{Cycle: 13, FirstID: 0, SecondID: 1, TimeToClosestApproach: 18, MissDistance: 35, UnresolvedRegion: 15, ManeuverIssued: true},
	}
	for _, ev := range events {
		if err := storage.InsertConflictEvent(id, ev); err != nil {
			t.Fatalf("InsertConflictEvent: %v", err)
		}
	}
	// Orphan event with no owning result.
	if err := storage.InsertConflictEvent(0, events[0]); err != nil {
		t.Fatalf("InsertConflictEvent orphan: %v", err)
	}

	var count int
	if err := storage.GetDB().QueryRow(`SELECT COUNT(*) FROM conflict_events`).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 3 {
		t.Errorf("conflict events = %d, want 3", count)
	}
}

func TestGetResultsNewestFirst(t *testing.T) {
	storage := newTestStorage(t)

	for i := 0; i < 3; i++ {
		res := sampleResult()
		res.Record.TestID = i
		if _, err := storage.InsertResult(res); err != nil {
			t.Fatalf("InsertResult: %v", err)
		}
	}

	results, err := storage.GetResults(2)
	if err != nil {
		t.Fatalf("GetResults: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Result.Record.TestID != 2 || results[1].Result.Record.TestID != 1 {
		t.Errorf("ordering wrong: %d, %d", results[0].Result.Record.TestID, results[1].Result.Record.TestID)
	}
}
