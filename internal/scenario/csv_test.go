package scenario

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/yegors/uav-cas/internal/physics"
)

func sampleEntry() Entry {
	return Entry{
		Record: Record{
			TestID:        3,
			AircraftAngle: 180,
			InitialPositions: [2]physics.Vec3{
				{X: 0, Y: 0, Z: 100},
				{X: 0, Y: 5000, Z: 100},
			},
			InitialVelocities: [2]physics.Vec3{
				{Y: 50},
				{Y: -50},
			},
			InitialTargets: [2]physics.Vec3{
				{Y: 5000, Z: 100},
				{Y: 0, Z: 100},
			},
		},
		NoAvoid: Outcome{
			FinalPositions:          [2]physics.Vec3{{Y: 2497.5, Z: 100}, {Y: 2502.5, Z: 100}},
			FinalVelocities:         [2]physics.Vec3{{Y: 50}, {Y: -50}},
			Collision:               true,
			MinimalRelativeDistance: 5,
		},
		Avoid: Outcome{
			FinalPositions:          [2]physics.Vec3{{X: 80, Y: 5000, Z: 100}, {X: -80, Y: 0, Z: 100}},
			FinalVelocities:         [2]physics.Vec3{{Y: 50}, {Y: -50}},
			Collision:               false,
			MinimalRelativeDistance: 62.4,
		},
	}
}

func TestCSVWriteLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulation.csv")

	w, err := NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	want := sampleEntry()
	if err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, rowErrs, err := LoadEntries(path)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(rowErrs) != 0 {
		t.Fatalf("row errors: %v", rowErrs)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if !reflect.DeepEqual(entries[0], want) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", entries[0], want)
	}
}

func TestCSVAppendKeepsSingleHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulation.csv")

	for i := 0; i < 2; i++ {
		w, err := NewWriter(path)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		e := sampleEntry()
		e.Record.TestID = i
		if err := w.Write(e); err != nil {
			t.Fatalf("Write: %v", err)
		}
		w.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got := strings.Count(string(data), "test_id"); got != 1 {
		t.Errorf("header rows = %d, want 1", got)
	}

	entries, _, err := LoadEntries(path)
	if err != nil {
		t.Fatalf("LoadEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("entries = %d, want 2", len(entries))
	}
}

func TestCSVRejectsMalformedRows(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"wrong column count", "1,2,3"},
		{"non-numeric field", "0,abc" + strings.Repeat(",0", 42) + ",true,false,1,1"},
		{"nan field", "0,NaN" + strings.Repeat(",0", 42) + ",true,false,1,1"},
		{"inf field", "0,+Inf" + strings.Repeat(",0", 42) + ",true,false,1,1"},
		{"bad boolean", "0,0" + strings.Repeat(",0", 42) + ",yes,false,1,1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "bad.csv")
			good := "0,0" + strings.Repeat(",0", 42) + ",false,false,100,100"
			content := tc.row + "\n" + good + "\n"
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}

			entries, rowErrs, err := LoadEntries(path)
			if err != nil {
				t.Fatalf("LoadEntries: %v", err)
			}
			if len(rowErrs) != 1 {
				t.Fatalf("row errors = %d, want 1 (%v)", len(rowErrs), rowErrs)
			}
			if !errors.Is(rowErrs[0], ErrInvalidScenario) {
				t.Errorf("row error = %v, want ErrInvalidScenario", rowErrs[0])
			}
			if len(entries) != 1 {
				t.Errorf("good rows loaded = %d, want 1", len(entries))
			}
		})
	}
}

func TestCSVMissingFile(t *testing.T) {
	if _, _, err := LoadEntries(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
