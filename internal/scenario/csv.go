package scenario

import (
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/yegors/uav-cas/internal/physics"
)

// ErrInvalidScenario marks a malformed scenario row: wrong column
// count, or a NaN/Inf numeric field.
var ErrInvalidScenario = errors.New("invalid scenario")

// columnCount is the fixed width of a scenario row: id and bearing,
// six coordinate triplets of initial state, eight triplets of final
// state, and the four outcome columns.
const columnCount = 48

// header is the scenario CSV schema, one row per scenario
var header = []string{
	"test_id", "aircraft_angle",
	"a1_init_pos_x", "a1_init_pos_y", "a1_init_pos_z",
	"a2_init_pos_x", "a2_init_pos_y", "a2_init_pos_z",
	"a1_init_speed_x", "a1_init_speed_y", "a1_init_speed_z",
	"a2_init_speed_x", "a2_init_speed_y", "a2_init_speed_z",
	"a1_init_target_x", "a1_init_target_y", "a1_init_target_z",
	"a2_init_target_x", "a2_init_target_y", "a2_init_target_z",
	"a1_final_pos_noavoid_x", "a1_final_pos_noavoid_y", "a1_final_pos_noavoid_z",
	"a2_final_pos_noavoid_x", "a2_final_pos_noavoid_y", "a2_final_pos_noavoid_z",
	"a1_final_pos_avoid_x", "a1_final_pos_avoid_y", "a1_final_pos_avoid_z",
	"a2_final_pos_avoid_x", "a2_final_pos_avoid_y", "a2_final_pos_avoid_z",
	"a1_final_speed_noavoid_x", "a1_final_speed_noavoid_y", "a1_final_speed_noavoid_z",
	"a2_final_speed_noavoid_x", "a2_final_speed_noavoid_y", "a2_final_speed_noavoid_z",
	"a1_final_speed_avoid_x", "a1_final_speed_avoid_y", "a1_final_speed_avoid_z",
	"a2_final_speed_avoid_x", "a2_final_speed_avoid_y", "a2_final_speed_avoid_z",
	"collision_noavoid", "collision_avoid",
	"min_dist_noavoid", "min_dist_avoid",
}

// RowError reports one rejected scenario row. The batch continues past
// it.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// rowParser consumes fields of one CSV row left to right, remembering
// the first failure.
type rowParser struct {
	fields []string
	idx    int
	err    error
}

func (p *rowParser) next() string {
	f := p.fields[p.idx]
	p.idx++
	return f
}

func (p *rowParser) float(name string) float64 {
	f := p.next()
	v, err := strconv.ParseFloat(f, 64)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%w: field %s: %q is not a number", ErrInvalidScenario, name, f)
	}
	if p.err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
		p.err = fmt.Errorf("%w: field %s: non-finite value", ErrInvalidScenario, name)
	}
	return v
}

func (p *rowParser) vec(name string) physics.Vec3 {
	return physics.Vec3{
		X: p.float(name + "_x"),
		Y: p.float(name + "_y"),
		Z: p.float(name + "_z"),
	}
}

func (p *rowParser) boolean(name string) bool {
	switch f := p.next(); f {
	case "true", "True":
		return true
	case "false", "False":
		return false
	default:
		if p.err == nil {
			p.err = fmt.Errorf("%w: field %s: %q is not a boolean", ErrInvalidScenario, name, f)
		}
		return false
	}
}

// LoadEntries reads a scenario CSV. Malformed rows are returned as
// RowErrors; well-formed rows load even when the file has bad ones, so
// a batch can proceed past a single corrupt scenario.
func LoadEntries(path string) ([]Entry, []RowError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open scenario file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // row width checked per record

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var entries []Entry
	var rowErrs []RowError
	for i, row := range rows {
		line := i + 1
		if len(row) > 0 && row[0] == "test_id" {
			continue
		}
		entry, err := parseRow(row)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Err: err})
			continue
		}
		entries = append(entries, entry)
	}

	return entries, rowErrs, nil
}

func parseRow(row []string) (Entry, error) {
	if len(row) != columnCount {
		return Entry{}, fmt.Errorf("%w: expected %d columns, got %d", ErrInvalidScenario, columnCount, len(row))
	}

	p := &rowParser{fields: row}
	var e Entry

	id := p.next()
	testID, err := strconv.Atoi(id)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: field test_id: %q is not an integer", ErrInvalidScenario, id)
	}
	e.Record.TestID = testID
	e.Record.AircraftAngle = p.float("aircraft_angle")
	e.Record.InitialPositions[0] = p.vec("a1_init_pos")
	e.Record.InitialPositions[1] = p.vec("a2_init_pos")
	e.Record.InitialVelocities[0] = p.vec("a1_init_speed")
	e.Record.InitialVelocities[1] = p.vec("a2_init_speed")
	e.Record.InitialTargets[0] = p.vec("a1_init_target")
	e.Record.InitialTargets[1] = p.vec("a2_init_target")
	e.NoAvoid.FinalPositions[0] = p.vec("a1_final_pos_noavoid")
	e.NoAvoid.FinalPositions[1] = p.vec("a2_final_pos_noavoid")
	e.Avoid.FinalPositions[0] = p.vec("a1_final_pos_avoid")
	e.Avoid.FinalPositions[1] = p.vec("a2_final_pos_avoid")
	e.NoAvoid.FinalVelocities[0] = p.vec("a1_final_speed_noavoid")
	e.NoAvoid.FinalVelocities[1] = p.vec("a2_final_speed_noavoid")
	e.Avoid.FinalVelocities[0] = p.vec("a1_final_speed_avoid")
	e.Avoid.FinalVelocities[1] = p.vec("a2_final_speed_avoid")
	e.NoAvoid.Collision = p.boolean("collision_noavoid")
	e.Avoid.Collision = p.boolean("collision_avoid")
	e.NoAvoid.MinimalRelativeDistance = p.float("min_dist_noavoid")
	e.Avoid.MinimalRelativeDistance = p.float("min_dist_avoid")

	if p.err != nil {
		return Entry{}, p.err
	}
	return e, nil
}

// Writer appends scenario rows to a CSV file, writing the header when
// the file is created.
type Writer struct {
	file *os.File
	csv  *csv.Writer
}

// NewWriter opens (or creates) the file at path for appending rows
func NewWriter(path string) (*Writer, error) {
	info, err := os.Stat(path)
	fresh := os.IsNotExist(err) || (err == nil && info.Size() == 0)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}

	w := &Writer{file: file, csv: csv.NewWriter(file)}
	if fresh {
		if err := w.csv.Write(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return w, nil
}

// Write appends one entry row
func (w *Writer) Write(e Entry) error {
	row := make([]string, 0, columnCount)
	row = append(row, strconv.Itoa(e.Record.TestID), formatFloat(e.Record.AircraftAngle))
	row = appendVec(row, e.Record.InitialPositions[0])
	row = appendVec(row, e.Record.InitialPositions[1])
	row = appendVec(row, e.Record.InitialVelocities[0])
	row = appendVec(row, e.Record.InitialVelocities[1])
	row = appendVec(row, e.Record.InitialTargets[0])
	row = appendVec(row, e.Record.InitialTargets[1])
	row = appendVec(row, e.NoAvoid.FinalPositions[0])
	row = appendVec(row, e.NoAvoid.FinalPositions[1])
	row = appendVec(row, e.Avoid.FinalPositions[0])
	row = appendVec(row, e.Avoid.FinalPositions[1])
	row = appendVec(row, e.NoAvoid.FinalVelocities[0])
	row = appendVec(row, e.NoAvoid.FinalVelocities[1])
	row = appendVec(row, e.Avoid.FinalVelocities[0])
	row = appendVec(row, e.Avoid.FinalVelocities[1])
	row = append(row,
		strconv.FormatBool(e.NoAvoid.Collision),
		strconv.FormatBool(e.Avoid.Collision),
		formatFloat(e.NoAvoid.MinimalRelativeDistance),
		formatFloat(e.Avoid.MinimalRelativeDistance),
	)

	if err := w.csv.Write(row); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Close flushes and closes the underlying file
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func appendVec(row []string, v physics.Vec3) []string {
	return append(row, formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
