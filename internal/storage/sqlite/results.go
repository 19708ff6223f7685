package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/yegors/uav-cas/internal/scenario"
	"github.com/yegors/uav-cas/internal/sim"
	"github.com/yegors/uav-cas/pkg/logger"
	_ "modernc.org/sqlite"
)

// ResultStorage is a SQLite-based store for scenario results and the
// conflict events observed while producing them.
type ResultStorage struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewResultStorage creates a new SQLite-based result storage
func NewResultStorage(dbPath string, log *logger.Logger) (*ResultStorage, error) {
	storageLogger := log.Named("sqlite")

	storageLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		return nil, fmt.Errorf("failed to set synchronous mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initDatabase(db, storageLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &ResultStorage{
		db:     db,
		logger: storageLogger,
	}, nil
}

// Close closes the database connection
func (s *ResultStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GetDB returns the database connection
func (s *ResultStorage) GetDB() *sql.DB {
	return s.db
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS scenario_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			test_id INTEGER NOT NULL,
			avoidance INTEGER NOT NULL,
			physics_hz REAL NOT NULL,
			adsb_hz REAL NOT NULL,
			a1_init_pos_x REAL, a1_init_pos_y REAL, a1_init_pos_z REAL,
			a2_init_pos_x REAL, a2_init_pos_y REAL, a2_init_pos_z REAL,
			a1_init_speed_x REAL, a1_init_speed_y REAL, a1_init_speed_z REAL,
			a2_init_speed_x REAL, a2_init_speed_y REAL, a2_init_speed_z REAL,
			a1_final_pos_x REAL, a1_final_pos_y REAL, a1_final_pos_z REAL,
			a2_final_pos_x REAL, a2_final_pos_y REAL, a2_final_pos_z REAL,
			a1_final_speed_x REAL, a1_final_speed_y REAL, a1_final_speed_z REAL,
			a2_final_speed_x REAL, a2_final_speed_y REAL, a2_final_speed_z REAL,
			collision INTEGER NOT NULL,
			head_on_collision INTEGER NOT NULL,
			min_distance REAL NOT NULL,
			simulated_secs REAL NOT NULL,
			wall_secs REAL NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create scenario_results table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conflict_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			result_id INTEGER,
			adsb_cycle INTEGER NOT NULL,
			first_id INTEGER NOT NULL,
			second_id INTEGER NOT NULL,
			time_to_closest_approach REAL NOT NULL,
			miss_distance REAL NOT NULL,
			unresolved_region REAL NOT NULL,
			maneuver_issued INTEGER NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (result_id) REFERENCES scenario_results(id)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create conflict_events table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_results_test_id ON scenario_results(test_id)`)
	if err != nil {
		return fmt.Errorf("failed to create results index: %w", err)
	}

	return nil
}

// SaveResult inserts one finished run, discarding its row id. It
// satisfies scenario.Sink.
func (s *ResultStorage) SaveResult(res *scenario.Result) error {
	_, err := s.InsertResult(res)
	return err
}

// InsertResult inserts one finished run
func (s *ResultStorage) InsertResult(res *scenario.Result) (int64, error) {
	out, err := s.db.Exec(`
		INSERT INTO scenario_results (
			test_id, avoidance, physics_hz, adsb_hz,
			a1_init_pos_x, a1_init_pos_y, a1_init_pos_z,
			a2_init_pos_x, a2_init_pos_y, a2_init_pos_z,
			a1_init_speed_x, a1_init_speed_y, a1_init_speed_z,
			a2_init_speed_x, a2_init_speed_y, a2_init_speed_z,
			a1_final_pos_x, a1_final_pos_y, a1_final_pos_z,
			a2_final_pos_x, a2_final_pos_y, a2_final_pos_z,
			a1_final_speed_x, a1_final_speed_y, a1_final_speed_z,
			a2_final_speed_x, a2_final_speed_y, a2_final_speed_z,
			collision, head_on_collision, min_distance,
			simulated_secs, wall_secs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		res.Record.TestID, boolToInt(res.Avoidance), res.PhysicsHz, res.ADSBHz,
		res.Record.InitialPositions[0].X, res.Record.InitialPositions[0].Y, res.Record.InitialPositions[0].Z,
		res.Record.InitialPositions[1].X, res.Record.InitialPositions[1].Y, res.Record.InitialPositions[1].Z,
		res.Record.InitialVelocities[0].X, res.Record.InitialVelocities[0].Y, res.Record.InitialVelocities[0].Z,
		res.Record.InitialVelocities[1].X, res.Record.InitialVelocities[1].Y, res.Record.InitialVelocities[1].Z,
		res.Outcome.FinalPositions[0].X, res.Outcome.FinalPositions[0].Y, res.Outcome.FinalPositions[0].Z,
		res.Outcome.FinalPositions[1].X, res.Outcome.FinalPositions[1].Y, res.Outcome.FinalPositions[1].Z,
		res.Outcome.FinalVelocities[0].X, res.Outcome.FinalVelocities[0].Y, res.Outcome.FinalVelocities[0].Z,
		res.Outcome.FinalVelocities[1].X, res.Outcome.FinalVelocities[1].Y, res.Outcome.FinalVelocities[1].Z,
		boolToInt(res.Outcome.Collision), boolToInt(res.Outcome.HeadOnCollision), res.Outcome.MinimalRelativeDistance,
		res.SimulatedTime.Seconds(), res.WallTime.Seconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert result: %w", err)
	}
	id, err := out.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read result id: %w", err)
	}
	return id, nil
}

// InsertConflictEvent inserts one conflict observation. resultID may be
// zero when the owning run has not been persisted yet.
func (s *ResultStorage) InsertConflictEvent(resultID int64, ev sim.ConflictEvent) error {
	_, err := s.db.Exec(`
		INSERT INTO conflict_events (
			result_id, adsb_cycle, first_id, second_id,
			time_to_closest_approach, miss_distance, unresolved_region, maneuver_issued
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullableID(resultID), ev.Cycle, ev.FirstID, ev.SecondID,
		ev.TimeToClosestApproach, ev.MissDistance, ev.UnresolvedRegion, boolToInt(ev.ManeuverIssued),
	)
	if err != nil {
		return fmt.Errorf("failed to insert conflict event: %w", err)
	}
	return nil
}

// StoredResult is one persisted run row
type StoredResult struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Result    scenario.Result `json:"result"`
}

// GetResults returns the most recent persisted runs, newest first
func (s *ResultStorage) GetResults(limit int) ([]StoredResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT id, test_id, avoidance, physics_hz, adsb_hz,
			a1_final_pos_x, a1_final_pos_y, a1_final_pos_z,
			a2_final_pos_x, a2_final_pos_y, a2_final_pos_z,
			collision, head_on_collision, min_distance,
			simulated_secs, wall_secs, created_at
		FROM scenario_results
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	var results []StoredResult
	for rows.Next() {
		var r StoredResult
		var avoidance, collision, headOn int
		var simSecs, wallSecs float64
		if err := rows.Scan(
			&r.ID, &r.Result.Record.TestID, &avoidance, &r.Result.PhysicsHz, &r.Result.ADSBHz,
			&r.Result.Outcome.FinalPositions[0].X, &r.Result.Outcome.FinalPositions[0].Y, &r.Result.Outcome.FinalPositions[0].Z,
			&r.Result.Outcome.FinalPositions[1].X, &r.Result.Outcome.FinalPositions[1].Y, &r.Result.Outcome.FinalPositions[1].Z,
			&collision, &headOn, &r.Result.Outcome.MinimalRelativeDistance,
			&simSecs, &wallSecs, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Result.Avoidance = avoidance != 0
		r.Result.Outcome.Collision = collision != 0
		r.Result.Outcome.HeadOnCollision = headOn != 0
		r.Result.SimulatedTime = time.Duration(simSecs * float64(time.Second))
		r.Result.WallTime = time.Duration(wallSecs * float64(time.Second))
		results = append(results, r)
	}
	return results, rows.Err()
}

// CountResults returns the number of persisted runs
func (s *ResultStorage) CountResults() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM scenario_results`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count results: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
