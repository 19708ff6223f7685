package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/yegors/uav-cas/internal/api"
	"github.com/yegors/uav-cas/internal/config"
	"github.com/yegors/uav-cas/internal/scenario"
	"github.com/yegors/uav-cas/internal/sim"
	"github.com/yegors/uav-cas/internal/storage/sqlite"
	"github.com/yegors/uav-cas/internal/websocket"
	"github.com/yegors/uav-cas/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

const (
	defaultRunDuration = 10_000 * time.Second
	loadCheckTolerance = 1e-3 // meters over a full run
	defaultTestCount   = 10
	maxTestCount       = 100
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	app := &app{cfg: cfg, logger: log}

	args := flag.Args()
	mode := ""
	if len(args) > 0 {
		mode = args[0]
		args = args[1:]
	}

	var exitCode int
	switch mode {
	case "", "help":
		topic := ""
		if len(args) > 0 {
			topic = args[0]
		}
		printHelp(topic)
	case "version":
		fmt.Printf("uavsim %s\n", Version)
	case "headless":
		exitCode = app.runHeadless()
	case "tests":
		n := defaultTestCount
		if len(args) > 0 {
			if parsed, err := strconv.Atoi(args[0]); err == nil {
				n = parsed
			} else {
				fmt.Fprintf(os.Stderr, "Invalid test count: %s\n", args[0])
				os.Exit(1)
			}
		}
		exitCode = app.runTests(n)
	case "load":
		exitCode = app.runLoad(args)
	case "realtime":
		exitCode = app.runRealtime(args)
	case "ongoing":
		exitCode = app.runRealtime([]string{"", "0", "true"})
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode: %s\n\n", mode)
		printHelp("")
		exitCode = 1
	}
	os.Exit(exitCode)
}

type app struct {
	cfg    *config.Config
	logger *logger.Logger
}

func (a *app) newRunner(clock sim.Clock) *scenario.Runner {
	return scenario.NewRunner(a.cfg.Simulation, clock, a.logger)
}

// runHeadless runs the built-in presets without avoidance and with it,
// printing each outcome.
func (a *app) runHeadless() int {
	runner := a.newRunner(sim.SystemClock())
	ctx, cancel := signalContext()
	defer cancel()

	for _, rec := range scenario.Presets() {
		entry, err := runner.RunPair(ctx, rec, defaultRunDuration)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scenario %d failed: %v\n", rec.TestID, err)
			continue
		}
		fmt.Printf("Scenario %d: collision(no avoidance)=%v min_dist=%.2f m, collision(avoidance)=%v min_dist=%.2f m\n",
			rec.TestID,
			entry.NoAvoid.Collision, entry.NoAvoid.MinimalRelativeDistance,
			entry.Avoid.Collision, entry.Avoid.MinimalRelativeDistance,
		)
	}
	return 0
}

// runTests runs n scenarios through paired avoidance-off/on runs and
// writes the outcome rows to a timestamped CSV plus the active file.
func (a *app) runTests(n int) int {
	if n < defaultTestCount {
		n = defaultTestCount
	} else if n > maxTestCount {
		n = maxTestCount
	}

	presets := scenario.Presets()
	records := make([]scenario.Record, 0, n)
	for i := 0; i < n; i++ {
		rec := presets[i%len(presets)]
		rec.TestID = i
		records = append(records, rec)
	}

	if err := os.MkdirAll(a.cfg.Scenarios.DataDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create data directory: %v\n", err)
		return 1
	}

	started := time.Now()
	outPath := filepath.Join(a.cfg.Scenarios.DataDir, scenario.ResultsFileName(started))
	writer, err := scenario.NewWriter(outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open results file: %v\n", err)
		return 1
	}
	defer writer.Close()

	runner := a.newRunner(sim.SystemClock())
	if storage := a.openStorage(); storage != nil {
		defer storage.Close()
		runner.SetSink(storage)
	}

	ctx, cancel := signalContext()
	defer cancel()

	stats, err := runner.RunBatch(ctx, records, defaultRunDuration, writer)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Batch aborted: %v\n", err)
		return 1
	}

	// The latest batch becomes the currently-active scenario file.
	activePath := filepath.Join(a.cfg.Scenarios.DataDir, a.cfg.Scenarios.ActiveFile)
	if data, err := os.ReadFile(outPath); err == nil {
		if err := os.WriteFile(activePath, data, 0644); err != nil {
			a.logger.Warn("Failed to update active scenario file", logger.Error(err))
		}
	}

	fmt.Printf("Tests finished: %d passed, %d failed, elapsed %.2fs\n",
		stats.Passed, stats.Failed, time.Since(started).Seconds())
	if stats.Failed > 0 {
		return 1
	}
	return 0
}

// runLoad replays one recorded scenario with avoidance off and on and
// compares the outcomes against the file's recorded columns.
func (a *app) runLoad(args []string) int {
	path := filepath.Join(a.cfg.Scenarios.DataDir, a.cfg.Scenarios.ActiveFile)
	index := 0
	if len(args) > 0 && args[0] != "" {
		path = args[0]
	}
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid scenario index: %s\n", args[1])
			return 1
		}
		index = parsed
	}

	entries, rowErrs, err := scenario.LoadEntries(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenarios: %v\n", err)
		return 1
	}
	for _, re := range rowErrs {
		fmt.Fprintf(os.Stderr, "Skipped scenario: %v\n", re)
	}
	if index < 0 || index >= len(entries) {
		fmt.Fprintf(os.Stderr, "Scenario index %d out of range (%d loaded)\n", index, len(entries))
		return 1
	}

	entry := entries[index]
	runner := a.newRunner(sim.SystemClock())
	ctx, cancel := signalContext()
	defer cancel()

	replayed, err := runner.RunPair(ctx, entry.Record, defaultRunDuration)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Replay failed: %v\n", err)
		return 1
	}

	ok := true
	ok = compareOutcome("no-avoidance", entry.NoAvoid, replayed.NoAvoid) && ok
	ok = compareOutcome("avoidance", entry.Avoid, replayed.Avoid) && ok
	if !ok {
		fmt.Println("Replay diverged from recorded outcome")
		return 1
	}
	fmt.Println("Replay matches recorded outcome")
	return 0
}

func compareOutcome(label string, want, got scenario.Outcome) bool {
	ok := true
	for i := 0; i < 2; i++ {
		if d := want.FinalPositions[i].DistanceTo(got.FinalPositions[i]); d > loadCheckTolerance {
			fmt.Printf("%s: aircraft %d final position differs by %.4f m\n", label, i+1, d)
			ok = false
		}
	}
	if want.Collision != got.Collision {
		fmt.Printf("%s: collision flag differs (recorded %v, replayed %v)\n", label, want.Collision, got.Collision)
		ok = false
	}
	if math.Abs(want.MinimalRelativeDistance-got.MinimalRelativeDistance) > loadCheckTolerance {
		fmt.Printf("%s: minimal distance differs (recorded %.4f, replayed %.4f)\n",
			label, want.MinimalRelativeDistance, got.MinimalRelativeDistance)
		ok = false
	}
	return ok
}

// runRealtime runs one scenario on the wall clock with the telemetry
// server attached.
func (a *app) runRealtime(args []string) int {
	rec := scenario.Presets()[0]
	avoid := true

	if len(args) > 0 && args[0] != "" {
		path := args[0]
		index := 0
		if len(args) > 1 {
			parsed, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid scenario index: %s\n", args[1])
				return 1
			}
			index = parsed
		}
		entries, rowErrs, err := scenario.LoadEntries(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load scenarios: %v\n", err)
			return 1
		}
		for _, re := range rowErrs {
			fmt.Fprintf(os.Stderr, "Skipped scenario: %v\n", re)
		}
		if index < 0 || index >= len(entries) {
			fmt.Fprintf(os.Stderr, "Scenario index %d out of range (%d loaded)\n", index, len(entries))
			return 1
		}
		rec = entries[index].Record
	}
	if len(args) > 2 {
		parsed, err := strconv.ParseBool(args[2])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid avoidance flag: %s\n", args[2])
			return 1
		}
		avoid = parsed
	}

	log := a.logger
	runner := a.newRunner(sim.SystemClock())

	storage := a.openStorage()
	if storage != nil {
		defer storage.Close()
		runner.SetSink(storage)
	}

	wsServer := websocket.NewServer(log)
	go wsServer.Run()

	// Telemetry fan-out at tick boundaries: vehicle state at the
	// surveillance cadence, every conflict as it is declared.
	ratio := uint64(a.cfg.Simulation.PhysicsHz / a.cfg.Simulation.ADSBHz)
	if ratio == 0 {
		ratio = 1
	}
	runner.SetTickObserver(func(cycle uint64, simulated time.Duration, snapshots []sim.VehicleSnapshot) {
		if cycle%ratio != 0 {
			return
		}
		wsServer.Broadcast(websocket.StateUpdateMessage(cycle, simulated.Seconds(), snapshots))
	})
	runner.SetConflictObserver(func(ev sim.ConflictEvent) {
		wsServer.Broadcast(&websocket.Message{
			Type: websocket.MessageTypeConflictAlert,
			Data: map[string]any{"conflict": ev},
		})
		if storage != nil {
			if err := storage.InsertConflictEvent(0, ev); err != nil {
				log.Error("Failed to persist conflict event", logger.Error(err))
			}
		}
	})

	provider := &simulationProvider{runner: runner}
	var results api.ResultStore
	if storage != nil {
		results = storage
	}
	router := api.NewRouter(provider, results, wsServer, log)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(a.cfg.Server.IdleTimeoutSecs) * time.Second,
	}
	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", logger.Error(err))
		}
	}()

	ctx, cancel := signalContext()
	defer cancel()

	res, err := runner.RunRealtime(ctx, rec, scenario.RunParams{
		AvoidCollisions: avoid,
		Duration:        defaultRunDuration,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Realtime run failed: %v\n", err)
		return 1
	}

	wsServer.Broadcast(&websocket.Message{
		Type: websocket.MessageTypeRunComplete,
		Data: map[string]any{"result": res},
	})
	fmt.Printf("Run finished: collision=%v min_dist=%.2f m simulated=%.2fs\n",
		res.Outcome.Collision, res.Outcome.MinimalRelativeDistance, res.SimulatedTime.Seconds())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	}
	return 0
}

func (a *app) openStorage() *sqlite.ResultStorage {
	if a.cfg.Storage.SQLiteBasePath == "" {
		return nil
	}
	if err := os.MkdirAll(a.cfg.Storage.SQLiteBasePath, 0755); err != nil {
		a.logger.Error("Failed to create database directory", logger.Error(err))
		return nil
	}
	dbPath := filepath.Join(a.cfg.Storage.SQLiteBasePath,
		fmt.Sprintf("uav-cas-%s.db", time.Now().Format("2006-01-02")))
	storage, err := sqlite.NewResultStorage(dbPath, a.logger)
	if err != nil {
		a.logger.Error("Failed to create SQLite storage", logger.Error(err))
		return nil
	}
	return storage
}

// simulationProvider adapts the runner to the API surface
type simulationProvider struct {
	runner *scenario.Runner
}

func (p *simulationProvider) State() *sim.State {
	state, _ := p.runner.Current()
	return state
}

func (p *simulationProvider) Snapshots() []sim.VehicleSnapshot {
	_, phys := p.runner.Current()
	if phys == nil {
		return nil
	}
	return phys.Snapshots()
}

func (p *simulationProvider) Scenarios() []scenario.Entry {
	return nil
}

func (p *simulationProvider) TogglePause() {
	state, _ := p.runner.Current()
	if state != nil {
		state.TogglePause(time.Now())
	}
}

func (p *simulationProvider) DemandReset() {
	state, _ := p.runner.Current()
	if state != nil {
		state.DemandReset()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printHelp(topic string) {
	switch topic {
	case "realtime":
		fmt.Println("usage: uavsim realtime [file] [index] [avoid]")
		fmt.Println("Runs one scenario on the wall clock with the telemetry server attached.")
		fmt.Println("With no file the first built-in preset is used. avoid is true/false.")
	case "headless":
		fmt.Println("usage: uavsim headless")
		fmt.Println("Runs the built-in presets as fast as possible and prints each outcome.")
	case "tests":
		fmt.Println("usage: uavsim tests [N]")
		fmt.Println("Runs N scenarios (10-100) through paired avoidance-off/on runs and")
		fmt.Println("writes the outcome rows to data/simulation-<timestamp>.csv.")
	case "load":
		fmt.Println("usage: uavsim load [file] [index]")
		fmt.Println("Replays one recorded scenario and verifies it against the file's columns.")
	case "ongoing":
		fmt.Println("usage: uavsim ongoing")
		fmt.Println("Runs the default preset on the wall clock with avoidance enabled.")
	default:
		fmt.Println("uavsim - two-aircraft collision-avoidance study simulator")
		fmt.Println()
		fmt.Println("usage: uavsim [-config path] <mode> [args]")
		fmt.Println()
		fmt.Println("modes:")
		fmt.Println("  realtime [file] [index] [avoid]  run one scenario on the wall clock")
		fmt.Println("  headless                         run the built-in presets, print outcomes")
		fmt.Println("  tests [N]                        run N paired test scenarios, export CSV")
		fmt.Println("  ongoing                          continuous realtime run, avoidance on")
		fmt.Println("  load [file] [index]              replay and verify a recorded scenario")
		fmt.Println("  help [mode]                      show help for a mode")
		fmt.Println("  version                          print the version")
	}
}
