package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server     ServerConfig     `toml:"server"`     // HTTP telemetry server settings
	Logging    LoggingConfig    `toml:"logging"`    // Application logging settings
	Simulation SimulationConfig `toml:"simulation"` // Core engine parameters
	Scenarios  ScenariosConfig  `toml:"scenarios"`  // Scenario file locations
	Storage    StorageConfig    `toml:"storage"`    // Data persistence settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Host             string `toml:"host"`                  // Host address to bind to
	Port             int    `toml:"port"`                  // Primary HTTP port for the telemetry server
	ReadTimeoutSecs  int    `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs int    `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs  int    `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// SimulationConfig contains the core engine parameters. Frequencies are
// per-run scenario parameters; these are the defaults a run starts from.
type SimulationConfig struct {
	PhysicsHz           float64 `toml:"physics_hz"`             // Fixed-step integrator rate
	ADSBHz              float64 `toml:"adsb_hz"`                // Surveillance observer rate
	RollDynamicDelayMs  int     `toml:"roll_dynamic_delay_ms"`  // Time for a full 90 degree roll swing
	PitchDynamicDelayMs int     `toml:"pitch_dynamic_delay_ms"` // Time for a full 45 degree pitch swing
	MaxAccelerationMps2 float64 `toml:"max_acceleration_mps2"`  // Speed channel convergence limit
	VehicleSizeM        float64 `toml:"vehicle_size_m"`         // Collision sphere radius
	MinimumSeparationM  float64 `toml:"minimum_separation_m"`   // Safe-zone radius
	ConflictHorizonSecs float64 `toml:"conflict_horizon_secs"`  // Conflicts projected beyond this are ignored
	WorldBoundM         float64 `toml:"world_bound_m"`          // Destinations are snapped inside this bound
}

// ScenariosConfig contains scenario file locations
type ScenariosConfig struct {
	DataDir    string `toml:"data_dir"`    // Directory for scenario and result CSV files
	ActiveFile string `toml:"active_file"` // Currently-active scenario file name
	VisitedDir string `toml:"visited_dir"` // Directory for visited-trail exports
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	SQLiteBasePath string `toml:"sqlite_base_path"` // Base path for SQLite database files
}

// Default returns the built-in configuration: 100 Hz physics, 1 Hz
// ADS-B, 5 m vehicles with a 50 m safe zone and a 30 s conflict
// horizon.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8080,
			ReadTimeoutSecs:  30,
			WriteTimeoutSecs: 30,
			IdleTimeoutSecs:  60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Simulation: SimulationConfig{
			PhysicsHz:           100,
			ADSBHz:              1,
			RollDynamicDelayMs:  1000,
			PitchDynamicDelayMs: 2000,
			MaxAccelerationMps2: 2,
			VehicleSizeM:        5,
			MinimumSeparationM:  50,
			ConflictHorizonSecs: 30,
			WorldBoundM:         1_000_000,
		},
		Scenarios: ScenariosConfig{
			DataDir:    "data",
			ActiveFile: "simulation.csv",
			VisitedDir: "logs/visited",
		},
		Storage: StorageConfig{
			SQLiteBasePath: "data",
		},
	}
}

// Load loads the configuration from the specified file path, applied on
// top of the defaults
func Load(path string) (*Config, error) {
	config := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return config, nil
}

// LoadWithFallback loads the configuration by checking multiple
// locations in order of preference. With no file found anywhere the
// defaults are returned.
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	for _, path := range searchPaths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
			return config, nil
		}
	}

	return Default(), nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	s := c.Simulation
	if s.PhysicsHz <= 0 {
		return fmt.Errorf("invalid physics_hz: %g (must be > 0)", s.PhysicsHz)
	}
	if s.ADSBHz <= 0 {
		return fmt.Errorf("invalid adsb_hz: %g (must be > 0)", s.ADSBHz)
	}
	if s.ADSBHz > s.PhysicsHz {
		return fmt.Errorf("adsb_hz (%g) must not exceed physics_hz (%g)", s.ADSBHz, s.PhysicsHz)
	}
	if s.RollDynamicDelayMs <= 0 {
		return fmt.Errorf("invalid roll_dynamic_delay_ms: %d (must be > 0)", s.RollDynamicDelayMs)
	}
	if s.PitchDynamicDelayMs <= 0 {
		return fmt.Errorf("invalid pitch_dynamic_delay_ms: %d (must be > 0)", s.PitchDynamicDelayMs)
	}
	if s.MaxAccelerationMps2 <= 0 {
		return fmt.Errorf("invalid max_acceleration_mps2: %g (must be > 0)", s.MaxAccelerationMps2)
	}
	if s.VehicleSizeM <= 0 {
		return fmt.Errorf("invalid vehicle_size_m: %g (must be > 0)", s.VehicleSizeM)
	}
	if s.MinimumSeparationM <= 0 {
		return fmt.Errorf("invalid minimum_separation_m: %g (must be > 0)", s.MinimumSeparationM)
	}
	if s.ConflictHorizonSecs <= 0 {
		return fmt.Errorf("invalid conflict_horizon_secs: %g (must be > 0)", s.ConflictHorizonSecs)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}
