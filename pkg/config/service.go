package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/waveform_explorer/pkg/pathing"
	"github.com/NotCoffee418/waveform_explorer/pkg/streamquery"
	"github.com/NotCoffee418/waveform_explorer/pkg/validator"
	"github.com/NotCoffee418/waveform_explorer/pkg/wfutils"
	"github.com/NotCoffee418/waveform_explorer/pkg/window"
)

func DefaultExplorerAPIConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "explorer_api.toml")
}

func DefaultValidatorConfigPath() string {
	return filepath.Join(pathing.GetConfigDir(), "validator.toml")
}

func defaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:     "postgres",
		JdbcURL:    "jdbc:postgresql://localhost:5433/fakeuds",
		Username:   "inform_user",
		Schema:     "uds_schema",
		SQLitePath: pathing.GetLocalDbPath(),
	}
}

func defaultWindowConfig() WindowConfig {
	return WindowConfig{
		MaxBatchDurationSeconds: 30,
		StartGranularitySeconds: 10,
		EndGranularitySeconds:   5,
		DefaultLookbackSeconds:  15,
		MinWidthSeconds:         1,
		MaxWidthSeconds:         30,
	}
}

// LoadExplorerAPIConfig reads the API config, writing the defaults first if the file does not exist.
// UDS_* environment variables override the database section.
func LoadExplorerAPIConfig(configPath string) (*ExplorerAPIConfig, error) {
	cfg, err := loadOrCreate(configPath, &ExplorerAPIConfig{
		ListenAddress: "0.0.0.0",
		ListenPort:    8501,
		Database:      defaultDatabaseConfig(),
		Window:        defaultWindowConfig(),
	})
	if err != nil {
		return nil, err
	}
	cfg.Database.applyEnv()
	return cfg, nil
}

func LoadValidatorConfig(configPath string) (*ValidatorConfig, error) {
	cfg, err := loadOrCreate(configPath, &ValidatorConfig{
		GapToleranceMs: 1,
		Concurrency:    4,
		Database:       defaultDatabaseConfig(),
	})
	if err != nil {
		return nil, err
	}
	cfg.Database.applyEnv()
	return cfg, nil
}

func loadOrCreate[T any](configPath string, defaults *T) (*T, error) {
	// Create default if not exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfgFile, err := os.Create(configPath)
		if err != nil {
			return nil, err
		}
		defer cfgFile.Close()
		if err := toml.NewEncoder(cfgFile).Encode(defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}

	// Load existing config on top of the defaults, so missing keys keep their default
	if _, err := toml.DecodeFile(configPath, defaults); err != nil {
		return nil, err
	}
	return defaults, nil
}

func (d *DatabaseConfig) applyEnv() {
	overrides := map[string]*string{
		"UDS_JDBC_URL": &d.JdbcURL,
		"UDS_USERNAME": &d.Username,
		"UDS_PASSWORD": &d.Password,
		"UDS_SCHEMA":   &d.Schema,
	}
	for name, field := range overrides {
		if v := os.Getenv(name); v != "" {
			*field = v
		}
	}
}

func (w WindowConfig) Normalizer() window.Normalizer {
	return window.Normalizer{
		MaxBatchDuration: wfutils.SecondsToDuration(w.MaxBatchDurationSeconds),
		StartGranularity: wfutils.SecondsToDuration(w.StartGranularitySeconds),
		EndGranularity:   wfutils.SecondsToDuration(w.EndGranularitySeconds),
	}
}

func (w WindowConfig) StreamQueryOptions() streamquery.Options {
	return streamquery.Options{
		Normalizer:      w.Normalizer(),
		DefaultLookback: wfutils.SecondsToDuration(w.DefaultLookbackSeconds),
		MinWidth:        wfutils.SecondsToDuration(w.MinWidthSeconds),
		MaxWidth:        wfutils.SecondsToDuration(w.MaxWidthSeconds),
	}
}

func (v *ValidatorConfig) ValidatorOptions() validator.Options {
	return validator.Options{
		Tolerance:   time.Duration(v.GapToleranceMs) * time.Millisecond,
		Concurrency: v.Concurrency,
	}
}
