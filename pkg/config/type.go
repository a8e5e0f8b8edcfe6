package config

type DatabaseConfig struct {
	// "postgres" or "sqlite"
	Driver string `toml:"driver"`
	// As used by the Java services, e.g. jdbc:postgresql://host:5432/uds
	JdbcURL  string `toml:"jdbc_url"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	Schema   string `toml:"schema"`
	// Only for the sqlite driver
	SQLitePath string `toml:"sqlite_path"`
}

type WindowConfig struct {
	// Longest time a single batch can cover
	MaxBatchDurationSeconds int `toml:"max_batch_duration_seconds"`
	StartGranularitySeconds int `toml:"start_granularity_seconds"`
	EndGranularitySeconds   int `toml:"end_granularity_seconds"`
	DefaultLookbackSeconds  int `toml:"default_lookback_seconds"`
	MinWidthSeconds         int `toml:"min_width_seconds"`
	MaxWidthSeconds         int `toml:"max_width_seconds"`
}

type ExplorerAPIConfig struct {
	ListenAddress string         `toml:"listen_address"`
	ListenPort    int            `toml:"listen_port"`
	Debug         bool           `toml:"debug"`
	Database      DatabaseConfig `toml:"database"`
	Window        WindowConfig   `toml:"window"`
}

type ValidatorConfig struct {
	Debug          bool           `toml:"debug"`
	GapToleranceMs int            `toml:"gap_tolerance_ms"`
	Concurrency    int            `toml:"concurrency"`
	Database       DatabaseConfig `toml:"database"`
}
