package pathing

import (
	"os"
	"path/filepath"
)

// EnsureDirs creates the directories the binaries write to.
func EnsureDirs() error {
	// Directories that must exist:
	dirs := []string{
		GetDataDir(),
		GetConfigDir(),
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return err
			}
		}
	}
	return nil
}

// Local SQLite copy of the waveform table
func GetLocalDbPath() string {
	return filepath.Join(GetDataDir(), "waveform.db")
}

func GetDataDir() string {
	if dir := os.Getenv("WAVEFORM_DATA_DIR"); dir != "" {
		return dir
	}
	return "/var/lib/waveform_explorer"
}

func GetConfigDir() string {
	if dir := os.Getenv("WAVEFORM_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/waveform_explorer"
}
