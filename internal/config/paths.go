package config

import (
	"os"
	"path/filepath"
)

// Paths holds resolved filesystem locations for config and data.
type Paths struct {
	Config string // config file path
	Data   string // data directory (sqlite database lives here)
}

// ResolvePaths determines config and data locations. TABLECALL_HOME
// overrides the default ~/.tablecall directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("TABLECALL_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, ".tablecall")
	}

	return Paths{
		Config: filepath.Join(base, "config.yaml"),
		Data:   base,
	}, nil
}
