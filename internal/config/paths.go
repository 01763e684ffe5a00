package config

import (
	"os"
	"path/filepath"
)

const defaultBaseDir = ".agendabot"

// Paths holds resolved filesystem paths for agendabot data.
type Paths struct {
	Base   string // ~/.agendabot
	Config string // ~/.agendabot/config.yaml
	Data   string // ~/.agendabot/data
	Logs   string // ~/.agendabot/logs
}

// ResolvePaths computes the standard paths. AGENDABOT_HOME overrides the
// base directory.
func ResolvePaths() (Paths, error) {
	base := os.Getenv("AGENDABOT_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, err
		}
		base = filepath.Join(home, defaultBaseDir)
	}

	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}, nil
}

// Database returns the sqlite path, honoring an explicit store.path.
func (p Paths) Database(cfg *Config) string {
	if cfg != nil && cfg.Store.Path != "" {
		return cfg.Store.Path
	}
	return filepath.Join(p.Data, "agendabot.db")
}

// EnsureDirs creates all standard directories if they don't exist.
func (p Paths) EnsureDirs() error {
	for _, d := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(d, 0o700); err != nil {
			return err
		}
	}
	return nil
}
