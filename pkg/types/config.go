package types

import (
	"errors"
	"path/filepath"
	"time"
)

// Config holds backend selection and parameters for opening a persistent store.
type Config struct {
	Backend      string `json:"backend" yaml:"backend"`
	DataDir      string `json:"data_dir" yaml:"data_dir"`
	DatabaseFile string `json:"database_file,omitempty" yaml:"database_file,omitempty"`

	// ModelFile is the schema document; ModelVersion overrides its current version.
	ModelFile    string `json:"model_file,omitempty" yaml:"model_file,omitempty"`
	ModelVersion string `json:"model_version,omitempty" yaml:"model_version,omitempty"`

	LogLevel           string        `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	SlowQueryThreshold time.Duration `json:"slow_query_threshold,omitempty" yaml:"slow_query_threshold,omitempty"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// DefaultDatabaseFile is used when Config.DatabaseFile is empty.
const DefaultDatabaseFile = "larder.db"

// Config validation errors.
var (
	ErrBackendEmpty       = errors.New("backend must not be empty")
	ErrBackendUnknown     = errors.New("unknown backend")
	ErrDatabaseFileNested = errors.New("database file must be a bare file name")
	ErrThresholdNegative  = errors.New("slow query threshold must not be negative")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if c.DatabaseFile != "" && filepath.Base(c.DatabaseFile) != c.DatabaseFile {
		return ErrDatabaseFileNested
	}
	if c.SlowQueryThreshold < 0 {
		return ErrThresholdNegative
	}
	return nil
}

// DatabasePath returns the database file location inside DataDir.
func (c Config) DatabasePath() string {
	name := c.DatabaseFile
	if name == "" {
		name = DefaultDatabaseFile
	}
	dir := c.DataDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name)
}
