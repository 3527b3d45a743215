// Package sqlite provides the public API for the SQLite persistent store.
// This package exposes the store constructor and its options while keeping
// implementation details internal.
package sqlite

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/larder/internal/sqlite"
	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Store is the SQLite persistent store.
type Store = sqlite.Store

// Option configures a Store.
type Option = sqlite.Option

// StatsSnapshot is a point-in-time copy of a store's statement counters.
type StatsSnapshot = sqlite.StatsSnapshot

// NewStore creates a store for the database described by cfg. The database
// is opened and its schema checked on the first request.
//
// Example:
//
//	store, err := sqlite.NewStore(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".larder-db",
//	})
//	if err != nil { ... }
//	defer store.Close()
//	coord := larder.NewCoordinator(m)
//	coord.AddStore(store)
func NewStore(cfg types.Config, opts ...Option) (*Store, error) {
	return sqlite.NewStore(cfg, opts...)
}

// NewStoreWithDB creates a store over an already opened database handle.
func NewStoreWithDB(db *sql.DB, opts ...Option) *Store {
	return sqlite.NewStoreWithDB(db, opts...)
}

// WithLogger sets the store's structured logger.
func WithLogger(l *zap.SugaredLogger) Option { return sqlite.WithLogger(l) }

// WithDelegate registers a delegate notified after the schema is created.
func WithDelegate(d larder.StoreDelegate) Option { return sqlite.WithDelegate(d) }

// WithSlowQueryThreshold sets the slow statement threshold.
func WithSlowQueryThreshold(d time.Duration) Option { return sqlite.WithSlowQueryThreshold(d) }
