// Package sqlite implements the relational persistent store for larder on
// top of SQLite. Every entity maps to a table named after its plural, every
// relationship pair to a join table, and a Z_METADATA table records the
// model version the schema was built from.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// Store implements larder.PersistentStore using SQLite.
type Store struct {
	mu          sync.Mutex
	id          string
	config      types.Config
	db          *sql.DB
	opened      bool
	closed      bool
	coordinator *larder.Coordinator
	delegate    larder.StoreDelegate
	logger      *zap.SugaredLogger
	threshold   time.Duration
	stats       *QueryStats
}

var _ larder.PersistentStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDelegate registers a delegate notified after the schema is created.
func WithDelegate(d larder.StoreDelegate) Option {
	return func(s *Store) { s.delegate = d }
}

// WithSlowQueryThreshold sets the duration above which statements are
// logged and counted as slow. Zero disables the check.
func WithSlowQueryThreshold(d time.Duration) Option {
	return func(s *Store) { s.threshold = d }
}

func newStore(opts ...Option) *Store {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	s := &Store{
		id:        id.String(),
		logger:    zap.NewNop().Sugar(),
		threshold: DefaultSlowQueryThreshold,
		stats:     &QueryStats{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStore creates a store for the database file described by cfg. The
// data directory is created if needed; the database itself is opened on
// the first request.
func NewStore(cfg types.Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if cfg.SlowQueryThreshold > 0 {
		opts = append([]Option{WithSlowQueryThreshold(cfg.SlowQueryThreshold)}, opts...)
	}
	s := newStore(opts...)
	s.config = cfg
	return s, nil
}

// NewStoreWithDB creates a store over an already opened database handle.
func NewStoreWithDB(db *sql.DB, opts ...Option) *Store {
	s := newStore(opts...)
	s.db = db
	s.opened = true
	return s
}

// ID returns the store's unique identifier.
func (s *Store) ID() string { return s.id }

// Path returns the database file path, or "" for a store built on a handle.
func (s *Store) Path() string {
	if s.config.Backend == "" {
		return ""
	}
	return s.config.DatabasePath()
}

// Stats returns a snapshot of the statement counters.
func (s *Store) Stats() StatsSnapshot { return s.stats.Stats() }

// Coordinator returns the coordinator the store is attached to.
func (s *Store) Coordinator() *larder.Coordinator { return s.coordinator }

// SetCoordinator attaches the store to c; nil detaches it.
func (s *Store) SetCoordinator(c *larder.Coordinator) { s.coordinator = c }

// Close releases the database handle. Closing twice is a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// ExecuteRequest validates the database schema against the coordinator's
// model and then performs req.
func (s *Store) ExecuteRequest(req larder.Request) ([]*larder.ManagedObject, error) {
	if s.coordinator == nil {
		return nil, types.NewPersistentStoreError("execute request", types.ErrCoordinatorUnavailable)
	}
	c, err := s.connection()
	if err != nil {
		return nil, err
	}
	if err := s.ensureDatabaseConsistency(c); err != nil {
		return nil, err
	}

	switch r := req.(type) {
	case *larder.SaveRequest:
		return s.executeSaveRequest(c, r)
	case *larder.FetchRequest:
		return s.executeFetchRequest(c, r)
	case *larder.FaultRequest:
		return s.executeFaultRequest(c, r)
	default:
		return nil, types.NewPersistentStoreError("execute request", types.ErrUnsupportedRequest)
	}
}

// EnsureDatabaseConsistency creates the schema for the coordinator's model
// when the database is empty and verifies its version otherwise.
func (s *Store) EnsureDatabaseConsistency() error {
	if s.coordinator == nil {
		return types.NewPersistentStoreError("check schema", types.ErrCoordinatorUnavailable)
	}
	c, err := s.connection()
	if err != nil {
		return err
	}
	return s.ensureDatabaseConsistency(c)
}

func (s *Store) model() *model.Model { return s.coordinator.Model() }

func (s *Store) connection() (*conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, types.NewPersistentStoreError("open", types.ErrStoreClosed)
	}
	if !s.opened {
		db, err := sql.Open("sqlite", s.config.DatabasePath())
		if err != nil {
			return nil, types.NewPersistentStoreError("open", err)
		}
		db.SetMaxOpenConns(1)
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, types.NewPersistentStoreError("open", err)
		}
		s.db = db
		s.opened = true
		s.logger.Debugw("database opened", "store", s.id, "path", s.config.DatabasePath())
	}
	return s.wrap(s.db), nil
}

func (s *Store) wrap(eq execQuerier) *conn {
	return &conn{eq: eq, stats: s.stats, threshold: s.threshold, logger: s.logger}
}
