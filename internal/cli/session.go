package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/larder/pkg/larder"
	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/sqlite"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// session bundles everything a command needs to work with objects.
type session struct {
	cfg    types.Config
	logger *zap.SugaredLogger
	model  *model.Model
	store  *sqlite.Store
	coord  *larder.Coordinator
	ctx    *larder.Context
}

// openSession resolves configuration, loads the schema document and opens
// the store. The caller must defer close.
func openSession() (*session, error) {
	cfg, err := resolveConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	m, err := model.Load(cfg.ModelFile, cfg.ModelVersion)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	store, err := sqlite.NewStore(cfg, sqlite.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	coord := larder.NewCoordinator(m, larder.WithLogger(logger))
	coord.AddStore(store)

	return &session{
		cfg:    cfg,
		logger: logger,
		model:  m,
		store:  store,
		coord:  coord,
		ctx:    larder.NewContext(coord),
	}, nil
}

func (s *session) close() {
	if err := s.store.Close(); err != nil {
		s.logger.Warnw("close store", "error", err)
	}
	_ = s.logger.Sync()
}

// newLogger builds a logger at level: development output for debug,
// production otherwise. An empty level disables logging.
func newLogger(level string) (*zap.SugaredLogger, error) {
	if level == "" {
		return zap.NewNop().Sugar(), nil
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if lvl.Level() == zap.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l.Sugar(), nil
}

func (s *session) entity(name string) (*model.EntityDescription, error) {
	e := s.model.EntityWithName(name)
	if e == nil {
		return nil, &types.EntityNotFoundError{Name: name}
	}
	return e, nil
}

var errObjectNotFound = errors.New("object not found")

// object returns the stored object of entity with the given id argument.
func (s *session) object(e *model.EntityDescription, idArg string) (*larder.ManagedObject, error) {
	id, err := cast.ToInt64E(idArg)
	if err != nil {
		return nil, fmt.Errorf("invalid objectID %q: %w", idArg, err)
	}
	o, err := s.ctx.ObjectWithObjectID(e, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: %s %d", errObjectNotFound, e.Name(), id)
	}
	return o, nil
}

// save writes pending changes and reports whether anything was written.
func (s *session) save() (bool, error) {
	saved, err := s.ctx.Save()
	if err != nil {
		return false, err
	}
	s.logger.Debugw("session saved", "changed", saved, "stats", s.store.Stats().String())
	return saved, nil
}

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case types.IsPersistentStore(err):
		return exitSysError
	default:
		return exitUserError
	}
}
