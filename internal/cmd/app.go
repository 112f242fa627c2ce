package cmd

import (
	"github.com/planforge/planforge/internal/artifact"
	"github.com/planforge/planforge/internal/config"
	"github.com/planforge/planforge/internal/index"
	"github.com/planforge/planforge/internal/lock"
	"github.com/planforge/planforge/internal/log"
)

// app bundles the wiring every command needs: config, logger, artifact
// store and the global work-package index.
type app struct {
	cfg    *config.Config
	logger *log.Logger
	store  *artifact.Store
	idx    *index.Index
}

func newApp() (*app, error) {
	cfg, err := config.Load(flagWorkspace)
	if err != nil {
		return nil, err
	}

	level := cfg.Log.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	format := cfg.Log.Format
	if flagLogFormat != "" {
		format = flagLogFormat
	}
	logger := log.New(log.Config{
		Level:  log.ParseLevel(level),
		Format: log.ParseFormat(format),
		Output: log.OutputStderr(),
	})
	log.SetDefaultLogger(logger)

	idx, err := index.Open(cfg.IndexPath())
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  artifact.NewStore(cfg.StoreRoot(), logger),
		idx:    idx,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("closing artifact store")
	}
	if err := a.idx.Close(); err != nil {
		a.logger.WithError(err).Warn("closing work-package index")
	}
}

// withIdeaLock runs fn while holding the idea's advisory lock. The lock
// is released on every exit path.
func (a *app) withIdeaLock(ideaID string, fn func() error) error {
	l, err := lock.Acquire(a.store.IdeaDir(ideaID), ideaID)
	if err != nil {
		return err
	}
	defer l.Release()
	return fn()
}
