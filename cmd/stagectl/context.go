package main

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"sync"

	"github.com/listenupapp/stagehand/internal/config"
	"github.com/listenupapp/stagehand/internal/engagement"
	"github.com/listenupapp/stagehand/internal/logger"
	"github.com/listenupapp/stagehand/internal/metadata/openlibrary"
	"github.com/listenupapp/stagehand/internal/pending"
	"github.com/listenupapp/stagehand/internal/search"
	"github.com/listenupapp/stagehand/internal/staging"
	"github.com/listenupapp/stagehand/internal/store/sqlite"
)

type commandContext struct {
	metadataFlag *string
	envFileFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(metadataFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		metadataFlag: metadataFlag,
		envFileFlag:  envFileFlag,
	}
}

// ensureConfig resolves configuration with the same precedence as the
// server; only the data directory and .env path come from stagectl flags.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var args []string
		if c.metadataFlag != nil && *c.metadataFlag != "" {
			args = append(args, "--metadata-path", *c.metadataFlag)
		}
		if c.envFileFlag != nil && *c.envFileFlag != "" {
			args = append(args, "--env-file", *c.envFileFlag)
		}
		fs := flag.NewFlagSet("stagectl", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		c.config, c.configErr = config.Load(fs, args)
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cfg *config.Config, w io.Writer) *slog.Logger {
	return logger.New(logger.Config{
		Writer:      w,
		Format:      "pretty",
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
	}).Logger
}

// runtime is an offline coordinator over the data directory.
type runtime struct {
	coordinator *staging.Coordinator
	pending     *pending.Store
	closers     []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func (c *commandContext) openRuntime(log *slog.Logger) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	rt := &runtime{}

	st, err := sqlite.Open(cfg.Metadata.CatalogDBPath(), log)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, st.Close)

	ps, err := pending.Open(cfg.Metadata.PendingPath(), cfg.Staging.PendingTTL, log)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, ps.Close)
	rt.pending = ps

	index, err := search.NewIndex(search.Options{DataPath: cfg.Metadata.SearchPath(), Logger: log})
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, index.Close)
	st.SetSearchIndexer(index)

	// Never called by sweep or inspect; the coordinator requires one.
	catalog, err := openlibrary.New(openlibrary.Options{BaseURL: cfg.Catalog.BaseURL}, log)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, func() error { catalog.Close(); return nil })

	rt.coordinator = staging.NewCoordinator(st, catalog, ps, engagement.New(st, ps, log), nil,
		staging.Config{PendingTTL: cfg.Staging.PendingTTL}, log)
	return rt, nil
}
