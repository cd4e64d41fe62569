package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/cli/config"
	"github.com/conduit-lang/docmap/internal/cli/ui"
	"github.com/conduit-lang/docmap/internal/orm/adapter"
	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/document"
	"github.com/conduit-lang/docmap/internal/orm/mapper"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// env is everything a document command needs: configuration, logger,
// resolved schema and an open store
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	mapper  *mapper.Mapper
	graph   *schema.Graph
	closer  io.Closer
	errOut  io.Writer
	noColor bool
}

// loadConfig reads the configuration and applies flag overrides
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.schemaPath != "" {
		cfg.Schema.Path = flags.schemaPath
	}
	return cfg, nil
}

// loadRegistry declares the documents of the configured schema file
func loadRegistry(cfg *config.Config, logger *zap.Logger) (*schema.Registry, error) {
	registry := schema.NewRegistry(schema.WithLogger(logger))
	if err := schema.LoadFile(registry, cfg.Schema.Path); err != nil {
		return nil, err
	}
	return registry, nil
}

// openEnv loads configuration and schema, opens the store and creates the
// collections that need creating
func openEnv(cmd *cobra.Command, flags *globalFlags) (*env, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	registry, err := loadRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	a, closer, err := adapter.Open(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	m := mapper.New(
		mapper.WithRegistry(registry),
		mapper.WithAdapter(a),
		mapper.WithLogger(logger),
	)
	graph, err := m.Resolve()
	if err != nil {
		closer.Close()
		return nil, err
	}
	if err := adapter.Ensure(ctx, a, graph); err != nil {
		closer.Close()
		return nil, err
	}

	logger.Debug("store opened",
		zap.String("kind", cfg.Store.Kind),
		zap.Int("documents", graph.Len()))

	return &env{
		cfg:     cfg,
		logger:  logger,
		mapper:  m,
		graph:   graph,
		closer:  closer,
		errOut:  cmd.ErrOrStderr(),
		noColor: flags.noColor,
	}, nil
}

// Close closes the store and flushes the logger
func (e *env) Close() error {
	err := e.closer.Close()
	_ = e.logger.Sync()
	return err
}

// records returns the record collection of a collection name. Unknown names
// are reported with suggestions.
func (e *env) records(name string) (*collection.Collection[document.Record], error) {
	c, err := mapper.RecordCollection(e.mapper, name, nil)
	if errors.Is(err, mapper.ErrUnknownCollection) {
		known := make([]string, 0, e.graph.Len())
		for _, node := range e.graph.Nodes() {
			known = append(known, node.CollectionName)
		}
		ui.CollectionNotFound(name, known, e.noColor).Write(e.errOut)
		return nil, &reportedError{err: err}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", name, err)
	}
	return c, nil
}

// withEnv wraps a command body that needs an open env
func withEnv(flags *globalFlags, run func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd, flags)
		if err != nil {
			return err
		}
		defer e.Close()
		return run(cmd, e, args)
	}
}
