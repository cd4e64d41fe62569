// Package adapter opens the document store selected by configuration
package adapter

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmap/internal/cli/config"
	"github.com/conduit-lang/docmap/internal/orm/adapter/eval"
	"github.com/conduit-lang/docmap/internal/orm/adapter/filestore"
	"github.com/conduit-lang/docmap/internal/orm/adapter/memstore"
	"github.com/conduit-lang/docmap/internal/orm/adapter/redisstore"
	"github.com/conduit-lang/docmap/internal/orm/adapter/sqlstore"
	"github.com/conduit-lang/docmap/internal/orm/collection"
	"github.com/conduit-lang/docmap/internal/orm/schema"
)

// CollectionEnsurer is implemented by stores that need a collection created
// before use
type CollectionEnsurer interface {
	EnsureCollection(ctx context.Context, name string) error
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open opens the configured store. The closer releases the store's
// connections and must be called when the adapter is no longer used.
func Open(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (collection.Adapter, io.Closer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("store", cfg.Kind))

	switch cfg.Kind {
	case config.KindMemory, "":
		return memstore.NewAdapter(eval.WithLogger(logger)), nopCloser{}, nil

	case config.KindSQLite, config.KindPostgres:
		retry := sqlstore.DefaultRetryConfig()
		if cfg.MaxRetries > 0 {
			retry.MaxRetries = cfg.MaxRetries
		}
		store, err := sqlstore.Open(ctx, cfg.Kind, cfg.DSN,
			sqlstore.WithLogger(logger),
			sqlstore.WithRetry(retry),
		)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case config.KindRedis:
		store, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store.NewAdapter(eval.WithLogger(logger)), store, nil

	case config.KindFile:
		store := filestore.New(cfg.File.Path)
		return store.NewAdapter(eval.WithLogger(logger)), store, nil
	}

	return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

// Ensure creates the collections of every graph node on stores that need it
func Ensure(ctx context.Context, a collection.Adapter, graph *schema.Graph) error {
	ensurer, ok := a.(CollectionEnsurer)
	if !ok {
		return nil
	}
	for _, node := range graph.Nodes() {
		if err := ensurer.EnsureCollection(ctx, node.CollectionName); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", node.CollectionName, err)
		}
	}
	return nil
}
