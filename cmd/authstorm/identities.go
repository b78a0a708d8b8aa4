package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openradius/authstorm/internal/config"
	"github.com/openradius/authstorm/internal/identity"
	"github.com/openradius/authstorm/internal/runlock"
)

const cleanupTimeout = 2 * time.Minute

// catalogOpener connects to the identity database.
type catalogOpener func(ctx context.Context, dsn string, opts ...identity.CatalogOption) (*identity.Catalog, error)

// prepareIdentities loads the shuffled identity pool, injecting synthetic
// identities first when scale is set. For the database source the returned
// release func removes every synthetic identity (unless kept) and must always
// be called.
func prepareIdentities(ctx context.Context, cfg *config.Config, open catalogOpener, logger *zap.Logger) ([]identity.Identity, func(), error) {
	noop := func() {}

	if cfg.IdentityFile != "" {
		ids, err := identity.NewFileSource(cfg.IdentityFile).Load(ctx)
		if err != nil {
			return nil, noop, fmt.Errorf("load identities: %w", err)
		}
		identity.Shuffle(ids, newRand())
		logger.Info("identities loaded", zap.String("source", cfg.IdentityFile), zap.Int("count", len(ids)))
		return ids, noop, nil
	}

	catalog, err := open(ctx, cfg.DSN,
		identity.WithBatchSize(cfg.Scale.BatchSize),
		identity.WithSyntheticIDBase(cfg.Scale.IDBase),
		identity.WithProfileID(cfg.Scale.ProfileID),
		identity.WithCustomAttributes(cfg.Scale.Attributes),
		identity.WithLogger(logger),
	)
	if err != nil {
		return nil, noop, err
	}

	lock, err := runlock.Acquire(cfg.LockFile)
	if err != nil {
		_ = catalog.Close()
		return nil, noop, err
	}
	logger.Debug("run lock acquired", zap.String("path", lock.Path()))

	release := func() {
		if !cfg.Scale.Keep {
			cleanup(ctx, catalog, logger)
		}
		if err := catalog.Close(); err != nil {
			logger.Warn("closing identity catalog", zap.Error(err))
		}
		if err := lock.Release(); err != nil {
			logger.Warn("releasing run lock", zap.Error(err))
		}
	}

	if leftover, err := catalog.CountSynthetic(ctx); err == nil && leftover > 0 {
		logger.Warn("synthetic identities from an earlier run are present", zap.Int64("rows", leftover))
	}
	if err := catalog.Inject(ctx, cfg.Scale.Count); err != nil {
		release()
		return nil, noop, err
	}

	ids, err := catalog.Load(ctx)
	if err != nil {
		release()
		return nil, noop, err
	}
	identity.Shuffle(ids, newRand())
	logger.Info("identities loaded", zap.String("source", "postgres"), zap.Int("count", len(ids)))
	return ids, release, nil
}

// cleanup removes synthetic identities even when the run was canceled.
func cleanup(ctx context.Context, catalog *identity.Catalog, logger *zap.Logger) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := catalog.Cleanup(cctx); err != nil {
		logger.Warn("synthetic identity cleanup failed", zap.Error(err))
	}
}
