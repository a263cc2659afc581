package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/store"
)

// openStore opens and migrates the run manifest database. Recording runs is
// best-effort: callers that get a nil store proceed without a manifest.
func openStore(ctx context.Context) *store.Store {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		zap.L().Warn("manifest store unavailable, run will not be recorded", zap.Error(err))
		return nil
	}
	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("manifest store migration failed, run will not be recorded", zap.Error(err))
		_ = st.Close()
		return nil
	}
	return st
}

// requireStore opens the manifest database for commands that cannot work
// without it.
func requireStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}
