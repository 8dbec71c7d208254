package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adw-ith/hack25-spicechain/internal/config"
	"github.com/adw-ith/hack25-spicechain/internal/store"
	"github.com/adw-ith/hack25-spicechain/internal/store/badgerstore"
	"github.com/adw-ith/hack25-spicechain/internal/store/memstore"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()
	var cfg config.Config

	cfg.Store.Driver = config.DriverMemory
	s, closeFn, err := store.Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &memstore.Store{}, s)
	closeFn()

	cfg.Store.Driver = config.DriverBadger
	cfg.Store.BadgerDir = t.TempDir()
	s, closeFn, err = store.Open(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &badgerstore.Store{}, s)
	assert.True(t, s.(*badgerstore.Store).Durable())
	closeFn()

	cfg.Store.Driver = "sqlite"
	_, _, err = store.Open(ctx, cfg, zap.NewNop())
	assert.Error(t, err)
}
