package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/adw-ith/hack25-spicechain/internal/core"
	"github.com/adw-ith/hack25-spicechain/internal/db"
	"github.com/adw-ith/hack25-spicechain/internal/store/pgstore"
	"github.com/adw-ith/hack25-spicechain/internal/store/storetest"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../../.env")

	// Use a dedicated TEST database; every test truncates the ledger tables.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test to protect live database")
	}

	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, dbURL))

	pool, err := db.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE TABLE transactions, packages, batches, ledger_events RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("Failed to clean test database: %v", err)
	}
	return pool
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) core.EntityStore {
		return pgstore.New(setupTestDB(t))
	})
}
