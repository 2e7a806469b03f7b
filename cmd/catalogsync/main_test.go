package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalog = "Handle,Title,Variant SKU,Variant Price,Variant Inventory Qty\n" +
	"mug-1,White Mug,M1,9.90,4\n" +
	"mug-2,Black Mug,M2,9.90,0\n" +
	"mug-3,Blue Mug,M3,11.00,7\n"

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "productos_shopify.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(catalog), 0o644))

	t.Setenv("DATABASE_URL", "sqlite://"+filepath.Join(dir, "runs.db"))
	t.Setenv("LOCAL_CSV_FILES", csvPath)
	t.Setenv("CSV_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("SHOPIFY_SHOP_NAME", "")
	t.Setenv("SHOPIFY_ACCESS_TOKEN", "")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestSplitCommand(t *testing.T) {
	dir := setupEnv(t)
	out := filepath.Join(dir, "split")

	code := run(context.Background(), []string{"split", "--chunk-size", "1", "--out", out})
	require.Equal(t, exitOK, code)

	assert.FileExists(t, filepath.Join(out, "shopify_products_part_001_of_002.csv"))
	assert.FileExists(t, filepath.Join(out, "shopify_products_part_002_of_002.csv"))
	assert.FileExists(t, filepath.Join(out, "INSTRUCTIONS.txt"))
}

func TestSyncWithoutCredentials(t *testing.T) {
	setupEnv(t)

	assert.Equal(t, exitFailure, run(context.Background(), []string{"sync"}))
}

func TestUsageErrors(t *testing.T) {
	setupEnv(t)

	assert.Equal(t, exitUsage, run(context.Background(), []string{"sync", "--limit", "-3"}))
	assert.Equal(t, exitUsage, run(context.Background(), []string{"probe"}))
	assert.Equal(t, exitUsage, run(context.Background(), []string{"split", "--chunk-size", "many"}))

	t.Setenv("DUPLICATE_KEY", "sku")
	assert.Equal(t, exitUsage, run(context.Background(), []string{"split"}))
}

func TestRunErrorCodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ee *exitError
	require.ErrorAs(t, runError(ctx, context.Canceled), &ee)
	assert.Equal(t, exitCancelled, ee.code)
	require.ErrorAs(t, runError(context.Background(), os.ErrNotExist), &ee)
	assert.Equal(t, exitFailure, ee.code)
	assert.NoError(t, runError(context.Background(), nil))
}
