package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returns-reconciliation-service/internal/model"
)

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "LOGISTICS"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LOGISTICS", "2025-11-03.json"),
		[]byte(`[{"hid":"H1"},{"hid":"H2"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LOGISTICS", "2025-11-04.json"),
		[]byte(`{"hid":"H1"}`), 0o644))

	f := FileFetcher{Dir: dir}
	ctx := context.Background()

	got, err := f.Fetch(ctx, model.SourceLogistics, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"hid":"H2"}`, string(got[1]))

	got, err = f.Fetch(ctx, model.SourceMarketplace, time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = f.Fetch(ctx, model.SourceLogistics, time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}
