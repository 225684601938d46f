package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"returns-reconciliation-service/internal/model"
)

// FileFetcher reads exported source payloads from <dir>/<SOURCE>/<YYYY-MM-DD>.json,
// each file holding a JSON array of raw payloads.
type FileFetcher struct {
	Dir string
}

// Fetch returns the payloads of one day. A missing file means the source reported nothing.
func (f FileFetcher) Fetch(ctx context.Context, src model.Source, day time.Time) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(f.Dir, string(src), day.Format("2006-01-02")+".json")

	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return payloads, nil
}
