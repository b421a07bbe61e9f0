// Package dataset provides the append-only result stores a run writes to.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	tiktok "github.com/quokkaai/tiktok-influencers"
	"github.com/quokkaai/tiktok-influencers/internal/config"
)

// ErrAppendFailed is the storage failure kind: a record could not be written.
var ErrAppendFailed = errors.New("dataset: append failed")

// Record is one stored influencer entry plus run metadata.
type Record struct {
	RunID             string    `json:"run_id"`
	Keyword           string    `json:"keyword"`
	CollectedAt       time.Time `json:"collected_at"`
	tiktok.Influencer
}

// Dataset is a named, append-only collection of influencer records.
// Records keep insertion order; there is no deduplication.
type Dataset interface {
	Name() string
	Append(ctx context.Context, rec Record) error
	Close() error
}

// Open builds the configured Dataset backend.
func Open(cfg config.DatasetSettings, log zerolog.Logger) (Dataset, error) {
	switch cfg.Backend {
	case "ndjson":
		return OpenNDJSON(cfg.Dir, cfg.Name, log)
	case "postgres":
		return OpenPostgres(cfg.PostgresDSN, cfg.Name, log)
	case "api":
		return NewAPI(cfg.APIURL, cfg.Name, log)
	default:
		return nil, fmt.Errorf("unknown dataset backend %q", cfg.Backend)
	}
}
