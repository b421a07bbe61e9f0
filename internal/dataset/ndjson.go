package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// NDJSON appends records to <dir>/<name>.ndjson, one JSON object per line.
type NDJSON struct {
	name string
	path string
	f    *os.File
	enc  *json.Encoder
	log  zerolog.Logger
}

// OpenNDJSON opens (creating if needed) the dataset file in append mode.
func OpenNDJSON(dir, name string, log zerolog.Logger) (*NDJSON, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}

	path := filepath.Join(dir, name+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open dataset file %s: %w", path, err)
	}

	return &NDJSON{
		name: name,
		path: path,
		f:    f,
		enc:  json.NewEncoder(f),
		log:  log,
	}, nil
}

func (d *NDJSON) Name() string { return d.name }

// Append writes one record as a JSON line.
func (d *NDJSON) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.enc.Encode(rec); err != nil {
		return fmt.Errorf("%w: encode record %q: %v", ErrAppendFailed, rec.Username, err)
	}
	d.log.Debug().Str("dataset", d.name).Str("username", rec.Username).Msg("record appended")
	return nil
}

func (d *NDJSON) Close() error {
	return d.f.Close()
}
