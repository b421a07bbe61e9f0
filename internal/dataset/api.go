package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// API pushes each record to an external influencer endpoint, one POST per
// append.
type API struct {
	name   string
	url    string
	client *http.Client
	log    zerolog.Logger
}

// NewAPI builds an HTTP dataset targeting the given endpoint.
func NewAPI(url, name string, log zerolog.Logger) (*API, error) {
	if url == "" {
		return nil, fmt.Errorf("api dataset: url is required")
	}
	return &API{
		name:   name,
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}, nil
}

func (d *API) Name() string { return d.name }

// Append POSTs one record as JSON.
func (d *API) Append(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: marshal record %q: %v", ErrAppendFailed, rec.Username, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrAppendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: post record %q: %v", ErrAppendFailed, rec.Username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: post record %q: status %d", ErrAppendFailed, rec.Username, resp.StatusCode)
	}

	d.log.Debug().Str("dataset", d.name).Str("username", rec.Username).Int("status", resp.StatusCode).Msg("record pushed")
	return nil
}

func (d *API) Close() error { return nil }
