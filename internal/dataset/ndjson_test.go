package dataset

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tiktok "github.com/quokkaai/tiktok-influencers"
)

func testRecord(username string) Record {
	return Record{
		RunID:       "run-1",
		Keyword:     "#kbeauty",
		CollectedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		Influencer: tiktok.Influencer{
			Name:           "Alice",
			Username:       username,
			Email:          username + "@gmail.com",
			ProfileURL:     "https://www.tiktok.com/@" + username,
			FollowerCount:  1200,
			EngagementRate: 4.2,
		},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestNDJSON_AppendWritesOneLinePerRecord(t *testing.T) {
	dir := t.TempDir()
	ds, err := OpenNDJSON(dir, "tiktok", zerolog.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ds.Append(ctx, testRecord("alice")))
	require.NoError(t, ds.Append(ctx, testRecord("bob")))
	require.NoError(t, ds.Close())

	lines := readLines(t, filepath.Join(dir, "tiktok.ndjson"))
	require.Len(t, lines, 2)

	// Embedded influencer fields are flattened into the top-level object.
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "#kbeauty", got["keyword"])
	assert.Equal(t, "alice", got["username"])
	assert.Equal(t, "alice@gmail.com", got["email"])
	assert.Equal(t, float64(1200), got["follower_count"])
}

func TestNDJSON_ReopenAppends(t *testing.T) {
	dir := t.TempDir()

	ds, err := OpenNDJSON(dir, "tiktok", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, ds.Append(context.Background(), testRecord("alice")))
	require.NoError(t, ds.Close())

	ds, err = OpenNDJSON(dir, "tiktok", zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, ds.Append(context.Background(), testRecord("bob")))
	require.NoError(t, ds.Close())

	lines := readLines(t, filepath.Join(dir, "tiktok.ndjson"))
	assert.Len(t, lines, 2)
}

func TestNDJSON_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	ds, err := OpenNDJSON(dir, "tiktok", zerolog.Nop())
	require.NoError(t, err)
	defer ds.Close()

	assert.Equal(t, "tiktok", ds.Name())
	_, err = os.Stat(filepath.Join(dir, "tiktok.ndjson"))
	assert.NoError(t, err)
}

func TestNDJSON_AppendCanceledContext(t *testing.T) {
	ds, err := OpenNDJSON(t.TempDir(), "tiktok", zerolog.Nop())
	require.NoError(t, err)
	defer ds.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, ds.Append(ctx, testRecord("alice")))
}
