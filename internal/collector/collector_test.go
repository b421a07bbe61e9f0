package collector

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tiktok "github.com/quokkaai/tiktok-influencers"
	"github.com/quokkaai/tiktok-influencers/internal/config"
	"github.com/quokkaai/tiktok-influencers/internal/dataset"
)

// fakePages serves a fixed sequence of pages keyed by call order. A nil page
// entry makes that fetch fail.
type fakePages struct {
	pages    []*tiktok.Page
	calls    int
	keywords []string
}

func (f *fakePages) FetchPage(_ context.Context, keyword string, _ int) (tiktok.Page, error) {
	f.keywords = append(f.keywords, keyword)
	if f.calls >= len(f.pages) {
		return tiktok.Page{}, errors.New("no more scripted pages")
	}
	p := f.pages[f.calls]
	f.calls++
	if p == nil {
		return tiktok.Page{}, tiktok.ErrRateLimited
	}
	return *p, nil
}

// fakeProfiles returns canned authors; usernames in failFor return an error.
type fakeProfiles struct {
	authors map[string]tiktok.Author
	failFor map[string]bool
	calls   int
}

func (f *fakeProfiles) GetUser(_ context.Context, username string) (tiktok.Author, error) {
	f.calls++
	if f.failFor[username] {
		return tiktok.Author{}, tiktok.ErrNotFound
	}
	if a, ok := f.authors[username]; ok {
		return a, nil
	}
	return tiktok.Author{Username: username, FollowerCount: 1000}, nil
}

// memSink records appends in order; failAt makes the nth append (1-based)
// fail.
type memSink struct {
	records []dataset.Record
	failAt  int
}

func (s *memSink) Append(_ context.Context, rec dataset.Record) error {
	if s.failAt > 0 && len(s.records)+1 == s.failAt {
		return dataset.ErrAppendFailed
	}
	s.records = append(s.records, rec)
	return nil
}

func videos(usernames ...string) []tiktok.Video {
	vs := make([]tiktok.Video, 0, len(usernames))
	for i, u := range usernames {
		vs = append(vs, tiktok.Video{
			ID:       fmt.Sprintf("v%d", i),
			Username: u,
			Nickname: "Nick " + u,
			Views:    1000,
			Likes:    100,
		})
	}
	return vs
}

func userRange(prefix string, from, to int) []string {
	var names []string
	for i := from; i < to; i++ {
		names = append(names, fmt.Sprintf("%s%d", prefix, i))
	}
	return names
}

func input(keyword string, max int) config.Input {
	return config.Input{Keyword: keyword, MaxInfluencers: max}
}

func TestRun_NeverExceedsMax(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos(userRange("u", 0, 20)...), HasMore: true, Cursor: 20},
		{Videos: videos(userRange("u", 20, 40)...), HasMore: true, Cursor: 40},
	}}
	sink := &memSink{}
	c := New(pages, nil, sink)

	res, err := c.Run(context.Background(), input("dance", 15))
	require.NoError(t, err)
	assert.Len(t, res.Influencers, 15)
	assert.Len(t, sink.records, 15)
	assert.Equal(t, 1, pages.calls, "cap reached mid-page, no second fetch needed")
}

func TestRun_TwoPagesCappedExactly(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos(userRange("a", 0, 10)...), HasMore: true, Cursor: 10},
		{Videos: videos(userRange("b", 0, 10)...), HasMore: true, Cursor: 20},
	}}
	sink := &memSink{}
	c := New(pages, nil, sink)

	res, err := c.Run(context.Background(), input("dance", 15))
	require.NoError(t, err)
	require.Len(t, res.Influencers, 15)
	assert.Equal(t, 2, res.Pages)

	// First ten from page one, then the first five of page two.
	assert.Equal(t, "a0", res.Influencers[0].Username)
	assert.Equal(t, "a9", res.Influencers[9].Username)
	assert.Equal(t, "b0", res.Influencers[10].Username)
	assert.Equal(t, "b4", res.Influencers[14].Username)
}

func TestRun_EmptyFirstPageIsEmptySuccess(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: nil, HasMore: false},
	}}
	sink := &memSink{}
	c := New(pages, nil, sink)

	res, err := c.Run(context.Background(), input("obscure", 50))
	require.NoError(t, err)
	assert.Empty(t, res.Influencers)
	assert.Empty(t, sink.records)
	assert.Equal(t, 1, res.Pages)
}

func TestRun_FetchFailureKeepsPriorRecords(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos(userRange("u", 0, 10)...), HasMore: true, Cursor: 10},
		nil, // second fetch fails
	}}
	sink := &memSink{}
	c := New(pages, nil, sink)

	res, err := c.Run(context.Background(), input("dance", 50))
	require.Error(t, err)
	assert.ErrorIs(t, err, tiktok.ErrRateLimited)
	assert.Len(t, res.Influencers, 10, "records from the successful page survive")
	assert.Len(t, sink.records, 10)
	assert.Equal(t, 1, res.Pages)
}

func TestRun_FirstFetchFailureReportsZeroPages(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{nil}}
	c := New(pages, nil, &memSink{})

	res, err := c.Run(context.Background(), input("dance", 50))
	require.Error(t, err)
	assert.Zero(t, res.Pages)
	assert.Empty(t, res.Influencers)
}

func TestRun_DeduplicatesAuthorsAcrossPages(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos("alice", "bob", "alice"), HasMore: true, Cursor: 3},
		{Videos: videos("bob", "carol"), HasMore: false},
	}}
	sink := &memSink{}
	c := New(pages, nil, sink)

	res, err := c.Run(context.Background(), input("dance", 50))
	require.NoError(t, err)

	var got []string
	for _, inf := range res.Influencers {
		got = append(got, inf.Username)
	}
	assert.Equal(t, []string{"alice", "bob", "carol"}, got)
}

func TestRun_StopsWhenPageYieldsNothingNew(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos("alice", "bob"), HasMore: true, Cursor: 2},
		{Videos: videos("alice", "bob"), HasMore: true, Cursor: 4},
		{Videos: videos("carol"), HasMore: true, Cursor: 5},
	}}
	c := New(pages, nil, &memSink{})

	res, err := c.Run(context.Background(), input("dance", 50))
	require.NoError(t, err)
	assert.Len(t, res.Influencers, 2)
	assert.Equal(t, 2, pages.calls, "run ends on the first page with no new authors")
}

func TestRun_SkipsVideosWithoutUsername(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: []tiktok.Video{
			{ID: "v0", Username: "alice", Views: 100},
			{ID: "v1", Username: ""},
			{ID: "v2", Username: "bob", Views: 100},
		}, HasMore: false},
	}}
	c := New(pages, nil, &memSink{})

	res, err := c.Run(context.Background(), input("dance", 50))
	require.NoError(t, err)
	assert.Len(t, res.Influencers, 2)
}

func TestRun_PrefixesKeywordWithHash(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{{HasMore: false}}}
	c := New(pages, nil, &memSink{})

	_, err := c.Run(context.Background(), input("dance", 5))
	require.NoError(t, err)
	require.Len(t, pages.keywords, 1)
	assert.Equal(t, "#dance", pages.keywords[0])
}

func TestRun_KeepsExistingHashPrefix(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{{HasMore: false}}}
	c := New(pages, nil, &memSink{})

	_, err := c.Run(context.Background(), input("#dance", 5))
	require.NoError(t, err)
	require.Len(t, pages.keywords, 1)
	assert.Equal(t, "#dance", pages.keywords[0])
}

func TestRun_EnrichesFromProfiles(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos("alice"), HasMore: false},
	}}
	profiles := &fakeProfiles{authors: map[string]tiktok.Author{
		"alice": {
			Username:      "alice",
			Nickname:      "Alice Real",
			Bio:           "skincare",
			FollowerCount: 99000,
			Verified:      true,
		},
	}}
	c := New(pages, profiles, &memSink{})

	res, err := c.Run(context.Background(), input("dance", 5))
	require.NoError(t, err)
	require.Len(t, res.Influencers, 1)

	inf := res.Influencers[0]
	assert.Equal(t, "Alice Real", inf.Name)
	assert.Equal(t, 99000, inf.FollowerCount)
	assert.True(t, inf.Verified)
	assert.Equal(t, 1, profiles.calls)
}

func TestRun_EnrichmentFailureDegradesToVideoData(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos("alice"), HasMore: false},
	}}
	profiles := &fakeProfiles{failFor: map[string]bool{"alice": true}}
	sink := &memSink{}
	c := New(pages, profiles, sink)

	res, err := c.Run(context.Background(), input("dance", 5))
	require.NoError(t, err, "a failed profile lookup must not fail the run")
	require.Len(t, res.Influencers, 1)

	inf := res.Influencers[0]
	assert.Equal(t, "alice", inf.Username)
	assert.Equal(t, "Nick alice", inf.Name, "nickname falls back to video data")
	assert.Zero(t, inf.FollowerCount)
}

func TestRun_NilProfilesSkipsEnrichment(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos("alice", "bob"), HasMore: false},
	}}
	c := New(pages, nil, &memSink{})

	res, err := c.Run(context.Background(), input("dance", 5))
	require.NoError(t, err)
	assert.Len(t, res.Influencers, 2)
}

func TestRun_AppendFailureIsTerminal(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos(userRange("u", 0, 10)...), HasMore: false},
	}}
	sink := &memSink{failAt: 4}
	c := New(pages, nil, sink)

	res, err := c.Run(context.Background(), input("dance", 50))
	require.Error(t, err)
	assert.ErrorIs(t, err, dataset.ErrAppendFailed)
	assert.Len(t, res.Influencers, 3, "records appended before the failure survive")
	assert.Len(t, sink.records, 3)
}

func TestRun_RecordsCarryRunMetadata(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos("alice"), HasMore: false},
	}}
	sink := &memSink{}
	c := New(pages, nil, sink, WithClock(func() time.Time { return fixed }))

	res, err := c.Run(context.Background(), input("dance", 5))
	require.NoError(t, err)
	require.Len(t, sink.records, 1)

	rec := sink.records[0]
	assert.Equal(t, res.RunID, rec.RunID)
	assert.NotEmpty(t, rec.RunID)
	assert.Equal(t, "dance", rec.Keyword)
	assert.Equal(t, fixed, rec.CollectedAt)
}

func TestRun_DeterministicForIdenticalPages(t *testing.T) {
	script := func() *fakePages {
		return &fakePages{pages: []*tiktok.Page{
			{Videos: videos(userRange("u", 0, 10)...), HasMore: true, Cursor: 10},
			{Videos: videos(userRange("w", 0, 10)...), HasMore: false},
		}}
	}

	first, err := New(script(), nil, &memSink{}).Run(context.Background(), input("dance", 15))
	require.NoError(t, err)
	second, err := New(script(), nil, &memSink{}).Run(context.Background(), input("dance", 15))
	require.NoError(t, err)

	assert.Equal(t, first.Influencers, second.Influencers)
	assert.Equal(t, first.Pages, second.Pages)
}

func TestRun_RejectsInvalidInput(t *testing.T) {
	c := New(&fakePages{}, nil, &memSink{})

	_, err := c.Run(context.Background(), config.Input{Keyword: "", MaxInfluencers: 10})
	assert.Error(t, err)
	_, err = c.Run(context.Background(), config.Input{Keyword: "dance", MaxInfluencers: 0})
	assert.Error(t, err)
}

func TestRun_CanceledContext(t *testing.T) {
	pages := &fakePages{pages: []*tiktok.Page{
		{Videos: videos("alice"), HasMore: false},
	}}
	c := New(pages, nil, &memSink{}, WithPageDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Run(ctx, input("dance", 5))
	assert.Error(t, err)
}
