// Package collector drives the scrape loop: fetch a page, extract new
// influencers, enrich them with profile stats, and append them to a dataset
// until the requested count is reached or results run out.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	tiktok "github.com/quokkaai/tiktok-influencers"
	"github.com/quokkaai/tiktok-influencers/internal/config"
	"github.com/quokkaai/tiktok-influencers/internal/dataset"
)

// PageFetcher returns one page of videos for a keyword at a cursor position.
type PageFetcher interface {
	FetchPage(ctx context.Context, keyword string, cursor int) (tiktok.Page, error)
}

// ProfileFetcher looks up an author's profile stats.
type ProfileFetcher interface {
	GetUser(ctx context.Context, username string) (tiktok.Author, error)
}

// Sink receives each collected record. dataset.Dataset satisfies it.
type Sink interface {
	Append(ctx context.Context, rec dataset.Record) error
}

// Collector runs one sequential collection pass per Run call.
type Collector struct {
	pages    PageFetcher
	profiles ProfileFetcher // nil skips enrichment
	sink     Sink
	pace     *rate.Limiter
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Collector.
type Option func(*Collector)

// WithPageDelay sets the minimum delay between page fetches.
func WithPageDelay(d time.Duration) Option {
	return func(c *Collector) {
		if d <= 0 {
			c.pace = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.pace = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLogger sets the diagnostic logger for this collector.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Collector) { c.log = log }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Collector) { c.now = now }
}

// New builds a Collector. profiles may be nil to skip profile enrichment.
func New(pages PageFetcher, profiles ProfileFetcher, sink Sink, opts ...Option) *Collector {
	c := &Collector{
		pages:    pages,
		profiles: profiles,
		sink:     sink,
		pace:     rate.NewLimiter(rate.Inf, 1),
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is what one run produced. Influencers never exceeds the requested
// maximum and holds at most one record per username, in collection order.
type Result struct {
	RunID       string
	Keyword     string
	Influencers []tiktok.Influencer
	Pages       int
}

// Run collects up to in.MaxInfluencers records for in.Keyword and appends
// each to the sink as it is extracted. The run ends when the cap is
// reached, when a page yields no new influencers, when the platform reports
// no further pages, or when a fetch or append fails. On failure everything
// collected so far is returned together with the error; the caller decides
// whether a partial run counts as success.
func (c *Collector) Run(ctx context.Context, in config.Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	// The search query is the keyword as a hashtag.
	query := in.Keyword
	if !strings.HasPrefix(query, "#") {
		query = "#" + query
	}

	res := Result{
		RunID:   uuid.NewString(),
		Keyword: in.Keyword,
	}
	log := c.log.With().Str("run_id", res.RunID).Str("keyword", in.Keyword).Logger()
	log.Info().Int("max_influencers", in.MaxInfluencers).Msg("run started")

	seen := make(map[string]struct{})
	cursor := 0

	for len(res.Influencers) < in.MaxInfluencers {
		if err := c.pace.Wait(ctx); err != nil {
			return res, err
		}

		page, err := c.pages.FetchPage(ctx, query, cursor)
		if err != nil {
			log.Error().Err(err).Int("cursor", cursor).Msg("page fetch failed, ending run with partial results")
			return res, fmt.Errorf("fetch page at cursor %d: %w", cursor, err)
		}
		res.Pages++

		fresh := 0
		for _, v := range page.Videos {
			if len(res.Influencers) >= in.MaxInfluencers {
				break
			}
			if v.Username == "" {
				continue
			}
			if _, ok := seen[v.Username]; ok {
				continue
			}
			seen[v.Username] = struct{}{}
			fresh++

			rec, err := c.collect(ctx, res, v, log)
			if err != nil {
				return res, err
			}
			res.Influencers = append(res.Influencers, rec.Influencer)
		}

		log.Debug().
			Int("cursor", cursor).
			Int("videos", len(page.Videos)).
			Int("new", fresh).
			Int("total", len(res.Influencers)).
			Msg("page processed")

		if fresh == 0 {
			log.Info().Int("cursor", cursor).Msg("no new influencers on page, results exhausted")
			break
		}
		if !page.HasMore {
			log.Info().Int("cursor", cursor).Msg("no more pages")
			break
		}
		cursor = page.Cursor
	}

	log.Info().Int("influencers", len(res.Influencers)).Int("pages", res.Pages).Msg("run finished")
	return res, nil
}

// collect enriches one video's author and appends the record to the sink.
// Enrichment failures degrade to video-level data; append failures are
// terminal.
func (c *Collector) collect(ctx context.Context, res Result, v tiktok.Video, log zerolog.Logger) (dataset.Record, error) {
	var author tiktok.Author
	if c.profiles != nil {
		a, err := c.profiles.GetUser(ctx, v.Username)
		if err != nil {
			log.Warn().Err(err).Str("username", v.Username).Msg("profile enrichment failed, keeping video-level data")
		} else {
			author = a
		}
	}

	rec := dataset.Record{
		RunID:       res.RunID,
		Keyword:     res.Keyword,
		CollectedAt: c.now(),
		Influencer:  tiktok.NewInfluencer(v, author),
	}

	if err := c.sink.Append(ctx, rec); err != nil {
		log.Error().Err(err).Str("username", v.Username).Msg("append failed, ending run with partial results")
		return dataset.Record{}, fmt.Errorf("append record %q: %w", v.Username, err)
	}
	return rec, nil
}
