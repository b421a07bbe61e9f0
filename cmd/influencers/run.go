package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	tiktok "github.com/quokkaai/tiktok-influencers"
	"github.com/quokkaai/tiktok-influencers/internal/collector"
	"github.com/quokkaai/tiktok-influencers/internal/config"
	"github.com/quokkaai/tiktok-influencers/internal/dataset"
)

var (
	inputFile   string
	keyword     string
	maxRecords  int
	datasetName string
	backend     string
	outDir      string
	cookiesFile string
	proxyURL    string
	every       time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect influencer records for a keyword into a dataset",
	Long: `Run one collection pass: read the run request from the input file (or
flags), search TikTok, and append up to max-influencers records to the
configured dataset. With --every the pass repeats on that interval until
interrupted; errors inside a cycle are logged and the process keeps going.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&inputFile, "input", "i", "input.json", "run request JSON file (keyword, max_influencers)")
	runCmd.Flags().StringVarP(&keyword, "keyword", "k", "", "search keyword (overrides the input file)")
	runCmd.Flags().IntVarP(&maxRecords, "max-influencers", "m", 0, "maximum records to collect (overrides the input file)")
	runCmd.Flags().StringVar(&datasetName, "dataset", "", "dataset name (default from settings)")
	runCmd.Flags().StringVar(&backend, "backend", "", "dataset backend: ndjson, postgres, api")
	runCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory for the ndjson backend")
	runCmd.Flags().StringVar(&cookiesFile, "cookies", "", "path to cookies JSON file")
	runCmd.Flags().StringVar(&proxyURL, "proxy", "", "proxy URL (http/https/socks5)")
	runCmd.Flags().DurationVar(&every, "every", 0, "repeat the run on this interval (0 runs once)")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	applyRunFlags(cmd)

	in, err := config.LoadInput(inputFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("keyword") {
		in.Keyword = keyword
	}
	if cmd.Flags().Changed("max-influencers") {
		in.MaxInfluencers = maxRecords
	}
	if err := in.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if every <= 0 {
		return runOnce(ctx, in)
	}

	// Periodic mode: keep running until interrupted; a failed cycle is
	// logged, not fatal.
	for {
		if err := runOnce(ctx, in); err != nil {
			log.Error().Err(err).Msg("run cycle failed")
		}
		log.Info().Dur("sleep", every).Msg("waiting for next run cycle")
		select {
		case <-ctx.Done():
			log.Info().Msg("shutdown signal received")
			return nil
		case <-time.After(every):
		}
	}
}

func applyRunFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("dataset") {
		settings.Dataset.Name = datasetName
	}
	if cmd.Flags().Changed("backend") {
		settings.Dataset.Backend = backend
	}
	if cmd.Flags().Changed("out") {
		settings.Dataset.Dir = outDir
	}
	if cmd.Flags().Changed("cookies") {
		settings.Scraper.CookiesFile = cookiesFile
	}
	if cmd.Flags().Changed("proxy") {
		settings.Scraper.Proxy = proxyURL
	}
}

// runOnce executes a single collection pass. A mid-run failure after at
// least one fetched page is partial success: the error is logged and the
// exit stays zero. A failure before any page counts as an initialization
// failure and is returned.
func runOnce(ctx context.Context, in config.Input) error {
	s := tiktok.New().
		WithLogger(log).
		WithSearchDelay(settings.Scraper.SearchDelay).
		WithProfileDelay(settings.Scraper.ProfileDelay).
		WithBrowserFetch(settings.Scraper.FetchViaBrowser)
	defer s.Close()

	if settings.Scraper.Proxy != "" {
		if err := s.SetProxy(settings.Scraper.Proxy); err != nil {
			return fmt.Errorf("set proxy: %w", err)
		}
	}

	// Search and hashtag APIs need the signing browser.
	if err := s.InitBrowser(); err != nil {
		return fmt.Errorf("init browser: %w", err)
	}
	if settings.Scraper.CookiesFile != "" {
		if err := s.LoginWithCookies(settings.Scraper.CookiesFile); err != nil {
			return fmt.Errorf("login with cookies: %w", err)
		}
	}

	ds, err := dataset.Open(settings.Dataset, log)
	if err != nil {
		return fmt.Errorf("open dataset: %w", err)
	}
	defer ds.Close()

	var pages collector.PageFetcher = searchPager{s}
	if settings.Scraper.UseChallengeAPI {
		pages = &hashtagPager{scraper: s}
	}

	var profiles collector.ProfileFetcher
	if !settings.Scraper.SkipEnrichment {
		profiles = s
	}

	col := collector.New(pages, profiles, ds,
		collector.WithPageDelay(settings.Scraper.PageDelay),
		collector.WithLogger(log),
	)

	result, err := col.Run(ctx, in)
	if err != nil {
		if result.Pages == 0 {
			return fmt.Errorf("run %q: %w", in.Keyword, err)
		}
		log.Warn().Err(err).Int("influencers", len(result.Influencers)).Msg("run ended early, partial results kept")
	}

	log.Info().
		Str("run_id", result.RunID).
		Str("dataset", ds.Name()).
		Int("influencers", len(result.Influencers)).
		Int("pages", result.Pages).
		Msg("collection complete")
	return nil
}

// searchPager feeds the collector from the search API.
type searchPager struct {
	scraper *tiktok.Scraper
}

func (p searchPager) FetchPage(ctx context.Context, keyword string, cursor int) (tiktok.Page, error) {
	return p.scraper.SearchPage(ctx, keyword, cursor)
}

// hashtagPager feeds the collector from the challenge API, resolving the
// hashtag to a challenge ID on first use.
type hashtagPager struct {
	scraper     *tiktok.Scraper
	challengeID string
}

func (p *hashtagPager) FetchPage(ctx context.Context, keyword string, cursor int) (tiktok.Page, error) {
	if p.challengeID == "" {
		id, err := p.scraper.ChallengeID(ctx, strings.TrimPrefix(keyword, "#"))
		if err != nil {
			return tiktok.Page{}, err
		}
		p.challengeID = id
	}
	return p.scraper.HashtagPage(ctx, p.challengeID, cursor)
}
