package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/quokkaai/tiktok-influencers/internal/config"
)

var (
	cfgFile  string
	logLevel string

	settings *config.Settings
	log      zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "influencers",
	Short: "Keyword-driven TikTok influencer scraper",
	Long: `influencers searches TikTok for a keyword (used as a hashtag), extracts
one influencer record per distinct video author, enriches it with profile
stats, and appends the records to a named dataset.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		settings, err = config.Load(cfgFile)
		if err != nil {
			return err
		}

		level := settings.Logging.Level
		if cmd.Flags().Changed("log-level") {
			level = logLevel
		}
		parsed, err := zerolog.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", level, err)
		}

		log = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.TimeOnly,
		}).Level(parsed).With().Timestamp().Logger()
		return nil
	},
}

// Execute runs the CLI and exits non-zero on unrecoverable errors.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "influencers.yaml", "settings file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
