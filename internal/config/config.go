// Package config loads the run input (what to scrape) and the scraper
// settings (how to scrape) from files and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults for a run request when the input file is absent or partial.
const (
	DefaultKeyword        = "k-beauty"
	DefaultMaxInfluencers = 50
	DefaultDatasetName    = "tiktok"
)

var validate = validator.New()

// Input is one run request: the keyword to search (used as a hashtag) and
// the maximum number of influencer records to collect.
type Input struct {
	Keyword        string `json:"keyword" validate:"required"`
	MaxInfluencers int    `json:"max_influencers" validate:"gt=0"`
}

// DefaultInput returns the run request used when no input file exists.
func DefaultInput() Input {
	return Input{Keyword: DefaultKeyword, MaxInfluencers: DefaultMaxInfluencers}
}

// LoadInput reads a run request from a JSON file. A missing file yields the
// defaults; a present file has its absent fields defaulted, then the result
// is validated (non-empty keyword, positive max).
func LoadInput(path string) (Input, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultInput(), nil
	}
	if err != nil {
		return Input{}, fmt.Errorf("read input file: %w", err)
	}

	var raw struct {
		Keyword        *string `json:"keyword"`
		MaxInfluencers *int    `json:"max_influencers"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Input{}, fmt.Errorf("parse input file %s: %w", path, err)
	}

	in := DefaultInput()
	if raw.Keyword != nil {
		in.Keyword = *raw.Keyword
	}
	if raw.MaxInfluencers != nil {
		in.MaxInfluencers = *raw.MaxInfluencers
	}

	if err := in.Validate(); err != nil {
		return Input{}, err
	}
	return in, nil
}

// Validate checks the run request invariants.
func (in Input) Validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

// Settings holds everything about a run that is not the request itself.
type Settings struct {
	Dataset DatasetSettings `yaml:"dataset"`
	Scraper ScraperSettings `yaml:"scraper"`
	Logging LoggingSettings `yaml:"logging"`
}

// DatasetSettings selects and configures the output sink.
type DatasetSettings struct {
	Name        string `yaml:"name"`
	Backend     string `yaml:"backend" validate:"oneof=ndjson postgres api"`
	Dir         string `yaml:"dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
	APIURL      string `yaml:"api_url"`
}

// ScraperSettings configures the TikTok client and the collector loop.
type ScraperSettings struct {
	SearchDelay     time.Duration `yaml:"search_delay"`
	ProfileDelay    time.Duration `yaml:"profile_delay"`
	PageDelay       time.Duration `yaml:"page_delay"`
	Proxy           string        `yaml:"proxy"`
	CookiesFile     string        `yaml:"cookies_file"`
	UseChallengeAPI bool          `yaml:"use_challenge_api"`
	FetchViaBrowser bool          `yaml:"fetch_via_browser"`
	SkipEnrichment  bool          `yaml:"skip_enrichment"`
}

// LoggingSettings configures diagnostics.
type LoggingSettings struct {
	Level string `yaml:"level"`
}

// DefaultSettings returns settings for an unconfigured run: NDJSON dataset
// named "tiktok" in ./data, conservative delays, info logging.
func DefaultSettings() *Settings {
	return &Settings{
		Dataset: DatasetSettings{
			Name:    DefaultDatasetName,
			Backend: "ndjson",
			Dir:     "data",
		},
		Scraper: ScraperSettings{
			SearchDelay:  2 * time.Second,
			ProfileDelay: time.Second,
			PageDelay:    time.Second,
		},
		Logging: LoggingSettings{Level: "info"},
	}
}

// Load builds Settings from defaults, an optional YAML file, and the
// environment, in that order. A .env file is honored if present.
func Load(path string) (*Settings, error) {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()

	s := DefaultSettings()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read settings file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("parse settings file %s: %w", path, err)
			}
		}
	}

	s.loadFromEnv()

	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// loadFromEnv applies TTINF_* environment overrides.
func (s *Settings) loadFromEnv() {
	if v := os.Getenv("TTINF_DATASET_NAME"); v != "" {
		s.Dataset.Name = v
	}
	if v := os.Getenv("TTINF_DATASET_BACKEND"); v != "" {
		s.Dataset.Backend = v
	}
	if v := os.Getenv("TTINF_DATASET_DIR"); v != "" {
		s.Dataset.Dir = v
	}
	if v := os.Getenv("TTINF_POSTGRES_DSN"); v != "" {
		s.Dataset.PostgresDSN = v
	}
	if v := os.Getenv("TTINF_API_URL"); v != "" {
		s.Dataset.APIURL = v
	}
	if v := os.Getenv("TTINF_PROXY"); v != "" {
		s.Scraper.Proxy = v
	}
	if v := os.Getenv("TTINF_COOKIES_FILE"); v != "" {
		s.Scraper.CookiesFile = v
	}
	if v := os.Getenv("TTINF_LOG_LEVEL"); v != "" {
		s.Logging.Level = v
	}
	if v := os.Getenv("TTINF_SEARCH_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.Scraper.SearchDelay = d
		}
	}
	if v := os.Getenv("TTINF_PROFILE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.Scraper.ProfileDelay = d
		}
	}
	if v := os.Getenv("TTINF_PAGE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			s.Scraper.PageDelay = d
		}
	}
}
