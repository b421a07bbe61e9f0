package tiktok

import (
	"context"
	"fmt"
	"io"
	"time"
)

// GetUser fetches a TikTok user profile via SSR HTML parsing.
// This is pure HTTP — no browser or login required.
func (s *Scraper) GetUser(ctx context.Context, username string) (Author, error) {
	if username == "" {
		return Author{}, fmt.Errorf("get user: username is required")
	}

	start := time.Now()
	profileURL := s.baseURL + "/@" + username

	if err := s.waitForProfile(ctx); err != nil {
		return Author{}, fmt.Errorf("get user %q: %w", username, err)
	}

	resp, err := s.doRequest(ctx, "GET", profileURL, nil)
	if err != nil {
		return Author{}, fmt.Errorf("get user %q: %w", username, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Author{}, fmt.Errorf("read user page %q: %w", username, err)
	}

	data, err := extractUniversalData(body)
	if err != nil {
		return Author{}, fmt.Errorf("parse user page %q: %w", username, err)
	}

	author, err := extractUserFromSSR(data)
	if err != nil {
		return Author{}, fmt.Errorf("extract user %q: %w", username, err)
	}

	s.log.Debug().
		Str("username", username).
		Int("followers", author.FollowerCount).
		Int("body_bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("fetched user profile")

	return author, nil
}
