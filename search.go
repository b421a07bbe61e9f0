package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// SearchPage fetches one page of search results for a keyword starting at
// the given cursor. Requires an initialized browser (InitBrowser) for
// signing. A hashtag query is just the keyword prefixed with "#".
func (s *Scraper) SearchPage(ctx context.Context, keyword string, cursor int) (Page, error) {
	if keyword == "" {
		return Page{}, fmt.Errorf("search page: keyword is required")
	}

	rawURL := fmt.Sprintf(
		"%s/api/search/item/full/?keyword=%s&count=20&cursor=%d&from_page=search",
		s.baseURL, url.QueryEscape(keyword), cursor,
	)

	body, err := s.fetchSigned(ctx, rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("search page %q cursor %d: %w", keyword, cursor, err)
	}

	page, err := parseSearchPage(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("search page %q cursor %d: %w", keyword, cursor, err)
	}
	return page, nil
}

// SearchVideos searches TikTok for videos matching the keyword, following
// pagination until limit videos are collected or results run out.
func (s *Scraper) SearchVideos(ctx context.Context, keyword string, limit int) ([]Video, error) {
	if keyword == "" {
		return nil, fmt.Errorf("search videos: keyword is required")
	}

	var allVideos []Video
	cursor := 0

	for len(allVideos) < limit {
		page, err := s.SearchPage(ctx, keyword, cursor)
		if err != nil {
			return allVideos, fmt.Errorf("search videos %q: %w", keyword, err)
		}
		allVideos = append(allVideos, page.Videos...)
		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	if len(allVideos) > limit {
		allVideos = allVideos[:limit]
	}
	return allVideos, nil
}

// ChallengeID resolves a hashtag name to its challenge ID.
func (s *Scraper) ChallengeID(ctx context.Context, hashtag string) (string, error) {
	if hashtag == "" {
		return "", fmt.Errorf("challenge id: hashtag is required")
	}

	rawURL := fmt.Sprintf(
		"%s/api/challenge/detail/?challengeName=%s",
		s.baseURL, url.QueryEscape(hashtag),
	)

	body, err := s.fetchSigned(ctx, rawURL)
	if err != nil {
		return "", fmt.Errorf("challenge detail %q: %w", hashtag, err)
	}

	var result challengeDetailResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: decode challenge detail: %v", ErrInvalidResponse, err)
	}

	if result.ChallengeInfo.Challenge.ID == "" {
		return "", fmt.Errorf("%w: challenge %q", ErrNotFound, hashtag)
	}
	return result.ChallengeInfo.Challenge.ID, nil
}

// HashtagPage fetches one page of videos posted under a challenge.
func (s *Scraper) HashtagPage(ctx context.Context, challengeID string, cursor int) (Page, error) {
	if challengeID == "" {
		return Page{}, fmt.Errorf("hashtag page: challenge id is required")
	}

	rawURL := fmt.Sprintf(
		"%s/api/challenge/item_list/?challengeID=%s&count=35&cursor=%s",
		s.baseURL, url.QueryEscape(challengeID), strconv.Itoa(cursor),
	)

	body, err := s.fetchSigned(ctx, rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("hashtag page %q cursor %d: %w", challengeID, cursor, err)
	}

	page, err := parseHashtagPage(bytes.NewReader(body))
	if err != nil {
		return Page{}, fmt.Errorf("hashtag page %q cursor %d: %w", challengeID, cursor, err)
	}
	return page, nil
}

// SearchByHashtag searches TikTok for videos under a specific hashtag via
// the challenge API, following pagination up to limit videos.
func (s *Scraper) SearchByHashtag(ctx context.Context, hashtag string, limit int) ([]Video, error) {
	if hashtag == "" {
		return nil, fmt.Errorf("search by hashtag: hashtag is required")
	}

	challengeID, err := s.ChallengeID(ctx, hashtag)
	if err != nil {
		return nil, fmt.Errorf("search by hashtag %q: %w", hashtag, err)
	}

	var allVideos []Video
	cursor := 0

	for len(allVideos) < limit {
		page, err := s.HashtagPage(ctx, challengeID, cursor)
		if err != nil {
			return allVideos, fmt.Errorf("fetch hashtag videos %q: %w", hashtag, err)
		}
		allVideos = append(allVideos, page.Videos...)
		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	if len(allVideos) > limit {
		allVideos = allVideos[:limit]
	}
	return allVideos, nil
}
