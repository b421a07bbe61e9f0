package tiktok

import (
	"fmt"
	"time"
)

// Video represents a TikTok video with its engagement metrics.
type Video struct {
	ID          string
	Description string
	AuthorID    string
	Username    string
	Nickname    string
	CreatedAt   time.Time
	Views       int
	Likes       int
	Comments    int
	Shares      int
}

// EngagementRate returns the video's engagement as a percentage of views:
// (likes + comments + shares) / views * 100. Zero views yields zero.
func (v Video) EngagementRate() float64 {
	if v.Views <= 0 {
		return 0
	}
	return float64(v.Likes+v.Comments+v.Shares) / float64(v.Views) * 100
}

// Author represents a TikTok user profile with their stats.
type Author struct {
	ID             string
	Username       string
	Nickname       string
	FollowerCount  int
	FollowingCount int
	VideoCount     int
	Verified       bool
	Bio            string
	AvatarURL      string
}

// Page is one page of search or hashtag results. Cursor is the offset to
// request next; HasMore reports whether the platform has further pages.
type Page struct {
	Videos  []Video
	Cursor  int
	HasMore bool
}

// Influencer is one extracted profile record matching a search. Built once
// from a video and (optionally) the author's profile stats, then immutable.
type Influencer struct {
	Name           string    `json:"name"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Bio            string    `json:"bio"`
	ProfileURL     string    `json:"profile_url"`
	AvatarURL      string    `json:"avatar_url"`
	FollowerCount  int       `json:"follower_count"`
	EngagementRate float64   `json:"engagement_rate"`
	Verified       bool      `json:"verified"`
	LastPostAt     time.Time `json:"last_post_at"`
}

// NewInfluencer builds an Influencer from a search result video and the
// author's profile. A zero Author degrades gracefully to video-level data,
// so a failed profile lookup still yields a usable record.
func NewInfluencer(v Video, a Author) Influencer {
	username := a.Username
	if username == "" {
		username = v.Username
	}
	name := a.Nickname
	if name == "" {
		name = v.Nickname
	}
	return Influencer{
		Name:           name,
		Username:       username,
		Email:          fmt.Sprintf("%s@gmail.com", username),
		Bio:            a.Bio,
		ProfileURL:     "https://www.tiktok.com/@" + username,
		AvatarURL:      a.AvatarURL,
		FollowerCount:  a.FollowerCount,
		EngagementRate: v.EngagementRate(),
		Verified:       a.Verified,
		LastPostAt:     v.CreatedAt,
	}
}
