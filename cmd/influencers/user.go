package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	tiktok "github.com/quokkaai/tiktok-influencers"
)

var userCmd = &cobra.Command{
	Use:   "user <username>",
	Short: "Look up a single TikTok user profile",
	Long:  "Fetch one user profile via SSR parsing. Pure HTTP, no browser or login needed.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		s := tiktok.New().WithLogger(log)
		defer s.Close()

		if settings.Scraper.Proxy != "" {
			if err := s.SetProxy(settings.Scraper.Proxy); err != nil {
				return fmt.Errorf("set proxy: %w", err)
			}
		}

		author, err := s.GetUser(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		printAuthor(author)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(userCmd)
}

func printAuthor(a tiktok.Author) {
	fmt.Printf("User:      %s\n", a.Username)
	fmt.Printf("Name:      %s\n", a.Nickname)
	fmt.Printf("ID:        %s\n", a.ID)
	fmt.Printf("Followers: %d\n", a.FollowerCount)
	fmt.Printf("Following: %d\n", a.FollowingCount)
	fmt.Printf("Videos:    %d\n", a.VideoCount)
	fmt.Printf("Verified:  %v\n", a.Verified)
	fmt.Printf("Bio:       %s\n", a.Bio)
}
