package main

import (
	"fmt"

	"github.com/spf13/cobra"

	tiktok "github.com/quokkaai/tiktok-influencers"
)

var (
	loginUser    string
	loginPass    string
	loginCookies string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to TikTok and save session cookies",
	Long:  "Authenticate through the headless browser and save the session cookies for later runs.",
	RunE: func(_ *cobra.Command, _ []string) error {
		s := tiktok.New().WithLogger(log)
		defer s.Close()

		if settings.Scraper.Proxy != "" {
			if err := s.SetProxy(settings.Scraper.Proxy); err != nil {
				return fmt.Errorf("set proxy: %w", err)
			}
		}

		if err := s.InitBrowser(); err != nil {
			return fmt.Errorf("init browser: %w", err)
		}
		if err := s.Login(loginUser, loginPass); err != nil {
			return fmt.Errorf("login: %w", err)
		}
		if err := s.SaveCookies(loginCookies); err != nil {
			return fmt.Errorf("save cookies: %w", err)
		}

		fmt.Printf("Logged in. Cookies saved to %s\n", loginCookies)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "TikTok username")
	loginCmd.Flags().StringVarP(&loginPass, "pass", "p", "", "TikTok password")
	loginCmd.Flags().StringVar(&loginCookies, "save-cookies", "cookies.json", "path to save cookies after login")
	_ = loginCmd.MarkFlagRequired("user")
	_ = loginCmd.MarkFlagRequired("pass")

	rootCmd.AddCommand(loginCmd)
}
