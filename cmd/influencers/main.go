// Command influencers collects TikTok influencer records for a keyword and
// appends them to a dataset.
package main

func main() {
	Execute()
}
