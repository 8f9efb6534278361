package seo

import "strings"

// crawlers is matched case-insensitively as a substring of the User-Agent.
var crawlers = []string{
	"googlebot",
	"google-inspectiontool",
	"bingbot",
	"yandex",
	"baiduspider",
	"duckduckbot",
	"slurp",
	"applebot",
	"facebookexternalhit",
	"facebot",
	"twitterbot",
	"linkedinbot",
	"pinterest",
	"whatsapp",
	"telegrambot",
	"slackbot",
	"discordbot",
	"skypeuripreview",
	"redditbot",
	"embedly",
	"quora link preview",
	"semrushbot",
	"ahrefsbot",
}

// IsBot reports whether ua belongs to a known crawler or link previewer.
func IsBot(ua string) bool {
	if ua == "" {
		return false
	}
	ua = strings.ToLower(ua)
	for _, c := range crawlers {
		if strings.Contains(ua, c) {
			return true
		}
	}
	return false
}
