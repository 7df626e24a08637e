// Package referrers maps raw referrer hostnames to display names for
// the stats API. The raw hostname stays untouched in storage; mapping
// happens only when rollup rows are read.
package referrers

import "strings"

type source struct {
	name    string
	domains []string
}

var sources = []source{
	{"Google", []string{"google.com", "google.co.uk", "google.de", "google.fr", "google.co.jp", "google.com.br"}},
	{"Bing", []string{"bing.com"}},
	{"DuckDuckGo", []string{"duckduckgo.com"}},
	{"Yandex", []string{"yandex.ru", "yandex.com"}},
	{"Ecosia", []string{"ecosia.org"}},

	{"X/Twitter", []string{"x.com", "twitter.com", "t.co"}},
	{"Facebook", []string{"facebook.com", "fb.com", "l.facebook.com"}},
	{"Instagram", []string{"instagram.com", "l.instagram.com"}},
	{"LinkedIn", []string{"linkedin.com", "lnkd.in"}},
	{"Reddit", []string{"reddit.com", "old.reddit.com"}},
	{"Bluesky", []string{"bsky.app"}},
	{"Mastodon", []string{"mastodon.social"}},
	{"YouTube", []string{"youtube.com", "youtu.be"}},
	{"Telegram", []string{"telegram.org", "t.me"}},

	{"Hacker News", []string{"news.ycombinator.com", "hn.algolia.com"}},
	{"Lobsters", []string{"lobste.rs"}},
	{"Product Hunt", []string{"producthunt.com"}},
	{"DEV Community", []string{"dev.to"}},
	{"Medium", []string{"medium.com"}},
	{"Substack", []string{"substack.com"}},
	{"GitHub", []string{"github.com"}},
	{"Stack Overflow", []string{"stackoverflow.com"}},

	{"Gmail", []string{"mail.google.com"}},
	{"Outlook", []string{"outlook.live.com", "outlook.office.com"}},
}

var byDomain map[string]string

func init() {
	byDomain = make(map[string]string)
	for _, s := range sources {
		for _, d := range s.domains {
			byDomain[d] = s.name
		}
	}
}

// DisplayName resolves a referrer hostname to a recognizable source
// name. Unknown hostnames come back with the www. prefix stripped and
// the first letter capitalized.
func DisplayName(hostname string) string {
	hostname = strings.ToLower(hostname)
	hostname = strings.TrimPrefix(hostname, "www.")

	if name, ok := byDomain[hostname]; ok {
		return name
	}

	// Subdomains of a known source map to the same name
	for domain, name := range byDomain {
		if strings.HasSuffix(hostname, "."+domain) {
			return name
		}
	}

	if hostname == "" {
		return hostname
	}
	return strings.ToUpper(hostname[:1]) + hostname[1:]
}
