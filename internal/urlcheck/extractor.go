package urlcheck

import (
	"regexp"
	"strings"
)

// Package-level patterns compiled once at startup; extraction runs on every
// incoming message.
var (
	// urlPattern matches explicit http(s) URLs, www-prefixed hosts, and bare
	// domain/path forms like "kampus-uir.tk/login".
	urlPattern = regexp.MustCompile(
		`(?i)https?://[^\s<>"{}|\\^` + "`" + `\[\]]+` +
			`|(?:www\.)[^\s<>"{}|\\^` + "`" + `\[\]]+` +
			`|(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}/[^\s<>"{}|\\^` + "`" + `\[\]]*`,
	)

	// ipv4Pattern matches a bare IPv4 host.
	ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// ExtractURLs pulls every URL out of a message, normalized to an https://
// form with trailing punctuation stripped. Order of first appearance is
// preserved; duplicates are dropped.
func ExtractURLs(text string) []string {
	if text == "" {
		return nil
	}

	matches := urlPattern.FindAllString(text, -1)

	seen := make(map[string]bool, len(matches))
	var normalized []string
	for _, u := range matches {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			u = "https://" + u
		}
		u = strings.TrimRight(u, ".,;:!?)")
		if !seen[u] {
			seen[u] = true
			normalized = append(normalized, u)
		}
	}
	return normalized
}

// HasURLs is a quick check without full extraction.
func HasURLs(text string) bool {
	return urlPattern.MatchString(text)
}

// ExtractDomain returns the lowercase host of a URL, without scheme, www
// prefix, path, or port.
func ExtractDomain(rawURL string) string {
	u := strings.ToLower(rawURL)
	u = strings.TrimPrefix(u, "https://")
	u = strings.TrimPrefix(u, "http://")
	u = strings.TrimPrefix(u, "www.")
	if i := strings.IndexAny(u, "/?#"); i >= 0 {
		u = u[:i]
	}
	if i := strings.Index(u, ":"); i >= 0 {
		u = u[:i]
	}
	return u
}

// IsIPAddress reports whether a host is a bare IPv4 address.
func IsIPAddress(host string) bool {
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}
	return ipv4Pattern.MatchString(host)
}
