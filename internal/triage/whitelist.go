package triage

import "github.com/JagaGrup/Sentinel/internal/urlcheck"

// Trusted academic domains. A message whose URLs all land here can bypass
// the LLM stages entirely.
var academicDomains = []string{
	// UIR official
	"uir.ac.id", "student.uir.ac.id", "kuliah.uir.ac.id",
	"elearning.uir.ac.id", "sia.uir.ac.id", "library.uir.ac.id",
	// Indonesian education
	"kemdikbud.go.id", "dikti.go.id", "pddikti.kemdikbud.go.id", "lldikti.go.id",
	// Academic platforms
	"classroom.google.com", "docs.google.com", "drive.google.com",
	"forms.google.com", "scholar.google.com",
	"github.com", "gitlab.com", "stackoverflow.com", "medium.com",
	"researchgate.net", "academia.edu", "ieee.org", "acm.org",
	"springer.com", "sciencedirect.com",
}

var meetingPlatforms = []string{
	"zoom.us", "meet.google.com", "teams.microsoft.com",
	"webex.com", "discord.com", "discord.gg",
}

var trustedSocial = []string{
	"youtube.com", "youtu.be", "linkedin.com", "twitter.com", "x.com",
	"instagram.com", "facebook.com", "wa.me", "t.me",
}

var govDomains = []string{
	"go.id", "kemenkeu.go.id", "pajak.go.id", "bps.go.id",
}

// Whitelist matches URLs against the trusted domain sets.
type Whitelist struct {
	domains map[string]bool
}

// NewWhitelist builds the whitelist, optionally extended with custom domains.
func NewWhitelist(custom []string) *Whitelist {
	domains := make(map[string]bool)
	for _, group := range [][]string{academicDomains, meetingPlatforms, trustedSocial, govDomains} {
		for _, d := range group {
			domains[d] = true
		}
	}
	for _, d := range custom {
		domains[d] = true
	}
	return &Whitelist{domains: domains}
}

// IsWhitelisted reports whether the URL's domain is trusted, directly or as
// a subdomain of a trusted domain.
func (w *Whitelist) IsWhitelisted(rawURL string) bool {
	domain := urlcheck.ExtractDomain(rawURL)

	if w.domains[domain] {
		return true
	}
	for trusted := range w.domains {
		if len(domain) > len(trusted) && domain[len(domain)-len(trusted)-1] == '.' &&
			domain[len(domain)-len(trusted):] == trusted {
			return true
		}
	}
	return false
}

// SplitURLs partitions URLs into whitelisted and non-whitelisted.
func (w *Whitelist) SplitURLs(urls []string) (whitelisted, notWhitelisted []string) {
	for _, u := range urls {
		if w.IsWhitelisted(u) {
			whitelisted = append(whitelisted, u)
		} else {
			notWhitelisted = append(notWhitelisted, u)
		}
	}
	return whitelisted, notWhitelisted
}

// Add puts a domain on the whitelist.
func (w *Whitelist) Add(domain string) {
	w.domains[domain] = true
}
