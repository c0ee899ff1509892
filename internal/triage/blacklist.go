package triage

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/JagaGrup/Sentinel/internal/models"
	"github.com/JagaGrup/Sentinel/internal/urlcheck"
)

// Blacklist scans messages and URLs for known-bad patterns and red flags.
type Blacklist struct {
	domains map[string]bool
}

// NewBlacklist builds the blacklist. The built-in set starts empty and grows
// from operator reports via the custom list.
func NewBlacklist(custom []string) *Blacklist {
	domains := make(map[string]bool)
	for _, d := range custom {
		domains[d] = true
	}
	return &Blacklist{domains: domains}
}

// IsBlacklisted reports whether the URL's domain is on the blacklist.
func (b *Blacklist) IsBlacklisted(rawURL string) bool {
	return b.domains[urlcheck.ExtractDomain(rawURL)]
}

// Add puts a domain on the blacklist.
func (b *Blacklist) Add(domain string) {
	b.domains[strings.ToLower(domain)] = true
}

// AnalyzeURL checks a single URL for red flags.
func (b *Blacklist) AnalyzeURL(rawURL string) []models.RedFlag {
	var flags []models.RedFlag

	if b.IsBlacklisted(rawURL) {
		flags = append(flags, models.RedFlag{
			FlagType:     "blacklisted_domain",
			Description:  "URL domain is blacklisted",
			Severity:     10,
			MatchedValue: urlcheck.ExtractDomain(rawURL),
		})
	}

	if urlcheck.IsShortenedURL(rawURL) {
		flags = append(flags, models.RedFlag{
			FlagType:     "shortened_url",
			Description:  "URL uses shortener service (hides destination)",
			Severity:     6,
			MatchedValue: urlcheck.ExtractDomain(rawURL),
		})
	}

	if urlcheck.HasSuspiciousTLD(rawURL) {
		flags = append(flags, models.RedFlag{
			FlagType:     "suspicious_tld",
			Description:  "URL uses suspicious TLD",
			Severity:     5,
			MatchedValue: rawURL,
		})
	}

	return flags
}

// AnalyzeText checks message text for red flags.
func (b *Blacklist) AnalyzeText(text string) []models.RedFlag {
	var flags []models.RedFlag
	lower := strings.ToLower(text)

	if count := countUrgencyKeywords(lower); count >= 2 {
		severity := 4 + count
		if severity > 8 {
			severity = 8
		}
		flags = append(flags, models.RedFlag{
			FlagType:     "urgency_keywords",
			Description:  fmt.Sprintf("Multiple urgency keywords detected (%d)", count),
			Severity:     severity,
			MatchedValue: fmt.Sprintf("%d", count),
		})
	}

	if found := findPhishingKeywords(lower); len(found) > 0 {
		severity := 5 + len(found)
		if severity > 9 {
			severity = 9
		}
		preview := found
		if len(preview) > 3 {
			preview = preview[:3]
		}
		flags = append(flags, models.RedFlag{
			FlagType:     "phishing_keywords",
			Description:  "Phishing indicator keywords: " + strings.Join(preview, ", "),
			Severity:     severity,
			MatchedValue: strings.Join(found, ", "),
		})
	}

	if ratio := capsRatio(text); ratio > 0.5 {
		flags = append(flags, models.RedFlag{
			FlagType:     "caps_lock_abuse",
			Description:  fmt.Sprintf("Excessive caps lock usage (%.0f%%)", ratio*100),
			Severity:     4,
			MatchedValue: fmt.Sprintf("%.0f%%", ratio*100),
		})
	}

	if hasExcessivePunctuation(text) {
		flags = append(flags, models.RedFlag{
			FlagType:    "excessive_punctuation",
			Description: "Excessive exclamation/question marks",
			Severity:    3,
		})
	}

	if matched := matchAuthorityPatterns(lower); matched != "" {
		flags = append(flags, models.RedFlag{
			FlagType:     "authority_impersonation",
			Description:  "Potential authority impersonation detected",
			Severity:     7,
			MatchedValue: matched,
		})
	}

	return flags
}

func countUrgencyKeywords(lower string) int {
	count := 0
	for _, keyword := range urgencyKeywords {
		if strings.Contains(lower, keyword) {
			count++
		}
	}
	return count
}

func findPhishingKeywords(lower string) []string {
	var found []string
	for _, keyword := range phishingKeywords {
		if strings.Contains(lower, keyword) {
			found = append(found, keyword)
		}
	}
	return found
}

func capsRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}

func hasExcessivePunctuation(text string) bool {
	if excessivePunctPattern.MatchString(text) {
		return true
	}
	return strings.Count(text, "!")+strings.Count(text, "?") > 5
}

func matchAuthorityPatterns(lower string) string {
	for _, pattern := range authorityPatterns {
		if pattern.MatchString(lower) {
			return pattern.String()
		}
	}
	return ""
}
