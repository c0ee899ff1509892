package urlcheck

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// TLD severity table. Free TLDs are abused heavily in Indonesian phishing
// campaigns and score highest.
var suspiciousTLDSeverity = map[string]string{
	".tk": "critical", ".ml": "critical", ".ga": "critical", ".cf": "critical", ".gq": "critical",
	".xyz": "high", ".top": "high", ".icu": "high",
	".click": "medium", ".link": "medium", ".monster": "medium",
	".work": "low", ".rest": "low",
}

var tldSeverityScore = map[string]float64{
	"critical": 0.4,
	"high":     0.3,
	"medium":   0.2,
	"low":      0.1,
}

// Keywords that are suspicious in a URL path but normal in a domain
// (e.g. accounts.google.com).
var suspiciousPathKeywords = []string{
	"login", "signin", "verify", "secure", "account", "update",
	"confirm", "bank", "paypal", "password", "credential",
}

var numericLabelPattern = regexp.MustCompile(`\d{2,}`)

// HeuristicResult is the outcome of the lexical URL analysis.
type HeuristicResult struct {
	RiskScore   float64
	IsMalicious bool
	RiskFactors []string
}

// HeuristicCheck scores a URL on structure alone, without any network
// traffic. Scores accumulate per factor and clamp at 1.0; a URL is deemed
// malicious at 0.5 or above.
func HeuristicCheck(rawURL string) HeuristicResult {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return HeuristicResult{RiskScore: 0.5, RiskFactors: []string{"unparseable URL"}, IsMalicious: true}
	}
	domain := strings.ToLower(parsed.Host)

	var factors []string
	score := 0.0

	if IsIPAddress(domain) {
		factors = append(factors, "IP address instead of domain")
		score += 0.3
	}

	if severity := checkSuspiciousTLD(domain); severity != "" {
		score += tldSeverityScore[severity]
		factors = append(factors, fmt.Sprintf("%s-risk TLD", severity))
	}

	if IsShortenedURL(rawURL) {
		factors = append(factors, "URL shortener detected")
		score += 0.2
	}

	if strings.Count(domain, ".") > 3 {
		factors = append(factors, "Excessive subdomains")
		score += 0.15
	}

	urlLower := strings.ToLower(rawURL)
	for _, keyword := range suspiciousPathKeywords {
		if strings.Contains(urlLower, keyword) && !strings.Contains(domain, keyword) {
			factors = append(factors, "Suspicious keyword: "+keyword)
			score += 0.1
			break
		}
	}

	if parsed.Scheme == "http" {
		factors = append(factors, "No HTTPS")
		score += 0.1
	}

	if strings.Contains(rawURL, "@") || strings.Contains(parsed.Path, "!") {
		factors = append(factors, "Unusual characters in URL")
		score += 0.2
	}

	// Punycode hosts can hide homograph attacks
	if strings.HasPrefix(domain, "xn--") || strings.Contains(domain, ".xn--") {
		factors = append(factors, "Punycode/IDN domain")
		score += 0.25
	}

	if firstLabel, _, _ := strings.Cut(domain, "."); numericLabelPattern.MatchString(firstLabel) {
		factors = append(factors, "Numeric pattern in domain")
		score += 0.1
	}

	if score > 1.0 {
		score = 1.0
	}

	return HeuristicResult{
		RiskScore:   score,
		IsMalicious: score >= 0.5,
		RiskFactors: factors,
	}
}

// HasSuspiciousTLD reports whether the URL's domain ends in a known abused TLD.
func HasSuspiciousTLD(rawURL string) bool {
	return checkSuspiciousTLD(ExtractDomain(rawURL)) != ""
}

func checkSuspiciousTLD(domain string) string {
	for tld, severity := range suspiciousTLDSeverity {
		if strings.HasSuffix(domain, tld) {
			return severity
		}
	}
	return ""
}
