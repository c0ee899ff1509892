package triage

import (
	"context"
	"log"
	"time"

	"github.com/JagaGrup/Sentinel/internal/models"
	"github.com/JagaGrup/Sentinel/internal/urlcheck"
)

// Risk score weights per red flag. A shortener by itself is a mild signal
// (lecturers use bit.ly and s.id constantly); the destination domain is what
// carries the weight.
var scoreWeights = map[string]int{
	"blacklisted_domain":           50,
	"shortened_url":                10,
	"shortened_url_expand_failed":  15,
	"suspicious_tld":               15,
	"urgency_keywords":             15,
	"phishing_keywords":            20,
	"caps_lock_abuse":              10,
	"excessive_punctuation":        5,
	"authority_impersonation":      20,
	"time_anomaly":                 10,
	"length_anomaly":               10,
	"first_time_url":               10,
	"emoji_anomaly":                5,
}

const defaultFlagWeight = 10

// ExpandFunc resolves a possibly-shortened URL. The analyzer only calls it
// for URLs that were not already checked upstream.
type ExpandFunc func(ctx context.Context, url string) urlcheck.ExpandResult

// Options tunes the analyzer.
type Options struct {
	LowRiskThreshold        int // LOW_RISK / HIGH_RISK boundary
	ShortenerWhitelistBonus int // applied per shortener resolving to a trusted domain
	CustomWhitelist         []string
	CustomBlacklist         []string
}

// Analyzer is the rule-based first stage: zero LLM tokens, pure pattern and
// baseline analysis producing a 0-100 risk score.
type Analyzer struct {
	whitelist *Whitelist
	blacklist *Blacklist
	expand    ExpandFunc

	lowRiskThreshold int
	shortenerBonus   int
}

// NewAnalyzer builds the triage stage. expand may be nil, in which case
// shortened URLs that were not pre-checked stay unexpanded.
func NewAnalyzer(opts Options, expand ExpandFunc) *Analyzer {
	if opts.LowRiskThreshold <= 0 {
		opts.LowRiskThreshold = 30
	}
	if opts.ShortenerWhitelistBonus == 0 {
		opts.ShortenerWhitelistBonus = -10
	}
	return &Analyzer{
		whitelist:        NewWhitelist(opts.CustomWhitelist),
		blacklist:        NewBlacklist(opts.CustomBlacklist),
		expand:           expand,
		lowRiskThreshold: opts.LowRiskThreshold,
		shortenerBonus:   opts.ShortenerWhitelistBonus,
	}
}

// Analyze runs the full rule-based pass over one message. urlChecks carries
// pre-computed verdicts from the URL security checker and may be nil.
func (a *Analyzer) Analyze(
	ctx context.Context,
	text string,
	timestamp time.Time,
	baseline models.BaselineSnapshot,
	urlChecks map[string]models.URLCheck,
) models.TriageResult {
	if timestamp.IsZero() {
		timestamp = time.Now()
	}

	riskScore := 0
	var redFlags []models.RedFlag
	expandedURLs := make(map[string]models.URLCheck)
	expandedDestinations := make(map[string]string)

	// Pre-process upstream URL checks: a URL is trusted when the checker
	// already expanded and cleared it (e.g. bit.ly -> Google Forms)
	trustedFromChecker := make(map[string]bool)
	for url, check := range urlChecks {
		if check.Source == "whitelist" || (!check.IsMalicious && check.RiskScore <= 0.10) {
			trustedFromChecker[url] = true
		}
		if check.ExpandedURL != "" {
			evidence := check
			if evidence.FinalDomain == "" {
				evidence.FinalDomain = urlcheck.ExtractDomain(check.ExpandedURL)
			}
			evidence.IsShortened = urlcheck.IsShortenedURL(url)
			evidence.ExpansionSuccess = true
			expandedURLs[url] = evidence
			if evidence.FinalDomain != "" {
				expandedDestinations[url] = evidence.FinalDomain
			}
		}
	}

	// Step 1: extract URLs
	urls := urlcheck.ExtractURLs(text)
	hasURLs := len(urls) > 0

	// Step 2: expand shortened URLs that nobody checked yet
	for _, url := range urls {
		if _, done := expandedURLs[url]; done {
			continue
		}
		if trustedFromChecker[url] || a.expand == nil {
			continue
		}
		result := a.expand(ctx, url)
		if !result.IsShortened {
			continue
		}
		expandedURLs[url] = models.URLCheck{
			URL:              url,
			ExpandedURL:      result.ExpandedURL,
			RedirectChain:    result.RedirectChain,
			FinalDomain:      result.FinalDomain,
			IsShortened:      true,
			ExpansionSuccess: result.ExpansionSuccess,
			Source:           "expander",
		}
		expandedDestinations[url] = result.FinalDomain
	}

	// Step 3: whitelist split, then fold in checker-trusted URLs and
	// shorteners whose destination turned out whitelisted
	whitelisted, notWhitelisted := a.whitelist.SplitURLs(urls)

	notWhitelisted = moveMatching(notWhitelisted, &whitelisted, func(url string) bool {
		return trustedFromChecker[url]
	})

	var shortenerWhitelisted int
	notWhitelisted = moveMatching(notWhitelisted, &whitelisted, func(url string) bool {
		dest, ok := expandedDestinations[url]
		if !ok || dest == "" {
			return false
		}
		if a.whitelist.IsWhitelisted("https://" + dest) {
			shortenerWhitelisted++
			return true
		}
		return false
	})

	allWhitelisted := len(notWhitelisted) == 0 && len(whitelisted) > 0

	// Step 4: URL red flags, with shortener flags adjusted by expansion
	// outcome, and expanded destinations analyzed too
	for _, url := range notWhitelisted {
		urlFlags := a.blacklist.AnalyzeURL(url)

		if dest, wasExpanded := expandedDestinations[url]; wasExpanded {
			expansion := expandedURLs[url]
			var adjusted []models.RedFlag
			for _, flag := range urlFlags {
				if flag.FlagType != "shortened_url" {
					adjusted = append(adjusted, flag)
					continue
				}
				if !expansion.ExpansionSuccess {
					adjusted = append(adjusted, models.RedFlag{
						FlagType:     "shortened_url_expand_failed",
						Description:  "Shortened URL could not be expanded (destination unknown)",
						Severity:     5,
						MatchedValue: flag.MatchedValue,
					})
				} else {
					adjusted = append(adjusted, models.RedFlag{
						FlagType:     "shortened_url",
						Description:  "Shortened URL -> " + dest + " (not whitelisted, needs review)",
						Severity:     3,
						MatchedValue: flag.MatchedValue + " -> " + dest,
					})
				}
			}
			if dest != "" && expansion.ExpansionSuccess {
				adjusted = append(adjusted, a.blacklist.AnalyzeURL("https://"+dest)...)
			}
			redFlags = append(redFlags, adjusted...)
		} else {
			redFlags = append(redFlags, urlFlags...)
		}
	}

	// Step 5: text red flags
	redFlags = append(redFlags, a.blacklist.AnalyzeText(text)...)

	// Step 6: behavioral anomalies
	anomalies := DetectAnomalies(text, timestamp, hasURLs, baseline)

	// Step 7: risk score
	var triggered []string
	for _, flag := range redFlags {
		weight, ok := scoreWeights[flag.FlagType]
		if !ok {
			weight = defaultFlagWeight
		}
		riskScore += weight
		triggered = append(triggered, flag.FlagType)
	}
	for _, anomaly := range anomalies {
		weight, ok := scoreWeights[anomaly.AnomalyType]
		if !ok {
			weight = defaultFlagWeight
		}
		riskScore += int(float64(weight) * anomaly.DeviationScore)
		triggered = append(triggered, anomaly.AnomalyType)
	}

	// Shorteners resolving to whitelisted domains give their risk back
	riskScore += a.shortenerBonus * shortenerWhitelisted

	if riskScore < 0 {
		riskScore = 0
	}
	if riskScore > 100 {
		riskScore = 100
	}

	// Step 8: classification
	var classification string
	var skipLLM bool
	switch {
	case riskScore == 0 && (allWhitelisted || !hasURLs):
		classification = models.RiskSafe
		skipLLM = true
	case riskScore < a.lowRiskThreshold:
		classification = models.RiskLow
	default:
		classification = models.RiskHigh
	}

	result := models.TriageResult{
		Classification:  classification,
		RiskScore:       riskScore,
		SkipLLM:         skipLLM,
		URLsFound:       urls,
		WhitelistedURLs: whitelisted,
		ExpandedURLs:    expandedURLs,
		RedFlags:        redFlags,
		Anomalies:       anomalies,
		TriggeredFlags:  dedupe(triggered),
	}

	log.Printf("🔵 Triage: %s (risk=%d, flags=%d, urls=%d, skip_llm=%v)",
		classification, riskScore, len(redFlags), len(urls), skipLLM)

	return result
}

// moveMatching moves every matching URL from src into dst, returning the
// remaining src.
func moveMatching(src []string, dst *[]string, match func(string) bool) []string {
	var remaining []string
	for _, url := range src {
		if match(url) {
			*dst = append(*dst, url)
		} else {
			remaining = append(remaining, url)
		}
	}
	return remaining
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
