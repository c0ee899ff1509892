package urlcheck

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JagaGrup/Sentinel/internal/models"
)

// Trusted destinations: a URL resolving here is safe regardless of what
// wrapped it. Kept separate from the triage whitelist, which is about the
// message-level bypass.
var trustedDomains = map[string]bool{
	// Google services
	"google.com": true, "google.co.id": true, "accounts.google.com": true,
	"docs.google.com": true, "drive.google.com": true, "meet.google.com": true,
	"classroom.google.com": true, "forms.google.com": true, "sites.google.com": true,
	"calendar.google.com": true, "mail.google.com": true, "youtube.com": true,
	// Microsoft services
	"microsoft.com": true, "office.com": true, "live.com": true, "outlook.com": true,
	"onedrive.com": true, "sharepoint.com": true, "teams.microsoft.com": true,
	// Academic platforms
	"github.com": true, "gitlab.com": true, "zoom.us": true, "zoom.com": true,
	// Indonesian academic
	"uir.ac.id": true, "kemdikbud.go.id": true, "dikti.go.id": true,
	// Common trusted
	"linkedin.com": true, "whatsapp.com": true, "telegram.org": true,
}

// IsTrustedDomain reports whether the URL's host is a trusted domain or a
// subdomain of one.
func IsTrustedDomain(rawURL string) bool {
	domain := ExtractDomain(rawURL)
	if trustedDomains[domain] {
		return true
	}
	for trusted := range trustedDomains {
		if strings.HasSuffix(domain, "."+trusted) {
			return true
		}
	}
	return false
}

type cachedCheck struct {
	check    models.URLCheck
	storedAt time.Time
}

// SecurityChecker layers expansion, trusted-domain matching, lexical
// heuristics, an optional landing-page scan, and VirusTotal reputation into
// a single per-URL verdict.
type SecurityChecker struct {
	expander    *Expander
	virustotal  *VirusTotalChecker
	landing     *LandingScanner
	landingScan bool

	cacheTTL   time.Duration
	maxEntries int

	mu    sync.Mutex
	cache map[string]cachedCheck
}

// CheckerOptions configures a SecurityChecker.
type CheckerOptions struct {
	VirusTotalAPIKey string
	ExpandTimeout    time.Duration
	MaxRedirects     int
	CacheTTL         time.Duration
	MaxCacheEntries  int
	LandingScan      bool
}

func NewSecurityChecker(opts CheckerOptions) *SecurityChecker {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.MaxCacheEntries <= 0 {
		opts.MaxCacheEntries = 500
	}
	return &SecurityChecker{
		expander:    NewExpander(opts.ExpandTimeout, opts.MaxRedirects, opts.CacheTTL, opts.MaxCacheEntries),
		virustotal:  NewVirusTotalChecker(opts.VirusTotalAPIKey),
		landing:     NewLandingScanner(opts.ExpandTimeout),
		landingScan: opts.LandingScan,
		cacheTTL:    opts.CacheTTL,
		maxEntries:  opts.MaxCacheEntries,
		cache:       make(map[string]cachedCheck),
	}
}

// CheckURL runs the full layered check for one URL.
func (sc *SecurityChecker) CheckURL(ctx context.Context, rawURL string) models.URLCheck {
	if cached, ok := sc.fromCache(rawURL); ok {
		return cached
	}

	expansion := sc.expander.Expand(ctx, rawURL)

	finalURL := rawURL
	if expansion.ExpandedURL != "" {
		finalURL = expansion.ExpandedURL
	}

	check := models.URLCheck{
		URL:              rawURL,
		RedirectChain:    expansion.RedirectChain,
		FinalDomain:      ExtractDomain(finalURL),
		IsShortened:      expansion.IsShortened,
		ExpansionSuccess: expansion.ExpansionSuccess || !expansion.IsShortened,
	}
	if expansion.ExpandedURL != "" && expansion.ExpandedURL != rawURL {
		check.ExpandedURL = expansion.ExpandedURL
	}

	// Layer 1: trusted destination short-circuits everything else
	if IsTrustedDomain(finalURL) {
		check.Source = "whitelist"
		check.RiskScore = 0.0
		check.IsMalicious = false
		sc.putCache(rawURL, check)
		return check
	}

	// Layer 2: lexical heuristics on the original and the expanded URL,
	// keeping the worse score
	heur := HeuristicCheck(rawURL)
	if check.ExpandedURL != "" {
		if expanded := HeuristicCheck(check.ExpandedURL); expanded.RiskScore > heur.RiskScore {
			heur = expanded
		}
	}
	check.RiskScore = heur.RiskScore
	check.IsMalicious = heur.IsMalicious
	check.RiskFactors = heur.RiskFactors
	check.Source = "heuristic"

	// Layer 3 (optional): landing-page credential scan
	if sc.landingScan {
		if hasForm, err := sc.landing.HasCredentialForm(ctx, finalURL); err != nil {
			log.Printf("⚠️ Landing scan failed for %s (non-critical): %v", finalURL, err)
		} else if hasForm {
			check.RiskScore += 0.25
			if check.RiskScore > 1.0 {
				check.RiskScore = 1.0
			}
			check.RiskFactors = append(check.RiskFactors, "credential_form")
			check.IsMalicious = check.RiskScore >= 0.5
		}
	}

	// Layer 4: VirusTotal reputation on the expanded URL, combined by
	// taking the worse of both verdicts
	if sc.virustotal.IsConfigured() {
		rep := sc.virustotal.CheckURL(ctx, finalURL)
		if rep.Err == "" {
			if rep.RiskScore > check.RiskScore {
				check.RiskScore = rep.RiskScore
			}
			check.IsMalicious = check.IsMalicious || rep.IsMalicious
			check.EnginesMalicious = rep.EnginesMalicious
			check.EnginesSuspicious = rep.EnginesSuspicious
			check.Source = "virustotal+heuristic"
		}
	}

	sc.putCache(rawURL, check)
	return check
}

// VirusTotal free tier allows 4 requests per minute; checks run in batches
// with a pause in between when the API is configured.
const (
	vtBatchSize  = 4
	vtBatchDelay = 15 * time.Second
)

// CheckURLs checks every URL, fanning out within rate-limit batches.
func (sc *SecurityChecker) CheckURLs(ctx context.Context, urls []string) map[string]models.URLCheck {
	results := make(map[string]models.URLCheck, len(urls))
	if len(urls) == 0 {
		return results
	}

	var mu sync.Mutex

	batchSize := len(urls)
	if sc.virustotal.IsConfigured() {
		batchSize = vtBatchSize
	}

	for i := 0; i < len(urls); i += batchSize {
		end := i + batchSize
		if end > len(urls) {
			end = len(urls)
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, u := range urls[i:end] {
			g.Go(func() error {
				check := sc.CheckURL(gctx, u)
				mu.Lock()
				results[u] = check
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if end < len(urls) && sc.virustotal.IsConfigured() {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(vtBatchDelay):
			}
		}
	}

	return results
}

func (sc *SecurityChecker) fromCache(rawURL string) (models.URLCheck, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	entry, ok := sc.cache[rawURL]
	if !ok {
		return models.URLCheck{}, false
	}
	if time.Since(entry.storedAt) >= sc.cacheTTL {
		delete(sc.cache, rawURL)
		return models.URLCheck{}, false
	}
	return entry.check, true
}

func (sc *SecurityChecker) putCache(rawURL string, check models.URLCheck) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if len(sc.cache) >= sc.maxEntries {
		keys := make([]string, 0, len(sc.cache))
		for k := range sc.cache {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return sc.cache[keys[i]].storedAt.Before(sc.cache[keys[j]].storedAt)
		})
		for _, k := range keys[:sc.maxEntries/10] {
			delete(sc.cache, k)
		}
	}

	sc.cache[rawURL] = cachedCheck{check: check, storedAt: time.Now()}
}
