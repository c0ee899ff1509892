package urlcheck

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Known URL shortener services. Shorteners are common in academic groups
// (lecturers share bit.ly and s.id links routinely), so being shortened is a
// mild signal at most; the destination domain is what matters.
var shortenerDomains = map[string]bool{
	"bit.ly": true, "tinyurl.com": true, "goo.gl": true, "t.co": true,
	"ow.ly": true, "is.gd": true, "buff.ly": true, "adf.ly": true,
	"j.mp": true, "tr.im": true, "shorte.st": true, "cutt.ly": true,
	"rb.gy": true, "shorturl.at": true, "s.id": true, "linktr.ee": true,
	"rebrand.ly": true, "tiny.cc": true, "lnkd.in": true, "youtu.be": true,
	"short.link": true, "v.gd": true, "clck.ru": true,
}

// IsShortenedURL reports whether the URL uses a known shortener service.
func IsShortenedURL(rawURL string) bool {
	return shortenerDomains[ExtractDomain(rawURL)]
}

// ExpandResult describes one expansion attempt.
type ExpandResult struct {
	OriginalURL      string   `json:"original_url"`
	IsShortened      bool     `json:"is_shortened"`
	ExpandedURL      string   `json:"expanded_url,omitempty"`
	FinalDomain      string   `json:"final_domain,omitempty"`
	RedirectChain    []string `json:"redirect_chain,omitempty"`
	ExpansionSuccess bool     `json:"expansion_success"`
	FromCache        bool     `json:"from_cache"`
	Error            string   `json:"error,omitempty"`
}

type cachedExpansion struct {
	result   ExpandResult
	storedAt time.Time
}

// Expander resolves shortened URLs by walking redirects manually, with an
// in-memory TTL cache to avoid re-hitting the same shortener.
type Expander struct {
	client       *http.Client
	maxRedirects int
	cacheTTL     time.Duration
	maxCacheSize int

	mu    sync.Mutex
	cache map[string]cachedExpansion
}

// NewExpander creates an expander. Redirects are never followed by the
// client itself; the redirect chain is recorded hop by hop.
func NewExpander(timeout time.Duration, maxRedirects int, cacheTTL time.Duration, maxCacheSize int) *Expander {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	return &Expander{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		maxRedirects: maxRedirects,
		cacheTTL:     cacheTTL,
		maxCacheSize: maxCacheSize,
		cache:        make(map[string]cachedExpansion),
	}
}

var redirectStatuses = map[int]bool{
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusSeeOther:          true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
}

// Expand resolves a URL to its final destination. Non-shortened URLs are
// returned as-is without any network traffic.
func (e *Expander) Expand(ctx context.Context, rawURL string) ExpandResult {
	if !IsShortenedURL(rawURL) {
		return ExpandResult{OriginalURL: rawURL}
	}

	if cached, ok := e.fromCache(rawURL); ok {
		return cached
	}

	result := e.doExpand(ctx, rawURL)
	e.putCache(rawURL, result)
	return result
}

func (e *Expander) doExpand(ctx context.Context, rawURL string) ExpandResult {
	result := ExpandResult{
		OriginalURL: rawURL,
		IsShortened: true,
	}

	current := rawURL
	var chain []string

	for hop := 0; hop < e.maxRedirects; hop++ {
		location, status, err := e.fetchLocation(ctx, current)
		if err != nil {
			if hop == 0 {
				// First hop failed, destination stays unknown
				log.Printf("⚠️ URL expansion failed for %s: %v", rawURL, err)
				result.Error = err.Error()
				return result
			}
			break
		}
		if !redirectStatuses[status] || location == "" {
			break
		}

		// Relative redirect: keep scheme and host of the current hop
		if strings.HasPrefix(location, "/") {
			if parsed, perr := url.Parse(current); perr == nil {
				location = parsed.Scheme + "://" + parsed.Host + location
			}
		}

		current = location
		chain = append(chain, current)
	}

	result.ExpandedURL = current
	result.FinalDomain = ExtractDomain(current)
	result.RedirectChain = chain
	result.ExpansionSuccess = true
	if len(chain) > 0 {
		log.Printf("🔗 URL expanded: %s -> %s (domain: %s)", rawURL, current, result.FinalDomain)
	}
	return result
}

// fetchLocation issues a HEAD request and falls back to GET when the server
// rejects HEAD (some shorteners do).
func (e *Expander) fetchLocation(ctx context.Context, rawURL string) (string, int, error) {
	location, status, err := e.singleRequest(ctx, http.MethodHead, rawURL)
	if err == nil && status < 400 {
		return location, status, nil
	}
	return e.singleRequest(ctx, http.MethodGet, rawURL)
}

func (e *Expander) singleRequest(ctx context.Context, method, rawURL string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	return resp.Header.Get("Location"), resp.StatusCode, nil
}

func (e *Expander) fromCache(rawURL string) (ExpandResult, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.cache[rawURL]
	if !ok {
		return ExpandResult{}, false
	}
	if e.cacheTTL > 0 && time.Since(entry.storedAt) >= e.cacheTTL {
		delete(e.cache, rawURL)
		return ExpandResult{}, false
	}
	cached := entry.result
	cached.FromCache = true
	return cached, true
}

func (e *Expander) putCache(rawURL string, result ExpandResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Evict the oldest 10% when full
	if e.maxCacheSize > 0 && len(e.cache) >= e.maxCacheSize {
		keys := make([]string, 0, len(e.cache))
		for k := range e.cache {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			return e.cache[keys[i]].storedAt.Before(e.cache[keys[j]].storedAt)
		})
		for _, k := range keys[:e.maxCacheSize/10] {
			delete(e.cache, k)
		}
	}

	e.cache[rawURL] = cachedExpansion{result: result, storedAt: time.Now()}
}

// CacheSize returns the current number of cached expansions.
func (e *Expander) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}
