package urlcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testShortener registers a fake shortener domain for the duration of a test.
func testShortener(t *testing.T, domain string) {
	t.Helper()
	shortenerDomains[domain] = true
	t.Cleanup(func() { delete(shortenerDomains, domain) })
}

func TestExpander_NotShortened(t *testing.T) {
	e := NewExpander(time.Second, 5, time.Hour, 100)

	result := e.Expand(context.Background(), "https://example.com/page")

	assert.False(t, result.IsShortened)
	assert.Empty(t, result.ExpandedURL)
	assert.False(t, result.ExpansionSuccess)
}

func TestExpander_FollowsRedirectChain(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer final.Close()

	hop := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL+"/landing", http.StatusFound)
	}))
	defer hop.Close()

	shortener := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, hop.URL, http.StatusMovedPermanently)
	}))
	defer shortener.Close()

	testShortener(t, ExtractDomain(shortener.URL))

	e := NewExpander(2*time.Second, 10, time.Hour, 100)
	result := e.Expand(context.Background(), shortener.URL+"/abc")

	require.True(t, result.ExpansionSuccess)
	assert.True(t, result.IsShortened)
	assert.Equal(t, final.URL+"/landing", result.ExpandedURL)
	assert.Len(t, result.RedirectChain, 2)
}

func TestExpander_RelativeRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/short" {
			w.Header().Set("Location", "/full-destination")
			w.WriteHeader(http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	testShortener(t, ExtractDomain(srv.URL))

	e := NewExpander(2*time.Second, 10, time.Hour, 100)
	result := e.Expand(context.Background(), srv.URL+"/short")

	require.True(t, result.ExpansionSuccess)
	assert.Equal(t, srv.URL+"/full-destination", result.ExpandedURL)
}

func TestExpander_FirstHopFailure(t *testing.T) {
	testShortener(t, "127.0.0.1")

	e := NewExpander(200*time.Millisecond, 5, time.Hour, 100)
	// Port 1 should refuse connections
	result := e.Expand(context.Background(), "http://127.0.0.1:1/dead")

	assert.True(t, result.IsShortened)
	assert.False(t, result.ExpansionSuccess)
	assert.NotEmpty(t, result.Error)
}

func TestExpander_CachesResults(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	testShortener(t, ExtractDomain(srv.URL))

	e := NewExpander(2*time.Second, 5, time.Hour, 100)

	first := e.Expand(context.Background(), srv.URL+"/x")
	assert.False(t, first.FromCache)

	second := e.Expand(context.Background(), srv.URL+"/x")
	assert.True(t, second.FromCache)
	assert.Equal(t, first.ExpandedURL, second.ExpandedURL)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, e.CacheSize())
}

func TestIsShortenedURL(t *testing.T) {
	assert.True(t, IsShortenedURL("https://bit.ly/abc"))
	assert.True(t, IsShortenedURL("https://s.id/kuliah"))
	assert.False(t, IsShortenedURL("https://uir.ac.id/pengumuman"))
}
