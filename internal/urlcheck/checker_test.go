package urlcheck

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestChecker() *SecurityChecker {
	return NewSecurityChecker(CheckerOptions{
		ExpandTimeout:   time.Second,
		MaxRedirects:    5,
		CacheTTL:        time.Hour,
		MaxCacheEntries: 100,
	})
}

func TestIsTrustedDomain(t *testing.T) {
	assert.True(t, IsTrustedDomain("https://docs.google.com/forms/d/xyz"))
	assert.True(t, IsTrustedDomain("https://sia.uir.ac.id/login"), "subdomain of trusted domain")
	assert.True(t, IsTrustedDomain("https://github.com/user/repo"))
	assert.False(t, IsTrustedDomain("https://uir-ac-id.tk/login"))
	assert.False(t, IsTrustedDomain("https://notgithub.com"))
}

func TestSecurityChecker_TrustedDomain(t *testing.T) {
	sc := newTestChecker()

	check := sc.CheckURL(context.Background(), "https://classroom.google.com/c/abc")

	assert.Equal(t, "whitelist", check.Source)
	assert.False(t, check.IsMalicious)
	assert.Zero(t, check.RiskScore)
}

func TestSecurityChecker_HeuristicOnly(t *testing.T) {
	sc := newTestChecker()

	check := sc.CheckURL(context.Background(), "http://kampus-uir.tk/verify")

	assert.Equal(t, "heuristic", check.Source)
	assert.True(t, check.IsMalicious)
	assert.GreaterOrEqual(t, check.RiskScore, 0.5)
	assert.NotEmpty(t, check.RiskFactors)
}

func TestSecurityChecker_CachesVerdicts(t *testing.T) {
	sc := newTestChecker()

	first := sc.CheckURL(context.Background(), "https://hadiah-menanti.xyz/claim")
	second := sc.CheckURL(context.Background(), "https://hadiah-menanti.xyz/claim")

	assert.Equal(t, first, second)

	sc.mu.Lock()
	assert.Len(t, sc.cache, 1)
	sc.mu.Unlock()
}

func TestSecurityChecker_CheckURLs(t *testing.T) {
	sc := newTestChecker()

	urls := []string{
		"https://docs.google.com/document/d/1",
		"http://kampus-uir.tk/verify",
	}

	results := sc.CheckURLs(context.Background(), urls)

	assert.Len(t, results, 2)
	assert.Equal(t, "whitelist", results[urls[0]].Source)
	assert.True(t, results[urls[1]].IsMalicious)
}

func TestSecurityChecker_EmptyInput(t *testing.T) {
	sc := newTestChecker()

	assert.Empty(t, sc.CheckURLs(context.Background(), nil))
}
