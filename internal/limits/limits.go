package limits

import (
	"fmt"
	"time"
)

// PipelineLimits bounds the in-memory state the pipeline may accumulate.
type PipelineLimits struct {
	MaxRecentMessages int           `json:"max_recent_messages"` // per-sender rolling window
	MaxTrackedSenders int           `json:"max_tracked_senders"`
	MaxCacheEntries   int           `json:"max_cache_entries"` // URL check cache
	CacheTTL          time.Duration `json:"cache_ttl"`
	MaxURLsPerMessage int           `json:"max_urls_per_message"`
	MaxPromptChars    int           `json:"max_prompt_chars"`
	MaxAgeHours       time.Duration `json:"max_age_hours"`
}

// DefaultPipelineLimits returns the default limits.
func DefaultPipelineLimits() *PipelineLimits {
	return &PipelineLimits{
		MaxRecentMessages: 50,
		MaxTrackedSenders: 500,
		MaxCacheEntries:   500,
		CacheTTL:          time.Hour,
		MaxURLsPerMessage: 10,
		MaxPromptChars:    10000,
		MaxAgeHours:       24 * time.Hour,
	}
}

// PipelineLimiter controls and enforces the configured limits.
type PipelineLimiter struct {
	limits *PipelineLimits
}

// NewPipelineLimiter creates a new limiter, falling back to defaults.
func NewPipelineLimiter(limits *PipelineLimits) *PipelineLimiter {
	if limits == nil {
		limits = DefaultPipelineLimits()
	}
	return &PipelineLimiter{
		limits: limits,
	}
}

// GetLimits returns the current limits.
func (pl *PipelineLimiter) GetLimits() *PipelineLimits {
	return pl.limits
}

// UpdateLimits replaces the limits after validating them.
func (pl *PipelineLimiter) UpdateLimits(limits *PipelineLimits) error {
	if limits.MaxRecentMessages <= 0 {
		return fmt.Errorf("MaxRecentMessages must be positive")
	}
	if limits.MaxTrackedSenders <= 0 {
		return fmt.Errorf("MaxTrackedSenders must be positive")
	}
	if limits.MaxCacheEntries <= 0 {
		return fmt.Errorf("MaxCacheEntries must be positive")
	}
	if limits.CacheTTL <= 0 {
		return fmt.Errorf("CacheTTL must be positive")
	}
	if limits.MaxURLsPerMessage <= 0 {
		return fmt.Errorf("MaxURLsPerMessage must be positive")
	}
	if limits.MaxPromptChars <= 0 {
		return fmt.Errorf("MaxPromptChars must be positive")
	}
	if limits.MaxAgeHours <= 0 {
		return fmt.Errorf("MaxAgeHours must be positive")
	}

	pl.limits = limits
	return nil
}

// ShouldCleanup reports whether an item with the given unix timestamp is
// older than the retention window.
func (pl *PipelineLimiter) ShouldCleanup(timestamp int64) bool {
	cutoff := time.Now().Add(-pl.limits.MaxAgeHours).Unix()
	return timestamp < cutoff
}

// TrimMessages drops the oldest entries beyond the per-sender window.
func (pl *PipelineLimiter) TrimMessages(n int) int {
	if n <= pl.limits.MaxRecentMessages {
		return 0
	}
	return n - pl.limits.MaxRecentMessages
}

// TruncatePrompt bounds free text destined for an LLM prompt.
func (pl *PipelineLimiter) TruncatePrompt(text string) string {
	if len(text) <= pl.limits.MaxPromptChars {
		return text
	}
	return text[:pl.limits.MaxPromptChars] + "\n...[truncated]"
}

// CapURLs bounds how many URLs from one message get the full check treatment.
func (pl *PipelineLimiter) CapURLs(urls []string) []string {
	if len(urls) <= pl.limits.MaxURLsPerMessage {
		return urls
	}
	return urls[:pl.limits.MaxURLsPerMessage]
}

// ValidateLimits sanity-checks the upper bounds.
func (pl *PipelineLimiter) ValidateLimits() error {
	if pl.limits.MaxRecentMessages > 1000 {
		return fmt.Errorf("MaxRecentMessages too large (> 1000)")
	}
	if pl.limits.MaxTrackedSenders > 10000 {
		return fmt.Errorf("MaxTrackedSenders too large (> 10000)")
	}
	if pl.limits.MaxCacheEntries > 10000 {
		return fmt.Errorf("MaxCacheEntries too large (> 10000)")
	}
	if pl.limits.MaxURLsPerMessage > 100 {
		return fmt.Errorf("MaxURLsPerMessage too large (> 100)")
	}
	if pl.limits.MaxPromptChars > 100000 {
		return fmt.Errorf("MaxPromptChars too large (> 100000)")
	}
	return nil
}
