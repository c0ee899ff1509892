package storage

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/JagaGrup/Sentinel/internal/limits"
	"github.com/JagaGrup/Sentinel/internal/models"
	"github.com/JagaGrup/Sentinel/internal/triage"
)

// resultLogCap bounds the in-memory detection log.
const resultLogCap = 500

// observation is one message worth of behavioral signal.
type observation struct {
	length    int
	hour      int
	hasURL    bool
	emojiRate float64
	unix      int64
}

type senderProfile struct {
	sender       models.Sender
	observations []observation
	lastSeen     int64
}

// ProfileStore keeps per-sender behavioral history and the detection log in
// memory. The per-sender window and the number of tracked senders are bounded
// by the pipeline limits.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*senderProfile
	results  []*models.DetectionResult
	limiter  *limits.PipelineLimiter
}

// NewProfileStore builds an empty store.
func NewProfileStore(limiter *limits.PipelineLimiter) *ProfileStore {
	if limiter == nil {
		limiter = limits.NewPipelineLimiter(nil)
	}
	return &ProfileStore{
		profiles: make(map[string]*senderProfile),
		limiter:  limiter,
	}
}

// Observe folds a message into its sender's rolling history. Call it AFTER
// the message has been analyzed, so the baseline never includes the message
// under review.
func (s *ProfileStore) Observe(sender models.Sender, msg models.Message, hasURL bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[sender.ID]
	if !ok {
		s.evictStaleSenderLocked()
		profile = &senderProfile{sender: sender}
		s.profiles[sender.ID] = profile
	}
	if sender.Username != "" {
		profile.sender = sender
	}

	profile.observations = append(profile.observations, observation{
		length:    len([]rune(msg.Text)),
		hour:      msg.Timestamp.Hour(),
		hasURL:    hasURL,
		emojiRate: triage.EmojiRate(msg.Text),
		unix:      msg.Timestamp.Unix(),
	})
	profile.lastSeen = time.Now().Unix()

	if drop := s.limiter.TrimMessages(len(profile.observations)); drop > 0 {
		profile.observations = profile.observations[drop:]
	}
}

// BaselineFor computes the sender's behavioral baseline. A sender with no
// history gets a zero snapshot, which disables anomaly checks downstream.
func (s *ProfileStore) BaselineFor(senderID string) models.BaselineSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[senderID]
	if !ok || len(profile.observations) == 0 {
		return models.BaselineSnapshot{}
	}

	obs := profile.observations
	n := float64(len(obs))

	var lengthSum, urlCount, emojiSum float64
	hours := make(map[int]struct{})
	for _, o := range obs {
		lengthSum += float64(o.length)
		emojiSum += o.emojiRate
		if o.hasURL {
			urlCount++
		}
		hours[o.hour] = struct{}{}
	}
	mean := lengthSum / n

	var variance float64
	for _, o := range obs {
		d := float64(o.length) - mean
		variance += d * d
	}
	variance /= n

	// A single message tells us nothing about when the sender usually posts
	var typicalHours []int
	if len(obs) >= 2 {
		typicalHours = make([]int, 0, len(hours))
		for h := range hours {
			typicalHours = append(typicalHours, h)
		}
		sort.Ints(typicalHours)
	}

	return models.BaselineSnapshot{
		AvgMessageLength: mean,
		StdMessageLength: math.Sqrt(variance),
		TypicalHours:     typicalHours,
		URLSharingRate:   urlCount / n,
		EmojiUsageRate:   emojiSum / n,
		TotalMessages:    len(obs),
	}
}

// SenderInfo returns the stored identity for a sender, if any.
func (s *ProfileStore) SenderInfo(senderID string) (models.Sender, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[senderID]
	if !ok {
		return models.Sender{}, false
	}
	return profile.sender, true
}

// TrackedSenders reports how many senders currently have history.
func (s *ProfileStore) TrackedSenders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

// RecordResult appends a detection result to the bounded log.
func (s *ProfileStore) RecordResult(res *models.DetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = append(s.results, res)
	if len(s.results) > resultLogCap {
		s.results = s.results[len(s.results)-resultLogCap:]
	}
}

// RecentResults returns up to limit results, newest first.
func (s *ProfileStore) RecentResults(limit int) []*models.DetectionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.results) {
		limit = len(s.results)
	}
	out := make([]*models.DetectionResult, 0, limit)
	for i := len(s.results) - 1; i >= len(s.results)-limit; i-- {
		out = append(out, s.results[i])
	}
	return out
}

// evictStaleSenderLocked makes room for a new sender when the tracking cap is
// hit: senders with expired history go first, then the least recently seen.
func (s *ProfileStore) evictStaleSenderLocked() {
	if len(s.profiles) < s.limiter.GetLimits().MaxTrackedSenders {
		return
	}

	var oldestID string
	var oldestSeen int64 = math.MaxInt64
	for id, profile := range s.profiles {
		if s.limiter.ShouldCleanup(profile.lastSeen) {
			delete(s.profiles, id)
			continue
		}
		if profile.lastSeen < oldestSeen {
			oldestSeen = profile.lastSeen
			oldestID = id
		}
	}

	if len(s.profiles) >= s.limiter.GetLimits().MaxTrackedSenders && oldestID != "" {
		delete(s.profiles, oldestID)
	}
}
