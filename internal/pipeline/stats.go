package pipeline

import (
	"sync"
	"time"

	"github.com/JagaGrup/Sentinel/internal/models"
)

type stageCounters struct {
	requests int
	usage    models.TokenUsage
}

type dayCounters struct {
	requests int
	usage    models.TokenUsage
	byStage  map[string]*stageCounters
}

// Stats accumulates pipeline counters, broken down per day and per deciding
// stage. Safe for concurrent use.
type Stats struct {
	mu sync.Mutex

	total            int
	byStage          map[string]int
	byClassification map[models.Classification]int
	byAction         map[string]int
	byDay            map[string]*dayCounters

	usage          models.TokenUsage
	totalLatencyMS int64
}

// StageSnapshot is one stage's share of a day's traffic and tokens.
type StageSnapshot struct {
	Requests     int `json:"requests"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// DaySnapshot aggregates one calendar day.
type DaySnapshot struct {
	Requests     int                      `json:"requests"`
	InputTokens  int                      `json:"input_tokens"`
	OutputTokens int                      `json:"output_tokens"`
	ByStage      map[string]StageSnapshot `json:"by_stage"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Total            int                           `json:"total"`
	ByStage          map[string]int                `json:"by_stage"`
	ByClassification map[models.Classification]int `json:"by_classification"`
	ByAction         map[string]int                `json:"by_action"`
	ByDay            map[string]DaySnapshot        `json:"by_day"`
	TokenUsage       models.TokenUsage             `json:"token_usage"`
	AvgLatencyMS     int64                         `json:"avg_latency_ms"`
}

func NewStats() *Stats {
	return &Stats{
		byStage:          make(map[string]int),
		byClassification: make(map[models.Classification]int),
		byAction:         make(map[string]int),
		byDay:            make(map[string]*dayCounters),
	}
}

// Record folds one finished detection into the counters.
func (s *Stats) Record(res *models.DetectionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	s.byStage[res.DecidedBy]++
	s.byClassification[res.Classification]++
	s.byAction[res.Action]++

	when := res.Timestamp
	if when.IsZero() {
		when = time.Now()
	}
	dayKey := when.Format("2006-01-02")

	day := s.byDay[dayKey]
	if day == nil {
		day = &dayCounters{byStage: make(map[string]*stageCounters)}
		s.byDay[dayKey] = day
	}
	day.requests++
	day.usage.Add(res.Usage)

	stage := day.byStage[res.DecidedBy]
	if stage == nil {
		stage = &stageCounters{}
		day.byStage[res.DecidedBy] = stage
	}
	stage.requests++
	stage.usage.Add(res.Usage)

	s.usage.Add(res.Usage)
	s.totalLatencyMS += res.LatencyMS
}

// Snapshot returns a copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Total:            s.total,
		ByStage:          make(map[string]int, len(s.byStage)),
		ByClassification: make(map[models.Classification]int, len(s.byClassification)),
		ByAction:         make(map[string]int, len(s.byAction)),
		ByDay:            make(map[string]DaySnapshot, len(s.byDay)),
		TokenUsage:       s.usage,
	}
	for k, v := range s.byStage {
		snap.ByStage[k] = v
	}
	for k, v := range s.byClassification {
		snap.ByClassification[k] = v
	}
	for k, v := range s.byAction {
		snap.ByAction[k] = v
	}
	for dayKey, day := range s.byDay {
		daySnap := DaySnapshot{
			Requests:     day.requests,
			InputTokens:  day.usage.InputTokens,
			OutputTokens: day.usage.OutputTokens,
			ByStage:      make(map[string]StageSnapshot, len(day.byStage)),
		}
		for stageName, stage := range day.byStage {
			daySnap.ByStage[stageName] = StageSnapshot{
				Requests:     stage.requests,
				InputTokens:  stage.usage.InputTokens,
				OutputTokens: stage.usage.OutputTokens,
			}
		}
		snap.ByDay[dayKey] = daySnap
	}
	if s.total > 0 {
		snap.AvgLatencyMS = s.totalLatencyMS / int64(s.total)
	}
	return snap
}
