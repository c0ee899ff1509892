package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JagaGrup/Sentinel/internal/models"
)

func statResult(day time.Time, decidedBy string, usage models.TokenUsage) *models.DetectionResult {
	return &models.DetectionResult{
		Classification: models.ClassSuspicious,
		Action:         models.ActionWarn,
		DecidedBy:      decidedBy,
		Usage:          usage,
		Timestamp:      day,
		LatencyMS:      100,
	}
}

func TestStats_PerDayPerStageTokens(t *testing.T) {
	s := NewStats()
	monday := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	tuesday := time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)

	s.Record(statResult(monday, models.StageTriage, models.TokenUsage{}))
	s.Record(statResult(monday, models.StageSingleShot, models.TokenUsage{InputTokens: 100, OutputTokens: 40}))
	s.Record(statResult(monday, models.StageMAD, models.TokenUsage{InputTokens: 900, OutputTokens: 300}))
	s.Record(statResult(tuesday, models.StageSingleShot, models.TokenUsage{InputTokens: 110, OutputTokens: 50}))

	snap := s.Snapshot()

	require.Len(t, snap.ByDay, 2)

	mon := snap.ByDay["2025-03-10"]
	assert.Equal(t, 3, mon.Requests)
	assert.Equal(t, 1000, mon.InputTokens)
	assert.Equal(t, 340, mon.OutputTokens)
	assert.Equal(t, StageSnapshot{Requests: 1}, mon.ByStage[models.StageTriage])
	assert.Equal(t, StageSnapshot{Requests: 1, InputTokens: 100, OutputTokens: 40},
		mon.ByStage[models.StageSingleShot])
	assert.Equal(t, StageSnapshot{Requests: 1, InputTokens: 900, OutputTokens: 300},
		mon.ByStage[models.StageMAD])

	tue := snap.ByDay["2025-03-11"]
	assert.Equal(t, 1, tue.Requests)
	assert.Equal(t, 110, tue.InputTokens)

	assert.Equal(t, 4, snap.Total)
	assert.Equal(t, 2, snap.ByStage[models.StageSingleShot])
	assert.Equal(t, 1500, snap.TokenUsage.Total())
	assert.Equal(t, int64(100), snap.AvgLatencyMS)
}

func TestStats_SnapshotIsACopy(t *testing.T) {
	s := NewStats()
	day := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.Record(statResult(day, models.StageTriage, models.TokenUsage{}))

	first := s.Snapshot()
	first.ByStage[models.StageTriage] = 99
	first.ByDay["2025-03-10"] = DaySnapshot{Requests: 99}

	second := s.Snapshot()
	assert.Equal(t, 1, second.ByStage[models.StageTriage])
	assert.Equal(t, 1, second.ByDay["2025-03-10"].Requests)
}
