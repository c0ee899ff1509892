package debate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JagaGrup/Sentinel/internal/llm"
	"github.com/JagaGrup/Sentinel/internal/models"
)

func debateRequest() Request {
	return Request{
		Message: models.Message{
			ID:        "msg-1",
			SenderID:  "u-7",
			Text:      "URGENT!!! Akun diblokir! Verifikasi di bit.ly/verify",
			Timestamp: time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		},
		Triage: &models.TriageResult{
			Classification: models.RiskHigh,
			RiskScore:      60,
			URLsFound:      []string{"https://bit.ly/verify"},
		},
	}
}

// stanceScript returns a stance per agent per round.
type stanceScript map[int]map[string]string

func scriptedInvoke(script stanceScript, confidence float64) InvokeFunc {
	return func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		stances, ok := script[req.Round]
		if !ok {
			return nil, errors.New("no script for round")
		}
		return &models.AgentResponse{
			AgentType:  req.AgentType,
			Stance:     stances[req.AgentType],
			Confidence: confidence,
		}, nil
	}
}

func TestRun_ConsensusInRoundOneSkipsDeliberation(t *testing.T) {
	script := stanceScript{
		1: {
			llm.AgentContentAnalyzer:   llm.StancePhishing,
			llm.AgentSecurityValidator: llm.StancePhishing,
			llm.AgentSocialContext:     llm.StancePhishing,
		},
	}
	o := NewOrchestrator(Options{Mode: ModeThree, MaxRounds: 2, EarlyTermination: true},
		scriptedInvoke(script, 0.9))

	record := o.Run(context.Background(), debateRequest())

	assert.Equal(t, models.ClassPhishing, record.FinalVerdict)
	assert.Len(t, record.Rounds, 1)
	assert.Equal(t, StopConsensus, record.StopReason)
	require.NotNil(t, record.ConsensusRound)
	assert.Equal(t, 1, *record.ConsensusRound)
	assert.Equal(t, "unanimous", record.ConsensusType)
}

func TestRun_DeliberationConverges(t *testing.T) {
	script := stanceScript{
		1: {
			llm.AgentContentAnalyzer:   llm.StanceSuspicious,
			llm.AgentSecurityValidator: llm.StancePhishing,
			llm.AgentSocialContext:     llm.StanceLegitimate,
		},
		2: {
			llm.AgentContentAnalyzer:   llm.StancePhishing,
			llm.AgentSecurityValidator: llm.StancePhishing,
			llm.AgentSocialContext:     llm.StancePhishing,
		},
	}
	o := NewOrchestrator(Options{Mode: ModeThree, MaxRounds: 2, EarlyTermination: true},
		scriptedInvoke(script, 0.85))

	record := o.Run(context.Background(), debateRequest())

	assert.Equal(t, models.ClassPhishing, record.FinalVerdict)
	assert.Len(t, record.Rounds, 2)
	require.NotNil(t, record.ConsensusRound)
	assert.Equal(t, 2, *record.ConsensusRound)
}

func TestRun_DeliberationCarriesPreviousPositions(t *testing.T) {
	var mu sync.Mutex
	var round2Requests []*llm.AgentRequest

	invoke := func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		if req.Round == 2 {
			mu.Lock()
			round2Requests = append(round2Requests, req)
			mu.Unlock()
		}
		stance := llm.StanceSuspicious
		if req.AgentType == llm.AgentSecurityValidator {
			stance = llm.StancePhishing
		}
		return &models.AgentResponse{AgentType: req.AgentType, Stance: stance, Confidence: 0.6}, nil
	}

	o := NewOrchestrator(Options{Mode: ModeThree, MaxRounds: 2, EarlyTermination: true}, invoke)
	o.Run(context.Background(), debateRequest())

	require.Len(t, round2Requests, 3)
	for _, req := range round2Requests {
		require.NotNil(t, req.Own)
		assert.Equal(t, req.AgentType, req.Own.AgentType)
		assert.Len(t, req.Others, 2)
		for _, other := range req.Others {
			assert.NotEqual(t, req.AgentType, other.AgentType)
		}
	}
}

func TestRun_FailedAgentGetsSynthesizedVote(t *testing.T) {
	invoke := func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		if req.AgentType == llm.AgentSocialContext {
			return nil, errors.New("agent unavailable upstream")
		}
		return &models.AgentResponse{
			AgentType:  req.AgentType,
			Stance:     llm.StancePhishing,
			Confidence: 0.9,
		}, nil
	}

	o := NewOrchestrator(Options{Mode: ModeThree, MaxRounds: 1}, invoke)
	record := o.Run(context.Background(), debateRequest())

	require.Len(t, record.Rounds, 1)
	var synthesized *models.AgentResponse
	for i, r := range record.Rounds[0].Responses {
		if r.AgentType == llm.AgentSocialContext {
			synthesized = &record.Rounds[0].Responses[i]
		}
	}
	require.NotNil(t, synthesized)
	assert.True(t, synthesized.Synthesized)
	assert.Equal(t, llm.StanceSuspicious, synthesized.Stance)
	assert.Equal(t, 0.5, synthesized.Confidence)
	assert.Equal(t, []string{"agent unavailable"}, synthesized.Arguments)

	// The two healthy phishing votes still dominate the neutral stand-in
	assert.Equal(t, models.ClassPhishing, record.FinalVerdict)
}

func TestRun_AllAgentsFailProducesNeutralDebate(t *testing.T) {
	invoke := func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		return nil, errors.New("provider down")
	}

	o := NewOrchestrator(Options{Mode: ModeThree, MaxRounds: 2, EarlyTermination: false}, invoke)
	record := o.Run(context.Background(), debateRequest())

	// Round 1 is fully synthesized; the deliberation round adds nothing and
	// is discarded
	assert.Len(t, record.Rounds, 1)
	assert.Equal(t, StopMaxRounds, record.StopReason)
	assert.Equal(t, models.ClassSuspicious, record.FinalVerdict)
	assert.Equal(t, 0.5, record.Confidence)
	assert.Equal(t, 0.5, record.PhishingProbability)
}

func TestRun_TimeBudgetStopsDeliberation(t *testing.T) {
	invoke := func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		time.Sleep(20 * time.Millisecond)
		return &models.AgentResponse{
			AgentType:  req.AgentType,
			Stance:     llm.StanceSuspicious,
			Confidence: 0.6,
		}, nil
	}

	o := NewOrchestrator(Options{
		Mode:             ModeThree,
		MaxRounds:        3,
		EarlyTermination: false,
		MaxTotalTime:     5 * time.Millisecond,
	}, invoke)

	record := o.Run(context.Background(), debateRequest())

	assert.Len(t, record.Rounds, 1)
	assert.Equal(t, StopTimeout, record.StopReason)
}

func TestRun_FiveAgentRoster(t *testing.T) {
	script := stanceScript{
		1: {
			llm.AgentDetector:    llm.StancePhishing,
			llm.AgentCritic:      llm.StancePhishing,
			llm.AgentDefender:    llm.StancePhishing,
			llm.AgentFactChecker: llm.StancePhishing,
			llm.AgentJudge:       llm.StancePhishing,
		},
	}
	o := NewOrchestrator(Options{Mode: ModeFive, MaxRounds: 2, EarlyTermination: true},
		scriptedInvoke(script, 0.9))

	record := o.Run(context.Background(), debateRequest())

	assert.Equal(t, ModeFive, record.Mode)
	require.Len(t, record.Rounds, 1)
	assert.Len(t, record.Rounds[0].Responses, 5)
	assert.Equal(t, models.ClassPhishing, record.FinalVerdict)
	assert.Equal(t, StopConsensus, record.StopReason)
}

func TestRun_LegitimateConsensusMapsToSafe(t *testing.T) {
	script := stanceScript{
		1: {
			llm.AgentContentAnalyzer:   llm.StanceLegitimate,
			llm.AgentSecurityValidator: llm.StanceLegitimate,
			llm.AgentSocialContext:     llm.StanceLegitimate,
		},
	}
	o := NewOrchestrator(Options{Mode: ModeThree, MaxRounds: 2, EarlyTermination: true},
		scriptedInvoke(script, 0.8))

	record := o.Run(context.Background(), debateRequest())

	assert.Equal(t, models.ClassSafe, record.FinalVerdict)
	assert.Equal(t, 1.0, record.Confidence)
	assert.Equal(t, 0.0, record.PhishingProbability)
}

func TestNewOrchestrator_ZeroConfidenceKeepsRosterBar(t *testing.T) {
	invoke := func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		return nil, errors.New("unused")
	}

	five := NewOrchestrator(Options{Mode: ModeFive}, invoke)
	assert.Equal(t, 0.70, five.roster.MajorityConfidence)

	three := NewOrchestrator(Options{Mode: ModeThree}, invoke)
	assert.Equal(t, 0.75, three.roster.MajorityConfidence)

	overridden := NewOrchestrator(Options{Mode: ModeFive, MajorityConfidence: 0.8}, invoke)
	assert.Equal(t, 0.8, overridden.roster.MajorityConfidence)
}

func TestRun_FiveRosterConsensusAtItsOwnBar(t *testing.T) {
	// Four agents at mean confidence 0.72: above the five-roster bar of
	// 0.70, below the three-roster bar of 0.75
	invoke := func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		stance := llm.StancePhishing
		if req.AgentType == llm.AgentDefender {
			stance = llm.StanceLegitimate
		}
		return &models.AgentResponse{AgentType: req.AgentType, Stance: stance, Confidence: 0.72}, nil
	}

	o := NewOrchestrator(Options{Mode: ModeFive, MaxRounds: 2, EarlyTermination: true}, invoke)
	record := o.Run(context.Background(), debateRequest())

	assert.Len(t, record.Rounds, 1)
	assert.Equal(t, StopConsensus, record.StopReason)
	require.NotNil(t, record.ConsensusRound)
	assert.Equal(t, 1, *record.ConsensusRound)
}

func TestRun_NoEarlyTerminationRunsAllRounds(t *testing.T) {
	script := stanceScript{
		1: {
			llm.AgentContentAnalyzer:   llm.StancePhishing,
			llm.AgentSecurityValidator: llm.StancePhishing,
			llm.AgentSocialContext:     llm.StancePhishing,
		},
		2: {
			llm.AgentContentAnalyzer:   llm.StancePhishing,
			llm.AgentSecurityValidator: llm.StancePhishing,
			llm.AgentSocialContext:     llm.StancePhishing,
		},
	}
	o := NewOrchestrator(Options{Mode: ModeThree, MaxRounds: 2, EarlyTermination: false},
		scriptedInvoke(script, 0.9))

	record := o.Run(context.Background(), debateRequest())

	assert.Len(t, record.Rounds, 2)
	assert.Equal(t, StopMaxRounds, record.StopReason)
	require.NotNil(t, record.ConsensusRound)
	assert.Equal(t, 1, *record.ConsensusRound)
}
