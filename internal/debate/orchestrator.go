package debate

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JagaGrup/Sentinel/internal/llm"
	"github.com/JagaGrup/Sentinel/internal/models"
)

// Debate stop reasons.
const (
	StopConsensus = "consensus"
	StopMaxRounds = "max_rounds"
	StopTimeout   = "timeout"
)

// InvokeFunc calls one debate agent. In production this wraps the agent
// Genkit flow; tests inject a stub.
type InvokeFunc func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error)

// Request carries everything the agents may cite as evidence.
type Request struct {
	Message    models.Message
	Sender     models.Sender
	Baseline   models.BaselineSnapshot
	Triage     *models.TriageResult
	SingleShot *models.SingleShotVerdict
	URLChecks  map[string]models.URLCheck
}

// Options tunes the debate.
type Options struct {
	Mode               string // "three" or "five"
	MaxRounds          int
	EarlyTermination   bool          // stop as soon as a round reaches consensus
	MaxTotalTime       time.Duration // 0 disables the budget
	MajorityConfidence float64       // overrides the roster default when > 0
}

// Orchestrator runs the multi-agent debate: round 1 is independent analysis,
// later rounds are deliberation where each agent sees the others' positions.
type Orchestrator struct {
	roster     Roster
	aggregator *Aggregator
	invoke     InvokeFunc

	maxRounds        int
	earlyTermination bool
	maxTotalTime     time.Duration
}

// NewOrchestrator builds the debate stage.
func NewOrchestrator(opts Options, invoke InvokeFunc) *Orchestrator {
	roster := RosterForMode(opts.Mode)
	if opts.MajorityConfidence > 0 {
		roster.MajorityConfidence = opts.MajorityConfidence
	}
	maxRounds := opts.MaxRounds
	if maxRounds < 1 {
		maxRounds = 2
	}
	return &Orchestrator{
		roster:           roster,
		aggregator:       NewAggregator(roster),
		invoke:           invoke,
		maxRounds:        maxRounds,
		earlyTermination: opts.EarlyTermination,
		maxTotalTime:     opts.MaxTotalTime,
	}
}

// Run executes the full debate and never fails: agent errors degrade into
// synthesized SUSPICIOUS votes so a broken agent cannot block a verdict.
func (o *Orchestrator) Run(ctx context.Context, req Request) *models.DebateRecord {
	start := time.Now()

	rounds := make([]models.DebateRound, 0, o.maxRounds)

	round1 := o.runFirstRound(ctx, req)
	rounds = append(rounds, round1)

	var consensusRound *int
	if ok, _, _ := o.aggregator.CheckConsensus(round1.Responses); ok {
		one := 1
		consensusRound = &one
	}

	stopReason := StopMaxRounds
	if o.earlyTermination && consensusRound != nil && o.maxRounds <= 1 {
		stopReason = StopConsensus
	}

	previous := round1
	for roundNum := 2; roundNum <= o.maxRounds; roundNum++ {
		if o.maxTotalTime > 0 && time.Since(start) >= o.maxTotalTime {
			stopReason = StopTimeout
			break
		}
		if o.earlyTermination {
			if ok, stance, _ := o.aggregator.CheckConsensus(previous.Responses); ok {
				log.Printf("🎯 Debate: consensus on %s, skipping round %d", stance, roundNum)
				stopReason = StopConsensus
				break
			}
		}

		next, allFailed := o.runDeliberationRound(ctx, req, roundNum, previous)
		if allFailed {
			// Nothing new was said; keep the previous round as the verdict
			log.Printf("⚠️ Debate: round %d produced no responses, stopping", roundNum)
			break
		}
		rounds = append(rounds, next)
		previous = next

		if consensusRound == nil {
			if ok, _, _ := o.aggregator.CheckConsensus(next.Responses); ok {
				n := roundNum
				consensusRound = &n
			}
		}
	}

	aggregated := o.aggregator.Aggregate(rounds)
	if !aggregated.ConsensusReached {
		consensusRound = nil
	}

	record := &models.DebateRecord{
		Mode:                o.roster.Mode,
		Rounds:              rounds,
		FinalVerdict:        stanceToClassification(aggregated.Decision),
		Confidence:          aggregated.Confidence,
		PhishingProbability: aggregated.PhishingProbability,
		ConsensusType:       aggregated.ConsensusType,
		ConsensusRound:      consensusRound,
		StopReason:          stopReason,
		Usage:               aggregated.Usage,
	}

	log.Printf("🎯 Debate done: %s (%.0f%%, p=%.2f, %s, %d rounds, stop=%s)",
		record.FinalVerdict, record.Confidence*100, record.PhishingProbability,
		record.ConsensusType, len(rounds), stopReason)

	return record
}

// runFirstRound fans the independent analysis out to every agent. A failed
// agent is replaced by a synthesized neutral vote.
func (o *Orchestrator) runFirstRound(ctx context.Context, req Request) models.DebateRound {
	responses := make([]models.AgentResponse, len(o.roster.AgentTypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, agentType := range o.roster.AgentTypes {
		g.Go(func() error {
			resp, err := o.invoke(gctx, o.agentRequest(req, agentType, 1, nil, nil))
			if err != nil {
				log.Printf("⚠️ Debate: agent %s failed in round 1: %v", agentType, err)
				responses[i] = synthesizedResponse(agentType)
				return nil
			}
			responses[i] = *resp
			return nil
		})
	}
	_ = g.Wait()

	return models.DebateRound{Round: 1, Responses: responses}
}

// runDeliberationRound lets each agent reconsider after seeing the others.
// A failed agent keeps its previous position; allFailed reports whether no
// agent produced a fresh response.
func (o *Orchestrator) runDeliberationRound(
	ctx context.Context,
	req Request,
	roundNum int,
	previous models.DebateRound,
) (models.DebateRound, bool) {
	byType := make(map[string]models.AgentResponse, len(previous.Responses))
	for _, r := range previous.Responses {
		byType[r.AgentType] = r
	}

	responses := make([]models.AgentResponse, len(o.roster.AgentTypes))
	failures := make([]bool, len(o.roster.AgentTypes))

	g, gctx := errgroup.WithContext(ctx)
	for i, agentType := range o.roster.AgentTypes {
		own, ok := byType[agentType]
		if !ok {
			own = synthesizedResponse(agentType)
		}
		others := make([]models.AgentResponse, 0, len(previous.Responses)-1)
		for _, r := range previous.Responses {
			if r.AgentType != agentType {
				others = append(others, r)
			}
		}

		g.Go(func() error {
			resp, err := o.invoke(gctx, o.agentRequest(req, agentType, roundNum, &own, others))
			if err != nil {
				log.Printf("⚠️ Debate: agent %s failed in round %d, keeping previous stance: %v",
					agentType, roundNum, err)
				responses[i] = own
				failures[i] = true
				return nil
			}
			responses[i] = *resp
			return nil
		})
	}
	_ = g.Wait()

	allFailed := true
	for _, failed := range failures {
		if !failed {
			allFailed = false
			break
		}
	}

	return models.DebateRound{Round: roundNum, Responses: responses}, allFailed
}

func (o *Orchestrator) agentRequest(
	req Request,
	agentType string,
	round int,
	own *models.AgentResponse,
	others []models.AgentResponse,
) *llm.AgentRequest {
	return &llm.AgentRequest{
		AgentType:  agentType,
		Round:      round,
		Message:    req.Message,
		Sender:     req.Sender,
		Baseline:   req.Baseline,
		Triage:     req.Triage,
		SingleShot: req.SingleShot,
		URLChecks:  req.URLChecks,
		Own:        own,
		Others:     others,
	}
}

// synthesizedResponse is the neutral stand-in for an unavailable agent.
func synthesizedResponse(agentType string) models.AgentResponse {
	return models.AgentResponse{
		AgentType:   agentType,
		Stance:      llm.StanceSuspicious,
		Confidence:  0.5,
		Arguments:   []string{"agent unavailable"},
		Synthesized: true,
	}
}

func stanceToClassification(stance string) models.Classification {
	switch stance {
	case llm.StancePhishing:
		return models.ClassPhishing
	case llm.StanceLegitimate:
		return models.ClassSafe
	}
	return models.ClassSuspicious
}
