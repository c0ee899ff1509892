package debate

import (
	"github.com/JagaGrup/Sentinel/internal/llm"
	"github.com/JagaGrup/Sentinel/internal/models"
)

// Aggregated is the weighted-voting outcome over a full debate.
type Aggregated struct {
	Decision            string // PHISHING, SUSPICIOUS, LEGITIMATE
	Confidence          float64
	PhishingProbability float64

	AgentVotes       map[string]string
	ConsensusReached bool
	ConsensusType    string // unanimous, strong_majority, majority, weighted

	Usage models.TokenUsage
}

// Aggregator combines agent responses into a final decision via weighted
// voting. SUSPICIOUS votes are neutral: they contribute to neither side, and
// an all-SUSPICIOUS round lands exactly on probability 0.5.
type Aggregator struct {
	roster Roster
}

// NewAggregator builds an aggregator for the given roster.
func NewAggregator(roster Roster) *Aggregator {
	return &Aggregator{roster: roster}
}

// CheckConsensus reports whether a round's responses already agree:
// unanimous, or a quorum on the same stance with enough mean confidence.
func (a *Aggregator) CheckConsensus(responses []models.AgentResponse) (bool, string, float64) {
	if len(responses) == 0 {
		return false, "", 0
	}

	unanimous := true
	for _, r := range responses[1:] {
		if r.Stance != responses[0].Stance {
			unanimous = false
			break
		}
	}
	if unanimous {
		var sum float64
		for _, r := range responses {
			sum += r.Confidence
		}
		return true, responses[0].Stance, sum / float64(len(responses))
	}

	type tally struct {
		count     int
		totalConf float64
	}
	counts := make(map[string]*tally)
	for _, r := range responses {
		t := counts[r.Stance]
		if t == nil {
			t = &tally{}
			counts[r.Stance] = t
		}
		t.count++
		t.totalConf += r.Confidence
	}

	for stance, t := range counts {
		if t.count >= a.roster.MajorityQuorum {
			avg := t.totalConf / float64(t.count)
			if avg >= a.roster.MajorityConfidence {
				return true, stance, avg
			}
		}
	}
	return false, "", 0
}

// Aggregate computes the final decision from the last round's responses.
// Token usage accumulates across every round.
func (a *Aggregator) Aggregate(rounds []models.DebateRound) Aggregated {
	if len(rounds) == 0 || len(rounds[0].Responses) == 0 {
		return Aggregated{
			Decision:            llm.StanceSuspicious,
			Confidence:          0.5,
			PhishingProbability: 0.5,
			AgentVotes:          map[string]string{},
		}
	}

	final := rounds[len(rounds)-1].Responses

	var phishingScore, legitimateScore float64
	votes := make(map[string]string, len(final))

	for _, r := range final {
		weight, ok := a.roster.Weights[r.AgentType]
		if !ok {
			weight = 1.0
		}
		weight *= r.Confidence

		votes[r.AgentType] = r.Stance

		switch r.Stance {
		case llm.StancePhishing:
			phishingScore += weight
		case llm.StanceLegitimate:
			legitimateScore += weight
		}
		// SUSPICIOUS contributes to neither side
	}

	phishingProb := 0.5
	if decisive := phishingScore + legitimateScore; decisive > 0 {
		phishingProb = phishingScore / decisive
	}

	var decision string
	switch {
	case phishingProb >= a.roster.PhishingThreshold:
		decision = llm.StancePhishing
	case phishingProb <= a.roster.LegitimateThreshold:
		decision = llm.StanceLegitimate
	default:
		decision = llm.StanceSuspicious
	}

	confidence := phishingProb
	if 1-phishingProb > confidence {
		confidence = 1 - phishingProb
	}

	consensusReached, _, _ := a.CheckConsensus(final)

	var usage models.TokenUsage
	for _, round := range rounds {
		for _, r := range round.Responses {
			usage.Add(r.Usage)
		}
	}

	return Aggregated{
		Decision:            decision,
		Confidence:          confidence,
		PhishingProbability: phishingProb,
		AgentVotes:          votes,
		ConsensusReached:    consensusReached,
		ConsensusType:       a.consensusType(final, decision),
		Usage:               usage,
	}
}

func (a *Aggregator) consensusType(final []models.AgentResponse, decision string) string {
	unanimous := true
	decisionVotes := 0
	for _, r := range final {
		if r.Stance != final[0].Stance {
			unanimous = false
		}
		if r.Stance == decision {
			decisionVotes++
		}
	}

	if unanimous {
		return "unanimous"
	}
	if a.roster.Mode == ModeFive {
		switch {
		case decisionVotes >= 4:
			return "strong_majority"
		case decisionVotes >= 3:
			return "majority"
		}
		return "weighted"
	}
	if decisionVotes >= 2 {
		return "majority"
	}
	return "weighted"
}
