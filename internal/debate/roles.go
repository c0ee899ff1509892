package debate

import "github.com/JagaGrup/Sentinel/internal/llm"

// Debate modes.
const (
	ModeThree = "three"
	ModeFive  = "five"
)

// Roster defines which agents debate and how their votes are weighed.
// Weights are multiplied by each agent's confidence, so a hesitant
// high-weight agent still loses to a confident low-weight one.
type Roster struct {
	Mode       string
	AgentTypes []string
	Weights    map[string]float64

	// Weighted phishing-probability cutoffs for the final decision
	PhishingThreshold   float64
	LegitimateThreshold float64

	// Early-consensus bar: at least MajorityQuorum agents on the same
	// stance with mean confidence >= MajorityConfidence
	MajorityQuorum     int
	MajorityConfidence float64
}

// ThreeAgentRoster is the default debate configuration: analyst, validator
// and context evaluator. The validator carries extra weight because it argues
// from objective URL evidence.
func ThreeAgentRoster() Roster {
	return Roster{
		Mode: ModeThree,
		AgentTypes: []string{
			llm.AgentContentAnalyzer,
			llm.AgentSecurityValidator,
			llm.AgentSocialContext,
		},
		Weights: map[string]float64{
			llm.AgentContentAnalyzer:   1.0,
			llm.AgentSecurityValidator: 1.5,
			llm.AgentSocialContext:     1.0,
		},
		PhishingThreshold:   0.65,
		LegitimateThreshold: 0.35,
		MajorityQuorum:      2,
		MajorityConfidence:  0.75,
	}
}

// FiveAgentRoster is the extended configuration. The judge and fact-checker
// carry the largest weights because they synthesize or verify evidence
// rather than only assert a stance.
func FiveAgentRoster() Roster {
	return Roster{
		Mode: ModeFive,
		AgentTypes: []string{
			llm.AgentDetector,
			llm.AgentCritic,
			llm.AgentDefender,
			llm.AgentFactChecker,
			llm.AgentJudge,
		},
		Weights: map[string]float64{
			llm.AgentDetector:    1.3,
			llm.AgentCritic:      1.0,
			llm.AgentDefender:    1.0,
			llm.AgentFactChecker: 1.6,
			llm.AgentJudge:       1.8,
		},
		PhishingThreshold:   0.62,
		LegitimateThreshold: 0.38,
		MajorityQuorum:      4,
		MajorityConfidence:  0.70,
	}
}

// RosterForMode returns the roster for a configured mode, defaulting to the
// three-agent roster.
func RosterForMode(mode string) Roster {
	if mode == ModeFive {
		return FiveAgentRoster()
	}
	return ThreeAgentRoster()
}
