package models

import "time"

// Classification is the final label a stage assigns to a message.
type Classification string

const (
	ClassSafe       Classification = "SAFE"
	ClassSuspicious Classification = "SUSPICIOUS"
	ClassPhishing   Classification = "PHISHING"
)

// Triage risk levels.
const (
	RiskSafe string = "SAFE"
	RiskLow  string = "LOW_RISK"
	RiskHigh string = "HIGH_RISK"
)

// Moderation actions derived from the final classification.
const (
	ActionNone       string = "none"
	ActionWarn       string = "warn"
	ActionFlagReview string = "flag_review"
)

// Stages that can finalize a verdict.
const (
	StageTriage     string = "triage"
	StageSingleShot string = "single_shot"
	StageMAD        string = "mad"
)

// TokenUsage accumulates LLM token consumption across calls.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add merges another usage record into this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Total returns the combined token count.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// URLCheck is the outcome of the layered security check for one URL.
type URLCheck struct {
	URL               string   `json:"url"`
	ExpandedURL       string   `json:"expanded_url,omitempty"`
	RedirectChain     []string `json:"redirect_chain,omitempty"`
	FinalDomain       string   `json:"final_domain,omitempty"`
	IsShortened       bool     `json:"is_shortened"`
	ExpansionSuccess  bool     `json:"expansion_success"`
	IsMalicious       bool     `json:"is_malicious"`
	RiskScore         float64  `json:"risk_score"` // 0.0-1.0
	Source            string   `json:"source"`     // whitelist, heuristic, virustotal, cache
	RiskFactors       []string `json:"risk_factors,omitempty"`
	EnginesMalicious  int      `json:"engines_malicious,omitempty"`
	EnginesSuspicious int      `json:"engines_suspicious,omitempty"`
}

// RedFlag is a single rule-based indicator found during triage.
type RedFlag struct {
	FlagType     string `json:"flag_type"`
	Description  string `json:"description"`
	Severity     int    `json:"severity"` // 1-10
	MatchedValue string `json:"matched_value,omitempty"`
}

// Anomaly is a behavioral deviation from the sender's baseline.
type Anomaly struct {
	AnomalyType    string  `json:"anomaly_type"`
	Description    string  `json:"description"`
	DeviationScore float64 `json:"deviation_score"` // 0.0-1.0
}

// TriageResult is the full outcome of the rule-based stage.
type TriageResult struct {
	Classification  string              `json:"classification"` // SAFE, LOW_RISK, HIGH_RISK
	RiskScore       int                 `json:"risk_score"`     // 0-100
	SkipLLM         bool                `json:"skip_llm"`
	URLsFound       []string            `json:"urls_found"`
	WhitelistedURLs []string            `json:"whitelisted_urls"`
	ExpandedURLs    map[string]URLCheck `json:"expanded_urls,omitempty"`
	RedFlags        []RedFlag           `json:"red_flags,omitempty"`
	Anomalies       []Anomaly           `json:"behavioral_anomalies,omitempty"`
	TriggeredFlags  []string            `json:"triggered_flags"`
}

// SingleShotVerdict is the structured output of the fast LLM classifier,
// plus the routing decision derived from it.
type SingleShotVerdict struct {
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	Reasoning      string         `json:"reasoning"`
	RiskFactors    []string       `json:"risk_factors,omitempty"`
	Escalate       bool           `json:"escalate"`
	Usage          TokenUsage     `json:"usage"`
}

// AgentResponse is one debate agent's position in one round.
type AgentResponse struct {
	AgentType   string     `json:"agent_type"`
	Stance      string     `json:"stance"` // PHISHING, LEGITIMATE, SUSPICIOUS
	Confidence  float64    `json:"confidence"`
	Arguments   []string   `json:"arguments,omitempty"`
	KeyEvidence []string   `json:"key_evidence,omitempty"`
	Synthesized bool       `json:"synthesized,omitempty"` // true when the agent call failed
	Usage       TokenUsage `json:"usage"`
}

// DebateRound holds every agent response for one round.
type DebateRound struct {
	Round     int             `json:"round"`
	Responses []AgentResponse `json:"responses"`
}

// DebateRecord is the complete trace of a multi-agent debate.
type DebateRecord struct {
	Mode                string         `json:"mode"` // three, five
	Rounds              []DebateRound  `json:"rounds"`
	FinalVerdict        Classification `json:"final_verdict"`
	Confidence          float64        `json:"confidence"`
	PhishingProbability float64        `json:"phishing_probability"`
	ConsensusType       string         `json:"consensus_type"` // unanimous, strong_majority, majority, weighted
	ConsensusRound      *int           `json:"consensus_round,omitempty"`
	StopReason          string         `json:"stop_reason"` // consensus, max_rounds, timeout
	Usage               TokenUsage     `json:"usage"`
}

// DetectionResult is the pipeline's final answer for one message.
type DetectionResult struct {
	ID             string             `json:"id"`
	MessageID      string             `json:"message_id"`
	SenderID       string             `json:"sender_id"`
	Classification Classification     `json:"classification"`
	Confidence     float64            `json:"confidence"`
	Action         string             `json:"action"`
	DecidedBy      string             `json:"decided_by"`
	Reasoning      string             `json:"reasoning"`
	RiskFactors    []string           `json:"risk_factors,omitempty"`
	Triage         *TriageResult      `json:"triage,omitempty"`
	SingleShot     *SingleShotVerdict `json:"single_shot,omitempty"`
	Debate         *DebateRecord      `json:"debate,omitempty"`
	Usage          TokenUsage         `json:"usage"`
	LatencyMS      int64              `json:"latency_ms"`
	Timestamp      time.Time          `json:"timestamp"`
}
