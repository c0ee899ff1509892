package llm

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/firebase/genkit/go/ai"
	genkitcore "github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/JagaGrup/Sentinel/internal/models"
)

// AgentRequest - input for one debate agent in one round
type AgentRequest struct {
	AgentType string `json:"agent_type"`
	Round     int    `json:"round"`

	Message  models.Message          `json:"message"`
	Sender   models.Sender           `json:"sender"`
	Baseline models.BaselineSnapshot `json:"baseline"`

	Triage     *models.TriageResult       `json:"triage,omitempty"`
	SingleShot *models.SingleShotVerdict  `json:"single_shot,omitempty"`
	URLChecks  map[string]models.URLCheck `json:"url_checks,omitempty"`

	// Deliberation rounds carry the agent's own previous position and
	// everyone else's
	Own    *models.AgentResponse  `json:"own,omitempty"`
	Others []models.AgentResponse `json:"others,omitempty"`
}

// DefineAgentFlow creates the debate agent Genkit flow. One flow serves every
// agent type; the request selects the persona and the round. The flow returns
// an error on LLM failure so the orchestrator can decide the fallback.
func DefineAgentFlow(
	g *genkit.Genkit,
	modelName string,
) *genkitcore.Flow[*AgentRequest, *models.AgentResponse, struct{}] {
	return genkit.DefineFlow(
		g,
		"debateAgentFlow",
		func(ctx context.Context, req *AgentRequest) (*models.AgentResponse, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled before agent analysis: %w", err)
			}

			log.Printf("🕵️ Agent %s round %d analyzing message %s", req.AgentType, req.Round, req.Message.ID)

			prompt := BuildAgentPrompt(req)

			resp, err := genkit.Generate(
				ctx,
				g,
				ai.WithModelName(modelName),
				ai.WithSystem(agentSystemPrompt(req.AgentType)),
				ai.WithPrompt(prompt),
				ai.WithConfig(agentGenerationConfig(req)),
				ai.WithMiddleware(getMiddlewares()...),
			)
			if err != nil {
				return nil, fmt.Errorf("agent %s LLM failed: %w", req.AgentType, err)
			}

			response := parseAgentOutput(req.AgentType, resp.Text())
			response.Usage = models.TokenUsage{
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			}

			log.Printf("✅ Agent %s round %d: %s (%.0f%%)",
				req.AgentType, req.Round, response.Stance, response.Confidence*100)
			return response, nil
		},
	)
}

// agentGenerationConfig picks sampling parameters per roster and round. The
// five-agent roster runs colder: its verdict spread comes from the roles, not
// from sampling variance.
func agentGenerationConfig(req *AgentRequest) map[string]any {
	if IsFiveRosterAgent(req.AgentType) {
		return map[string]any{"temperature": 0.2, "maxOutputTokens": 450}
	}
	temperature := 0.4
	if req.Round > 1 {
		temperature = 0.3
	}
	return map[string]any{"temperature": temperature, "maxOutputTokens": 400}
}

// parseAgentOutput converts raw model text into an agent response. A missing
// stance caps confidence at 0.6 so a garbled answer never dominates the vote.
func parseAgentOutput(agentType, raw string) *models.AgentResponse {
	obj := ParseJSONObject(raw)

	stanceRaw, hasStance := objString(obj, "stance")
	stance := NormalizeStance(stanceRaw)

	confidence := 0.5
	if v, ok := objFloat(obj, "confidence"); ok {
		confidence = NormalizeConfidence(v)
	}
	if !hasStance && confidence > 0.6 {
		confidence = 0.6
	}

	arguments := objStrings(obj, "key_arguments")
	if !hasStance && len(arguments) == 0 {
		arguments = []string{"Model response missing required 'stance' field."}
	}

	return &models.AgentResponse{
		AgentType:   agentType,
		Stance:      stance,
		Confidence:  confidence,
		Arguments:   arguments,
		KeyEvidence: flattenEvidence(obj["evidence"]),
	}
}

// flattenEvidence turns the free-form evidence object into printable lines.
func flattenEvidence(v any) []string {
	switch evidence := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(evidence))
		for k := range evidence {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]string, 0, len(keys))
		for _, k := range keys {
			out = append(out, fmt.Sprintf("%s=%v", k, evidence[k]))
		}
		return out
	case []any:
		var out []string
		for _, item := range evidence {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		if evidence == "" {
			return nil
		}
		return []string{evidence}
	}
	return nil
}
