package llm

import (
	"context"
	"fmt"
	"log"

	"github.com/firebase/genkit/go/ai"
	genkitcore "github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/JagaGrup/Sentinel/internal/limits"
	"github.com/JagaGrup/Sentinel/internal/models"
)

// Routing thresholds. The fast classifier acts as a router, not a judge:
// it may only finalize high-confidence SAFE; everything else goes to the
// debate stage for verification.
const (
	highConfidenceSafe = 0.90
	moderateConfidence = 0.80
	lowConfidence      = 0.70
	highTriageRisk     = 50
)

// ClassifyRequest - input for the single-shot classification flow
type ClassifyRequest struct {
	Message  models.Message          `json:"message"`
	Sender   models.Sender           `json:"sender"`
	Baseline models.BaselineSnapshot `json:"baseline"`
	Triage   *models.TriageResult    `json:"triage,omitempty"`
}

// DefineClassifyFlow creates the single-shot classifier Genkit flow. The flow
// never fails on LLM errors: it degrades to a conservative verdict derived
// from the triage result and forces escalation instead.
func DefineClassifyFlow(
	g *genkit.Genkit,
	modelName string,
	limiter *limits.PipelineLimiter,
) *genkitcore.Flow[*ClassifyRequest, *models.SingleShotVerdict, struct{}] {
	return genkit.DefineFlow(
		g,
		"classifyFlow",
		func(ctx context.Context, req *ClassifyRequest) (*models.SingleShotVerdict, error) {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("context cancelled before classification: %w", err)
			}

			// Triage already cleared the message: whitelisted URLs only, or
			// no risk indicators at all. No tokens spent.
			if req.Triage != nil && req.Triage.SkipLLM {
				log.Printf("✅ Classify: triage cleared message %s, skipping LLM", req.Message.ID)
				return &models.SingleShotVerdict{
					Classification: models.ClassSafe,
					Confidence:     1.0,
					Reasoning:      "Pesan hanya berisi URL dari domain terpercaya atau tidak ada indikator risiko",
				}, nil
			}

			prompt := BuildAnalysisPrompt(req)
			if limiter != nil {
				prompt = limiter.TruncatePrompt(prompt)
			}

			log.Printf("🔵 Classify: analyzing message %s (%d chars)", req.Message.ID, len(req.Message.Text))

			resp, err := genkit.Generate(
				ctx,
				g,
				ai.WithModelName(modelName),
				ai.WithSystem(singleShotSystemPrompt),
				ai.WithPrompt(prompt),
				ai.WithConfig(map[string]any{
					"temperature":     0.3,
					"maxOutputTokens": 500,
				}),
				ai.WithMiddleware(getMiddlewares()...),
			)
			if err != nil {
				log.Printf("⚠️ Classify: LLM failed, using triage fallback: %v", err)
				return FallbackVerdict(req.Triage, err), nil
			}

			verdict := parseClassifierOutput(resp.Text())
			verdict.Usage = models.TokenUsage{
				InputTokens:  resp.Usage.InputTokens,
				OutputTokens: resp.Usage.OutputTokens,
			}

			triageRisk := 0
			if req.Triage != nil {
				triageRisk = req.Triage.RiskScore
			}
			escalate, reason := ShouldEscalate(verdict.Classification, verdict.Confidence, triageRisk)
			verdict.Escalate = escalate

			if escalate {
				log.Printf("🕵️ Classify: %s (%.0f%%) -> escalating: %s",
					verdict.Classification, verdict.Confidence*100, reason)
			} else {
				log.Printf("✅ Classify: %s (%.0f%%) finalized", verdict.Classification, verdict.Confidence*100)
			}
			return verdict, nil
		},
	)
}

// parseClassifierOutput converts raw model text into a verdict, tolerating
// markdown fences, bare labels and Indonesian label variants.
func parseClassifierOutput(raw string) *models.SingleShotVerdict {
	obj := ParseJSONObject(raw)

	classification := models.ClassSuspicious
	if label, ok := objString(obj, "classification"); ok {
		switch models.Classification(NormalizeLabel(label)) {
		case models.ClassSafe:
			classification = models.ClassSafe
		case models.ClassPhishing:
			classification = models.ClassPhishing
		case models.ClassSuspicious:
			classification = models.ClassSuspicious
		}
	}

	confidence := 0.5
	if v, ok := objFloat(obj, "confidence"); ok {
		confidence = NormalizeConfidence(v)
	}

	reasoning, _ := objString(obj, "reasoning")

	return &models.SingleShotVerdict{
		Classification: classification,
		Confidence:     confidence,
		Reasoning:      reasoning,
		RiskFactors:    objStrings(obj, "risk_factors"),
	}
}

// ShouldEscalate decides whether a single-shot verdict needs debate
// verification. PHISHING and SUSPICIOUS always escalate; SAFE finalizes only
// at high confidence.
func ShouldEscalate(classification models.Classification, confidence float64, triageRisk int) (bool, string) {
	if classification == models.ClassPhishing {
		return true, fmt.Sprintf("PHISHING always requires debate verification (confidence: %.0f%%)", confidence*100)
	}
	if classification == models.ClassSuspicious {
		return true, "SUSPICIOUS requires multi-agent verification"
	}

	if confidence >= highConfidenceSafe {
		return false, ""
	}
	if confidence < lowConfidence {
		return true, fmt.Sprintf("Low confidence (%.0f%%) requires multi-agent verification", confidence*100)
	}
	if triageRisk >= highTriageRisk && confidence < moderateConfidence {
		return true, fmt.Sprintf("High triage risk (%d) with moderate confidence (%.0f%%)", triageRisk, confidence*100)
	}
	return true, fmt.Sprintf("SAFE below the %.0f%% finalization bar (%.0f%%)", highConfidenceSafe*100, confidence*100)
}

// FallbackVerdict builds a conservative verdict when the LLM call fails,
// leaning on the triage classification. Fallbacks always escalate.
func FallbackVerdict(triage *models.TriageResult, callErr error) *models.SingleShotVerdict {
	classification := models.ClassSuspicious
	confidence := 0.5

	if triage != nil {
		switch triage.Classification {
		case models.RiskHigh:
			confidence = 0.6
		case models.RiskLow:
			confidence = 0.5
		default:
			classification = models.ClassSafe
			confidence = 0.7
		}
	}

	return &models.SingleShotVerdict{
		Classification: classification,
		Confidence:     confidence,
		Reasoning:      fmt.Sprintf("Fallback classification due to LLM error: %v", callErr),
		RiskFactors:    []string{"llm_error"},
		Escalate:       true,
	}
}
