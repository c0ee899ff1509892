package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JagaGrup/Sentinel/internal/models"
)

func TestParseJSONObject_StrictJSON(t *testing.T) {
	obj := ParseJSONObject(`{"classification": "PHISHING", "confidence": 0.92, "reasoning": "link palsu"}`)

	assert.Equal(t, "PHISHING", obj["classification"])
	assert.Equal(t, 0.92, obj["confidence"])
	assert.Equal(t, "link palsu", obj["reasoning"])
}

func TestParseJSONObject_MarkdownFences(t *testing.T) {
	raw := "```json\n{\"stance\": \"LEGITIMATE\", \"confidence\": 0.8}\n```"
	obj := ParseJSONObject(raw)

	assert.Equal(t, "LEGITIMATE", obj["stance"])
	assert.Equal(t, 0.8, obj["confidence"])
}

func TestParseJSONObject_BareLabel(t *testing.T) {
	obj := ParseJSONObject("PHISHING - pesan ini jelas penipuan")

	assert.Equal(t, "PHISHING", obj["classification"])
	assert.Equal(t, "PHISHING", obj["stance"])
}

func TestParseJSONObject_BareLegitimateKeepsStance(t *testing.T) {
	obj := ParseJSONObject("LEGITIMATE")

	assert.Equal(t, "SAFE", obj["classification"])
	assert.Equal(t, "LEGITIMATE", obj["stance"])
}

func TestParseJSONObject_IndonesianBareLabel(t *testing.T) {
	obj := ParseJSONObject("AMAN: tidak ada indikator phishing")

	assert.Equal(t, "SAFE", obj["classification"])
	assert.Equal(t, "LEGITIMATE", obj["stance"])
}

func TestParseJSONObject_PreambleBeforeJSON(t *testing.T) {
	raw := "Berikut hasil analisis saya:\n{\"classification\": \"SUSPICIOUS\", \"confidence\": 0.6}"
	obj := ParseJSONObject(raw)

	assert.Equal(t, "SUSPICIOUS", obj["classification"])
}

func TestParseJSONObject_TrailingComma(t *testing.T) {
	obj := ParseJSONObject(`{"classification": "SAFE", "risk_factors": ["a", "b",],}`)

	assert.Equal(t, "SAFE", obj["classification"])
	assert.Equal(t, []any{"a", "b"}, obj["risk_factors"])
}

func TestParseJSONObject_KeyValueFallback(t *testing.T) {
	obj := ParseJSONObject("classification: PENIPUAN, confidence: 82%")

	assert.Equal(t, "PHISHING", obj["classification"])
	assert.Equal(t, 0.82, obj["confidence"])
}

func TestParseJSONObject_StanceKeyValueFallback(t *testing.T) {
	obj := ParseJSONObject("stance = LEGITIMATE (confidence 70%)")

	assert.Equal(t, "LEGITIMATE", obj["stance"])
	assert.Equal(t, "SAFE", obj["classification"])
	assert.Equal(t, 0.7, obj["confidence"])
}

func TestParseJSONObject_Garbage(t *testing.T) {
	assert.Empty(t, ParseJSONObject("maaf, saya tidak bisa membantu"))
	assert.Empty(t, ParseJSONObject(""))
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "SAFE", NormalizeLabel("aman"))
	assert.Equal(t, "SAFE", NormalizeLabel("Legitimate"))
	assert.Equal(t, "SUSPICIOUS", NormalizeLabel("MENCURIGAKAN"))
	assert.Equal(t, "PHISHING", NormalizeLabel("scam"))
	assert.Equal(t, "PHISHING", NormalizeLabel("BERBAHAYA"))
	assert.Equal(t, "WHATEVER", NormalizeLabel(" whatever "))
}

func TestNormalizeConfidence(t *testing.T) {
	assert.Equal(t, 0.85, NormalizeConfidence(85))
	assert.Equal(t, 0.5, NormalizeConfidence(0.5))
	assert.Equal(t, 0.0, NormalizeConfidence(-1))
	assert.Equal(t, 1.0, NormalizeConfidence(150))
}

func TestParseClassifierOutput_Defaults(t *testing.T) {
	verdict := parseClassifierOutput("model meledak")

	assert.Equal(t, models.ClassSuspicious, verdict.Classification)
	assert.Equal(t, 0.5, verdict.Confidence)
}

func TestParseClassifierOutput_Full(t *testing.T) {
	raw := `{"classification": "PHISHING", "confidence": 0.95, "reasoning": "domain .tk", "risk_factors": ["suspicious_tld"]}`
	verdict := parseClassifierOutput(raw)

	assert.Equal(t, models.ClassPhishing, verdict.Classification)
	assert.Equal(t, 0.95, verdict.Confidence)
	assert.Equal(t, "domain .tk", verdict.Reasoning)
	assert.Equal(t, []string{"suspicious_tld"}, verdict.RiskFactors)
}

func TestParseAgentOutput_MissingStanceCapsConfidence(t *testing.T) {
	response := parseAgentOutput(AgentDetector, `{"confidence": 0.9}`)

	assert.Equal(t, StanceSuspicious, response.Stance)
	assert.Equal(t, 0.6, response.Confidence)
	require.Len(t, response.Arguments, 1)
}

func TestParseAgentOutput_EvidenceFlattened(t *testing.T) {
	raw := `{"stance": "PHISHING", "confidence": 0.8, "key_arguments": ["TLD .tk"], "evidence": {"tld_suspicious": true, "domain_trusted": false}}`
	response := parseAgentOutput(AgentSecurityValidator, raw)

	assert.Equal(t, StancePhishing, response.Stance)
	assert.Equal(t, []string{"TLD .tk"}, response.Arguments)
	assert.Equal(t, []string{"domain_trusted=false", "tld_suspicious=true"}, response.KeyEvidence)
}

func TestShouldEscalate_Routing(t *testing.T) {
	tests := []struct {
		name           string
		classification models.Classification
		confidence     float64
		triageRisk     int
		want           bool
	}{
		{"phishing always escalates", models.ClassPhishing, 0.99, 0, true},
		{"suspicious always escalates", models.ClassSuspicious, 0.95, 0, true},
		{"safe high confidence finalizes", models.ClassSafe, 0.95, 80, false},
		{"safe at exactly 0.90 finalizes", models.ClassSafe, 0.90, 0, false},
		{"safe just under the bar escalates", models.ClassSafe, 0.899, 0, true},
		{"safe low confidence escalates", models.ClassSafe, 0.65, 0, true},
		{"safe moderate confidence escalates", models.ClassSafe, 0.75, 0, true},
		{"high triage risk moderate confidence escalates", models.ClassSafe, 0.78, 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ShouldEscalate(tt.classification, tt.confidence, tt.triageRisk)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFallbackVerdict(t *testing.T) {
	highRisk := &models.TriageResult{Classification: models.RiskHigh, RiskScore: 65}
	v := FallbackVerdict(highRisk, assert.AnError)
	assert.Equal(t, models.ClassSuspicious, v.Classification)
	assert.Equal(t, 0.6, v.Confidence)
	assert.True(t, v.Escalate)
	assert.Equal(t, []string{"llm_error"}, v.RiskFactors)

	lowRisk := &models.TriageResult{Classification: models.RiskLow, RiskScore: 15}
	v = FallbackVerdict(lowRisk, assert.AnError)
	assert.Equal(t, models.ClassSuspicious, v.Classification)
	assert.Equal(t, 0.5, v.Confidence)

	safe := &models.TriageResult{Classification: models.RiskSafe}
	v = FallbackVerdict(safe, assert.AnError)
	assert.Equal(t, models.ClassSafe, v.Classification)
	assert.Equal(t, 0.7, v.Confidence)
	assert.True(t, v.Escalate)

	v = FallbackVerdict(nil, assert.AnError)
	assert.Equal(t, models.ClassSuspicious, v.Classification)
	assert.Equal(t, 0.5, v.Confidence)
}

func testMessage() models.Message {
	return models.Message{
		ID:        "msg-1",
		SenderID:  "u-7",
		Text:      "URGENT! Verifikasi akun di https://bit.ly/verify",
		Timestamp: time.Date(2025, 3, 10, 14, 30, 0, 0, time.FixedZone("WIB", 7*3600)),
	}
}

func TestBuildAnalysisPrompt_FullContext(t *testing.T) {
	req := &ClassifyRequest{
		Message: testMessage(),
		Sender: models.Sender{
			ID:       "u-7",
			Username: "budi_ti",
			JoinedAt: time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC),
		},
		Baseline: models.BaselineSnapshot{
			AvgMessageLength: 42,
			TypicalHours:     []int{9, 10, 14},
			URLSharingRate:   0.05,
			TotalMessages:    120,
		},
		Triage: &models.TriageResult{
			Classification: models.RiskHigh,
			RiskScore:      45,
			URLsFound:      []string{"https://bit.ly/verify"},
			TriggeredFlags: []string{"shortened_url", "urgency_keywords"},
			ExpandedURLs: map[string]models.URLCheck{
				"https://bit.ly/verify": {
					URL:         "https://bit.ly/verify",
					ExpandedURL: "https://login-kampus.tk/form",
					FinalDomain: "login-kampus.tk",
					Source:      "expander",
				},
			},
		},
	}

	prompt := BuildAnalysisPrompt(req)

	assert.Contains(t, prompt, "=== Permintaan Analisis Pesan ===")
	assert.Contains(t, prompt, "Pengirim: @budi_ti")
	assert.Contains(t, prompt, "Bergabung: 2024-09-01")
	assert.Contains(t, prompt, "Jam posting tipikal: 09:00 - 14:00")
	assert.Contains(t, prompt, "Frekuensi share URL: 5.00% per pesan")
	assert.Contains(t, prompt, "Waktu: 2025-03-10 14:30 WIB")
	assert.Contains(t, prompt, "Risk Score: 45/100")
	assert.Contains(t, prompt, "Red Flags: shortened_url, urgency_keywords")
	assert.Contains(t, prompt, "https://bit.ly/verify -> https://login-kampus.tk/form (domain: login-kampus.tk, source: expander)")
	assert.Contains(t, prompt, "Analisis pesan ini dan berikan klasifikasi dalam format JSON.")
}

func TestBuildAnalysisPrompt_NoBaselineNoSender(t *testing.T) {
	req := &ClassifyRequest{Message: testMessage()}

	prompt := BuildAnalysisPrompt(req)

	assert.Contains(t, prompt, "Pengirim: (tidak diketahui)")
	assert.Contains(t, prompt, "Perilaku Baseline: (belum cukup data)")
}

func TestBuildAnalysisPrompt_ExpandFailureEvidence(t *testing.T) {
	req := &ClassifyRequest{
		Message: testMessage(),
		Triage: &models.TriageResult{
			ExpandedURLs: map[string]models.URLCheck{
				"https://bit.ly/x": {URL: "https://bit.ly/x"},
			},
		},
	}

	prompt := BuildAnalysisPrompt(req)

	assert.Contains(t, prompt, "https://bit.ly/x -> gagal expand (source: triage_expander)")
}

func TestBuildAgentPrompt_RoundOnePerAgent(t *testing.T) {
	base := &AgentRequest{
		AgentType: AgentContentAnalyzer,
		Round:     1,
		Message:   testMessage(),
		Sender:    models.Sender{Username: "budi_ti"},
		Triage: &models.TriageResult{
			RiskScore:      45,
			URLsFound:      []string{"https://bit.ly/verify"},
			TriggeredFlags: []string{"shortened_url", "time_anomaly"},
		},
		SingleShot: &models.SingleShotVerdict{
			Classification: models.ClassSuspicious,
			Confidence:     0.55,
		},
	}

	prompt := BuildAgentPrompt(base)
	assert.Contains(t, prompt, "=== Analisis Konten Pesan ===")
	assert.Contains(t, prompt, "Hasil Single-Shot LLM:")

	base.AgentType = AgentSecurityValidator
	prompt = BuildAgentPrompt(base)
	assert.Contains(t, prompt, "=== Validasi Keamanan URL ===")
	assert.Contains(t, prompt, "- https://bit.ly/verify")
	assert.Contains(t, prompt, "URL-related flags: [shortened_url]")

	base.AgentType = AgentSocialContext
	prompt = BuildAgentPrompt(base)
	assert.Contains(t, prompt, "=== Evaluasi Konteks Sosial ===")
	assert.Contains(t, prompt, "Anomali perilaku terdeteksi: [time_anomaly]")

	base.AgentType = AgentJudge
	prompt = BuildAgentPrompt(base)
	assert.Contains(t, prompt, "=== Round 1: Judge Agent ===")
	assert.Contains(t, prompt, "Output WAJIB JSON valid")
	assert.Contains(t, prompt, agentOutputSchema)
}

func TestBuildAgentPrompt_URLCheckEvidence(t *testing.T) {
	req := &AgentRequest{
		AgentType: AgentSecurityValidator,
		Round:     1,
		Message:   testMessage(),
		URLChecks: map[string]models.URLCheck{
			"https://bit.ly/verify": {
				URL:              "https://bit.ly/verify",
				IsMalicious:      true,
				RiskScore:        0.8,
				Source:           "virustotal+heuristic",
				EnginesMalicious: 5,
			},
		},
	}

	prompt := BuildAgentPrompt(req)

	assert.Contains(t, prompt, "=== Hasil URL Checker Eksternal ===")
	assert.Contains(t, prompt, "Status: ⚠️ BERBAHAYA")
	assert.Contains(t, prompt, "Engines deteksi malicious: 5")
}

func TestBuildAgentPrompt_Deliberation(t *testing.T) {
	req := &AgentRequest{
		AgentType: AgentContentAnalyzer,
		Round:     2,
		Message:   testMessage(),
		Own: &models.AgentResponse{
			AgentType:  AgentContentAnalyzer,
			Stance:     StanceSuspicious,
			Confidence: 0.6,
			Arguments:  []string{"urgensi berlebihan"},
		},
		Others: []models.AgentResponse{
			{AgentType: AgentSecurityValidator, Stance: StancePhishing, Confidence: 0.9, Arguments: []string{"TLD .tk"}},
		},
	}

	prompt := BuildAgentPrompt(req)

	assert.Contains(t, prompt, "=== Round 2: Deliberasi ===")
	assert.Contains(t, prompt, "[security_validator]")
	assert.Contains(t, prompt, "- Stance: PHISHING")
	assert.Contains(t, prompt, "Apakah ada blind spot dalam analisis Anda?")
	assert.NotContains(t, prompt, "MAD v5")
}

func TestBuildAgentPrompt_FiveRosterDeliberation(t *testing.T) {
	req := &AgentRequest{
		AgentType: AgentJudge,
		Round:     2,
		Message:   testMessage(),
		Own: &models.AgentResponse{
			AgentType:  AgentJudge,
			Stance:     StanceSuspicious,
			Confidence: 0.55,
		},
	}

	prompt := BuildAgentPrompt(req)

	assert.Contains(t, prompt, "=== Round 2: Deliberasi MAD v5 ===")
	assert.Contains(t, prompt, agentOutputSchema)
}
