package llm

import (
	"fmt"
	"sort"
	"strings"
)

// Agent type identifiers for the two debate rosters.
const (
	AgentContentAnalyzer   = "content_analyzer"
	AgentSecurityValidator = "security_validator"
	AgentSocialContext     = "social_context"

	AgentDetector    = "detector_agent"
	AgentCritic      = "critic_agent"
	AgentDefender    = "defender_agent"
	AgentFactChecker = "fact_checker_agent"
	AgentJudge       = "judge_agent"
)

// Strict schema reminder appended to every five-agent prompt.
const agentOutputSchema = `{"stance":"PHISHING|SUSPICIOUS|LEGITIMATE",` +
	`"confidence":0.0,` +
	`"key_arguments":["arg1","arg2"],` +
	`"evidence":{"key":"value"}}`

var agentSystemPrompts = map[string]string{
	AgentContentAnalyzer: `Kamu adalah Content Analyzer agent dalam sistem deteksi phishing.

Peran: Menganalisis konten pesan, pola linguistik, dan deviasi perilaku.

Fokus analisis:
1. Konsistensi gaya bahasa dengan baseline pengguna
2. Taktik social engineering (urgensi, otoritas palsu, ketakutan)
3. Relevansi konteks dengan aktivitas akademik grup
4. Anomali struktur dan format pesan
5. Penggunaan bahasa Indonesia yang tidak wajar

Output JSON:
{
  "stance": "PHISHING" | "SUSPICIOUS" | "LEGITIMATE",
  "confidence": 0.0-1.0,
  "key_arguments": ["argumen1", "argumen2", ...],
  "evidence": {
    "style_deviation": 0.0-1.0,
    "urgency_score": 0.0-1.0,
    "social_engineering_detected": true/false,
    "linguistic_anomalies": ["anomali1", ...]
  }
}`,

	AgentSecurityValidator: `Kamu adalah Security Validator agent dalam sistem deteksi phishing.

Peran: Memverifikasi URL, reputasi domain, dan bukti keamanan eksternal.

Fokus analisis:
1. Struktur URL (obfuscation, patterns mencurigakan)
2. Reputasi domain berdasarkan data yang tersedia
3. Verifikasi tujuan link
4. Kecocokan dengan database phishing historis
5. HTTPS vs HTTP, TLD analysis

Output JSON:
{
  "stance": "PHISHING" | "SUSPICIOUS" | "LEGITIMATE",
  "confidence": 0.0-1.0,
  "key_arguments": ["argumen1", "argumen2", ...],
  "evidence": {
    "url_risk_score": 0.0-1.0,
    "domain_trusted": true/false,
    "is_shortened": true/false,
    "tld_suspicious": true/false
  }
}`,

	AgentSocialContext: `Kamu adalah Social Context Evaluator agent dalam sistem deteksi phishing.

Peran: Mengevaluasi konteks sosial dan perilaku khusus untuk grup akademik.

Fokus analisis:
1. Pola perilaku historis pengirim
2. Kesesuaian waktu posting
3. Relevansi dengan aktivitas akademik yang sedang berlangsung
4. Dinamika sosial dalam grup mahasiswa
5. Apakah konten masuk akal untuk konteks akademik

Output JSON:
{
  "stance": "PHISHING" | "SUSPICIOUS" | "LEGITIMATE",
  "confidence": 0.0-1.0,
  "key_arguments": ["argumen1", "argumen2", ...],
  "evidence": {
    "behavior_anomaly_score": 0.0-1.0,
    "context_relevance": 0.0-1.0,
    "timing_appropriate": true/false,
    "academic_context_match": true/false
  }
}`,

	AgentDetector: "Kamu adalah Detector Agent untuk deteksi phishing. " +
		"Prioritasmu adalah menemukan indikasi serangan secara cepat " +
		"berdasarkan pola social engineering, ancaman URL, dan anomali pesan. " +
		"WAJIB output JSON valid sesuai schema yang diminta user prompt.",

	AgentCritic: "Kamu adalah Critic Agent dalam debat deteksi phishing. " +
		"Peranmu adalah menguji ketahanan argumen, mencari lompatan logika, " +
		"dan menurunkan keyakinan jika bukti tidak cukup. " +
		"WAJIB output JSON valid sesuai schema yang diminta user prompt.",

	AgentDefender: "Kamu adalah Defender Agent dalam debat deteksi phishing. " +
		"Peranmu membela kemungkinan LEGITIMATE secara rasional, " +
		"namun tetap patuh pada bukti objektif keamanan. " +
		"WAJIB output JSON valid sesuai schema yang diminta user prompt.",

	AgentFactChecker: "Kamu adalah Fact Checker Agent untuk verifikasi klaim phishing. " +
		"Fokus pada validasi fakta: URL evidence, metadata, dan konsistensi data. " +
		"WAJIB output JSON valid sesuai schema yang diminta user prompt.",

	AgentJudge: "Kamu adalah Judge Agent dalam sistem debat phishing. " +
		"Peranmu adalah menyeimbangkan deteksi agresif dan pencegahan false alarm, " +
		"lalu memberi putusan paling defensible. " +
		"WAJIB output JSON valid sesuai schema yang diminta user prompt.",
}

var fiveAgentTasks = map[string][]string{
	AgentDetector: {
		"- Berikan deteksi awal seagresif mungkin berbasis indikator risiko.",
		"- Jelaskan sinyal paling kuat yang mengarah ke phishing.",
		"- Jika ada >=2 indikator risiko kuat, utamakan PHISHING.",
		"- Gunakan SUSPICIOUS hanya bila bukti ambigu.",
	},
	AgentCritic: {
		"- Cari alasan kenapa pesan bisa saja bukan phishing.",
		"- Identifikasi kelemahan bukti atau kemungkinan false positive.",
		"- Jika tetap berisiko tinggi, tetap boleh memilih PHISHING.",
	},
	AgentDefender: {
		"- Cari penjelasan yang valid jika pesan ini normal/legitimate.",
		"- Tunjukkan bukti yang mendukung konteks akademik normal.",
		"- Jika tidak bisa dipertahankan, turunkan stance ke SUSPICIOUS/PHISHING.",
	},
	AgentFactChecker: {
		"- Verifikasi klaim berbasis data faktual (URL checks, triage flags).",
		"- Pisahkan fakta, asumsi, dan ketidakpastian.",
		"- Beri confidence tinggi hanya jika bukti objektif kuat.",
	},
	AgentJudge: {
		"- Putuskan verdict awal yang paling seimbang dan defensible.",
		"- Pertimbangkan cost false negative dan false positive.",
		"- Jika ada indikasi kuat phishing, jangan default ke SUSPICIOUS.",
	},
}

var fiveAgentTitles = map[string]string{
	AgentDetector:    "Detector Agent",
	AgentCritic:      "Critic Agent",
	AgentDefender:    "Defender Agent",
	AgentFactChecker: "Fact Checker Agent",
	AgentJudge:       "Judge Agent",
}

// IsFiveRosterAgent reports whether the agent type belongs to the
// five-agent roster.
func IsFiveRosterAgent(agentType string) bool {
	_, ok := fiveAgentTasks[agentType]
	return ok
}

func agentSystemPrompt(agentType string) string {
	if p, ok := agentSystemPrompts[agentType]; ok {
		return p
	}
	return agentSystemPrompts[AgentContentAnalyzer]
}

// BuildAgentPrompt renders the user prompt for one agent in one round.
func BuildAgentPrompt(req *AgentRequest) string {
	if req.Round > 1 && req.Own != nil {
		return buildDeliberationPrompt(req)
	}

	switch req.AgentType {
	case AgentContentAnalyzer:
		return buildContentAnalyzerPrompt(req)
	case AgentSecurityValidator:
		return buildSecurityValidatorPrompt(req)
	case AgentSocialContext:
		return buildSocialContextPrompt(req)
	default:
		return buildFiveAgentPrompt(req)
	}
}

func buildContentAnalyzerPrompt(req *AgentRequest) string {
	var parts []string
	parts = append(parts, "=== Analisis Konten Pesan ===\n")

	parts = append(parts, fmt.Sprintf("Pesan: %q", req.Message.Text))
	parts = append(parts, fmt.Sprintf("Panjang: %d karakter", len([]rune(req.Message.Text))))
	parts = append(parts, fmt.Sprintf("Waktu: %s", req.Message.Timestamp.Format("2006-01-02 15:04")))
	parts = append(parts, "")

	if req.Sender.Username != "" {
		parts = append(parts, "Pengirim:")
		parts = append(parts, fmt.Sprintf("- Username: @%s", req.Sender.Username))
	}

	if req.Baseline.TotalMessages > 0 {
		parts = append(parts, "\nBaseline Pengguna:")
		parts = append(parts, fmt.Sprintf("- Rata-rata panjang pesan: %.0f", req.Baseline.AvgMessageLength))
		parts = append(parts, fmt.Sprintf("- Emoji usage rate: %.2f%%", req.Baseline.EmojiUsageRate*100))
		parts = append(parts, fmt.Sprintf("- Total pesan historis: %d", req.Baseline.TotalMessages))
	}

	parts = append(parts, singleShotSummary(req)...)

	if req.Triage != nil {
		parts = append(parts, "\nTriage Flags:")
		parts = append(parts, fmt.Sprintf("- Risk score: %d", req.Triage.RiskScore))
		parts = append(parts, fmt.Sprintf("- Triggered: %v", req.Triage.TriggeredFlags))
	}

	parts = append(parts, "\nAnalisis konten pesan ini dan berikan stance Anda.")
	return strings.Join(parts, "\n")
}

func buildSecurityValidatorPrompt(req *AgentRequest) string {
	var parts []string
	parts = append(parts, "=== Validasi Keamanan URL ===\n")

	parts = append(parts, fmt.Sprintf("Pesan: %q", req.Message.Text))
	parts = append(parts, "")

	if req.Triage != nil && len(req.Triage.URLsFound) > 0 {
		parts = append(parts, "URLs ditemukan:")
		for _, url := range req.Triage.URLsFound {
			parts = append(parts, "  - "+url)
		}
	} else {
		parts = append(parts, "URLs: Tidak ada URL ditemukan")
	}

	if req.Triage != nil {
		parts = append(parts, "\nAnalisis URL (Triage):")
		parts = append(parts, fmt.Sprintf("- Whitelisted URLs: %v", req.Triage.WhitelistedURLs))
		parts = append(parts, fmt.Sprintf("- Risk score: %d", req.Triage.RiskScore))

		var urlFlags []string
		for _, flag := range req.Triage.TriggeredFlags {
			if strings.Contains(flag, "url") || strings.Contains(flag, "tld") || strings.Contains(flag, "domain") {
				urlFlags = append(urlFlags, flag)
			}
		}
		if len(urlFlags) > 0 {
			parts = append(parts, fmt.Sprintf("- URL-related flags: %v", urlFlags))
		}
	}

	if len(req.URLChecks) > 0 {
		parts = append(parts, "\n=== Hasil URL Checker Eksternal ===")
		for _, url := range sortedKeys(req.URLChecks) {
			check := req.URLChecks[url]
			parts = append(parts, "\nURL: "+url)
			status := "✅ AMAN"
			if check.IsMalicious {
				status = "⚠️ BERBAHAYA"
			}
			parts = append(parts, "  Status: "+status)
			parts = append(parts, fmt.Sprintf("  Risk Score: %.2f", check.RiskScore))
			parts = append(parts, "  Source: "+check.Source)
			if check.EnginesMalicious > 0 || check.EnginesSuspicious > 0 {
				parts = append(parts, fmt.Sprintf("  Engines deteksi malicious: %d", check.EnginesMalicious))
				parts = append(parts, fmt.Sprintf("  Engines deteksi suspicious: %d", check.EnginesSuspicious))
			}
			if len(check.RiskFactors) > 0 {
				parts = append(parts, "  Risk factors: "+strings.Join(check.RiskFactors, ", "))
			}
		}
	}

	parts = append(parts, singleShotSummary(req)...)

	parts = append(parts, "\nAnalisis keamanan URL dan berikan stance Anda.")
	return strings.Join(parts, "\n")
}

func buildSocialContextPrompt(req *AgentRequest) string {
	var parts []string
	parts = append(parts, "=== Evaluasi Konteks Sosial ===\n")

	parts = append(parts, fmt.Sprintf("Pesan: %q", req.Message.Text))
	parts = append(parts, fmt.Sprintf("Waktu: %s", req.Message.Timestamp.Format("2006-01-02 15:04")))
	parts = append(parts, "")

	parts = append(parts, "Pengirim:")
	username := req.Sender.Username
	if username == "" {
		username = "unknown"
	}
	parts = append(parts, fmt.Sprintf("- Username: @%s", username))
	if !req.Sender.JoinedAt.IsZero() {
		parts = append(parts, fmt.Sprintf("- Bergabung: %s", req.Sender.JoinedAt.Format("2006-01-02")))
	}

	if req.Baseline.TotalMessages > 0 {
		parts = append(parts, "\nRiwayat Perilaku:")
		parts = append(parts, fmt.Sprintf("- Total pesan: %d", req.Baseline.TotalMessages))
		parts = append(parts, fmt.Sprintf("- URL sharing rate: %.2f%%", req.Baseline.URLSharingRate*100))
		if len(req.Baseline.TypicalHours) > 0 {
			minHour, maxHour := req.Baseline.TypicalHours[0], req.Baseline.TypicalHours[0]
			for _, h := range req.Baseline.TypicalHours {
				if h < minHour {
					minHour = h
				}
				if h > maxHour {
					maxHour = h
				}
			}
			parts = append(parts, fmt.Sprintf("- Jam aktif tipikal: %d:00 - %d:00", minHour, maxHour))
		}
	} else {
		parts = append(parts, "\nRiwayat Perilaku: Tidak cukup data baseline")
	}

	if req.Triage != nil {
		var behavioral []string
		for _, flag := range req.Triage.TriggeredFlags {
			if strings.Contains(flag, "anomaly") || strings.Contains(flag, "first_time") {
				behavioral = append(behavioral, flag)
			}
		}
		if len(behavioral) > 0 {
			parts = append(parts, fmt.Sprintf("\nAnomali perilaku terdeteksi: %v", behavioral))
		}
	}

	parts = append(parts, singleShotSummary(req)...)

	parts = append(parts, "\nKonteks: Grup mahasiswa Teknik Informatika UIR")
	parts = append(parts, "Evaluasi apakah pesan ini sesuai dengan konteks sosial dan berikan stance Anda.")
	return strings.Join(parts, "\n")
}

// buildFiveAgentPrompt renders the shared-context prompt used by the whole
// five-agent roster, differing only in the per-role task list.
func buildFiveAgentPrompt(req *AgentRequest) string {
	title := fiveAgentTitles[req.AgentType]
	if title == "" {
		title = req.AgentType
	}

	parts := []string{fmt.Sprintf("=== Round 1: %s ===", title), ""}
	parts = appendSharedContext(parts, req)
	parts = append(parts, "")
	parts = append(parts, "Tugas:")
	parts = append(parts, fiveAgentTasks[req.AgentType]...)
	parts = appendOutputContract(parts)
	return strings.Join(parts, "\n")
}

func buildDeliberationPrompt(req *AgentRequest) string {
	header := fmt.Sprintf("=== Round %d: Deliberasi ===", req.Round)
	if IsFiveRosterAgent(req.AgentType) {
		header = fmt.Sprintf("=== Round %d: Deliberasi MAD v5 ===", req.Round)
	}

	parts := []string{header, ""}
	parts = append(parts, fmt.Sprintf("Pesan yang dianalisis: %q", req.Message.Text))
	parts = append(parts, "")

	parts = append(parts, "Analisis Anda di round sebelumnya:")
	parts = append(parts, "- Stance: "+req.Own.Stance)
	parts = append(parts, fmt.Sprintf("- Confidence: %.0f%%", req.Own.Confidence*100))
	parts = append(parts, fmt.Sprintf("- Argumen: %v", req.Own.Arguments))
	parts = append(parts, "")

	parts = append(parts, "Analisis Agent Lain:")
	for _, other := range req.Others {
		parts = append(parts, fmt.Sprintf("\n[%s]", other.AgentType))
		parts = append(parts, "- Stance: "+other.Stance)
		parts = append(parts, fmt.Sprintf("- Confidence: %.0f%%", other.Confidence*100))
		parts = append(parts, fmt.Sprintf("- Argumen: %v", other.Arguments))
	}

	if len(req.URLChecks) > 0 {
		parts = append(parts, "")
		parts = append(parts, "Data URL checker tersedia. Gunakan sebagai bukti objektif.")
	}

	parts = append(parts, "")
	parts = append(parts, "Pertimbangkan argumen agent lain. Apakah ada blind spot dalam analisis Anda?")
	parts = append(parts, "Anda boleh mempertahankan atau mengubah stance jika ada bukti kuat.")

	if IsFiveRosterAgent(req.AgentType) {
		parts = appendOutputContract(parts)
	} else {
		parts = append(parts, "")
		parts = append(parts, "Output JSON dengan format yang sama.")
	}
	return strings.Join(parts, "\n")
}

func appendSharedContext(parts []string, req *AgentRequest) []string {
	parts = append(parts, fmt.Sprintf("Pesan: %q", req.Message.Text))
	parts = append(parts, fmt.Sprintf("Waktu: %s", req.Message.Timestamp.Format("2006-01-02 15:04")))

	if req.Sender.Username != "" {
		parts = append(parts, "Pengirim: @"+req.Sender.Username)
	}

	if req.Triage != nil && len(req.Triage.URLsFound) > 0 {
		parts = append(parts, "URL ditemukan:")
		for _, url := range req.Triage.URLsFound {
			parts = append(parts, "- "+url)
		}
	} else {
		parts = append(parts, "URL ditemukan: tidak ada")
	}

	if req.Triage != nil {
		parts = append(parts, fmt.Sprintf("Triage risk score: %d", req.Triage.RiskScore))
		parts = append(parts, fmt.Sprintf("Triage flags: %v", req.Triage.TriggeredFlags))
	}

	if req.Baseline.TotalMessages > 0 {
		parts = append(parts, fmt.Sprintf("Riwayat pesan user: %d", req.Baseline.TotalMessages))
		parts = append(parts, fmt.Sprintf("URL sharing rate: %.2f%%", req.Baseline.URLSharingRate*100))
	}

	if len(req.URLChecks) > 0 {
		parts = append(parts, "URL checker eksternal:")
		for _, url := range sortedKeys(req.URLChecks) {
			check := req.URLChecks[url]
			parts = append(parts, fmt.Sprintf("- %s: malicious=%v, risk=%.2f", url, check.IsMalicious, check.RiskScore))
		}
	}

	if req.SingleShot != nil {
		parts = append(parts, fmt.Sprintf("Single-shot: %s (%.0f%%)",
			req.SingleShot.Classification, req.SingleShot.Confidence*100))
		parts = append(parts,
			"Catatan: pesan ini sudah di-eskalasi ke Stage-3 karena dianggap berisiko "+
				"atau belum meyakinkan di tahap sebelumnya.")
	}
	return parts
}

func singleShotSummary(req *AgentRequest) []string {
	if req.SingleShot == nil {
		return nil
	}
	return []string{
		"\nHasil Single-Shot LLM:",
		fmt.Sprintf("- Classification: %s", req.SingleShot.Classification),
		fmt.Sprintf("- Confidence: %.0f%%", req.SingleShot.Confidence*100),
		fmt.Sprintf("- Risk factors: %v", req.SingleShot.RiskFactors),
	}
}

func appendOutputContract(parts []string) []string {
	parts = append(parts, "")
	parts = append(parts, "Output WAJIB JSON valid tanpa markdown, komentar, atau trailing comma.")
	parts = append(parts, "Gunakan schema persis berikut:")
	parts = append(parts, agentOutputSchema)
	return parts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
