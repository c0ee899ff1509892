package llm

import (
	"fmt"
	"sort"
	"strings"
)

// System prompt for the single-shot classifier. The pipeline protects an
// Indonesian academic group, so the prompt speaks Indonesian throughout.
const singleShotSystemPrompt = `Kamu adalah sistem deteksi phishing untuk grup Telegram akademik Indonesia.
Tugasmu: Menganalisis apakah pesan dari akun mahasiswa terverifikasi menunjukkan tanda-tanda akun yang disusupi atau upaya phishing.

Konteks:
- Grup: Mahasiswa Teknik Informatika, Universitas Islam Riau (UIR)
- Konten tipikal: diskusi akademik, Informasi akademik, pengumuman event kampus
- Model ancaman: Akun mahasiswa yang dikompromikan mengirimkan link phishing

Kriteria Phishing:
1. URL mencurigakan (shortened, TLD aneh, domain mirip tapi beda)
2. Taktik social engineering (urgensi berlebihan, otoritas palsu, ketakutan)
3. Permintaan data sensitif (password, OTP, transfer uang)
4. Perilaku tidak konsisten dengan baseline pengguna
5. Konteks tidak relevan dengan aktivitas akademik

Kriteria Legitimate:
1. URL dari domain terpercaya (kampus, Google, GitHub, dll)
2. Konteks sesuai aktivitas akademik
3. Gaya pesan konsisten dengan pengguna
4. Tidak ada indikator social engineering
5. URL shortener tidak otomatis berbahaya jika expanded URL mengarah ke domain terpercaya

Output dalam format JSON strict:
{
  "classification": "SAFE" | "SUSPICIOUS" | "PHISHING",
  "confidence": 0.0-1.0,
  "reasoning": "penjelasan singkat dalam Bahasa Indonesia",
  "risk_factors": ["faktor1", "faktor2", ...]
}

PENTING:
- Berikan confidence tinggi (>0.85) hanya jika sangat yakin
- Gunakan "SUSPICIOUS" jika ragu antara SAFE dan PHISHING
- Jangan memberi label PHISHING hanya karena URL shortener jika evidence expand/trusted mendukung LEGITIMATE
- Pertimbangkan konteks grup akademik Indonesia`

// BuildAnalysisPrompt renders the user prompt for the single-shot classifier:
// sender identity, behavioral baseline, the message itself, and the triage
// evidence including URL expansion results.
func BuildAnalysisPrompt(req *ClassifyRequest) string {
	var parts []string
	parts = append(parts, "=== Permintaan Analisis Pesan ===\n")

	if req.Sender.Username != "" || req.Sender.ID != "" {
		username := req.Sender.Username
		if username == "" {
			username = req.Sender.ID
		}
		parts = append(parts, fmt.Sprintf("Pengirim: @%s", username))
		joined := "unknown"
		if !req.Sender.JoinedAt.IsZero() {
			joined = req.Sender.JoinedAt.Format("2006-01-02")
		}
		parts = append(parts, fmt.Sprintf("Bergabung: %s", joined))
	} else {
		parts = append(parts, "Pengirim: (tidak diketahui)")
	}

	parts = append(parts, "")

	baseline := req.Baseline
	if baseline.TotalMessages > 0 {
		parts = append(parts, "Perilaku Baseline:")
		if baseline.AvgMessageLength > 0 {
			parts = append(parts, fmt.Sprintf("- Rata-rata panjang pesan: %.0f karakter", baseline.AvgMessageLength))
		}
		if len(baseline.TypicalHours) > 0 {
			minHour, maxHour := baseline.TypicalHours[0], baseline.TypicalHours[0]
			for _, h := range baseline.TypicalHours {
				if h < minHour {
					minHour = h
				}
				if h > maxHour {
					maxHour = h
				}
			}
			parts = append(parts, fmt.Sprintf("- Jam posting tipikal: %02d:00 - %02d:00", minHour, maxHour))
		}
		parts = append(parts, fmt.Sprintf("- Frekuensi share URL: %.2f%% per pesan", baseline.URLSharingRate*100))
		parts = append(parts, fmt.Sprintf("- Total pesan historis: %d", baseline.TotalMessages))
	} else {
		parts = append(parts, "Perilaku Baseline: (belum cukup data)")
	}

	parts = append(parts, "")
	parts = append(parts, "Pesan Saat Ini:")
	parts = append(parts, fmt.Sprintf("- Waktu: %s WIB", req.Message.Timestamp.Format("2006-01-02 15:04")))
	parts = append(parts, fmt.Sprintf("- Panjang: %d karakter", len([]rune(req.Message.Text))))
	parts = append(parts, "- Isi pesan:")
	parts = append(parts, fmt.Sprintf("  %q", req.Message.Text))

	parts = append(parts, "")

	if triage := req.Triage; triage != nil {
		parts = append(parts, "Hasil Triage (rule-based):")
		parts = append(parts, fmt.Sprintf("- Risk Score: %d/100", triage.RiskScore))
		if len(triage.TriggeredFlags) > 0 {
			parts = append(parts, "- Red Flags: "+strings.Join(triage.TriggeredFlags, ", "))
		}
		if len(triage.URLsFound) > 0 {
			parts = append(parts, fmt.Sprintf("- URLs ditemukan: %v", triage.URLsFound))
		}
		if len(triage.WhitelistedURLs) > 0 {
			parts = append(parts, fmt.Sprintf("- URLs whitelisted: %v", triage.WhitelistedURLs))
		}
		if len(triage.ExpandedURLs) > 0 {
			parts = append(parts, "- Evidence ekspansi URL:")
			originals := make([]string, 0, len(triage.ExpandedURLs))
			for original := range triage.ExpandedURLs {
				originals = append(originals, original)
			}
			sort.Strings(originals)
			for _, original := range originals {
				expansion := triage.ExpandedURLs[original]
				source := expansion.Source
				if source == "" {
					source = "triage_expander"
				}
				if expansion.ExpandedURL != "" {
					domain := expansion.FinalDomain
					if domain == "" {
						domain = "unknown"
					}
					parts = append(parts, fmt.Sprintf("  - %s -> %s (domain: %s, source: %s)",
						original, expansion.ExpandedURL, domain, source))
				} else {
					parts = append(parts, fmt.Sprintf("  - %s -> gagal expand (source: %s)", original, source))
				}
			}
		}
	}

	parts = append(parts, "")
	parts = append(parts, "Analisis pesan ini dan berikan klasifikasi dalam format JSON.")

	return strings.Join(parts, "\n")
}
