package urlcheck

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const virusTotalBaseURL = "https://www.virustotal.com/api/v3"

// VirusTotalChecker queries the VirusTotal v3 API for URL and domain
// reputation. With no API key configured every check falls back to a
// medium-risk heuristic result.
type VirusTotalChecker struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewVirusTotalChecker(apiKey string) *VirusTotalChecker {
	return &VirusTotalChecker{
		apiKey:  apiKey,
		baseURL: virusTotalBaseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// IsConfigured reports whether an API key is available.
func (vt *VirusTotalChecker) IsConfigured() bool {
	return vt.apiKey != ""
}

// ReputationResult is a single VirusTotal verdict.
type ReputationResult struct {
	IsMalicious       bool
	RiskScore         float64
	EnginesMalicious  int
	EnginesSuspicious int
	Reputation        int
	Err               string
}

type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
				Undetected int `json:"undetected"`
			} `json:"last_analysis_stats"`
			Reputation int `json:"reputation"`
		} `json:"attributes"`
	} `json:"data"`
}

// CheckURL looks up an existing URL analysis; unknown URLs fall back to a
// domain reputation check.
func (vt *VirusTotalChecker) CheckURL(ctx context.Context, rawURL string) ReputationResult {
	if !vt.IsConfigured() {
		return vt.fallback("API key not configured")
	}

	// VirusTotal URL identifier: unpadded urlsafe base64 of the URL
	urlID := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(rawURL))

	var payload vtResponse
	status, err := vt.get(ctx, vt.baseURL+"/urls/"+urlID, &payload)
	if err != nil {
		log.Printf("⚠️ VirusTotal URL check error: %v", err)
		return vt.fallback(err.Error())
	}
	if status != http.StatusOK {
		// Not in the database yet, domain reputation is the next best signal
		return vt.CheckDomain(ctx, ExtractDomain(rawURL))
	}

	stats := payload.Data.Attributes.LastAnalysisStats
	total := stats.Malicious + stats.Suspicious + stats.Harmless + stats.Undetected

	risk := 0.0
	if total > 0 {
		risk = (float64(stats.Malicious)*1.0 + float64(stats.Suspicious)*0.5) / float64(total)
	}
	if risk > 1.0 {
		risk = 1.0
	}

	return ReputationResult{
		IsMalicious:       stats.Malicious >= 3 || risk > 0.1,
		RiskScore:         risk,
		EnginesMalicious:  stats.Malicious,
		EnginesSuspicious: stats.Suspicious,
		Reputation:        payload.Data.Attributes.Reputation,
	}
}

// CheckDomain checks domain reputation. Community reputation below -20
// contributes to the risk score; below -50 the domain is flagged outright.
func (vt *VirusTotalChecker) CheckDomain(ctx context.Context, domain string) ReputationResult {
	if !vt.IsConfigured() {
		return vt.fallback("API key not configured")
	}

	var payload vtResponse
	status, err := vt.get(ctx, vt.baseURL+"/domains/"+domain, &payload)
	if err != nil {
		log.Printf("⚠️ VirusTotal domain check error: %v", err)
		return vt.fallback(err.Error())
	}
	if status != http.StatusOK {
		return vt.fallback(fmt.Sprintf("API error: %d", status))
	}

	stats := payload.Data.Attributes.LastAnalysisStats
	reputation := payload.Data.Attributes.Reputation
	total := stats.Malicious + stats.Suspicious + stats.Harmless + stats.Undetected

	analysisRisk := 0.0
	if total > 0 {
		analysisRisk = (float64(stats.Malicious)*1.0 + float64(stats.Suspicious)*0.5) / float64(total)
	}

	reputationFactor := 0.0
	if reputation < -20 {
		reputationFactor = (100.0 - float64(reputation)) / 200.0
		if reputationFactor > 1 {
			reputationFactor = 1
		}
		if reputationFactor < 0 {
			reputationFactor = 0
		}
	}

	risk := analysisRisk
	if reputationFactor > risk {
		risk = reputationFactor
	}
	if risk > 1.0 {
		risk = 1.0
	}

	return ReputationResult{
		IsMalicious:       stats.Malicious >= 3 || reputation < -50 || risk > 0.15,
		RiskScore:         risk,
		EnginesMalicious:  stats.Malicious,
		EnginesSuspicious: stats.Suspicious,
		Reputation:        reputation,
	}
}

func (vt *VirusTotalChecker) get(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-apikey", vt.apiKey)

	resp, err := vt.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// fallback keeps the pipeline moving when the API is unavailable: unknown
// means medium risk, never malicious.
func (vt *VirusTotalChecker) fallback(reason string) ReputationResult {
	return ReputationResult{
		IsMalicious: false,
		RiskScore:   0.5,
		Err:         reason,
	}
}
