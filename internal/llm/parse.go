package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Stance labels used by debate agents. Classification labels live in models;
// stances additionally distinguish LEGITIMATE from the pipeline-level SAFE.
const (
	StancePhishing   = "PHISHING"
	StanceSuspicious = "SUSPICIOUS"
	StanceLegitimate = "LEGITIMATE"
)

// Some providers wrap JSON in markdown fences, prepend a short preamble, or
// answer with a bare label. These regexps keep parsing tolerant so flows fall
// back to safe defaults instead of failing.
var (
	fenceOpenPattern  = regexp.MustCompile(`(?i)^` + "```" + `(?:json)?\s*`)
	fenceClosePattern = regexp.MustCompile(`\s*` + "```" + `$`)

	bareLabelPattern = regexp.MustCompile(
		`(?i)^(PHISHING|SUSPICIOUS|LEGITIMATE|SAFE|AMAN|MENCURIGAKAN|PENIPUAN)\b(?:\s*[-:,(].*)?$`)

	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

	classificationKVPattern = regexp.MustCompile(
		`(?i)\b(?:classification|klasifikasi)\b\s*[:=]\s*"?\s*(SAFE|SUSPICIOUS|PHISHING|AMAN|MENCURIGAKAN|PENIPUAN)\b`)
	stanceKVPattern = regexp.MustCompile(
		`(?i)\b(?:stance|verdict|putusan)\b\s*[:=]\s*"?\s*(PHISHING|SUSPICIOUS|LEGITIMATE|SAFE|AMAN|MENCURIGAKAN|PENIPUAN)\b`)
	confidenceKVPattern = regexp.MustCompile(
		`(?i)\b(?:confidence|keyakinan)\b\s*[:=]?\s*"?\s*([0-9]+(?:\.[0-9]+)?)\s*%?`)
)

// NormalizeLabel maps Indonesian and common English label variants onto the
// canonical SAFE / SUSPICIOUS / PHISHING set. Unknown labels pass through
// uppercased.
func NormalizeLabel(label string) string {
	t := strings.ToUpper(strings.TrimSpace(label))
	switch t {
	case "AMAN", "LEGIT", "LEGITIMATE", "SAFE":
		return "SAFE"
	case "MENCURIGAKAN", "SUSPICIOUS":
		return "SUSPICIOUS"
	case "PENIPUAN", "PHISHING", "SCAM", "BERBAHAYA", "MALICIOUS":
		return "PHISHING"
	}
	return t
}

// NormalizeStance maps a raw stance label onto PHISHING / SUSPICIOUS /
// LEGITIMATE, defaulting to SUSPICIOUS for anything unrecognized.
func NormalizeStance(raw string) string {
	switch NormalizeLabel(raw) {
	case "SAFE":
		return StanceLegitimate
	case "SUSPICIOUS":
		return StanceSuspicious
	case "PHISHING":
		return StancePhishing
	}
	return StanceSuspicious
}

// NormalizeConfidence coerces a confidence value into [0,1], accepting
// percent-style values (85 means 0.85).
func NormalizeConfidence(v float64) float64 {
	if v > 1.0 && v <= 100.0 {
		v = v / 100.0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func stripFences(text string) string {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = fenceOpenPattern.ReplaceAllString(t, "")
		t = fenceClosePattern.ReplaceAllString(t, "")
	}
	return strings.TrimSpace(t)
}

// labelPayload builds a minimal object for bare-label outputs, carrying both
// classification and stance so either consumer can use it.
func labelPayload(label string) map[string]any {
	raw := strings.ToUpper(strings.TrimSpace(label))
	out := make(map[string]any)

	if raw == StanceLegitimate {
		out["stance"] = StanceLegitimate
		out["classification"] = "SAFE"
		return out
	}

	switch norm := NormalizeLabel(label); norm {
	case "SAFE":
		out["classification"] = norm
		out["stance"] = StanceLegitimate
	case "SUSPICIOUS", "PHISHING":
		out["classification"] = norm
		out["stance"] = norm
	}
	return out
}

// ParseJSONObject best-effort extracts a JSON object from an LLM response.
// Returns an empty map when nothing usable can be recovered.
func ParseJSONObject(raw string) map[string]any {
	text := stripFences(raw)
	if text == "" {
		return map[string]any{}
	}

	// Small/fast models sometimes answer with just the label.
	firstLine := text
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		firstLine = text[:idx]
	}
	if m := bareLabelPattern.FindStringSubmatch(strings.TrimSpace(firstLine)); m != nil {
		if payload := labelPayload(m[1]); len(payload) > 0 {
			return payload
		}
	}

	candidates := []string{text}
	first := strings.IndexByte(text, '{')
	last := strings.LastIndexByte(text, '}')
	if first != -1 && last > first {
		candidates = append(candidates, text[first:last+1])
	}

	for _, candidate := range candidates {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
			return parsed
		}

		repaired := trailingCommaPattern.ReplaceAllString(candidate, "$1")
		if err := json.Unmarshal([]byte(repaired), &parsed); err == nil {
			return parsed
		}
	}

	// Key-value extraction for models that ignore "JSON only" instructions,
	// e.g. "classification: PHISHING, confidence: 0.82".
	out := make(map[string]any)
	if m := classificationKVPattern.FindStringSubmatch(text); m != nil {
		out["classification"] = NormalizeLabel(m[1])
	}
	if m := stanceKVPattern.FindStringSubmatch(text); m != nil {
		payload := labelPayload(m[1])
		if stance, ok := payload["stance"]; ok {
			out["stance"] = stance
		}
		if cls, ok := payload["classification"]; ok {
			if _, exists := out["classification"]; !exists {
				out["classification"] = cls
			}
		}
	}
	if m := confidenceKVPattern.FindStringSubmatch(text); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			out["confidence"] = NormalizeConfidence(v)
		}
	}
	return out
}

// Field accessors over the loosely-typed parsed object.

func objString(obj map[string]any, key string) (string, bool) {
	v, ok := obj[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func objFloat(obj map[string]any, key string) (float64, bool) {
	switch v := obj[key].(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "%"), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func objStrings(obj map[string]any, key string) []string {
	v, ok := obj[key]
	if !ok {
		return nil
	}
	switch list := v.(type) {
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{list}
	}
	return nil
}
