package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	LLM    LLMConfig
	Triage TriageConfig
	Debate DebateConfig
	Server ServerConfig
}

type LLMConfig struct {
	// Provider selection: "gemini" via the googlegenai plugin
	Provider string
	ApiKey   string

	// LLM models for different stages (both required)
	LLMModelFast  string // fast model for single-shot classification
	LLMModelSmart string // smart model for debate agents

	MaxRPM     int // global request throttle
	MaxRetries int
}

type TriageConfig struct {
	LowRiskThreshold        int // LOW_RISK / HIGH_RISK boundary
	ShortenerWhitelistBonus int // applied per shortener resolving to a trusted domain

	VirusTotalAPIKey string // reputation layer disabled when empty
	ExpandTimeout    time.Duration
	MaxRedirects     int
	LandingScan      bool // fetch and scan landing pages of unknown URLs

	CustomWhitelist []string
	CustomBlacklist []string
}

type DebateConfig struct {
	Mode               string // "three" or "five"
	MaxRounds          int
	EarlyTermination   bool
	MaxTotalTime       time.Duration // 0 disables the budget
	MajorityConfidence float64       // mean-confidence bar for a majority consensus; 0 keeps the roster default
}

type ServerConfig struct {
	Port string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

// Truthy values accepted for boolean flags.
var truthy = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true, "on": true,
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return truthy[value]
}

func splitDomains(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, d := range strings.Split(value, ",") {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	llmModelFast := os.Getenv("LLM_MODEL_FAST")
	llmModelSmart := os.Getenv("LLM_MODEL_SMART")

	// Validate required fields
	if llmModelFast == "" {
		return nil, errors.New("LLM_MODEL_FAST environment variable is required but not set")
	}
	if llmModelSmart == "" {
		return nil, errors.New("LLM_MODEL_SMART environment variable is required but not set")
	}

	maxRPM, err := getEnvInt("LLM_MAX_RPM", 60)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}

	lowRiskThreshold, err := getEnvInt("TRIAGE_LOW_RISK_THRESHOLD", 30)
	if err != nil {
		return nil, err
	}
	shortenerBonus, err := getEnvInt("SHORTENER_WHITELIST_BONUS", -10)
	if err != nil {
		return nil, err
	}
	expandTimeoutMS, err := getEnvInt("EXPAND_TIMEOUT_MS", 10000)
	if err != nil {
		return nil, err
	}
	maxRedirects, err := getEnvInt("MAX_REDIRECTS", 10)
	if err != nil {
		return nil, err
	}

	madMode := getEnvOrDefault("MAD_MODE", "three")
	if madMode != "three" && madMode != "five" {
		return nil, fmt.Errorf("MAD_MODE must be \"three\" or \"five\", got %q", madMode)
	}
	maxRounds, err := getEnvInt("MAD_MAX_ROUNDS", 2)
	if err != nil {
		return nil, err
	}
	if maxRounds < 1 {
		return nil, errors.New("MAD_MAX_ROUNDS must be at least 1")
	}
	maxTotalTimeMS, err := getEnvInt("MAD_MAX_TOTAL_TIME_MS", 0)
	if err != nil {
		return nil, err
	}
	// 0 means "not set": each roster keeps its own bar (0.75 three-agent,
	// 0.70 five-agent)
	majorityConfidence, err := getEnvFloat("CONSENSUS_MAJORITY_CONFIDENCE", 0)
	if err != nil {
		return nil, err
	}
	if majorityConfidence < 0 || majorityConfidence > 1 {
		return nil, errors.New("CONSENSUS_MAJORITY_CONFIDENCE must be in [0,1]")
	}

	return &Config{
		LLM: LLMConfig{
			Provider:      getEnvOrDefault("LLM_PROVIDER", "gemini"),
			ApiKey:        os.Getenv("API_KEY"),
			LLMModelFast:  llmModelFast,
			LLMModelSmart: llmModelSmart,
			MaxRPM:        maxRPM,
			MaxRetries:    maxRetries,
		},
		Triage: TriageConfig{
			LowRiskThreshold:        lowRiskThreshold,
			ShortenerWhitelistBonus: shortenerBonus,
			VirusTotalAPIKey:        os.Getenv("VIRUSTOTAL_API_KEY"),
			ExpandTimeout:           time.Duration(expandTimeoutMS) * time.Millisecond,
			MaxRedirects:            maxRedirects,
			LandingScan:             getEnvBool("LANDING_SCAN", false),
			CustomWhitelist:         splitDomains(os.Getenv("CUSTOM_WHITELIST")),
			CustomBlacklist:         splitDomains(os.Getenv("CUSTOM_BLACKLIST")),
		},
		Debate: DebateConfig{
			Mode:               madMode,
			MaxRounds:          maxRounds,
			EarlyTermination:   getEnvBool("MAD_EARLY_TERMINATION", true),
			MaxTotalTime:       time.Duration(maxTotalTimeMS) * time.Millisecond,
			MajorityConfidence: majorityConfidence,
		},
		Server: ServerConfig{
			Port: getEnvOrDefault("PORT", "8089"),
		},
	}, nil
}
