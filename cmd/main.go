package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/JagaGrup/Sentinel/internal/config"
	"github.com/JagaGrup/Sentinel/internal/debate"
	"github.com/JagaGrup/Sentinel/internal/limits"
	"github.com/JagaGrup/Sentinel/internal/llm"
	"github.com/JagaGrup/Sentinel/internal/models"
	"github.com/JagaGrup/Sentinel/internal/pipeline"
	"github.com/JagaGrup/Sentinel/internal/storage"
	"github.com/JagaGrup/Sentinel/internal/triage"
	"github.com/JagaGrup/Sentinel/internal/urlcheck"
	"github.com/JagaGrup/Sentinel/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	g := genkit.Init(
		ctx,
		genkit.WithPlugins(
			&googlegenai.GoogleAI{
				APIKey: cfg.LLM.ApiKey,
			},
		),
		genkit.WithDefaultModel(cfg.LLM.LLMModelFast),
	)

	llm.Configure(cfg.LLM.MaxRetries, cfg.LLM.MaxRPM)

	limiter := limits.NewPipelineLimiter(nil)

	classifyFlow := llm.DefineClassifyFlow(g, cfg.LLM.LLMModelFast, limiter)
	agentFlow := llm.DefineAgentFlow(g, cfg.LLM.LLMModelSmart)

	checker := urlcheck.NewSecurityChecker(urlcheck.CheckerOptions{
		VirusTotalAPIKey: cfg.Triage.VirusTotalAPIKey,
		ExpandTimeout:    cfg.Triage.ExpandTimeout,
		MaxRedirects:     cfg.Triage.MaxRedirects,
		LandingScan:      cfg.Triage.LandingScan,
	})

	pipelineLimits := limiter.GetLimits()
	expander := urlcheck.NewExpander(cfg.Triage.ExpandTimeout, cfg.Triage.MaxRedirects,
		pipelineLimits.CacheTTL, pipelineLimits.MaxCacheEntries)
	analyzer := triage.NewAnalyzer(triage.Options{
		LowRiskThreshold:        cfg.Triage.LowRiskThreshold,
		ShortenerWhitelistBonus: cfg.Triage.ShortenerWhitelistBonus,
		CustomWhitelist:         cfg.Triage.CustomWhitelist,
		CustomBlacklist:         cfg.Triage.CustomBlacklist,
	}, expander.Expand)

	orchestrator := debate.NewOrchestrator(debate.Options{
		Mode:               cfg.Debate.Mode,
		MaxRounds:          cfg.Debate.MaxRounds,
		EarlyTermination:   cfg.Debate.EarlyTermination,
		MaxTotalTime:       cfg.Debate.MaxTotalTime,
		MajorityConfidence: cfg.Debate.MajorityConfidence,
	}, func(ctx context.Context, req *llm.AgentRequest) (*models.AgentResponse, error) {
		return agentFlow.Run(ctx, req)
	})

	hub := websocket.NewHub()
	go hub.Run()

	store := storage.NewProfileStore(limiter)
	pipe := pipeline.New(pipeline.Options{
		Checker:  checker,
		Analyzer: analyzer,
		Classify: func(ctx context.Context, req *llm.ClassifyRequest) (*models.SingleShotVerdict, error) {
			return classifyFlow.Run(ctx, req)
		},
		Debate: func(ctx context.Context, req debate.Request) *models.DebateRecord {
			return orchestrator.Run(ctx, req)
		},
		Store:   store,
		Hub:     hub,
		Limiter: limiter,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/messages", handleAnalyze(pipe))
	mux.HandleFunc("GET /api/v1/results", handleResults(store))
	mux.HandleFunc("GET /api/v1/stats", handleStats(pipe))
	mux.HandleFunc("/ws", hub.ServeWS)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	go func() {
		log.Printf("🔵 Sentinel listening on :%s (mode=%s, fast=%s, smart=%s)",
			cfg.Server.Port, cfg.Debate.Mode, cfg.LLM.LLMModelFast, cfg.LLM.LLMModelSmart)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Shutdown error: %v", err)
	}
}

func handleAnalyze(pipe *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var sub pipeline.Submission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if sub.Message.Text == "" {
			http.Error(w, "message.text is required", http.StatusBadRequest)
			return
		}
		if sub.Message.Timestamp.IsZero() {
			sub.Message.Timestamp = time.Now()
		}

		result := pipe.Process(r.Context(), sub)
		writeJSON(w, http.StatusOK, result)
	}
}

func handleResults(store *storage.ProfileStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}
		writeJSON(w, http.StatusOK, store.RecentResults(limit))
	}
}

func handleStats(pipe *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, pipe.Stats())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}
