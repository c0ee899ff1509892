package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/JagaGrup/Sentinel/internal/debate"
	"github.com/JagaGrup/Sentinel/internal/limits"
	"github.com/JagaGrup/Sentinel/internal/llm"
	"github.com/JagaGrup/Sentinel/internal/models"
	"github.com/JagaGrup/Sentinel/internal/storage"
	"github.com/JagaGrup/Sentinel/internal/triage"
	"github.com/JagaGrup/Sentinel/internal/urlcheck"
)

// warnConfidence: a SUSPICIOUS verdict this confident gets an automatic
// warning; below it a human reviews first.
const warnConfidence = 0.60

// ClassifyFunc runs the single-shot classifier. In production this wraps the
// classify Genkit flow; tests inject a stub.
type ClassifyFunc func(ctx context.Context, req *llm.ClassifyRequest) (*models.SingleShotVerdict, error)

// DebateFunc runs the multi-agent debate stage.
type DebateFunc func(ctx context.Context, req debate.Request) *models.DebateRecord

// URLChecker is the slice of the URL security checker the pipeline needs.
type URLChecker interface {
	CheckURLs(ctx context.Context, urls []string) map[string]models.URLCheck
}

// Broadcaster pushes finished verdicts to live dashboard clients.
type Broadcaster interface {
	BroadcastVerdict(result *models.DetectionResult)
}

// Submission is one message handed to the pipeline. URLChecks carries
// verdicts for URLs the adapter already checked; the pipeline trusts them and
// only checks the remainder.
type Submission struct {
	Message   models.Message             `json:"message"`
	Sender    models.Sender              `json:"sender"`
	URLChecks map[string]models.URLCheck `json:"url_checks,omitempty"`
}

// Pipeline chains the three detection stages: rule-based triage, single-shot
// LLM classification and multi-agent debate. Each stage only runs when the
// previous one could not finalize, so cheap stages absorb the bulk of the
// traffic.
type Pipeline struct {
	checker  URLChecker
	analyzer *triage.Analyzer
	classify ClassifyFunc
	debate   DebateFunc
	store    *storage.ProfileStore
	hub      Broadcaster // may be nil
	limiter  *limits.PipelineLimiter
	stats    *Stats
}

// Options wires the pipeline's stages together. Checker and Hub are optional.
type Options struct {
	Checker  URLChecker
	Analyzer *triage.Analyzer
	Classify ClassifyFunc
	Debate   DebateFunc
	Store    *storage.ProfileStore
	Hub      Broadcaster
	Limiter  *limits.PipelineLimiter
}

func New(opts Options) *Pipeline {
	limiter := opts.Limiter
	if limiter == nil {
		limiter = limits.NewPipelineLimiter(nil)
	}
	store := opts.Store
	if store == nil {
		store = storage.NewProfileStore(limiter)
	}
	return &Pipeline{
		checker:  opts.Checker,
		analyzer: opts.Analyzer,
		classify: opts.Classify,
		debate:   opts.Debate,
		store:    store,
		hub:      opts.Hub,
		limiter:  limiter,
		stats:    NewStats(),
	}
}

// Stats exposes the pipeline counters.
func (p *Pipeline) Stats() Snapshot {
	return p.stats.Snapshot()
}

// Store exposes the profile store for read-side handlers.
func (p *Pipeline) Store() *storage.ProfileStore {
	return p.store
}

// Process runs one message through the pipeline and never fails: every stage
// degrades to a conservative verdict rather than an error.
func (p *Pipeline) Process(ctx context.Context, sub Submission) *models.DetectionResult {
	start := time.Now()

	if sub.Sender.ID == "" {
		sub.Sender.ID = sub.Message.SenderID
	}

	// The baseline is read before Observe, so the message under review never
	// influences its own anomaly checks
	baseline := p.store.BaselineFor(sub.Sender.ID)

	urls := p.limiter.CapURLs(urlcheck.ExtractURLs(sub.Message.Text))
	urlChecks := p.checkRemainingURLs(ctx, urls, sub.URLChecks)

	triageResult := p.analyzer.Analyze(ctx, sub.Message.Text, sub.Message.Timestamp, baseline, urlChecks)

	result := p.decide(ctx, sub, baseline, &triageResult, urlChecks)

	result.ID = uuid.NewString()
	result.MessageID = sub.Message.ID
	result.SenderID = sub.Sender.ID
	result.Triage = &triageResult
	result.LatencyMS = time.Since(start).Milliseconds()
	result.Timestamp = time.Now()

	// Only clean messages feed the baseline: a compromised account's phishing
	// burst must not become its "normal" behavior
	if result.Classification == models.ClassSafe {
		p.store.Observe(sub.Sender, sub.Message, len(triageResult.URLsFound) > 0)
	}
	p.store.RecordResult(result)
	p.stats.Record(result)
	if p.hub != nil && result.Action != models.ActionNone {
		p.hub.BroadcastVerdict(result)
	}

	log.Printf("🎯 Pipeline: message %s -> %s (%.0f%%, action=%s, decided_by=%s, %d tokens, %dms)",
		sub.Message.ID, result.Classification, result.Confidence*100,
		result.Action, result.DecidedBy, result.Usage.Total(), result.LatencyMS)

	return result
}

// checkRemainingURLs merges adapter-supplied URL verdicts with fresh checks
// for whatever the adapter did not cover. A URL is never checked twice.
func (p *Pipeline) checkRemainingURLs(
	ctx context.Context,
	urls []string,
	preComputed map[string]models.URLCheck,
) map[string]models.URLCheck {
	if p.checker == nil {
		return preComputed
	}

	var unchecked []string
	for _, url := range urls {
		if _, done := preComputed[url]; !done {
			unchecked = append(unchecked, url)
		}
	}
	if len(unchecked) == 0 {
		return preComputed
	}

	fetched := p.checker.CheckURLs(ctx, unchecked)
	if len(preComputed) == 0 {
		return fetched
	}

	merged := make(map[string]models.URLCheck, len(preComputed)+len(fetched))
	for url, check := range preComputed {
		merged[url] = check
	}
	for url, check := range fetched {
		merged[url] = check
	}
	return merged
}

// decide walks the stages until one of them finalizes.
func (p *Pipeline) decide(
	ctx context.Context,
	sub Submission,
	baseline models.BaselineSnapshot,
	triageResult *models.TriageResult,
	urlChecks map[string]models.URLCheck,
) *models.DetectionResult {
	// Stage 1 finalizes only the clean case: zero risk and nothing for an
	// LLM to add
	if triageResult.SkipLLM {
		return &models.DetectionResult{
			Classification: models.ClassSafe,
			Confidence:     1.0,
			Action:         models.ActionNone,
			DecidedBy:      models.StageTriage,
			Reasoning:      "Pesan hanya berisi URL dari domain terpercaya atau tidak ada indikator risiko",
		}
	}

	// Stage 2: fast single-shot classification
	verdict, err := p.classify(ctx, &llm.ClassifyRequest{
		Message:  sub.Message,
		Sender:   sub.Sender,
		Baseline: baseline,
		Triage:   triageResult,
	})
	if err != nil {
		verdict = llm.FallbackVerdict(triageResult, err)
	}

	if !verdict.Escalate {
		return &models.DetectionResult{
			Classification: verdict.Classification,
			Confidence:     verdict.Confidence,
			Action:         actionFor(verdict.Classification, verdict.Confidence),
			DecidedBy:      models.StageSingleShot,
			Reasoning:      verdict.Reasoning,
			RiskFactors:    verdict.RiskFactors,
			SingleShot:     verdict,
			Usage:          verdict.Usage,
		}
	}

	// Stage 3: multi-agent debate
	record := p.debate(ctx, debate.Request{
		Message:    sub.Message,
		Sender:     sub.Sender,
		Baseline:   baseline,
		Triage:     triageResult,
		SingleShot: verdict,
		URLChecks:  urlChecks,
	})

	usage := verdict.Usage
	usage.Add(record.Usage)

	return &models.DetectionResult{
		Classification: record.FinalVerdict,
		Confidence:     record.Confidence,
		Action:         actionFor(record.FinalVerdict, record.Confidence),
		DecidedBy:      models.StageMAD,
		Reasoning:      debateReasoning(record),
		RiskFactors:    verdict.RiskFactors,
		SingleShot:     verdict,
		Debate:         record,
		Usage:          usage,
	}
}

// actionFor maps a final classification to a moderation action.
func actionFor(classification models.Classification, confidence float64) string {
	switch classification {
	case models.ClassSafe:
		return models.ActionNone
	case models.ClassPhishing:
		return models.ActionFlagReview
	}
	if confidence >= warnConfidence {
		return models.ActionWarn
	}
	return models.ActionFlagReview
}

func debateReasoning(record *models.DebateRecord) string {
	if len(record.Rounds) == 0 {
		return "Debate produced no agent responses"
	}
	final := record.Rounds[len(record.Rounds)-1].Responses
	for _, r := range final {
		if r.Stance == stanceFor(record.FinalVerdict) && len(r.Arguments) > 0 && !r.Synthesized {
			return r.Arguments[0]
		}
	}
	for _, r := range final {
		if len(r.Arguments) > 0 && !r.Synthesized {
			return r.Arguments[0]
		}
	}
	return "Verdict reached by weighted agent voting"
}

func stanceFor(classification models.Classification) string {
	switch classification {
	case models.ClassSafe:
		return llm.StanceLegitimate
	case models.ClassPhishing:
		return llm.StancePhishing
	}
	return llm.StanceSuspicious
}
