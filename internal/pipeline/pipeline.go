package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"situationcord.app/relay/common/id"
	"situationcord.app/relay/common/logger"
	"situationcord.app/relay/internal/alert"
	"situationcord.app/relay/internal/model"
	"situationcord.app/relay/internal/store"
)

// ErrMessageNotFound means the analysis step ran before ingestion stored the
// message. The run fails so the queue retries it.
var ErrMessageNotFound = errors.New("message not found")

// ErrAnalysisNotFound means an alert delivery refers to an analysis row that
// no longer exists for the message.
var ErrAnalysisNotFound = errors.New("analysis not found")

// AlertPendingError reports a run whose analysis is stored but whose alert
// could not be delivered. Only the alert needs retrying.
type AlertPendingError struct {
	AnalysisID int64
	Err        error
}

func (e *AlertPendingError) Error() string {
	return fmt.Sprintf("alert pending for analysis %d: %v", e.AnalysisID, e.Err)
}

func (e *AlertPendingError) Unwrap() error {
	return e.Err
}

const (
	DefaultSeverityThreshold = 70
	DefaultMaxThreadContext  = 20
)

// Config is fixed at construction. Zero values take the defaults.
type Config struct {
	// AIModel is recorded on analyses whose result carries no model version.
	AIModel string
	// AlertEndpoint receives alerts when Deps.Dispatcher is nil.
	AlertEndpoint     string
	AlertTimeout      time.Duration
	SeverityThreshold float64
	MaxThreadContext  int
}

func (c Config) withDefaults() Config {
	if c.SeverityThreshold <= 0 {
		c.SeverityThreshold = DefaultSeverityThreshold
	}
	if c.MaxThreadContext <= 0 {
		c.MaxThreadContext = DefaultMaxThreadContext
	}
	return c
}

type Analyzer interface {
	Analyze(ctx context.Context, msg model.IncomingMessage, thread []model.ThreadContextEntry) model.AnalysisResult
}

type QAResolver interface {
	Resolve(ctx context.Context, msg model.IncomingMessage, thread []model.ThreadContextEntry) model.QAReference
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult) error
}

// Deps are the collaborators of a Pipeline. Runs may be nil to skip run
// bookkeeping. A nil Dispatcher posts to Config.AlertEndpoint, and
// AlertMirrors receive a best-effort copy of every delivered alert.
type Deps struct {
	Analyzer     Analyzer
	QAResolver   QAResolver
	Dispatcher   Dispatcher
	AlertMirrors []alert.Dispatcher
	Messages     store.MessageStore
	Analyses     store.AnalysisStore
	IgnoredUsers store.IgnoredUserStore
	Runs         store.PipelineRunStore
}

// Pipeline enriches one message at a time:
// context, analyze, resolve, store, ignore check, alert.
// Steps run forward only and nothing is rolled back. Retries belong to the
// queue: a failed run starts again at the first step, while a run that only
// failed to alert is retried through DeliverAlert.
type Pipeline struct {
	cfg        Config
	analyzer   Analyzer
	resolver   QAResolver
	dispatcher Dispatcher
	fetcher    *ContextFetcher
	gate       *IgnoreGate
	messages   store.MessageStore
	analyses   store.AnalysisStore
	runs       store.PipelineRunStore
}

func New(cfg Config, deps Deps) *Pipeline {
	cfg = cfg.withDefaults()
	return &Pipeline{
		cfg:        cfg,
		analyzer:   deps.Analyzer,
		resolver:   deps.QAResolver,
		dispatcher: buildDispatcher(cfg, deps),
		fetcher:    NewContextFetcher(deps.Messages, cfg.MaxThreadContext),
		gate:       NewIgnoreGate(deps.IgnoredUsers),
		messages:   deps.Messages,
		analyses:   deps.Analyses,
		runs:       deps.Runs,
	}
}

func buildDispatcher(cfg Config, deps Deps) Dispatcher {
	var primary alert.Dispatcher = deps.Dispatcher
	if deps.Dispatcher == nil {
		primary = alert.NewHTTPDispatcher(cfg.AlertEndpoint, cfg.AlertTimeout)
	}
	if len(deps.AlertMirrors) == 0 {
		return primary
	}
	return alert.NewMultiDispatcher(primary, deps.AlertMirrors...)
}

func (p *Pipeline) Config() Config {
	return p.cfg
}

// ShouldAlert reports whether analysis is severe enough to alert on:
// a score at or above threshold, or a high or critical level.
func ShouldAlert(analysis model.AnalysisResult, threshold float64) bool {
	return analysis.SeverityScore >= threshold ||
		analysis.SeverityLevel == model.SeverityLevelHigh ||
		analysis.SeverityLevel == model.SeverityLevelCritical
}

// Run enriches msg. attempt is the delivery attempt of the queue task and is
// only used for bookkeeping.
func (p *Pipeline) Run(ctx context.Context, msg model.IncomingMessage, attempt int) (*model.EnrichmentResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		ThreadID:  msg.ThreadID,
		AuthorID:  logger.Ptr(msg.Author.ID),
		Component: "relay.pipeline",
	})

	sc := logger.StartSpan(ctx, "pipeline.run")
	defer sc.End()
	ctx = sc.Context()

	runID := p.startRun(ctx, msg.ID, attempt)
	if runID != 0 {
		ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: &runID})
	}

	result, err := p.run(ctx, msg)
	if err != nil {
		sc.RecordError(err)
		var pending *AlertPendingError
		if errors.As(err, &pending) {
			p.finishRun(ctx, runID, model.RunStatusAlertPending, err)
			return result, err
		}
		p.finishRun(ctx, runID, model.RunStatusFailed, err)
		return nil, err
	}

	p.finishRun(ctx, runID, model.RunStatusSucceeded, nil)
	sc.SetAttributes(
		attribute.Int64("analysis_id", result.AnalysisID),
		attribute.Bool("alerted", result.Alerted),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, msg model.IncomingMessage) (*model.EnrichmentResult, error) {
	thread := p.FetchContext(ctx, msg)

	analysis := p.Analyze(ctx, msg, thread)

	answered := p.ResolveQA(ctx, msg, analysis, thread)

	analysisID, err := p.StoreAnalysis(ctx, msg.ID, analysis, answered)
	if err != nil {
		return nil, err
	}

	result := &model.EnrichmentResult{
		MessageID:         msg.ID,
		Analysis:          analysis,
		AnsweredMessageID: answered,
		AnalysisID:        analysisID,
		ProcessedAt:       time.Now().UTC(),
	}

	alerted, err := p.settleAlert(ctx, msg, analysis)
	if err != nil {
		slog.WarnContext(ctx, "analysis stored but alert failed",
			"analysis_id", analysisID,
			"error", err)
		return result, &AlertPendingError{AnalysisID: analysisID, Err: err}
	}
	result.Alerted = alerted

	slog.InfoContext(ctx, "message enriched",
		"analysis_id", analysisID,
		"answered", answered != nil,
		"alerted", alerted)

	return result, nil
}

// settleAlert runs the ignore check and dispatch for an alert-worthy analysis and
// reports whether an alert was delivered.
func (p *Pipeline) settleAlert(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult) (bool, error) {
	if !ShouldAlert(analysis, p.cfg.SeverityThreshold) {
		return false, nil
	}
	if p.IsIgnored(ctx, msg.Author.ID) {
		slog.InfoContext(ctx, "alert suppressed for ignored author",
			"severity_score", analysis.SeverityScore,
			"severity_level", analysis.SeverityLevel)
		return false, nil
	}
	if err := p.Dispatch(ctx, msg, analysis); err != nil {
		return false, err
	}
	return true, nil
}

// DeliverAlert retries only the alert of an already stored analysis. The
// analysis is read back from the store, so nothing is analyzed or written
// again. It reports whether an alert was sent; the ignore list and threshold
// are applied as of now.
func (p *Pipeline) DeliverAlert(ctx context.Context, msg model.IncomingMessage, analysisID int64) (bool, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: logger.Ptr(msg.ID),
		AuthorID:  logger.Ptr(msg.Author.ID),
		Component: "relay.pipeline",
	})

	sc := logger.StartSpan(ctx, "pipeline.deliver_alert")
	defer sc.End()
	ctx = sc.Context()
	sc.SetAttributes(attribute.Int64("analysis_id", analysisID))

	analysis, err := p.loadAnalysis(ctx, msg.ID, analysisID)
	if err != nil {
		sc.RecordError(err)
		return false, err
	}

	alerted, err := p.settleAlert(ctx, msg, analysis)
	if err != nil {
		sc.RecordError(err)
		return false, err
	}
	sc.SetAttributes(attribute.Bool("alerted", alerted))

	slog.InfoContext(ctx, "pending alert settled",
		"analysis_id", analysisID,
		"alerted", alerted)
	return alerted, nil
}

func (p *Pipeline) loadAnalysis(ctx context.Context, messageID string, analysisID int64) (model.AnalysisResult, error) {
	key, err := p.messages.GetKeyByExternalID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.AnalysisResult{}, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		return model.AnalysisResult{}, fmt.Errorf("resolving message key: %w", err)
	}

	rows, err := p.analyses.ListByMessage(ctx, key)
	if err != nil {
		return model.AnalysisResult{}, fmt.Errorf("loading analyses: %w", err)
	}
	for _, row := range rows {
		if row.ID == analysisID {
			return row.ToResult(), nil
		}
	}
	return model.AnalysisResult{}, fmt.Errorf("%w: %d", ErrAnalysisNotFound, analysisID)
}

// FetchContext returns the prior messages of the thread, oldest first, or an
// empty slice for messages outside a thread.
func (p *Pipeline) FetchContext(ctx context.Context, msg model.IncomingMessage) []model.ThreadContextEntry {
	if !msg.HasThread() {
		return []model.ThreadContextEntry{}
	}

	sc := logger.StartSpan(ctx, "pipeline.context")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "relay.pipeline.context"})

	thread := p.fetcher.Fetch(ctx, *msg.ThreadID, msg.ID)
	sc.SetAttributes(attribute.Int("context_size", len(thread)))
	return thread
}

func (p *Pipeline) Analyze(ctx context.Context, msg model.IncomingMessage, thread []model.ThreadContextEntry) model.AnalysisResult {
	sc := logger.StartSpan(ctx, "pipeline.analyze")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "relay.pipeline.analyze"})

	analysis := p.analyzer.Analyze(ctx, msg, thread)
	if analysis.ModelVersion == "" {
		analysis.ModelVersion = p.cfg.AIModel
	}
	sc.SetAttributes(
		attribute.Float64("severity_score", analysis.SeverityScore),
		attribute.String("severity_level", string(analysis.SeverityLevel)),
		attribute.Bool("is_answer", analysis.IsAnswer),
	)
	return analysis
}

// ResolveQA runs the resolver only for answers with thread context.
func (p *Pipeline) ResolveQA(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult, thread []model.ThreadContextEntry) *string {
	if !analysis.IsAnswer || len(thread) == 0 {
		return nil
	}

	sc := logger.StartSpan(ctx, "pipeline.resolve")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "relay.pipeline.resolve"})

	ref := p.resolver.Resolve(ctx, msg, thread)
	sc.SetAttributes(attribute.Bool("matched", ref.AnsweredMessageID != nil))
	return ref.AnsweredMessageID
}

// StoreAnalysis writes one new analysis row for messageID and returns its id.
func (p *Pipeline) StoreAnalysis(ctx context.Context, messageID string, analysis model.AnalysisResult, answered *string) (int64, error) {
	sc := logger.StartSpan(ctx, "pipeline.store")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "relay.pipeline.store"})

	key, err := p.messages.GetKeyByExternalID(ctx, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		} else {
			err = fmt.Errorf("resolving message key: %w", err)
		}
		sc.RecordError(err)
		return 0, err
	}

	row := &model.MessageAnalysis{
		ID:                id.New(),
		MessageKey:        key,
		Sentiment:         analysis.Sentiment,
		IsQuestion:        analysis.IsQuestion,
		IsAnswer:          analysis.IsAnswer,
		AnsweredMessageID: answered,
		NeedsHelp:         analysis.NeedsHelp,
		CategoryTags:      analysis.CategoryTags,
		Summary:           analysis.Summary,
		ConfidenceScore:   logger.Ptr(store.FormatDecimal(analysis.ConfidenceScore)),
		SeverityScore:     logger.Ptr(store.FormatDecimal(analysis.SeverityScore)),
		SeverityLevel:     analysis.SeverityLevel,
		SeverityReason:    logger.Ptr(analysis.SeverityReason),
		ModelVersion:      analysis.ModelVersion,
	}

	created, err := p.analyses.Create(ctx, row)
	if err != nil {
		err = fmt.Errorf("storing analysis: %w", err)
		sc.RecordError(err)
		return 0, err
	}

	slog.DebugContext(ctx, "analysis stored",
		"analysis_id", created.ID,
		"severity_score", created.SeverityScore)
	return created.ID, nil
}

func (p *Pipeline) IsIgnored(ctx context.Context, authorID string) bool {
	sc := logger.StartSpan(ctx, "pipeline.ignore_check")
	defer sc.End()

	ignored := p.gate.IsIgnored(sc.Context(), authorID)
	sc.SetAttributes(attribute.Bool("ignored", ignored))
	return ignored
}

// Dispatch failures are returned so the queue retries the alert.
func (p *Pipeline) Dispatch(ctx context.Context, msg model.IncomingMessage, analysis model.AnalysisResult) error {
	sc := logger.StartSpan(ctx, "pipeline.alert")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "relay.pipeline.alert"})

	if err := p.dispatcher.Dispatch(ctx, msg, analysis); err != nil {
		err = fmt.Errorf("dispatching alert: %w", err)
		sc.RecordError(err)
		return err
	}

	slog.InfoContext(ctx, "alert dispatched",
		"severity_score", analysis.SeverityScore,
		"severity_level", analysis.SeverityLevel)
	return nil
}

func (p *Pipeline) startRun(ctx context.Context, messageID string, attempt int) int64 {
	if p.runs == nil {
		return 0
	}
	if attempt <= 0 {
		attempt = 1
	}

	run, err := p.runs.Create(ctx, &model.PipelineRun{
		ID:        id.New(),
		MessageID: messageID,
		Attempt:   int32(attempt),
		Status:    model.RunStatusRunning,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to record pipeline run", "error", err)
		return 0
	}
	return run.ID
}

func (p *Pipeline) finishRun(ctx context.Context, runID int64, status model.RunStatus, runErr error) {
	if p.runs == nil || runID == 0 {
		return
	}

	var errMsg *string
	if runErr != nil {
		errMsg = logger.Ptr(logger.Truncate(runErr.Error(), 1000))
	}
	if err := p.runs.Finish(ctx, runID, status, errMsg); err != nil {
		slog.WarnContext(ctx, "failed to finish pipeline run", "error", err, "status", status)
	}
}
