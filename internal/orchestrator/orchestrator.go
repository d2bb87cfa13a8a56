// Package orchestrator runs the scan pipeline for a single request:
// fan out the four analyzers, wait for all of them, hand the
// sub-results (nil for a branch that produced none) to the scorer,
// call the explainer,
// and assemble the final ScanResult. Generalizes the run-loop idiom
// used elsewhere in this codebase for a single polling cycle into a
// per-request fan-out/join.
package orchestrator

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/txscan-engine/internal/analyzers"
	"github.com/rawblock/txscan-engine/internal/explainer"
	"github.com/rawblock/txscan-engine/internal/ml"
	"github.com/rawblock/txscan-engine/internal/model"
	"github.com/rawblock/txscan-engine/internal/parser"
	"github.com/rawblock/txscan-engine/internal/patterns"
	"github.com/rawblock/txscan-engine/internal/scorer"
)

// EventSink is the outbound contract for scan-event emission (spec
// §6). Fire-and-forget: the orchestrator enqueues but never waits on
// delivery.
type EventSink interface {
	Emit(event model.ScanEvent)
}

// ProgramCache and MLCache are the narrow cache-read/write contracts
// the orchestrator needs from internal/cache, declared locally so
// this package never imports internal/cache.
type ProgramCache interface {
	GetProgramAnalysis(ctx context.Context, key string) (model.ProgramAnalysis, bool)
	SetProgramAnalysis(ctx context.Context, key string, analysis model.ProgramAnalysis)
}

type MLCache interface {
	GetMLPrediction(ctx context.Context, fingerprint string) (model.MLAnalysis, bool)
	SetMLPrediction(ctx context.Context, fingerprint string, analysis model.MLAnalysis)
}

// ScanObserver receives a completed ScanResult for metrics reporting.
// Satisfied structurally by *telemetry.Metrics; declared locally so
// this package never imports internal/telemetry.
type ScanObserver interface {
	ObserveScan(result model.ScanResult)
}

// Deadlines holds the pipeline-wide budget and one budget per analyzer
// branch (spec §4.6). Each branch runs under a context with its own
// timeout; the pattern engine and the cache lookups observe it, while
// the program, ML and account analyzers run to completion. Scan waits
// for all four branches before scoring, so an expired deadline neither
// cuts a branch short nor marks it failed.
type Deadlines struct {
	Pipeline time.Duration
	Program  time.Duration
	Pattern  time.Duration
	ML       time.Duration
	Account  time.Duration
}

// Orchestrator wires together the parser, the four analyzers, the
// scorer, and the explainer into the full scan pipeline.
type Orchestrator struct {
	programAnalyzer *analyzers.ProgramAnalyzer
	accountAnalyzer *analyzers.AccountAnalyzer
	patternEngine   *patterns.Engine
	detector        *ml.Detector
	explainerClient *explainer.Client
	eventSink       EventSink
	programCache    ProgramCache
	mlCache         MLCache
	observer        ScanObserver
	deadlines       Deadlines
}

// Option configures optional collaborators at construction time.
type Option func(*Orchestrator)

// WithCaches wires the program-analysis and ML-prediction caches.
func WithCaches(programCache ProgramCache, mlCache MLCache) Option {
	return func(o *Orchestrator) {
		o.programCache = programCache
		o.mlCache = mlCache
	}
}

// WithObserver wires a metrics observer notified after every scan.
func WithObserver(observer ScanObserver) Option {
	return func(o *Orchestrator) { o.observer = observer }
}

// New builds an Orchestrator from its required collaborators.
func New(
	programAnalyzer *analyzers.ProgramAnalyzer,
	accountAnalyzer *analyzers.AccountAnalyzer,
	patternEngine *patterns.Engine,
	detector *ml.Detector,
	explainerClient *explainer.Client,
	eventSink EventSink,
	deadlines Deadlines,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		programAnalyzer: programAnalyzer,
		accountAnalyzer: accountAnalyzer,
		patternEngine:   patternEngine,
		detector:        detector,
		explainerClient: explainerClient,
		eventSink:       eventSink,
		deadlines:       deadlines,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Scan runs the full pipeline for one already-parsed transaction and
// produces a ScanResult (spec §4.6).
func (o *Orchestrator) Scan(ctx context.Context, scanID string, tx *model.ParsedTransaction, userWallet string, scanType model.ScanType) model.ScanResult {
	start := time.Now()

	pipelineCtx, cancel := context.WithTimeout(ctx, o.deadlines.Pipeline)
	defer cancel()

	fp := parser.Fingerprint(tx.Programs, tx.InstructionCount(), tx.AccountCount(), tx.SignaturesRequired)

	var (
		programResult *model.ProgramAnalysis
		patternResult *model.PatternAnalysis
		mlResult      *model.MLAnalysis
		accountResult *model.AccountAnalysis
	)
	componentTimes := make(map[model.AnalyzerName]float64)

	g, gctx := errgroup.WithContext(pipelineCtx)

	g.Go(func() error {
		defer timeComponent(componentTimes, model.AnalyzerProgram, time.Now())
		ctx, cancel := context.WithTimeout(gctx, o.deadlines.Program)
		defer cancel()
		programResult = o.runProgramAnalysis(ctx, tx)
		return nil
	})

	g.Go(func() error {
		defer timeComponent(componentTimes, model.AnalyzerPattern, time.Now())
		ctx, cancel := context.WithTimeout(gctx, o.deadlines.Pattern)
		defer cancel()
		patternResult = o.runPatternAnalysis(ctx, tx)
		return nil
	})

	g.Go(func() error {
		defer timeComponent(componentTimes, model.AnalyzerML, time.Now())
		ctx, cancel := context.WithTimeout(gctx, o.deadlines.ML)
		defer cancel()
		mlResult = o.runMLAnalysis(ctx, tx, fp)
		return nil
	})

	g.Go(func() error {
		defer timeComponent(componentTimes, model.AnalyzerAccount, time.Now())
		ctx, cancel := context.WithTimeout(gctx, o.deadlines.Account)
		defer cancel()
		accountResult = o.runAccountAnalysis(ctx, tx, userWallet)
		return nil
	})

	_ = g.Wait()

	details := model.ScanDetails{
		Program: programResult,
		Pattern: patternResult,
		ML:      mlResult,
		Account: accountResult,
	}
	completion := scorer.Completion{
		Program: programResult != nil,
		Pattern: patternResult != nil,
		ML:      mlResult != nil,
		Account: accountResult != nil,
	}
	var completed, failed []model.AnalyzerName
	for name, ok := range map[model.AnalyzerName]bool{
		model.AnalyzerProgram: completion.Program,
		model.AnalyzerPattern: completion.Pattern,
		model.AnalyzerML:      completion.ML,
		model.AnalyzerAccount: completion.Account,
	} {
		if ok {
			completed = append(completed, name)
		} else {
			failed = append(failed, name)
		}
	}

	verdict := scorer.ScoreWithFallback(details, completion)

	explainResult := o.explainerClient.Explain(ctx, verdict.RiskLevel, verdict.RiskScore, details, userWallet)

	result := model.ScanResult{
		ScanID:              scanID,
		RiskLevel:           verdict.RiskLevel,
		RiskScore:           verdict.RiskScore,
		Confidence:          verdict.Confidence,
		Explanation:         explainResult.Explanation,
		Recommendation:      explainResult.Recommendation,
		ComponentTimes:      componentTimes,
		CompletedComponents: completed,
		FailedComponents:    failed,
		Details:             details,
		ScanTimeMs:          float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:           time.Now(),
	}

	if o.eventSink != nil {
		go o.eventSink.Emit(buildEvent(result, tx, userWallet, scanType))
	}
	if o.observer != nil {
		o.observer.ObserveScan(result)
	}

	return result
}

func (o *Orchestrator) runProgramAnalysis(ctx context.Context, tx *model.ParsedTransaction) *model.ProgramAnalysis {
	key := programCacheKey(tx.Programs)
	if o.programCache != nil {
		if cached, ok := o.programCache.GetProgramAnalysis(ctx, key); ok {
			return &cached
		}
	}
	analysis := o.programAnalyzer.Analyze(tx)
	if o.programCache != nil {
		go o.programCache.SetProgramAnalysis(context.Background(), key, analysis)
	}
	return &analysis
}

func (o *Orchestrator) runPatternAnalysis(ctx context.Context, tx *model.ParsedTransaction) *model.PatternAnalysis {
	matches, stats, err := o.patternEngine.Match(ctx, tx)
	if err != nil {
		log.Printf("orchestrator: pattern engine error: %v", err)
		return nil
	}
	return &model.PatternAnalysis{Matches: matches, FromCache: stats.FromCache, PartialFail: stats.PartialFail}
}

func (o *Orchestrator) runMLAnalysis(ctx context.Context, tx *model.ParsedTransaction, fingerprint string) *model.MLAnalysis {
	if o.mlCache != nil {
		if cached, ok := o.mlCache.GetMLPrediction(ctx, fingerprint); ok {
			return &cached
		}
	}
	verifiedCount := 0
	if o.programAnalyzer != nil {
		verifiedCount = o.programAnalyzer.Analyze(tx).Verified
	}
	features := ml.ExtractFeatures(tx, verifiedCount)
	analysis := o.detector.Predict(features)
	if o.mlCache != nil {
		go o.mlCache.SetMLPrediction(context.Background(), fingerprint, analysis)
	}
	return &analysis
}

func (o *Orchestrator) runAccountAnalysis(ctx context.Context, tx *model.ParsedTransaction, userWallet string) *model.AccountAnalysis {
	analysis := o.accountAnalyzer.Analyze(tx, userWallet)
	return &analysis
}

func timeComponent(times map[model.AnalyzerName]float64, name model.AnalyzerName, start time.Time) {
	times[name] = float64(time.Since(start).Microseconds()) / 1000.0
}

func buildEvent(result model.ScanResult, tx *model.ParsedTransaction, userWallet string, scanType model.ScanType) model.ScanEvent {
	patternCount := 0
	if result.Details.Pattern != nil {
		patternCount = len(result.Details.Pattern.Matches)
	}
	return model.ScanEvent{
		ScanID:              result.ScanID,
		UserWallet:          userWallet,
		RiskLevel:           result.RiskLevel,
		RiskScore:           result.RiskScore,
		Confidence:          result.Confidence,
		ScanTimeMs:          result.ScanTimeMs,
		ProgramCount:        tx.ProgramCount(),
		InstructionCount:    tx.InstructionCount(),
		PatternMatchesCount: patternCount,
		ScanType:            scanType,
		Timestamp:           result.Timestamp,
	}
}

func programCacheKey(programs []string) string {
	sorted := append([]string(nil), programs...)
	return parser.Fingerprint(sorted, 0, 0, 0)
}
