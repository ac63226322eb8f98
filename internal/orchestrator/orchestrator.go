// Package orchestrator drives a translation job over a set of chunks, either
// one at a time or through a bounded worker pool, and reports which chunks
// succeeded, failed, or were never started.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/valpere/novtran/internal"
	"github.com/valpere/novtran/internal/completion"
	"github.com/valpere/novtran/internal/config"
	"github.com/valpere/novtran/internal/credentials"
	"github.com/valpere/novtran/internal/glossary"
	"github.com/valpere/novtran/internal/logging"
	"github.com/valpere/novtran/internal/prompt"
)

const (
	DefaultTranslateTemperature = 0.1
	DefaultExtractTemperature   = 0.01
	DefaultMinOutputChars       = 10
)

var (
	// ErrCredentialsExhausted aborts a job once every credential is revoked.
	ErrCredentialsExhausted = errors.New("all credentials have been revoked")

	// ErrIncomplete means at least one targeted chunk did not succeed.
	ErrIncomplete = errors.New("translation incomplete")
)

type Completer interface {
	Complete(ctx context.Context, req completion.Request) (string, error)
}

type CredentialPool interface {
	Acquire(ctx context.Context) (credentials.Credential, error)
	Report(c credentials.Credential, kind completion.Kind)
	ReportSuccess(c credentials.Credential)
}

type Ledger interface {
	IsCompleted(index int) bool
	MarkCompleted(ctx context.Context, index int) error
}

type Workspace interface {
	ReadChunk(index int) (string, error)
	WriteOutput(index int, text string) (string, error)
}

type GlossaryMerger interface {
	MergeSuggestions(g *glossary.Glossary, raw string) (glossary.Counts, error)
}

type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, a internal.Attempt) error
}

// LanguageChecker flags output that is not in the target language.
type LanguageChecker interface {
	Check(text string) error
}

// Deps are the collaborators of a job. Store and Validator are optional.
type Deps struct {
	Completer     Completer
	Pool          CredentialPool
	Glossary      *glossary.Glossary
	GlossaryStore GlossaryMerger
	Ledger        Ledger
	Workspace     Workspace
	Templates     *prompt.Templates
	Store         AttemptRecorder
	Validator     LanguageChecker
	Logger        *zap.Logger
}

type Config struct {
	APITimeout           time.Duration
	JobTimeoutFactor     float64
	DefaultWorkers       int
	MaxWorkers           int
	TranslateTemperature float64
	ExtractTemperature   float64
	MinOutputChars       int
}

// ConfigFrom maps the application config onto the coordinator's settings.
func ConfigFrom(c *config.Config) Config {
	return Config{
		APITimeout:       c.APITimeout,
		JobTimeoutFactor: c.JobTimeoutFactor,
		DefaultWorkers:   c.Workers.Default,
		MaxWorkers:       c.Workers.Max,
		MinOutputChars:   c.MinResponseChars,
	}
}

// Job selects what to translate. A zero Deadline is derived from the
// number of pending chunks; a negative one disables the ceiling.
type Job struct {
	DocumentID string
	Targets    []int
	Force      bool
	Parallel   bool
	Workers    int
	Deadline   time.Duration
}

// Outcome reports a finished job. Pending lists chunks never started
// because the deadline passed or the job was aborted.
type Outcome struct {
	RunID         string
	Processed     []int
	Succeeded     []int
	Skipped       []int
	Failed        []int
	Pending       []int
	TimedOut      bool
	GlossaryAdded glossary.Counts
	Duration      time.Duration
}

// Err returns ErrIncomplete unless every targeted chunk succeeded or was
// already done.
func (o *Outcome) Err() error {
	if len(o.Failed) > 0 || len(o.Pending) > 0 {
		return fmt.Errorf("%w: %d failed, %d not started", ErrIncomplete, len(o.Failed), len(o.Pending))
	}
	return nil
}

type Orchestrator struct {
	deps   Deps
	config Config
	logger *zap.Logger
	now    func() time.Time
}

func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.TranslateTemperature == 0 {
		cfg.TranslateTemperature = DefaultTranslateTemperature
	}
	if cfg.ExtractTemperature == 0 {
		cfg.ExtractTemperature = DefaultExtractTemperature
	}
	if cfg.MinOutputChars <= 0 {
		cfg.MinOutputChars = DefaultMinOutputChars
	}
	if cfg.JobTimeoutFactor <= 0 {
		cfg.JobTimeoutFactor = 1.5
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 10
	}
	if cfg.DefaultWorkers <= 0 {
		cfg.DefaultWorkers = 3
	}
	return &Orchestrator{
		deps:   deps,
		config: cfg,
		logger: logging.OrNop(deps.Logger),
		now:    time.Now,
	}
}

// chunkResult is what one pass of the chunk pipeline produced. fatal is set
// when the whole job must stop.
type chunkResult struct {
	index int
	ok    bool
	added glossary.Counts
	err   error
	fatal error
}

// Run translates job.Targets. Chunks already completed are skipped unless
// job.Force is set. The returned error is non-nil only when the job was
// aborted (credentials exhausted or ctx canceled); per-chunk failures are
// reported in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Outcome, error) {
	start := o.now()
	out := &Outcome{RunID: uuid.NewString()}

	var todo []int
	for _, i := range job.Targets {
		if !job.Force && o.deps.Ledger.IsCompleted(i) {
			out.Skipped = append(out.Skipped, i)
			continue
		}
		todo = append(todo, i)
	}
	sort.Ints(todo)

	logger := o.logger.With(zap.String("document", job.DocumentID), zap.String("run", out.RunID))
	if len(todo) == 0 {
		logger.Info("nothing to translate", zap.Int("skipped", len(out.Skipped)))
		out.Duration = o.now().Sub(start)
		return out, nil
	}

	deadline := job.Deadline
	if deadline == 0 {
		deadline = time.Duration(float64(len(todo)) * float64(o.config.APITimeout) * o.config.JobTimeoutFactor)
	}
	dispatchCtx, cancel := ctx, context.CancelFunc(func() {})
	if deadline > 0 {
		dispatchCtx, cancel = context.WithTimeout(ctx, deadline)
	}
	defer cancel()

	workers := 1
	if job.Parallel {
		workers = o.workerCount(job.Workers, len(todo))
	}
	logger.Info("starting translation job",
		zap.Int("chunks", len(todo)),
		zap.Int("skipped", len(out.Skipped)),
		zap.Int("workers", workers),
		zap.Duration("deadline", deadline))

	fatal := o.dispatch(ctx, dispatchCtx, job.DocumentID, out, todo, workers, logger)

	for _, list := range [][]int{out.Processed, out.Succeeded, out.Failed, out.Pending, out.Skipped} {
		sort.Ints(list)
	}
	out.TimedOut = len(out.Pending) > 0 && errors.Is(dispatchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	out.Duration = o.now().Sub(start)

	logger.Info("translation job finished",
		zap.Int("processed", len(out.Processed)),
		zap.Int("succeeded", len(out.Succeeded)),
		zap.Int("failed", len(out.Failed)),
		zap.Int("pending", len(out.Pending)),
		zap.Bool("timed_out", out.TimedOut),
		zap.Int("glossary_added", out.GlossaryAdded.Total()),
		zap.Duration("duration", out.Duration))

	if fatal != nil {
		return out, fatal
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

func (o *Orchestrator) workerCount(requested, chunks int) int {
	n := requested
	if n <= 0 {
		n = o.config.DefaultWorkers
	}
	if n > o.config.MaxWorkers {
		n = o.config.MaxWorkers
	}
	if n > chunks {
		n = chunks
	}
	if n < 1 {
		n = 1
	}
	return n
}

// dispatch feeds todo through one FIFO queue to the given number of
// workers. A worker checks dispatchCtx before starting each chunk; once it
// is done, or a fatal error was seen, the remaining chunks are drained into
// out.Pending. Calls already running use ctx and are never cut short by the
// deadline.
func (o *Orchestrator) dispatch(ctx, dispatchCtx context.Context, documentID string, out *Outcome, todo []int, workers int, logger *zap.Logger) error {
	queue := make(chan int, len(todo))
	for _, i := range todo {
		queue <- i
	}
	close(queue)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		fatal   error
		stopped bool
	)

	for w := 1; w <= workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			wlog := logger.With(zap.Int("worker", worker))

			for index := range queue {
				mu.Lock()
				halt := stopped || dispatchCtx.Err() != nil
				if halt {
					out.Pending = append(out.Pending, index)
				}
				mu.Unlock()
				if halt {
					continue
				}

				r := o.processChunk(ctx, documentID, out.RunID, index, wlog)

				mu.Lock()
				out.Processed = append(out.Processed, index)
				if r.ok {
					out.Succeeded = append(out.Succeeded, index)
				} else {
					out.Failed = append(out.Failed, index)
				}
				out.GlossaryAdded.Add(r.added)
				if r.fatal != nil && fatal == nil {
					fatal = r.fatal
					stopped = true
				}
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	return fatal
}

// processChunk runs the pipeline for one chunk: translate with the current
// glossary, write the output, extract new terms into the glossary, then mark
// the chunk completed. Only a failure up to and including the output write
// or the ledger update fails the chunk.
func (o *Orchestrator) processChunk(ctx context.Context, documentID, runID string, index int, logger *zap.Logger) chunkResult {
	start := o.now()
	logger = logger.With(zap.Int("chunk", index))
	r := chunkResult{index: index}
	var cred credentials.Credential

	defer func() {
		o.recordAttempt(ctx, documentID, runID, index, cred, r, o.now().Sub(start), logger)
	}()

	source, err := o.deps.Workspace.ReadChunk(index)
	if err != nil {
		r.err = fmt.Errorf("read source: %w", err)
		logger.Error("failed to read chunk", zap.Error(err))
		return r
	}

	translated, cred, err := o.complete(ctx, completion.Request{
		Prompt:      o.deps.Templates.Translation(source, o.deps.Glossary.Format()),
		Temperature: o.config.TranslateTemperature,
		Purpose:     completion.PurposeTranslate,
		MinChars:    o.config.MinOutputChars,
	}, logger)
	if err != nil {
		r.err = fmt.Errorf("translate: %w", err)
		if errors.Is(err, ErrCredentialsExhausted) {
			r.fatal = err
		}
		logger.Error("translation failed", zap.Error(err))
		return r
	}

	if o.deps.Validator != nil {
		if verr := o.deps.Validator.Check(translated); verr != nil {
			logger.Warn("translation language check failed", zap.Error(verr))
		}
	}

	path, err := o.deps.Workspace.WriteOutput(index, translated)
	if err != nil {
		r.err = err
		logger.Error("failed to write translation", zap.Error(err))
		return r
	}
	logger.Info("translation written", zap.String("path", path), zap.Int("chars", len([]rune(translated))))

	r.added, r.fatal = o.updateGlossary(ctx, source, translated, logger)

	if err := o.deps.Ledger.MarkCompleted(ctx, index); err != nil {
		r.err = err
		logger.Error("failed to record progress", zap.Error(err))
		return r
	}
	r.ok = true
	return r
}

// updateGlossary asks for glossary suggestions and merges them. Failures
// are logged; only exhausted credentials are returned.
func (o *Orchestrator) updateGlossary(ctx context.Context, source, translated string, logger *zap.Logger) (glossary.Counts, error) {
	raw, _, err := o.complete(ctx, completion.Request{
		Prompt:      o.deps.Templates.GlossaryUpdate(source, translated, o.deps.Glossary.Format()),
		Temperature: o.config.ExtractTemperature,
		Purpose:     completion.PurposeExtractTerms,
		MinChars:    1,
	}, logger)
	if err != nil {
		logger.Warn("glossary extraction failed", zap.Error(err))
		if errors.Is(err, ErrCredentialsExhausted) {
			return glossary.Counts{}, err
		}
		return glossary.Counts{}, nil
	}

	added, err := o.deps.GlossaryStore.MergeSuggestions(o.deps.Glossary, raw)
	if err != nil {
		logger.Warn("failed to merge glossary suggestions", zap.Error(err))
		return glossary.Counts{}, nil
	}
	if added.Total() > 0 {
		logger.Info("glossary updated",
			zap.Int("characters", added.Characters),
			zap.Int("proper_nouns", added.ProperNouns),
			zap.Int("cultural_expressions", added.CulturalExpressions))
	}
	return added, nil
}

// complete runs req with credentials from the pool. A rejected credential is
// revoked and the next one tried straight away.
func (o *Orchestrator) complete(ctx context.Context, req completion.Request, logger *zap.Logger) (string, credentials.Credential, error) {
	for {
		cred, err := o.deps.Pool.Acquire(ctx)
		if err != nil {
			if errors.Is(err, credentials.ErrNoCredentials) {
				return "", cred, ErrCredentialsExhausted
			}
			return "", cred, err
		}

		req.APIKey = cred.Key
		text, err := o.deps.Completer.Complete(ctx, req)
		if err == nil {
			o.deps.Pool.ReportSuccess(cred)
			return text, cred, nil
		}

		kind := completion.KindOf(err)
		o.deps.Pool.Report(cred, kind)
		if kind != completion.KindAuth {
			return "", cred, err
		}
		logger.Warn("credential rejected, trying next",
			zap.String("credential", cred.Masked()),
			zap.String("purpose", string(req.Purpose)))
	}
}

func (o *Orchestrator) recordAttempt(ctx context.Context, documentID, runID string, index int, cred credentials.Credential, r chunkResult, latency time.Duration, logger *zap.Logger) {
	if o.deps.Store == nil {
		return
	}
	a := internal.Attempt{
		RunID:      runID,
		DocumentID: documentID,
		ChunkIndex: index,
		Status:     internal.AttemptSucceeded,
		Latency:    latency,
		CreatedAt:  o.now(),
	}
	if cred.Key != "" {
		a.Credential = cred.Masked()
	}
	if !r.ok {
		a.Status = internal.AttemptFailed
		if r.err != nil {
			a.Error = r.err.Error()
		}
	}
	if err := o.deps.Store.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		logger.Warn("failed to record attempt", zap.Error(err))
	}
}
