// Package runner executes one grounded run: it resolves the credential, composes
// the prompt, sends a single request and writes the output only when the response
// proves both web search and reasoning.
package runner

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/morganross/FilePromptForge/internal/canonical"
	"github.com/morganross/FilePromptForge/internal/config"
	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/pricing"
	"github.com/morganross/FilePromptForge/internal/prompt"
	"github.com/morganross/FilePromptForge/internal/provider"
	"github.com/morganross/FilePromptForge/internal/secrets"
	"github.com/morganross/FilePromptForge/internal/storage"
	"github.com/morganross/FilePromptForge/internal/telemetry"
	"github.com/morganross/FilePromptForge/internal/tokens"
	"github.com/morganross/FilePromptForge/internal/transport"
	"github.com/morganross/FilePromptForge/internal/verify"
)

// Stage names a step of a run. Failures record the stage they happened in.
type Stage string

const (
	StageCheckingGrounding    Stage = "CheckingGrounding"
	StageResolvingCredentials Stage = "ResolvingCredentials"
	StageComposingPrompt      Stage = "ComposingPrompt"
	StageBuildingPayload      Stage = "BuildingPayload"
	StageAwaitingResponse     Stage = "AwaitingResponse"
	StageVerifying            Stage = "Verifying"
	StageExtractingReasoning  Stage = "ExtractingReasoning"
	StageWritingOutput        Stage = "WritingOutput"
	StageDone                 Stage = "Done"
	StageFailed               Stage = "Failed"
)

// SecretSource resolves provider API keys.
type SecretSource interface {
	Lookup(key string) (string, error)
	Path() string
}

// Input names the files of one run.
type Input struct {
	FileA string
	FileB string

	// OutPath overrides the configured output pattern. Placeholders are still expanded.
	OutPath string

	// Ungrounded sends a plain completion and skips the web search and reasoning
	// gates. Used when the grounding policy allows a fallback.
	Ungrounded bool
	// GroundingDetails are copied into the result's tool details.
	GroundingDetails map[string]any
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithHTTPClient sets the HTTP client used for the provider request.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runner) {
		r.httpClient = c
	}
}

// WithStore records every outcome in the run ledger.
func WithStore(s storage.RunStore) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithSecrets overrides the secrets file named in the config.
func WithSecrets(s SecretSource) Option {
	return func(r *Runner) {
		r.secrets = s
	}
}

// WithPricing sets the pricing index used for cost.
func WithPricing(x *pricing.Index) Option {
	return func(r *Runner) {
		r.pricing = x
	}
}

// WithIDGenerator sets the run id source.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		r.newID = fn
	}
}

// Runner executes runs for one configuration. It is safe to reuse for sequential runs.
type Runner struct {
	cfg        *config.Config
	logger     *slog.Logger
	now        func() time.Time
	httpClient *http.Client
	client     *transport.Client
	store      storage.RunStore
	secrets    SecretSource
	pricing    *pricing.Index
	tokens     *tokens.Registry
	newID      func() string
}

// New creates a runner. cfg must have passed Validate.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:     cfg,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		secrets: secrets.NewFile(cfg.SecretsFile),
		pricing: pricing.NewIndex(nil),
		tokens:  tokens.NewRegistry(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	clientOpts := []transport.ClientOption{transport.WithTimeout(cfg.RequestTimeout)}
	if r.httpClient != nil {
		clientOpts = append(clientOpts, transport.WithHTTPClient(r.httpClient))
	}
	r.client = transport.NewClient(clientOpts...)

	return r
}

// run carries the state of one execution.
type run struct {
	*Runner
	id       string
	kind     domain.Provider
	model    string
	in       Input
	started  time.Time
	outPath  string
	url      string
	stage    Stage
	logger   *slog.Logger
	span     trace.Span
	outcome  *domain.RunOutcome
	method   domain.Method
	response *transport.Response
}

// Run executes one run and returns its outcome. Failures are reported in the
// outcome, never as a panic or a partial output file.
func (r *Runner) Run(ctx context.Context, in Input) *domain.RunOutcome {
	ctx, st := r.start(ctx, in)
	defer st.span.End()

	if err := st.execute(ctx); err != nil {
		st.fail(err)
	} else {
		st.enter(StageDone)
		st.span.SetStatus(codes.Ok, "")
	}
	return st.finish(ctx)
}

// Refuse records a run that was rejected before any request was built, such as
// a model the grounding policy cannot ground. The error sidecar is written and
// the outcome is recorded like any other failure.
func (r *Runner) Refuse(ctx context.Context, in Input, cause *domain.RunError) *domain.RunOutcome {
	in.Ungrounded = true
	ctx, st := r.start(ctx, in)
	defer st.span.End()

	st.enter(StageCheckingGrounding)
	st.fail(cause)
	return st.finish(ctx)
}

func (r *Runner) start(ctx context.Context, in Input) (context.Context, *run) {
	kind := r.cfg.ProviderKind()
	st := &run{
		Runner:  r,
		id:      r.newID(),
		kind:    kind,
		model:   r.cfg.Model,
		in:      in,
		started: r.now(),
		method:  domain.MethodProviderTool,
	}
	if in.Ungrounded {
		st.method = domain.MethodNone
	}
	st.logger = r.logger.With(
		slog.String("run_id", st.id),
		slog.String("provider", string(kind)),
		slog.String("model", st.model),
	)
	st.outPath = r.OutputPath(in)
	st.outcome = &domain.RunOutcome{
		RunID:      st.id,
		Provider:   kind,
		Model:      st.model,
		OutputPath: st.outPath,
		StartedAt:  formatTime(st.started),
	}

	ctx, st.span = telemetry.Tracer().Start(ctx, "fpf.run", trace.WithAttributes(
		attribute.String("fpf.run_id", st.id),
		attribute.String("fpf.provider", string(kind)),
		attribute.String("fpf.model", st.model),
		attribute.Bool("fpf.ungrounded", in.Ungrounded),
	))
	return ctx, st
}

func (st *run) finish(ctx context.Context) *domain.RunOutcome {
	st.outcome.FinishedAt = formatTime(st.now())
	st.record(ctx)
	return st.outcome
}

func (st *run) enter(stage Stage) {
	st.stage = stage
	st.logger.Debug("run stage", slog.String("stage", string(stage)))
	st.span.AddEvent(string(stage))
}

func (st *run) execute(ctx context.Context) error {
	adapter, err := provider.New(st.kind)
	if err != nil {
		return domain.ErrUnsupportedModel(st.kind, st.model).WithCause(err)
	}

	st.enter(StageResolvingCredentials)
	apiKey, err := st.resolveCredential()
	if err != nil {
		return err
	}

	st.enter(StageComposingPrompt)
	template, err := prompt.LoadTemplate(st.cfg.PromptTemplate, st.cfg.PromptTemplateFile)
	if err != nil {
		return domain.ErrInputNotFound(st.cfg.PromptTemplateFile, err)
	}
	text, err := prompt.Compose(template, prompt.Pair(st.in.FileA, st.in.FileB))
	if err != nil {
		return err
	}

	st.enter(StageBuildingPayload)
	spec := st.cfg.RequestSpec(text)
	var payload *domain.ProviderPayload
	if st.in.Ungrounded {
		payload, err = adapter.BuildPlainPayload(spec)
	} else {
		payload, err = adapter.BuildPayload(spec)
	}
	if err != nil {
		return err
	}

	st.enter(StageAwaitingResponse)
	st.url = provider.Endpoint(st.cfg.ProviderURL(st.kind, provider.DefaultURLs[st.kind]), payload)
	header := http.Header{}
	adapter.Authorize(header, apiKey)
	for k, v := range payload.Headers {
		header.Set(k, v)
	}

	st.logger.Info("sending request", slog.String("url", st.url), slog.String("wire_model", payload.Model))
	resp, postErr := st.client.PostJSON(ctx, st.url, payload.Body, header)
	st.response = resp
	if resp != nil {
		st.span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}

	a := st.analyze(adapter, text, resp)
	st.writeRunLog(payload, a, postErr)
	if postErr != nil {
		return postErr
	}

	if !st.in.Ungrounded {
		st.enter(StageVerifying)
		if !a.webSearch {
			return domain.ErrNoWebSearchEvidence(st.kind, st.model)
		}
		st.logger.Debug("web search verified", slog.String("rule", string(a.rule)))

		st.enter(StageExtractingReasoning)
		if !a.hasReasoning {
			return domain.ErrNoReasoning(st.kind, st.model)
		}
	}

	st.enter(StageWritingOutput)
	return st.writeOutputs(a)
}

func (st *run) resolveCredential() (string, error) {
	key := st.kind.CredentialKey()
	apiKey, err := st.secrets.Lookup(key)
	if err != nil {
		re := domain.ErrMissingCredential(key, st.secrets.Path())
		if !errors.Is(err, secrets.ErrNotFound) {
			re = re.WithCause(err)
		}
		return "", re
	}
	return apiKey, nil
}

// analysis is everything derived from the response before the gates run.
type analysis struct {
	text         string
	reasoning    string
	hasReasoning bool
	webSearch    bool
	rule         verify.Rule
	usage        *domain.Usage
	cost         *domain.Cost
}

func (st *run) analyze(adapter provider.Adapter, promptText string, resp *transport.Response) analysis {
	var a analysis
	if resp == nil || !resp.JSON.Exists() {
		return a
	}
	raw := resp.JSON

	a.text = adapter.ParseResponse(raw)
	a.reasoning, a.hasReasoning = adapter.ExtractReasoning(raw)
	a.webSearch, a.rule = st.verifier().Check(raw)

	usage := st.tokens.Resolve(raw, st.model, promptText, a.text)
	cost := st.pricing.Cost(st.kind, st.model, usage)
	a.usage = &usage
	a.cost = &cost
	st.outcome.Usage = a.usage
	st.outcome.Cost = a.cost
	return a
}

func (st *run) verifier() *verify.Verifier {
	vc := st.cfg.VerificationFor(st.kind)
	var opts []verify.Option
	if vc.StringFallback != nil {
		opts = append(opts, verify.WithStringFallback(*vc.StringFallback))
	}
	if len(vc.CitationMarkers) > 0 {
		opts = append(opts, verify.WithCitationMarkers(vc.CitationMarkers...))
	}
	return verify.New(opts...)
}

func (st *run) writeOutputs(a analysis) error {
	if err := writeFile(st.outPath, []byte(a.text)); err != nil {
		return domain.ErrOutputWrite(st.outPath, err)
	}

	opts := []canonical.Option{
		canonical.WithClock(st.now),
		canonical.WithToolDetail("run_id", st.id),
		canonical.WithToolDetail("status_code", st.response.StatusCode),
	}
	if a.hasReasoning {
		opts = append(opts, canonical.WithReasoning(a.reasoning))
	}
	for k, v := range st.in.GroundingDetails {
		opts = append(opts, canonical.WithToolDetail(k, v))
	}
	result := canonical.Canonicalize(st.response.JSON, string(st.kind), st.model, opts...)
	if st.in.Ungrounded {
		result.Method = domain.MethodNone
	}

	sidecar := successSidecar{
		CanonicalResult:   result,
		RunID:             st.id,
		VerifiedWebSearch: a.webSearch,
		VerificationRule:  string(a.rule),
		Usage:             a.usage,
		Cost:              a.cost,
	}
	path := SidecarPath(st.outPath)
	if err := writeJSON(path, sidecar); err != nil {
		// An output without its sidecar is not a trusted result
		_ = os.Remove(st.outPath)
		return domain.ErrOutputWrite(path, err)
	}

	st.outcome.Result = result
	st.outcome.SidecarPath = path
	st.logger.Info("run succeeded",
		slog.String("output", st.outPath),
		slog.String("method", string(result.Method)),
		slog.Int("sources", len(result.Sources)),
	)
	return nil
}

func (st *run) fail(err error) {
	var re *domain.RunError
	if !errors.As(err, &re) {
		re = domain.ErrTransport("unexpected failure", err)
	}

	failedAt := st.stage
	st.enter(StageFailed)

	st.outcome.Failure = &domain.ErrorRecord{
		Error:     domain.ErrorInfo{Type: re.Kind, Message: re.Detail()},
		Provider:  string(st.kind),
		Model:     st.model,
		Method:    st.method,
		Timestamp: formatTime(st.now()),
		RunID:     st.id,
		Stage:     string(failedAt),
	}
	st.outcome.Result = nil

	st.span.RecordError(err)
	st.span.SetStatus(codes.Error, string(re.Kind))
	st.logger.Error("run failed",
		slog.String("kind", string(re.Kind)),
		slog.String("stage", string(failedAt)),
		slog.String("error", err.Error()),
	)

	// A rejected run leaves no answer behind, including one from an earlier run
	if err := os.Remove(st.outPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		st.logger.Debug("failed to remove previous output", slog.String("path", st.outPath), slog.String("error", err.Error()))
	}

	path := SidecarPath(st.outPath)
	if werr := writeJSON(path, st.outcome.Failure); werr != nil {
		st.logger.Error("failed to write error sidecar", slog.String("path", path), slog.String("error", werr.Error()))
		return
	}
	st.outcome.SidecarPath = path
}

func (st *run) record(ctx context.Context) {
	if st.store == nil {
		return
	}
	if err := st.store.SaveRun(ctx, storage.RecordFromOutcome(st.outcome)); err != nil {
		st.logger.Warn("failed to record run", slog.String("error", err.Error()))
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
