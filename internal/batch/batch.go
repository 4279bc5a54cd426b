// Package batch runs file A against every file in a directory, one request at a
// time, applying the grounding policy to each file.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/grounding"
	"github.com/morganross/FilePromptForge/internal/runner"
)

// Runner executes or refuses a single run.
type Runner interface {
	Run(ctx context.Context, in runner.Input) *domain.RunOutcome
	Refuse(ctx context.Context, in runner.Input, cause *domain.RunError) *domain.RunOutcome
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithDelay sets the pause between two requests. Zero or less disables it.
func WithDelay(d time.Duration) Option {
	return func(p *Processor) {
		p.delay = d
	}
}

// WithOutputPattern overrides the configured output pattern for every file.
func WithOutputPattern(pattern string) Option {
	return func(p *Processor) {
		p.outPattern = pattern
	}
}

// Processor runs a batch sequentially.
type Processor struct {
	runner     Runner
	policy     *grounding.Policy
	provider   domain.Provider
	model      string
	delay      time.Duration
	outPattern string
	logger     *slog.Logger
}

// New creates a processor for one provider and model.
func New(r Runner, policy *grounding.Policy, provider domain.Provider, model string, opts ...Option) *Processor {
	p := &Processor{
		runner:   r,
		policy:   policy,
		provider: provider,
		model:    model,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Item is the result for one input file.
type Item struct {
	Input    string
	Grounded bool
	Outcome  *domain.RunOutcome
}

// Summary collects the per-file results of a batch.
type Summary struct {
	Items     []Item
	Succeeded int
	Failed    int
}

// ExitCode is the worst exit code observed across the batch.
func (s *Summary) ExitCode() int {
	worst := domain.ExitOK
	for _, it := range s.Items {
		if code := it.Outcome.ExitCode(); code > worst {
			worst = code
		}
	}
	return worst
}

// WriteText prints one line per file followed by the totals.
func (s *Summary) WriteText(w io.Writer) error {
	for _, it := range s.Items {
		status := "ok"
		detail := it.Outcome.OutputPath
		if !it.Outcome.Succeeded() {
			status = "failed"
			if f := it.Outcome.Failure; f != nil {
				detail = fmt.Sprintf("%s: %s", f.Error.Type, f.Error.Message)
			}
		}
		mode := "grounded"
		if !it.Grounded {
			mode = "ungrounded"
		}
		if _, err := fmt.Fprintf(w, "%-6s %-10s %s -> %s\n", status, mode, filepath.Base(it.Input), detail); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "%d succeeded, %d failed\n", s.Succeeded, s.Failed)
	return err
}

// responseMarker identifies files written by earlier runs.
const responseMarker = ".fpf.response."

// ListInputs returns the regular files of dir in name order. Hidden files,
// sidecars and previous responses are skipped, as is any path in exclude.
func ListInputs(dir string, exclude ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}

	var inputs []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, runner.SidecarSuffix) || strings.Contains(name, responseMarker) {
			continue
		}
		path := filepath.Join(dir, name)
		if abs, err := filepath.Abs(path); err == nil && skip[abs] {
			continue
		}
		inputs = append(inputs, path)
	}
	return inputs, nil
}

// Process runs fileA against every input in dir. It stops early only when ctx
// is cancelled; per-file failures are reported in the summary.
func (p *Processor) Process(ctx context.Context, fileA, dir string) (*Summary, error) {
	inputs, err := ListInputs(dir, fileA)
	if err != nil {
		return nil, err
	}
	p.logger.Info("batch started", slog.String("dir", dir), slog.Int("files", len(inputs)))

	summary := &Summary{}
	for i, fileB := range inputs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if i > 0 {
			if err := p.pause(ctx); err != nil {
				return summary, err
			}
		}

		item := p.processOne(ctx, fileA, fileB)
		summary.Items = append(summary.Items, item)
		if item.Outcome.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	p.logger.Info("batch finished",
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
	)
	return summary, nil
}

// pause waits the configured delay, counted from the end of the previous run.
func (p *Processor) pause(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Every(p.delay), 1)
	limiter.Allow()
	return limiter.Wait(ctx)
}

func (p *Processor) processOne(ctx context.Context, fileA, fileB string) Item {
	in := runner.Input{FileA: fileA, FileB: fileB, OutPath: p.outPattern}
	logger := p.logger.With(slog.String("input", fileB))

	decision := p.policy.Evaluate(p.provider, p.model)
	switch {
	case decision.Ground:
		return Item{Input: fileB, Grounded: true, Outcome: p.runner.Run(ctx, in)}
	case decision.Fallback:
		logger.Warn("grounding skipped, sending ungrounded request", slog.Any("details", decision.ToolDetails))
		in.Ungrounded = true
		in.GroundingDetails = decision.ToolDetails
		return Item{Input: fileB, Outcome: p.runner.Run(ctx, in)}
	default:
		logger.Warn("grounding unavailable", slog.Any("details", decision.ToolDetails))
		in.GroundingDetails = decision.ToolDetails
		cause := domain.ErrGroundingUnavailable(p.provider, p.model)
		return Item{Input: fileB, Outcome: p.runner.Refuse(ctx, in, cause)}
	}
}
