package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/morganross/FilePromptForge/internal/batch"
	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/grounding"
	"github.com/morganross/FilePromptForge/internal/provider"
	"github.com/morganross/FilePromptForge/internal/runner"
	"github.com/morganross/FilePromptForge/internal/storage"
)

// app holds the flag values shared by every command.
type app struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	verbose    bool
	provider   string
	model      string
	fileA      string
	fileB      string
	out        string
	jsonOut    bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "fpf",
		Short: "Run a grounded, reasoned prompt over two files",
		Long: `fpf combines file A (instructions) and file B (content) into one prompt,
sends it to a model with provider-side web search and reasoning enabled, and
writes the answer only when the response proves both happened.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          a.runRun,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default fpf.yaml)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.StringVar(&a.provider, "provider", "", "provider override: openai, google, openrouter")
	pf.StringVar(&a.model, "model", "", "model override")
	pf.StringVar(&a.fileA, "file-a", "", "instructions file (default test.file_a)")
	pf.BoolVar(&a.jsonOut, "json", false, "print the outcome as JSON")

	addRunFlags := func(cmd *cobra.Command) {
		cmd.Flags().StringVar(&a.fileB, "file-b", "", "content file (default test.file_b)")
		cmd.Flags().StringVar(&a.out, "out", "", "output path; placeholders are expanded")
	}
	addRunFlags(root)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one grounded request (default command)",
		Args:  cobra.NoArgs,
		RunE:  a.runRun,
	}
	addRunFlags(runCmd)

	root.AddCommand(runCmd, a.batchCmd(), a.historyCmd(), a.modelsCmd())
	return root
}

// outcomeJSON is the --json rendering of a run outcome.
type outcomeJSON struct {
	RunID    string                  `json:"run_id"`
	ExitCode int                     `json:"exit_code"`
	Output   string                  `json:"output,omitempty"`
	Sidecar  string                  `json:"sidecar,omitempty"`
	Log      string                  `json:"log,omitempty"`
	Result   *domain.CanonicalResult `json:"result,omitempty"`
	Error    *domain.ErrorRecord     `json:"error,omitempty"`
	Cost     *domain.Cost            `json:"cost,omitempty"`
}

func (a *app) runRun(cmd *cobra.Command, _ []string) error {
	e, err := a.setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	fileA, fileB := firstNonEmpty(a.fileA, e.cfg.Test.FileA), firstNonEmpty(a.fileB, e.cfg.Test.FileB)
	if fileA == "" || fileB == "" {
		return configError(errors.New("both --file-a and --file-b are required (or test.file_a and test.file_b)"))
	}

	r, err := e.newRunner()
	if err != nil {
		return err
	}
	out := r.Run(cmd.Context(), runner.Input{FileA: fileA, FileB: fileB, OutPath: a.out})

	if e.cfg.JSON {
		if err := writeOutcomeJSON(a.stdout, out); err != nil {
			return err
		}
	} else if out.Succeeded() {
		fmt.Fprintln(a.stdout, out.OutputPath)
	}

	if !out.Succeeded() {
		return &exitError{code: out.ExitCode(), err: failureError(out)}
	}
	return nil
}

func failureError(out *domain.RunOutcome) error {
	if out.Failure == nil {
		return errors.New("run failed")
	}
	return fmt.Errorf("%s: %s", out.Failure.Error.Type, out.Failure.Error.Message)
}

func writeOutcomeJSON(w io.Writer, out *domain.RunOutcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outcomeJSON{
		RunID:    out.RunID,
		ExitCode: out.ExitCode(),
		Output:   outputIfSucceeded(out),
		Sidecar:  out.SidecarPath,
		Log:      out.LogPath,
		Result:   out.Result,
		Error:    out.Failure,
		Cost:     out.Cost,
	})
}

func outputIfSucceeded(out *domain.RunOutcome) string {
	if out.Succeeded() {
		return out.OutputPath
	}
	return ""
}

func (a *app) batchCmd() *cobra.Command {
	var (
		pattern string
		delay   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "batch <input-dir>",
		Short: "Run file A against every file in a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			fileA := firstNonEmpty(a.fileA, e.cfg.Test.FileA)
			if fileA == "" {
				return configError(errors.New("--file-a is required (or test.file_a)"))
			}
			if !cmd.Flags().Changed("delay") {
				delay = e.cfg.Batch.Delay
			}

			r, err := e.newRunner()
			if err != nil {
				return err
			}
			p := batch.New(r, e.policy(), e.cfg.ProviderKind(), e.cfg.Model,
				batch.WithLogger(e.logger),
				batch.WithDelay(delay),
				batch.WithOutputPattern(pattern),
			)

			summary, err := p.Process(cmd.Context(), fileA, args[0])
			if err != nil {
				if summary == nil {
					return configError(err)
				}
				return err
			}

			if e.cfg.JSON {
				for _, it := range summary.Items {
					if err := writeOutcomeJSON(a.stdout, it.Outcome); err != nil {
						return err
					}
				}
			} else if err := summary.WriteText(a.stdout); err != nil {
				return err
			}

			if code := summary.ExitCode(); code != domain.ExitOK {
				return &exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pattern, "out", "", "output pattern for every file; placeholders are expanded")
	cmd.Flags().DurationVar(&delay, "delay", 0, "pause between requests (default batch.delay)")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var opts storage.ListOptions
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := a.setup(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			if e.store == nil {
				return configError(errors.New("run history needs storage.type sqlite"))
			}
			runs, err := e.store.ListRuns(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if e.cfg.JSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			return writeHistory(a.stdout, runs)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", storage.DefaultListLimit, "maximum runs to list")
	cmd.Flags().StringVar(&opts.Provider, "filter-provider", "", "only runs for this provider")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status: succeeded, failed")
	return cmd
}

func writeHistory(w io.Writer, runs []*storage.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tPROVIDER\tMODEL\tSTATUS\tDETAIL\tCOST")
	for _, r := range runs {
		detail := r.OutputPath
		if r.Status == storage.StatusFailed {
			detail = r.ErrorKind
		}
		cost := "-"
		if r.TotalCostUSD != nil {
			cost = fmt.Sprintf("$%.6f", *r.TotalCostUSD)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.ID, r.Provider, r.Model, r.Status, detail, cost)
	}
	return tw.Flush()
}

func (a *app) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models each provider accepts and can ground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			e := &env{cfg: cfg}
			policy := e.policy()

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "PROVIDER\tALLOWED\tGROUNDED")
			for _, p := range domain.Providers {
				adapter, err := provider.New(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p,
					strings.Join(adapter.AllowedModels(), ", "),
					strings.Join(groundingList(policy, p), ", "))
			}
			return tw.Flush()
		},
	}
}

func groundingList(policy *grounding.Policy, p domain.Provider) []string {
	if !policy.Enabled {
		return []string{"(grounding disabled)"}
	}
	return policy.Allowed(p)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
