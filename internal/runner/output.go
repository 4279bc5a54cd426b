package runner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/rawjson"
	"github.com/morganross/FilePromptForge/internal/verify"
)

// SidecarSuffix is appended to the output path for the metadata sidecar.
const SidecarSuffix = ".meta.json"

// SidecarPath returns the sidecar location for an output path.
func SidecarPath(outPath string) string {
	return outPath + SidecarSuffix
}

// SafeModelName makes a model id usable in a file name.
func SafeModelName(model string) string {
	return strings.NewReplacer("/", "_", ":", "_").Replace(model)
}

// OutputPath expands the output pattern for in. An explicit Input.OutPath wins
// over output.pattern; a relative pattern lands in output.dir or file B's directory.
func (r *Runner) OutputPath(in Input) string {
	base := filepath.Base(in.FileB)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	expand := strings.NewReplacer(
		"<file_b_stem>", stem,
		"<file_b_name>", base,
		"<model_name>", SafeModelName(r.cfg.Model),
		"<provider>", string(r.cfg.ProviderKind()),
	)

	if in.OutPath != "" {
		return expand.Replace(in.OutPath)
	}

	name := expand.Replace(r.cfg.Output.Pattern)
	if filepath.IsAbs(name) {
		return name
	}
	dir := r.cfg.Output.Dir
	if dir == "" {
		dir = filepath.Dir(in.FileB)
	}
	return filepath.Join(dir, name)
}

// successSidecar is the metadata written next to a trusted output.
type successSidecar struct {
	*domain.CanonicalResult
	RunID             string        `json:"run_id"`
	VerifiedWebSearch bool          `json:"verified_web_search"`
	VerificationRule  string        `json:"verification_rule,omitempty"`
	Usage             *domain.Usage `json:"usage,omitempty"`
	Cost              *domain.Cost  `json:"cost,omitempty"`
}

// runLog is the consolidated per-run log. It never contains the API key.
type runLog struct {
	RunID          string        `json:"run_id"`
	StartedAt      string        `json:"started_at"`
	FinishedAt     string        `json:"finished_at"`
	Provider       string        `json:"provider"`
	Model          string        `json:"model"`
	Config         runLogConfig  `json:"config"`
	Request        any           `json:"request"`
	Response       any           `json:"response"`
	WebSearch      runLogSearch  `json:"web_search"`
	Reasoning      *string       `json:"reasoning"`
	HumanText      string        `json:"human_text"`
	Usage          *domain.Usage `json:"usage"`
	Cost           *domain.Cost  `json:"cost"`
	TransportError *string       `json:"transport_error"`
}

type runLogConfig struct {
	URL            string `json:"url"`
	WireModel      string `json:"wire_model"`
	Ungrounded     bool   `json:"ungrounded"`
	RequestTimeout string `json:"request_timeout"`
	FileA          string `json:"file_a"`
	FileB          string `json:"file_b"`
	Output         string `json:"output"`
}

type runLogSearch struct {
	Verified bool           `json:"verified"`
	Rule     string         `json:"rule,omitempty"`
	Entries  []rawjson.Node `json:"entries"`
}

// writeRunLog writes the consolidated log before any gate runs. A log that
// cannot be written is reported but does not fail the run.
func (st *run) writeRunLog(payload *domain.ProviderPayload, a analysis, postErr error) {
	if st.cfg.LogsDir == "" {
		return
	}

	entry := runLog{
		RunID:      st.id,
		StartedAt:  formatTime(st.started),
		FinishedAt: formatTime(st.now()),
		Provider:   string(st.kind),
		Model:      st.model,
		Config: runLogConfig{
			URL:            st.url,
			WireModel:      payload.Model,
			Ungrounded:     st.in.Ungrounded,
			RequestTimeout: st.cfg.RequestTimeout.String(),
			FileA:          st.in.FileA,
			FileB:          st.in.FileB,
			Output:         st.outPath,
		},
		Request:   payload.Body,
		HumanText: a.text,
		Usage:     a.usage,
		Cost:      a.cost,
		WebSearch: runLogSearch{
			Verified: a.webSearch,
			Rule:     string(a.rule),
			Entries:  []rawjson.Node{},
		},
	}
	if a.hasReasoning {
		entry.Reasoning = &a.reasoning
	}
	if resp := st.response; resp != nil {
		if resp.JSON.Exists() {
			entry.Response = resp.JSON
			entry.WebSearch.Entries = append(entry.WebSearch.Entries, verify.WebSearchEntries(resp.JSON)...)
		} else {
			entry.Response = string(resp.Body)
		}
	}
	if postErr != nil {
		msg := postErr.Error()
		entry.TransportError = &msg
	}

	name := fmt.Sprintf("%s-%s.json", st.started.UTC().Format("20060102T150405"), st.id)
	path := filepath.Join(st.cfg.LogsDir, name)
	if err := writeJSON(path, entry); err != nil {
		st.logger.Warn("failed to write run log", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	st.outcome.LogPath = path
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, append(data, '\n'))
}
