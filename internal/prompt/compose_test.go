package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/morganross/FilePromptForge/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestCompose(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "question.md", "Weather today?")
	b := writeFile(t, dir, "context.txt", "(empty) {{file_a}}")

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{
			name:     "all placeholders",
			template: "A={{file_a_name}}:{{file_a}} B={{file_b_name}}:{{file_b}}",
			want:     "A=question.md:Weather today? B=context.txt:(empty) {{file_a}}",
		},
		{
			name:     "repeated placeholder",
			template: "{{file_a}}|{{file_a}}",
			want:     "Weather today?|Weather today?",
		},
		{
			name:     "no placeholders",
			template: "static",
			want:     "static",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compose(tt.template, Pair(a, b))
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Compose() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCompose_DefaultTemplate(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "alpha")
	b := writeFile(t, dir, "b.txt", "beta")

	got, err := Compose("", Pair(a, b))
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	for _, want := range []string{"# File A (a.txt)\nalpha", "# File B (b.txt)\nbeta"} {
		if !strings.Contains(got, want) {
			t.Errorf("Compose() missing %q", want)
		}
	}
}

func TestCompose_InputNotFound(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.txt", "alpha")

	_, err := Compose("{{file_a}}{{file_b}}", Pair(a, filepath.Join(dir, "missing.txt")))
	if got := domain.KindOf(err); got != domain.ErrorKindInputNotFound {
		t.Errorf("Compose() error kind = %q, want %q", got, domain.ErrorKindInputNotFound)
	}
}

func TestLoadTemplate(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tpl.txt", "from file {{file_a}}")

	got, err := LoadTemplate("inline", path)
	if err != nil || got != "from file {{file_a}}" {
		t.Errorf("LoadTemplate() = (%q, %v), want file contents", got, err)
	}
	got, err = LoadTemplate("inline", "")
	if err != nil || got != "inline" {
		t.Errorf("LoadTemplate() = (%q, %v), want inline", got, err)
	}
	if _, err := LoadTemplate("inline", path+".missing"); err == nil {
		t.Error("LoadTemplate() error = nil, want error for missing file")
	}
}
