// Package prompt composes the request prompt from a template and named input files.
package prompt

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/morganross/FilePromptForge/internal/domain"
)

// DefaultTemplate asks the model to combine both files and cite its web sources.
const DefaultTemplate = "You are File Prompt Forge (FPF). Combine the following two files into a single, helpful response.\n" +
	"Crucially, you MUST use web search to find up-to-date information for any questions or topics that require current knowledge.\n" +
	"Cite all web search results using markdown links named using the domain of the source. Example: [nytimes.com](https://nytimes.com/some-page).\n\n" +
	"# File A ({{file_a_name}})\n{{file_a}}\n\n" +
	"# File B ({{file_b_name}})\n{{file_b}}\n\n" +
	"# Task\nProvide the best possible answer using both files and the web search results."

// Input is one named input file. Name is the placeholder stem, e.g. "file_a".
type Input struct {
	Name string
	Path string
}

// Pair returns the conventional file_a/file_b inputs.
func Pair(fileA, fileB string) []Input {
	return []Input{
		{Name: "file_a", Path: fileA},
		{Name: "file_b", Path: fileB},
	}
}

// Compose reads every input and substitutes {{name}} with the file content and
// {{name_name}} with its base name. Substitution is verbatim and single-pass, so
// placeholders inside file contents are left alone.
func Compose(template string, inputs []Input) (string, error) {
	if template == "" {
		template = DefaultTemplate
	}

	pairs := make([]string, 0, len(inputs)*4)
	for _, in := range inputs {
		data, err := os.ReadFile(in.Path)
		if err != nil {
			return "", domain.ErrInputNotFound(in.Path, err)
		}
		pairs = append(pairs,
			"{{"+in.Name+"_name}}", filepath.Base(in.Path),
			"{{"+in.Name+"}}", string(data),
		)
	}

	return strings.NewReplacer(pairs...).Replace(template), nil
}

// LoadTemplate returns the contents of path when set, otherwise inline.
func LoadTemplate(inline, path string) (string, error) {
	if path == "" {
		return inline, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
