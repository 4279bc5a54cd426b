// Package extract holds the response-shape walkers shared by provider adapters
// and the canonicalizer. All functions are total over arbitrary JSON.
package extract

import (
	"strings"

	"github.com/morganross/FilePromptForge/internal/rawjson"
)

// reasoningPartTypes are content block types that carry reasoning rather than answer text.
var reasoningPartTypes = map[string]bool{
	"reasoning":      true,
	"reasoning_text": true,
	"summary_text":   true,
	"explanation":    true,
	"thinking":       true,
}

// IsReasoningPart reports whether a content block holds reasoning instead of answer text.
func IsReasoningPart(part rawjson.Node) bool {
	if typ, ok := part.String("type"); ok && reasoningPartTypes[typ] {
		return true
	}
	if thought, ok := part.Bool("thought"); ok && thought {
		return true
	}
	return false
}

// ContentText collects answer text from a content value: a plain string, a single
// part object, or a list of parts. Reasoning parts are skipped.
func ContentText(content rawjson.Node) []string {
	if s, ok := content.Text(); ok {
		return nonBlank(s)
	}
	if content.IsObject() {
		return partText(content)
	}
	var out []string
	for _, part := range content.Items() {
		if s, ok := part.Text(); ok {
			out = append(out, nonBlank(s)...)
			continue
		}
		out = append(out, partText(part)...)
	}
	return out
}

func partText(part rawjson.Node) []string {
	if !part.IsObject() || IsReasoningPart(part) {
		return nil
	}
	if s, ok := part.String("text"); ok {
		return nonBlank(s)
	}
	// Some SDK dumps nest the text one level deeper: {"text": {"value": "..."}}.
	if s, ok := part.String("text.value"); ok {
		return nonBlank(s)
	}
	return nil
}

// OutputText returns the top-level aggregated text field exposed by the Responses API.
func OutputText(raw rawjson.Node) (string, bool) {
	node := raw.Get("output_text")
	if s, ok := node.Text(); ok && strings.TrimSpace(s) != "" {
		return s, true
	}
	if parts := ContentText(node); node.IsArray() && len(parts) > 0 {
		return Join(parts), true
	}
	return "", false
}

// OutputParts collects text from the structured output list (output[] or outputs[]),
// skipping reasoning and tool-call items.
func OutputParts(raw rawjson.Node) []string {
	var out []string
	for _, key := range []string{"output", "outputs"} {
		for _, item := range raw.Get(key).Items() {
			if s, ok := item.Text(); ok {
				out = append(out, nonBlank(s)...)
				continue
			}
			if typ, ok := item.String("type"); ok && (typ == "reasoning" || strings.Contains(typ, "_call")) {
				continue
			}
			for _, ckey := range []string{"content", "contents"} {
				out = append(out, ContentText(item.Get(ckey))...)
			}
			if s, ok := item.String("text"); ok {
				out = append(out, nonBlank(s)...)
			}
		}
	}
	return out
}

// CandidateParts collects non-thought text parts from Gemini candidates.
func CandidateParts(raw rawjson.Node) []string {
	var out []string
	for _, cand := range raw.Get("candidates").Items() {
		out = append(out, ContentText(cand.Get("content.parts"))...)
	}
	return out
}

// ChatMessage returns the legacy chat-completions text of the first choice.
func ChatMessage(raw rawjson.Node) (string, bool) {
	choices, ok := raw.List("choices")
	if !ok || len(choices) == 0 {
		return "", false
	}
	first := choices[0]
	if parts := ContentText(first.Get("message.content")); len(parts) > 0 {
		return Join(parts), true
	}
	if s, ok := first.String("text"); ok && strings.TrimSpace(s) != "" {
		return s, true
	}
	return "", false
}

// Fallback renders the whole response so a caller can always see what came back.
func Fallback(raw rawjson.Node) string {
	return raw.Indent()
}

// Join trims fragments, drops blanks, and joins the rest with a blank line.
func Join(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

// Dedup removes repeated fragments, keeping the first occurrence of each.
func Dedup(parts []string) []string {
	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		key := strings.TrimSpace(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// JoinStrings collects the string elements of a list node.
func JoinStrings(list rawjson.Node, sep string) string {
	var out []string
	for _, item := range list.Items() {
		if s, ok := item.Text(); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return strings.Join(out, sep)
}

func nonBlank(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return []string{s}
}
