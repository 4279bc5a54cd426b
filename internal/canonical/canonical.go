// Package canonical normalizes provider responses of any shape into a CanonicalResult.
package canonical

import (
	"strings"
	"time"

	"github.com/morganross/FilePromptForge/internal/domain"
	"github.com/morganross/FilePromptForge/internal/provider/extract"
	"github.com/morganross/FilePromptForge/internal/rawjson"
)

// ExcerptLimit caps the raw response excerpt kept in tool details.
const ExcerptLimit = 12000

// Option configures one canonicalization.
type Option func(*settings)

type settings struct {
	now         func() time.Time
	timestamp   string
	reasoning   *string
	toolDetails map[string]any
}

// WithClock sets the clock used to stamp the result.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithTimestamp supplies the timestamp instead of stamping one.
func WithTimestamp(ts string) Option {
	return func(s *settings) {
		s.timestamp = ts
	}
}

// WithReasoning attaches an extracted reasoning trace.
func WithReasoning(reasoning string) Option {
	return func(s *settings) {
		s.reasoning = &reasoning
	}
}

// WithToolDetail adds a diagnostic key to tool details.
func WithToolDetail(key string, value any) Option {
	return func(s *settings) {
		s.toolDetails[key] = value
	}
}

// Canonicalize converts raw into a CanonicalResult. It aggregates every text
// fragment it recognizes, de-duplicated in discovery order, and sets the method
// to provider-tool only when at least one source was recovered.
func Canonicalize(raw rawjson.Node, provider, model string, opts ...Option) *domain.CanonicalResult {
	s := &settings{
		now:         time.Now,
		toolDetails: make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}

	sources := Sources(raw)
	if sources == nil {
		sources = []domain.Source{}
	}
	method := domain.MethodNoTool
	if len(sources) > 0 {
		method = domain.MethodProviderTool
	}

	ts := s.timestamp
	if ts == "" {
		ts = s.now().UTC().Format(time.RFC3339Nano)
	}

	if excerpt := raw.Raw(); excerpt != "" {
		if len(excerpt) > ExcerptLimit {
			excerpt = excerpt[:ExcerptLimit]
		}
		s.toolDetails["raw_response_excerpt"] = excerpt
	}

	return &domain.CanonicalResult{
		Text:        Text(raw),
		Provider:    provider,
		Model:       model,
		Method:      method,
		Sources:     sources,
		Reasoning:   s.reasoning,
		ToolDetails: s.toolDetails,
		Timestamp:   ts,
	}
}

// Text aggregates every recognized answer fragment across all known shapes.
func Text(raw rawjson.Node) string {
	var parts []string

	if s, ok := raw.String("output_text"); ok {
		parts = append(parts, s)
	} else {
		parts = append(parts, extract.ContentText(raw.Get("output_text"))...)
	}
	parts = append(parts, extract.OutputParts(raw)...)
	parts = append(parts, extract.ContentText(raw.Get("content"))...)
	for _, choice := range raw.Get("choices").Items() {
		parts = append(parts, extract.ContentText(choice.Get("message.content"))...)
		if s, ok := choice.String("text"); ok {
			parts = append(parts, s)
		}
	}
	parts = append(parts, extract.CandidateParts(raw)...)

	return strings.Join(extract.Dedup(parts), "\n\n")
}

// Sources recovers citation entries from every known location, de-duplicated by url and title.
func Sources(raw rawjson.Node) []domain.Source {
	c := &collector{seen: make(map[string]bool)}

	// Perplexity-style top-level citations: plain URLs or objects.
	for _, item := range raw.Get("citations").Items() {
		if url, ok := item.Text(); ok {
			c.add(domain.Source{URL: url})
			continue
		}
		c.addNode(item)
	}

	for _, key := range []string{"tool_calls", "tools"} {
		for _, call := range raw.Get(key).Items() {
			c.addNode(call)
			for _, field := range []string{"output", "results", "sources"} {
				out := call.Get(field)
				c.addNode(out)
				for _, r := range out.Items() {
					c.addNode(r)
				}
				for _, r := range out.Get("results").Items() {
					c.addNode(r)
				}
			}
		}
	}

	for _, item := range raw.Get("output").Items() {
		for _, src := range item.Get("action.sources").Items() {
			c.addNode(src)
		}
		for _, block := range item.Get("content").Items() {
			for _, ann := range block.Get("annotations").Items() {
				c.addNode(ann)
			}
		}
	}

	for _, choice := range raw.Get("choices").Items() {
		for _, ann := range choice.Get("message.annotations").Items() {
			if inner, ok := ann.Object("url_citation"); ok {
				c.addNode(inner)
				continue
			}
			c.addNode(ann)
		}
	}

	for _, cand := range raw.Get("candidates").Items() {
		for _, chunk := range cand.Get("groundingMetadata.groundingChunks").Items() {
			c.addNode(chunk.Get("web"))
		}
		for _, key := range []string{"citationMetadata.citationSources", "citationMetadata.citations"} {
			for _, cit := range cand.Get(key).Items() {
				c.addNode(cit)
			}
		}
	}

	return c.sources
}

type collector struct {
	sources []domain.Source
	seen    map[string]bool
}

// addNode reads url/link/uri, title/name and snippet/summary/excerpt/content from an object.
func (c *collector) addNode(n rawjson.Node) {
	if !n.IsObject() {
		return
	}
	src := domain.Source{
		URL:     first(n, "url", "link", "uri"),
		Title:   first(n, "title", "name"),
		Snippet: first(n, "snippet", "summary", "excerpt", "content"),
	}
	if src.URL == "" {
		return
	}
	c.add(src)
}

func (c *collector) add(src domain.Source) {
	src.URL = strings.TrimSpace(src.URL)
	if src.URL == "" {
		return
	}
	key := src.URL + "\x00" + src.Title
	if c.seen[key] {
		return
	}
	c.seen[key] = true
	c.sources = append(c.sources, src)
}

func first(n rawjson.Node, keys ...string) string {
	for _, k := range keys {
		if s, ok := n.String(k); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}
