package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/morganross/FilePromptForge/internal/provider/models"
)

// OpenAICounter counts tokens exactly for OpenAI-family models using tiktoken.
// OpenRouter slugs such as "openai/gpt-5" are accepted as well.
type OpenAICounter struct {
	matcher *models.Matcher
	// codecCache caches tokenizer codecs by encoding name
	codecCache map[tokenizer.Encoding]tokenizer.Codec
	cacheMu    sync.RWMutex
}

// NewOpenAICounter creates a new OpenAI token counter.
func NewOpenAICounter() *OpenAICounter {
	return &OpenAICounter{
		matcher:    models.NewMatcher([]string{"gpt", "o1", "o3", "o4", "chatgpt"}, nil),
		codecCache: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

// SupportsModel reports whether model is an OpenAI-family model.
func (c *OpenAICounter) SupportsModel(model string) bool {
	return c.matcher.Matches(bareModel(model))
}

// CountText counts tokens for a plain text string.
func (c *OpenAICounter) CountText(model, text string) (int, error) {
	codec, err := c.getCodec(bareModel(model))
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// getCodec returns the tokenizer codec for a model.
func (c *OpenAICounter) getCodec(model string) (tokenizer.Codec, error) {
	if codec, err := tokenizer.ForModel(mapModelName(model)); err == nil {
		return codec, nil
	}

	// Fall back to encoding based on model prefix
	encoding := modelToEncoding(model)

	c.cacheMu.RLock()
	if cached, ok := c.codecCache[encoding]; ok {
		c.cacheMu.RUnlock()
		return cached, nil
	}
	c.cacheMu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	c.cacheMu.Lock()
	c.codecCache[encoding] = codec
	c.cacheMu.Unlock()

	return codec, nil
}

// bareModel strips an "openai/" routing prefix and any ":channel" suffix.
func bareModel(model string) string {
	return strings.TrimPrefix(models.Normalize(model), "openai/")
}

// mapModelName maps a model string to tokenizer.Model.
func mapModelName(model string) tokenizer.Model {
	model = strings.ToLower(model)

	switch {
	case model == "gpt-5-mini" || strings.HasPrefix(model, "gpt-5-mini-"):
		return tokenizer.GPT5Mini
	case model == "gpt-5-nano" || strings.HasPrefix(model, "gpt-5-nano-"):
		return tokenizer.GPT5Nano
	case strings.HasPrefix(model, "gpt-5"):
		return tokenizer.GPT5
	case strings.HasPrefix(model, "gpt-4.1"):
		return tokenizer.GPT41
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o
	case strings.HasPrefix(model, "o1"):
		if strings.Contains(model, "mini") {
			return tokenizer.O1Mini
		}
		return tokenizer.O1
	case strings.HasPrefix(model, "o3"):
		if strings.Contains(model, "mini") {
			return tokenizer.O3Mini
		}
		return tokenizer.O3
	case strings.HasPrefix(model, "o4"):
		return tokenizer.O4Mini
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo
	default:
		return tokenizer.Model(model)
	}
}

// modelToEncoding maps model names to encoding names for fallback.
// Deep research and dated snapshots land here when tiktoken does not know them.
func modelToEncoding(model string) tokenizer.Encoding {
	switch {
	case strings.HasPrefix(model, "gpt-4."), strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		// gpt-5, the o-series and unknown future models
		return tokenizer.O200kBase
	}
}
