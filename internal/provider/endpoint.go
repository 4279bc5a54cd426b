package provider

import (
	"net/url"
	"strings"

	"github.com/morganross/FilePromptForge/internal/domain"
)

// DefaultURLs are the production endpoints per provider.
var DefaultURLs = map[domain.Provider]string{
	domain.ProviderOpenAI:     "https://api.openai.com/v1/responses",
	domain.ProviderGoogle:     "https://generativelanguage.googleapis.com/v1beta/models/{model}:generateContent",
	domain.ProviderOpenRouter: "https://openrouter.ai/api/v1/chat/completions",
}

func expandModel(urlTemplate, model string) string {
	return strings.ReplaceAll(urlTemplate, "{model}", url.PathEscape(model))
}
