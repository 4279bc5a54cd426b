package openrouter

// ChatRequest is an OpenRouter chat completion request body.
type ChatRequest struct {
	Model            string            `json:"model"`
	Messages         []Message         `json:"messages"`
	Plugins          []Plugin          `json:"plugins,omitempty"`
	WebSearchOptions *WebSearchOptions `json:"web_search_options,omitempty"`
	Reasoning        *Reasoning        `json:"reasoning,omitempty"`
	MaxTokens        *int              `json:"max_tokens,omitempty"`
	Temperature      *float64          `json:"temperature,omitempty"`
	TopP             *float64          `json:"top_p,omitempty"`
	ResponseFormat   *ResponseFormat   `json:"response_format,omitempty"`
}

// Message is a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Plugin enables an OpenRouter plugin such as web search.
type Plugin struct {
	ID           string `json:"id"`
	MaxResults   int    `json:"max_results,omitempty"`
	SearchPrompt string `json:"search_prompt,omitempty"`
}

// WebSearchOptions is forwarded to providers with native search.
type WebSearchOptions struct {
	SearchContextSize string `json:"search_context_size"`
}

// Reasoning is OpenRouter's unified reasoning parameter. Effort and MaxTokens
// are mutually exclusive.
type Reasoning struct {
	Effort    string `json:"effort,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// ResponseFormat specifies the format of the response.
type ResponseFormat struct {
	Type string `json:"type"`
}
