package openai

// ResponsesRequest is a Responses API request body.
type ResponsesRequest struct {
	Model           string         `json:"model"`
	Input           []InputMessage `json:"input"`
	Tools           []Tool         `json:"tools,omitempty"`
	ToolChoice      string         `json:"tool_choice,omitempty"`
	Reasoning       *Reasoning     `json:"reasoning,omitempty"`
	MaxOutputTokens *int           `json:"max_output_tokens,omitempty"`
	Temperature     *float64       `json:"temperature,omitempty"`
	TopP            *float64       `json:"top_p,omitempty"`
	Text            *TextConfig    `json:"text,omitempty"`
}

// InputMessage is one input item of a Responses request.
type InputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool is a hosted tool declaration.
type Tool struct {
	Type              string        `json:"type"`
	SearchContextSize string        `json:"search_context_size,omitempty"`
	UserLocation      *UserLocation `json:"user_location,omitempty"`
}

// UserLocation is the approximate location hint of the web search tool.
type UserLocation struct {
	Type     string `json:"type"`
	Country  string `json:"country,omitempty"`
	City     string `json:"city,omitempty"`
	Region   string `json:"region,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Reasoning configures reasoning effort and summaries.
type Reasoning struct {
	Effort  string `json:"effort,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// TextConfig configures the output text format.
type TextConfig struct {
	Format TextFormat `json:"format"`
}

// TextFormat names an output format such as "json_object".
type TextFormat struct {
	Type string `json:"type"`
}
