package models

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ContentPart is one element of a multi-modal user message.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// ChatMessage content is either a plain string or a list of ContentPart.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content any      `json:"content"`
}

// ChatCompletionRequest is the body of a chat completions call.
type ChatCompletionRequest struct {
	Messages []ChatMessage `json:"messages"`
	Seed     *int64        `json:"seed,omitempty"`
}

type ResponseMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
	Refusal string   `json:"refusal,omitempty"`
}

type ChatChoice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the raw response of a chat completions call.
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   *Usage       `json:"usage,omitempty"`
}
