package llm

import "time"

// MessageRole identifies who authored a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	Name    string      `json:"name,omitempty"`
}

// MaritalkRequest is the request body for the MariTalk inference API.
type MaritalkRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	DoSample    bool      `json:"do_sample"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Temperature *float32  `json:"temperature,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

// MaritalkResponse is the response body from the MariTalk inference API.
type MaritalkResponse struct {
	Answer string        `json:"answer"`
	Model  string        `json:"model"`
	Usage  MaritalkUsage `json:"usage"`
	Code   string        `json:"code,omitempty"`
	Detail string        `json:"detail,omitempty"`
}

// MaritalkUsage reports token consumption for a request.
type MaritalkUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the provider-neutral result of a generation call.
type Response struct {
	Text       string    // generated text
	Messages   []Message // conversation messages, when available
	TokenCount int       // tokens consumed
	ModelName  string    // model that produced the text
	FinishTime time.Time // completion timestamp
}

// RAGResponse is an answer grounded on retrieved passages.
type RAGResponse struct {
	Answer  string
	Sources []SourceReference
}

// SourceReference points at a passage the answer was grounded on.
type SourceReference struct {
	ID       string
	FileID   string
	FileName string
	Content  string
	Score    float64
	Metadata map[string]interface{}
}

// Known model names.
const (
	ModelGPT35Turbo = "gpt-3.5-turbo"
	ModelGPT4o      = "gpt-4o"
	ModelGPT4oMini  = "gpt-4o-mini"
	ModelSabia3     = "sabia-3"
	ModelSabiazinho = "sabiazinho-3"
)
