package llm

import (
	"context"
	"time"
)

// Client is the interface all language model providers implement.
type Client interface {
	// Generate produces a completion for a single prompt.
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error)

	// Chat produces a completion for a multi-turn conversation.
	Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error)

	// Name returns the model name.
	Name() string
}

// Config holds language model client settings.
type Config struct {
	APIKey      string        // API key
	BaseURL     string        // API base URL override
	Model       string        // model name
	Timeout     time.Duration // per-request timeout
	MaxRetries  int           // maximum retry attempts
	MaxTokens   int           // maximum tokens to generate
	Temperature float32       // sampling temperature (0.0-2.0)
	TopP        float32       // nucleus sampling threshold (0.0-1.0)
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Model:       ModelGPT35Turbo,
		Timeout:     60 * time.Second,
		MaxRetries:  3,
		MaxTokens:   1024,
		Temperature: 0.2,
		TopP:        0.9,
	}
}

// Option mutates a Config.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(c *Config) {
		c.APIKey = apiKey
	}
}

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(c *Config) {
		c.Model = model
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the maximum retry attempts.
func WithMaxRetries(retries int) Option {
	return func(c *Config) {
		c.MaxRetries = retries
	}
}

// WithMaxTokens sets the maximum tokens to generate.
func WithMaxTokens(tokens int) Option {
	return func(c *Config) {
		c.MaxTokens = tokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float32) Option {
	return func(c *Config) {
		c.Temperature = temp
	}
}

// WithTopP sets the nucleus sampling threshold.
func WithTopP(topP float32) Option {
	return func(c *Config) {
		c.TopP = topP
	}
}

// NewConfig creates a configuration with the given options applied.
func NewConfig(opts ...Option) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// GenerateOption overrides per-request generation settings.
type GenerateOption func(*GenerateOptions)

// GenerateOptions collects per-request generation settings. Nil fields
// fall back to the client configuration.
type GenerateOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
	Stream      bool
}

// WithGenerateMaxTokens sets the maximum tokens for one request.
func WithGenerateMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = &tokens
	}
}

// WithGenerateTemperature sets the sampling temperature for one request.
func WithGenerateTemperature(temp float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = &temp
	}
}

// WithGenerateTopP sets the nucleus sampling threshold for one request.
func WithGenerateTopP(topP float32) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = &topP
	}
}

// WithGenerateStream toggles streaming output for one request.
func WithGenerateStream(stream bool) GenerateOption {
	return func(o *GenerateOptions) {
		o.Stream = stream
	}
}

// ChatOption overrides per-request chat settings.
type ChatOption func(*ChatOptions)

// ChatOptions collects per-request chat settings. Nil fields fall back
// to the client configuration.
type ChatOptions struct {
	MaxTokens   *int
	Temperature *float32
	TopP        *float32
	Stream      bool
}

// WithChatMaxTokens sets the maximum tokens for one chat request.
func WithChatMaxTokens(tokens int) ChatOption {
	return func(o *ChatOptions) {
		o.MaxTokens = &tokens
	}
}

// WithChatTemperature sets the sampling temperature for one chat request.
func WithChatTemperature(temp float32) ChatOption {
	return func(o *ChatOptions) {
		o.Temperature = &temp
	}
}

// WithChatTopP sets the nucleus sampling threshold for one chat request.
func WithChatTopP(topP float32) ChatOption {
	return func(o *ChatOptions) {
		o.TopP = &topP
	}
}

// WithChatStream toggles streaming output for one chat request.
func WithChatStream(stream bool) ChatOption {
	return func(o *ChatOptions) {
		o.Stream = stream
	}
}

// Factory builds a language model client from options.
type Factory func(opts ...Option) (Client, error)

var clientFactories = make(map[string]Factory)

// RegisterClient registers a client factory under a provider name.
func RegisterClient(name string, factory Factory) {
	clientFactories[name] = factory
}

// NewClient creates a language model client by registered provider name.
func NewClient(name string, opts ...Option) (Client, error) {
	factory, exists := clientFactories[name]
	if !exists {
		return nil, NewLLMError(
			ErrCodeInvalidRequest,
			"llm client type not registered: "+name)
	}
	return factory(opts...)
}
