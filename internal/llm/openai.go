package llm

import (
	"context"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient generates completions through the OpenAI chat API.
type OpenAIClient struct {
	client *openai.Client
	config *Config
}

// NewOpenAIClient creates an OpenAI chat client.
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Name returns the model name.
func (c *OpenAIClient) Name() string {
	return c.config.Model
}

// Generate produces a completion for a single prompt.
func (c *OpenAIClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	if prompt == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, ErrMsgEmptyPrompt)
	}

	messages := []Message{
		{Role: RoleUser, Content: prompt},
	}

	opts := &GenerateOptions{}
	for _, opt := range options {
		opt(opts)
	}

	var chatOpts []ChatOption
	if opts.MaxTokens != nil {
		chatOpts = append(chatOpts, WithChatMaxTokens(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		chatOpts = append(chatOpts, WithChatTemperature(*opts.Temperature))
	}
	if opts.TopP != nil {
		chatOpts = append(chatOpts, WithChatTopP(*opts.TopP))
	}
	if opts.Stream {
		chatOpts = append(chatOpts, WithChatStream(opts.Stream))
	}

	return c.Chat(ctx, messages, chatOpts...)
}

// Chat produces a completion for a multi-turn conversation.
func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := openai.ChatCompletionRequest{
		Model:    c.config.Model,
		Messages: make([]openai.ChatCompletionMessage, len(messages)),
	}
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
			Name:    msg.Name,
		}
	}

	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	} else if c.config.MaxTokens > 0 {
		req.MaxTokens = c.config.MaxTokens
	}

	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	} else {
		req.Temperature = c.config.Temperature
	}

	if opts.TopP != nil {
		req.TopP = *opts.TopP
	} else if c.config.TopP > 0 {
		req.TopP = c.config.TopP
	}

	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		timeoutCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
		resp, err = c.client.CreateChatCompletion(timeoutCtx, req)
		cancel()

		if err == nil {
			break
		}
		if !isRetryableError(err) {
			return nil, WrapError(err, ErrCodeServerError)
		}
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<uint(attempt)) * 100 * time.Millisecond):
			}
		}
	}
	if err != nil {
		return nil, NewLLMError(ErrCodeRateLimited, err.Error())
	}

	if len(resp.Choices) == 0 {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	choice := resp.Choices[0]
	answer := Message{
		Role:    MessageRole(choice.Message.Role),
		Content: choice.Message.Content,
	}

	return &Response{
		Text:       choice.Message.Content,
		Messages:   []Message{answer},
		TokenCount: resp.Usage.TotalTokens,
		ModelName:  c.config.Model,
		FinishTime: time.Now(),
	}, nil
}

// isRetryableError reports whether err is worth retrying.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "rate_limit") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "status code: 5")
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
