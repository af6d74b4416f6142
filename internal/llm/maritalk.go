package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultMaritalkEndpoint = "https://chat.maritaca.ai/api/chat/inference"

// MaritalkClient talks to the MariTalk inference API, a Brazilian
// Portuguese model family well suited to legal text.
type MaritalkClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	maxRetries  int
	maxTokens   int
	temperature float32
	topP        float32
}

// NewMaritalkClient creates a MariTalk client.
func NewMaritalkClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewLLMError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultMaritalkEndpoint
	}

	model := cfg.Model
	if model == "" || model == ModelGPT35Turbo {
		model = ModelSabia3
	}

	return &MaritalkClient{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		model:       model,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		maxRetries:  cfg.MaxRetries,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
	}, nil
}

// Name returns the model name.
func (c *MaritalkClient) Name() string {
	return c.model
}

// Generate produces a completion for a single prompt.
func (c *MaritalkClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
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
func (c *MaritalkClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) == 0 {
		return nil, NewLLMError(ErrCodeInvalidRequest, "messages cannot be empty")
	}

	opts := &ChatOptions{}
	for _, opt := range options {
		opt(opts)
	}

	req := &MaritalkRequest{
		Model:    c.model,
		Messages: messages,
		DoSample: true,
	}

	if opts.MaxTokens != nil {
		req.MaxTokens = opts.MaxTokens
	} else if c.maxTokens > 0 {
		maxTokens := c.maxTokens
		req.MaxTokens = &maxTokens
	}

	if opts.Temperature != nil {
		req.Temperature = opts.Temperature
	} else if c.temperature > 0 {
		temp := c.temperature
		req.Temperature = &temp
	}

	if opts.TopP != nil {
		req.TopP = opts.TopP
	} else if c.topP > 0 {
		topP := c.topP
		req.TopP = &topP
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	return c.processResponse(resp)
}

// sendRequest posts the request with retries on server errors.
func (c *MaritalkClient) sendRequest(ctx context.Context, req *MaritalkRequest) (*MaritalkResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewLLMError(ErrCodeTimeout, ctx.Err().Error())
			case <-time.After(time.Duration(1<<uint(attempt)) * 100 * time.Millisecond):
			}
		}

		// The request body is consumed on each attempt, so the
		// request must be rebuilt before every retry.
		httpReq, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			c.baseURL,
			bytes.NewBuffer(jsonData),
		)
		if reqErr != nil {
			return nil, NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", reqErr))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", fmt.Sprintf("Key %s", c.apiKey))
		httpReq.Header.Set("Accept", "application/json")

		resp, err = c.httpClient.Do(httpReq)
		if err == nil && resp.StatusCode < 500 {
			break
		}

		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			resp = nil
		}
	}

	if err != nil || resp == nil {
		return nil, NewLLMError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", lastErr))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewLLMError(ErrCodeRateLimited, ErrMsgRateLimited)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp struct {
			Detail  string `json:"detail"`
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(body, &errResp); jsonErr == nil {
			if errResp.Detail != "" {
				return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("API error: %s", errResp.Detail))
			}
			if errResp.Message != "" {
				return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("API error: %s", errResp.Message))
			}
		}
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error (status %d): %s", resp.StatusCode, string(body)))
	}

	var maritalkResp MaritalkResponse
	if err := json.Unmarshal(body, &maritalkResp); err != nil {
		return nil, NewLLMError(ErrCodeServerError, fmt.Sprintf("failed to parse response: %v", err))
	}

	if maritalkResp.Code != "" {
		return nil, NewLLMError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", maritalkResp.Detail, maritalkResp.Code))
	}

	return &maritalkResp, nil
}

func (c *MaritalkClient) processResponse(resp *MaritalkResponse) (*Response, error) {
	if resp.Answer == "" {
		return nil, NewLLMError(ErrCodeServerError, "empty response from API")
	}

	answer := Message{Role: RoleAssistant, Content: resp.Answer}
	return &Response{
		Text:       resp.Answer,
		Messages:   []Message{answer},
		TokenCount: resp.Usage.TotalTokens,
		ModelName:  c.model,
		FinishTime: time.Now(),
	}, nil
}

func init() {
	RegisterClient("maritalk", NewMaritalkClient)
}
