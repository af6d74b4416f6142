package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient returns canned responses and records prompts.
type stubClient struct {
	response *Response
	err      error
	prompts  []string
}

func (s *stubClient) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*Response, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubClient) Chat(ctx context.Context, messages []Message, options ...ChatOption) (*Response, error) {
	if len(messages) > 0 {
		s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func (s *stubClient) Name() string { return "stub-model" }

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, ModelGPT35Turbo, cfg.Model)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, float32(0.2), cfg.Temperature)
}

func TestNewConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithAPIKey("key"),
		WithModel(ModelSabia3),
		WithMaxTokens(512),
		WithTemperature(0.5),
		WithTopP(0.8),
		WithTimeout(10*time.Second),
	)
	assert.Equal(t, "key", cfg.APIKey)
	assert.Equal(t, ModelSabia3, cfg.Model)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.Equal(t, float32(0.5), cfg.Temperature)
	assert.Equal(t, float32(0.8), cfg.TopP)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
}

func TestNewClientRegistry(t *testing.T) {
	_, err := NewClient("does-not-exist")
	assert.Error(t, err)

	client, err := NewClient("maritalk", WithAPIKey("key"))
	require.NoError(t, err)
	assert.Equal(t, ModelSabia3, client.Name())
}

func TestMaritalkClientRequiresAPIKey(t *testing.T) {
	_, err := NewMaritalkClient()
	require.Error(t, err)
	llmErr, ok := err.(LLMError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInvalidAPIKey, llmErr.Code)
}

func TestMaritalkClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key test-key", r.Header.Get("Authorization"))

		var req MaritalkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, ModelSabia3, req.Model)
		require.NotEmpty(t, req.Messages)

		json.NewEncoder(w).Encode(MaritalkResponse{
			Answer: "O prazo de arrependimento é de 7 dias.",
			Model:  ModelSabia3,
			Usage:  MaritalkUsage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
		})
	}))
	defer server.Close()

	client, err := NewMaritalkClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "Qual o prazo de arrependimento em compras online?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "O prazo de arrependimento é de 7 dias.", resp.Text)
	assert.Equal(t, 30, resp.TokenCount)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, RoleAssistant, resp.Messages[0].Role)
}

func TestMaritalkClientGenerateDelegatesToChat(t *testing.T) {
	var gotMessages []Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req MaritalkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotMessages = req.Messages

		json.NewEncoder(w).Encode(MaritalkResponse{Answer: "resposta"})
	}))
	defer server.Close()

	client, err := NewMaritalkClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "pergunta", WithGenerateMaxTokens(64))
	require.NoError(t, err)
	assert.Equal(t, "resposta", resp.Text)
	require.Len(t, gotMessages, 1)
	assert.Equal(t, RoleUser, gotMessages[0].Role)
	assert.Equal(t, "pergunta", gotMessages[0].Content)
}

func TestMaritalkClientEmptyPrompt(t *testing.T) {
	client, err := NewMaritalkClient(WithAPIKey("test-key"))
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "")
	require.Error(t, err)
	llmErr, ok := err.(LLMError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeEmptyPrompt, llmErr.Code)
}

func TestMaritalkClientServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "invalid model"})
	}))
	defer server.Close()

	client, err := NewMaritalkClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
	)
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "oi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid model")
}

func TestOpenAIClientChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  ModelGPT35Turbo,
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": "O CDC é a Lei 8.078/1990.",
					},
				},
			},
			"usage": map[string]int{"prompt_tokens": 12, "completion_tokens": 9, "total_tokens": 21},
		})
	}))
	defer server.Close()

	client, err := NewOpenAIClient(
		WithAPIKey("test-key"),
		WithBaseURL(server.URL+"/v1"),
	)
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), []Message{
		{Role: RoleUser, Content: "O que é o CDC?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "O CDC é a Lei 8.078/1990.", resp.Text)
	assert.Equal(t, 21, resp.TokenCount)
}

func TestWrapError(t *testing.T) {
	wrapped := WrapError(assert.AnError, ErrCodeNetworkError)
	assert.Equal(t, ErrCodeNetworkError, wrapped.Code)

	llmErr := NewLLMError(ErrCodeTimeout, ErrMsgTimeout)
	rewrapped := WrapError(llmErr, ErrCodeServerError)
	assert.Equal(t, ErrCodeTimeout, rewrapped.Code)
}
