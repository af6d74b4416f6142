package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultRAGTemplate is the legal assistant prompt. It carries two
// variables:
// {{.Question}} - the user question
// {{.Context}} - retrieved passages
const DefaultRAGTemplate = `Assistente jurídico especialista em Direito do Consumidor.

Contexto:
{{.Context}}

Pergunta: {{.Question}}

Instruções para a sua resposta:
1. Identifique os artigos específicos do CDC relevantes para a questão
2. Cite textualmente os trechos mais importantes
3. Explique a interpretação jurídica em linguagem acessível
4. Se necessário, mencione jurisprudência relevante
5. Se a pergunta estiver fora do escopo do CDC, explique educadamente.

Responda de forma estruturada com:
- Fundamentação Legal (artigos aplicáveis)
- Explicação (interpretação dos artigos)`

// GeneralRAGTemplate answers from arbitrary legal documents without
// assuming a consumer-law question.
const GeneralRAGTemplate = `Assistente jurídico especializado em legislação brasileira.
Responda à pergunta com base apenas no contexto fornecido.
Se o contexto não contiver informação suficiente, diga "Não encontrei informação suficiente nos documentos disponíveis" sem inventar conteúdo.

Contexto:
{{.Context}}

Pergunta: {{.Question}}

Cite os artigos e dispositivos legais que fundamentam a resposta.`

// formatContext renders retrieved passages as a numbered list.
func formatContext(contexts []string) string {
	var sb strings.Builder
	for i, ctx := range contexts {
		sb.WriteString(fmt.Sprintf("[%d] %s\n\n", i+1, ctx))
	}
	return sb.String()
}

// RAGConfig configures retrieval-augmented answering.
type RAGConfig struct {
	Template       string        // prompt template
	MaxTokens      int           // maximum tokens to generate
	Temperature    float32       // sampling temperature
	Timeout        time.Duration // per-answer timeout
	IncludeSources bool          // attach source references to answers
}

// DefaultRAGConfig returns the default RAG configuration.
func DefaultRAGConfig() *RAGConfig {
	return &RAGConfig{
		Template:       DefaultRAGTemplate,
		MaxTokens:      2048,
		Temperature:    0.2,
		Timeout:        30 * time.Second,
		IncludeSources: true,
	}
}

// RAGService generates answers grounded on retrieved passages.
type RAGService struct {
	Client Client
	config *RAGConfig
	mu     sync.RWMutex
}

// NewRAG creates a retrieval-augmented generation service.
func NewRAG(client Client, opts ...RAGOption) *RAGService {
	cfg := DefaultRAGConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &RAGService{
		Client: client,
		config: cfg,
	}
}

// RAGOption mutates a RAGConfig.
type RAGOption func(*RAGConfig)

// WithTemplate sets the prompt template.
func WithTemplate(template string) RAGOption {
	return func(c *RAGConfig) {
		c.Template = template
	}
}

// WithGeneralTemplate switches to the general legislation template.
func WithGeneralTemplate() RAGOption {
	return func(c *RAGConfig) {
		c.Template = GeneralRAGTemplate
	}
}

// WithRAGMaxTokens sets the maximum tokens to generate.
func WithRAGMaxTokens(tokens int) RAGOption {
	return func(c *RAGConfig) {
		c.MaxTokens = tokens
	}
}

// WithRAGTemperature sets the sampling temperature.
func WithRAGTemperature(temp float32) RAGOption {
	return func(c *RAGConfig) {
		c.Temperature = temp
	}
}

// WithRAGTimeout sets the per-answer timeout.
func WithRAGTimeout(timeout time.Duration) RAGOption {
	return func(c *RAGConfig) {
		c.Timeout = timeout
	}
}

// WithSources toggles source references on answers.
func WithSources(include bool) RAGOption {
	return func(c *RAGConfig) {
		c.IncludeSources = include
	}
}

// Answer generates an answer for the question using the given passages.
func (r *RAGService) Answer(ctx context.Context, question string, contexts []string) (*RAGResponse, error) {
	if question == "" {
		return nil, NewLLMError(ErrCodeEmptyPrompt, "question cannot be empty")
	}

	r.mu.RLock()
	cfg := r.config
	r.mu.RUnlock()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	prompt := r.buildPrompt(question, contexts)

	response, err := r.Client.Generate(
		ctxWithTimeout,
		prompt,
		WithGenerateMaxTokens(cfg.MaxTokens),
		WithGenerateTemperature(cfg.Temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	ragResponse := &RAGResponse{
		Answer: response.Text,
	}

	if cfg.IncludeSources && len(contexts) > 0 {
		sources := make([]SourceReference, len(contexts))
		for i, passage := range contexts {
			sources[i] = SourceReference{
				ID:      fmt.Sprintf("src-%d", i+1),
				Content: passage,
			}
		}
		ragResponse.Sources = sources
	}

	return ragResponse, nil
}

// buildPrompt fills the template with the question and passages.
func (r *RAGService) buildPrompt(question string, contexts []string) string {
	r.mu.RLock()
	template := r.config.Template
	r.mu.RUnlock()

	prompt := template
	prompt = strings.ReplaceAll(prompt, "{{.Question}}", question)
	prompt = strings.ReplaceAll(prompt, "{{.Context}}", formatContext(contexts))
	return prompt
}

// SetTemplate replaces the prompt template.
func (r *RAGService) SetTemplate(template string) *RAGService {
	r.mu.Lock()
	r.config.Template = template
	r.mu.Unlock()
	return r
}
