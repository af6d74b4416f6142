package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lexbr/legal-qa-system/internal/cache"
	"github.com/lexbr/legal-qa-system/internal/embedding"
	"github.com/lexbr/legal-qa-system/internal/llm"
	"github.com/lexbr/legal-qa-system/internal/models"
	"github.com/lexbr/legal-qa-system/internal/rerank"
	"github.com/lexbr/legal-qa-system/internal/vectordb"
	"github.com/sirupsen/logrus"
)

// Answers returned when retrieval produces nothing usable.
const (
	noContextAnswer         = "Desculpe, não encontrei informações relevantes para responder à sua pergunta."
	noContextDocumentAnswer = "Desculpe, não encontrei informações relevantes no documento indicado."
	noContextFilterAnswer   = "Desculpe, não encontrei informações que atendam aos filtros informados."
)

// recentQuestionLimit caps the in-memory question history.
const recentQuestionLimit = 50

// QAService answers legal questions over the indexed corpus. Every
// answer goes through retrieval, metadata reranking and generation, with
// a cache in front of the whole chain.
type QAService struct {
	embedder    embedding.Client
	vectorDB    vectordb.Repository
	rag         *llm.RAGService
	reranker    *rerank.Reranker
	cache       cache.Cache
	cacheTTL    time.Duration
	searchLimit int
	minScore    float32
	logger      *logrus.Logger

	mu     sync.Mutex
	recent []string
}

// QAOption customizes a QAService.
type QAOption func(*QAService)

// NewQAService creates the question-answering service.
func NewQAService(
	embedder embedding.Client,
	vectorDB vectordb.Repository,
	rag *llm.RAGService,
	qaCache cache.Cache,
	opts ...QAOption,
) *QAService {
	service := &QAService{
		embedder:    embedder,
		vectorDB:    vectorDB,
		rag:         rag,
		reranker:    rerank.New(),
		cache:       qaCache,
		cacheTTL:    24 * time.Hour,
		searchLimit: 5,
		minScore:    0.7,
		logger:      logrus.New(),
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithCacheTTL sets how long answers stay cached.
func WithCacheTTL(ttl time.Duration) QAOption {
	return func(s *QAService) {
		s.cacheTTL = ttl
	}
}

// WithSearchLimit sets how many segments reach the generator.
func WithSearchLimit(limit int) QAOption {
	return func(s *QAService) {
		s.searchLimit = limit
	}
}

// WithMinScore sets the similarity floor for retrieved segments.
func WithMinScore(score float32) QAOption {
	return func(s *QAService) {
		s.minScore = score
	}
}

// WithReranker replaces the default reranker.
func WithReranker(reranker *rerank.Reranker) QAOption {
	return func(s *QAService) {
		s.reranker = reranker
	}
}

// WithQALogger sets the logger.
func WithQALogger(logger *logrus.Logger) QAOption {
	return func(s *QAService) {
		s.logger = logger
	}
}

// Answer answers a question over the whole corpus.
func (s *QAService) Answer(ctx context.Context, question string) (string, []llm.SourceReference, error) {
	filter := vectordb.SearchFilter{
		MinScore:   s.minScore,
		MaxResults: s.searchLimit * 2,
	}
	cacheKey := cache.GenerateCacheKey("qa", question)
	return s.answer(ctx, question, filter, cacheKey, noContextAnswer)
}

// AnswerWithDocument answers a question using only one document's
// segments.
func (s *QAService) AnswerWithDocument(ctx context.Context, question string, documentID string) (string, []llm.SourceReference, error) {
	if documentID == "" {
		return "", nil, fmt.Errorf("documentID cannot be empty")
	}

	filter := vectordb.SearchFilter{
		DocumentIDs: []string{documentID},
		MinScore:    s.minScore,
		MaxResults:  s.searchLimit * 2,
	}
	cacheKey := cache.GenerateCacheKey("qa_doc", documentID, question)
	return s.answer(ctx, question, filter, cacheKey, noContextDocumentAnswer)
}

// AnswerWithMetadata answers a question restricted to segments whose
// metadata matches every given key exactly.
func (s *QAService) AnswerWithMetadata(ctx context.Context, question string, metadata map[string]interface{}) (string, []llm.SourceReference, error) {
	filter := vectordb.SearchFilter{
		Metadata:   metadata,
		MinScore:   s.minScore,
		MaxResults: s.searchLimit * 2,
	}
	cacheKey := cache.GenerateCacheKey("qa_meta", metadataCacheKey(metadata), question)
	return s.answer(ctx, question, filter, cacheKey, noContextFilterAnswer)
}

// answer runs the shared cache, retrieve, rerank, generate chain.
func (s *QAService) answer(ctx context.Context, question string, filter vectordb.SearchFilter, cacheKey string, emptyAnswer string) (string, []llm.SourceReference, error) {
	if question == "" {
		return "", nil, fmt.Errorf("question cannot be empty")
	}

	s.recordQuestion(question)

	if answer, sources, ok := s.cachedAnswer(cacheKey); ok {
		s.logger.WithField("cache_key", cacheKey).Debug("Answer served from cache")
		return answer, sources, nil
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	results, err := s.vectorDB.Search(vector, filter)
	if err != nil {
		return "", nil, fmt.Errorf("search failed: %w", err)
	}

	candidates := s.toCandidates(results)
	if len(candidates) == 0 {
		s.cacheAnswer(cacheKey, emptyAnswer, nil)
		return emptyAnswer, nil, nil
	}

	ranked := s.reranker.Rerank(candidates)
	if len(ranked) > s.searchLimit {
		ranked = ranked[:s.searchLimit]
	}

	contexts := make([]string, len(ranked))
	for i, candidate := range ranked {
		contexts[i] = candidate.Text
	}

	ragResponse, err := s.rag.Answer(ctx, question, contexts)
	if err != nil {
		return "", nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	sources := s.toSources(ranked, results)
	s.cacheAnswer(cacheKey, ragResponse.Answer, sources)

	s.logger.WithFields(logrus.Fields{
		"sources": len(sources),
	}).Info("Question answered")

	return ragResponse.Answer, sources, nil
}

// toCandidates converts search hits into rerank candidates, dropping
// anything below the similarity floor.
func (s *QAService) toCandidates(results []vectordb.SearchResult) []rerank.Candidate {
	candidates := make([]rerank.Candidate, 0, len(results))
	for _, result := range results {
		if result.Score < s.minScore {
			continue
		}
		candidates = append(candidates, rerank.Candidate{
			ID:       result.Entry.ID,
			Text:     result.Entry.Text,
			Metadata: models.MetadataFromMap(result.Entry.Metadata),
			Score:    result.Score,
		})
	}
	return candidates
}

// toSources rebuilds source references for the ranked candidates from
// the original search hits.
func (s *QAService) toSources(ranked []rerank.Candidate, results []vectordb.SearchResult) []llm.SourceReference {
	byID := make(map[string]vectordb.Entry, len(results))
	for _, result := range results {
		byID[result.Entry.ID] = result.Entry
	}

	sources := make([]llm.SourceReference, 0, len(ranked))
	for _, candidate := range ranked {
		entry := byID[candidate.ID]
		sources = append(sources, llm.SourceReference{
			ID:       candidate.ID,
			FileID:   entry.DocumentID,
			FileName: entry.Source,
			Content:  candidate.Text,
			Score:    float64(candidate.AdjustedScore),
			Metadata: entry.Metadata,
		})
	}
	return sources
}

// cachedSources is the cache wire format for one answer.
type cachedQAEntry struct {
	Answer  string                `json:"answer"`
	Sources []llm.SourceReference `json:"sources,omitempty"`
}

// cachedAnswer loads a previously cached answer.
func (s *QAService) cachedAnswer(cacheKey string) (string, []llm.SourceReference, bool) {
	raw, found, err := s.cache.Get(cacheKey)
	if err != nil || !found {
		return "", nil, false
	}

	var entry cachedQAEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		s.logger.WithError(err).Warn("Failed to decode cached answer")
		return "", nil, false
	}
	return entry.Answer, entry.Sources, true
}

// cacheAnswer stores an answer with its sources. Cache failures never
// fail the request.
func (s *QAService) cacheAnswer(cacheKey string, answer string, sources []llm.SourceReference) {
	raw, err := json.Marshal(cachedQAEntry{Answer: answer, Sources: sources})
	if err != nil {
		return
	}
	if err := s.cache.Set(cacheKey, string(raw), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache answer")
	}
}

// recordQuestion appends to the bounded question history.
func (s *QAService) recordQuestion(question string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent = append(s.recent, question)
	if len(s.recent) > recentQuestionLimit {
		s.recent = s.recent[len(s.recent)-recentQuestionLimit:]
	}
}

// GetRecentQuestions returns up to limit of the most recent questions,
// newest first.
func (s *QAService) GetRecentQuestions(ctx context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}

	questions := make([]string, limit)
	for i := 0; i < limit; i++ {
		questions[i] = s.recent[len(s.recent)-1-i]
	}
	return questions, nil
}

// ClearCache drops every cached answer.
func (s *QAService) ClearCache() error {
	return s.cache.Clear()
}

// metadataCacheKey renders a metadata filter as a stable cache key part.
func metadataCacheKey(metadata map[string]interface{}) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := ""
	for _, k := range keys {
		key += fmt.Sprintf("%s=%v;", k, metadata[k])
	}
	return key
}
