package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/skillmatch/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	geminiProvider      = "gemini"
	defaultGeminiModel  = "text-embedding-004"
	geminiTaskType      = "SEMANTIC_SIMILARITY"
	geminiMaxBatch      = 100
	defaultRetryBackoff = 2 * time.Second
)

type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries int
}

// Gemini embeds text through the Gemini API.
type Gemini struct {
	models     contentEmbedder
	model      string
	dimensions int
	maxRetries int
	logger     *zap.Logger
}

// NewGemini creates a provider backed by the Gemini API.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *zap.Logger) (*Gemini, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGemini(client.Models, cfg, logger), nil
}

func newGemini(models contentEmbedder, cfg GeminiConfig, logger *zap.Logger) *Gemini {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultGeminiModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Gemini{
		models:     models,
		model:      model,
		dimensions: cfg.Dimensions,
		maxRetries: cfg.MaxRetries,
		logger:     logger,
	}
}

func (g *Gemini) Model() string {
	return SizedIdentity(geminiProvider, g.model, g.dimensions)
}

func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, g, text)
}

// EmbedMany splits texts into requests of at most 100 contents each.
func (g *Gemini) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += geminiMaxBatch {
		end := min(start+geminiMaxBatch, len(texts))
		batch, err := g.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (g *Gemini) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	cfg := &genai.EmbedContentConfig{TaskType: geminiTaskType}
	if g.dimensions > 0 {
		dims := int32(g.dimensions)
		cfg.OutputDimensionality = &dims
	}

	policy := utils.RetryPolicy{Attempts: g.maxRetries, Backoff: defaultRetryBackoff, MaxBackoff: 30 * time.Second}
	resp, err := utils.Retry(ctx, policy, isRetryableGemini, func(ctx context.Context) (*genai.EmbedContentResponse, error) {
		resp, err := g.models.EmbedContent(ctx, g.model, contents, cfg)
		if err != nil {
			g.logger.Debug("gemini embed content failed", zap.Int("texts", len(texts)), zap.Error(err))
		}
		return resp, err
	})
	if err != nil {
		return nil, &ProviderError{Provider: geminiProvider, Model: g.model, Err: err}
	}

	if resp == nil {
		return nil, &ProviderError{Provider: geminiProvider, Model: g.model, Err: errors.New("empty response")}
	}

	if err := checkCount(geminiProvider, g.model, len(texts), len(resp.Embeddings)); err != nil {
		return nil, err
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, embedding := range resp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, &ProviderError{Provider: geminiProvider, Model: g.model, Err: errors.New("empty embedding in response")}
		}
		vectors = append(vectors, embedding.Values)
	}

	return vectors, nil
}

func isRetryableGemini(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Code == http.StatusTooManyRequests || apiErrPtr.Code >= http.StatusInternalServerError
	}
	return false
}
