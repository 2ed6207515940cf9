package embedding

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const (
	openAIProvider     = "openai"
	defaultOpenAIModel = openai.EmbeddingModelTextEmbedding3Small
)

type embeddingsCreator interface {
	New(ctx context.Context, body openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// OpenAIConfig configures the OpenAI embedding provider. BaseURL allows any
// OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	MaxRetries int
}

// OpenAI embeds text through the OpenAI embeddings API.
type OpenAI struct {
	embeddings embeddingsCreator
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewOpenAI creates a provider using the official OpenAI SDK.
func NewOpenAI(cfg OpenAIConfig, logger *zap.Logger) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	client := openai.NewClient(opts...)
	return newOpenAI(&client.Embeddings, cfg, logger), nil
}

func newOpenAI(embeddings embeddingsCreator, cfg OpenAIConfig, logger *zap.Logger) *OpenAI {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OpenAI{
		embeddings: embeddings,
		model:      model,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}
}

func (o *OpenAI) Model() string {
	return SizedIdentity(openAIProvider, o.model, o.dimensions)
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, o, text)
}

func (o *OpenAI) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model:          o.model,
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if o.dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.dimensions))
	}

	resp, err := o.embeddings.New(ctx, params)
	if err != nil {
		o.logger.Debug("openai embeddings request failed", zap.Int("texts", len(texts)), zap.Error(err))
		return nil, &ProviderError{Provider: openAIProvider, Model: o.model, Err: err}
	}

	if err := checkCount(openAIProvider, o.model, len(texts), len(resp.Data)); err != nil {
		return nil, err
	}

	data := append([]openai.Embedding(nil), resp.Data...)
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, 0, len(data))
	for i, item := range data {
		if int(item.Index) != i {
			return nil, &ProviderError{Provider: openAIProvider, Model: o.model, Err: fmt.Errorf("unexpected embedding index %d", item.Index)}
		}
		vectors = append(vectors, toFloat32(item.Embedding))
	}

	return vectors, nil
}
