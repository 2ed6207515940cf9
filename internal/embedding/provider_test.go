package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-9)
		})
	}
}

func TestIdentity(t *testing.T) {
	assert.Equal(t, "gemini/text-embedding-004", Identity(" Gemini ", "text-embedding-004"))
	assert.Equal(t, "openai/text-embedding-3-small", SizedIdentity("openai", "text-embedding-3-small", 0))
	assert.Equal(t, "openai/text-embedding-3-small#512", SizedIdentity("OpenAI", "text-embedding-3-small", 512))
}

func TestModelIdentityTracksDimensions(t *testing.T) {
	full := newOpenAI(&stubEmbeddings{}, OpenAIConfig{}, nil)
	reduced := newOpenAI(&stubEmbeddings{}, OpenAIConfig{Dimensions: 256}, nil)
	assert.NotEqual(t, full.Model(), reduced.Model())

	g := newGemini(&stubEmbedder{}, GeminiConfig{Dimensions: 768}, nil)
	assert.Equal(t, "gemini/text-embedding-004#768", g.Model())
}

func TestProviderErrorTimeout(t *testing.T) {
	err := error(&ProviderError{Provider: "fake", Model: "m", Err: context.DeadlineExceeded})

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.True(t, providerErr.Timeout())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type stubEmbedder struct {
	calls     int
	responses []*genai.EmbedContentResponse
	errs      []error
	contents  [][]*genai.Content
	config    *genai.EmbedContentConfig
}

func (s *stubEmbedder) EmbedContent(_ context.Context, _ string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	i := s.calls
	s.calls++
	s.contents = append(s.contents, contents)
	s.config = config
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if err != nil {
		return nil, err
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	resp := &genai.EmbedContentResponse{}
	for range contents {
		resp.Embeddings = append(resp.Embeddings, &genai.ContentEmbedding{Values: []float32{1, 0}})
	}
	return resp, nil
}

func TestGeminiEmbedMany(t *testing.T) {
	stub := &stubEmbedder{}
	g := newGemini(stub, GeminiConfig{Dimensions: 256}, nil)

	texts := make([]string, 150)
	for i := range texts {
		texts[i] = "skill"
	}

	vectors, err := g.EmbedMany(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, 150)
	assert.Equal(t, 2, stub.calls)
	assert.Len(t, stub.contents[0], 100)
	assert.Len(t, stub.contents[1], 50)
	require.NotNil(t, stub.config.OutputDimensionality)
	assert.Equal(t, int32(256), *stub.config.OutputDimensionality)
	assert.Equal(t, "gemini/text-embedding-004#256", g.Model())
}

func TestGeminiWrapsErrors(t *testing.T) {
	stub := &stubEmbedder{errs: []error{genai.APIError{Code: http.StatusBadRequest, Message: "bad"}}}
	g := newGemini(stub, GeminiConfig{Model: "gemini-embedding-001", MaxRetries: 3}, nil)

	_, err := g.Embed(context.Background(), "go")

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "gemini-embedding-001", providerErr.Model)
	assert.Equal(t, 1, stub.calls, "client errors are not retried")
}

func TestGeminiRejectsShortResponse(t *testing.T) {
	stub := &stubEmbedder{responses: []*genai.EmbedContentResponse{{}}}
	g := newGemini(stub, GeminiConfig{}, nil)

	_, err := g.EmbedMany(context.Background(), []string{"go", "sql"})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
}

type stubEmbeddings struct {
	params openai.EmbeddingNewParams
	resp   *openai.CreateEmbeddingResponse
	err    error
}

func (s *stubEmbeddings) New(_ context.Context, body openai.EmbeddingNewParams, _ ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	s.params = body
	return s.resp, s.err
}

func TestOpenAIEmbedManyOrdersByIndex(t *testing.T) {
	stub := &stubEmbeddings{resp: &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{
			{Index: 1, Embedding: []float64{0, 1}},
			{Index: 0, Embedding: []float64{1, 0}},
		},
	}}
	o := newOpenAI(stub, OpenAIConfig{Dimensions: 2}, nil)

	vectors, err := o.EmbedMany(context.Background(), []string{"go", "sql"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, []string{"go", "sql"}, stub.params.Input.OfArrayOfStrings)
	assert.Equal(t, "openai/text-embedding-3-small#2", o.Model())
}

func TestOpenAIWrapsErrors(t *testing.T) {
	stub := &stubEmbeddings{err: errors.New("unavailable")}
	o := newOpenAI(stub, OpenAIConfig{}, nil)

	_, err := o.Embed(context.Background(), "go")
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, "openai", providerErr.Provider)
}

func TestOllamaEmbedMany(t *testing.T) {
	var got ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ollamaEmbedPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaResponse{Embeddings: [][]float32{{1, 2}, {3, 4}}})
	}))
	defer server.Close()

	o := NewOllama(OllamaConfig{BaseURL: server.URL + "/", Model: "all-minilm"}, nil)

	vectors, err := o.EmbedMany(context.Background(), []string{"go", "sql"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}, {3, 4}}, vectors)
	assert.Equal(t, "all-minilm", got.Model)
	assert.Equal(t, []string{"go", "sql"}, got.Input)
	assert.Equal(t, "ollama/all-minilm", o.Model())
}

func TestOllamaBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	o := NewOllama(OllamaConfig{BaseURL: server.URL}, nil)

	_, err := o.Embed(context.Background(), "go")
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Contains(t, err.Error(), "bad status")
}
