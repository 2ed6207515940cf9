package embedding

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ollamaProvider       = "ollama"
	defaultOllamaURL     = "http://localhost:11434"
	defaultOllamaModel   = "nomic-embed-text"
	ollamaEmbedPath      = "/api/embed"
	defaultOllamaTimeout = 60 * time.Second
	userAgent            = "spigell/skillmatch"
)

// OllamaConfig configures the local Ollama embedding provider.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Ollama embeds text with a model served by a local Ollama instance.
type Ollama struct {
	HTTPClient *http.Client
	UserAgent  string
	baseURL    string
	model      string
	logger     *zap.Logger
}

type ollamaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllama creates a provider talking to the Ollama HTTP API.
func NewOllama(cfg OllamaConfig, logger *zap.Logger) *Ollama {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOllamaTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Ollama{
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  userAgent,
		baseURL:    baseURL,
		model:      model,
		logger:     logger,
	}
}

func (o *Ollama) Model() string {
	return Identity(ollamaProvider, o.model)
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, o, text)
}

func (o *Ollama) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	var response ollamaResponse
	if err := o.postJSON(ctx, o.baseURL+ollamaEmbedPath, ollamaRequest{Model: o.model, Input: texts}, &response); err != nil {
		return nil, &ProviderError{Provider: ollamaProvider, Model: o.model, Err: err}
	}

	if err := checkCount(ollamaProvider, o.model, len(texts), len(response.Embeddings)); err != nil {
		return nil, err
	}

	return response.Embeddings, nil
}

func (o *Ollama) postJSON(ctx context.Context, url string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", o.UserAgent)

	o.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return err
		}
		defer gz.Close()
		reader = gz
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	return json.Unmarshal(data, target)
}
