package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/ai"
	"github.com/spigell/skillmatch/internal/ai/gemini"
	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/headhunter"
	applog "github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/secrets"
	"github.com/spigell/skillmatch/internal/service"
	"github.com/spigell/skillmatch/internal/standardize"
	"github.com/spigell/skillmatch/internal/store"
	"github.com/spigell/skillmatch/internal/taxonomy"
)

const providerNone = "none"

// setup creates the logger and reads the config. It exits on failure, like
// every command does.
func setup() (*zap.Logger, *Config) {
	logger, err := applog.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Debug("starting", zap.String("app", app), zap.String("version", version))

	return logger, config
}

func newEmbeddingProvider(ctx context.Context, cfg *EmbeddingConfig, logger *zap.Logger) (embedding.Provider, error) {
	switch cfg.Provider {
	case "", providerNone:
		return nil, nil
	case "gemini":
		apiKey, err := secrets.Load(secrets.Source{Name: "gemini api key", File: cfg.APIKeyFile, Env: "GEMINI_API_KEY"})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedding.api-key-file or GEMINI_API_KEY)", err)
		}
		return embedding.NewGemini(ctx, embedding.GeminiConfig{
			APIKey:     apiKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxRetries: cfg.MaxRetries,
		}, logger)
	case "openai":
		apiKey, err := secrets.Load(secrets.Source{Name: "openai api key", File: cfg.APIKeyFile, Env: "OPENAI_API_KEY"})
		if err != nil {
			return nil, fmt.Errorf("%w (set embedding.api-key-file or OPENAI_API_KEY)", err)
		}
		return embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:     apiKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			MaxRetries: cfg.MaxRetries,
		}, logger)
	case "ollama":
		return embedding.NewOllama(embedding.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// newS3Store returns nil when no location needs object storage.
func newS3Store(ctx context.Context, config *Config, locations ...string) (*taxonomy.S3Store, error) {
	remote := false
	for _, location := range locations {
		if strings.HasPrefix(location, "s3://") {
			remote = true
		}
	}
	if !remote {
		return nil, nil
	}

	cfg := &S3Config{}
	if config.Storage != nil && config.Storage.S3 != nil {
		cfg = config.Storage.S3
	}

	accessKey, err := secrets.Optional(secrets.Source{Name: "s3 access key", File: cfg.AccessKeyFile})
	if err != nil {
		return nil, err
	}
	secretKey, err := secrets.Optional(secrets.Source{Name: "s3 secret key", File: cfg.SecretKeyFile})
	if err != nil {
		return nil, err
	}

	return taxonomy.NewS3Store(ctx, taxonomy.S3Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		AccessKey: accessKey,
		SecretKey: secretKey,
		PathStyle: cfg.PathStyle,
	})
}

func openIndex(ctx context.Context, config *Config, logger *zap.Logger) (*taxonomy.Index, error) {
	location := strings.TrimSpace(config.Taxonomy.Index)
	if location == "" {
		return nil, errors.New("taxonomy index is not configured (set --index, taxonomy.index or SKILLMATCH_INDEX)")
	}

	s3Store, err := newS3Store(ctx, config, location)
	if err != nil {
		return nil, err
	}

	index, err := taxonomy.Open(ctx, location, s3Store)
	if err != nil {
		return nil, err
	}

	logger.Info("taxonomy index loaded",
		zap.String("location", location),
		zap.String(applog.FieldTaxonomyVersion, index.Version().String()),
		zap.Int("entries", index.Len()),
		zap.Int("dimension", index.Dimension()),
	)
	return index, nil
}

func openStore(ctx context.Context, config *Config) (*store.DB, error) {
	if config.Database == nil {
		return nil, errors.New("database is not configured (set database.url or DATABASE_URL)")
	}

	url, err := secrets.Load(secrets.Source{Name: "database url", File: config.Database.URLFile, Value: config.Database.URL})
	if err != nil {
		return nil, err
	}

	db, err := store.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newService builds the standardization service. withProvider false skips
// the embedding provider, leaving exact and fuzzy resolution only.
func newService(ctx context.Context, config *Config, db *store.DB, withProvider bool, logger *zap.Logger) (*service.Service, error) {
	index, err := openIndex(ctx, config, logger)
	if err != nil {
		return nil, err
	}

	var provider embedding.Provider
	if withProvider {
		provider, err = newEmbeddingProvider(ctx, config.Embedding, logger)
		if err != nil {
			return nil, err
		}
	}
	if provider == nil {
		logger.Warn("no embedding provider, phrases are resolved by exact and fuzzy matching only")
	}

	std, err := standardize.New(index, provider, logger)
	if err != nil {
		return nil, err
	}

	var st service.Store
	if db != nil {
		st = db
	}

	return service.New(std, config.Thresholds, config.standardizeOptions(), st, logger)
}

func newExtractor(ctx context.Context, config *Config, logger *zap.Logger) (ai.Extractor, error) {
	cfg := &GeminiConfig{}
	if config.Extraction != nil && config.Extraction.Gemini != nil {
		cfg = config.Extraction.Gemini
	}

	apiKey, err := secrets.Load(secrets.Source{Name: "gemini api key", File: cfg.APIKeyFile, Env: "GEMINI_API_KEY"})
	if err != nil {
		return nil, fmt.Errorf("%w (set extraction.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:      apiKey,
		Model:       cfg.Model,
		MaxRetries:  cfg.MaxRetries,
		Temperature: cfg.Temperature,
	}, logger.With(zap.Int("ai_retry_attempts", cfg.MaxRetries)))
	if err != nil {
		return nil, err
	}

	return gemini.NewExtractor(generator, logger, cfg.MaxLogLength), nil
}

func newHeadHunter(ctx context.Context, config *Config, logger *zap.Logger) (*headhunter.Client, error) {
	cfg := &HeadHunterConfig{}
	if config.HeadHunter != nil {
		cfg = config.HeadHunter
	}

	token, err := secrets.Optional(secrets.Source{Name: "headhunter token", File: cfg.TokenFile, Env: "HH_TOKEN"})
	if err != nil {
		return nil, err
	}

	hh := headhunter.New(ctx, logger, token)
	if cfg.UserAgent != "" {
		hh.UserAgent = cfg.UserAgent
	}
	return hh, nil
}
