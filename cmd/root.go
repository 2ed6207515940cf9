package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/skillmatch/internal/service"
	"github.com/spigell/skillmatch/internal/standardize"
	"github.com/spigell/skillmatch/internal/worker"
)

const (
	app = "skillmatch"
)

type Config struct {
	Taxonomy   *TaxonomyConfig   `mapstructure:"taxonomy"`
	Embedding  *EmbeddingConfig  `mapstructure:"embedding"`
	Thresholds service.Profiles  `mapstructure:"thresholds"`
	BatchSize  int               `mapstructure:"batch-size"`
	Unresolved string            `mapstructure:"unresolved"`
	Extraction *ExtractionConfig `mapstructure:"extraction"`
	HeadHunter *HeadHunterConfig `mapstructure:"headhunter"`
	Database   *DatabaseConfig   `mapstructure:"database"`
	Storage    *StorageConfig    `mapstructure:"storage"`
	Worker     *WorkerConfig     `mapstructure:"worker"`
}

type TaxonomyConfig struct {
	// Index is a local path or an s3://bucket/key location.
	Index string `mapstructure:"index"`
}

type EmbeddingConfig struct {
	// Provider is one of gemini, openai, ollama or none.
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	Dimensions  int           `mapstructure:"dimensions"`
	BaseURL     string        `mapstructure:"base-url"`
	APIKeyFile  string        `mapstructure:"api-key-file"`
	MaxRetries  int           `mapstructure:"max-retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

type ExtractionConfig struct {
	Gemini *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKeyFile   string  `mapstructure:"api-key-file"`
	Model        string  `mapstructure:"model"`
	MaxRetries   int     `mapstructure:"max-retries"`
	MaxLogLength int     `mapstructure:"max-log-length"`
	Temperature  float32 `mapstructure:"temperature"`
}

type HeadHunterConfig struct {
	TokenFile string `mapstructure:"token-file"`
	UserAgent string `mapstructure:"user-agent"`
}

type DatabaseConfig struct {
	URL     string `mapstructure:"url"`
	URLFile string `mapstructure:"url-file"`
}

type StorageConfig struct {
	S3 *S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKeyFile string `mapstructure:"access-key-file"`
	SecretKeyFile string `mapstructure:"secret-key-file"`
	PathStyle     bool   `mapstructure:"path-style"`
}

type WorkerConfig struct {
	AMQP worker.Config `mapstructure:"amqp"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "skillmatch standardizes free-text skills against a taxonomy and matches skill sets",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"headhunter.token-file": "HH_TOKEN_FILE",
		"database.url":          "DATABASE_URL",
		"worker.amqp.url":       "RABBITMQ_URL",
		"taxonomy.index":        "SKILLMATCH_INDEX",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is skillmatch.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("index", "", "taxonomy index location, a path or s3://bucket/key")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("taxonomy.index", rootCmd.PersistentFlags().Lookup("index"))
}

func setDefaults() {
	profiles := service.DefaultProfiles()
	viper.SetDefault("thresholds.job.similarity", profiles.Job.Similarity)
	viper.SetDefault("thresholds.job.fuzzy", profiles.Job.Fuzzy)
	viper.SetDefault("thresholds.cv.similarity", profiles.CV.Similarity)
	viper.SetDefault("thresholds.cv.fuzzy", profiles.CV.Fuzzy)
	viper.SetDefault("thresholds.match.similarity", profiles.Match.Similarity)
	viper.SetDefault("thresholds.match.fuzzy", profiles.Match.Fuzzy)

	viper.SetDefault("batch-size", standardize.DefaultBatchSize)
	viper.SetDefault("unresolved", string(standardize.PolicyDrop))
	viper.SetDefault("embedding.provider", "gemini")
	viper.SetDefault("embedding.timeout", "30s")
	viper.SetDefault("embedding.concurrency", 2)
	viper.SetDefault("worker.amqp.queue", worker.DefaultQueue)
	viper.SetDefault("worker.amqp.results-exchange", worker.DefaultResultsExchange)
	viper.SetDefault("worker.amqp.concurrency", 1)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// A config file is optional unless it was given explicitly; flags and
	// environment variables cover every setting.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config.Taxonomy == nil {
		config.Taxonomy = &TaxonomyConfig{}
	}
	if config.Embedding == nil {
		config.Embedding = &EmbeddingConfig{}
	}
	if config.Worker == nil {
		config.Worker = &WorkerConfig{}
	}
	config.Embedding.Provider = strings.ToLower(strings.TrimSpace(config.Embedding.Provider))

	return config, nil
}

// standardizeOptions returns the batch options shared by every call site.
func (c *Config) standardizeOptions() standardize.Options {
	return standardize.Options{
		BatchSize:    c.BatchSize,
		Unresolved:   standardize.Policy(c.Unresolved),
		EmbedTimeout: c.Embedding.Timeout,
		Concurrency:  c.Embedding.Concurrency,
	}
}
