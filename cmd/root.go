package cmd

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/job-sieve/internal/dedup"
	"github.com/spigell/job-sieve/internal/embedding"
	"github.com/spigell/job-sieve/internal/freshness"
	"github.com/spigell/job-sieve/internal/scoring"
	"github.com/spigell/job-sieve/internal/sources"
)

const (
	app = "job-sieve"
)

type Config struct {
	Profile    embedding.Profile `mapstructure:"profile"`
	Sources    *SourcesConfig    `mapstructure:"sources" validate:"required"`
	Dedup      *DedupConfig      `mapstructure:"dedup" validate:"required"`
	Freshness  *FreshnessConfig  `mapstructure:"freshness" validate:"required"`
	Filter     *FilterConfig     `mapstructure:"filter"`
	Ranking    *RankingConfig    `mapstructure:"ranking" validate:"required"`
	Scoring    scoring.Config    `mapstructure:"scoring"`
	AI         *AIConfig         `mapstructure:"ai"`
	Enrichment *EnrichmentConfig `mapstructure:"enrichment"`
	Export     *ExportConfig     `mapstructure:"export"`
}

type SourcesConfig struct {
	Timeout      time.Duration         `mapstructure:"timeout" validate:"gte=0"`
	MaxPerSource int                   `mapstructure:"max-per-source" validate:"gte=0"`
	Files        []string              `mapstructure:"files"`
	Remotive     *RemotiveSourceConfig `mapstructure:"remotive"`
}

type RemotiveSourceConfig struct {
	Enabled                bool `mapstructure:"enabled"`
	sources.RemotiveConfig `mapstructure:",squash"`
}

type DedupConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type FreshnessConfig struct {
	MaxAgeDays int `mapstructure:"max-age-days" validate:"gte=1"`
}

type FilterConfig struct {
	// DomainKeywords replace the built-in hard filter vocabulary when set.
	DomainKeywords []string `mapstructure:"domain-keywords" validate:"dive,required"`
}

type RankingConfig struct {
	MinScore float64 `mapstructure:"min-score" validate:"gte=-10,lte=100"`
	TopN     int     `mapstructure:"top-n" validate:"gte=1"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey            string `mapstructure:"api-key" json:"-"`
	APIKeyFile        string `mapstructure:"api-key-file"`
	Model             string `mapstructure:"model"`
	EmbeddingModel    string `mapstructure:"embedding-model"`
	MaxRetries        int    `mapstructure:"max-retries" validate:"gte=0"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute" validate:"gte=0"`
}

// EnrichmentConfig drives the Tavily lookups: company metadata and, with
// Descriptions, the full text of postings with thin descriptions.
type EnrichmentConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxRecords      int           `mapstructure:"max-records" validate:"gte=0"`
	Descriptions    bool          `mapstructure:"descriptions"`
	MaxDescriptions int           `mapstructure:"max-descriptions" validate:"gte=0"`
	APIKey          string        `mapstructure:"api-key" json:"-"`
	APIKeyFile      string        `mapstructure:"api-key-file"`
	Interval        time.Duration `mapstructure:"interval" validate:"gte=0"`
}

type ExportConfig struct {
	Dir string `mapstructure:"dir"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "job-sieve collects job postings, drops the noise and ranks the rest against your profile",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is job-sieve.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("sources.timeout", sources.DefaultTimeout)
	viper.SetDefault("dedup.path", dedup.DefaultPath)
	viper.SetDefault("freshness.max-age-days", freshness.DefaultMaxAgeDays)
	viper.SetDefault("ranking.min-score", 60)
	viper.SetDefault("ranking.top-n", 20)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", 30*time.Second)
	viper.SetDefault("enrichment.max-records", 30)
	viper.SetDefault("enrichment.descriptions", true)
	viper.SetDefault("enrichment.max-descriptions", 60)
	viper.SetDefault("export.dir", ".")

	// Each penalty is a separate key so a partial override keeps the rest.
	penalties := scoring.DefaultConfig().Penalties
	viper.SetDefault("scoring.penalties.research-heavy", penalties.ResearchHeavy)
	viper.SetDefault("scoring.penalties.narrow-domain-heavy", penalties.NarrowDomainHeavy)
	viper.SetDefault("scoring.penalties.requires-doctorate", penalties.RequiresDoctorate)
	viper.SetDefault("scoring.penalties.requires-publications", penalties.RequiresPublications)
	viper.SetDefault("scoring.penalties.onsite-only", penalties.OnsiteOnly)
	viper.SetDefault("scoring.penalties.remote-bonus", penalties.RemoteBonus)
}

func initConfig() {
	// A missing .env is fine; keys may come from the config or the environment.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// The default file is optional since maintenance commands work without it.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		// We can't proceed if the config file parsed with error.
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		config = &Config{}
	}

	defaults := scoring.DefaultConfig()
	if len(config.Scoring.Skills) == 0 {
		config.Scoring.Skills = defaults.Skills
	}
	if len(config.Scoring.TitlePenalties) == 0 {
		config.Scoring.TitlePenalties = defaults.TitlePenalties
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return config, nil
}
