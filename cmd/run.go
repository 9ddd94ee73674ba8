package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/ai"
	"github.com/spigell/job-sieve/internal/ai/gemini"
	"github.com/spigell/job-sieve/internal/dedup"
	"github.com/spigell/job-sieve/internal/embedding"
	"github.com/spigell/job-sieve/internal/enrich"
	"github.com/spigell/job-sieve/internal/filtering"
	"github.com/spigell/job-sieve/internal/flags"
	"github.com/spigell/job-sieve/internal/freshness"
	"github.com/spigell/job-sieve/internal/hardfilter"
	"github.com/spigell/job-sieve/internal/job"
	"github.com/spigell/job-sieve/internal/logger"
	"github.com/spigell/job-sieve/internal/pipeline"
	"github.com/spigell/job-sieve/internal/report"
	"github.com/spigell/job-sieve/internal/scoring"
	"github.com/spigell/job-sieve/internal/secrets"
	"github.com/spigell/job-sieve/internal/sources"
)

const (
	PromptExportCSV       = "Export to CSV"
	PromptExportHTML      = "Export HTML digest"
	PromptExit            = "Exit"
	PromptReportByCompany = "Report by company"
	PromptRecordsToFile   = "Dump records to file"
	PromptShowRecord      = "Show record details"
	PromptBack            = "back"

	topPreview = 5
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptExportCSV, PromptExportHTML, PromptExit, PromptReportByCompany, PromptShowRecord, PromptRecordsToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Collect postings, filter them and print the ranked matches",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Bool("skip-dedup", false, "keep records already seen in previous runs")
	runCmd.Flags().Bool("dry-run", false, "do not remember the records of this run in the dedup store")
	runCmd.Flags().BoolP("auto-approve", "y", false, "export results without asking for confirmation")
	runCmd.Flags().Int("max-per-source", 0, "cap the number of records taken from each source. Default is unlimited.")

	viper.BindPFlag("sources.max-per-source", runCmd.Flags().Lookup("max-per-source"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()
	runID := pipeline.NewRunID()

	logger, err := logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		RunID: runID,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the job-sieve", zap.String("version", resolveVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	p, err := preparePipeline(ctx, cmd, runID, config, logger)
	if err != nil {
		logger.Fatal("preparing the pipeline", zap.Error(err))
	}

	for _, status := range filtering.Describe(p.Steps) {
		fields := []zap.Field{zap.String("name", status.Name), zap.Bool("enabled", status.Enabled)}
		if status.Reason != "" {
			fields = append(fields, zap.String("reason", status.Reason))
		}
		logger.Debug("filter configured", fields...)
	}

	records, summary, err := p.Run(ctx)
	if err != nil {
		logger.Fatal("pipeline failed", zap.Error(err))
	}

	if summary.Empty() {
		logger.Info("exiting", zap.String("reason", "no records left after filters"))
		return
	}

	fmt.Println("Top matches:")
	report.Top(os.Stdout, records.Items, topPreview)

	autoApprove := flagIsSet(cmd, "auto-approve")
	for {
		action := PromptExportCSV
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current list of records", zap.Int("count", records.Len()))

		if err := handleAction(action, logger, config, records); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if autoApprove {
			return
		}
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, records *job.Records) error {
	switch action {
	case PromptExportCSV:
		filename, err := report.ExportCSV(records.Items, exportDir(config), time.Now())
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		logger.Info("exported records to csv", zap.String("filename", filename), zap.Int("count", records.Len()))
		return nil
	case PromptExportHTML:
		filename, err := report.ExportHTML(records.Items, exportDir(config), time.Now())
		if err != nil {
			return fmt.Errorf("export html: %w", err)
		}
		logger.Info("exported html digest", zap.String("filename", filename), zap.Int("count", records.Len()))
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(records.ReportByCompany(), "", "  ")
		logger.Info(string(pretty), zap.Int("records count", records.Len()))
		return nil
	case PromptShowRecord:
		return showRecords(logger, records)
	case PromptRecordsToFile:
		filename, err := records.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func exportDir(config *Config) string {
	if config.Export != nil && config.Export.Dir != "" {
		return config.Export.Dir
	}
	return "."
}

func showRecords(logger *zap.Logger, records *job.Records) error {
	for {
		items := make([]string, 0, records.Len()+1)
		for _, rec := range records.Items {
			score := 0.0
			if rec.Score != nil {
				score = *rec.Score
			}
			items = append(items, fmt.Sprintf("%s %.1f / %s / %s", rec.ID, score, rec.Title, rec.Company))
		}

		recordPrompt := promptui.Select{
			Label: "Choose a record and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := recordPrompt.Run()
		if err != nil {
			return err
		}

		if selected == PromptBack {
			return nil
		}

		if err := describeRecord(logger, records, strings.Split(selected, " ")[0]); err != nil {
			return err
		}
	}
}

func describeRecord(logger *zap.Logger, records *job.Records, id string) error {
	rec := records.FindByID(id)
	if rec == nil {
		return fmt.Errorf("there is no such record id %s", id)
	}

	pretty, _ := json.MarshalIndent(rec.ScoreBreakdown, "", "  ")
	logger.Info(string(pretty),
		zap.String("title", rec.Title),
		zap.String("url", rec.URL),
		zap.Strings("why_matched", rec.WhyMatched),
	)
	return nil
}

func flagIsSet(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	flag := cmd.Flag(name)
	return flag != nil && strings.EqualFold(flag.Value.String(), "true")
}

// preparePipeline builds every service of a run from the config.
func preparePipeline(ctx context.Context, cmd *cobra.Command, runID string, config *Config, logger *zap.Logger) (*pipeline.Pipeline, error) {
	var extractor flags.Extractor
	var embedder embedding.Embedder

	if config.AI != nil && config.AI.Enabled {
		flagExtractor, geminiEmbedder, err := newGeminiServices(ctx, config.AI, logger)
		if err != nil {
			// Keyword rules and the local embedder keep the run going.
			logger.Warn("skipping gemini, using local fallbacks", zap.Error(err))
		} else {
			extractor = flagExtractor
			embedder = geminiEmbedder
		}
	}

	var aiTimeout time.Duration
	if config.AI != nil {
		aiTimeout = config.AI.Timeout
	}

	similarity := embedding.NewSimilarity(embedder, config.Profile.Text(), aiTimeout, logger)

	scorer, err := scoring.New(config.Scoring, similarity, logger)
	if err != nil {
		return nil, fmt.Errorf("building scorer: %w", err)
	}

	var keywords []string
	if config.Filter != nil {
		keywords = config.Filter.DomainKeywords
	}

	deps := filtering.Deps{
		Logger:     logger,
		Dedup:      dedup.New(config.Dedup.Path, !flagIsSet(cmd, "dry-run"), logger),
		Freshness:  freshness.New(config.Freshness.MaxAgeDays, time.Now),
		Flags:      flags.NewService(extractor, aiTimeout, logger),
		HardFilter: hardfilter.New(keywords),
		Scorer:     scorer,
	}

	resets := []func(){similarity.Reset}

	maxEnrich, maxDescribe := 0, 0
	if config.Enrichment != nil && config.Enrichment.Enabled {
		tavily, err := newTavily(config.Enrichment, logger)
		if err != nil {
			logger.Warn("skipping company enrichment", zap.Error(err))
		} else {
			deps.Enricher = tavily
			resets = append(resets, tavily.Clear)
			maxEnrich = config.Enrichment.MaxRecords

			if config.Enrichment.Descriptions {
				deps.Describer = tavily
				maxDescribe = config.Enrichment.MaxDescriptions
			}
		}
	}

	p := pipeline.New(runID, deps, &filtering.Config{
		MinScore:    config.Ranking.MinScore,
		TopN:        config.Ranking.TopN,
		MaxEnrich:   maxEnrich,
		MaxDescribe: maxDescribe,
	})
	p.Sources = prepareSources(config.Sources, logger)
	p.Collect = sources.Options{
		Timeout:      config.Sources.Timeout,
		MaxPerSource: config.Sources.MaxPerSource,
	}
	p.Reset = resets

	if flagIsSet(cmd, "skip-dedup") {
		filtering.DisableByName(p.Steps, filtering.NameDedup, "skip requested via flag")
	}
	if deps.Describer == nil {
		filtering.DisableByName(p.Steps, filtering.NameDescribe, "description lookup is not configured")
	}
	if deps.Enricher == nil {
		filtering.DisableByName(p.Steps, filtering.NameEnrich, "enrichment is not configured")
	}

	return p, nil
}

func prepareSources(config *SourcesConfig, logger *zap.Logger) []sources.Source {
	srcs := make([]sources.Source, 0, 2)

	if len(config.Files) > 0 {
		srcs = append(srcs, sources.NewFile(config.Files...))
	}

	if config.Remotive != nil && config.Remotive.Enabled {
		srcs = append(srcs, sources.NewRemotive(config.Remotive.RemotiveConfig, logger))
	}

	if len(srcs) == 0 {
		logger.Warn("no sources configured", zap.String("hint", "set sources.files or enable sources.remotive"))
	}

	return srcs
}

func newGeminiServices(ctx context.Context, config *AIConfig, logger *zap.Logger) (flags.Extractor, embedding.Embedder, error) {
	provider := strings.TrimSpace(strings.ToLower(config.Provider))
	if provider != "" && provider != ai.ProviderGemini {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", config.Provider)
	}

	cfg := config.Gemini
	if cfg == nil {
		cfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, nil, err
	}

	generator, err := gemini.NewGenerator(client, gemini.GeneratorOptions{
		Model:             cfg.Model,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerMinute: cfg.RequestsPerMinute,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	extractor, err := gemini.NewFlagExtractor(generator, logger)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := gemini.NewEmbedder(client, cfg.EmbeddingModel)
	if err != nil {
		return nil, nil, err
	}

	return extractor, embedder, nil
}

func newTavily(config *EnrichmentConfig, logger *zap.Logger) (*enrich.Tavily, error) {
	apiKey, err := secrets.Load(secrets.Source{
		Name:  "tavily api key",
		Value: config.APIKey,
		File:  config.APIKeyFile,
		Env:   "TAVILY_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set enrichment.api-key-file or TAVILY_API_KEY)", err)
	}

	opts := []enrich.Option{}
	if config.Interval > 0 {
		opts = append(opts, enrich.WithInterval(config.Interval))
	}

	return enrich.NewTavily(apiKey, logger, opts...)
}
