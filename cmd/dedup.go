package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-sieve/internal/dedup"
	"github.com/spigell/job-sieve/internal/logger"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Inspect or reset the store of already seen records",
}

var dedupClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every seen record so the next run starts from scratch",
	Run: func(_ *cobra.Command, _ []string) {
		logger, store := dedupStore()
		if err := store.Clear(); err != nil {
			logger.Fatal("clearing the dedup store", zap.Error(err))
		}
		logger.Info("dedup store cleared", zap.String("path", store.Path()))
	},
}

var dedupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print the number of seen records",
	Run: func(_ *cobra.Command, _ []string) {
		_, store := dedupStore()
		fmt.Printf("%s: %d seen records\n", store.Path(), len(store.Load()))
	},
}

func init() {
	dedupCmd.AddCommand(dedupClearCmd, dedupStatsCmd)
	rootCmd.AddCommand(dedupCmd)
}

func dedupStore() (*zap.Logger, *dedup.Store) {
	logger, err := logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	return logger, dedup.New(viper.GetString("dedup.path"), true, logger)
}
