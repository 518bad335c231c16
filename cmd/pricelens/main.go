package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/auenatural/pricelens/config"
	"github.com/auenatural/pricelens/internal/delivery/report"
	"github.com/auenatural/pricelens/internal/domain"
	"github.com/auenatural/pricelens/internal/infrastructure/embedcache"
	"github.com/auenatural/pricelens/internal/infrastructure/embedding"
	"github.com/auenatural/pricelens/internal/infrastructure/loader"
	"github.com/auenatural/pricelens/internal/usecase"
)

func main() {
	// Local .env is optional; viper picks the variables up afterwards.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:           "pricelens",
		Short:         "Cross-retailer product matching for competitive price intelligence",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCacheCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var inputPath string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the matching pipeline over a cleaned products CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				// Configuration problems fail the whole run before scoring.
				return err
			}
			if outputDir != "" {
				cfg.Output.Dir = outputDir
			}

			logger, err := buildLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()
			sugar := logger.Sugar()

			embedder := embedding.NewClient(
				cfg.Embedding.Endpoint, cfg.Embedding.APIKey, cfg.Embedding.Model,
				cfg.Embedding.RequestsPerSec, sugar)

			cache, memoryOnly := openCache(cfg, embedder, sugar)
			defer func() {
				if err := cache.Flush(); err != nil {
					sugar.Warnw("embedding cache flush failed, entries kept in memory only", "error", err)
				}
			}()

			listings, err := loader.ReadListings(inputPath)
			if err != nil {
				return err
			}
			sugar.Infow("loaded listings", "path", inputPath, "count", len(listings))

			pipeline := usecase.NewPipeline(cfg, cache, sugar)
			pipeline.CacheMemoryOnly = memoryOnly

			result, err := pipeline.Run(cmd.Context(), listings)
			if err != nil {
				return err
			}

			writer, err := report.NewWriter(cfg.Output.Dir)
			if err != nil {
				return err
			}
			matchesPath, err := writer.WriteMatches(result.Matches)
			if err != nil {
				return err
			}
			unmatchedPath, err := writer.WriteUnmatched(result.Unmatched)
			if err != nil {
				return err
			}
			summaryPath, err := writer.WriteSummary(result.Summary)
			if err != nil {
				return err
			}

			sugar.Infow("outputs written",
				"matches", matchesPath, "unmatched", unmatchedPath, "summary", summaryPath)
			fmt.Printf("Match pairs: %d (recovery: %d)\n", result.Summary.MatchPairs, result.Summary.RecoveryPairs)
			fmt.Printf("Matched products: %d, unmatched: %d (coverage %.1f%%)\n",
				result.Summary.MatchedProducts, result.Summary.UnmatchedProducts, result.Summary.CoveragePct)
			if result.Summary.SemanticDegradedPairs > 0 {
				fmt.Printf("WARNING: %d pairs scored lexical-only (embedding backend failures)\n",
					result.Summary.SemanticDegradedPairs)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "data/processed/cleaned_data.csv", "cleaned products CSV")
	cmd.Flags().StringVarP(&outputDir, "out-dir", "o", "", "output directory (overrides config)")
	return cmd
}

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the persistent embedding cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached embedding vector",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg.Debug)
			if err != nil {
				return err
			}
			defer logger.Sync()
			sugar := logger.Sugar()

			cache, err := embedcache.OpenSQLite(cfg.Cache.Path, cfg.Embedding.Model, nil, sugar)
			if err != nil {
				return err
			}
			defer cache.Close()

			if err := cache.Clear(); err != nil {
				return err
			}
			fmt.Println("embedding cache cleared:", cfg.Cache.Path)
			return nil
		},
	}

	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}

// openCache opens the durable cache store, degrading to an in-memory cache
// when the store is unavailable. The degradation is surfaced in the Summary.
func openCache(cfg *config.Config, embedder domain.Embedder, sugar *zap.SugaredLogger) (domain.EmbeddingCache, bool) {
	if cfg.Cache.Path == "" {
		return embedcache.NewMemory(embedder), true
	}
	cache, err := embedcache.OpenSQLite(cfg.Cache.Path, cfg.Embedding.Model, embedder, sugar)
	if err != nil {
		if errors.Is(err, domain.ErrCacheUnavailable) {
			sugar.Warnw("embedding cache store unavailable, using in-memory cache for this run",
				"path", cfg.Cache.Path, "error", err)
			return embedcache.NewMemory(embedder), true
		}
		sugar.Warnw("unexpected cache error, using in-memory cache", "error", err)
		return embedcache.NewMemory(embedder), true
	}
	return cache, false
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}
