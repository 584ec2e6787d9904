package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tokenshap/tokenshap-go/internal/api"
	"github.com/tokenshap/tokenshap-go/internal/approx"
	"github.com/tokenshap/tokenshap-go/internal/config"
	"github.com/tokenshap/tokenshap-go/internal/explain"
	"github.com/tokenshap/tokenshap-go/internal/game"
	"github.com/tokenshap/tokenshap-go/internal/scorer"
	"github.com/tokenshap/tokenshap-go/internal/store"
	"github.com/tokenshap/tokenshap-go/internal/tokens"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tokenshap",
	Short: "Shapley interaction explanations for black-box sequence classifiers",
	Long: `tokenshap treats a black-box sequence classifier as a cooperative game
over its input tokens and estimates Shapley interaction values for tokens
and token subsets from a bounded budget of model evaluations.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the explanation HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		db, err := store.NewSQLiteDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(); err != nil {
			return err
		}

		sc, err := buildScorer(cfg.Scorer)
		if err != nil {
			return err
		}

		tok, ok := tokens.Get(cfg.Defaults.Tokenizer)
		if !ok {
			return fmt.Errorf("unknown tokenizer %q", cfg.Defaults.Tokenizer)
		}

		explainer := explain.New(tok, sc, explain.WithStore(db), explain.WithLogger(logger))
		server := api.NewServer(db, explainer, api.Defaults{
			Index:     approx.Index(cfg.Defaults.Index),
			MaxOrder:  cfg.Defaults.MaxOrder,
			Budget:    cfg.Defaults.Budget,
			Estimator: approx.Estimator(cfg.Defaults.Estimator),
		}, logger)

		httpServer := &http.Server{
			Addr:    cfg.Listen,
			Handler: server.Routes(),
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("server listening", zap.String("addr", cfg.Listen))
			errCh <- httpServer.ListenAndServe()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(ctx)
		}
	},
}

var (
	explainScript    string
	explainURL       string
	explainIndex     string
	explainOrder     int
	explainBudget    int
	explainEstimator string
	explainSeed      int64
)

var explainCmd = &cobra.Command{
	Use:   "explain [text]",
	Short: "Explain one input and print its interaction values",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scorerCfg := config.ScorerConfig{}
		switch {
		case explainScript != "":
			scorerCfg.Type = "script"
			scorerCfg.ScriptPath = explainScript
		case explainURL != "":
			scorerCfg.Type = "http"
			scorerCfg.URL = explainURL
		default:
			return fmt.Errorf("one of --script or --url is required")
		}
		sc, err := buildScorer(scorerCfg)
		if err != nil {
			return err
		}

		explainer := explain.New(tokens.NewWordTokenizer(), sc, explain.WithLogger(logger))
		run, err := explainer.Explain(cmd.Context(), args[0], approx.Request{
			Index:     approx.Index(explainIndex),
			MaxOrder:  explainOrder,
			Budget:    explainBudget,
			Estimator: approx.Estimator(explainEstimator),
			Seed:      explainSeed,
		})
		if err != nil {
			return err
		}

		printRun(run)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the engine version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(explain.EngineVersion)
	},
}

func buildScorer(cfg config.ScorerConfig) (game.Scorer, error) {
	switch cfg.Type {
	case "script":
		src, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return nil, fmt.Errorf("read scorer script: %w", err)
		}
		return scorer.NewScriptScorer(string(src))
	case "http":
		httpCfg := scorer.HTTPConfig{URL: cfg.URL, MaxRetries: cfg.MaxRetries}
		if cfg.KeyringAccount != "" {
			ring := scorer.NewKeyringStore(cfg.KeyringService, cfg.KeyringFallbackPath)
			token, err := ring.GetToken(cfg.KeyringAccount)
			if err != nil {
				return nil, fmt.Errorf("resolve scorer token: %w", err)
			}
			httpCfg.Token = token
		}
		return scorer.NewHTTPScorer(httpCfg)
	default:
		return nil, fmt.Errorf("unknown scorer type %q", cfg.Type)
	}
}

func printRun(run *explain.Run) {
	fmt.Printf("run %s  (%d tokens, baseline %.6f, full %.6f)\n",
		run.ID, len(run.Tokens), run.Baseline, run.FullValue)
	fmt.Printf("index %s  max order %d  estimated %v  budget used %d\n\n",
		run.Values.Index(), run.Values.MaxOrder(), run.Values.Estimated(), run.Values.BudgetUsed())

	type entry struct {
		label string
		order int
		value float64
	}
	var entries []entry
	for _, subset := range run.Values.Subsets() {
		v, _ := run.Values.Get(subset...)
		parts := make([]string, len(subset))
		for i, p := range subset {
			parts[i] = run.Tokens[p]
		}
		entries = append(entries, entry{label: strings.Join(parts, " + "), order: len(subset), value: v})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].order != entries[j].order {
			return entries[i].order < entries[j].order
		}
		return entries[i].value > entries[j].value
	})
	for _, e := range entries {
		fmt.Printf("%10.6f  %s\n", e.value, e.label)
	}
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "tokenshap.yaml", "path to the configuration file")

	explainCmd.Flags().StringVar(&explainScript, "script", "", "path to a JavaScript scorer")
	explainCmd.Flags().StringVar(&explainURL, "url", "", "scoring endpoint URL")
	explainCmd.Flags().StringVar(&explainIndex, "index", "SII", "interaction index variant (SV, SII, k-SII)")
	explainCmd.Flags().IntVar(&explainOrder, "order", 2, "maximum interaction order")
	explainCmd.Flags().IntVar(&explainBudget, "budget", 512, "evaluation budget in distinct coalitions")
	explainCmd.Flags().StringVar(&explainEstimator, "estimator", "stratified", "estimator (stratified, permutation)")
	explainCmd.Flags().Int64Var(&explainSeed, "seed", 0, "sampling seed (0 for random)")

	rootCmd.AddCommand(serveCmd, explainCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
