package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"llm-eval-app/internal/config"
	"llm-eval-app/internal/db"
	"llm-eval-app/internal/eval"
	"llm-eval-app/internal/logging"
	"llm-eval-app/internal/schemas"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "evalctl",
		Short: "Run prompt evaluations from the command line",
		Long: `evalctl sends a system prompt and its test cases to the configured
generation targets, scores every answer with the judge model and prints the
result as JSON. Targets and judge come from EVAL_CONFIG and the provider API keys.`,
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildRunCmd(), buildExperimentsCmd())
	return rootCmd
}

func buildRunCmd() *cobra.Command {
	var (
		file        string
		save        bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate the test cases in a YAML batch file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("concurrency") {
				cfg.Eval.Concurrency = concurrency
			}
			logger := logging.New(cfg.LogLevel)
			defer func() { _ = logger.Sync() }()

			req, err := loadBatchFile(file)
			if err != nil {
				return err
			}
			orch, err := cfg.Orchestrator(ctx, logger)
			if err != nil {
				return err
			}

			var saver batchSaver
			if save {
				dbase, err := db.Open(ctx, cfg.DatabaseURL)
				if err != nil {
					return err
				}
				defer dbase.Close()
				saver = db.NewStore(dbase)
			}
			return runBatch(ctx, orch, saver, req, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML batch file with systemRole and testCases")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the result to DATABASE_URL")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "Model calls in flight at once")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func buildExperimentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "experiments",
		Short: "Print stored experiments with their scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dbase, err := db.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer dbase.Close()
			exps, err := db.NewStore(dbase).ListExperiments(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), exps)
		},
	}
}

type evaluator interface {
	Run(ctx context.Context, systemRole string, testCases []eval.TestCase) (*eval.Batch, error)
}

type batchSaver interface {
	SaveBatch(ctx context.Context, systemPrompt string, cases []eval.TestCase, batch *eval.Batch) (int64, error)
}

func runBatch(ctx context.Context, e evaluator, saver batchSaver, req schemas.EvaluateRequest, out io.Writer, logger *zap.Logger) error {
	batch, err := e.Run(ctx, req.SystemRole, req.TestCases)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	resp := schemas.EvaluateResponse{Batch: *batch}
	if saver != nil {
		id, err := saver.SaveBatch(ctx, req.SystemRole, req.TestCases, batch)
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		logger.Info("batch saved", zap.Int64("experiment_id", id))
		resp.ExperimentID = &id
	}
	return writeJSON(out, resp)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
