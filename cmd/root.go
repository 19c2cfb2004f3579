package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/EberSantana/flowedu-sub004/internal/config"
	"github.com/EberSantana/flowedu-sub004/internal/logging"
	"github.com/EberSantana/flowedu-sub004/internal/store"
)

var (
	// cfg and logger are set by the root pre-run hook.
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "flowedu",
	Short: "AI grading with teacher triage and spaced-repetition review",
	Long: "flowedu grades free-text answers with an AI judge, routes low-confidence\n" +
		"judgments to teachers and schedules each answer for spaced-repetition review.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadRuntimeConfig(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ./config.yaml or ~/.config/flowedu/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides store.path and FLOWEDU_DB)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(finalizeCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exercisesCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadRuntimeConfig(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		c.Store.Path = p
	}

	log, err := logging.New(c.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	cfg = c
	logger = log
	zap.ReplaceGlobals(log)
	return nil
}

// resolveDBPath returns the database path using --db or store.path
// (highest priority), then FLOWEDU_DB, then the default XDG path.
func resolveDBPath() (string, error) {
	if cfg != nil && cfg.Store.Path != "" {
		return cfg.Store.Path, store.EnsureDir(cfg.Store.Path)
	}
	return store.DefaultDBPath()
}
