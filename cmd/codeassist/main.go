package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Strob0t/CodeAssist/internal/config"
	"github.com/Strob0t/CodeAssist/internal/logger"
)

const version = "0.1.0"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "codeassist",
	Short: "Tool-routing code assistant",
	Long: `CodeAssist routes free-text requests to code tools (reviewer,
performance optimizer, unit test generator, code generator and any
user-defined pipelines) and runs them as background tasks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "path to the YAML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "codeassist version %s\n", version)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig() (*config.Config, logger.Flusher, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log, logs := logger.New(cfg.Logging)
	slog.SetDefault(log)
	return cfg, logs, nil
}

const logFlushTimeout = 5 * time.Second

// flushLogs drains buffered log records. Records logged afterwards are
// written synchronously.
func flushLogs(logs logger.Flusher) {
	ctx, cancel := context.WithTimeout(context.Background(), logFlushTimeout)
	defer cancel()
	if err := logs.Flush(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "codeassist:", err)
	}
}
