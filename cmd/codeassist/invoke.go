package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Strob0t/CodeAssist/internal/domain"
)

var invokeTool string

var invokeCmd = &cobra.Command{
	Use:   "invoke [--tool name] <text|->",
	Short: "Run one request synchronously and print the output",
	Long: `Run one request through the planner and executor (or straight through a
named tool with --tool) and print the result. Pass "-" to read the input
from stdin.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logs, err := loadConfig()
		if err != nil {
			return err
		}
		defer flushLogs(logs)

		input, err := readInput(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := buildApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := invoke(ctx, a, invokeTool, input)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
		return err
	},
}

func init() {
	invokeCmd.Flags().StringVar(&invokeTool, "tool", "", "invoke this tool directly instead of planning")
}

func invoke(ctx context.Context, a *app, toolName, input string) (string, error) {
	if toolName == "" {
		st, err := a.runner.Run(ctx, input)
		if err != nil {
			return "", err
		}
		return st.Output, nil
	}

	d, ok := a.registry.ByName(toolName)
	if !ok {
		return "", fmt.Errorf("%s: %w (available: %s)", toolName, domain.ErrToolNotFound, a.registry.NamesJoined(", "))
	}
	return d.Handler.Invoke(ctx, input)
}

// readInput joins args, or reads stdin when the only argument is "-".
func readInput(stdin io.Reader, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
	return strings.Join(args, " "), nil
}
