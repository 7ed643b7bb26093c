package main

import (
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the registered tools",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logs, err := loadConfig()
		if err != nil {
			return err
		}
		defer flushLogs(logs)

		a, err := buildApp(cmd.Context(), cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = w.Write([]byte("NAME\tTAGS\tDESCRIPTION\n"))
		for _, d := range a.registry.List() {
			_, _ = w.Write([]byte(d.Name + "\t" + strings.Join(d.Tags, ",") + "\t" + d.Description + "\n"))
		}
		return w.Flush()
	},
}
