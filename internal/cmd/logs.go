package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/taskforge/taskforge/internal/logging"
	"github.com/taskforge/taskforge/internal/state"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the run's structured debug log",
	Long: `Logs reads .taskforge/debug.log, filters it by task, stage, level, age,
or message substring, and prints matching entries or exports them to a
file with --export.`,
	RunE: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.Flags().String("task", "", "filter to entries from this task id")
	logsCmd.Flags().String("stage", "", "filter to entries from this pipeline stage")
	logsCmd.Flags().String("level", "", "minimum level: DEBUG, INFO, WARN, or ERROR")
	logsCmd.Flags().String("contains", "", "filter to entries whose message contains this substring")
	logsCmd.Flags().Duration("since", 0, "filter to entries no older than this duration")
	logsCmd.Flags().String("export", "", "write matching entries to this file instead of stdout")
	logsCmd.Flags().String("format", "text", "export format when --export is set: text, json, or csv")
}

func runLogs(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	coordDir := filepath.Join(workDir, state.CoordDirName)
	entries, err := logging.AggregateLogs(coordDir)
	if err != nil {
		return fmt.Errorf("aggregate logs: %w", err)
	}

	filtered := logging.FilterLogs(entries, logLogFilter(cmd))

	if exportPath, _ := cmd.Flags().GetString("export"); exportPath != "" {
		format, _ := cmd.Flags().GetString("format")
		if err := logging.ExportLogEntries(filtered, exportPath, format); err != nil {
			return fmt.Errorf("export logs: %w", err)
		}
		fmt.Printf("Wrote %d entries to %s.\n", len(filtered), exportPath)
		return nil
	}

	for _, e := range filtered {
		fmt.Printf("[%s] %-5s %s\n", e.Timestamp.Format(time.RFC3339), e.Level, e.Message)
	}
	return nil
}

// logLogFilter builds a logging.LogFilter from the logs command's flags.
func logLogFilter(cmd *cobra.Command) logging.LogFilter {
	var filter logging.LogFilter
	filter.TaskID, _ = cmd.Flags().GetString("task")
	filter.Stage, _ = cmd.Flags().GetString("stage")
	filter.Level, _ = cmd.Flags().GetString("level")
	filter.MessageContains, _ = cmd.Flags().GetString("contains")
	if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
		filter.StartTime = time.Now().Add(-since)
	}
	return filter
}
