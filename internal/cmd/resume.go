package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskforge/taskforge/internal/config"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue a run in the current directory",
	Long: `Resume re-enters the bootstrap and scheduler pipeline for the run state
already on disk under .taskforge, picking up wherever the last invocation
left off. Equivalent to the abstract --continue flag.`,
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	rc, err := newRunContext(cfg, workDir)
	if err != nil {
		return err
	}
	defer rc.logger.Close()

	// The objective is ignored once INITIAL_PROMPT.md already exists;
	// Bootstrap.Run's idempotency check handles resume without re-seeding.
	return driveRun(rc, "")
}
