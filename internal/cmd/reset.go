package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/taskforge/taskforge/internal/state"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard run state and start fresh",
	Long: `Reset removes the .taskforge coordination directory so the next run
starts from nothing. An unfinished run (no done.txt completion marker) is
only discarded with --yes.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().Bool("yes", false, "confirm discarding an unfinished run's state")
}

func runReset(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if err := discardRunState(workDir, yes); err != nil {
		return err
	}

	fmt.Println("Run state discarded.")
	return nil
}

// discardRunState removes the coordination directory. If a run exists and
// is unfinished (no completion marker), it refuses unless confirmed, since
// this is a destructive, irreversible operation on unreplicated state.
func discardRunState(workDir string, confirmed bool) error {
	store := state.NewStore(afero.NewOsFs(), workDir)
	coordDir := store.Paths().CoordDir()

	if _, err := os.Stat(coordDir); os.IsNotExist(err) {
		return nil
	}

	tasks, err := store.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	unfinished := len(tasks) > 0 && !store.HasCompletionMarker()
	if unfinished && !confirmed {
		return fmt.Errorf("run under %s is unfinished; pass --yes to discard it", filepath.Base(coordDir))
	}

	return os.RemoveAll(coordDir)
}
