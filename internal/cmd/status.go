package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/taskforge/taskforge/internal/state"
	"gopkg.in/yaml.v3"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current run's task status",
	Long:  `Display every task's status, attempt count, and current phase for the run under the current directory.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().String("format", "table", "output format: table, json, or yaml")
}

// taskStatus is a flattened, serializable view of one task's state for
// the status command's json/yaml output.
type taskStatus struct {
	ID       string `json:"id" yaml:"id"`
	Status   string `json:"status" yaml:"status"`
	Attempts int    `json:"attempts" yaml:"attempts"`
	Phase    string `json:"currentPhase" yaml:"currentPhase"`
	Approved bool   `json:"approved" yaml:"approved"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	store := state.NewStore(afero.NewOsFs(), workDir)
	ids, err := store.ListTasks()
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	statuses := make([]taskStatus, 0, len(ids))
	for _, id := range ids {
		record, err := store.ReadExecution(id)
		if err != nil {
			statuses = append(statuses, taskStatus{ID: id, Status: "unknown"})
			continue
		}
		statuses = append(statuses, taskStatus{
			ID:       id,
			Status:   string(record.Status),
			Attempts: record.Attempts,
			Phase:    record.CurrentPhase,
			Approved: store.HasApprovedReview(id),
		})
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "json":
		return printJSON(statuses)
	case "yaml":
		return printYAML(statuses)
	default:
		printTable(statuses, store.HasCompletionMarker())
		return nil
	}
}

func printJSON(statuses []taskStatus) error {
	data, err := json.MarshalIndent(statuses, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printYAML(statuses []taskStatus) error {
	data, err := yaml.Marshal(statuses)
	if err != nil {
		return err
	}
	fmt.Print(string(data))
	return nil
}

func printTable(statuses []taskStatus, complete bool) {
	if len(statuses) == 0 {
		fmt.Println("No tasks found under .taskforge.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tSTATUS\tATTEMPTS\tPHASE\tAPPROVED")
	for _, s := range statuses {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%t\n", s.ID, s.Status, s.Attempts, s.Phase, s.Approved)
	}
	_ = w.Flush()

	if complete {
		fmt.Println("\nRun complete.")
	}
}
