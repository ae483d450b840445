package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/taskforge/taskforge/internal/bootstrap"
	"github.com/taskforge/taskforge/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start a new run from a seed prompt",
	Long: `Start decomposes the objective named by --prompt into a task graph and
drives it to completion. If a prior unfinished run exists in the current
directory, use resume instead. --fresh discards the state of a finished
run before starting; it refuses to discard an unfinished run, which only
reset --yes removes.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("prompt", "", "seed prompt describing the run's objective")
	runCmd.Flags().Bool("fresh", false, "discard a finished run's state under .taskforge before starting (an unfinished run is refused)")
	runCmd.Flags().Bool("push", true, "push commits to the remote at commit points")
	runCmd.Flags().Bool("same-branch", false, "commit on the current branch (runs never create a per-run branch, so this has no effect)")
	runCmd.Flags().Int("limit", 0, "attempt budget per task (0 uses the configured default)")
	runCmd.Flags().Bool("no-limit", false, "disable the per-task attempt budget")
	runCmd.Flags().Int("max-concurrent", 0, "scheduler concurrency cap (0 uses the configured default)")
	runCmd.Flags().String("backend", "", "backend repository path, enabling multi-repo mode")
	runCmd.Flags().String("frontend", "", "frontend repository path, enabling multi-repo mode")
	runCmd.Flags().String("executor", "", "executor backend name (empty uses the configured default)")
	runCmd.Flags().String("steps", "", "restrict to a comma-separated list of stage names (accepted for interface compatibility; see DESIGN.md)")

	_ = runCmd.MarkFlagRequired("prompt")
}

func runRun(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	fresh, _ := cmd.Flags().GetBool("fresh")
	if fresh {
		if err := discardRunState(workDir, false); err != nil {
			return err
		}
	}

	cfg, err := resolveRunConfig(cmd)
	if err != nil {
		return err
	}

	objective, _ := cmd.Flags().GetString("prompt")

	rc, err := newRunContext(cfg, workDir)
	if err != nil {
		return err
	}
	defer rc.logger.Close()

	return driveRun(rc, objective)
}

// resolveRunConfig loads viper's merged configuration and layers the run
// command's own flags on top, since --limit/--no-limit/--max-concurrent/
// --backend/--frontend have bespoke semantics beyond a plain pflag bind.
func resolveRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	if noLimit, _ := cmd.Flags().GetBool("no-limit"); noLimit {
		cfg.Run.AttemptLimit = 0
	} else if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 {
		cfg.Run.AttemptLimit = limit
	}

	if maxConcurrent, _ := cmd.Flags().GetInt("max-concurrent"); maxConcurrent > 0 {
		cfg.Run.MaxConcurrent = maxConcurrent
	}

	if cmd.Flags().Changed("push") {
		push, _ := cmd.Flags().GetBool("push")
		cfg.Run.Push = push
	}
	if cmd.Flags().Changed("same-branch") {
		sameBranch, _ := cmd.Flags().GetBool("same-branch")
		cfg.Run.SameBranch = sameBranch
	}
	if executorName, _ := cmd.Flags().GetString("executor"); executorName != "" {
		cfg.Executor.Backend = executorName
	}

	backend, _ := cmd.Flags().GetString("backend")
	frontend, _ := cmd.Flags().GetString("frontend")
	if backend != "" || frontend != "" {
		cfg.MultiRepo.Enabled = true
		cfg.MultiRepo.Mode = "separate"
		cfg.MultiRepo.Backend = backend
		cfg.MultiRepo.Frontend = frontend
	}

	return cfg, nil
}

// driveRun runs the bootstrap pipeline followed by the scheduler, mapping
// ErrClarificationPending to a clean halt rather than a failure: the
// operator answers CLARIFICATION_ANSWERS.json and re-invokes run or resume.
func driveRun(rc *runContext, objective string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := writePIDFile(rc.store); err != nil {
		return fmt.Errorf("write run pid file: %w", err)
	}

	if addr := rc.cfg.Resources.MetricsAddr; addr != "" {
		go func() {
			if err := rc.collector.Serve(ctx, addr); err != nil {
				rc.logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	if err := rc.bootstrap.Run(ctx, objective); err != nil {
		if errors.Is(err, bootstrap.ErrClarificationPending) {
			fmt.Println("Run halted pending operator clarification. Answer CLARIFICATION_QUESTIONS.json, write CLARIFICATION_ANSWERS.json, then run `taskforge resume`.")
			return nil
		}
		return fmt.Errorf("bootstrap: %w", err)
	}

	if err := rc.scheduler.Run(ctx); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	fmt.Printf("Run %s complete.\n", rc.runID)
	return nil
}
