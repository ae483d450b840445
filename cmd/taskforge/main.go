// Command taskforge runs the Task Forge orchestrator: run, resume, reset,
// status, cancel, and logs against the coordination directory rooted at
// the current working directory.
package main

import (
	"fmt"
	"os"

	"github.com/taskforge/taskforge/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
