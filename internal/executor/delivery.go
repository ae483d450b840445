package executor

// PromptDelivery abstracts how a prompt reaches the executor subprocess:
// some backends accept a file reference as a command-line argument, others
// expect the prompt on stdin. The Supervisor is indifferent to which; it
// only needs to know what arguments to pass and whether to wire stdin.
type PromptDelivery interface {
	// Args returns the command-line arguments for one invocation, given
	// the selected model tier and the path to the temp file holding the
	// prompt text.
	Args(model, promptPath string) []string
	// UsesStdin reports whether the Supervisor should additionally open
	// promptPath and attach it as the subprocess's stdin.
	UsesStdin() bool
}

// fileRefDelivery passes the prompt as a file path argument, matching
// backends that accept an "@file" or plain-path style reference.
type fileRefDelivery struct {
	modelFlag string
}

func (d fileRefDelivery) Args(model, promptPath string) []string {
	args := []string{"--print", "--output-format", "stream-json", "--dangerously-skip-permissions"}
	if model != "" && d.modelFlag != "" {
		args = append(args, d.modelFlag, model)
	}
	args = append(args, "--prompt-file", promptPath)
	return args
}

func (d fileRefDelivery) UsesStdin() bool { return false }

// stdinDelivery has the Supervisor pipe the prompt file's contents to the
// subprocess's stdin, for backends with no file-reference flag.
type stdinDelivery struct {
	modelFlag string
}

func (d stdinDelivery) Args(model, _ string) []string {
	args := []string{"--print", "--output-format", "stream-json"}
	if model != "" && d.modelFlag != "" {
		args = append(args, d.modelFlag, model)
	}
	return args
}

func (d stdinDelivery) UsesStdin() bool { return true }

// deliveryForBackend selects a built-in delivery strategy by backend binary
// name. Unrecognized backends default to file-reference delivery; callers
// can override via WithDelivery.
func deliveryForBackend(backend string) PromptDelivery {
	switch backend {
	case "codex":
		return stdinDelivery{modelFlag: "--model"}
	case "claude":
		return fileRefDelivery{modelFlag: "--model"}
	default:
		return fileRefDelivery{modelFlag: "--model"}
	}
}
