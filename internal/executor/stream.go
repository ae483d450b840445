package executor

import "encoding/json"

// envelope is the optional JSON shape an executor backend's output line may
// take, per §4.2's protocol note: the backend emits a line-delimited JSON
// stream, and the supervisor extracts message text and discards structural
// frames. Unknown fields are ignored; a line that isn't valid JSON at all
// is forwarded to the log verbatim and produces no message.
type envelope struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// structuralTypes lists envelope "type" values considered bookkeeping
// rather than user-facing text, mirroring the kinds of frames a streaming
// CLI typically emits between messages (lifecycle and tool-use metadata).
var structuralTypes = map[string]bool{
	"system":      true,
	"tool_use":    true,
	"tool_result": true,
	"usage":       true,
}

// extractMessage attempts to parse line as a JSON event envelope and
// returns its message text. Lines that don't parse as JSON, or that parse
// but carry no message (structural frames), report ok=false.
func extractMessage(line string) (string, bool) {
	var e envelope
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return "", false
	}
	if structuralTypes[e.Type] {
		return "", false
	}
	if e.Message == "" {
		return "", false
	}
	return e.Message, true
}
