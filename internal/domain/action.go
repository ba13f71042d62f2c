package domain

import "fmt"

// ActionType enumerates the operations an assistant response may request.
type ActionType string

const (
	ActionExecute   ActionType = "execute"
	ActionReadFile  ActionType = "read_file"
	ActionWriteFile ActionType = "write_file"
)

// ActionRequest is one structured action extracted from assistant output.
// It is parsed at most once per response and consumed at most once.
type ActionRequest struct {
	Type        ActionType `json:"action"`
	Command     string     `json:"command,omitempty"`
	Path        string     `json:"path,omitempty"`
	Content     string     `json:"content,omitempty"`
	WorkDir     string     `json:"cwd,omitempty"`
	Description string     `json:"description,omitempty"`
}

// ExecutionReport is the uniform outcome of running an ActionRequest.
// Failures are reported here, never raised past the executor boundary.
type ExecutionReport struct {
	Success bool
	Action  ActionType
	Detail  string
	Output  string
}

// Render formats the report for the chat surface.
func (r ExecutionReport) Render() string {
	status := "✅"
	if !r.Success {
		status = "❌"
	}
	if r.Output == "" {
		return fmt.Sprintf("%s %s", status, r.Detail)
	}
	return fmt.Sprintf("%s %s\n\n%s", status, r.Detail, r.Output)
}

// PolicyDecision is a permit/deny outcome with its reason. Decisions are
// deterministic for a given static policy configuration.
type PolicyDecision struct {
	Allowed bool
	Reason  string
}
