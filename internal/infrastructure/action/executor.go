package action

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// Executor implements the ActionRunner port. Every action passes through the
// policy guard before touching the filesystem or spawning a process, and
// every outcome, including denials and timeouts, comes back as a report.
type Executor struct {
	policy  ports.PolicyService
	logger  ports.Logger
	shell   string
	timeout time.Duration
}

// NewExecutor builds an Executor. Shell defaults to $SHELL, then /bin/sh.
func NewExecutor(policy ports.PolicyService, logger ports.Logger) *Executor {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Executor{
		policy:  policy,
		logger:  logger,
		shell:   shell,
		timeout: domain.DefaultActionTimeout,
	}
}

// Execute runs a parsed action and reports the outcome. It never returns an
// error; policy denials, subprocess failures, and unknown action tags are all
// reported outcomes.
func (e *Executor) Execute(ctx context.Context, req domain.ActionRequest) domain.ExecutionReport {
	switch req.Type {
	case domain.ActionExecute:
		return e.runCommand(ctx, req)
	case domain.ActionReadFile:
		return e.readFile(req)
	case domain.ActionWriteFile:
		return e.writeFile(req)
	default:
		return domain.ExecutionReport{
			Action: req.Type,
			Detail: fmt.Sprintf("unknown action type: %s", req.Type),
		}
	}
}

func (e *Executor) runCommand(ctx context.Context, req domain.ActionRequest) domain.ExecutionReport {
	report := domain.ExecutionReport{
		Action: domain.ActionExecute,
		Detail: describeCommand(req),
	}

	if decision := e.policy.CheckCommand(req.Command); !decision.Allowed {
		report.Output = decision.Reason
		return report
	}
	if req.WorkDir != "" {
		if decision := e.policy.CheckPath(req.WorkDir); !decision.Allowed {
			report.Output = decision.Reason
			return report
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.shell, "-c", req.Command)
	cmd.Dir = req.WorkDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[stderr]:\n" + stderr.String()
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		report.Output = fmt.Sprintf("command timed out after %s", e.timeout)
		return report
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			report.Output = fmt.Sprintf("command failed (code=%d):\n%s", exitErr.ExitCode(), output)
		} else {
			report.Output = fmt.Sprintf("command failed: %v", err)
		}
		return report
	}

	report.Success = true
	if output == "" {
		output = "command completed with no output"
	}
	report.Output = output
	return report
}

func (e *Executor) readFile(req domain.ActionRequest) domain.ExecutionReport {
	report := domain.ExecutionReport{
		Action: domain.ActionReadFile,
		Detail: fmt.Sprintf("read file: %s", req.Path),
	}

	if decision := e.policy.CheckPath(req.Path); !decision.Allowed {
		report.Output = decision.Reason
		return report
	}

	data, err := os.ReadFile(expandHome(req.Path))
	if err != nil {
		if os.IsNotExist(err) {
			report.Output = fmt.Sprintf("file not found: %s", req.Path)
		} else {
			report.Output = fmt.Sprintf("read failed: %v", err)
		}
		return report
	}

	report.Success = true
	report.Output = string(data)
	return report
}

func (e *Executor) writeFile(req domain.ActionRequest) domain.ExecutionReport {
	report := domain.ExecutionReport{Action: domain.ActionWriteFile}

	if decision := e.policy.CheckPath(req.Path); !decision.Allowed {
		report.Detail = fmt.Sprintf("write file: %s", req.Path)
		report.Output = decision.Reason
		return report
	}

	abs, err := filepath.Abs(expandHome(req.Path))
	if err != nil {
		report.Detail = fmt.Sprintf("write file: %s", req.Path)
		report.Output = fmt.Sprintf("cannot resolve path: %v", err)
		return report
	}
	if err := os.MkdirAll(filepath.Dir(abs), domain.DirectoryPermissions); err != nil {
		report.Detail = fmt.Sprintf("write file: %s", abs)
		report.Output = fmt.Sprintf("create parent directories failed: %v", err)
		return report
	}
	if err := os.WriteFile(abs, []byte(req.Content), 0o644); err != nil {
		report.Detail = fmt.Sprintf("write file: %s", abs)
		report.Output = fmt.Sprintf("write failed: %v", err)
		return report
	}

	report.Success = true
	report.Detail = fmt.Sprintf("wrote file: %s", abs)
	if req.Description != "" {
		report.Output = req.Description
	}
	return report
}

func describeCommand(req domain.ActionRequest) string {
	if req.Description != "" {
		return fmt.Sprintf("run command: %s (%s)", req.Command, req.Description)
	}
	return fmt.Sprintf("run command: %s", req.Command)
}

func expandHome(path string) string {
	if len(path) > 1 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

var _ ports.ActionRunner = (*Executor)(nil)
