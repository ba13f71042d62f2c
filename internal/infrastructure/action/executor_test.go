package action

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/infrastructure/security"
	"github.com/doeshing/chatwork/internal/pkg/logger"
)

func newExecutor(t *testing.T, allowedDirs []string, blocked []string) *Executor {
	t.Helper()
	guard := security.NewPolicyGuard(domain.SecuritySettings{
		AllowedDirs:     allowedDirs,
		BlockedCommands: blocked,
	})
	return NewExecutor(guard, logger.NewStd(false))
}

func TestExecuteBlockedCommandDenied(t *testing.T) {
	exec := newExecutor(t, nil, []string{"sudo rm"})

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionExecute,
		Command: "sudo rm -rf /",
	})

	if report.Success {
		t.Fatal("expected denial")
	}
	if !strings.Contains(report.Output, "blocked") {
		t.Fatalf("expected blocked reason, got %q", report.Output)
	}
}

func TestExecuteCommandCapturesOutput(t *testing.T) {
	exec := newExecutor(t, nil, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionExecute,
		Command: "echo hello",
	})

	if !report.Success {
		t.Fatalf("expected success, got %+v", report)
	}
	if !strings.Contains(report.Output, "hello") {
		t.Fatalf("output = %q", report.Output)
	}
}

func TestExecuteNonZeroExitReportedAsFailure(t *testing.T) {
	exec := newExecutor(t, nil, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionExecute,
		Command: "exit 3",
	})

	if report.Success {
		t.Fatal("expected failure for non-zero exit")
	}
	if !strings.Contains(report.Output, "code=3") {
		t.Fatalf("output = %q", report.Output)
	}
}

func TestExecuteStderrLabeled(t *testing.T) {
	exec := newExecutor(t, nil, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionExecute,
		Command: "echo oops 1>&2",
	})

	if !strings.Contains(report.Output, "[stderr]") {
		t.Fatalf("expected labeled stderr section, got %q", report.Output)
	}
}

func TestExecuteTimesOut(t *testing.T) {
	exec := newExecutor(t, nil, nil)
	exec.timeout = 100 * time.Millisecond

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionExecute,
		Command: "sleep 5",
	})

	if report.Success {
		t.Fatal("expected timeout failure")
	}
	if !strings.Contains(report.Output, "timed out") {
		t.Fatalf("output = %q", report.Output)
	}
}

func TestExecuteDisallowedWorkDirDeniedBeforeSpawn(t *testing.T) {
	dir := t.TempDir()
	exec := newExecutor(t, []string{dir}, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionExecute,
		Command: "echo hi",
		WorkDir: "/etc",
	})

	if report.Success {
		t.Fatal("expected denial for disallowed working directory")
	}
}

func TestReadFileOutsideAllowedDirsDenied(t *testing.T) {
	dir := t.TempDir()
	exec := newExecutor(t, []string{dir}, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type: domain.ActionReadFile,
		Path: "/etc/passwd",
	})

	if report.Success {
		t.Fatal("expected denial")
	}
}

func TestReadFileMissingReportsNotFound(t *testing.T) {
	dir := t.TempDir()
	exec := newExecutor(t, []string{dir}, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type: domain.ActionReadFile,
		Path: filepath.Join(dir, "missing.txt"),
	})

	if report.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(report.Output, "not found") {
		t.Fatalf("output = %q", report.Output)
	}
}

func TestReadFileReturnsContents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("contents"), 0o600); err != nil {
		t.Fatal(err)
	}
	exec := newExecutor(t, []string{dir}, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type: domain.ActionReadFile,
		Path: path,
	})

	if !report.Success || report.Output != "contents" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestWriteFileCreatesParentsAndWrites(t *testing.T) {
	dir := t.TempDir()
	exec := newExecutor(t, []string{dir}, nil)
	path := filepath.Join(dir, "nested", "deep", "x.txt")

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionWriteFile,
		Path:    path,
		Content: "hi",
	})

	if !report.Success {
		t.Fatalf("expected success, got %+v", report)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hi" {
		t.Fatalf("file contents = %q", data)
	}
}

func TestWriteFileOutsideAllowedDirsDenied(t *testing.T) {
	dir := t.TempDir()
	exec := newExecutor(t, []string{dir}, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{
		Type:    domain.ActionWriteFile,
		Path:    "/etc/evil.txt",
		Content: "nope",
	})

	if report.Success {
		t.Fatal("expected denial")
	}
}

func TestUnknownActionReported(t *testing.T) {
	exec := newExecutor(t, nil, nil)

	report := exec.Execute(context.Background(), domain.ActionRequest{Type: "teleport"})

	if report.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(report.Detail, "teleport") {
		t.Fatalf("detail should name the tag, got %q", report.Detail)
	}
}
