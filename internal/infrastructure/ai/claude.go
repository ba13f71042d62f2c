// Package ai adapts the local claude CLI as the Assistant port.
//
// The CLI is treated as a black-box text producer: one invocation per
// exchange, prompt in, either a single JSON document (--output-format json)
// or a line stream of JSON events (--output-format stream-json) out.
package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// CLI implements the Assistant port by spawning the claude binary.
type CLI struct {
	binary  string
	timeout time.Duration
	logger  ports.Logger
}

// NewCLI builds the adapter. An empty binary setting triggers discovery of
// well-known install locations, falling back to PATH lookup.
func NewCLI(settings domain.ClaudeSettings, log ports.Logger) *CLI {
	binary := settings.Binary
	if binary == "" {
		binary = findBinary()
	}
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = domain.DefaultClaudeTimeout
	}
	return &CLI{binary: binary, timeout: timeout, logger: log}
}

func findBinary() string {
	home, _ := os.UserHomeDir()
	candidates := []string{
		"/usr/local/bin/claude",
		"/opt/homebrew/bin/claude",
		filepath.Join(home, ".npm-global", "bin", "claude"),
		filepath.Join(home, ".local", "bin", "claude"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return "claude"
}

// Chat blocks for the complete reply using the CLI's JSON output mode.
func (c *CLI) Chat(ctx context.Context, prompt string, sessionKey string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.binary, "-p", prompt, "--output-format", "json")
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("claude CLI timed out after %s", c.timeout)
		}
		if isNotFound(err) {
			return "", missingBinaryError(c.binary)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("claude CLI failed: %s", msg)
	}

	// The JSON output mode wraps the reply in {"result": "..."}; fall back
	// to raw stdout when the CLI prints something else.
	var decoded struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err == nil && decoded.Result != "" {
		return decoded.Result, nil
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ChatStream yields the reply incrementally using stream-json output.
// The returned stream's channel closes when the CLI exits; Err reports any
// terminal failure afterwards.
func (c *CLI) ChatStream(ctx context.Context, prompt string, sessionKey string) (ports.FragmentStream, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)

	cmd := exec.CommandContext(ctx, c.binary,
		"-p", prompt,
		"--output-format", "stream-json",
		"--include-partial-messages",
	)
	cmd.Env = append(os.Environ(), "NO_COLOR=1")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		if isNotFound(err) {
			return nil, missingBinaryError(c.binary)
		}
		return nil, err
	}

	s := &stream{fragments: make(chan string, 16)}
	go s.pump(cmd, stdout, &stderr, cancel, c.logger)
	return s, nil
}

type stream struct {
	fragments chan string
	mu        sync.Mutex
	err       error
}

func (s *stream) Fragments() <-chan string {
	return s.fragments
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *stream) pump(cmd *exec.Cmd, stdout interface{ Read([]byte) (int, error) }, stderr *bytes.Buffer, cancel context.CancelFunc, log ports.Logger) {
	defer cancel()

	var dec decoder
	emitted := false

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, frag := range dec.Decode(scanner.Bytes()) {
			if frag == "" {
				continue
			}
			emitted = true
			s.fragments <- frag
		}
	}
	if err := scanner.Err(); err != nil {
		s.setErr(fmt.Errorf("read claude output: %w", err))
	}

	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		s.setErr(fmt.Errorf("claude CLI failed: %s", msg))
	} else if !emitted {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			s.setErr(fmt.Errorf("claude CLI produced no output: %s", msg))
		}
	}

	if log != nil {
		log.Debug("claude stream finished", map[string]interface{}{"emitted": emitted})
	}
	close(s.fragments)
}

func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist)
}

func missingBinaryError(binary string) error {
	return fmt.Errorf("claude CLI not found (%s): install Claude Code and ensure it is on PATH", binary)
}

var _ ports.Assistant = (*CLI)(nil)
