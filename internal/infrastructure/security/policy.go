// Package security implements the allow/deny policy for filesystem paths
// and shell commands requested by assistant actions.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// PolicyGuard implements the PolicyService port. Configuration is loaded
// once at construction and read-only afterwards, so concurrent use needs no
// synchronization.
type PolicyGuard struct {
	allowedDirs     []string
	blockedCommands []string
}

// NewPolicyGuard builds a guard from the static security settings.
// Allowed directory prefixes are normalized to absolute form up front.
func NewPolicyGuard(settings domain.SecuritySettings) *PolicyGuard {
	var dirs []string
	for _, dir := range settings.AllowedDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		if abs, err := filepath.Abs(expandHome(dir)); err == nil {
			abs = filepath.Clean(abs)
			// Resolve the prefix itself so /tmp and a symlinked /tmp agree.
			if resolved, err := filepath.EvalSymlinks(abs); err == nil {
				abs = resolved
			}
			dirs = append(dirs, abs)
		}
	}
	var blocked []string
	for _, cmd := range settings.BlockedCommands {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			blocked = append(blocked, cmd)
		}
	}
	return &PolicyGuard{allowedDirs: dirs, blockedCommands: blocked}
}

// CheckPath resolves the path to an absolute, symlink-normalized form and
// permits it only when one of the allowed directories is an ancestor.
// Traversal via ".." or symlink escape resolves outside the allowed prefixes
// and is rejected.
func (g *PolicyGuard) CheckPath(path string) domain.PolicyDecision {
	if len(g.allowedDirs) == 0 {
		return domain.PolicyDecision{Reason: "no allowed directories configured"}
	}
	resolved, err := normalizePath(path)
	if err != nil {
		return domain.PolicyDecision{Reason: fmt.Sprintf("cannot resolve path: %v", err)}
	}
	for _, dir := range g.allowedDirs {
		if isAncestor(dir, resolved) {
			return domain.PolicyDecision{Allowed: true}
		}
	}
	return domain.PolicyDecision{Reason: fmt.Sprintf("path outside allowed directories: %s", path)}
}

// CheckCommand denies any command containing a blocked substring.
// Matching is case-sensitive and deliberately over-blocks.
func (g *PolicyGuard) CheckCommand(command string) domain.PolicyDecision {
	for _, blocked := range g.blockedCommands {
		if strings.Contains(command, blocked) {
			return domain.PolicyDecision{Reason: fmt.Sprintf("command contains blocked pattern %q", blocked)}
		}
	}
	return domain.PolicyDecision{Allowed: true}
}

// normalizePath yields an absolute path with "~", "..", and symlinks
// resolved. For a path that does not exist yet (write targets), symlinks are
// resolved on the nearest existing ancestor instead.
func normalizePath(path string) (string, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", err
	}
	abs = filepath.Clean(abs)

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}

	// Write targets may not exist yet. Resolve the nearest existing ancestor
	// and re-append the missing suffix.
	dir := abs
	var missing []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		missing = append([]string{filepath.Base(dir)}, missing...)
		dir = parent
		resolved, err := filepath.EvalSymlinks(dir)
		if err == nil {
			return filepath.Join(append([]string{resolved}, missing...)...), nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}
	}
}

func isAncestor(dir, path string) bool {
	if dir == path {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

var _ ports.PolicyService = (*PolicyGuard)(nil)
