// Package config loads the YAML configuration with environment overrides.
package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/chatwork/internal/domain"
	"github.com/doeshing/chatwork/internal/ports"
)

// FileLoader loads YAML configuration from ~/.chatwork/config.yaml
// (overridable via CHATWORK_CONFIG). Secrets and deployment settings may be
// overridden through the environment, matching the variables the service has
// always honored (FEISHU_APP_ID, ALLOWED_DIRS, ...).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := defaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return applyEnv(cfg), nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, err
	}

	return applyEnv(hydrateDefaults(cfg)), nil
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return l.overridePath
	}
	if custom := os.Getenv("CHATWORK_CONFIG"); custom != "" {
		return expandPath(custom)
	}
	return filepath.Join(userHomeDir(), ".chatwork", "config.yaml")
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

func defaultConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Server: domain.ServerSettings{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Claude: domain.ClaudeSettings{
			TimeoutSeconds: int(domain.DefaultClaudeTimeout.Seconds()),
		},
		Security: domain.SecuritySettings{
			AllowedDirs:     []string{"/tmp"},
			BlockedCommands: []string{"rm -rf /", "sudo rm", "mkfs", "dd if="},
		},
		Stream: domain.StreamSettings{
			UpdateIntervalMS:   int(domain.DefaultUpdateInterval.Milliseconds()),
			CallTimeoutSeconds: int(domain.DefaultSurfaceCallTimeout.Seconds()),
		},
		History: domain.HistorySettings{
			Enabled: true,
		},
	}
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Claude.TimeoutSeconds == 0 {
		cfg.Claude.TimeoutSeconds = int(domain.DefaultClaudeTimeout.Seconds())
	}
	if cfg.Stream.UpdateIntervalMS == 0 {
		cfg.Stream.UpdateIntervalMS = int(domain.DefaultUpdateInterval.Milliseconds())
	}
	if cfg.Stream.CallTimeoutSeconds == 0 {
		cfg.Stream.CallTimeoutSeconds = int(domain.DefaultSurfaceCallTimeout.Seconds())
	}
	if len(cfg.Security.AllowedDirs) == 0 {
		cfg.Security.AllowedDirs = []string{"/tmp"}
	}
	return cfg
}

func applyEnv(cfg domain.Config) domain.Config {
	if v := os.Getenv("FEISHU_APP_ID"); v != "" {
		cfg.Feishu.AppID = v
	}
	if v := os.Getenv("FEISHU_APP_SECRET"); v != "" {
		cfg.Feishu.AppSecret = v
	}
	if v := os.Getenv("FEISHU_VERIFICATION_TOKEN"); v != "" {
		cfg.Feishu.VerificationToken = v
	}
	if v := os.Getenv("FEISHU_ENCRYPT_KEY"); v != "" {
		cfg.Feishu.EncryptKey = v
	}
	if v := os.Getenv("HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DEBUG"); v != "" {
		cfg.Server.Debug = strings.EqualFold(v, "1") || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("ALLOWED_DIRS"); v != "" {
		cfg.Security.AllowedDirs = splitList(v)
	}
	if v := os.Getenv("BLOCKED_COMMANDS"); v != "" {
		cfg.Security.BlockedCommands = splitList(v)
	}
	return cfg
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(userHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

func userHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
