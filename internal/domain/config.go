package domain

// Config mirrors ~/.chatwork/config.yaml.
type Config struct {
	ConfigFormatVersion string           `yaml:"config_format_version"`
	Server              ServerSettings   `yaml:"server"`
	Feishu              FeishuSettings   `yaml:"feishu"`
	Claude              ClaudeSettings   `yaml:"claude"`
	Security            SecuritySettings `yaml:"security"`
	Stream              StreamSettings   `yaml:"stream"`
	History             HistorySettings  `yaml:"history"`
}

// ServerSettings configures the HTTP listener.
type ServerSettings struct {
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`
}

// FeishuSettings holds the bot credentials.
type FeishuSettings struct {
	AppID             string `yaml:"app_id"`
	AppSecret         string `yaml:"app_secret"`
	VerificationToken string `yaml:"verification_token"`
	EncryptKey        string `yaml:"encrypt_key"`
	BaseURL           string `yaml:"base_url"`
}

// ClaudeSettings controls how the local claude CLI is invoked.
type ClaudeSettings struct {
	Binary         string `yaml:"binary"`
	TimeoutSeconds int    `yaml:"timeout"`
}

// SecuritySettings defines the action policy.
type SecuritySettings struct {
	AllowedDirs     []string `yaml:"allowed_dirs"`
	BlockedCommands []string `yaml:"blocked_commands"`
	AutoExecute     bool     `yaml:"auto_execute"`
}

// StreamSettings controls the pacing of card updates.
type StreamSettings struct {
	UpdateIntervalMS   int `yaml:"update_interval_ms"`
	CallTimeoutSeconds int `yaml:"call_timeout"`
}

// HistorySettings configures transcript persistence.
type HistorySettings struct {
	Enabled bool `yaml:"enabled"`
}
