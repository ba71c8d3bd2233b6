// Package config resolves the agentd configuration from the settings file
// and the process environment.
//
// The model proxy credential (LITELLM_AUTH_TOKEN) and the tool-server
// credential (CODEXHUB_MCP_AUTH_TOKEN) are deliberately distinct types so
// they cannot be swapped without an explicit conversion.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/agentd/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

// DefaultModel is used when AI_MODEL_NAME is not set.
const DefaultModel = "gemini-2.5-pro"

const (
	defaultMCPTimeout     = Duration(15 * time.Second)
	defaultRequestTimeout = Duration(2 * time.Minute)
	defaultHTTPAddr       = ":8000"
	defaultWordWrap       = 80
)

// Duration is a time.Duration that round-trips through YAML and environment
// variables in the human form ("15s", "2m").
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(raw))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// ModelToken is the credential presented to the model proxy.
type ModelToken string

// Reveal returns the raw token value.
func (t ModelToken) Reveal() string { return string(t) }

// String redacts the token for logs and error messages.
func (t ModelToken) String() string { return redact(string(t)) }

// ToolToken is the credential presented to CodexHub MCP tool servers. It is
// a separate type from ModelToken on purpose: the two credential namespaces
// must never be conflated.
type ToolToken string

// Reveal returns the raw token value.
func (t ToolToken) Reveal() string { return string(t) }

// String redacts the token for logs and error messages.
func (t ToolToken) String() string { return redact(string(t)) }

func redact(s string) string {
	if s == "" {
		return ""
	}
	const keep = 4
	if len(s) <= keep {
		return "****"
	}
	return s[:keep] + "****"
}

// ConfigurationError reports a missing or invalid setting. It is fatal at
// startup: no agent may be constructed from a configuration that failed to
// resolve.
type ConfigurationError struct {
	Variable string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Variable, e.Err)
	}
	return fmt.Sprintf("configuration: %s is required", e.Variable)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MCPServerConfig describes one remote tool server.
type MCPServerConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     []string          `yaml:"env"`
	Headers map[string]string `yaml:"headers"`
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables. Environment always wins.
type Settings struct {
	BaseURL        string     `yaml:"base-url" env:"LITELLM_BASE_URL"`
	ModelAuthToken ModelToken `yaml:"-" env:"LITELLM_AUTH_TOKEN"`
	ToolAuthToken  ToolToken  `yaml:"-" env:"CODEXHUB_MCP_AUTH_TOKEN"`
	Model          string     `yaml:"model" env:"AI_MODEL_NAME"`

	HTTPAddr        string   `yaml:"http-addr" env:"AGENTD_HTTP_ADDR"`
	RequestTimeout  Duration `yaml:"request-timeout" env:"AGENTD_REQUEST_TIMEOUT"`
	ShutdownTimeout Duration `yaml:"shutdown-timeout" env:"AGENTD_SHUTDOWN_TIMEOUT"`

	MaxTokens   int64    `yaml:"max-tokens" env:"AGENTD_MAX_TOKENS"`
	Temperature float64  `yaml:"temp" env:"AGENTD_TEMP"`
	TopP        float64  `yaml:"topp" env:"AGENTD_TOPP"`
	TopK        int64    `yaml:"topk" env:"AGENTD_TOPK"`
	Stop        []string `yaml:"stop" env:"AGENTD_STOP"`
	User        string   `yaml:"user" env:"AGENTD_USER"`

	Quiet     bool   `yaml:"quiet" env:"AGENTD_QUIET"`
	WordWrap  int    `yaml:"word-wrap" env:"AGENTD_WORD_WRAP"`
	CachePath string `yaml:"cache-path" env:"AGENTD_CACHE_PATH"`

	MCPServers map[string]MCPServerConfig `yaml:"mcp-servers"`
	MCPDisable []string                   `yaml:"mcp-disable" env:"AGENTD_MCP_DISABLE"`
	MCPTimeout Duration                   `yaml:"mcp-timeout" env:"AGENTD_MCP_TIMEOUT"`
}

// Runtime holds CLI-only options that should never be loaded from the
// settings file.
type Runtime struct {
	SettingsPath string
	Prompt       string
	UseTools     bool
	Raw          bool

	ContinueLast bool
	Continue     string
	Title        string
}

// Config is the application configuration (settings + runtime-only options).
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// Alias is a provider-compatibility view of the single proxy credential.
type Alias struct {
	BaseURL string
	APIKey  ModelToken
}

// ProviderAliases exposes the proxy endpoint under every provider-SDK
// convention. All three are copies of the one underlying pair; none holds an
// independent value.
type ProviderAliases struct {
	OpenAI    Alias
	Anthropic Alias
	Gemini    Alias
}

// Aliases derives the provider-compatibility aliases from the resolved
// configuration.
func (c *Config) Aliases() ProviderAliases {
	a := Alias{BaseURL: c.BaseURL, APIKey: c.ModelAuthToken}
	return ProviderAliases{OpenAI: a, Anthropic: a, Gemini: a}
}

// APIForModel maps a model identifier onto the provider family whose SDK
// conventions the proxy speaks for it.
func APIForModel(model string) string {
	switch {
	case strings.HasPrefix(model, "claude"):
		return "anthropic"
	case strings.HasPrefix(model, "gemini"):
		return "google"
	case strings.HasPrefix(model, "gpt"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return "openai"
	default:
		// The proxy serves everything else over its OpenAI-compatible
		// surface.
		return "litellm"
	}
}

// Resolve loads settings from disk and environment, applies defaults, and
// validates required variables.
//
// It creates the default settings file on first run.
func Resolve() (Config, error) {
	var c Config
	home, err := os.UserHomeDir()
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not determine home directory."}
	}

	sp := filepath.Join(home, ".config", "agentd", "agentd.yml")
	c.SettingsPath = sp

	if err := os.MkdirAll(filepath.Dir(sp), 0o700); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not create config directory."}
	}
	if err := WriteConfigFile(sp); err != nil {
		return c, err
	}
	content, err := os.ReadFile(sp)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file."}
	}

	if err := env.Parse(&c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings."}
	}

	applyDefaults(&c)

	if c.CachePath == "" {
		c.CachePath = filepath.Join(home, ".config", "agentd", "history")
	}
	if err := os.MkdirAll(filepath.Join(c.CachePath, "conversations"), 0o700); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not create cache directory."}
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func applyDefaults(c *Config) {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if c.MCPTimeout == 0 {
		c.MCPTimeout = defaultMCPTimeout
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = Duration(10 * time.Second)
	}
	if c.WordWrap == 0 {
		c.WordWrap = defaultWordWrap
	}
}

// Validate checks the required model-proxy settings.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &ConfigurationError{Variable: "LITELLM_BASE_URL"}
	}
	if strings.TrimSpace(string(c.ModelAuthToken)) == "" {
		return &ConfigurationError{Variable: "LITELLM_AUTH_TOKEN"}
	}
	return nil
}

// ToolsConfigured reports whether the tool-server credential is present.
// Without it, the web and image tool servers are left unbound.
func (c *Config) ToolsConfigured() bool {
	return strings.TrimSpace(string(c.ToolAuthToken)) != ""
}

// WriteConfigFile creates the settings file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat settings path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create settings file."}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render settings template."}
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	var c Config
	applyDefaults(&c)
	return c
}
