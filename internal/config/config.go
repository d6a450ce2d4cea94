// Package config loads nox-session settings from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iksnae/nox-session/internal"
	"github.com/spf13/viper"
)

// DefaultURL is the local Ollama chat endpoint
const DefaultURL = "http://127.0.0.1:11434/api/chat"

const configName = "nox"

// Config is the resolved runtime configuration
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm"`
	Memory     MemoryConfig     `mapstructure:"memory"`
	Chat       ChatConfig       `mapstructure:"chat"`
	User       UserConfig       `mapstructure:"user"`
	Instrument InstrumentConfig `mapstructure:"instrument"`

	file     string
	explicit string
}

// LLMConfig describes the model endpoint
type LLMConfig struct {
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Stream      bool          `mapstructure:"stream"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// MemoryConfig locates the session store
type MemoryConfig struct {
	DataRoot string `mapstructure:"data_root"` // parent of memory/, default $XDG_DATA_HOME/noctics
	Home     string `mapstructure:"home"`      // memory root override
	Index    string `mapstructure:"index"`     // search index path, default <memory>/index.db
}

// ChatConfig controls how replies are processed and logged
type ChatConfig struct {
	SystemPrompt   string   `mapstructure:"system_prompt"`
	StripReasoning bool     `mapstructure:"strip_reasoning"`
	Sanitize       bool     `mapstructure:"sanitize"`
	Logging        bool     `mapstructure:"logging"`
	DayLog         bool     `mapstructure:"day_log"`
	Labels         []string `mapstructure:"labels"`
}

// UserConfig selects the per-user store
type UserConfig struct {
	ID      string `mapstructure:"id"`
	Display string `mapstructure:"display"`
}

// InstrumentConfig controls external instrument hand-off
type InstrumentConfig struct {
	Automation bool     `mapstructure:"automation"`
	Roster     []string `mapstructure:"roster"`
	URL        string   `mapstructure:"url"` // endpoint tried before llm.url when automation is on
	Model      string   `mapstructure:"model"`
	APIKey     string   `mapstructure:"api_key"`
}

// Load reads configuration. path names a config file explicitly and must
// exist; otherwise $NOX_CONFIG, ./nox.yaml, $XDG_CONFIG_HOME/nox/nox.yaml
// and ~/.config/nox/nox.yaml are tried, and having none is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	switch {
	case path != "":
		v.SetConfigFile(path)
	case os.Getenv("NOX_CONFIG") != "" && fileExists(os.Getenv("NOX_CONFIG")):
		v.SetConfigFile(os.Getenv("NOX_CONFIG"))
	default:
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		for _, dir := range searchDirs() {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, &internal.ParseError{Source: "config", Key: v.ConfigFileUsed(), Err: err}
		}
	}

	cfg := &Config{explicit: path, file: v.ConfigFileUsed()}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.LLM.URL = strings.TrimSpace(cfg.LLM.URL)
	cfg.User.ID = strings.TrimSpace(cfg.User.ID)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Reload reads the configuration again from the same sources
func (c *Config) Reload() (*Config, error) {
	return Load(c.explicit)
}

// File returns the config file that was read, or ""
func (c *Config) File() string {
	return c.file
}

// Validate checks values that would otherwise fail later and less clearly
func (c *Config) Validate() error {
	if c.LLM.URL != "" {
		u, err := url.Parse(c.LLM.URL)
		if err != nil || u.Host == "" {
			return &internal.ParseError{Source: "config", Key: "llm.url", Err: fmt.Errorf("invalid URL %q", c.LLM.URL)}
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return &internal.ParseError{Source: "config", Key: "llm.url", Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
		}
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return &internal.ParseError{Source: "config", Key: "llm.temperature", Err: fmt.Errorf("%v is outside [0, 2]", c.LLM.Temperature)}
	}
	return nil
}

// MemoryRoot returns the directory holding sessions, users and archives
func (c *Config) MemoryRoot() (string, error) {
	if c.Memory.Home != "" {
		return expandHome(c.Memory.Home)
	}
	dataRoot := c.Memory.DataRoot
	if dataRoot == "" {
		root, err := internal.DefaultDataRoot()
		if err != nil {
			return "", err
		}
		dataRoot = root
	}
	dataRoot, err := expandHome(dataRoot)
	if err != nil {
		return "", err
	}
	return filepath.Join(dataRoot, "memory"), nil
}

// MemoryPaths returns the store layout below MemoryRoot
func (c *Config) MemoryPaths() (internal.MemoryPaths, error) {
	root, err := c.MemoryRoot()
	if err != nil {
		return internal.MemoryPaths{}, err
	}
	return internal.NewMemoryPaths(root), nil
}

// IndexPath returns the search index location
func (c *Config) IndexPath() (string, error) {
	if c.Memory.Index != "" {
		return expandHome(c.Memory.Index)
	}
	paths, err := c.MemoryPaths()
	if err != nil {
		return "", err
	}
	return internal.DefaultIndexPath(paths), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.url", DefaultURL)
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", -1)
	v.SetDefault("llm.stream", true)
	v.SetDefault("llm.timeout", "2m")
	v.SetDefault("memory.data_root", "")
	v.SetDefault("memory.home", "")
	v.SetDefault("memory.index", "")
	v.SetDefault("chat.system_prompt", "")
	v.SetDefault("chat.strip_reasoning", true)
	v.SetDefault("chat.sanitize", false)
	v.SetDefault("chat.logging", true)
	v.SetDefault("chat.day_log", false)
	v.SetDefault("chat.labels", []string{})
	v.SetDefault("user.id", "")
	v.SetDefault("user.display", "")
	v.SetDefault("instrument.automation", false)
	v.SetDefault("instrument.roster", []string{})
	v.SetDefault("instrument.url", "")
	v.SetDefault("instrument.model", "")
	v.SetDefault("instrument.api_key", "")
}

// bindEnv maps the documented variables onto keys. Every other key can be
// set as NOX_<SECTION>_<KEY>, e.g. NOX_LLM_TEMPERATURE. Keys are bound one
// by one rather than through AutomaticEnv: with AutomaticEnv, NOX_USER
// would shadow the whole user section.
func bindEnv(v *viper.Viper) error {
	aliases := map[string][]string{
		"llm.url":          {"NOX_LLM_URL"},
		"llm.model":        {"NOX_LLM_MODEL"},
		"llm.api_key":      {"NOX_LLM_API_KEY", "OPENAI_API_KEY"},
		"memory.data_root": {"NOCTICS_DATA_ROOT"},
		"memory.home":      {"NOCTICS_MEMORY_HOME"},
		"user.id":          {"NOX_USER_ID", "NOX_USER"},
		"user.display":     {"NOX_USER_DISPLAY"},
	}
	for _, key := range v.AllKeys() {
		envs, ok := aliases[key]
		if !ok {
			envs = []string{envName(key)}
		}
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

func envName(key string) string {
	return "NOX_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func searchDirs() []string {
	dirs := []string{"."}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, configName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", configName))
	}
	return dirs
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
