// Package config loads the service configuration: JSON file with
// defaults written on first run, environment variables taking precedence
// for secrets.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxToolRounds int    `json:"max_tool_rounds"`
	PromptFile    string `json:"prompt_file,omitempty"`
	LLM           struct {
		BaseURL          string            `json:"base_url"`
		APIKey           string            `json:"api_key"`
		Model            string            `json:"model"`
		Mode             string            `json:"mode,omitempty"`
		Families         map[string]string `json:"families,omitempty"`
		Disabled         []string          `json:"disabled,omitempty"`
		MaxTokens        int               `json:"max_tokens"`
		Temperature      *float64          `json:"temperature,omitempty"`
		TopP             *float64          `json:"top_p,omitempty"`
		MaxContextTokens int               `json:"max_context_tokens"`
		OutputReserve    int               `json:"output_reserve"`
	} `json:"llm"`
	Tools struct {
		ApprovalDefault string            `json:"approval_default"`
		Approval        map[string]string `json:"approval,omitempty"`
		BraveAPIKey     string            `json:"brave_api_key"`
	} `json:"tools"`
	Telegram struct {
		Token        string  `json:"token"`
		AllowedUsers []int64 `json:"allowed_users,omitempty"`
	} `json:"telegram"`
	Server struct {
		Addr string `json:"addr"`
	} `json:"server"`
}

// Load reads the config file, writing defaults first if it does not
// exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".agentd"),
		LogLevel:      "info",
		MaxConcurrent: 2,
		MaxToolRounds: 10,
	}
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.Tools.ApprovalDefault = "auto"
	cfg.Server.Addr = "127.0.0.1:8484"

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Env overrides take highest precedence.
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("AGENTD_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if braveKey := os.Getenv("BRAVE_API_KEY"); braveKey != "" {
		cfg.Tools.BraveAPIKey = braveKey
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// Save writes the config back to disk atomically.
func Save(path string, cfg *Config) error {
	return writeDefaults(path, cfg)
}

// ToMap converts the config to a nested map via its JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns the config as a flat key/value map, masking secrets
// when mask is true.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue loads the config file and returns the value for a
// dot-separated key.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue updates a single dot-separated key in the config file. The
// raw file is edited as a generic map so keys outside the Config struct
// survive the round trip. Values that parse as JSON are stored typed;
// everything else is stored as a string.
func SetValue(path, key, value string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}

	flat := Flatten(m)
	flat[key] = parsed
	nested := Unflatten(flat)

	out, err := json.MarshalIndent(nested, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	out = append(out, '\n')
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
