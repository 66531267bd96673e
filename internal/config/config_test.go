package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func tempConfigPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config.json")
}

// clearEnv blanks the env vars Load consults so file values win.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "AGENTD_MODEL", "BRAVE_API_KEY", "TELEGRAM_BOT_TOKEN"} {
		t.Setenv(k, "")
	}
}

func TestSaveReloadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	temp := 0.5
	original := &Config{
		DataDir:       "/tmp/test-data",
		LogLevel:      "debug",
		MaxConcurrent: 4,
		MaxToolRounds: 20,
	}
	original.LLM.BaseURL = "https://api.openai.com/v1"
	original.LLM.APIKey = "sk-test-round-trip"
	original.LLM.Model = "gpt-4o"
	original.LLM.Mode = "responses"
	original.LLM.Families = map[string]string{"o3": "responses"}
	original.LLM.MaxTokens = 4000
	original.LLM.Temperature = &temp
	original.Tools.BraveAPIKey = "brave-key-123"
	original.Telegram.Token = "bot-token-456"
	original.Telegram.AllowedUsers = []int64{42, 99}

	if err := Save(path, original); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.DataDir != original.DataDir {
		t.Errorf("DataDir = %v", loaded.DataDir)
	}
	if loaded.LogLevel != original.LogLevel {
		t.Errorf("LogLevel = %v", loaded.LogLevel)
	}
	if loaded.LLM.APIKey != original.LLM.APIKey {
		t.Errorf("LLM.APIKey = %v", loaded.LLM.APIKey)
	}
	if loaded.LLM.Mode != "responses" {
		t.Errorf("LLM.Mode = %v", loaded.LLM.Mode)
	}
	if loaded.LLM.Families["o3"] != "responses" {
		t.Errorf("LLM.Families = %v", loaded.LLM.Families)
	}
	if loaded.LLM.Temperature == nil || *loaded.LLM.Temperature != 0.5 {
		t.Errorf("LLM.Temperature = %v", loaded.LLM.Temperature)
	}
	if loaded.Tools.BraveAPIKey != original.Tools.BraveAPIKey {
		t.Errorf("Tools.BraveAPIKey = %v", loaded.Tools.BraveAPIKey)
	}
	if len(loaded.Telegram.AllowedUsers) != 2 || loaded.Telegram.AllowedUsers[1] != 99 {
		t.Errorf("Telegram.AllowedUsers = %v", loaded.Telegram.AllowedUsers)
	}
}

func TestLoadWritesDefaults(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.LLM.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("LLM.BaseURL = %v", cfg.LLM.BaseURL)
	}
	if cfg.Tools.ApprovalDefault != "auto" {
		t.Errorf("Tools.ApprovalDefault = %v", cfg.Tools.ApprovalDefault)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults were not written: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("AGENTD_MODEL", "o3-mini")
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info"}
	cfg.LLM.APIKey = "sk-from-file"
	cfg.LLM.Model = "gpt-4o"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.APIKey != "sk-from-env" {
		t.Errorf("LLM.APIKey = %v", loaded.LLM.APIKey)
	}
	if loaded.LLM.Model != "o3-mini" {
		t.Errorf("LLM.Model = %v", loaded.LLM.Model)
	}
}

func TestSaveAtomicWrite(t *testing.T) {
	path := tempConfigPath(t)

	if err := Save(path, &Config{LogLevel: "info"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Errorf("saved file is not valid JSON: %v", err)
	}
}

func TestListValuesMasking(t *testing.T) {
	cfg := &Config{LogLevel: "info"}
	cfg.LLM.APIKey = "sk-secret-key-1234"
	cfg.Tools.BraveAPIKey = "brave-key-5678"
	cfg.Telegram.Token = "bot-token-abcd"

	flat, err := ListValues(cfg, false)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if flat["llm.api_key"] != "sk-secret-key-1234" {
		t.Errorf("llm.api_key = %v", flat["llm.api_key"])
	}

	masked, err := ListValues(cfg, true)
	if err != nil {
		t.Fatalf("ListValues failed: %v", err)
	}
	if masked["llm.api_key"] != "***1234" {
		t.Errorf("masked llm.api_key = %v", masked["llm.api_key"])
	}
	if masked["tools.brave_api_key"] != "***5678" {
		t.Errorf("masked tools.brave_api_key = %v", masked["tools.brave_api_key"])
	}
	if masked["telegram.token"] != "***abcd" {
		t.Errorf("masked telegram.token = %v", masked["telegram.token"])
	}
	if masked["log_level"] != "info" {
		t.Errorf("log_level = %v", masked["log_level"])
	}
}

func TestGetValue(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "debug", MaxConcurrent: 8}
	cfg.LLM.Model = "gpt-4o"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	v, err := GetValue(path, "llm.model")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != "gpt-4o" {
		t.Errorf("llm.model = %v", v)
	}

	// JSON numbers come back as float64.
	v, err = GetValue(path, "max_concurrent")
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if v != float64(8) {
		t.Errorf("max_concurrent = %v (%T)", v, v)
	}

	if _, err := GetValue(path, "nonexistent.key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestSetValue(t *testing.T) {
	clearEnv(t)
	path := tempConfigPath(t)

	cfg := &Config{LogLevel: "info", MaxConcurrent: 2}
	cfg.LLM.Model = "gpt-4o"
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}

	if err := SetValue(path, "log_level", "debug"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if v, _ := GetValue(path, "log_level"); v != "debug" {
		t.Errorf("log_level = %v", v)
	}
	if v, _ := GetValue(path, "llm.model"); v != "gpt-4o" {
		t.Errorf("llm.model not preserved: %v", v)
	}

	// Numeric and boolean values are stored typed.
	if err := SetValue(path, "max_concurrent", "16"); err != nil {
		t.Fatal(err)
	}
	if v, _ := GetValue(path, "max_concurrent"); v != float64(16) {
		t.Errorf("max_concurrent = %v", v)
	}
	if err := SetValue(path, "custom.flag", "true"); err != nil {
		t.Fatal(err)
	}
	if v, _ := GetValue(path, "custom.flag"); v != true {
		t.Errorf("custom.flag = %v", v)
	}
}

func TestSetValueMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.json")
	if err := SetValue(path, "log_level", "debug"); err == nil {
		t.Error("expected error for missing file")
	}
}
