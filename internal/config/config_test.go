package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"API_KEY", "API_URL", "MODEL", "GOOGLE_API_KEY", "NOVTRAN_API_KEY"} {
		t.Setenv(name, "")
	}
	for i := 1; i <= MaxNumberedKeys; i++ {
		t.Setenv("API_KEY_"+strconv.Itoa(i), "")
	}
}

func loadIn(t *testing.T, dir, configFile string) *Config {
	t.Helper()
	t.Chdir(dir)

	v, err := NewViper(configFile)
	if err != nil {
		t.Fatalf("NewViper failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	clearKeyEnv(t)
	cfg := loadIn(t, t.TempDir(), "")

	if cfg.APITimeout != 600*time.Second {
		t.Errorf("api_timeout = %v, want 600s", cfg.APITimeout)
	}
	if cfg.Retry.BaseDelay != 5*time.Second || cfg.Retry.MaxDelay != 60*time.Second {
		t.Errorf("unexpected backoff bounds %v / %v", cfg.Retry.BaseDelay, cfg.Retry.MaxDelay)
	}
	if cfg.Retry.Network != 8 || cfg.Retry.Malformed != 3 || cfg.Retry.Timeout != 6 {
		t.Errorf("unexpected retry ceilings %+v", cfg.Retry)
	}
	if cfg.Workers.Default != 3 || cfg.Workers.Max != 10 {
		t.Errorf("unexpected workers %+v", cfg.Workers)
	}
	if cfg.Cooldown.RateLimit != 5*time.Minute {
		t.Errorf("cooldown.rate_limit = %v", cfg.Cooldown.RateLimit)
	}
	if cfg.Chunk.MaxChars != 800 || cfg.Chunk.MinChars != 600 {
		t.Errorf("unexpected chunk config %+v", cfg.Chunk)
	}
	if cfg.OutputPrefix != "中_" {
		t.Errorf("output_prefix = %q", cfg.OutputPrefix)
	}
}

func TestLoad_EnvironmentKeys(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("API_KEY", "sk-primary-000000")
	t.Setenv("API_KEY_1", "sk-second-111111")
	t.Setenv("API_KEY_3", "sk-third-3333333")
	t.Setenv("API_KEY_4", "sk-primary-000000")
	t.Setenv("API_URL", "http://localhost:8080/v1/chat/completions")

	cfg := loadIn(t, t.TempDir(), "")

	want := []string{"sk-primary-000000", "sk-second-111111", "sk-third-3333333"}
	if got := cfg.Credentials(); !reflect.DeepEqual(got, want) {
		t.Errorf("Credentials() = %v, want %v", got, want)
	}
	if cfg.APIURL != "http://localhost:8080/v1/chat/completions" {
		t.Errorf("api_url = %q", cfg.APIURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	content := `
model: qwen-max
api_key: sk-from-file-123456
workers:
  max: 4
retry:
  base_delay: 2s
paths:
  prompt_dir: /etc/novtran/prompts
`
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := loadIn(t, dir, path)

	if cfg.Model != "qwen-max" {
		t.Errorf("model = %q", cfg.Model)
	}
	if cfg.Workers.Max != 4 || cfg.Workers.Default != 3 {
		t.Errorf("unexpected workers %+v", cfg.Workers)
	}
	if cfg.Retry.BaseDelay != 2*time.Second {
		t.Errorf("retry.base_delay = %v", cfg.Retry.BaseDelay)
	}
	translate, update := cfg.Paths.TemplatePaths()
	if translate != "/etc/novtran/prompts/translate_prompt.md" || update != "/etc/novtran/prompts/update_terminology_prompt.md" {
		t.Errorf("unexpected template paths %q %q", translate, update)
	}
}

func TestNewViper_MissingExplicitFile(t *testing.T) {
	if _, err := NewViper(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}

func TestBindFlags(t *testing.T) {
	clearKeyEnv(t)
	t.Chdir(t.TempDir())

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("model", "", "")
	if err := fs.Parse([]string{"--model", "from-flag"}); err != nil {
		t.Fatal(err)
	}

	v, err := NewViper("")
	if err != nil {
		t.Fatal(err)
	}
	if err := BindFlags(v, fs, map[string]string{"model": "model", "api_url": "missing"}); err != nil {
		t.Fatalf("BindFlags failed: %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "from-flag" {
		t.Errorf("model = %q, want from-flag", cfg.Model)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		APIURL:     "https://api.example.com/v1/chat/completions",
		Model:      "m",
		APIKey:     "k",
		APITimeout: time.Second,
		Workers:    WorkersConfig{Default: 3, Max: 10},
		Chunk:      ChunkConfig{MaxChars: 800},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"no keys", func(c *Config) { c.APIKey = "" }},
		{"bad url", func(c *Config) { c.APIURL = "ftp://x" }},
		{"no model", func(c *Config) { c.Model = "" }},
		{"zero timeout", func(c *Config) { c.APITimeout = 0 }},
		{"no workers", func(c *Config) { c.Workers.Max = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEffectiveWorkers(t *testing.T) {
	c := Config{Workers: WorkersConfig{Default: 3, Max: 10}}
	tests := map[int]int{0: 3, -1: 3, 1: 1, 7: 7, 50: 10}
	for in, want := range tests {
		if got := c.EffectiveWorkers(in); got != want {
			t.Errorf("EffectiveWorkers(%d) = %d, want %d", in, got, want)
		}
	}
}
