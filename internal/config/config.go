// Package config loads the single Config value that is built once at
// startup and handed to every component constructor.
//
// Values come from built-in defaults, an optional config file, environment
// variables and bound command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// MaxNumberedKeys bounds the API_KEY_1 .. API_KEY_N scan.
const MaxNumberedKeys = 19

type Config struct {
	APIURL            string        `mapstructure:"api_url"`
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	APIKeys           []string      `mapstructure:"api_keys"`
	APITimeout        time.Duration `mapstructure:"api_timeout"`
	MinResponseChars  int           `mapstructure:"min_response_chars"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	JobTimeoutFactor  float64       `mapstructure:"job_timeout_factor"`
	OutputPrefix      string        `mapstructure:"output_prefix"`
	SourceExt         string        `mapstructure:"source_ext"`
	SourceLanguage    string        `mapstructure:"source_language"`
	TargetLanguage    string        `mapstructure:"target_language"`
	Debug             bool          `mapstructure:"debug"`

	Retry    RetryConfig    `mapstructure:"retry"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	Cooldown CooldownConfig `mapstructure:"cooldown"`
	Chunk    ChunkConfig    `mapstructure:"chunk"`
	Paths    PathsConfig    `mapstructure:"paths"`
}

// RetryConfig holds backoff bounds and per-failure-kind retry ceilings.
type RetryConfig struct {
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	RateLimitMinDelay time.Duration `mapstructure:"rate_limit_min_delay"`
	TranslateMax      int           `mapstructure:"translate_max"`
	ExtractMax        int           `mapstructure:"extract_max"`
	Network           int           `mapstructure:"network"`
	Malformed         int           `mapstructure:"malformed"`
	Timeout           int           `mapstructure:"timeout"`
	RateLimit         int           `mapstructure:"rate_limit"`
}

type WorkersConfig struct {
	Default int `mapstructure:"default"`
	Max     int `mapstructure:"max"`
}

// CooldownConfig controls how long a credential is benched after a failure.
type CooldownConfig struct {
	RateLimit  time.Duration `mapstructure:"rate_limit"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Connection time.Duration `mapstructure:"connection"`
	Errors     time.Duration `mapstructure:"errors"`
	MaxErrors  int           `mapstructure:"max_errors"`
}

type ChunkConfig struct {
	MaxChars int `mapstructure:"max_chars"`
	MinChars int `mapstructure:"min_chars"`
}

type PathsConfig struct {
	SourceRoot      string `mapstructure:"source_root"`
	OutputRoot      string `mapstructure:"output_root"`
	TerminologyDir  string `mapstructure:"terminology_dir"`
	PromptDir       string `mapstructure:"prompt_dir"`
	TranslatePrompt string `mapstructure:"translate_prompt"`
	UpdatePrompt    string `mapstructure:"update_prompt"`
	DB              string `mapstructure:"db"`
	LogFile         string `mapstructure:"log_file"`
}

// TemplatePaths resolves the translation and glossary-update templates
// against PromptDir unless they are absolute.
func (p PathsConfig) TemplatePaths() (translate, update string) {
	resolve := func(name string) string {
		if filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(p.PromptDir, name)
	}
	return resolve(p.TranslatePrompt), resolve(p.UpdatePrompt)
}

// SetDefaults registers every key with its default so that environment
// overrides are picked up by Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("api_key", "")
	v.SetDefault("api_keys", []string{})
	v.SetDefault("api_timeout", 600*time.Second)
	v.SetDefault("min_response_chars", 10)
	v.SetDefault("requests_per_minute", 0)
	v.SetDefault("job_timeout_factor", 1.5)
	v.SetDefault("output_prefix", "中_")
	v.SetDefault("source_ext", ".md")
	v.SetDefault("source_language", "auto")
	v.SetDefault("target_language", "zh")
	v.SetDefault("debug", false)

	v.SetDefault("retry.base_delay", 5*time.Second)
	v.SetDefault("retry.max_delay", 60*time.Second)
	v.SetDefault("retry.rate_limit_min_delay", 30*time.Second)
	v.SetDefault("retry.translate_max", 5)
	v.SetDefault("retry.extract_max", 7)
	v.SetDefault("retry.network", 8)
	v.SetDefault("retry.malformed", 3)
	v.SetDefault("retry.timeout", 6)
	v.SetDefault("retry.rate_limit", 5)

	v.SetDefault("workers.default", 3)
	v.SetDefault("workers.max", 10)

	v.SetDefault("cooldown.rate_limit", 5*time.Minute)
	v.SetDefault("cooldown.timeout", 30*time.Second)
	v.SetDefault("cooldown.connection", 45*time.Second)
	v.SetDefault("cooldown.errors", 60*time.Second)
	v.SetDefault("cooldown.max_errors", 5)

	v.SetDefault("chunk.max_chars", 800)
	v.SetDefault("chunk.min_chars", 600)

	v.SetDefault("paths.source_root", "./source")
	v.SetDefault("paths.output_root", "./output")
	v.SetDefault("paths.terminology_dir", "./terminology")
	v.SetDefault("paths.prompt_dir", "./prompts")
	v.SetDefault("paths.translate_prompt", "translate_prompt.md")
	v.SetDefault("paths.update_prompt", "update_terminology_prompt.md")
	v.SetDefault("paths.db", "./data/novtran.db")
	v.SetDefault("paths.log_file", "")
}

// NewViper returns a viper instance with defaults, the config file (if
// any) and environment bindings in place. An explicit configFile that
// cannot be read is an error; a missing default novtran.* file is not.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("novtran")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("NOVTRAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by existing .env files.
	_ = v.BindEnv("api_url", "NOVTRAN_API_URL", "API_URL")
	_ = v.BindEnv("api_key", "NOVTRAN_API_KEY", "API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("model", "NOVTRAN_MODEL", "MODEL")

	return v, nil
}

// BindFlags maps config keys to command-line flags. Flags that do not exist
// on fs are ignored so one table serves every command.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) error {
	for key, flag := range keys {
		f := fs.Lookup(flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}

// Load unmarshals v into a Config and collects the numbered API_KEY_n
// variables.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	for i := 1; i <= MaxNumberedKeys; i++ {
		if key := os.Getenv(fmt.Sprintf("API_KEY_%d", i)); key != "" {
			cfg.APIKeys = append(cfg.APIKeys, key)
		}
	}
	return &cfg, nil
}

// Credentials returns the primary key followed by the additional keys,
// without blanks or duplicates.
func (c *Config) Credentials() []string {
	seen := make(map[string]bool)
	var keys []string
	for _, k := range append([]string{c.APIKey}, c.APIKeys...) {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// Validate reports configuration errors that make a translation run
// impossible.
func (c *Config) Validate() error {
	var problems []string

	if len(c.Credentials()) == 0 {
		problems = append(problems, "no API key configured (set API_KEY or API_KEY_1..)")
	}
	if u, err := url.Parse(c.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		problems = append(problems, fmt.Sprintf("invalid api_url %q", c.APIURL))
	}
	if c.Model == "" {
		problems = append(problems, "model is empty")
	}
	if c.APITimeout <= 0 {
		problems = append(problems, "api_timeout must be positive")
	}
	if c.Workers.Max < 1 {
		problems = append(problems, "workers.max must be at least 1")
	}
	if c.Chunk.MaxChars < 1 {
		problems = append(problems, "chunk.max_chars must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// EffectiveWorkers clamps a requested worker count to [1, workers.max],
// using workers.default for non-positive requests.
func (c *Config) EffectiveWorkers(requested int) int {
	n := requested
	if n <= 0 {
		n = c.Workers.Default
	}
	if n > c.Workers.Max {
		n = c.Workers.Max
	}
	if n < 1 {
		n = 1
	}
	return n
}
