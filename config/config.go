package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrConfig 表示缺失必需凭据或配置值非法，CLI 以非零码退出。
var ErrConfig = errors.New("config error")

const (
	defaultOllamaModel     = "qwen2.5:3b-instruct"
	defaultOllamaBaseURL   = "http://127.0.0.1:11434/v1"
	defaultHFBaseURL       = "http://127.0.0.1:8080/v1"
	defaultMaxLength       = 220
	defaultCycleStatePath  = "post_cycle_state.json"
	defaultQuotesStorePath = "quotes_master.csv"
	defaultOverlayPath     = "bot.yaml"
)

// Config holds everything one bot invocation needs.
type Config struct {
	Twitter TwitterConfig

	Provider LLMConfig
	Ollama   LLMConfig
	HF       LLMConfig

	MaxLength       int
	DryRunDefault   bool
	CycleStatePath  string
	QuotesStorePath string
	ImageOutDir     string
	LogLevel        string

	Prompts PromptConfig
	Image   ImageConfig
}

// TwitterConfig holds the user-context credentials used for posting.
type TwitterConfig struct {
	APIKey            string
	APIKeySecret      string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
}

// LLMConfig 描述一个 OpenAI 兼容端点。
type LLMConfig struct {
	Model   string
	APIKey  string
	BaseURL string
}

// PromptConfig 可由 YAML 覆盖，空值表示使用生成器内置文案。
type PromptConfig struct {
	System   string `yaml:"system"`
	Question string `yaml:"question"`
	Fallback string `yaml:"fallback"`
}

type ImageConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type overlay struct {
	Prompts PromptConfig `yaml:"prompts"`
	Image   ImageConfig  `yaml:"image"`
}

// Load reads .env files (if any), the process environment and the optional YAML overlay.
// Real environment variables always win over .env entries.
func Load(dotenvPaths ...string) (Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, p := range dotenvPaths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("%w: load %s: %v", ErrConfig, p, err)
		}
	}

	cfg := Config{
		Twitter: TwitterConfig{
			APIKey:            os.Getenv("TWITTER_API_KEY"),
			APIKeySecret:      os.Getenv("TWITTER_API_KEY_SECRET"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
			BearerToken:       os.Getenv("TWITTER_BEARER_TOKEN"),
		},
		Provider: LLMConfig{
			Model:   os.Getenv("PROVIDER_MODEL"),
			APIKey:  os.Getenv("PROVIDER_API_KEY"),
			BaseURL: os.Getenv("PROVIDER_BASE_URL"),
		},
		Ollama: LLMConfig{
			Model:   envOr("OLLAMA_MODEL", defaultOllamaModel),
			BaseURL: envOr("OLLAMA_BASE_URL", defaultOllamaBaseURL),
		},
		HF: LLMConfig{
			Model:   os.Getenv("HF_MODEL"),
			APIKey:  os.Getenv("HF_API_KEY"),
			BaseURL: envOr("HF_BASE_URL", defaultHFBaseURL),
		},
		CycleStatePath:  envOr("CYCLE_STATE_PATH", defaultCycleStatePath),
		QuotesStorePath: envOr("QUOTES_STORE_PATH", defaultQuotesStorePath),
		ImageOutDir:     os.Getenv("IMAGE_OUT_DIR"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
	}

	maxLength, err := envInt("MAX_LENGTH", defaultMaxLength)
	if err != nil {
		return Config{}, err
	}
	if maxLength <= 0 {
		return Config{}, fmt.Errorf("%w: MAX_LENGTH must be > 0, got %d", ErrConfig, maxLength)
	}
	cfg.MaxLength = maxLength

	dryRun, err := envBool("DRY_RUN_DEFAULT", true)
	if err != nil {
		return Config{}, err
	}
	cfg.DryRunDefault = dryRun

	overlayPath, explicit := os.LookupEnv("BOT_CONFIG")
	if !explicit {
		overlayPath = defaultOverlayPath
	}
	if err := cfg.applyOverlay(overlayPath, explicit); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyOverlay(path string, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}
	var ov overlay
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrConfig, path, err)
	}
	c.Prompts = ov.Prompts
	if ov.Image.Width < 0 || ov.Image.Height < 0 {
		return fmt.Errorf("%w: image size must not be negative", ErrConfig)
	}
	c.Image = ov.Image
	return nil
}

// MissingTwitter returns the names of required posting credentials that are unset.
func (c Config) MissingTwitter() []string {
	var missing []string
	if c.Twitter.APIKey == "" {
		missing = append(missing, "TWITTER_API_KEY")
	}
	if c.Twitter.APIKeySecret == "" {
		missing = append(missing, "TWITTER_API_KEY_SECRET")
	}
	if c.Twitter.AccessToken == "" {
		missing = append(missing, "TWITTER_ACCESS_TOKEN")
	}
	if c.Twitter.AccessTokenSecret == "" {
		missing = append(missing, "TWITTER_ACCESS_TOKEN_SECRET")
	}
	return missing
}

func (c Config) RequireTwitter() error {
	if missing := c.MissingTwitter(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrConfig, strings.Join(missing, ", "))
	}
	return nil
}

// ProviderConfigured reports whether all three hosted-provider settings are present.
func (c Config) ProviderConfigured() bool {
	return c.Provider.APIKey != "" && c.Provider.BaseURL != "" && c.Provider.Model != ""
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrConfig, key, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.ToLower(raw))
	if err != nil {
		return false, fmt.Errorf("%w: parse %s: %v", ErrConfig, key, err)
	}
	return b, nil
}
