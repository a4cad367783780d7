package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "SWITCHBOARD"

// Config holds all application configuration for switchboard.
// It is loaded from ~/.switchboard/config.yaml and can be overridden by environment variables.
type Config struct {
	Router    RouterConfig    `mapstructure:"router" yaml:"router"`
	Local     LocalConfig     `mapstructure:"local" yaml:"local"`
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Knowledge KnowledgeConfig `mapstructure:"knowledge" yaml:"knowledge"`
	Memory    MemoryConfig    `mapstructure:"memory" yaml:"memory"`
	Ingestion IngestionConfig `mapstructure:"ingestion" yaml:"ingestion"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Persona   PersonaConfig   `mapstructure:"persona" yaml:"persona"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
}

// RouterConfig controls the routing policy.
type RouterConfig struct {
	// ShortMessageThreshold is the max length (chars) routed straight to local
	ShortMessageThreshold int `mapstructure:"short_message_threshold" yaml:"short_message_threshold"`
	// LongContextThreshold is the min length (chars) routed to the long-context backend
	LongContextThreshold int `mapstructure:"long_context_threshold" yaml:"long_context_threshold"`
	// ClassifierEnabled asks the local model to label messages no keyword matched
	ClassifierEnabled bool `mapstructure:"classifier_enabled" yaml:"classifier_enabled"`
	// ClassifierLabels maps classifier output labels to route ids
	ClassifierLabels map[string]string `mapstructure:"classifier_labels" yaml:"classifier_labels"`
	// FallbackStrategy is "local" (straight to local) or "chain" (other remotes first)
	FallbackStrategy string `mapstructure:"fallback_strategy" yaml:"fallback_strategy"`
	// TopK is the number of knowledge chunks injected into prompts
	TopK int `mapstructure:"top_k" yaml:"top_k"`
	// MaxInputChars truncates oversized inbound messages
	MaxInputChars int `mapstructure:"max_input_chars" yaml:"max_input_chars"`
}

// LocalConfig configures the on-device llama.cpp backend.
type LocalConfig struct {
	Binary      string        `mapstructure:"binary" yaml:"binary"`
	ModelPath   string        `mapstructure:"model_path" yaml:"model_path"`
	Threads     int           `mapstructure:"threads" yaml:"threads"`
	ContextSize int           `mapstructure:"context_size" yaml:"context_size"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// ProvidersConfig holds the remote backends keyed by their route role.
type ProvidersConfig struct {
	Groq   ProviderConfig `mapstructure:"groq" yaml:"groq"`
	Gemini ProviderConfig `mapstructure:"gemini" yaml:"gemini"`
	Kimi   ProviderConfig `mapstructure:"kimi" yaml:"kimi"`
}

// ProviderConfig contains configuration for a specific remote provider.
type ProviderConfig struct {
	// Endpoint is the API base URL
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APIKey is the authentication key; prefer the environment for this
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
	// Model is the specific model to use with this provider
	Model string `mapstructure:"model" yaml:"model"`
	// Timeout bounds a single request
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RequestsPerMinute throttles outbound calls (0 = unlimited)
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// KnowledgeConfig contains configuration for the retrieval store.
type KnowledgeConfig struct {
	// DataDir holds the vector index, meta descriptor and chunk database
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
	// Dimension of the embedding model (0 = ask the embedder on open)
	Dimension int `mapstructure:"dimension" yaml:"dimension"`
	// Embedder selects the embedding backend
	Embedder EmbedderConfig `mapstructure:"embedder" yaml:"embedder"`
}

// EmbedderConfig configures the embedding model client.
type EmbedderConfig struct {
	// Provider is "ollama" or "openai" (any OpenAI-compatible endpoint)
	Provider string `mapstructure:"provider" yaml:"provider"`
	Model    string `mapstructure:"model" yaml:"model"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
}

// MemoryConfig configures conversation memory.
type MemoryConfig struct {
	// Backend is "sqlite" or "redis"
	Backend  string      `mapstructure:"backend" yaml:"backend"`
	DBPath   string      `mapstructure:"db_path" yaml:"db_path"`
	MaxTurns int         `mapstructure:"max_turns" yaml:"max_turns"`
	Redis    RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig holds connection settings for the redis memory backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// IngestionConfig configures document ingestion.
type IngestionConfig struct {
	ChunkSizeWords int    `mapstructure:"chunk_size_words" yaml:"chunk_size_words"`
	Source         string `mapstructure:"source" yaml:"source"`
	// WatchDir is re-scanned on Schedule while serving (empty = disabled)
	WatchDir string `mapstructure:"watch_dir" yaml:"watch_dir"`
	// Schedule is a cron spec, e.g. "@every 15m"
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
	Workers  int    `mapstructure:"workers" yaml:"workers"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// AuthTokenHash is a bcrypt hash of the bearer token (empty = no auth)
	AuthTokenHash string        `mapstructure:"auth_token_hash" yaml:"auth_token_hash"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// PersonaConfig points at the assistant personality file.
type PersonaConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error")
	Level string `mapstructure:"level" yaml:"level"`
	// File is the path to the JSON log file
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// DefaultClassifierLabels maps the classifier vocabulary to route ids.
func DefaultClassifierLabels() map[string]string {
	return map[string]string{
		"LOCAL":  "local_simple",
		"GROQ":   "groq",
		"GEMINI": "gemini",
		"KIMI":   "kimi",
	}
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	dataDir := defaultDataDir()

	return &Config{
		Router: RouterConfig{
			ShortMessageThreshold: 150,
			LongContextThreshold:  1200,
			ClassifierEnabled:     true,
			ClassifierLabels:      DefaultClassifierLabels(),
			FallbackStrategy:      "local",
			TopK:                  3,
			MaxInputChars:         8000,
		},
		Local: LocalConfig{
			Binary:      filepath.Join(dataDir, "bin", "llama-cli"),
			ModelPath:   filepath.Join(dataDir, "models", "gemma-2b-it.gguf"),
			Threads:     4,
			ContextSize: 2048,
			MaxTokens:   256,
			Temperature: 0.2,
			Timeout:     120 * time.Second,
		},
		Providers: ProvidersConfig{
			Groq: ProviderConfig{
				Endpoint:          "https://api.groq.com/openai/v1",
				Model:             "llama-3.1-8b-instant",
				Timeout:           25 * time.Second,
				RequestsPerMinute: 30,
			},
			Gemini: ProviderConfig{
				Endpoint:          "https://generativelanguage.googleapis.com/v1beta",
				Model:             "gemini-1.5-flash",
				Timeout:           25 * time.Second,
				RequestsPerMinute: 15,
			},
			Kimi: ProviderConfig{
				Endpoint:          "https://api.moonshot.ai/v1",
				Model:             "moonshot-v1-8k",
				Timeout:           25 * time.Second,
				RequestsPerMinute: 20,
			},
		},
		Knowledge: KnowledgeConfig{
			DataDir:   filepath.Join(dataDir, "rag"),
			Dimension: 384,
			Embedder: EmbedderConfig{
				Provider: "ollama",
				Model:    "all-minilm",
				Endpoint: "http://127.0.0.1:11434",
			},
		},
		Memory: MemoryConfig{
			Backend:  "sqlite",
			DBPath:   filepath.Join(dataDir, "memory.sqlite3"),
			MaxTurns: 6,
			Redis: RedisConfig{
				Addr: "127.0.0.1:6379",
			},
		},
		Ingestion: IngestionConfig{
			ChunkSizeWords: 500,
			Source:         "local_docs",
			Schedule:       "@every 15m",
			Workers:        4,
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 180 * time.Second,
		},
		Persona: PersonaConfig{
			Path: filepath.Join(dataDir, "personality.yaml"),
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(dataDir, "logs", "switchboard.log"),
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 14,
		},
	}
}

// Load reads configuration from the default location (~/.switchboard/config.yaml)
// and merges with environment variables. If no config file exists, it creates
// one with default values.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// LoadFromPath reads configuration from a specific file path and merges with
// environment variables. If the file doesn't exist, it creates one with default values.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: SWITCHBOARD_ROUTER_TOP_K=5
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider secrets also honour the vendor-standard variable names.
	secrets := map[string][]string{
		"providers.groq.api_key":     {"GROQ_API_KEY"},
		"providers.gemini.api_key":   {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"providers.kimi.api_key":     {"KIMI_API_KEY", "MOONSHOT_API_KEY"},
		"knowledge.embedder.api_key": {"OPENAI_API_KEY"},
	}
	for key, names := range secrets {
		envs := append([]string{key, EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(envs...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Local.Binary = expandPath(cfg.Local.Binary)
	cfg.Local.ModelPath = expandPath(cfg.Local.ModelPath)
	cfg.Knowledge.DataDir = expandPath(cfg.Knowledge.DataDir)
	cfg.Memory.DBPath = expandPath(cfg.Memory.DBPath)
	cfg.Ingestion.WatchDir = expandPath(cfg.Ingestion.WatchDir)
	cfg.Persona.Path = expandPath(cfg.Persona.Path)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills zero values left by partial config files.
func (c *Config) applyDefaults() {
	d := Default()

	if len(c.Router.ClassifierLabels) == 0 {
		c.Router.ClassifierLabels = d.Router.ClassifierLabels
	} else {
		// viper lower-cases map keys; the classifier matches upper-case labels.
		labels := make(map[string]string, len(c.Router.ClassifierLabels))
		for k, v := range c.Router.ClassifierLabels {
			labels[strings.ToUpper(k)] = v
		}
		c.Router.ClassifierLabels = labels
	}
	if c.Router.FallbackStrategy == "" {
		c.Router.FallbackStrategy = d.Router.FallbackStrategy
	}
	if c.Memory.Backend == "" {
		c.Memory.Backend = d.Memory.Backend
	}
	if c.Local.Timeout == 0 {
		c.Local.Timeout = d.Local.Timeout
	}
	for _, p := range []*ProviderConfig{&c.Providers.Groq, &c.Providers.Gemini, &c.Providers.Kimi} {
		if p.Timeout == 0 {
			p.Timeout = 25 * time.Second
		}
	}
}

// Save writes the current configuration to the default config file location.
func (c *Config) Save() error {
	return c.SaveToPath(DefaultPath())
}

// SaveToPath writes the current configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return writeConfigFile(path, c)
}

// DefaultPath returns the full path to the default config file.
func DefaultPath() string {
	return filepath.Join(defaultDataDir(), "config.yaml")
}

// EnsureDirectories creates all directories switchboard writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Knowledge.DataDir,
		filepath.Dir(c.Memory.DBPath),
		filepath.Dir(c.Logging.File),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Validate checks the configuration for values the router cannot work with.
func (c *Config) Validate() error {
	if c.Router.ShortMessageThreshold < 0 {
		return fmt.Errorf("router.short_message_threshold cannot be negative")
	}
	if c.Router.LongContextThreshold <= c.Router.ShortMessageThreshold {
		return fmt.Errorf("router.long_context_threshold (%d) must exceed short_message_threshold (%d)",
			c.Router.LongContextThreshold, c.Router.ShortMessageThreshold)
	}
	if c.Router.FallbackStrategy != "local" && c.Router.FallbackStrategy != "chain" {
		return fmt.Errorf("invalid fallback_strategy '%s', must be 'local' or 'chain'", c.Router.FallbackStrategy)
	}
	if c.Router.TopK < 0 {
		return fmt.Errorf("router.top_k cannot be negative")
	}
	if c.Router.MaxInputChars <= 0 {
		return fmt.Errorf("router.max_input_chars must be positive")
	}

	if c.Local.Threads <= 0 || c.Local.ContextSize <= 0 || c.Local.MaxTokens <= 0 {
		return fmt.Errorf("local.threads, local.context_size and local.max_tokens must be positive")
	}

	if c.Knowledge.DataDir == "" {
		return fmt.Errorf("knowledge.data_dir cannot be empty")
	}
	if c.Knowledge.Dimension < 0 {
		return fmt.Errorf("knowledge.dimension cannot be negative")
	}
	switch c.Knowledge.Embedder.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("invalid embedder provider '%s', must be 'ollama' or 'openai'", c.Knowledge.Embedder.Provider)
	}

	switch c.Memory.Backend {
	case "sqlite":
		if c.Memory.DBPath == "" {
			return fmt.Errorf("memory.db_path cannot be empty for the sqlite backend")
		}
	case "redis":
		if c.Memory.Redis.Addr == "" {
			return fmt.Errorf("memory.redis.addr cannot be empty for the redis backend")
		}
	default:
		return fmt.Errorf("invalid memory backend '%s', must be 'sqlite' or 'redis'", c.Memory.Backend)
	}
	if c.Memory.MaxTurns <= 0 {
		return fmt.Errorf("memory.max_turns must be positive")
	}

	if c.Ingestion.ChunkSizeWords <= 0 {
		return fmt.Errorf("ingestion.chunk_size_words must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}

	return nil
}

// writeConfigFile writes a Config struct to a YAML file.
// Uses gopkg.in/yaml.v3 directly to ensure proper tag-based serialization.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// API keys may end up in here.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".switchboard")
}

// expandPath expands ~ to the user's home directory in a path string.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
