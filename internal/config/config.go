// Package config provides configuration management for the campus drift service.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

const (
	// DefaultPort is the default HTTP port for the drift service.
	DefaultPort = 8000

	// DefaultDBDriver is the database driver used when none is configured.
	DefaultDBDriver = "sqlite"

	// DefaultAssistantEndpoint is an OpenAI-compatible chat completions URL.
	DefaultAssistantEndpoint = "https://openrouter.ai/api/v1/chat/completions"
)

// DefaultAssistantModels are tried in order until one answers.
var DefaultAssistantModels = []string{
	"openrouter/free",
	"meta-llama/llama-3.3-70b-instruct:free",
	"mistralai/mistral-small-3.1-24b-instruct:free",
	"qwen/qwen3-4b:free",
}

// Config holds the application configuration.
type Config struct {
	// HTTP settings
	Port           int      `json:"port"`
	RateLimitRPS   float64  `json:"rate_limit_rps"`   // Per-client requests per second (0 = unlimited)
	RateLimitBurst int      `json:"rate_limit_burst"` // Burst size for the per-client limiter
	CORSOrigins    []string `json:"cors_origins"`

	// Database settings
	DBDriver string `json:"db_driver"` // "sqlite" or "postgres"
	DBDSN    string `json:"db_dsn"`    // SQLite path or PostgreSQL DSN
	MaxConns int    `json:"max_conns"`
	SeedDemo bool   `json:"seed_demo"` // Load the demo campus into an empty store

	// Nudge engine settings
	Epsilon       float64 `json:"epsilon"`        // Exploration probability
	RandomSeed    uint64  `json:"random_seed"`    // 0 = seeded from the clock
	TemplatesPath string  `json:"templates_path"` // Optional YAML template catalog

	// Assistant settings
	AssistantEndpoint       string   `json:"assistant_endpoint"`
	AssistantAPIKey         string   `json:"-"`
	AssistantModels         []string `json:"assistant_models"`
	AssistantTimeoutSeconds int      `json:"assistant_timeout_seconds"`
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// DataDir returns the data directory path (~/.campus-drift).
func DataDir() string {
	if dir := os.Getenv("DRIFT_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".campus-drift")
}

// DBPath returns the SQLite database file path.
func DBPath() string {
	return filepath.Join(DataDir(), "campus-drift.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// EnsureSettings creates a default settings file if it doesn't exist.
func EnsureSettings() error {
	path := SettingsPath()

	if _, err := os.Stat(path); err == nil {
		return nil
	}

	defaultSettings := `{
  "DRIFT_PORT": 8000,
  "DRIFT_DB_DRIVER": "sqlite",
  "DRIFT_EPSILON": 0.2,
  "DRIFT_SEED_DEMO": true,
  "DRIFT_RATE_LIMIT_RPS": 10,
  "DRIFT_RATE_LIMIT_BURST": 20
}
`
	return os.WriteFile(path, []byte(defaultSettings), 0600)
}

// EnsureAll ensures all required directories and files exist.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	if err := EnsureSettings(); err != nil {
		return err
	}
	return nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Port:                    DefaultPort,
		RateLimitRPS:            10,
		RateLimitBurst:          20,
		CORSOrigins:             []string{"http://localhost:5173", "http://localhost:3000"},
		DBDriver:                DefaultDBDriver,
		DBDSN:                   DBPath(),
		MaxConns:                10,
		SeedDemo:                true,
		Epsilon:                 0.2,
		AssistantEndpoint:       DefaultAssistantEndpoint,
		AssistantModels:         DefaultAssistantModels,
		AssistantTimeoutSeconds: 30,
	}
}

// Load loads configuration from the settings file, merging with defaults,
// then applies environment overrides.
func Load() (*Config, error) {
	return LoadFrom(SettingsPath())
}

// LoadFrom loads configuration from the given settings file.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		var settings map[string]interface{}
		if jsonErr := json.Unmarshal(data, &settings); jsonErr == nil {
			applySettings(cfg, settings)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applySettings(cfg *Config, settings map[string]interface{}) {
	if v, ok := settings["DRIFT_PORT"].(float64); ok && v > 0 {
		cfg.Port = int(v)
	}
	if v, ok := settings["DRIFT_RATE_LIMIT_RPS"].(float64); ok && v >= 0 {
		cfg.RateLimitRPS = v
	}
	if v, ok := settings["DRIFT_RATE_LIMIT_BURST"].(float64); ok && v > 0 {
		cfg.RateLimitBurst = int(v)
	}
	if v, ok := settings["DRIFT_CORS_ORIGINS"].(string); ok {
		cfg.CORSOrigins = splitTrim(v)
	}
	if v, ok := settings["DRIFT_DB_DRIVER"].(string); ok && v != "" {
		cfg.DBDriver = v
	}
	if v, ok := settings["DRIFT_DB_DSN"].(string); ok && v != "" {
		cfg.DBDSN = v
	}
	if v, ok := settings["DRIFT_MAX_CONNS"].(float64); ok && v > 0 {
		cfg.MaxConns = int(v)
	}
	if v, ok := settings["DRIFT_SEED_DEMO"].(bool); ok {
		cfg.SeedDemo = v
	}
	if v, ok := settings["DRIFT_EPSILON"].(float64); ok && v >= 0 && v <= 1 {
		cfg.Epsilon = v
	}
	if v, ok := settings["DRIFT_RANDOM_SEED"].(float64); ok && v >= 0 {
		cfg.RandomSeed = uint64(v)
	}
	if v, ok := settings["DRIFT_TEMPLATES_PATH"].(string); ok {
		cfg.TemplatesPath = v
	}
	if v, ok := settings["DRIFT_ASSISTANT_ENDPOINT"].(string); ok && v != "" {
		cfg.AssistantEndpoint = v
	}
	if v, ok := settings["DRIFT_ASSISTANT_MODELS"].(string); ok && v != "" {
		cfg.AssistantModels = splitTrim(v)
	}
	if v, ok := settings["DRIFT_ASSISTANT_TIMEOUT_SECONDS"].(float64); ok && v > 0 {
		cfg.AssistantTimeoutSeconds = int(v)
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DRIFT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if v := os.Getenv("DRIFT_DB_DRIVER"); v != "" {
		cfg.DBDriver = v
	}
	if v := os.Getenv("DRIFT_DB_DSN"); v != "" {
		cfg.DBDSN = v
	}
	cfg.AssistantAPIKey = os.Getenv("OPENROUTER_API_KEY")
}

// splitTrim splits a comma-separated string and trims whitespace.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Get returns the global configuration, loading it if necessary.
func Get() *Config {
	configOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
			applyEnv(cfg)
		}
		configMu.Lock()
		globalConfig = cfg
		configMu.Unlock()
	})

	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}

// Reload re-reads the settings file and replaces the global configuration.
// The previous configuration stays in place if the file cannot be read.
func Reload() (*Config, error) {
	Get()
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	configMu.Lock()
	globalConfig = cfg
	configMu.Unlock()
	return cfg, nil
}
