// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.askdw/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Gemini: model selection, temperature, max tokens, per-stage API keys
//   - Warehouse: the queried database (see storage.go)
//   - History: optional PostgreSQL chat log
//   - HTTP/Otel: serve-mode surface and tracing
//
// Security: sensitive data (passwords, API keys) is never logged; the config
// directory uses 0750 permissions. Sentinel errors support errors.Is checks.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidLanguage indicates an unsupported UI language code.
	ErrInvalidLanguage = errors.New("invalid language")

	// ErrInvalidWarehouseDriver indicates the warehouse driver is not supported.
	ErrInvalidWarehouseDriver = errors.New("invalid warehouse driver")

	// ErrInvalidWarehouseHost indicates the warehouse host is invalid.
	ErrInvalidWarehouseHost = errors.New("invalid warehouse host")

	// ErrInvalidWarehousePort indicates the warehouse port is out of range.
	ErrInvalidWarehousePort = errors.New("invalid warehouse port")

	// ErrInvalidWarehouseDBName indicates the warehouse database name is invalid.
	ErrInvalidWarehouseDBName = errors.New("invalid warehouse database name")

	// ErrInvalidWarehouseSSLMode indicates the warehouse SSL mode is invalid.
	ErrInvalidWarehouseSSLMode = errors.New("invalid warehouse SSL mode")

	// ErrInvalidWarehousePath indicates a missing sqlite database path.
	ErrInvalidWarehousePath = errors.New("invalid warehouse path")

	// ErrInvalidHistoryURL indicates the chat history DSN is malformed.
	ErrInvalidHistoryURL = errors.New("invalid history URL")

	// ErrInvalidThrottle indicates a non-positive throttle interval.
	ErrInvalidThrottle = errors.New("invalid throttle interval")

	// ErrInvalidTimeout indicates a non-positive LLM call timeout.
	ErrInvalidTimeout = errors.New("invalid LLM timeout")
)

// Warehouse driver identifiers used in Config.WarehouseDriver.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// LLM-backed pipeline stages. Each has its own API key slot in StageKeys,
// falling back to the shared GeminiAPIKey.
const (
	StageDescribe  = "describe"
	StageClassify  = "classify"
	StageVerify    = "verify"
	StageSmalltalk = "smalltalk"
	StageGenerate  = "generate"
	StageSummarize = "summarize"
)

// Stages lists all LLM-backed stages in pipeline order.
func Stages() []string {
	return []string{StageDescribe, StageClassify, StageVerify, StageSmalltalk, StageGenerate, StageSummarize}
}

// StageKeys holds one Gemini API key slot per LLM-backed stage.
// Empty slots fall back to the shared key. SENSITIVE: masked in MarshalJSON.
type StageKeys struct {
	Describe  string `mapstructure:"describe" json:"describe"`
	Classify  string `mapstructure:"classify" json:"classify"`
	Verify    string `mapstructure:"verify" json:"verify"`
	Smalltalk string `mapstructure:"smalltalk" json:"smalltalk"`
	Generate  string `mapstructure:"generate" json:"generate"`
	Summarize string `mapstructure:"summarize" json:"summarize"`
}

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys), update MarshalJSON.
type Config struct {
	// Gemini model configuration
	ModelName   string        `mapstructure:"model_name" json:"model_name"`
	Temperature float32       `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens"`
	LLMTimeout  time.Duration `mapstructure:"llm_timeout" json:"llm_timeout"`

	// GeminiAPIKey is the shared key used by every stage without its own slot.
	// SENSITIVE: masked in MarshalJSON.
	GeminiAPIKey string    `mapstructure:"gemini_api_key" json:"gemini_api_key"`
	Keys         StageKeys `mapstructure:"gemini_keys" json:"gemini_keys"`

	// Language selects the catalog for canned texts ("en" or "ar").
	// Model-generated replies always follow the question's language instead.
	Language string `mapstructure:"language" json:"language"`

	// Warehouse configuration: the database questions are answered from.
	// Credentials may be overridden per session from the connect form.
	WarehouseDriver   string `mapstructure:"warehouse_driver" json:"warehouse_driver"`
	WarehouseHost     string `mapstructure:"warehouse_host" json:"warehouse_host"`
	WarehousePort     int    `mapstructure:"warehouse_port" json:"warehouse_port"`
	WarehouseUser     string `mapstructure:"warehouse_user" json:"warehouse_user"`
	WarehousePassword string `mapstructure:"warehouse_password" json:"warehouse_password"` // SENSITIVE: masked in MarshalJSON
	WarehouseDBName   string `mapstructure:"warehouse_db_name" json:"warehouse_db_name"`
	WarehouseSSLMode  string `mapstructure:"warehouse_ssl_mode" json:"warehouse_ssl_mode"`
	WarehousePath     string `mapstructure:"warehouse_path" json:"warehouse_path"` // sqlite file (driver "sqlite" only)

	// Query execution limits
	QueryTimeout time.Duration `mapstructure:"query_timeout" json:"query_timeout"`
	MaxRows      int           `mapstructure:"max_rows" json:"max_rows"`

	// HistoryURL is the optional PostgreSQL DSN for the persistent chat log.
	// Empty keeps the log in memory for the lifetime of the session.
	// SENSITIVE: masked in MarshalJSON (embeds credentials).
	HistoryURL string `mapstructure:"history_url" json:"history_url"`

	// SchemaCachePath is the schema description store file.
	SchemaCachePath string `mapstructure:"schema_cache_path" json:"schema_cache_path"`

	// ThrottleInterval spaces out SQL pipeline invocations against the API quota.
	ThrottleInterval time.Duration `mapstructure:"throttle_interval" json:"throttle_interval"`

	// Serve mode configuration
	HTTPAddr    string   `mapstructure:"http_addr" json:"http_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"` // Trust X-Real-IP/X-Forwarded-For (set true behind reverse proxy)
	RateRPS     float64  `mapstructure:"rate_rps" json:"rate_rps"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Otel tracing (serve mode; disabled when endpoint is empty)
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// OtelConfig configures the OTLP trace exporter.
type OtelConfig struct {
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
	ServiceName string `mapstructure:"service_name" json:"service_name"`
	Environment string `mapstructure:"environment" json:"environment"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".askdw")

	// 0750: config may hold credentials
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults(configDir)
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// HISTORY_URL wins over the config file, DATABASE_URL is accepted as an alias
	if err := cfg.parseHistoryURL(); err != nil {
		return nil, fmt.Errorf("parsing history URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(configDir string) {
	// Gemini defaults
	viper.SetDefault("model_name", "gemini-2.5-flash")
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 2048)
	viper.SetDefault("llm_timeout", 60*time.Second)
	viper.SetDefault("language", "en")

	// Warehouse defaults: the demo AdventureWorks warehouse
	viper.SetDefault("warehouse_driver", DriverPostgres)
	viper.SetDefault("warehouse_host", "localhost")
	viper.SetDefault("warehouse_port", 3306)
	viper.SetDefault("warehouse_user", "root")
	viper.SetDefault("warehouse_password", "admin")
	viper.SetDefault("warehouse_db_name", "AdventureWorksDW2022_copy")
	viper.SetDefault("warehouse_ssl_mode", "disable")

	// Query limits
	viper.SetDefault("query_timeout", 30*time.Second)
	viper.SetDefault("max_rows", 500)

	// Schema description cache
	viper.SetDefault("schema_cache_path", filepath.Join(configDir, "schema_descriptions.txt"))

	// Pipeline throttle against the Gemini quota
	viper.SetDefault("throttle_interval", 10*time.Second)

	// Serve defaults
	viper.SetDefault("http_addr", ":8080")
	viper.SetDefault("cors_origins", []string{"http://localhost:4200"})
	viper.SetDefault("trust_proxy", false)
	viper.SetDefault("rate_rps", 5)
	viper.SetDefault("rate_burst", 10)

	// Otel defaults (endpoint empty: tracing off)
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.service_name", "askdw")
	viper.SetDefault("otel.environment", "dev")
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY is the shared key; GEMINI_API_KEY_1..6 keep the historical
// per-stage slots (describe, classify, verify, smalltalk, generate, summarize).
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	// If this panics, it's a BUG in our code, not a runtime error
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("gemini_api_key", "GEMINI_API_KEY")
	mustBind("gemini_keys.describe", "GEMINI_API_KEY_1")
	mustBind("gemini_keys.classify", "GEMINI_API_KEY_2")
	mustBind("gemini_keys.verify", "GEMINI_API_KEY_3")
	mustBind("gemini_keys.smalltalk", "GEMINI_API_KEY_4")
	mustBind("gemini_keys.generate", "GEMINI_API_KEY_5")
	mustBind("gemini_keys.summarize", "GEMINI_API_KEY_6")

	mustBind("model_name", "ASKDW_MODEL_NAME")
	mustBind("language", "ASKDW_LANG")

	mustBind("warehouse_driver", "ASKDW_WAREHOUSE_DRIVER")
	mustBind("warehouse_host", "ASKDW_WAREHOUSE_HOST")
	mustBind("warehouse_port", "ASKDW_WAREHOUSE_PORT")
	mustBind("warehouse_user", "ASKDW_WAREHOUSE_USER")
	mustBind("warehouse_password", "ASKDW_WAREHOUSE_PASSWORD")
	mustBind("warehouse_db_name", "ASKDW_WAREHOUSE_DB")
	mustBind("warehouse_path", "ASKDW_WAREHOUSE_PATH")

	mustBind("http_addr", "ASKDW_HTTP_ADDR")
	mustBind("cors_origins", "ASKDW_CORS_ORIGINS")
	mustBind("trust_proxy", "ASKDW_TRUST_PROXY")

	mustBind("otel.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// APIKeyFor resolves the key for an LLM-backed stage: the stage slot when set,
// otherwise the shared key.
func (c *Config) APIKeyFor(stage string) string {
	var key string
	switch stage {
	case StageDescribe:
		key = c.Keys.Describe
	case StageClassify:
		key = c.Keys.Classify
	case StageVerify:
		key = c.Keys.Verify
	case StageSmalltalk:
		key = c.Keys.Smalltalk
	case StageGenerate:
		key = c.Keys.Generate
	case StageSummarize:
		key = c.Keys.Summarize
	}
	if key == "" {
		return c.GeminiAPIKey
	}
	return key
}

// DistinctAPIKeys returns the unique resolved keys across all stages, in
// stage order. Callers build one Genkit instance per distinct key.
func (c *Config) DistinctAPIKeys() []string {
	seen := make(map[string]bool, len(Stages()))
	var keys []string
	for _, stage := range Stages() {
		k := c.APIKeyFor(stage)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid substring matching against real secrets.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked; longer ones keep the first and
// last 2 characters for debug utility. This defends against accidental logging
// of real secrets, not against compromised logs - rotate secrets in that case.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	prefix := make([]byte, 2)
	suffix := make([]byte, 2)
	copy(prefix, s[:2])
	copy(suffix, s[len(s)-2:])
	return string(prefix) + "<" + maskedValue + ">" + string(suffix)
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked: WarehousePassword, GeminiAPIKey, every StageKeys
// slot, and HistoryURL credentials. When adding new sensitive fields, update
// this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.WarehousePassword = maskSecret(a.WarehousePassword)
	a.GeminiAPIKey = maskSecret(a.GeminiAPIKey)
	a.Keys.Describe = maskSecret(a.Keys.Describe)
	a.Keys.Classify = maskSecret(a.Keys.Classify)
	a.Keys.Verify = maskSecret(a.Keys.Verify)
	a.Keys.Smalltalk = maskSecret(a.Keys.Smalltalk)
	a.Keys.Generate = maskSecret(a.Keys.Generate)
	a.Keys.Summarize = maskSecret(a.Keys.Summarize)
	a.HistoryURL = maskHistoryURL(a.HistoryURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified model name for Genkit,
// e.g. "googleai/gemini-2.5-flash". Names already containing "/" pass through.
func (c *Config) FullModelName() string {
	if strings.Contains(c.ModelName, "/") {
		return c.ModelName
	}
	return "googleai/" + c.ModelName
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
