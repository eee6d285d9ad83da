// Package config handles loading and validating the confidant configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the confidant daemon.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Transports  TransportsConfig  `mapstructure:"transports"`
	Interpreter InterpreterConfig `mapstructure:"interpreter"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	Blob        BlobConfig        `mapstructure:"blob"`
	Session     SessionConfig     `mapstructure:"session"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	Translate   TranslateConfig   `mapstructure:"translate"`
	TTS         TTSConfig         `mapstructure:"tts"`
	Audio       AudioConfig       `mapstructure:"audio"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds the health check server settings.
type ServerConfig struct {
	HealthPort int `mapstructure:"health_port"`
}

// TransportsConfig holds the configuration for each transport layer.
type TransportsConfig struct {
	GRPC GRPCConfig `mapstructure:"grpc"`
	HTTP HTTPConfig `mapstructure:"http"`
	NATS NATSConfig `mapstructure:"nats"`
}

// GRPCConfig configures the gRPC transport.
type GRPCConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HTTPConfig configures the HTTP/WebSocket transport.
type HTTPConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// NATSConfig configures the NATS request/reply transport.
type NATSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URL        string `mapstructure:"url"`
	Subject    string `mapstructure:"subject"`
	QueueGroup string `mapstructure:"queue_group"`
}

// InterpreterConfig selects and configures the transcription and completion backend.
type InterpreterConfig struct {
	Backend string       `mapstructure:"backend"` // "openai" or "local"
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Local   LocalConfig  `mapstructure:"local"`

	TranscribeTimeout time.Duration `mapstructure:"transcribe_timeout"`
}

// OpenAIConfig holds settings for any OpenAI-compatible API (OpenAI, llama.cpp server, vLLM).
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	CompletionModel    string `mapstructure:"completion_model"`
}

// LocalConfig holds self-hosted model settings.
type LocalConfig struct {
	WhisperEndpoint string `mapstructure:"whisper_endpoint"`
	WhisperType     string `mapstructure:"whisper_type"` // "openai" (default) or "asr" (ahmetoner/whisper-asr-webservice)
	LLMEndpoint     string `mapstructure:"llm_endpoint"`
	LLMModel        string `mapstructure:"llm_model"` // Ollama model name (e.g., "llama3.2:1b")
	VADFilter       bool   `mapstructure:"vad_filter"`
	Language        string `mapstructure:"language"` // ISO-639-1 default language (e.g., "en", "fr")
}

// EmbeddingConfig selects the embedder.
type EmbeddingConfig struct {
	Backend    string        `mapstructure:"backend"` // "hash" or "openai"
	Dimensions int           `mapstructure:"dimensions"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	APIKey     string        `mapstructure:"api_key"`
	MemoSize   int           `mapstructure:"memo_size"` // 0 disables the in-process memo
	Timeout    time.Duration `mapstructure:"timeout"`
}

// CacheConfig tunes the semantic cache.
type CacheConfig struct {
	// SimilarityThreshold is the largest squared L2 distance (on normalized
	// vectors) still considered a hit.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`

	// PromotionThreshold is the hit count a query must strictly exceed before
	// it is inserted into the vector index.
	PromotionThreshold int64 `mapstructure:"promotion_threshold"`

	// IndexKey is the blob key of the serialized vector index.
	IndexKey string `mapstructure:"index_key"`

	// FlushInterval is how often a dirty index is re-persisted. 0 disables.
	FlushInterval time.Duration `mapstructure:"flush_interval"`

	// RetranslateOnHit translates a cached answer into the requester's
	// language when it was stored in a different one.
	RetranslateOnHit bool `mapstructure:"retranslate_on_hit"`
}

// LedgerConfig selects the frequency ledger backend.
type LedgerConfig struct {
	Backend  string         `mapstructure:"backend"` // "memory", "postgres", "nats"
	Postgres PostgresConfig `mapstructure:"postgres"`
	NATS     NATSKVConfig   `mapstructure:"nats"`
}

// PostgresConfig holds the Postgres connection settings.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// NATSKVConfig holds the JetStream key-value settings.
type NATSKVConfig struct {
	URL    string `mapstructure:"url"`
	Bucket string `mapstructure:"bucket"`
}

// BlobConfig selects where the vector index and audio replies are stored.
type BlobConfig struct {
	Backend string      `mapstructure:"backend"` // "file" or "minio"
	Dir     string      `mapstructure:"dir"`
	Minio   MinioConfig `mapstructure:"minio"`
}

// MinioConfig holds S3-compatible object storage settings.
type MinioConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// SessionConfig bounds per-session conversation state.
type SessionConfig struct {
	MaxChars    int           `mapstructure:"max_chars"`
	IdleTTL     time.Duration `mapstructure:"idle_ttl"`
	MaxSessions int           `mapstructure:"max_sessions"`
}

// GenerationConfig holds the fixed decoding parameters.
type GenerationConfig struct {
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float32       `mapstructure:"temperature"`
	Stop        []string      `mapstructure:"stop"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TranslateConfig selects the translation service.
type TranslateConfig struct {
	Backend   string        `mapstructure:"backend"` // "none" or "libretranslate"
	Endpoint  string        `mapstructure:"endpoint"`
	APIKey    string        `mapstructure:"api_key"`
	Pivot     string        `mapstructure:"pivot"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests per second, 0 = unlimited
	Timeout   time.Duration `mapstructure:"timeout"`
}

// TTSConfig selects and configures the text-to-speech backend.
type TTSConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"` // "piper" or "openai"
	Timeout time.Duration `mapstructure:"timeout"`
	Piper   PiperConfig   `mapstructure:"piper"`
	OpenAI  OpenAITTS     `mapstructure:"openai"`
}

// PiperConfig holds Piper TTS settings (Wyoming protocol).
//
// For a single Piper instance that serves all languages, set Endpoint.
// For per-language instances, set Endpoints which maps ISO-639-1 codes to
// individual Wyoming TCP endpoints. Endpoints takes precedence.
type PiperConfig struct {
	Endpoint  string            `mapstructure:"endpoint"`
	Endpoints map[string]string `mapstructure:"endpoints"`
	Voices    map[string]string `mapstructure:"voices"`
}

// OpenAITTS holds OpenAI speech settings. Credentials are shared with the interpreter.
type OpenAITTS struct {
	Model string `mapstructure:"model"`
	Voice string `mapstructure:"voice"`
}

// AudioConfig controls where synthesized replies are stored.
type AudioConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
	Inline    bool   `mapstructure:"inline"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./confidant.yaml, ./configs/confidant.yaml, /etc/confidant/confidant.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("confidant")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/confidant")
	}

	// Environment variables: CONFIDANT_CACHE_PROMOTION_THRESHOLD, CONFIDANT_LEDGER_BACKEND, etc.
	v.SetEnvPrefix("CONFIDANT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}").
	cfg.Interpreter.OpenAI.APIKey = resolveEnvRef(cfg.Interpreter.OpenAI.APIKey)
	cfg.Embedding.APIKey = resolveEnvRef(cfg.Embedding.APIKey)
	cfg.Translate.APIKey = resolveEnvRef(cfg.Translate.APIKey)
	cfg.Ledger.Postgres.DSN = resolveEnvRef(cfg.Ledger.Postgres.DSN)
	cfg.Blob.Minio.AccessKeyID = resolveEnvRef(cfg.Blob.Minio.AccessKeyID)
	cfg.Blob.Minio.SecretAccessKey = resolveEnvRef(cfg.Blob.Minio.SecretAccessKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("transports.grpc.enabled", false)
	v.SetDefault("transports.grpc.port", 50051)
	v.SetDefault("transports.http.enabled", true)
	v.SetDefault("transports.http.port", 8080)
	v.SetDefault("transports.nats.enabled", false)
	v.SetDefault("transports.nats.url", "nats://localhost:4222")
	v.SetDefault("transports.nats.subject", "confidant.chat")
	v.SetDefault("transports.nats.queue_group", "confidant")

	v.SetDefault("interpreter.backend", "local")
	v.SetDefault("interpreter.transcribe_timeout", 60*time.Second)
	v.SetDefault("interpreter.openai.transcription_model", "whisper-1")
	v.SetDefault("interpreter.openai.completion_model", "gpt-3.5-turbo-instruct")
	v.SetDefault("interpreter.local.whisper_endpoint", "http://localhost:8000/v1/audio/transcriptions")
	v.SetDefault("interpreter.local.whisper_type", "openai")
	v.SetDefault("interpreter.local.llm_endpoint", "http://localhost:11434/api/generate")
	v.SetDefault("interpreter.local.llm_model", "llama3")

	v.SetDefault("embedding.backend", "hash")
	v.SetDefault("embedding.dimensions", 384)
	v.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	v.SetDefault("embedding.memo_size", 1024)
	v.SetDefault("embedding.timeout", 10*time.Second)

	v.SetDefault("cache.similarity_threshold", 1.0)
	v.SetDefault("cache.promotion_threshold", 3)
	v.SetDefault("cache.index_key", "faiss_index.index")
	v.SetDefault("cache.flush_interval", time.Minute)
	v.SetDefault("cache.retranslate_on_hit", false)

	v.SetDefault("ledger.backend", "memory")
	v.SetDefault("ledger.postgres.table", "query_records")
	v.SetDefault("ledger.nats.url", "nats://localhost:4222")
	v.SetDefault("ledger.nats.bucket", "FREQUENT_QUESTIONS")

	v.SetDefault("blob.backend", "file")
	v.SetDefault("blob.dir", "./data")
	v.SetDefault("blob.minio.bucket", "confidant")

	v.SetDefault("session.max_chars", 6000)
	v.SetDefault("session.idle_ttl", 30*time.Minute)
	v.SetDefault("session.max_sessions", 10000)

	v.SetDefault("generation.max_tokens", 150)
	v.SetDefault("generation.temperature", 0.7)
	v.SetDefault("generation.stop", []string{"User:", "Assistant:"})
	v.SetDefault("generation.timeout", 60*time.Second)

	v.SetDefault("translate.backend", "none")
	v.SetDefault("translate.endpoint", "http://localhost:5000")
	v.SetDefault("translate.pivot", "en")
	v.SetDefault("translate.rate_limit", 5)
	v.SetDefault("translate.timeout", 10*time.Second)

	v.SetDefault("tts.enabled", false)
	v.SetDefault("tts.backend", "piper")
	v.SetDefault("tts.timeout", 30*time.Second)
	v.SetDefault("tts.piper.endpoint", "localhost:10200")
	v.SetDefault("tts.openai.model", "tts-1")
	v.SetDefault("tts.openai.voice", "alloy")

	v.SetDefault("audio.key_prefix", "audioMessages/response")
	v.SetDefault("audio.inline", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate rejects configurations the daemon cannot start with.
func (c *Config) Validate() error {
	if c.Cache.SimilarityThreshold <= 0 {
		return fmt.Errorf("cache.similarity_threshold must be positive, got %v", c.Cache.SimilarityThreshold)
	}
	if c.Cache.PromotionThreshold < 0 {
		return fmt.Errorf("cache.promotion_threshold must not be negative, got %d", c.Cache.PromotionThreshold)
	}
	if c.Cache.IndexKey == "" {
		return fmt.Errorf("cache.index_key is required")
	}
	if c.Translate.Pivot == "" {
		return fmt.Errorf("translate.pivot is required")
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("generation.max_tokens must be positive, got %d", c.Generation.MaxTokens)
	}

	checks := []struct {
		key, value string
		allowed    []string
	}{
		{"interpreter.backend", c.Interpreter.Backend, []string{"openai", "local"}},
		{"embedding.backend", c.Embedding.Backend, []string{"hash", "openai"}},
		{"ledger.backend", c.Ledger.Backend, []string{"memory", "postgres", "nats"}},
		{"blob.backend", c.Blob.Backend, []string{"file", "minio"}},
		{"translate.backend", c.Translate.Backend, []string{"none", "libretranslate"}},
		{"tts.backend", c.TTS.Backend, []string{"piper", "openai"}},
	}
	for _, ch := range checks {
		if !contains(ch.allowed, ch.value) {
			return fmt.Errorf("unknown %s %q (want one of %s)", ch.key, ch.value, strings.Join(ch.allowed, ", "))
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
