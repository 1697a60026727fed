package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

// Config is built once at startup and handed to constructors explicitly.
type Config struct {
	Server      ServerConfig
	Redis       RedisConfig
	JWT         JWTConfig
	OIDC        OIDCConfig
	RateLimit   RateLimitConfig
	AI          AIConfig
	Groq        GroqConfig
	Gemini      GeminiConfig
	Ollama      OllamaConfig
	HuggingFace HuggingFaceConfig
	Research    ResearchConfig
	R2          R2Config
	Defaults    DefaultsConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

// OIDCConfig enables JWKS token verification when Issuer is set.
type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type RateLimitConfig struct {
	PromptsPerMin int
	ExportPerHour int
}

// AIConfig selects the active text-generation backend.
type AIConfig struct {
	Backend string
}

type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type HuggingFaceConfig struct {
	Token   string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// ResearchConfig configures the optional web search used for artist-like inputs.
// Provider is one of "serper", "duckduckgo" or "none".
type ResearchConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	MaxChars int
	CacheTTL time.Duration
	Timeout  time.Duration
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// DefaultsConfig fills request fields the caller left empty.
type DefaultsConfig struct {
	Language  string
	VocalType string
	BPM       string
	Duration  string
}

func Load() (*Config, error) {
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("GROQ_API_KEY")
	readSecret("GEMINI_API_KEY")
	readSecret("HF_API_TOKEN")
	readSecret("SERPER_API_KEY")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":          "SERVER_PORT",
		"server.env":           "SERVER_ENV",
		"server.log_level":     "LOG_LEVEL",
		"redis.addr":           "REDIS_ADDR",
		"redis.password":       "REDIS_PASSWORD",
		"redis.db":             "REDIS_DB",
		"jwt.secret":           "JWT_SECRET",
		"oidc.issuer":          "OIDC_ISSUER",
		"oidc.client_id":       "OIDC_CLIENT_ID",
		"ratelimit.prompts":    "RATELIMIT_PROMPTS_PER_MIN",
		"ratelimit.export":     "RATELIMIT_EXPORT_PER_HOUR",
		"ai.backend":           "AI_BACKEND",
		"groq.api_key":         "GROQ_API_KEY",
		"groq.base_url":        "GROQ_BASE_URL",
		"groq.model":           "GROQ_MODEL",
		"groq.timeout":         "GROQ_TIMEOUT",
		"gemini.api_key":       "GEMINI_API_KEY",
		"gemini.model":         "GEMINI_MODEL",
		"gemini.timeout":       "GEMINI_TIMEOUT",
		"ollama.base_url":      "OLLAMA_BASE_URL",
		"ollama.model":         "OLLAMA_MODEL",
		"ollama.timeout":       "OLLAMA_TIMEOUT",
		"huggingface.token":    "HF_API_TOKEN",
		"huggingface.base_url": "HF_BASE_URL",
		"huggingface.model":    "HF_MODEL",
		"huggingface.timeout":  "HF_TIMEOUT",
		"research.provider":    "RESEARCH_PROVIDER",
		"research.api_key":     "SERPER_API_KEY",
		"research.base_url":    "RESEARCH_BASE_URL",
		"research.max_chars":   "RESEARCH_MAX_CHARS",
		"research.cache_ttl":   "RESEARCH_CACHE_TTL",
		"research.timeout":     "RESEARCH_TIMEOUT",
		"r2.account_id":        "R2_ACCOUNT_ID",
		"r2.access_key_id":     "R2_ACCESS_KEY_ID",
		"r2.secret_access_key": "R2_SECRET_ACCESS_KEY",
		"r2.bucket_name":       "R2_BUCKET_NAME",
		"r2.public_url":        "R2_PUBLIC_URL",
		"defaults.language":    "DEFAULT_LANGUAGE",
		"defaults.vocal_type":  "DEFAULT_VOCAL_TYPE",
		"defaults.bpm":         "DEFAULT_BPM",
		"defaults.duration":    "DEFAULT_DURATION",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("ratelimit.prompts", 20)
	v.SetDefault("ratelimit.export", 60)

	v.SetDefault("ai.backend", "groq")

	v.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("groq.model", "llama-3.3-70b-versatile")
	v.SetDefault("groq.timeout", 60*time.Second)

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout", 60*time.Second)

	v.SetDefault("ollama.base_url", "http://localhost:11434")
	v.SetDefault("ollama.model", "llama3.2:3b")
	v.SetDefault("ollama.timeout", 120*time.Second)

	v.SetDefault("huggingface.base_url", "https://api-inference.huggingface.co")
	v.SetDefault("huggingface.model", "meta-llama/Llama-3.2-3B-Instruct")
	v.SetDefault("huggingface.timeout", 60*time.Second)

	v.SetDefault("research.provider", "serper")
	v.SetDefault("research.max_chars", 3000)
	v.SetDefault("research.cache_ttl", 24*time.Hour)
	v.SetDefault("research.timeout", 15*time.Second)

	v.SetDefault("defaults.language", "English")
	v.SetDefault("defaults.vocal_type", "Female")
	v.SetDefault("defaults.bpm", "AUTO")
	v.SetDefault("defaults.duration", "3:00min")

	// config file is optional
	_ = v.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("server.port"),
			Env:      v.GetString("server.env"),
			LogLevel: v.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
		},
		OIDC: OIDCConfig{
			Issuer:   v.GetString("oidc.issuer"),
			ClientID: v.GetString("oidc.client_id"),
		},
		RateLimit: RateLimitConfig{
			PromptsPerMin: v.GetInt("ratelimit.prompts"),
			ExportPerHour: v.GetInt("ratelimit.export"),
		},
		AI: AIConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("ai.backend"))),
		},
		Groq: GroqConfig{
			APIKey:  v.GetString("groq.api_key"),
			BaseURL: v.GetString("groq.base_url"),
			Model:   v.GetString("groq.model"),
			Timeout: v.GetDuration("groq.timeout"),
		},
		Gemini: GeminiConfig{
			APIKey:  v.GetString("gemini.api_key"),
			Model:   v.GetString("gemini.model"),
			Timeout: v.GetDuration("gemini.timeout"),
		},
		Ollama: OllamaConfig{
			BaseURL: v.GetString("ollama.base_url"),
			Model:   v.GetString("ollama.model"),
			Timeout: v.GetDuration("ollama.timeout"),
		},
		HuggingFace: HuggingFaceConfig{
			Token:   v.GetString("huggingface.token"),
			BaseURL: v.GetString("huggingface.base_url"),
			Model:   v.GetString("huggingface.model"),
			Timeout: v.GetDuration("huggingface.timeout"),
		},
		Research: ResearchConfig{
			Provider: strings.ToLower(strings.TrimSpace(v.GetString("research.provider"))),
			APIKey:   v.GetString("research.api_key"),
			BaseURL:  v.GetString("research.base_url"),
			MaxChars: v.GetInt("research.max_chars"),
			CacheTTL: v.GetDuration("research.cache_ttl"),
			Timeout:  v.GetDuration("research.timeout"),
		},
		R2: R2Config{
			AccountID:       v.GetString("r2.account_id"),
			AccessKeyID:     v.GetString("r2.access_key_id"),
			SecretAccessKey: v.GetString("r2.secret_access_key"),
			BucketName:      v.GetString("r2.bucket_name"),
			PublicURL:       v.GetString("r2.public_url"),
		},
		Defaults: DefaultsConfig{
			Language:  v.GetString("defaults.language"),
			VocalType: v.GetString("defaults.vocal_type"),
			BPM:       v.GetString("defaults.bpm"),
			Duration:  v.GetString("defaults.duration"),
		},
	}

	return cfg, nil
}
