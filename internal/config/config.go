package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort string
	BaseURL    string

	// Extraction
	ExtractionAPIURL  string
	ExtractionAPIKey  string
	ExtractionTimeout time.Duration
	ExtractionMaxSize int64

	// LLM (台本生成)
	LLMAPIURL      string
	LLMAPIKey      string
	LLMModel       string
	LLMTimeout     time.Duration
	LLMMaxAttempts int

	// TTS
	OpenAIAPIURL      string
	OpenAIAPIKey      string
	ElevenLabsAPIURL  string
	ElevenLabsAPIKey  string
	TTSTimeout        time.Duration
	VoiceCacheTTL     time.Duration
	VoiceRefreshEvery time.Duration

	// Storage / CDN
	StorageEndpoint string
	StorageAPIKey   string
	StorageTimeout  time.Duration
	CDNEndpoint     string
	CDNAPIKey       string

	// Pipeline
	PipelinePollInterval  time.Duration
	PipelineMaxConcurrent int
	PipelineBatchSize     int
	JobMaxRetries         int
	DefaultLocale         string
	PreferredVoice        string
	ScriptTone            string

	// Feed
	FeedID       string
	FeedTitle    string
	FeedLanguage string
	FeedMaxItems int

	// Rate Limit
	RateLimitGeneral    int
	RateLimitSubmission int
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.ExtractionAPIURL = os.Getenv("EXTRACTION_API_URL")
	if cfg.ExtractionAPIURL == "" {
		missing = append(missing, "EXTRACTION_API_URL")
	}

	cfg.LLMAPIKey = os.Getenv("LLM_API_KEY")
	if cfg.LLMAPIKey == "" {
		missing = append(missing, "LLM_API_KEY")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	cfg.StorageEndpoint = os.Getenv("STORAGE_ENDPOINT")
	if cfg.StorageEndpoint == "" {
		missing = append(missing, "STORAGE_ENDPOINT")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.ExtractionAPIKey = getEnvString("EXTRACTION_API_KEY", "")
	cfg.ExtractionTimeout = getEnvDuration("EXTRACTION_TIMEOUT", 30*time.Second)
	cfg.ExtractionMaxSize = getEnvInt64("EXTRACTION_MAX_SIZE", 20971520)
	cfg.LLMAPIURL = getEnvString("LLM_API_URL", "https://api.openai.com/v1")
	cfg.LLMModel = getEnvString("LLM_MODEL", "gpt-4o-mini")
	cfg.LLMTimeout = getEnvDuration("LLM_TIMEOUT", 120*time.Second)
	cfg.LLMMaxAttempts = getEnvInt("LLM_MAX_ATTEMPTS", 2)
	cfg.OpenAIAPIURL = getEnvString("OPENAI_API_URL", "https://api.openai.com/v1")
	cfg.ElevenLabsAPIURL = getEnvString("ELEVENLABS_API_URL", "https://api.elevenlabs.io/v1")
	cfg.ElevenLabsAPIKey = getEnvString("ELEVENLABS_API_KEY", "")
	cfg.TTSTimeout = getEnvDuration("TTS_TIMEOUT", 120*time.Second)
	cfg.VoiceCacheTTL = getEnvDuration("VOICE_CACHE_TTL", time.Hour)
	cfg.VoiceRefreshEvery = getEnvDuration("VOICE_REFRESH_EVERY", 30*time.Minute)
	cfg.StorageAPIKey = getEnvString("STORAGE_API_KEY", "")
	cfg.StorageTimeout = getEnvDuration("STORAGE_TIMEOUT", 60*time.Second)
	cfg.CDNEndpoint = getEnvString("CDN_ENDPOINT", "")
	cfg.CDNAPIKey = getEnvString("CDN_API_KEY", "")
	cfg.PipelinePollInterval = getEnvDuration("PIPELINE_POLL_INTERVAL", 15*time.Second)
	cfg.PipelineMaxConcurrent = getEnvInt("PIPELINE_MAX_CONCURRENT", 4)
	cfg.PipelineBatchSize = getEnvInt("PIPELINE_BATCH_SIZE", 10)
	cfg.JobMaxRetries = getEnvInt("JOB_MAX_RETRIES", 3)
	cfg.DefaultLocale = getEnvString("DEFAULT_LOCALE", "en-US")
	cfg.PreferredVoice = getEnvString("PREFERRED_VOICE", "")
	cfg.ScriptTone = getEnvString("SCRIPT_TONE", "conversational")
	cfg.FeedID = getEnvString("FEED_ID", "default")
	cfg.FeedTitle = getEnvString("FEED_TITLE", "Generated Podcast")
	cfg.FeedLanguage = getEnvString("FEED_LANGUAGE", "ja")
	cfg.FeedMaxItems = getEnvInt("FEED_MAX_ITEMS", 100)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSubmission = getEnvInt("RATE_LIMIT_SUBMISSION", 10)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
