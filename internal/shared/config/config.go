package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds application configuration.
type Config struct {
	Port                string
	Env                 string
	Version             string
	CORSAllowOrigin     []string
	ObjectStoreType     string
	LocalStoreDir       string
	AWSRegion           string
	S3Bucket            string
	S3Prefix            string
	SSEKMSKeyID         string
	GoogleAPIKey        string
	GeminiModel         string
	VisionRetryAttempts int
	JobStore            string
	DatabaseURL         string
	RedisAddr           string
	RedisPassword       string
	RedisDB             int
	JobTTLHours         int
	QueueURL            string
	MaxUploadMB         int64
	FFmpegPath          string
	FFprobePath         string
	FrameTimeoutSeconds int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	redisAddr := os.Getenv("REDIS_ADDR")
	apiKey := os.Getenv("GOOGLE_API_KEY")

	if env == "production" && apiKey == "" {
		log.Printf("GOOGLE_API_KEY is required in production")
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		Env:                 env,
		Version:             getEnv("APP_VERSION", "21.0.0-smart-weighted"),
		CORSAllowOrigin:     splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:     normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:       getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:           getEnv("AWS_REGION", ""),
		S3Bucket:            getEnv("S3_BUCKET", ""),
		S3Prefix:            getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:         getEnv("SSE_KMS_KEY_ID", ""),
		GoogleAPIKey:        apiKey,
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		VisionRetryAttempts: getEnvInt("VISION_RETRY_ATTEMPTS", 2),
		JobStore:            resolveJobStore(getEnv("JOB_STORE", ""), dbURL, redisAddr),
		DatabaseURL:         dbURL,
		RedisAddr:           redisAddr,
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisDB:             getEnvInt("REDIS_DB", 0),
		JobTTLHours:         getEnvInt("JOB_TTL_HOURS", 24),
		QueueURL:            getEnv("BJJ_SQS_QUEUE_URL", ""),
		MaxUploadMB:         int64(getEnvInt("MAX_UPLOAD_MB", 200)),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:         getEnv("FFPROBE_PATH", "ffprobe"),
		FrameTimeoutSeconds: getEnvInt("FRAME_TIMEOUT_SECONDS", 30),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// resolveJobStore picks the job record backend. An explicit JOB_STORE wins;
// otherwise the first configured backend is used, falling back to memory.
func resolveJobStore(explicit, dbURL, redisAddr string) string {
	switch strings.ToLower(strings.TrimSpace(explicit)) {
	case "postgres", "pg":
		return "postgres"
	case "redis":
		return "redis"
	case "memory":
		return "memory"
	}
	if dbURL != "" {
		return "postgres"
	}
	if redisAddr != "" {
		return "redis"
	}
	return "memory"
}
