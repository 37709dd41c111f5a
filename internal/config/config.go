package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Storage  StorageConfig
	Ai       AIConfig
	Segment  SegmentConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string // empty disables bearer auth
	OtelEnabled        bool
}

type DatabaseConfig struct {
	Connection string // empty disables the chat archive
}

type StorageConfig struct {
	DataDir     string
	UploadDir   string
	OutputDir   string
	ArtifactTTL time.Duration
}

type AIConfig struct {
	LLMProvider        string // "ollama" or "huggingface"
	LLMModel           string
	LLMVisionModel     string
	OllamaBaseURL      string
	HuggingFaceAPIKey  string
	HuggingFaceBaseURL string
	Timeout            time.Duration
	VisionTimeout      time.Duration
	MaxRetries         int
}

type SegmentConfig struct {
	ModelURL         string // empty means heuristic only
	Timeout          time.Duration
	MinConfidence    float64
	MinRegion        int
	AutoSplitFigures bool
	RenderDPI        float64
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	dataDir := getEnv("DATA_DIR", "data")

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			UploadDir:   getEnv("UPLOAD_DIR", dataDir+"/uploads"),
			OutputDir:   getEnv("OUTPUT_DIR", dataDir+"/output"),
			ArtifactTTL: getEnvAsDuration("ARTIFACT_TTL", 24*time.Hour),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "qwen2.5:7b"),
			LLMVisionModel:     getEnv("LLM_VISION_MODEL", "qwen2.5vl:7b"),
			OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			HuggingFaceAPIKey:  getEnv("HUGGINGFACE_API_KEY", ""),
			HuggingFaceBaseURL: getEnv("HUGGINGFACE_BASE_URL", "https://router.huggingface.co/v1"),
			Timeout:            getEnvAsDuration("LLM_TIMEOUT", 5*time.Minute),
			VisionTimeout:      getEnvAsDuration("LLM_VISION_TIMEOUT", 2*time.Minute),
			MaxRetries:         getEnvAsInt("LLM_MAX_RETRIES", 2),
		},
		Segment: SegmentConfig{
			ModelURL:         getEnv("SEGMENT_MODEL_URL", ""),
			Timeout:          getEnvAsDuration("SEGMENT_TIMEOUT", 30*time.Second),
			MinConfidence:    getEnvAsFloat("SEGMENT_MIN_CONFIDENCE", 0.3),
			MinRegion:        getEnvAsInt("SEGMENT_MIN_REGION", 40),
			AutoSplitFigures: getEnvAsBool("AUTO_SPLIT_FIGURES", false),
			RenderDPI:        getEnvAsFloat("RENDER_DPI", 150),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90")
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if secs, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
