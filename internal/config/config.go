package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultKeyFile = "openai_key.txt"

// Config holds runtime configuration values.
type Config struct {
	Port        string
	CatalogPath string
	SessionTTL  time.Duration
	LogFilePath string
	AI          AIConfig
}

// AIConfig describes the model provider. An empty APIKey leaves all
// AI-backed components disabled; the service still runs.
type AIConfig struct {
	APIKey        string
	ChatModel     string
	ImageModel    string
	AltImageModel string
	BaseURL       string
}

// FromEnv loads configuration from the environment (a .env file is
// honored when present) and applies defaults.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Port:        getenv("APP_PORT", "8080"),
		CatalogPath: os.Getenv("CATALOG_PATH"),
		SessionTTL:  time.Duration(getenvInt("SESSION_TTL_MINUTES", 720)) * time.Minute,
		LogFilePath: getenv("LOG_FILE_PATH", "logs/cakestudio.log"),
		AI: AIConfig{
			APIKey:        loadAPIKey(),
			ChatModel:     getenv("OPENAI_CHAT_MODEL", "gpt-5-nano"),
			ImageModel:    getenv("OPENAI_IMAGE_MODEL", "dall-e-3"),
			AltImageModel: getenv("OPENAI_ALT_IMAGE_MODEL", "dall-e-3"),
			BaseURL:       os.Getenv("OPENAI_BASE_URL"),
		},
	}
}

// loadAPIKey reads the credential from the environment first and falls
// back to a local plaintext key file. Both absent means AI components run
// disabled; startup never fails over a missing key.
func loadAPIKey() string {
	if key := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); key != "" {
		return key
	}

	path := getenv("OPENAI_KEY_FILE", defaultKeyFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
