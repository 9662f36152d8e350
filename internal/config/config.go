package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// API
	APIPort      int
	APIRateLimit int
	CORSOrigins  []string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// Redis
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Telegram
	TelegramBotToken string
	TelegramAPIURL   string
	WebAppURL        string

	// Quota
	DailyLimit    int
	AdminUserID   int64
	QuotaTimezone string

	// Face swap
	PiAPIKey      string
	PiAPIBaseURL  string
	PollInterval  time.Duration
	PollBudget    time.Duration
	JobTTL        time.Duration
	MaxImageSize  int
	BatyrImageDir string

	// Map
	RegionDataFile string

	// Speech / assistant
	SpeechKey        string
	SpeechRegion     string
	SpeechVoice      string
	SpeechLanguage   string
	OpenAIKey        string
	OpenAIEndpoint   string
	OpenAIAPIVersion string
	OpenAIDeployment string
}

var defaultCORSOrigins = []string{
	"http://localhost:3000",
	"https://batyrai.com",
	"https://www.batyrai.com",
	"https://batyr-ai.vercel.app",
}

func Load() *Config {
	dbPassword := getEnv("DB_PASSWORD", "")
	if dbPassword == "" {
		log.Println("WARNING: DB_PASSWORD not set - this is insecure for production!")
		dbPassword = "changeme"
	}

	redisPassword := getEnv("REDIS_PASSWORD", "")
	if redisPassword == "" {
		log.Println("WARNING: REDIS_PASSWORD not set - Redis is not secured!")
	}

	speechKey := getEnv("SPEECH_KEY", "")
	if speechKey == "" {
		log.Println("WARNING: SPEECH_KEY not set - /api/tts and /api/ask-assistant are disabled")
	}

	adminID := getEnvInt64("ADMIN_USER_ID", 0)
	if adminID != 0 {
		log.Printf("WARNING: ADMIN_USER_ID=%d bypasses the daily limit", adminID)
	}

	return &Config{
		// API
		APIPort:      getEnvInt("API_PORT", 8000),
		APIRateLimit: getEnvInt("API_RATE_LIMIT", 100),
		CORSOrigins:  getEnvList("CORS_ORIGINS", defaultCORSOrigins),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnvInt("DB_PORT", 5432),
		DBUser:     getEnv("DB_USER", "batyr"),
		DBPassword: dbPassword,
		DBName:     getEnv("DB_NAME", "batyr"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "redis"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: redisPassword,
		RedisDB:       getEnvInt("REDIS_DB", 0),

		// Telegram
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramAPIURL:   getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
		WebAppURL:        getEnv("WEB_APP_URL", "https://batyrai.com"),

		// Quota
		DailyLimit:    getEnvInt("DAILY_LIMIT", 1),
		AdminUserID:   adminID,
		QuotaTimezone: getEnv("QUOTA_TIMEZONE", "UTC"),

		// Face swap
		PiAPIKey:      getEnv("PIAPI_API_KEY", ""),
		PiAPIBaseURL:  getEnv("PIAPI_BASE_URL", "https://api.piapi.ai"),
		PollInterval:  getEnvDuration("POLL_INTERVAL", 2*time.Second),
		PollBudget:    getEnvDuration("POLL_BUDGET", 120*time.Second),
		JobTTL:        getEnvDuration("JOB_TTL", time.Hour),
		MaxImageSize:  getEnvInt("MAX_IMAGE_SIZE", 1024),
		BatyrImageDir: getEnv("BATYR_IMAGE_DIR", "/app/batyr-images"),

		// Map
		RegionDataFile: getEnv("REGION_DATA_FILE", "batyrs_data.json"),

		// Speech / assistant
		SpeechKey:        speechKey,
		SpeechRegion:     getEnv("SPEECH_REGION", ""),
		SpeechVoice:      getEnv("SPEECH_VOICE", "kk-KZ-DauletNeural"),
		SpeechLanguage:   getEnv("SPEECH_LANGUAGE", "kk-KZ"),
		OpenAIKey:        getEnv("AZURE_OPENAI_KEY", ""),
		OpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		OpenAIAPIVersion: getEnv("OPENAI_API_VERSION", "2024-02-01"),
		OpenAIDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT_NAME", ""),
	}
}

// Validate reports settings the API cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.TelegramBotToken == "" {
		missing = append(missing, "TELEGRAM_BOT_TOKEN")
	}
	if c.PiAPIKey == "" {
		missing = append(missing, "PIAPI_API_KEY")
	}
	if len(missing) > 0 {
		return errors.New("missing required settings: " + strings.Join(missing, ", "))
	}
	if c.DailyLimit < 0 {
		return errors.New("DAILY_LIMIT must not be negative")
	}
	if c.PollInterval <= 0 || c.PollBudget <= 0 {
		return errors.New("POLL_INTERVAL and POLL_BUDGET must be positive")
	}
	if _, err := time.LoadLocation(c.QuotaTimezone); err != nil {
		return errors.New("invalid QUOTA_TIMEZONE: " + err.Error())
	}
	return nil
}

// SpeechEnabled reports whether Azure Speech credentials are configured.
func (c *Config) SpeechEnabled() bool {
	return c.SpeechKey != "" && c.SpeechRegion != ""
}

// AssistantEnabled reports whether the voice assistant can run.
func (c *Config) AssistantEnabled() bool {
	return c.SpeechEnabled() && c.OpenAIKey != "" && c.OpenAIEndpoint != "" && c.OpenAIDeployment != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("2s") or plain seconds ("120").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
