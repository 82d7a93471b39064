package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	TelegramToken      string
	OpenAIKey          string
	ServerHost         string
	ServerPort         string
	AuthorizedUserID   int64
	DailyMessageLimit  int
	DailyTokenLimit    int
	HourlyMessageLimit int
	RateLimitPerMinute int
	MaxMessageLength   int
	MaxHistory         int
	ChunkDelayMs       int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("Не найден файл .env")
	}

	return &Config{
		TelegramToken:      getEnv("TELEGRAM_TOKEN", ""),
		OpenAIKey:          getEnv("OPENAI_KEY", ""),
		ServerHost:         getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		AuthorizedUserID:   getEnvInt64("AUTHORIZED_USER_ID", 0),
		DailyMessageLimit:  getEnvInt("DAILY_MESSAGE_LIMIT", 100),
		DailyTokenLimit:    getEnvInt("DAILY_TOKEN_LIMIT", 50000),
		HourlyMessageLimit: getEnvInt("HOURLY_MESSAGE_LIMIT", 20),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 5),
		MaxMessageLength:   getEnvInt("MAX_MESSAGE_LENGTH", 4000),
		MaxHistory:         getEnvInt("MAX_HISTORY", 10),
		ChunkDelayMs:       getEnvInt("CHUNK_DELAY_MS", 500),
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logrus.Warnf("Некорректное значение %s=%q, используется %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logrus.Warnf("Некорректное значение %s=%q, используется %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}
