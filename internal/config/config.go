package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	ChallengeTTLMin int // minutes before an unanswered challenge is swept
}

func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[Config] No .env file found, reading environment directly")
	}
	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		ChallengeTTLMin: getEnvInt("CHALLENGE_TTL_MIN", 30),
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
