package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Cloudflare R2 (S3-совместимое хранилище для видео и обложек)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// Платёжный провайдер
	PaymentWebhookSecret string
	PaymentBaseURL       string

	// Политика голосования: требовать ли от голосующего собственного
	// участия в турнире. Передаётся в VotingService явно, а не читается
	// глобально, чтобы тесты могли проверить обе политики.
	VotingRequireParticipation bool
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := os.Getenv("SERVER_PORT")
	if portStr == "" {
		portStr = "8080"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	requireParticipation := true
	if v := os.Getenv("VOTING_REQUIRE_PARTICIPATION"); v != "" {
		requireParticipation, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid VOTING_REQUIRE_PARTICIPATION environment variable: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:  dbURL,
		JWTSecretKey: jwtKey,
		ServerPort:   port,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		PaymentWebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		PaymentBaseURL:       os.Getenv("PAYMENT_BASE_URL"),

		VotingRequireParticipation: requireParticipation,
	}

	return cfg, nil
}
