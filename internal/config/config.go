package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Quota    QuotaConfig
	Swap     SwapConfig
	Telegram TelegramConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port        string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// QuotaConfig holds the entitlement policy knobs: free-tier baseline,
// what a premium purchase grants, and the rate-limit windows.
type QuotaConfig struct {
	FreeRequests      int
	PremiumRequests   int
	PremiumTargets    int
	PremiumDays       int
	CooldownSeconds   int
	BurstWindow       time.Duration
	ReconcileInterval time.Duration
	ReconcileHourUTC  int
}

type SwapConfig struct {
	ServiceURL string
	Timeout    time.Duration
	StorageDir string
}

type TelegramConfig struct {
	BotToken string
	APIBase  string
}

type WorkerConfig struct {
	Count int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	freeRequests, _ := strconv.Atoi(getEnv("FREE_REQUESTS", "10"))
	premiumRequests, _ := strconv.Atoi(getEnv("PREMIUM_REQUESTS", "100"))
	premiumTargets, _ := strconv.Atoi(getEnv("PREMIUM_TARGETS", "10"))
	premiumDays, _ := strconv.Atoi(getEnv("PREMIUM_DAYS", "30"))
	cooldownSeconds, _ := strconv.Atoi(getEnv("COOLDOWN_SECONDS", "20"))
	burstMillis, _ := strconv.Atoi(getEnv("BURST_WINDOW_MS", "2000"))
	reconcileHours, _ := strconv.Atoi(getEnv("RECONCILE_INTERVAL_HOURS", "24"))
	reconcileHourUTC, _ := strconv.Atoi(getEnv("RECONCILE_HOUR_UTC", "0"))
	swapTimeout, _ := strconv.Atoi(getEnv("SWAP_TIMEOUT_SECONDS", "120"))
	workerCount, _ := strconv.Atoi(getEnv("WORKER_COUNT", "6"))

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "swapbot"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Quota: QuotaConfig{
			FreeRequests:      freeRequests,
			PremiumRequests:   premiumRequests,
			PremiumTargets:    premiumTargets,
			PremiumDays:       premiumDays,
			CooldownSeconds:   cooldownSeconds,
			BurstWindow:       time.Duration(burstMillis) * time.Millisecond,
			ReconcileInterval: time.Duration(reconcileHours) * time.Hour,
			ReconcileHourUTC:  reconcileHourUTC,
		},
		Swap: SwapConfig{
			ServiceURL: getEnv("SWAP_SERVICE_URL", "http://localhost:8000/extract"),
			Timeout:    time.Duration(swapTimeout) * time.Second,
			StorageDir: getEnv("STORAGE_DIR", "./data"),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			APIBase:  getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
		},
		Worker: WorkerConfig{
			Count: workerCount,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
