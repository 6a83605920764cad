package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	LedgerMongo    = "mongo"
	LedgerPostgres = "postgres"
)

type Config struct {
	Port                    string
	Env                     string
	FirebaseCredentialsPath string
	PostgresUrl             string
	MongoURI                string
	MongoDatabase           string
	LedgerDriver            string
	JWTSecret               string
	NatsURL                 string
	RedisURL                string
	MetricsPort             string
	RateLimitRequests       int
	RateLimitWindow         time.Duration
}

// Load reads configuration from the environment, after loading .env if present
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set.")
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Env:                     getEnv("ENV", "development"),
		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", ""),
		PostgresUrl:             getEnv("POSTGRES_URL", ""),
		MongoURI:                getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:           getEnv("MONGO_DATABASE", "socialmedia"),
		LedgerDriver:            getEnv("LEDGER_DRIVER", LedgerMongo),
		JWTSecret:               getEnv("JWT_SECRET", "supersecretjwtkey"),
		NatsURL:                 getEnv("NATS_URL", ""),
		RedisURL:                getEnv("REDIS_URL", ""),
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		RateLimitRequests:       getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:         getEnvDuration("RATE_LIMIT_WINDOW", 15*time.Minute),
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
