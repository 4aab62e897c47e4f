package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the library. The only true external
// concern is which backend to talk to; everything else has working defaults.
type Config struct {
	App       AppConfig
	Store     StoreConfig
	LocalDB   LocalDBConfig
	Emergency EmergencyConfig
	Scanner   ScannerConfig
	Invite    InviteConfig
	Firebase  FirebaseConfig
}

type AppConfig struct {
	Env string
}

// StoreBackend selects the remote store implementation
type StoreBackend string

const (
	BackendMemory    StoreBackend = "memory"
	BackendRedis     StoreBackend = "redis"
	BackendWebSocket StoreBackend = "websocket"
)

type StoreConfig struct {
	Backend StoreBackend

	RedisHost     string
	RedisPort     string
	RedisPassword string

	GatewayURL   string // websocket backend
	GatewayToken string
}

// RedisAddr returns the Redis address
func (s StoreConfig) RedisAddr() string {
	return s.RedisHost + ":" + s.RedisPort
}

type LocalDBConfig struct {
	Path string
}

type EmergencyConfig struct {
	Countdown time.Duration
}

type ScannerConfig struct {
	Grace time.Duration
}

type InviteConfig struct {
	Secret string
	Expiry time.Duration
}

type FirebaseConfig struct {
	CredentialsFile string
}

// Load reads configuration from .env file and environment variables
func Load() *Config {
	// Load .env file (ignore error if not exists - e.g. inside the app shell)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading from environment variables")
	}

	return &Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "development"),
		},
		Store: StoreConfig{
			Backend:       StoreBackend(getEnv("STORE_BACKEND", "redis")),
			RedisHost:     getEnv("REDIS_HOST", "localhost"),
			RedisPort:     getEnv("REDIS_PORT", "6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			GatewayURL:    getEnv("SYNC_GATEWAY_URL", ""),
			GatewayToken:  getEnv("SYNC_GATEWAY_TOKEN", ""),
		},
		LocalDB: LocalDBConfig{
			Path: getEnv("LOCAL_DB_PATH", "safenest.db"),
		},
		Emergency: EmergencyConfig{
			Countdown: getDurationEnv("EMERGENCY_COUNTDOWN", 30*time.Second),
		},
		Scanner: ScannerConfig{
			Grace: getDurationEnv("OVERDUE_GRACE", 60*time.Minute),
		},
		Invite: InviteConfig{
			Secret: getEnv("INVITE_SECRET", "default-secret"),
			Expiry: getDurationEnv("INVITE_EXPIRY", 72*time.Hour),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
