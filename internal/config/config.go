package config

import (
	"errors"  // For validation errors
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // For list parsing
	"time"    // For durations

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	DBDriver   string // Database driver: mysql or sqlite
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	DBPath     string // SQLite database file
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment

	CatalogPath string   // Optional YAML catalog overriding the embedded one
	CORSOrigins []string // Allowed front-end origins

	GroqAPIKey        string        // Classifier API key
	GroqBaseURL       string        // Classifier API base URL
	ClassifierModel   string        // Vision model used for scans
	ClassifierTest    string        // Text model used by the health probe
	ClassifierTimeout time.Duration // Per-request timeout
	ClassifierRetries int           // Retries on transient upstream failures

	MaxUploadBytes   int64 // Upload size limit for images
	ScanRatePerMin   int   // Scans per user per minute
	LoginMaxAttempts int   // Failed logins per email per window

	FirebaseProjectID   string // Firestore mirror project (empty disables)
	FirebaseCredentials string // Service account JSON path
	GCSBucket           string // Scan image bucket (empty disables)
	TelegramToken       string // Moderator bot token (empty disables)
	TelegramChatID      int64  // Moderator chat
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),             // Application port
		DBDriver:   getEnv("DB_DRIVER", "sqlite"),          // Database driver
		DBUser:     os.Getenv("DB_USER"),                   // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),               // Database password
		DBHost:     os.Getenv("DB_HOST"),                   // Database host
		DBPort:     getEnv("DB_PORT", "3306"),              // Database port
		DBName:     os.Getenv("DB_NAME"),                   // Database name
		DBPath:     getEnv("DB_PATH", "ecocycle.db"),       // SQLite file
		JWTSecret:  os.Getenv("JWT_SECRET"),                // JWT secret key
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"), // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),                // Redis password
		RedisDB:    getInt("REDIS_DB", 0),                  // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true",         // Is production environment

		CatalogPath: os.Getenv("CATALOG_PATH"),
		CORSOrigins: getList("CORS_ORIGINS", []string{"http://localhost:3000"}),

		GroqAPIKey:        os.Getenv("GROQ_API_KEY"),
		GroqBaseURL:       getEnv("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		ClassifierModel:   getEnv("CLASSIFIER_MODEL", "llava-v1.5-7b-4096-preview"),
		ClassifierTest:    getEnv("CLASSIFIER_TEST_MODEL", "llama3-8b-8192"),
		ClassifierTimeout: time.Duration(getInt("CLASSIFIER_TIMEOUT_SEC", 30)) * time.Second,
		ClassifierRetries: getInt("CLASSIFIER_MAX_RETRIES", 2),

		MaxUploadBytes:   int64(getInt("MAX_UPLOAD_MB", 8)) << 20,
		ScanRatePerMin:   getInt("SCAN_RATE_PER_MIN", 10),
		LoginMaxAttempts: getInt("LOGIN_MAX_ATTEMPTS", 5),

		FirebaseProjectID:   os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredentials: os.Getenv("FIREBASE_CREDENTIALS"),
		GCSBucket:           os.Getenv("GCS_BUCKET"),
		TelegramToken:       os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID:      int64(getInt("TELEGRAM_CHAT_ID", 0)),
	}
}

// Validate reports settings the server cannot start without
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.DBDriver {
	case "mysql":
		if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
			return errors.New("DB_HOST, DB_USER and DB_NAME are required for mysql")
		}
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DB_PATH is required for sqlite")
		}
	default:
		return errors.New("DB_DRIVER must be mysql or sqlite")
	}
	return nil
}

// MySQLDSN builds the Data Source Name for the MySQL driver
func (c *Config) MySQLDSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName + "?parseTime=true"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
