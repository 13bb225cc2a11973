package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrJWTSecretMissing  = errors.New("JWT_SECRET environment variable is required")
	ErrJWTSecretTooShort = errors.New("JWT_SECRET must be at least 32 characters long")
)

const minSecretLength = 32

// LoadDotEnv loads variables from the given files (default ".env") without
// overriding ones already set. Missing files are not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Client configures cartctl and the cart session
type Client struct {
	BackendURL    string
	StateDir      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	QuietPeriod   time.Duration
	HTTPTimeout   time.Duration
	LogLevel      string
	LogDev        bool
}

func LoadClient() Client {
	return Client{
		BackendURL:    getEnv("CART_BACKEND_URL", "http://localhost:8080"),
		StateDir:      getEnv("CART_STATE_DIR", defaultStateDir()),
		RedisAddr:     os.Getenv("CART_REDIS_ADDR"),
		RedisPassword: os.Getenv("CART_REDIS_PASSWORD"),
		RedisDB:       getEnvInt("CART_REDIS_DB", 0),
		RedisTTL:      getEnvDuration("CART_REDIS_TTL", 0),
		QuietPeriod:   getEnvDuration("CART_QUIET_PERIOD", time.Second),
		HTTPTimeout:   getEnvDuration("CART_HTTP_TIMEOUT", 0),
		LogLevel:      getEnv("CART_LOG_LEVEL", "warn"),
		LogDev:        getEnvBool("CART_LOG_DEV", false),
	}
}

// Server configures draftd
type Server struct {
	Addr         string
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
	JWTSecret    string
	TokenExpiry  time.Duration
	LogLevel     string
	LogDev       bool
}

func LoadServer() (Server, error) {
	cfg := Server{
		Addr:         getEnv("DRAFTD_ADDR", ":8080"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		KafkaBrokers: getEnvList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "draft-order-events"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		TokenExpiry:  getEnvDuration("TOKEN_EXPIRY", 8*time.Hour),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogDev:       getEnvBool("LOG_DEV", false),
	}
	if cfg.JWTSecret == "" {
		return cfg, ErrJWTSecretMissing
	}
	if len(cfg.JWTSecret) < minSecretLength {
		return cfg, ErrJWTSecretTooShort
	}
	return cfg, nil
}

// Auditor configures the draft-order event consumer
type Auditor struct {
	KafkaBrokers []string
	KafkaTopic   string
	GroupID      string
	LogLevel     string
	LogDev       bool
}

func LoadAuditor() Auditor {
	brokers := getEnvList("KAFKA_BROKERS")
	if len(brokers) == 0 {
		brokers = []string{"localhost:9092"}
	}
	return Auditor{
		KafkaBrokers: brokers,
		KafkaTopic:   getEnv("KAFKA_TOPIC", "draft-order-events"),
		GroupID:      getEnv("KAFKA_GROUP_ID", "draft-order-auditor"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogDev:       getEnvBool("LOG_DEV", false),
	}
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "catering-cart")
	}
	return ".cartctl"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return b
}

// getEnvDuration accepts Go durations ("750ms") or a bare number of milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
