package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(LevelForEnvironment(GetEnvWithDefault("APP_ENV", "development")))
}

// LevelForEnvironment maps APP_ENV to the log level used across the service
func LevelForEnvironment(environment string) logrus.Level {
	switch environment {
	case "development":
		return logrus.DebugLevel
	case "production":
		return logrus.ErrorLevel
	default:
		// Default to info level for other environments
		return logrus.InfoLevel
	}
}

// Config used for the application configuration, loading the input from environment variables
type Config struct {
	// Server Configuration
	Environment string   `json:"environment"`
	Port        int      `json:"port"`
	Host        string   `json:"host"`
	CORSOrigins []string `json:"cors_origins"`

	// Database configuration
	DBDriver   string `json:"db_driver"`
	DBPath     string `json:"db_path"`
	DBHost     string `json:"db_host"`
	DBPort     string `json:"db_port"`
	DBName     string `json:"db_name"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBSSLMode  string `json:"db_sslmode"`

	// Logging configuration
	LogLevel string `json:"log_level"`

	// Security Configuration
	JWTSecret     string `json:"jwt_secret"`
	TokenTTLHours int    `json:"token_ttl_hours"`

	// Recipe limits
	MaxCookingTime      int `json:"max_cooking_time"`
	MaxIngredientAmount int `json:"max_ingredient_amount"`

	// Image storage
	ImageStorage      string `json:"image_storage"`
	MediaRoot         string `json:"media_root"`
	MediaURL          string `json:"media_url"`
	S3Bucket          string `json:"s3_bucket"`
	S3Region          string `json:"s3_region"`
	S3Endpoint        string `json:"s3_endpoint"`
	S3AccessKeyID     string `json:"s3_access_key_id"`
	S3SecretAccessKey string `json:"s3_secret_access_key"`

	// Rate limiting, disabled when RedisURL is empty
	RedisURL                string `json:"redis_url"`
	RateLimitRecipesPerHour int    `json:"rate_limit_recipes_per_hour"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Environment: %s, Port: %d, Host: %s, DBDriver: %s, DBPath: %s, DBHost: %s, DBPort: %s, DBName: %s, DBUser: %s, DBPassword: [REDACTED], LogLevel: %s, JWTSecret: [REDACTED], ImageStorage: %s, S3Bucket: %s, S3SecretAccessKey: [REDACTED], RedisURL: %s}",
		c.Environment, c.Port, c.Host, c.DBDriver, c.DBPath, c.DBHost, c.DBPort, c.DBName, c.DBUser, c.LogLevel,
		c.ImageStorage, c.S3Bucket, maskURL(c.RedisURL))
}

// maskURL masks the password in a connection URL
func maskURL(raw string) string {
	if raw == "" {
		return ""
	}
	at := strings.LastIndex(raw, "@")
	scheme := strings.Index(raw, "://")
	if at == -1 || scheme == -1 || at < scheme {
		return raw
	}
	credentials := raw[scheme+3 : at]
	if user, _, found := strings.Cut(credentials, ":"); found {
		return raw[:scheme+3] + user + ":[REDACTED]" + raw[at:]
	}
	return raw
}

// LoadConfig read the proper configuration from environment variables and returns a Config struct
// Returns an error if any environment variable is invalid
func LoadConfig() (*Config, error) {
	log.Info("Loading configuration from environment variables")
	port, err := strconv.Atoi(GetEnvWithDefault("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config := &Config{
		Environment: GetEnvWithDefault("APP_ENV", "development"),
		Port:        port,
		Host:        GetEnvWithDefault("APP_HOST", "localhost"),
		CORSOrigins: splitList(GetEnvWithDefault("CORS_ORIGINS", "http://localhost:3000")),

		DBDriver:   strings.ToLower(GetEnvWithDefault("DB_DRIVER", "sqlite")),
		DBPath:     GetEnvWithDefault("DB_PATH", "foodgram.sqlite"),
		DBHost:     GetEnvWithDefault("DB_HOST", "localhost"),
		DBPort:     GetEnvWithDefault("DB_PORT", "5432"),
		DBName:     GetEnvWithDefault("DB_NAME", "foodgram"),
		DBUser:     GetEnvWithDefault("DB_USER", "foodgram"),
		DBPassword: GetEnvWithDefault("DB_PASSWORD", "foodgram"),
		DBSSLMode:  GetEnvWithDefault("DB_SSLMODE", "disable"),

		LogLevel: GetEnvWithDefault("LOG_LEVEL", "info"),

		JWTSecret:     GetEnvWithDefault("JWT_SECRET", "secret"),
		TokenTTLHours: GetEnvAsType("TOKEN_TTL_HOURS", 24),

		MaxCookingTime:      GetEnvAsType("MAX_COOKING_TIME", 1000),
		MaxIngredientAmount: GetEnvAsType("MAX_INGREDIENT_AMOUNT", 10000),

		ImageStorage:      strings.ToLower(GetEnvWithDefault("IMAGE_STORAGE", "local")),
		MediaRoot:         GetEnvWithDefault("MEDIA_ROOT", "media"),
		MediaURL:          GetEnvWithDefault("MEDIA_URL", "/media/"),
		S3Bucket:          GetEnvAsType("S3_BUCKET", ""),
		S3Region:          GetEnvAsType("S3_REGION", "us-east-1"),
		S3Endpoint:        GetEnvAsType("S3_ENDPOINT", ""),
		S3AccessKeyID:     GetEnvAsType("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: GetEnvAsType("S3_SECRET_ACCESS_KEY", ""),

		RedisURL:                GetEnvAsType("REDIS_URL", ""),
		RateLimitRecipesPerHour: GetEnvAsType("RATE_LIMIT_RECIPES_PER_HOUR", 30),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	log.Infof("Configuration loaded: %s", config.String())
	return config, nil
}

// Validate checks combinations of settings that cannot work together
func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (supported: sqlite, postgres)", c.DBDriver)
	}

	switch c.ImageStorage {
	case "local":
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET environment variable is required when IMAGE_STORAGE=s3")
		}
	default:
		return fmt.Errorf("unsupported IMAGE_STORAGE %q (supported: local, s3)", c.ImageStorage)
	}

	if c.MaxCookingTime < 1 {
		return fmt.Errorf("MAX_COOKING_TIME must be positive, got %d", c.MaxCookingTime)
	}
	if c.MaxIngredientAmount < 1 {
		return fmt.Errorf("MAX_INGREDIENT_AMOUNT must be positive, got %d", c.MaxIngredientAmount)
	}
	if c.TokenTTLHours < 1 {
		return fmt.Errorf("TOKEN_TTL_HOURS must be positive, got %d", c.TokenTTLHours)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value", key)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			log.Warnf("Environment variable %s is not an integer, using default", key)
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			log.Warnf("Environment variable %s is not a boolean, using default", key)
			return defaultValue
		}
		return any(boolValue).(T)
	default:
		return defaultValue // Fallback for unsupported types
	}
}
