// ============================================================================
// backend/internal/shared/config.go
// Shared configuration management and environment variable helpers
// ============================================================================

package shared

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// ============================================================================
// Configuration Structs
// ============================================================================

// ServiceConfig holds configuration for the grading service and its tools
type ServiceConfig struct {
	ServiceName string
	ServicePort string // gRPC health port
	HTTPPort    string
	Environment string // development, staging, production
	LogLevel    string // debug, info, warn, error
	LogFormat   string // console, json

	// Storage driver: mongo or memory
	StoreDriver string

	// MongoDB Configuration
	MongoDB MongoConfig

	// HTTP Configuration
	HTTP HTTPConfig

	// Calculation Configuration
	Calculation CalculationConfig
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	CORS           CORSConfig
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
	MaxAge           int // in seconds
}

// CalculationConfig holds settings of the aggregation engine
type CalculationConfig struct {
	PolicyFile     string        // optional grading policy file (yaml/json)
	QueryTimeout   time.Duration // per store call
	RecalcWorkers  int           // parallel students during bulk recalculation
	CascadeTimeout time.Duration // upper bound for one cascade run after a grade save
}

// ============================================================================
// Configuration Loading Functions
// ============================================================================

// LoadEnv loads environment variables from .env file
func LoadEnv(envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}

	if err := godotenv.Load(envFile); err != nil {
		log.Printf("Warning: %s file not found, using system environment variables", envFile)
		return err
	}

	log.Printf("Successfully loaded environment from %s", envFile)
	return nil
}

// LoadServiceConfig loads service configuration from environment
func LoadServiceConfig(serviceName string) (*ServiceConfig, error) {
	config := &ServiceConfig{
		ServiceName: serviceName,
		ServicePort: GetEnv("SERVICE_PORT", DefaultGRPCPort),
		HTTPPort:    GetEnv("HTTP_PORT", DefaultHTTPPort),
		Environment: GetEnv("ENVIRONMENT", "development"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),
		LogFormat:   GetEnv("LOG_FORMAT", "console"),
		StoreDriver: GetEnv("STORE_DRIVER", StoreDriverMongo),
	}

	mongoURI := GetEnv("MONGO_URI", "")
	if mongoURI == "" && config.StoreDriver == StoreDriverMongo {
		return nil, fmt.Errorf("MONGO_URI environment variable is required")
	}

	config.MongoDB = MongoConfig{
		URI:            mongoURI,
		Database:       GetEnv("MONGO_DB_NAME", "transcripts"),
		ConnectTimeout: GetDurationEnv("MONGO_CONNECT_TIMEOUT", 20*time.Second),
		MaxPoolSize:    uint64(GetIntEnv("MONGO_MAX_POOL_SIZE", 50)),
		MinPoolSize:    uint64(GetIntEnv("MONGO_MIN_POOL_SIZE", 10)),
		MaxIdleTime:    GetDurationEnv("MONGO_MAX_IDLE_TIME", 30*time.Second),
	}

	config.HTTP = HTTPConfig{
		ReadTimeout:    GetDurationEnv("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   GetDurationEnv("HTTP_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:    GetDurationEnv("HTTP_IDLE_TIMEOUT", 60*time.Second),
		RequestTimeout: GetDurationEnv("HTTP_REQUEST_TIMEOUT", 60*time.Second),
		CORS: CORSConfig{
			AllowedOrigins:   GetStringSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			AllowedMethods:   GetStringSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   GetStringSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type"}),
			AllowCredentials: GetBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           GetIntEnv("CORS_MAX_AGE", 300),
		},
	}

	config.Calculation = CalculationConfig{
		PolicyFile:     GetEnv("GRADING_POLICY_FILE", ""),
		QueryTimeout:   GetDurationEnv("CALC_QUERY_TIMEOUT", 10*time.Second),
		RecalcWorkers:  GetIntEnv("CALC_RECALC_WORKERS", 8),
		CascadeTimeout: GetDurationEnv("CALC_CASCADE_TIMEOUT", 30*time.Second),
	}

	return config, nil
}

// ============================================================================
// Environment Variable Helper Functions
// ============================================================================

// GetEnv retrieves an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetIntEnv retrieves an integer environment variable or returns a default value
func GetIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetBoolEnv retrieves a boolean environment variable or returns a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid boolean value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetDurationEnv retrieves a duration environment variable or returns a default value
// Supports format like "30s", "5m", "1h"
func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s: %s, using default: %v", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

// GetStringSliceEnv retrieves a comma-separated string list or returns a default value
func GetStringSliceEnv(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var result []string
	for _, part := range strings.Split(valueStr, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}

// ============================================================================
// Configuration Validation
// ============================================================================

// ValidateServiceConfig validates service configuration
func ValidateServiceConfig(config *ServiceConfig) error {
	if config.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}

	if config.HTTPPort == "" {
		return fmt.Errorf("HTTP port is required")
	}

	switch config.StoreDriver {
	case StoreDriverMongo:
		if config.MongoDB.URI == "" {
			return fmt.Errorf("MongoDB URI is required")
		}
		if config.MongoDB.Database == "" {
			return fmt.Errorf("MongoDB database name is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", config.StoreDriver)
	}

	if config.Calculation.RecalcWorkers < 1 {
		return fmt.Errorf("recalculation workers must be at least 1")
	}

	return nil
}

// ============================================================================
// Configuration Display (for debugging)
// ============================================================================

// PrintConfig logs configuration (sanitized) for debugging
func PrintConfig(logger *zap.Logger, config *ServiceConfig) {
	logger.Info("service configuration",
		zap.String("service", config.ServiceName),
		zap.String("grpc_port", config.ServicePort),
		zap.String("http_port", config.HTTPPort),
		zap.String("environment", config.Environment),
		zap.String("log_level", config.LogLevel),
		zap.String("store_driver", config.StoreDriver),
	)
	logger.Info("mongodb configuration",
		zap.String("database", config.MongoDB.Database),
		zap.Uint64("max_pool_size", config.MongoDB.MaxPoolSize),
		zap.Uint64("min_pool_size", config.MongoDB.MinPoolSize),
	)
	logger.Info("calculation configuration",
		zap.String("policy_file", config.Calculation.PolicyFile),
		zap.Duration("query_timeout", config.Calculation.QueryTimeout),
		zap.Int("recalc_workers", config.Calculation.RecalcWorkers),
		zap.Strings("cors_origins", config.HTTP.CORS.AllowedOrigins),
	)
}

// ============================================================================
// Defaults
// ============================================================================

const (
	DefaultHTTPPort = "8080"
	DefaultGRPCPort = "50054"

	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

// IsDevelopment checks if running in development environment
func IsDevelopment(config *ServiceConfig) bool {
	return config.Environment == "development"
}

// IsProduction checks if running in production environment
func IsProduction(config *ServiceConfig) bool {
	return config.Environment == "production"
}

// GetLogLevel returns the configured log level
func GetLogLevel(config *ServiceConfig) string {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if validLevels[config.LogLevel] {
		return config.LogLevel
	}

	return "info"
}
