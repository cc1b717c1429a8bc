package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	DB     DBConfig
	MinIO  MinIOConfig
	JWT    JWTConfig
	Server ServerConfig
	Upload UploadConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// MinIOConfig describes the default bucket the server itself provisions.
// Users may attach further external buckets at runtime.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type JWTConfig struct {
	Secret          string
	ExpirationHours int
}

type ServerConfig struct {
	Port string
}

type UploadConfig struct {
	PresignTTL        time.Duration
	RenameAttempts    int
	MaxRunBytes       int64
	MaxRunFiles       int
	PruneEmptyFolders bool
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "bucketdrive"),
			Password: getEnv("DB_PASSWORD", "bucketdrive_secret"),
			Name:     getEnv("DB_NAME", "bucketdrive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "bucketdrive"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "bucketdrive_secret"),
			Bucket:    getEnv("MINIO_BUCKET", "bucketdrive"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
		},
		JWT: JWTConfig{
			Secret:          getEnv("JWT_SECRET", "change-me-in-production"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Upload: UploadConfig{
			PresignTTL:        getEnvAsDuration("UPLOAD_PRESIGN_TTL", 15*time.Minute),
			RenameAttempts:    getEnvAsInt("UPLOAD_RENAME_ATTEMPTS", 25),
			MaxRunBytes:       getEnvAsInt64("UPLOAD_MAX_RUN_BYTES", 0),
			MaxRunFiles:       getEnvAsInt("UPLOAD_MAX_RUN_FILES", 0),
			PruneEmptyFolders: getEnvAsBool("UPLOAD_PRUNE_EMPTY_FOLDERS", false),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
