package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Storage drivers
const (
	StorageDriverS3     = "s3"
	StorageDriverMemory = "memory"
)

// Cache drivers
const (
	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
	CacheDriverNone   = "none"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Database DatabaseConfig
	Mongo    MongoConfig
	Storage  StorageConfig
	Cache    CacheConfig
	Auth     AuthConfig
	Notify   NotifyConfig
	Listings ListingsConfig
	Drafts   DraftsConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
	// MaxUploadBytes caps multipart upload bodies.
	MaxUploadBytes int64
	// MaxMultipartMemory is how much of an upload is held in memory before
	// spilling to temporary files.
	MaxMultipartMemory int64
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI      string
	Database string
}

// StorageConfig holds object storage configuration for property media.
type StorageConfig struct {
	Driver          string
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string
}

// CacheConfig holds query cache configuration.
type CacheConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
}

// AuthConfig holds identity provider session settings.
type AuthConfig struct {
	JWTSecret   string
	Issuer      string
	AdminEmails []string
}

// NotifyConfig holds lead notification settings.
type NotifyConfig struct {
	WebhookURL string
}

// ListingsConfig holds listing defaults.
type ListingsConfig struct {
	DefaultCity     string
	DefaultPageSize int
	MaxPageSize     int
}

// DraftsConfig controls the lifetime of admin property drafts.
type DraftsConfig struct {
	TTL           time.Duration
	SweepSchedule string
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// Load reads configuration from an optional .env file and environment variables.
func Load() (*Config, error) {
	// Missing .env is fine, real environment wins
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("MAX_UPLOAD_BYTES", 256<<20)
	v.SetDefault("MAX_MULTIPART_MEMORY", 32<<20)
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "realtor")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "realtor")
	v.SetDefault("STORAGE_DRIVER", StorageDriverMemory)
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("CACHE_DRIVER", CacheDriverMemory)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("DEFAULT_CITY", "Cali")
	v.SetDefault("DEFAULT_PAGE_SIZE", 12)
	v.SetDefault("MAX_PAGE_SIZE", 100)
	v.SetDefault("DRAFT_TTL", "2h")
	v.SetDefault("DRAFT_SWEEP_SCHEDULE", "@every 10m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:     v.GetString("PORT"),
			Env:      v.GetString("ENV"),
			LogLevel: v.GetString("LOG_LEVEL"),

			MaxBodyBytes:       v.GetInt64("MAX_BODY_BYTES"),
			MaxUploadBytes:     v.GetInt64("MAX_UPLOAD_BYTES"),
			MaxMultipartMemory: v.GetInt64("MAX_MULTIPART_MEMORY"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("STORE_DRIVER")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("MONGO_URI"),
			Database: v.GetString("MONGO_DATABASE"),
		},
		Storage: StorageConfig{
			Driver:          strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Bucket:          v.GetString("S3_BUCKET"),
			Region:          v.GetString("S3_REGION"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			PublicBaseURL:   v.GetString("S3_PUBLIC_BASE_URL"),
		},
		Cache: CacheConfig{
			Driver:        strings.ToLower(v.GetString("CACHE_DRIVER")),
			RedisAddr:     v.GetString("REDIS_ADDR"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTL:           v.GetDuration("CACHE_TTL"),
		},
		Auth: AuthConfig{
			JWTSecret:   v.GetString("AUTH_JWT_SECRET"),
			Issuer:      v.GetString("AUTH_ISSUER"),
			AdminEmails: splitList(v.GetString("ADMIN_EMAILS")),
		},
		Notify: NotifyConfig{
			WebhookURL: v.GetString("NOTIFY_WEBHOOK_URL"),
		},
		Listings: ListingsConfig{
			DefaultCity:     v.GetString("DEFAULT_CITY"),
			DefaultPageSize: v.GetInt("DEFAULT_PAGE_SIZE"),
			MaxPageSize:     v.GetInt("MAX_PAGE_SIZE"),
		},
		Drafts: DraftsConfig{
			TTL:           v.GetDuration("DRAFT_TTL"),
			SweepSchedule: v.GetString("DRAFT_SWEEP_SCHEDULE"),
		},
		CORS: CORSConfig{
			Origins: splitList(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if c.Server.MaxMultipartMemory <= 0 {
		return fmt.Errorf("MAX_MULTIPART_MEMORY must be positive")
	}

	switch c.Store.Driver {
	case StoreDriverPostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	case StoreDriverMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required")
		}
		if c.Mongo.Database == "" {
			return fmt.Errorf("MONGO_DATABASE is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be one of postgres, mongo, memory (got %q)", c.Store.Driver)
	}

	switch c.Storage.Driver {
	case StorageDriverS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required")
		}
		if c.Storage.Region == "" {
			return fmt.Errorf("S3_REGION is required")
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be one of s3, memory (got %q)", c.Storage.Driver)
	}

	switch c.Cache.Driver {
	case CacheDriverRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required")
		}
	case CacheDriverMemory, CacheDriverNone:
	default:
		return fmt.Errorf("CACHE_DRIVER must be one of memory, redis, none (got %q)", c.Cache.Driver)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("CACHE_TTL must be non-negative")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	if c.Listings.DefaultCity == "" {
		return fmt.Errorf("DEFAULT_CITY is required")
	}
	if c.Listings.MaxPageSize < 1 {
		return fmt.Errorf("MAX_PAGE_SIZE must be at least 1")
	}
	if c.Listings.DefaultPageSize < 1 || c.Listings.DefaultPageSize > c.Listings.MaxPageSize {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be between 1 and MAX_PAGE_SIZE")
	}

	if c.Drafts.TTL <= 0 {
		return fmt.Errorf("DRAFT_TTL must be positive")
	}
	if c.Drafts.SweepSchedule == "" {
		return fmt.Errorf("DRAFT_SWEEP_SCHEDULE is required")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

// splitList splits a comma-separated string into trimmed, non-empty parts.
func splitList(s string) []string {
	if s == "" {
		return []string{}
	}

	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
