// Package config reads the process configuration from the environment.
package config

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aalan294/campus-life-admin/internal/media"
	"github.com/aalan294/campus-life-admin/pkg/sdk"
	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const devSigningKey = "dev-signing-key-change-in-production"

// Config is the whole application configuration.
type Config struct {
	App      AppConfig
	Store    StoreConfig
	Docstore DocstoreConfig
	Redis    RedisConfig
	Media    MediaConfig
	Pinata   PinataConfig
	MinIO    MinIOConfig
}

type AppConfig struct {
	Name             string
	Environment      string // development, staging, production
	Port             string
	LogLevel         string
	CORSOrigins      []string
	OperationTimeout time.Duration
	URLTTL           time.Duration
	ResolveFanout    int
}

// StoreConfig selects the document store the managers write to.
type StoreConfig struct {
	Driver  string // "", embedded, remote, redis
	DataDir string
	Addr    string
	TLS     bool
	// InsecureSkipVerify accepts the daemon's self-signed certificate.
	InsecureSkipVerify bool
}

// DocstoreConfig configures the standalone document store daemon.
type DocstoreConfig struct {
	Port  string
	TLS   bool
	Hosts []string // certificate SANs
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type MediaConfig struct {
	Driver     string // pinata, minio, local
	LocalDir   string
	BaseURL    string
	SigningKey string
	SealSecret string
	CacheURLs  bool
}

type PinataConfig struct {
	JWT       string
	Gateway   string
	UploadURL string
	APIURL    string
	Timeout   time.Duration
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Region    string
}

// LoadDotEnv loads the given env files, or .env, into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from environment variables and validates it.
func Load() (*Config, error) {
	port := getEnv("APP_PORT", "8080")
	cfg := &Config{
		App: AppConfig{
			Name:             getEnv("APP_NAME", "Campus Life Admin"),
			Environment:      getEnv("APP_ENV", "development"),
			Port:             port,
			LogLevel:         getEnv("LOG_LEVEL", "info"),
			CORSOrigins:      getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
			OperationTimeout: getEnvDuration("OPERATION_TIMEOUT", 15*time.Second),
			URLTTL:           getEnvDuration("MEDIA_URL_TTL", media.DefaultURLTTL),
			ResolveFanout:    getEnvInt("RESOLVE_FANOUT", 8),
		},
		Store: StoreConfig{
			Driver:             getEnv("STORE_DRIVER", sdk.DriverAuto),
			DataDir:            getEnv("STORE_DATA_DIR", "./data"),
			Addr:               getEnv("STORE_ADDR", ""),
			TLS:                getEnvBool("STORE_TLS", false),
			InsecureSkipVerify: getEnvBool("STORE_TLS_INSECURE", false),
		},
		Docstore: DocstoreConfig{
			Port:  getEnv("DOCSTORE_PORT", "7001"),
			TLS:   getEnvBool("DOCSTORE_TLS", false),
			Hosts: getEnvList("DOCSTORE_TLS_HOSTS", []string{"localhost", "127.0.0.1"}),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_HOST", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "campus"),
		},
		Media: MediaConfig{
			Driver:     getEnv("MEDIA_DRIVER", media.DriverLocal),
			LocalDir:   getEnv("MEDIA_DIR", "./data/media"),
			BaseURL:    getEnv("MEDIA_BASE_URL", "http://localhost:"+port),
			SigningKey: getEnv("MEDIA_SIGNING_KEY", devSigningKey),
			SealSecret: getEnv("MEDIA_SEAL_SECRET", ""),
			CacheURLs:  getEnvBool("MEDIA_CACHE_URLS", true),
		},
		Pinata: PinataConfig{
			JWT:       getEnv("PINATA_JWT", ""),
			Gateway:   getEnv("PINATA_GATEWAY", ""),
			UploadURL: getEnv("PINATA_UPLOAD_URL", "https://uploads.pinata.cloud"),
			APIURL:    getEnv("PINATA_API_URL", "https://api.pinata.cloud"),
			Timeout:   getEnvDuration("PINATA_TIMEOUT", 30*time.Second),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "campus-media"),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
			Region:    getEnv("MINIO_REGION", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case sdk.DriverAuto, sdk.DriverEmbedded, sdk.DriverRedis:
	case sdk.DriverRemote:
		if c.Store.Addr == "" {
			return errors.New("STORE_ADDR must be set for the remote store driver")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}

	switch c.Media.Driver {
	case media.DriverPinata:
		if c.Pinata.JWT == "" || c.Pinata.Gateway == "" {
			return errors.New("PINATA_JWT and PINATA_GATEWAY must be set for the pinata media driver")
		}
	case media.DriverMinIO:
		if c.MinIO.Bucket == "" {
			return errors.New("MINIO_BUCKET must be set for the minio media driver")
		}
	case media.DriverLocal:
		if len(c.Media.SigningKey) < 16 {
			return errors.New("MEDIA_SIGNING_KEY must be at least 16 bytes")
		}
	default:
		return fmt.Errorf("unknown MEDIA_DRIVER %q", c.Media.Driver)
	}

	if c.IsProduction() {
		if c.Media.Driver == media.DriverLocal && c.Media.SigningKey == devSigningKey {
			return errors.New("MEDIA_SIGNING_KEY must be set in production")
		}
		if c.MinIO.SecretKey == "minioadmin" && c.Media.Driver == media.DriverMinIO {
			return errors.New("MINIO_SECRET_KEY must be set in production")
		}
	}
	if c.App.OperationTimeout <= 0 {
		return errors.New("OPERATION_TIMEOUT must be positive")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// StoreOptions converts the store section for sdk.Open.
func (c *Config) StoreOptions() sdk.Options {
	opts := sdk.Options{
		Driver:  c.Store.Driver,
		DataDir: c.Store.DataDir,
		Addr:    c.Store.Addr,
		Redis: sdk.RedisOptions{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		},
	}
	if c.Store.TLS {
		opts.TLS = &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.Store.InsecureSkipVerify}
	}
	return opts
}

// MediaOptions converts the media sections for media.Open.
func (c *Config) MediaOptions() media.Config {
	return media.Config{
		Driver: c.Media.Driver,
		Pinata: media.PinataConfig{
			JWT:       c.Pinata.JWT,
			Gateway:   c.Pinata.Gateway,
			UploadURL: c.Pinata.UploadURL,
			APIURL:    c.Pinata.APIURL,
			Timeout:   c.Pinata.Timeout,
		},
		MinIO: media.MinIOConfig{
			Endpoint:  c.MinIO.Endpoint,
			AccessKey: c.MinIO.AccessKey,
			SecretKey: c.MinIO.SecretKey,
			Bucket:    c.MinIO.Bucket,
			UseSSL:    c.MinIO.UseSSL,
			Region:    c.MinIO.Region,
		},
		LocalDir:   c.Media.LocalDir,
		BaseURL:    c.Media.BaseURL,
		SigningKey: c.Media.SigningKey,
		SealSecret: c.Media.SealSecret,
		CacheURLs:  c.Media.CacheURLs,
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := cast.ToBoolE(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration accepts Go durations ("30s") and plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	value, err := cast.ToDurationE(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
