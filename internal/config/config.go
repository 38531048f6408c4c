package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Storage backends.
const (
	BackendFilesystem = "filesystem"
	BackendMinIO      = "minio"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Thumbnail ThumbnailConfig
	Worker    WorkerConfig
	Database  DatabaseConfig
	MinIO     MinIOConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"5000"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"5m"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"10m"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
	SessionSecret   string        `envconfig:"SESSION_SECRET" default:"change-me-in-prod"`
	MaxUploadBytes  int64         `envconfig:"API_MAX_UPLOAD_BYTES" default:"2147483648"`
}

type StorageConfig struct {
	Backend           string   `envconfig:"STORAGE_BACKEND" default:"filesystem"`
	UploadDir         string   `envconfig:"UPLOAD_DIR" default:"./uploads"`
	ThumbnailDir      string   `envconfig:"THUMBNAIL_DIR" default:"./thumbnails"`
	PlaceholderPath   string   `envconfig:"PLACEHOLDER_PATH" default:"./static/img/placeholder.jpg"`
	TempDir           string   `envconfig:"UPLOAD_TEMP_DIR" default:"/tmp/vidshelf"`
	AllowedExtensions []string `envconfig:"ALLOWED_EXTENSIONS" default:"mp4,webm,ogg,mov,avi,mkv"`
}

type ThumbnailConfig struct {
	FFmpegPath string        `envconfig:"FFMPEG_PATH" default:"ffmpeg"`
	SeekOffset time.Duration `envconfig:"THUMBNAIL_SEEK_OFFSET" default:"1s"`
	Timeout    time.Duration `envconfig:"THUMBNAIL_TIMEOUT" default:"30s"`
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"5"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	Driver   string `envconfig:"DATABASE_DRIVER" default:"sqlite"`
	Path     string `envconfig:"DATABASE_PATH" default:"./videos.db"`
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"vidshelf"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"vidshelf"`
	DBName   string `envconfig:"POSTGRES_DB" default:"vidshelf"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"vidshelf"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type RedisConfig struct {
	Enabled  bool          `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int           `envconfig:"REDIS_PORT" default:"6379"`
	Password string        `envconfig:"REDIS_PASSWORD" default:""`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	CacheTTL time.Duration `envconfig:"REDIS_CACHE_TTL" default:"5m"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RabbitMQConfig struct {
	Enabled  bool   `envconfig:"RABBITMQ_ENABLED" default:"false"`
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"vidshelf"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"vidshelf"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case BackendFilesystem, BackendMinIO:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if len(c.Storage.AllowedExtensions) == 0 {
		return fmt.Errorf("ALLOWED_EXTENSIONS must not be empty")
	}
	return nil
}
