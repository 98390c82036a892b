package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full service configuration, loaded from environment
// variables.
type Config struct {
	// Server settings
	ServerPort         int           `envconfig:"SERVER_PORT" default:"8080"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"180s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:5173"`

	// Logging
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	// Identity
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	GuestSessionTTL   time.Duration `envconfig:"GUEST_SESSION_TTL" default:"72h"`
	GuestCookieName   string        `envconfig:"GUEST_COOKIE_NAME" default:"dreamlets_guest"`
	GuestCookieSecure bool          `envconfig:"GUEST_COOKIE_SECURE" default:"false"`

	// PostgreSQL settings
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"dreamlets_db"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns int    `envconfig:"DB_MAX_CONNECTIONS" default:"10"`

	// Redis settings (guest session storage)
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// AI settings (OpenAI-compatible API)
	AIAPIKey         string        `envconfig:"AI_API_KEY" required:"true"`
	AIBaseURL        string        `envconfig:"AI_BASE_URL" default:"https://api.openai.com/v1"`
	AIModel          string        `envconfig:"AI_MODEL" default:"gpt-4o"`
	AITimeout        time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxAttempts    int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`

	// Assistant settings (stateful conversation mode)
	AssistantID     string        `envconfig:"ASSISTANT_ID" default:""`
	AssistantName   string        `envconfig:"ASSISTANT_NAME" default:"Dreamlets Storytelling Companion"`
	RunPollInterval time.Duration `envconfig:"RUN_POLL_INTERVAL" default:"1s"`
	RunTimeout      time.Duration `envconfig:"RUN_TIMEOUT" default:"60s"`

	// Image generation settings
	ImageModel           string        `envconfig:"IMAGE_MODEL" default:"dall-e-3"`
	ImageSize            string        `envconfig:"IMAGE_SIZE" default:"1024x1024"`
	ImageQuality         string        `envconfig:"IMAGE_QUALITY" default:"standard"`
	ImageDownloadTimeout time.Duration `envconfig:"IMAGE_DOWNLOAD_TIMEOUT" default:"30s"`

	// Image storage
	StorageBackend     string `envconfig:"STORAGE_BACKEND" default:"local"` // local or minio
	ImageSavePath      string `envconfig:"IMAGE_SAVE_PATH" default:"./data/images"`
	ImagePublicBaseURL string `envconfig:"IMAGE_PUBLIC_BASE_URL" default:"/images"`
	MinioEndpoint      string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioAccessKey     string `envconfig:"MINIO_ACCESS_KEY" default:""`
	MinioSecretKey     string `envconfig:"MINIO_SECRET_KEY" default:""`
	MinioBucket        string `envconfig:"MINIO_BUCKET" default:"dreamlets-images"`
	MinioUseSSL        bool   `envconfig:"MINIO_USE_SSL" default:"false"`

	// Quota policy. Observed revisions of the product disagreed on the exact
	// numbers, so they are configuration, not constants.
	GuestStoryLimit          int           `envconfig:"GUEST_STORY_LIMIT" default:"3"`
	GuestStoryWindow         time.Duration `envconfig:"GUEST_STORY_WINDOW" default:"720h"`
	FreeTierMonthlyLimit     int           `envconfig:"FREE_TIER_MONTHLY_LIMIT" default:"5"`
	StandardTierMonthlyLimit int           `envconfig:"STANDARD_TIER_MONTHLY_LIMIT" default:"15"`
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// MaskedDSN returns the DSN with the password replaced, for logging.
func (c *Config) MaskedDSN() string {
	return fmt.Sprintf("postgres://%s:********@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	switch strings.ToLower(cfg.StorageBackend) {
	case "local", "minio":
	default:
		return nil, fmt.Errorf("unknown storage backend: %q", cfg.StorageBackend)
	}

	return &cfg, nil
}
