package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultSeedPassword is the bootstrap admin password used when none is configured
const DefaultSeedPassword = "admin123"

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Email    EmailConfig
	Seed     SeedConfig
}

type DatabaseConfig struct {
	Host              string        `envconfig:"DB_HOST" default:"localhost"`
	Port              int           `envconfig:"DB_PORT" default:"5432"`
	User              string        `envconfig:"DB_USER" default:"postgres"`
	Password          string        `envconfig:"DB_PASSWORD" required:"true"`
	Name              string        `envconfig:"DB_NAME" default:"helpdesk"`
	SSLMode           string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns          int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	MinConns          int32         `envconfig:"DB_MIN_CONNS" default:"5"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"5m"`
	MaxConnIdleTime   time.Duration `envconfig:"DB_MAX_CONN_IDLE_TIME" default:"1m"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
	AutoMigrate       bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
}

type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	Env            string        `envconfig:"ENV" default:"development"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS"`
	TrustedProxies []string      `envconfig:"TRUSTED_PROXIES"`
	ReadTimeout    time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout    time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// RequireAdminForReads gates request list and detail endpoints behind an admin session
	RequireAdminForReads bool `envconfig:"REQUIRE_ADMIN_FOR_READS" default:"true"`
}

type AuthConfig struct {
	SecretKey       string        `envconfig:"SECRET_KEY" required:"true"`
	CookieDomain    string        `envconfig:"SESSION_COOKIE_DOMAIN"`
	CookieSameSite  string        `envconfig:"SESSION_COOKIE_SAMESITE" default:"lax"`
	CleanupInterval time.Duration `envconfig:"SESSION_CLEANUP_INTERVAL" default:"1h"`
	LoginRateLimit  int           `envconfig:"LOGIN_RATE_LIMIT_PER_MINUTE" default:"10"`
	SubmitRateLimit int           `envconfig:"SUBMIT_RATE_LIMIT_PER_MINUTE" default:"30"`
	FailureDelay    time.Duration `envconfig:"LOGIN_FAILURE_DELAY" default:"300ms"`
	FailureJitter   time.Duration `envconfig:"LOGIN_FAILURE_JITTER" default:"200ms"`
}

type UploadConfig struct {
	MaxFileSize       int64    `envconfig:"UPLOAD_MAX_FILE_SIZE" default:"16777216"`
	MaxFiles          int      `envconfig:"UPLOAD_MAX_FILES" default:"10"`
	AllowedExtensions []string `envconfig:"UPLOAD_ALLOWED_EXTENSIONS" default:"png,jpg,jpeg,gif,pdf,doc,docx,txt,log"`
}

type StorageConfig struct {
	Backend   string `envconfig:"STORAGE_BACKEND" default:"local"`
	LocalDir  string `envconfig:"UPLOAD_DIR" default:"uploads"`
	S3Bucket  string `envconfig:"S3_BUCKET"`
	S3Prefix  string `envconfig:"S3_PREFIX" default:"attachments/"`
	AWSRegion string `envconfig:"AWS_REGION" default:"us-east-1"`
}

type EmailConfig struct {
	Enabled        bool   `envconfig:"EMAIL_ENABLED" default:"false"`
	AWSRegion      string `envconfig:"SES_REGION"`
	FromAddress    string `envconfig:"SYSTEM_FROM_EMAIL" default:"noreply@demulla.com"`
	SupportAddress string `envconfig:"SUPPORT_EMAIL" default:"support@demulla.com"`
	BaseURL        string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
}

type SeedConfig struct {
	Username string `envconfig:"ADMIN_USERNAME" default:"admin"`
	Email    string `envconfig:"ADMIN_EMAIL" default:"admin@demulla.com"`
	FullName string `envconfig:"ADMIN_FULL_NAME" default:"System Administrator"`
	Password string `envconfig:"ADMIN_PASSWORD" default:"admin123"`
}

// IsProduction reports whether the server runs with production settings
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	for _, section := range []any{
		&cfg.Database, &cfg.Server, &cfg.Auth, &cfg.Upload,
		&cfg.Storage, &cfg.Email, &cfg.Seed,
	} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
	}

	if len(cfg.Server.AllowedOrigins) == 0 && !cfg.Server.IsProduction() {
		cfg.Server.AllowedOrigins = developmentOrigins()
	}
	cfg.Upload.AllowedExtensions = normalizeExtensions(cfg.Upload.AllowedExtensions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if err := validateSecretKey(c.Auth.SecretKey, c.Server.Env); err != nil {
		return err
	}

	if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS: %d/%d", c.Database.MinConns, c.Database.MaxConns)
	}

	if c.Upload.MaxFileSize <= 0 {
		return errors.New("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Upload.MaxFiles <= 0 {
		return errors.New("UPLOAD_MAX_FILES must be positive")
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		return errors.New("UPLOAD_ALLOWED_EXTENSIONS must not be empty")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return errors.New("UPLOAD_DIR is required for local storage")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}

	if c.Email.Enabled {
		if c.Email.AWSRegion == "" {
			return errors.New("SES_REGION is required when EMAIL_ENABLED=true")
		}
		if c.Email.FromAddress == "" || !strings.Contains(c.Email.FromAddress, "@") {
			return errors.New("SYSTEM_FROM_EMAIL must be a valid address when EMAIL_ENABLED=true")
		}
	}

	if c.Seed.Username == "" || c.Seed.Password == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must not be empty")
	}
	if c.Server.IsProduction() && c.Seed.Password == DefaultSeedPassword {
		return errors.New("ADMIN_PASSWORD must be changed from the default in production")
	}

	return nil
}

// validateSecretKey enforces minimum strength for the session signing key
func validateSecretKey(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}

	if len(secret) < minLength {
		return fmt.Errorf("SECRET_KEY must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	weakSecrets := []string{
		"secret", "test", "password", "12345", "changeme",
		"admin", "root", "default", "example",
		"dev-secret-key-change-in-production",
	}

	secretLower := strings.ToLower(secret)
	for _, weak := range weakSecrets {
		if secretLower == weak {
			return errors.New("SECRET_KEY cannot be a common weak value")
		}
	}

	return nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

func developmentOrigins() []string {
	return []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"http://localhost:8080",
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	}
}
