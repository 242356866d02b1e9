package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func init() {
	// Auto-load .env file if present (don't override existing env vars)
	loadDotEnv(".env")
}

func loadDotEnv(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		// Remove surrounding quotes
		if len(val) >= 2 && ((val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'')) {
			val = val[1 : len(val)-1]
		}
		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

const (
	MediaDriverLocal = "local"
	MediaDriverS3    = "s3"

	// Minimum character budget: the page marker alone reserves 9 characters.
	minMaxChars = 10
)

const (
	defaultPort               = "4300"
	defaultEnvironment        = "development"
	defaultLogLevel           = "info"
	defaultMaxChars           = 500
	defaultMapServiceURL      = "https://osm.org"
	defaultRetentionBatchSize = 100
	defaultMediaDriver        = MediaDriverLocal
	defaultMediaDir           = "./data/media"
	defaultS3Bucket           = "postport-media"
	defaultMigrationsDir      = "migrations"
)

type MediaConfig struct {
	Driver      string
	LocalDir    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3UseSSL    bool
}

type Config struct {
	Port               string
	DatabaseURL        string
	Environment        string
	LogLevel           string
	MaxChars           int
	MapServiceURL      string
	RetentionBatchSize int
	CORSOrigins        []string
	AutoMigrate        bool
	MigrationsDir      string
	Media              MediaConfig
}

func Load() (Config, error) {
	cfg := Config{
		Port:        firstNonEmpty(strings.TrimSpace(os.Getenv("PORT")), defaultPort),
		DatabaseURL: DatabaseURL(),
		Environment: resolveEnvironment(),
		LogLevel: strings.ToLower(firstNonEmpty(
			strings.TrimSpace(os.Getenv("POSTPORT_LOG_LEVEL")),
			defaultLogLevel,
		)),
		MapServiceURL: strings.TrimRight(firstNonEmpty(
			strings.TrimSpace(os.Getenv("POSTPORT_MAP_SERVICE_URL")),
			defaultMapServiceURL,
		), "/"),
		CORSOrigins: parseList(os.Getenv("POSTPORT_CORS_ORIGINS")),
		MigrationsDir: firstNonEmpty(
			strings.TrimSpace(os.Getenv("POSTPORT_MIGRATIONS_DIR")),
			defaultMigrationsDir,
		),
		Media: MediaConfig{
			Driver: strings.ToLower(firstNonEmpty(
				strings.TrimSpace(os.Getenv("POSTPORT_MEDIA_DRIVER")),
				defaultMediaDriver,
			)),
			LocalDir: firstNonEmpty(
				strings.TrimSpace(os.Getenv("POSTPORT_MEDIA_DIR")),
				defaultMediaDir,
			),
			S3Endpoint:  strings.TrimSpace(os.Getenv("S3_ENDPOINT")),
			S3AccessKey: strings.TrimSpace(os.Getenv("S3_ACCESS_KEY")),
			S3SecretKey: strings.TrimSpace(os.Getenv("S3_SECRET_KEY")),
			S3Bucket: firstNonEmpty(
				strings.TrimSpace(os.Getenv("S3_BUCKET")),
				defaultS3Bucket,
			),
		},
	}

	maxChars, err := parseInt("POSTPORT_MAX_CHARS", defaultMaxChars)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxChars = maxChars

	batchSize, err := parseInt("POSTPORT_RETENTION_BATCH_SIZE", defaultRetentionBatchSize)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionBatchSize = batchSize

	useSSL, err := parseBool("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.Media.S3UseSSL = useSSL

	autoMigrate, err := parseBool("POSTPORT_AUTO_MIGRATE", false)
	if err != nil {
		return Config{}, err
	}
	cfg.AutoMigrate = autoMigrate

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// DatabaseURL reads the connection string alone, for tools that need nothing
// else from the environment.
func DatabaseURL() string {
	return strings.TrimSpace(os.Getenv("DATABASE_URL"))
}

func (c Config) Validate() error {
	if c.MaxChars < minMaxChars {
		return fmt.Errorf("POSTPORT_MAX_CHARS must be at least %d", minMaxChars)
	}
	if c.RetentionBatchSize <= 0 {
		return fmt.Errorf("POSTPORT_RETENTION_BATCH_SIZE must be greater than zero")
	}
	if c.AutoMigrate && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when POSTPORT_AUTO_MIGRATE is enabled")
	}
	if c.MapServiceURL == "" {
		return fmt.Errorf("POSTPORT_MAP_SERVICE_URL must not be empty")
	}

	switch c.Media.Driver {
	case MediaDriverLocal:
		if c.Media.LocalDir == "" {
			return fmt.Errorf("POSTPORT_MEDIA_DIR must not be empty when the local media driver is used")
		}
	case MediaDriverS3:
		if c.Media.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required when the s3 media driver is used")
		}
		if c.Media.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET must not be empty when the s3 media driver is used")
		}
		if isNonDevelopment(c.Environment) && (c.Media.S3AccessKey == "" || c.Media.S3SecretKey == "") {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required in non-development environments")
		}
	default:
		return fmt.Errorf("POSTPORT_MEDIA_DRIVER must be %q or %q", MediaDriverLocal, MediaDriverS3)
	}

	return nil
}

func resolveEnvironment() string {
	return strings.ToLower(firstNonEmpty(
		strings.TrimSpace(os.Getenv("POSTPORT_ENV")),
		strings.TrimSpace(os.Getenv("APP_ENV")),
		strings.TrimSpace(os.Getenv("ENVIRONMENT")),
		defaultEnvironment,
	))
}

func isNonDevelopment(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "dev", "development", "local", "test":
		return false
	default:
		return true
	}
}

func parseBool(name string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue, nil
	}

	switch strings.ToLower(raw) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s must be a boolean value", name)
	}
}

func parseInt(name string, defaultValue int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", name, err)
	}
	return parsed, nil
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
