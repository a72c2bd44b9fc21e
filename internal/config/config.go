package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// ModeLocal runs the embedded directory backed by the local database.
	ModeLocal = "local"
	// ModeHosted delegates every directory capability to a remote service.
	ModeHosted = "hosted"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	Mode        string

	ListenAddr       string
	AuthCookieSecure bool

	DirectoryBaseURL string
	DirectoryAPIKey  string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	InviteURL    string

	OTLPEndpoint string

	Bootstrap BootstrapConfig
}

// BootstrapConfig seeds a first organization and admin for fresh local installs.
type BootstrapConfig struct {
	Enabled       bool
	OrgName       string
	AdminEmail    string
	AdminPassword string
}

// IsHosted reports whether the directory lives in a remote service.
func (c Config) IsHosted() bool {
	return strings.EqualFold(strings.TrimSpace(c.Mode), ModeHosted)
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")
	authCookieSecure := environment == "production"
	if !authCookieSecure {
		authCookieSecure = getenvBool("AUTH_COOKIE_SECURE", false)
	}

	return Config{
		AppName:     getenv("APP_SERVICE", "workdesk"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,
		Mode:        normalizeMode(getenv("DIRECTORY_MODE", ModeLocal)),

		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		AuthCookieSecure: authCookieSecure,

		DirectoryBaseURL: strings.TrimRight(strings.TrimSpace(getenv("DIRECTORY_BASE_URL", "")), "/"),
		DirectoryAPIKey:  strings.TrimSpace(getenv("DIRECTORY_API_KEY", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "workdesk"),
		DBUser:            getenv("DATABASE_USER", "workdesk"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
		RedisDB:       getenvInt("REDIS_DB", 0),

		SMTPHost:     getenv("SMTP_HOST", ""),
		SMTPPort:     getenvInt("SMTP_PORT", 587),
		SMTPUsername: getenv("SMTP_USERNAME", ""),
		SMTPPassword: getenv("SMTP_PASSWORD", ""),
		SMTPFrom:     getenv("SMTP_FROM", "no-reply@workdesk.local"),
		InviteURL:    getenv("INVITE_URL", "http://localhost:3000/workspace/workspace-selector"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		Bootstrap: BootstrapConfig{
			Enabled:       getenvBool("BOOTSTRAP_DEFAULT_ORG", false),
			OrgName:       getenv("BOOTSTRAP_ORG_NAME", "Main"),
			AdminEmail:    strings.TrimSpace(getenv("BOOTSTRAP_ADMIN_EMAIL", "admin@workdesk.local")),
			AdminPassword: getenv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
	}
}

func normalizeMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ModeHosted:
		return ModeHosted
	default:
		return ModeLocal
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
