package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig
	GRPC      GRPCConfig
	Auth      AuthConfig
	Admin     AdminConfig
	Provision ProvisionConfig
	Log       LogConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address string // gRPC server listen address (e.g., ":50051")
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string        // JWT signing secret
	TokenTTL  time.Duration // lifetime of tokens issued at login
}

// AdminConfig is the account bootstrap creates when no "admin" user exists.
type AdminConfig struct {
	Username string
	Password string
	Email    string
}

// ProvisionConfig controls the "create new lab" flow.
type ProvisionConfig struct {
	Policy string // "strict" or "lenient"
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string
}

const (
	defaultDBPath       = "inventory.db"
	defaultGRPCAddress  = ":50051"
	defaultTTLMinutes   = 60
	devJWTSecret        = "dev-secret-change-me"
	defaultAdminUser    = "admin"
	defaultAdminPass    = "fer"
	defaultAdminEmail   = "fer.muzzo@gmail.com"
	defaultProvisioning = "strict"
	defaultLogLevel     = "info"
)

// Load loads configuration from environment variables with sensible defaults.
// A .env file in the working directory is read first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}
	// Validate critical settings
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load(devJWTSecret)
}

func load(fallbackSecret string) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	ttl, err := getEnvInt("TOKEN_TTL_MINUTES", defaultTTLMinutes)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL_MINUTES must be positive, got %d", ttl)
	}
	cfg := &Config{
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", defaultDBPath),
		},
		GRPC: GRPCConfig{
			Address: getEnv("GRPC_ADDRESS", defaultGRPCAddress),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", fallbackSecret),
			TokenTTL:  time.Duration(ttl) * time.Minute,
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", defaultAdminUser),
			Password: getEnv("ADMIN_PASSWORD", defaultAdminPass),
			Email:    getEnv("ADMIN_EMAIL", defaultAdminEmail),
		},
		Provision: ProvisionConfig{
			Policy: getEnv("PROVISION_POLICY", defaultProvisioning),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", defaultLogLevel),
		},
	}
	if cfg.Admin.Username == "" || cfg.Admin.Password == "" || cfg.Admin.Email == "" {
		return nil, errors.New("ADMIN_USERNAME, ADMIN_PASSWORD and ADMIN_EMAIL must not be empty")
	}
	return cfg, nil
}

// loadDotEnv reads .env without overriding variables that are already set.
func loadDotEnv() error {
	err := godotenv.Load()
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	return fmt.Sprintf("Config{DB: %s, gRPC: %s, Auth: *** (masked) ***, Admin: %s <%s>, Provision: %s, Log: %s}",
		c.Database.Path, c.GRPC.Address, c.Admin.Username, c.Admin.Email, c.Provision.Policy, c.Log.Level)
}
