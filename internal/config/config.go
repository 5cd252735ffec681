package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Discord   DiscordConfig   `yaml:"discord"`
	OAuth     OAuthConfig     `yaml:"oauth"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`
	Queue     QueueConfig     `yaml:"queue"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains the HTTP callback server settings
type ServerConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	BaseURL string `yaml:"base_url"`
}

// DiscordConfig contains bot and OAuth2 application credentials
type DiscordConfig struct {
	BotToken     string   `yaml:"bot_token"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURI  string   `yaml:"redirect_uri"`
	APIBaseURL   string   `yaml:"api_base_url"`
	Scopes       []string `yaml:"scopes"`
}

// OAuthConfig controls how the callback state parameter is encoded
type OAuthConfig struct {
	StateSecret     string `yaml:"state_secret"` // empty: state is the plain guild id
	StateTTLMinutes int    `yaml:"state_ttl_minutes"`
}

// StorageConfig selects the guild configuration and audit backend
type StorageConfig struct {
	Type       string `yaml:"type"`        // "file" or "postgres"
	ConfigPath string `yaml:"config_path"` // file storage only
	AuditPath  string `yaml:"audit_path"`  // file storage only
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode"`
}

// QueueConfig selects the verification queue backend
type QueueConfig struct {
	Type     string `yaml:"type"` // "memory" or "redis"
	RedisURL string `yaml:"redis_url"`
	Key      string `yaml:"key"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	VerificationDrain string `yaml:"verification_drain"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
	QueueMemory     = "memory"
	QueueRedis      = "redis"
)

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies environment overrides and validates
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Discord application
	if val := os.Getenv("BOT_TOKEN"); val != "" {
		c.Discord.BotToken = val
	}
	if val := os.Getenv("CLIENT_ID"); val != "" {
		c.Discord.ClientID = val
	}
	if val := os.Getenv("CLIENT_SECRET"); val != "" {
		c.Discord.ClientSecret = val
	}
	if val := os.Getenv("REDIRECT_URI"); val != "" {
		c.Discord.RedirectURI = val
	}
	if val := os.Getenv("OAUTH_STATE_SECRET"); val != "" {
		c.OAuth.StateSecret = val
	}

	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	// Backends
	if val := os.Getenv("STORAGE_TYPE"); val != "" {
		c.Storage.Type = val
	}
	if val := os.Getenv("QUEUE_TYPE"); val != "" {
		c.Queue.Type = val
	}
	if val := os.Getenv("REDIS_URL"); val != "" {
		c.Queue.RedisURL = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

// Validate fills defaults and checks that the configuration is usable
func (c *Config) Validate() error {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Discord validation
	if c.Discord.BotToken == "" {
		return fmt.Errorf("discord bot token is required")
	}
	if c.Discord.ClientID == "" {
		return fmt.Errorf("discord client id is required")
	}
	if c.Discord.ClientSecret == "" {
		return fmt.Errorf("discord client secret is required")
	}
	if c.Discord.RedirectURI == "" {
		return fmt.Errorf("discord redirect uri is required")
	}
	if c.Discord.APIBaseURL == "" {
		c.Discord.APIBaseURL = "https://discord.com/api"
	}
	if len(c.Discord.Scopes) == 0 {
		c.Discord.Scopes = []string{"identify", "guilds"}
	}

	// OAuth state
	if c.OAuth.StateSecret != "" && len(c.OAuth.StateSecret) < 32 {
		return fmt.Errorf("oauth state secret must be at least 32 characters")
	}
	if c.OAuth.StateTTLMinutes == 0 {
		c.OAuth.StateTTLMinutes = 30
	}

	// Storage validation
	switch c.Storage.Type {
	case "":
		c.Storage.Type = StorageFile
		fallthrough
	case StorageFile:
		if c.Storage.ConfigPath == "" {
			c.Storage.ConfigPath = "server_configs.json"
		}
		if c.Storage.AuditPath == "" {
			c.Storage.AuditPath = "user_verification_data.json"
		}
	case StoragePostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	// Queue validation
	switch c.Queue.Type {
	case "":
		c.Queue.Type = QueueMemory
	case QueueMemory:
	case QueueRedis:
		if c.Queue.RedisURL == "" {
			return fmt.Errorf("redis url is required for redis queue")
		}
	default:
		return fmt.Errorf("unsupported queue type: %s", c.Queue.Type)
	}
	if c.Queue.Key == "" {
		c.Queue.Key = "guildgate:verification"
	}

	// Scheduler defaults
	if c.Scheduler.VerificationDrain == "" {
		c.Scheduler.VerificationDrain = "@every 1s"
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// StateTTL returns how long a signed state token stays valid
func (c *Config) StateTTL() time.Duration {
	return time.Duration(c.OAuth.StateTTLMinutes) * time.Minute
}
