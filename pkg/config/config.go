package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Engine   EngineConfig   `mapstructure:"engine"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

// EngineConfig carries the decay policy and classifier call discipline.
// One decay/boost pair for every submission channel.
type EngineConfig struct {
	DecayFactor            float64 `mapstructure:"decay_factor"`
	BoostFactor            float64 `mapstructure:"boost_factor"`
	DecayMode              string  `mapstructure:"decay_mode"` // "event" or "elapsed"
	ClassifyTimeoutSeconds int     `mapstructure:"classify_timeout_seconds"`
	ClassifyRetries        int     `mapstructure:"classify_retries"`
	ClassifyBackoffMillis  int     `mapstructure:"classify_backoff_millis"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type NotifyConfig struct {
	WebhookURL            string `mapstructure:"webhook_url"`
	WebhookTimeoutSeconds int    `mapstructure:"webhook_timeout_seconds"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("server.port", 8080)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("engine.decay_factor", 0.95)
	v.SetDefault("engine.boost_factor", 0.10)
	v.SetDefault("engine.decay_mode", "event")
	v.SetDefault("engine.classify_timeout_seconds", 15)
	v.SetDefault("engine.classify_retries", 2)
	v.SetDefault("engine.classify_backoff_millis", 500)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 600)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("notify.webhook_timeout_seconds", 5)

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Database = dbConfig
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}

func validate(c *Config) error {
	if c.Engine.DecayFactor <= 0 || c.Engine.DecayFactor > 1 {
		return fmt.Errorf("engine.decay_factor must be in (0, 1], got %v", c.Engine.DecayFactor)
	}
	if c.Engine.BoostFactor < 0 || c.Engine.BoostFactor > 1 {
		return fmt.Errorf("engine.boost_factor must be in [0, 1], got %v", c.Engine.BoostFactor)
	}
	if c.Engine.DecayMode != "event" && c.Engine.DecayMode != "elapsed" {
		return fmt.Errorf("engine.decay_mode must be \"event\" or \"elapsed\", got %q", c.Engine.DecayMode)
	}
	return nil
}
