package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Approval   ApprovalConfig   `mapstructure:"approval"`
	Validation ValidationConfig `mapstructure:"validation"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logger     LoggerConfig     `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// ApprovalConfig holds approval chain configuration
type ApprovalConfig struct {
	// ThresholdCents is the amount at which a second approval level kicks in.
	ThresholdCents int64 `mapstructure:"threshold_cents"`
}

// ValidationConfig holds receipt validation configuration
type ValidationConfig struct {
	AmountTolerance  float64       `mapstructure:"amount_tolerance"`
	FuzzyVendor      bool          `mapstructure:"fuzzy_vendor"`
	VendorSimilarity float64       `mapstructure:"vendor_similarity"`
	DateCheck        bool          `mapstructure:"date_check"`
	DateGrace        time.Duration `mapstructure:"date_grace"`
}

// OpenAIConfig holds OpenAI API configuration. An empty API key disables the
// AI extraction tier; the regex fallback still runs.
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/procurement.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Approval defaults: second level above 1000.00
	viper.SetDefault("approval.threshold_cents", 100000)

	// Validation defaults
	viper.SetDefault("validation.amount_tolerance", 0.05)
	viper.SetDefault("validation.fuzzy_vendor", true)
	viper.SetDefault("validation.vendor_similarity", 0.8)
	viper.SetDefault("validation.date_check", true)
	viper.SetDefault("validation.date_grace", 24*time.Hour)

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.temperature", 0.1)
	viper.SetDefault("openai.max_tokens", 500)
	viper.SetDefault("openai.timeout", 60*time.Second)

	// Storage defaults
	viper.SetDefault("storage.base_dir", "data/documents")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("storage.base_dir", "STORAGE_BASE_DIR")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Approval.ThresholdCents <= 0 {
		return fmt.Errorf("approval.threshold_cents must be positive")
	}
	if c.Validation.AmountTolerance < 0 || c.Validation.AmountTolerance >= 1 {
		return fmt.Errorf("validation.amount_tolerance must be in [0, 1)")
	}
	if c.Validation.VendorSimilarity < 0 || c.Validation.VendorSimilarity > 1 {
		return fmt.Errorf("validation.vendor_similarity must be in [0, 1]")
	}
	return nil
}
