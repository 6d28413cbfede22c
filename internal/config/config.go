package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

// TelegramConfig enables booking notifications to a staff chat. An empty
// token keeps notifications in the log.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Debug    bool   `yaml:"debug"`
}

// GoogleConfig mirrors bookings into a spreadsheet. An empty spreadsheet id
// disables the sync.
type GoogleConfig struct {
	CredentialsFile       string `yaml:"credentials_file"`
	BookingsSpreadsheetID string `yaml:"bookings_spreadsheet_id"`
	BookingsSheetName     string `yaml:"bookings_sheet_name"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig configures the availability cache and the dispatcher queue.
// An empty address disables redis.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	// AvailabilityTTL is in seconds.
	AvailabilityTTL int `yaml:"availability_ttl"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type BookingConfig struct {
	SlotMinutes       int    `yaml:"slot_minutes"`
	SelectionStrategy string `yaml:"selection_strategy"`
	MaxAdvanceDays    int    `yaml:"max_advance_days"`
	// RewardsPointsPerBooking is used unless RewardsMinorPerPoint is set.
	RewardsPointsPerBooking int64 `yaml:"rewards_points_per_booking"`
	RewardsMinorPerPoint    int64 `yaml:"rewards_minor_per_point"`
}

type DispatcherConfig struct {
	PollInterval  time.Duration `yaml:"poll_interval"`
	BatchSize     int           `yaml:"batch_size"`
	MaxRetries    int           `yaml:"max_retries"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	BackoffFactor float64       `yaml:"backoff_factor"`
}

var selectionStrategies = map[string]bool{
	"first_free":   true,
	"round_robin":  true,
	"least_loaded": true,
}

func Load(configPath string) (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	slot := c.Booking.SlotMinutes
	if slot <= 0 {
		return fmt.Errorf("booking.slot_minutes must be positive, got %d", slot)
	}
	if 60%slot != 0 {
		return fmt.Errorf("booking.slot_minutes must divide 60, got %d", slot)
	}
	if !selectionStrategies[c.Booking.SelectionStrategy] {
		return fmt.Errorf("unknown booking.selection_strategy %q", c.Booking.SelectionStrategy)
	}
	if c.Booking.MaxAdvanceDays < 0 {
		return errors.New("booking.max_advance_days must not be negative")
	}

	if c.API.Auth.Enabled {
		for i, k := range c.API.Auth.APIKeys {
			if k.Key == "" {
				return fmt.Errorf("api.auth.api_keys[%d] has an empty key", i)
			}
		}
	}
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.bot_token is set")
	}
	if c.Google.BookingsSpreadsheetID != "" && c.Google.CredentialsFile == "" {
		return errors.New("google.credentials_file is required when google.bookings_spreadsheet_id is set")
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "salonbook"
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 8081
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = int(c.API.RateLimit.RPS) + 1
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Redis.AvailabilityTTL == 0 {
		c.Redis.AvailabilityTTL = 60
	}

	if c.Booking.SlotMinutes == 0 {
		c.Booking.SlotMinutes = 30
	}
	if c.Booking.SelectionStrategy == "" {
		c.Booking.SelectionStrategy = "first_free"
	}
	if c.Booking.MaxAdvanceDays == 0 {
		c.Booking.MaxAdvanceDays = 365
	}
	if c.Booking.RewardsPointsPerBooking == 0 && c.Booking.RewardsMinorPerPoint == 0 {
		c.Booking.RewardsPointsPerBooking = 10
	}

	if c.Dispatcher.PollInterval == 0 {
		c.Dispatcher.PollInterval = 2 * time.Second
	}
	if c.Dispatcher.BatchSize == 0 {
		c.Dispatcher.BatchSize = 20
	}
	if c.Dispatcher.MaxRetries == 0 {
		c.Dispatcher.MaxRetries = 5
	}
	if c.Dispatcher.InitialDelay == 0 {
		c.Dispatcher.InitialDelay = 2 * time.Second
	}
	if c.Dispatcher.MaxDelay == 0 {
		c.Dispatcher.MaxDelay = time.Minute
	}
	if c.Dispatcher.BackoffFactor == 0 {
		c.Dispatcher.BackoffFactor = 2
	}

	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
