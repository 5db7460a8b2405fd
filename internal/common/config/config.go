// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App          AppConfig         `mapstructure:"app"`
	API          APIConfig         `mapstructure:"api"`
	Geocode      GeocodeConfig     `mapstructure:"geocode"`
	Cache        CacheConfig       `mapstructure:"cache"`
	Persistence  PersistenceConfig `mapstructure:"persistence"`
	Database     DatabaseConfig    `mapstructure:"database"`
	Integrations IntegrationConfig `mapstructure:"integrations"`
	HTTP         HTTPConfig        `mapstructure:"http"`
	Logging      LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIConfig points at the remote recommendation/pricing/image service.
type APIConfig struct {
	BaseURL         string   `mapstructure:"base_url"`
	SubmitTimeout   int      `mapstructure:"submit_timeout"` // milliseconds
	ImageTimeout    int      `mapstructure:"image_timeout"`  // milliseconds
	ImageHostsAllow []string `mapstructure:"image_hosts_allow"`
}

type GeocodeConfig struct {
	BaseURL    string  `mapstructure:"base_url"`
	UserAgent  string  `mapstructure:"user_agent"`
	RatePerSec float64 `mapstructure:"rate_per_sec"`
	Debounce   int     `mapstructure:"debounce"` // milliseconds
	Timeout    int     `mapstructure:"timeout"`  // milliseconds
}

type CacheConfig struct {
	Freshness  int `mapstructure:"freshness"` // milliseconds
	Capacity   int `mapstructure:"capacity"`
	MaxRetries int `mapstructure:"max_retries"`
	BaseDelay  int `mapstructure:"base_delay"` // milliseconds
	MaxDelay   int `mapstructure:"max_delay"`  // milliseconds
}

// PersistenceConfig selects where the last submission result survives a restart.
type PersistenceConfig struct {
	Driver  string `mapstructure:"driver"` // redis | file | memory
	Key     string `mapstructure:"key"`
	FileDir string `mapstructure:"file_dir"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Index     string   `mapstructure:"index"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IntegrationConfig holds settings for report sharing over AWS.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
	ShareBaseURL string `mapstructure:"share_base_url"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
