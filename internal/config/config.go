package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	cfg *Config
	mu  sync.RWMutex
)

// Config represents the application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Ticket        TicketConfig        `mapstructure:"ticket"`
	Inbound       InboundConfig       `mapstructure:"inbound"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Maintenance   MaintenanceConfig   `mapstructure:"maintenance"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	Debug bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port address for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type TicketConfig struct {
	NumberPrefix    string `mapstructure:"number_prefix"`
	NumberGenerator string `mapstructure:"number_generator"`
	MinCounterSize  int    `mapstructure:"min_counter_size"`
	SubjectMaxLen   int    `mapstructure:"subject_max_len"`
}

type InboundConfig struct {
	ForwardSecret string `mapstructure:"forward_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type NotificationsConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	From        string   `mapstructure:"from"`
	AdminEmails []string `mapstructure:"admin_emails"`
	SMTP        struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		StartTLS bool   `mapstructure:"starttls"`
	} `mapstructure:"smtp"`
}

type MaintenanceConfig struct {
	RecountSchedule string `mapstructure:"recount_schedule"`
}

// Load reads configuration from the given yaml file, layering SERVDESK_*
// environment variables on top. A missing file is not an error; environment
// variables and defaults still apply.
func Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SERVDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && path != "" {
			// Tolerate a missing file; fail on a malformed one.
			if !strings.Contains(err.Error(), "no such file") {
				return fmt.Errorf("config: read %s: %w", path, err)
			}
		}
	}

	loaded := &Config{}
	if err := v.Unmarshal(loaded); err != nil {
		return fmt.Errorf("config: unmarshal: %w", err)
	}

	mu.Lock()
	cfg = loaded
	mu.Unlock()
	return nil
}

// Get returns the loaded configuration, or nil when Load has not run.
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Set replaces the loaded configuration. Intended for tests.
func Set(c *Config) {
	mu.Lock()
	cfg = c
	mu.Unlock()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "servdesk")
	v.SetDefault("app.env", "development")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "servdesk")
	v.SetDefault("database.user", "servdesk")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("ticket.number_prefix", "SD")
	v.SetDefault("ticket.number_generator", "sequential")
	v.SetDefault("ticket.min_counter_size", 5)
	v.SetDefault("ticket.subject_max_len", 255)
	v.SetDefault("notifications.enabled", false)
	v.SetDefault("maintenance.recount_schedule", "17 3 * * *")
}
