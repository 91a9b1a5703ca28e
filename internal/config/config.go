package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultFile is read from the working directory when no file is given.
const DefaultFile = "drivemode.yaml"

const envPrefix = "DRIVEMODE"

type Config struct {
	LogLevel  string       `mapstructure:"log_level"`
	LogFormat string       `mapstructure:"log_format"`
	Server    ServerConfig `mapstructure:"server"`
	Gemini    GeminiConfig `mapstructure:"gemini"`
	Push      PushConfig   `mapstructure:"push"`
	Email     EmailConfig  `mapstructure:"email"`
	Outbox    OutboxConfig `mapstructure:"outbox"`
	Backup    BackupConfig `mapstructure:"backup"`
	Device    DeviceConfig `mapstructure:"device"`
}

type ServerConfig struct {
	Port    string   `mapstructure:"port"`
	DBPath  string   `mapstructure:"db_path"`
	BaseURL string   `mapstructure:"base_url"`
	CORS    []string `mapstructure:"cors"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type PushConfig struct {
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey string `mapstructure:"vapid_private_key"`
	Subscriber      string `mapstructure:"subscriber"`
}

type EmailConfig struct {
	PostmarkToken string `mapstructure:"postmark_token"`
	From          string `mapstructure:"from"`
	To            string `mapstructure:"to"`
}

type OutboxConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	BatchSize   int           `mapstructure:"batch_size"`
	// Delivered messages older than this are purged.
	Retention time.Duration `mapstructure:"retention"`
}

type BackupConfig struct {
	Endpoint      string        `mapstructure:"endpoint"`
	Bucket        string        `mapstructure:"bucket"`
	Region        string        `mapstructure:"region"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Passphrase    string        `mapstructure:"passphrase"`
	Interval      time.Duration `mapstructure:"interval"`
	RetentionDays int           `mapstructure:"retention_days"`
}

type DeviceConfig struct {
	DBPath      string        `mapstructure:"db_path"`
	BackendURL  string        `mapstructure:"backend_url"`
	BridgeAddr  string        `mapstructure:"bridge_addr"`
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.db_path", "drivemode.db")
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.cors", []string{"*"})

	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")

	v.SetDefault("push.vapid_public_key", "")
	v.SetDefault("push.vapid_private_key", "")
	v.SetDefault("push.subscriber", "")

	v.SetDefault("email.postmark_token", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", "")

	v.SetDefault("outbox.interval", 5*time.Second)
	v.SetDefault("outbox.max_attempts", 8)
	v.SetDefault("outbox.backoff_base", 2*time.Second)
	v.SetDefault("outbox.max_backoff", 10*time.Minute)
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.retention", 7*24*time.Hour)

	v.SetDefault("backup.endpoint", "")
	v.SetDefault("backup.bucket", "")
	v.SetDefault("backup.region", "us-east-1")
	v.SetDefault("backup.access_key", "")
	v.SetDefault("backup.secret_key", "")
	v.SetDefault("backup.passphrase", "")
	v.SetDefault("backup.interval", 24*time.Hour)
	v.SetDefault("backup.retention_days", 30)

	v.SetDefault("device.db_path", "drivemode-device.db")
	v.SetDefault("device.backend_url", "http://localhost:8080")
	v.SetDefault("device.bridge_addr", ":8090")
	v.SetDefault("device.http_timeout", 30*time.Second)
}

// Load reads configuration from defaults, the YAML file at path and
// DRIVEMODE_* environment variables, in increasing precedence. An empty path
// falls back to DefaultFile, which may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
