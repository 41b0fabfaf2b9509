package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/Comunsoft/n8ncisneros/internal/domain"
)

type Config struct {
	App      AppConfig       `mapstructure:"app"`
	Service  ServiceConfig   `mapstructure:"service"`
	Database *DatabaseConfig `mapstructure:"database"`
	Backup   BackupConfig    `mapstructure:"backup"`
	Update   UpdateConfig    `mapstructure:"update"`
	Schedule ScheduleConfig  `mapstructure:"schedule"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	LockFile string `mapstructure:"lock_file"`
}

// ServiceConfig declares the target container: image, ports, volumes and
// environment. It is the source of the generated compose file and .env.
type ServiceConfig struct {
	Name          string               `mapstructure:"name"`
	Image         string               `mapstructure:"image"`
	Tag           string               `mapstructure:"tag"`
	Domain        string               `mapstructure:"domain"`
	Ports         []domain.PortMapping `mapstructure:"ports"`
	Volumes       []domain.VolumeMount `mapstructure:"volumes"`
	Env           map[string]string    `mapstructure:"env"`
	RestartPolicy string               `mapstructure:"restart_policy"`
	ComposeFile   string               `mapstructure:"compose_file"`
	EnvFile       string               `mapstructure:"env_file"`
}

type DatabaseConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Enabled  bool   `mapstructure:"enabled"`
}

type BackupConfig struct {
	LocalPath     string         `mapstructure:"local_path"`
	RetentionDays int            `mapstructure:"retention_days"`
	UploadTargets []UploadTarget `mapstructure:"upload_targets"`
}

// UpdateConfig tunes the stop/replace/start cycle and its verification.
type UpdateConfig struct {
	StopTimeoutSeconds int  `mapstructure:"stop_timeout_seconds"`
	VerifyRetries      int  `mapstructure:"verify_retries"`
	VerifyIntervalSecs int  `mapstructure:"verify_interval_seconds"`
	AllowBackupFailure bool `mapstructure:"allow_backup_failure"`
}

type ScheduleConfig struct {
	BackupSpec string `mapstructure:"backup"`
	UpdateSpec string `mapstructure:"update"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Telegram
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	SendFile   bool   `mapstructure:"send_file"`
	NotifyOnly bool   `mapstructure:"notify_only"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "n8nctl")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.lock_file", "/var/run/n8nctl.lock")
	v.SetDefault("service.name", "n8n")
	v.SetDefault("service.image", "n8nio/n8n")
	v.SetDefault("service.tag", "latest")
	v.SetDefault("service.restart_policy", "unless-stopped")
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("update.stop_timeout_seconds", 30)
	v.SetDefault("update.verify_retries", 12)
	v.SetDefault("update.verify_interval_seconds", 5)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("service.name is required")
	}
	if c.Service.Image == "" {
		return fmt.Errorf("service.image is required")
	}
	if len(c.Service.Volumes) == 0 {
		return fmt.Errorf("service.volumes: at least one volume is required for persistent data")
	}
	for i, p := range c.Service.Ports {
		if p.HostPort <= 0 || p.ContainerPort <= 0 {
			return fmt.Errorf("service.ports[%d]: host and container ports must be positive", i)
		}
	}
	if c.Backup.LocalPath == "" {
		return fmt.Errorf("backup.local_path is required")
	}
	if c.Backup.RetentionDays < 0 {
		return fmt.Errorf("backup.retention_days must not be negative")
	}
	if c.Database != nil && c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when database is enabled")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required when database is enabled")
		}
	}
	return nil
}

// Desired builds the declarative target state from the service section. A
// configured domain feeds the host and webhook environment unless those keys
// are set explicitly.
func (c *Config) Desired() domain.DesiredConfig {
	env := make(map[string]string, len(c.Service.Env)+2)
	for k, v := range c.Service.Env {
		env[k] = v
	}
	if c.Service.Domain != "" {
		if _, ok := env["N8N_HOST"]; !ok {
			env["N8N_HOST"] = c.Service.Domain
		}
		if _, ok := env["WEBHOOK_URL"]; !ok {
			env["WEBHOOK_URL"] = "https://" + c.Service.Domain + "/"
		}
	}

	return domain.DesiredConfig{
		Name:          c.Service.Name,
		Image:         c.Service.Image,
		Tag:           c.Service.Tag,
		Domain:        c.Service.Domain,
		Ports:         c.Service.Ports,
		Volumes:       c.Service.Volumes,
		Env:           env,
		RestartPolicy: c.Service.RestartPolicy,
	}
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Backup.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
