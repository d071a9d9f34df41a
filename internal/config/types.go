package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global        GlobalConfig        `mapstructure:"global"`
	Storage       StorageConfig       `mapstructure:"storage"`
	CDN           CDNConfig           `mapstructure:"cdn"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Export        ExportConfig        `mapstructure:"export"`
	Git           GitConfig           `mapstructure:"git"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	LockFile         string        `mapstructure:"lock_file"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	ConfigPassphrase string        `mapstructure:"config_passphrase"` // optional; may come from env
	Environment      string        `mapstructure:"environment"`
}

type StorageConfig struct {
	Backend     string     `mapstructure:"backend"` // s3, local
	Bucket      string     `mapstructure:"bucket"`
	Region      string     `mapstructure:"region"`
	MetadataKey string     `mapstructure:"metadata_key"`
	S3          S3Store    `mapstructure:"s3"`
	Local       LocalStore `mapstructure:"local"`
}

type LocalStore struct {
	Path string `mapstructure:"path"`
}

type S3Store struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	SessionToken    string `mapstructure:"session_token"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

type CDNConfig struct {
	DistributionID string   `mapstructure:"distribution_id"`
	Paths          []string `mapstructure:"paths"`
}

type BackupConfig struct {
	Prefix          string `mapstructure:"prefix"`
	MaxBackups      int    `mapstructure:"max_backups"`
	DeleteBatchSize int    `mapstructure:"delete_batch_size"`
	DefaultType     string `mapstructure:"default_type"`
}

type ExportConfig struct {
	Compression   string `mapstructure:"compression"` // none, gzip, zstd
	Encryption    bool   `mapstructure:"encryption"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

type GitConfig struct {
	Disabled bool          `mapstructure:"disabled"`
	Dir      string        `mapstructure:"dir"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type NotificationsConfig struct {
	RetryCount   int              `mapstructure:"retry_count"`
	RetryBackoff time.Duration    `mapstructure:"retry_backoff"`
	Webhooks     []WebhookConfig  `mapstructure:"webhooks"`
	Mattermost   []MattermostHook `mapstructure:"mattermost"`
	Matrix       []MatrixConfig   `mapstructure:"matrix"`
	SNS          []SNSConfig      `mapstructure:"sns"`
}

type WebhookConfig struct {
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

type MattermostHook struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type MatrixConfig struct {
	Name        string `mapstructure:"name"`
	ServerURL   string `mapstructure:"server_url"`
	AccessToken string `mapstructure:"access_token"`
	RoomID      string `mapstructure:"room_id"`
}

type SNSConfig struct {
	Name     string `mapstructure:"name"`
	TopicARN string `mapstructure:"topic_arn"`
}

type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}
