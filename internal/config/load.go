package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rowjay/sitebak/internal/cryptoutil"
)

const (
	envPrefix = "SITEBAK"
)

// ErrMissingBucket is returned by Validate when no bucket is configured for the s3 backend.
var ErrMissingBucket = errors.New("configuration error: bucket name is required (set S3_BUCKET_NAME or storage.bucket)")

// legacyEnv maps config keys to the variables used by the site's deploy scripts.
var legacyEnv = map[string][]string{
	"storage.bucket":           {"S3_BUCKET_NAME"},
	"storage.region":           {"AWS_REGION", "AWS_DEFAULT_REGION"},
	"storage.s3.access_key":    {"AWS_ACCESS_KEY_ID"},
	"storage.s3.secret_key":    {"AWS_SECRET_ACCESS_KEY"},
	"storage.s3.session_token": {"AWS_SESSION_TOKEN"},
	"cdn.distribution_id":      {"CLOUDFRONT_DISTRIBUTION_ID"},
	"global.environment":       {"ENVIRONMENT"},
}

// Load reads configuration from a file (optionally encrypted), env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)
	if err := bindLegacyEnv(vp); err != nil {
		return nil, err
	}

	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if resolved != "" {
		data, readErr := os.ReadFile(resolved)
		if readErr != nil {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
		if isEncryptedPath(resolved) || cryptoutil.IsSealed(data) {
			vp.SetConfigType(configTypeFromPath(resolved))
			key := os.Getenv("SITEBAK_CONFIG_KEY")
			if key == "" {
				key = vp.GetString("global.config_passphrase")
			}
			if key == "" {
				return nil, errors.New("config file is encrypted but SITEBAK_CONFIG_KEY is not set")
			}
			plain, decErr := decryptConfig(data, key)
			if decErr != nil {
				return nil, fmt.Errorf("decrypt config: %w", decErr)
			}
			if err := vp.ReadConfig(bytes.NewReader(plain)); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		} else {
			vp.SetConfigFile(resolved)
			if err := vp.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

// Validate checks the settings every store-backed command needs.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "s3":
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			return ErrMissingBucket
		}
	case "local":
		if c.Storage.Local.Path == "" {
			return errors.New("configuration error: storage.local.path is required for the local backend")
		}
	default:
		return fmt.Errorf("configuration error: unsupported storage backend: %s", c.Storage.Backend)
	}
	if c.Backup.MaxBackups < 1 {
		return fmt.Errorf("configuration error: backup.max_backups must be at least 1, got %d", c.Backup.MaxBackups)
	}
	if !strings.HasSuffix(c.Backup.Prefix, "/") {
		return fmt.Errorf("configuration error: backup.prefix must end with '/', got %q", c.Backup.Prefix)
	}
	return nil
}

func bindLegacyEnv(vp *viper.Viper) error {
	for key, names := range legacyEnv {
		args := append([]string{key, envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := vp.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	if envPath := os.Getenv("SITEBAK_CONFIG"); envPath != "" {
		return envPath, nil
	}

	candidates := []string{
		"sitebak.yaml",
		"sitebak.yml",
		"sitebak.toml",
		"sitebak.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "sitebak")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		for _, c := range []string{"sitebak.yaml.enc", "sitebak.yml.enc", "sitebak.toml.enc"} {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
	}

	return "", nil
}

func isEncryptedPath(path string) bool {
	return strings.HasSuffix(path, ".enc") || strings.HasSuffix(path, ".encrypted")
}

func configTypeFromPath(path string) string {
	switch {
	case strings.HasSuffix(path, ".toml") || strings.HasSuffix(path, ".toml.enc") || strings.HasSuffix(path, ".toml.encrypted"):
		return "toml"
	case strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".json.enc") || strings.HasSuffix(path, ".json.encrypted"):
		return "json"
	default:
		return "yaml"
	}
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "console")
	vp.SetDefault("global.operation_timeout", "1h")
	vp.SetDefault("global.environment", "production")
	vp.SetDefault("global.lock_file", "")
	vp.SetDefault("storage.backend", "s3")
	vp.SetDefault("storage.region", "us-east-1")
	vp.SetDefault("storage.metadata_key", "deployment-metadata.json")
	vp.SetDefault("storage.local.path", "")
	vp.SetDefault("storage.s3.endpoint", "s3.amazonaws.com")
	vp.SetDefault("storage.s3.use_ssl", true)
	vp.SetDefault("cdn.paths", []string{"/*"})
	vp.SetDefault("backup.prefix", "backups/")
	vp.SetDefault("backup.max_backups", 10)
	vp.SetDefault("backup.delete_batch_size", 100)
	vp.SetDefault("backup.default_type", "manual")
	vp.SetDefault("export.compression", "zstd")
	vp.SetDefault("export.encryption_key", "")
	vp.SetDefault("git.disabled", false)
	vp.SetDefault("git.dir", "")
	vp.SetDefault("git.timeout", "5s")
	vp.SetDefault("notifications.retry_count", 2)
	vp.SetDefault("notifications.retry_backoff", "2s")
	vp.SetDefault("metrics.pushgateway_url", "")
	vp.SetDefault("metrics.job", "sitebak")
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = time.Hour
	}
	if cfg.Backup.DeleteBatchSize <= 0 {
		cfg.Backup.DeleteBatchSize = 100
	}
	if cfg.Backup.DefaultType == "" {
		cfg.Backup.DefaultType = "manual"
	}
	if cfg.Git.Timeout == 0 {
		cfg.Git.Timeout = 5 * time.Second
	}
	if len(cfg.CDN.Paths) == 0 {
		cfg.CDN.Paths = []string{"/*"}
	}
	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Export.Compression = strings.ToLower(cfg.Export.Compression)
}

func expandEnv(cfg *Config) {
	cfg.Storage.S3.AccessKey = os.ExpandEnv(cfg.Storage.S3.AccessKey)
	cfg.Storage.S3.SecretKey = os.ExpandEnv(cfg.Storage.S3.SecretKey)
	cfg.Storage.S3.SessionToken = os.ExpandEnv(cfg.Storage.S3.SessionToken)
	cfg.Export.EncryptionKey = os.ExpandEnv(cfg.Export.EncryptionKey)
	cfg.Notifications = expandNotificationEnv(cfg.Notifications)
}

func expandNotificationEnv(cfg NotificationsConfig) NotificationsConfig {
	for i := range cfg.Webhooks {
		cfg.Webhooks[i].URL = os.ExpandEnv(cfg.Webhooks[i].URL)
	}
	for i := range cfg.Mattermost {
		cfg.Mattermost[i].URL = os.ExpandEnv(cfg.Mattermost[i].URL)
	}
	for i := range cfg.Matrix {
		cfg.Matrix[i].ServerURL = os.ExpandEnv(cfg.Matrix[i].ServerURL)
		cfg.Matrix[i].AccessToken = os.ExpandEnv(cfg.Matrix[i].AccessToken)
		cfg.Matrix[i].RoomID = os.ExpandEnv(cfg.Matrix[i].RoomID)
	}
	for i := range cfg.SNS {
		cfg.SNS[i].TopicARN = os.ExpandEnv(cfg.SNS[i].TopicARN)
	}
	return cfg
}

func decryptConfig(sealed []byte, key string) ([]byte, error) {
	parsed, err := cryptoutil.Key(cryptoutil.ConfigKeySetting, key)
	if err != nil {
		return nil, err
	}
	return cryptoutil.OpenConfig(sealed, parsed)
}
