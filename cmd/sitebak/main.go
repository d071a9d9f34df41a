package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rowjay/sitebak/internal/app"
	"github.com/rowjay/sitebak/internal/archive"
	"github.com/rowjay/sitebak/internal/awsutil"
	"github.com/rowjay/sitebak/internal/backup"
	"github.com/rowjay/sitebak/internal/cdn"
	"github.com/rowjay/sitebak/internal/config"
	"github.com/rowjay/sitebak/internal/gitstate"
	"github.com/rowjay/sitebak/internal/logging"
	"github.com/rowjay/sitebak/internal/metrics"
	"github.com/rowjay/sitebak/internal/notify"
	"github.com/rowjay/sitebak/internal/storage"
	"github.com/rowjay/sitebak/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	Bucket         string
	DistributionID string
	Region         string
	Environment    string
	Storage        string
	LocalPath      string
	S3Endpoint     string
	S3UseSSL       string
	S3PathStyle    string
	MaxBackups     int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:          "sitebak",
		Short:        "Backup and rollback for a static site on S3 and CloudFront",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json or .enc)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.Bucket, "bucket", "", "Site bucket (default $S3_BUCKET_NAME)")
	rootCmd.PersistentFlags().StringVar(&overrides.DistributionID, "distribution-id", "", "CloudFront distribution id (default $CLOUDFRONT_DISTRIBUTION_ID)")
	rootCmd.PersistentFlags().StringVar(&overrides.Region, "region", "", "AWS region (default $AWS_REGION)")
	rootCmd.PersistentFlags().StringVar(&overrides.Environment, "environment", "", "Environment label recorded in backups")
	rootCmd.PersistentFlags().StringVar(&overrides.Storage, "storage", "", "Storage backend (s3, local)")
	rootCmd.PersistentFlags().StringVar(&overrides.LocalPath, "storage-path", "", "Local storage path")
	rootCmd.PersistentFlags().StringVar(&overrides.S3Endpoint, "s3-endpoint", "", "S3 endpoint (MinIO/OSS)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3UseSSL, "s3-ssl", "", "Use SSL for S3 endpoint (true/false)")
	rootCmd.PersistentFlags().StringVar(&overrides.S3PathStyle, "s3-path-style", "", "Force path-style S3 (true/false)")
	rootCmd.PersistentFlags().IntVar(&overrides.MaxBackups, "max-backups", 0, "Number of backups to retain")

	rootCmd.AddCommand(newBackupCmd(root, overrides))
	rootCmd.AddCommand(newListCmd(root, overrides))
	rootCmd.AddCommand(newRollbackCmd(root, overrides))
	rootCmd.AddCommand(newEmergencyCmd(root, overrides))
	rootCmd.AddCommand(newDeleteCmd(root, overrides))
	rootCmd.AddCommand(newVerifyCmd(root, overrides))
	rootCmd.AddCommand(newExportCmd(root, overrides))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newBackupCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [type]",
		Short: "Create a backup of the live site (type: manual, auto, pre-deploy, pre-rollback)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			typ := ""
			if len(args) == 1 {
				typ = args[0]
			}
			meta, err := svc.Backup(cmd.Context(), typ)
			if err != nil {
				return err
			}
			if meta == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "live site is empty, no backup created")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d files\t%s\n", meta.ID, meta.FileCount, humanize.Bytes(uint64(meta.TotalSize)))
			return nil
		},
	}
}

func newListCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			backups, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(backups)
			}
			return printBackups(cmd.OutOrStdout(), backups, time.Now())
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print backup metadata as JSON")
	return cmd
}

func newRollbackCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <backup-id>",
		Short: "Restore the live site to a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			meta, err := svc.Rollback(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s (%d files)\n", meta.ID, meta.FileCount)
			return nil
		},
	}
}

func newEmergencyCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "emergency",
		Short: "Roll back to the newest non pre-rollback backup with content",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			meta, err := svc.Emergency(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored %s (%s, %d files)\n", meta.ID, meta.Type, meta.FileCount)
			return nil
		},
	}
}

func newDeleteCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <backup-id>",
		Short: "Delete a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			n, err := svc.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (%d objects)\n", args[0], n)
			return nil
		},
	}
}

func newVerifyCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <backup-id>",
		Short: "Recompute and compare a backup's integrity fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			meta, err := svc.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: integrity ok (%d files, %s)\n", meta.ID, meta.FileCount, meta.Integrity)
			return nil
		},
	}
}

func newExportCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var output string
	var compression string
	var encrypt bool
	var verify bool

	cmd := &cobra.Command{
		Use:   "export <backup-id>",
		Short: "Write a backup to a local tar archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			opts := svc.ExportOptions()
			if compression != "" {
				opts.Compression = strings.ToLower(compression)
			}
			if encrypt {
				opts.Encrypt = true
			}
			if output == "" {
				output = archive.FileName(args[0], opts)
			}

			f, err := os.OpenFile(output, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
			if err != nil {
				return err
			}
			res, err := svc.Export(cmd.Context(), args[0], f, opts)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err == nil && verify {
				err = readBack(output, res, opts)
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d files\t%s -> %s\n", output, res.Files, humanize.Bytes(uint64(res.Bytes)), humanize.Bytes(uint64(res.Written)))
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "Archive path (default <backup-id>.tar[.gz|.zst][.enc])")
	cmd.Flags().StringVar(&compression, "compression", "", "Compression (none/gzip/zstd)")
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "Encrypt with export.encryption_key")
	cmd.Flags().BoolVar(&verify, "verify", false, "Read the archive back and check it against what was written")
	return cmd
}

func readBack(path string, want *archive.Result, opts archive.Options) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	got, err := archive.Inspect(f, opts)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if !got.Matches(want) {
		return fmt.Errorf("verify %s: archive holds %d files (%d bytes), exported %d files (%d bytes)",
			path, got.Files, got.Bytes, want.Files, want.Bytes)
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	var input string
	var output string
	var key string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Config utilities",
	}

	encrypt := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" || output == "" || key == "" {
				return fmt.Errorf("--input, --output, and --key are required")
			}
			return config.EncryptConfigFile(input, output, key)
		},
	}
	encrypt.Flags().StringVar(&input, "input", "", "Input config file")
	encrypt.Flags().StringVar(&output, "output", "", "Output encrypted config file")
	encrypt.Flags().StringVar(&key, "key", "", "Encryption key (base64 or hex)")

	cmd.AddCommand(encrypt)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

func printBackups(w io.Writer, backups []backup.Metadata, now time.Time) error {
	if len(backups) == 0 {
		_, err := fmt.Fprintln(w, "no backups")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tAGE\tFILES\tSIZE\tCOMMIT")
	for _, b := range backups {
		commit := "-"
		if b.Git != nil && b.Git.ShortCommit != "" {
			commit = b.Git.ShortCommit
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			b.ID, b.Type, humanize.RelTime(b.Timestamp, now, "ago", "from now"),
			b.FileCount, humanize.Bytes(uint64(b.TotalSize)), commit)
	}
	return tw.Flush()
}

func buildApp(root *rootFlags, overrides *overrideFlags) (*app.App, error) {
	cfg, err := loadConfig(root, overrides)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}

	var sess *session.Session
	if cfg.CDN.DistributionID != "" || len(cfg.Notifications.SNS) > 0 {
		sess, err = awsutil.NewSession(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("aws session: %w", err)
		}
	}

	var invalidator cdn.Invalidator
	if cfg.CDN.DistributionID != "" {
		invalidator = cdn.NewCloudFront(sess)
	}
	var git gitstate.Source
	if !cfg.Git.Disabled {
		git = gitstate.NewRepo(cfg.Git.Dir, cfg.Git.Timeout)
	}

	mgr := backup.New(store, invalidator, git, logger, backup.OptionsFromConfig(cfg))
	logger.Debug().Str("store", store.Location()).Str("environment", cfg.Global.Environment).Msg("configured")

	var notifier notify.Notifier
	if targets := notify.FromConfig(cfg.Notifications, sess); !targets.Empty() {
		notifier = targets
	}
	var recorder *metrics.Recorder
	if cfg.Metrics.PushgatewayURL != "" {
		recorder = metrics.New()
	}
	return app.New(cfg, mgr, logger, notifier, recorder), nil
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, root, overrides)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.Bucket != "" {
		cfg.Storage.Bucket = overrides.Bucket
	}
	if overrides.DistributionID != "" {
		cfg.CDN.DistributionID = overrides.DistributionID
	}
	if overrides.Region != "" {
		cfg.Storage.Region = overrides.Region
	}
	if overrides.Environment != "" {
		cfg.Global.Environment = overrides.Environment
	}
	if overrides.Storage != "" {
		cfg.Storage.Backend = overrides.Storage
	}
	if overrides.LocalPath != "" {
		cfg.Storage.Local.Path = overrides.LocalPath
	}
	if overrides.S3Endpoint != "" {
		cfg.Storage.S3.Endpoint = overrides.S3Endpoint
	}
	if overrides.S3UseSSL != "" {
		cfg.Storage.S3.UseSSL = strings.EqualFold(overrides.S3UseSSL, "true") || overrides.S3UseSSL == "1"
	}
	if overrides.S3PathStyle != "" {
		cfg.Storage.S3.ForcePathStyle = strings.EqualFold(overrides.S3PathStyle, "true") || overrides.S3PathStyle == "1"
	}
	if overrides.MaxBackups > 0 {
		cfg.Backup.MaxBackups = overrides.MaxBackups
	}

	cfg.Storage.Backend = strings.ToLower(cfg.Storage.Backend)
	cfg.Export.Compression = strings.ToLower(cfg.Export.Compression)
}

