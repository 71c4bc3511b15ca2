package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imgsync/imgsync/internal/config"
	"github.com/imgsync/imgsync/pkg/errors"
)

var rootCmd = &cobra.Command{
	Use:   "imgsync",
	Short: "Attach vendor product images to catalog items",
	Long: `Scans the catalog for items and variations without images, finds the matching
file in each vendor's image directory and uploads it, setting the item's
primary image and attaching variation images.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "config load failed")
		}
		return setupLogging(cfg.LogLevel, cfg.LogFormat)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("vendors-file", "vendors.yaml", "Vendor rule table (YAML)")
	flags.String("storage-backend", "local", "Image pool backend: local, s3 or drive")
	flags.String("images-root", "images", "Images root directory (local backend)")
	flags.String("s3-bucket", "", "S3 bucket holding vendor directories")
	flags.String("s3-prefix", "", "Key prefix inside the S3 bucket")
	flags.String("s3-region", "us-east-1", "S3 region")
	flags.String("drive-folder-id", "", "Google Drive folder holding vendor folders")
	flags.String("drive-credentials-file", "", "Google service account credentials file")
	flags.String("catalog-base-url", "https://connect.squareup.com", "Catalog API base URL")
	flags.String("ledger-path", ".artifacts/imgsync.db", "SQLite run ledger path (empty disables the ledger)")
	flags.String("fsm-db-path", ".artifacts/fsm", "FSM state directory (durable runner)")
	flags.Int64("max-image-size", 20*1024*1024, "Max size of a single image in bytes")
	flags.Int64("max-run-bytes", 0, "Max bytes uploaded per run (0 means unlimited)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "text", "Log format: text or json")

	for _, name := range []string{
		"vendors-file",
		"storage-backend",
		"images-root",
		"s3-bucket",
		"s3-prefix",
		"s3-region",
		"drive-folder-id",
		"drive-credentials-file",
		"catalog-base-url",
		"ledger-path",
		"fsm-db-path",
		"max-image-size",
		"max-run-bytes",
		"log-level",
		"log-format",
	} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}
