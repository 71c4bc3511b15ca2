package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/imgsync/imgsync/pkg/catalog/api"
	"github.com/imgsync/imgsync/pkg/errors"
	appfsm "github.com/imgsync/imgsync/pkg/fsm"
	"github.com/imgsync/imgsync/pkg/imageprep"
	"github.com/imgsync/imgsync/pkg/reconcile"
	"github.com/imgsync/imgsync/pkg/security"
	"github.com/imgsync/imgsync/pkg/storage"
	"github.com/imgsync/imgsync/pkg/vendors"
)

var (
	syncDryRun  bool
	syncItemIDs []string
	syncFormat  string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Match and upload images for every catalog item that lacks them",
	Long: `Scans the catalog, matches each variation without an image against its
vendor's image directory and uploads the match. The first uploaded image of an
item becomes its primary image; later ones are attached to their variations.

With --dry-run nothing is uploaded and the report lists what would be.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	flags := syncCmd.Flags()
	flags.BoolVar(&syncDryRun, "dry-run", false, "Match only, do not modify the catalog")
	flags.StringSliceVar(&syncItemIDs, "item", nil, "Only process these item ids (repeatable)")
	flags.StringVar(&syncFormat, "format", "table", "Report format: table, markdown or json")
	flags.Int("concurrency", 1, "Items processed at once")
	flags.Int("threshold", 80, "Minimum fuzzy name score (1-100)")
	flags.Bool("durable", false, "Run uploads on the persistent state machine")
	flags.Int("fsm-max-retries", 5, "Transient retries per state in durable mode")
	flags.Int("retries", 1, "Retries after a transient catalog error")
	flags.Int("max-image-dimension", 2048, "Resize images larger than this on either side (0 disables)")
	flags.Int("jpeg-quality", 85, "JPEG quality of resized images")

	for _, name := range []string{"concurrency", "threshold", "durable", "fsm-max-retries", "retries", "max-image-dimension", "jpeg-quality"} {
		viper.BindPFlag(name, flags.Lookup(name))
	}
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	format, err := reconcile.ParseFormat(syncFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateCatalog(); err != nil {
		return errors.Wrap(err, "config invalid")
	}

	table, err := vendors.LoadFile(cfg.VendorsFile)
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return errors.Wrap(err, "image store failed")
	}

	client, err := api.NewClient(api.Config{
		BaseURL:         cfg.CatalogBaseURL,
		Token:           cfg.CatalogToken,
		APIVersion:      cfg.CatalogAPIVersion,
		VendorAttribute: cfg.VendorAttribute,
		Timeout:         cfg.RequestTimeout,
		Retries:         cfg.Retries,
		RetryWait:       cfg.RetryWait,
	})
	if err != nil {
		return errors.Wrap(err, "catalog client failed")
	}

	repo, err := openLedger(cfg)
	if err != nil {
		return err
	}
	var ledger appfsm.Ledger
	var coordOpts []reconcile.Option
	if repo != nil {
		defer repo.Close()
		ledger = repo
		coordOpts = append(coordOpts, reconcile.WithLedger(repo))
	}

	validator := security.NewValidator(cfg.MaxImageSize, cfg.MaxRunBytes)
	coordOpts = append(coordOpts, reconcile.WithValidator(validator))
	prep := imageprep.New(cfg.MaxImageDimension, cfg.JPEGQuality)

	machine := appfsm.NewMachine(client, store, validator, prep, ledger, cfg.FSMMaxRetries)
	var runner appfsm.Runner = appfsm.NewSequential(machine, cfg.Retries, cfg.RetryWait)
	if cfg.Durable && !syncDryRun {
		if err := ensureDirectories("", cfg.FSMDBPath); err != nil {
			return err
		}
		durable, err := appfsm.NewDurable(ctx, machine, cfg.FSMDBPath)
		if err != nil {
			return err
		}
		defer durable.Close()
		runner = durable
		slog.Info("durable_runner_enabled", "fsm_db_path", cfg.FSMDBPath)
	}

	coordinator := reconcile.NewCoordinator(client, table, store, runner, coordOpts...)
	run, runErr := coordinator.Run(ctx, reconcile.Options{
		DryRun:      syncDryRun,
		ItemIDs:     syncItemIDs,
		Concurrency: cfg.Concurrency,
		Threshold:   cfg.Threshold,
	})
	if run != nil {
		if err := reconcile.WriteRun(cmd.OutOrStdout(), run, format); err != nil {
			return errors.Wrap(err, "report failed")
		}
	}
	return runErr
}
