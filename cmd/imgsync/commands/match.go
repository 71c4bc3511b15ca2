package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgsync/imgsync/pkg/errors"
	"github.com/imgsync/imgsync/pkg/match"
	"github.com/imgsync/imgsync/pkg/security"
	"github.com/imgsync/imgsync/pkg/storage"
	"github.com/imgsync/imgsync/pkg/vendors"
)

var (
	matchVendor    string
	matchName      string
	matchSKU       string
	matchVendorSKU string
	matchThreshold int
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Show which image file a product would be matched to",
	RunE:  runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().StringVar(&matchVendor, "vendor", "", "Vendor name")
	matchCmd.Flags().StringVar(&matchName, "name", "", "Item name")
	matchCmd.Flags().StringVar(&matchSKU, "sku", "", "Catalog SKU")
	matchCmd.Flags().StringVar(&matchVendorSKU, "vendor-sku", "", "Vendor SKU")
	matchCmd.Flags().IntVar(&matchThreshold, "threshold", match.DefaultThreshold, "Minimum fuzzy name score (1-100)")
	matchCmd.MarkFlagRequired("vendor")
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := vendors.LoadFile(cfg.VendorsFile)
	if err != nil {
		return err
	}
	res, err := table.Resolve(matchVendor)
	if err != nil {
		return err
	}
	if err := security.NewValidator(0, 0).ValidateDirectory(res.Directory); err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return errors.Wrap(err, "image store failed")
	}
	files, err := store.List(ctx, res.Directory)
	if err != nil {
		return errors.Wrap(err, "failed to list image directory")
	}

	result := match.New(match.WithThreshold(matchThreshold)).Match(match.Query{
		ItemName:   matchName,
		SKU:        matchSKU,
		VendorSKU:  matchVendorSKU,
		StripCodes: res.StripCodes,
	}, files)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "directory:  %s (%d images)\n", res.Directory, len(files))
	fmt.Fprintf(out, "tier:       %s\n", result.Tier)
	fmt.Fprintf(out, "score:      %d\n", result.Score)
	if result.Matched() {
		fmt.Fprintf(out, "file:       %s\n", result.File)
	} else {
		fmt.Fprintln(out, "file:       -")
	}
	return nil
}
