package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgsync/imgsync/pkg/vendors"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <vendor-or-variation-name>",
	Short: "Show the vendor and image directory a name resolves to",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := vendors.LoadFile(cfg.VendorsFile)
	if err != nil {
		return err
	}

	// A variation name with a known prefix resolves to its vendor; anything
	// else is taken as the vendor name itself.
	vendor := table.Identify(args[0], args[0])

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "vendor:      %s\n", vendor)
	res, err := table.Resolve(vendor)
	if err != nil {
		fmt.Fprintln(out, "directory:   -")
		return err
	}
	fmt.Fprintf(out, "directory:   %s\n", res.Directory)
	fmt.Fprintf(out, "strip codes: %t\n", res.StripCodes)
	return nil
}
