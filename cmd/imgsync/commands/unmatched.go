package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imgsync/imgsync/pkg/db"
	"github.com/imgsync/imgsync/pkg/errors"
	"github.com/imgsync/imgsync/pkg/reconcile"
)

var unmatchedFormat string

var unmatchedCmd = &cobra.Command{
	Use:   "unmatched [run-id]",
	Short: "Print the unmatched report of a run (default: the latest run)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runUnmatched,
}

func init() {
	rootCmd.AddCommand(unmatchedCmd)
	unmatchedCmd.Flags().StringVar(&unmatchedFormat, "format", "table", "Report format: table, markdown or json")
}

func runUnmatched(cmd *cobra.Command, args []string) error {
	format, err := reconcile.ParseFormat(unmatchedFormat)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := requireLedger(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	var run *db.Run
	if len(args) == 1 {
		run, err = repo.GetRun(args[0])
	} else {
		run, err = repo.LatestRun()
	}
	if err != nil {
		return errors.Wrap(err, "run lookup failed")
	}
	if run == nil {
		return fmt.Errorf("no such run")
	}

	report, err := reconcile.DecodeUnmatched(run.Unmatched)
	if err != nil {
		return err
	}
	if format != reconcile.FormatJSON {
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s (%s)\n", run.ID, run.Status)
	}
	return reconcile.WriteUnmatched(cmd.OutOrStdout(), report, format)
}
