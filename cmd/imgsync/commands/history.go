package commands

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/imgsync/imgsync/pkg/errors"
	"github.com/imgsync/imgsync/pkg/reconcile"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded sync runs, newest first",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := requireLedger(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	runs, err := repo.ListRuns(historyLimit)
	if err != nil {
		return errors.Wrap(err, "list failed")
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Status", "Started", "Duration", "Uploaded", "Skipped", "Failed", "Unmatched"})
	for _, run := range runs {
		status := run.Status
		if run.DryRun {
			status += " (dry)"
		}
		duration := "-"
		if !run.FinishedAt.IsZero() {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		s, err := reconcile.DecodeSummary(run.Summary)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{run.ID, status, run.StartedAt.Local().Format(time.DateTime), duration, s.Uploaded, s.Skipped, s.Failed, s.Unmatched})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
	return nil
}
