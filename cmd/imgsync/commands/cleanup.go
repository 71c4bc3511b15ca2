package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/imgsync/imgsync/pkg/errors"
)

var cleanupOlderThan time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old runs and their upload records from the ledger",
	Long: `Deletes runs started before --older-than together with their upload records.
Pending uploads are kept: their idempotency keys are reused by the next sync of
the same variation.`,
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
	cleanupCmd.Flags().DurationVar(&cleanupOlderThan, "older-than", 30*24*time.Hour, "Delete runs older than this")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cleanupOlderThan <= 0 {
		return fmt.Errorf("--older-than must be positive")
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

	cutoff := time.Now().Add(-cleanupOlderThan)
	deleted, err := repo.DeleteRunsBefore(context.Background(), cutoff)
	if err != nil {
		return errors.Wrap(err, "cleanup failed")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs started before %s\n", deleted, cutoff.Format(time.DateTime))
	return nil
}
