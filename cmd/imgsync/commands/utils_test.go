package commands

import (
	"path/filepath"
	"testing"

	"github.com/imgsync/imgsync/internal/config"
)

func TestSetupLogging(t *testing.T) {
	for _, tt := range []struct {
		level, format string
		wantErr       bool
	}{
		{"info", "text", false},
		{"DEBUG", "json", false},
		{"warn", "", false},
		{"loud", "text", true},
		{"info", "xml", true},
	} {
		err := setupLogging(tt.level, tt.format)
		if (err != nil) != tt.wantErr {
			t.Errorf("setupLogging(%q, %q) error = %v, wantErr %v", tt.level, tt.format, err, tt.wantErr)
		}
	}
}

func TestOpenLedger(t *testing.T) {
	repo, err := openLedger(&config.Config{})
	if err != nil || repo != nil {
		t.Fatalf("expected disabled ledger, got %v, %v", repo, err)
	}
	if _, err := requireLedger(&config.Config{}); err == nil {
		t.Error("expected error for disabled ledger")
	}

	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	repo, err = openLedger(&config.Config{LedgerPath: path})
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	defer repo.Close()

	runs, err := repo.ListRuns(0)
	if err != nil || len(runs) != 0 {
		t.Errorf("expected empty ledger, got %v, %v", runs, err)
	}
}
