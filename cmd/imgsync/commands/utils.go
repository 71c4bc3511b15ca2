package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/imgsync/imgsync/internal/config"
	"github.com/imgsync/imgsync/pkg/db"
	"github.com/imgsync/imgsync/pkg/errors"
)

// ensureDirectories creates all necessary directories for the application
func ensureDirectories(ledgerPath, fsmDBPath string) error {
	// Create ledger directory
	if ledgerPath != "" {
		if err := os.MkdirAll(filepath.Dir(ledgerPath), 0755); err != nil {
			return errors.Wrap(err, "failed to create ledger directory")
		}
	}

	// Create FSM database directory (only needed for durable syncs)
	if fsmDBPath != "" {
		if err := os.MkdirAll(fsmDBPath, 0755); err != nil {
			return errors.Wrap(err, "failed to create FSM directory")
		}
	}

	return nil
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "config load failed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config invalid")
	}
	return cfg, nil
}

// openLedger opens the run ledger. It returns nil when the ledger is disabled.
func openLedger(cfg *config.Config) (*db.Repository, error) {
	if cfg.LedgerPath == "" {
		return nil, nil
	}
	if err := ensureDirectories(cfg.LedgerPath, ""); err != nil {
		return nil, err
	}
	repo, err := db.NewRepository(cfg.LedgerPath)
	if err != nil {
		return nil, errors.Wrap(err, "db init failed")
	}
	return repo, nil
}

// requireLedger is openLedger for commands that only read the ledger.
func requireLedger(cfg *config.Config) (*db.Repository, error) {
	repo, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return nil, fmt.Errorf("the run ledger is disabled (ledger-path is empty)")
	}
	return repo, nil
}

func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch format {
	case "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
