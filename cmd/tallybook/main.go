package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jask/tallybook/internal/config"
	"github.com/jask/tallybook/internal/database"
	"github.com/jask/tallybook/internal/logging"
	"github.com/jask/tallybook/internal/service"
	"github.com/jask/tallybook/internal/tui"
)

// app carries what every subcommand needs once the database is open.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	db        *sql.DB
	ledger    *service.Ledger
	ingest    *service.IngestService
	maint     *service.MaintenanceService
	renderer  tui.Renderer
	assumeYes bool
}

const skipDB = "skip-db"

func main() {
	a := &app{}
	if err := newRootCmd(a).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return 2
	case errors.Is(err, service.ErrConflict):
		return 3
	case errors.Is(err, service.ErrNotFound):
		return 4
	case errors.Is(err, service.ErrIntegrity):
		return 5
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "tallybook",
		Short:         "Personal ledger with rule-based tagging and undo",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a.db != nil {
				return a.db.Close()
			}
			return nil
		},
	}
	root.SetOut(os.Stdout)
	root.PersistentFlags().BoolVarP(&a.assumeYes, "yes", "y", false, "do not ask for confirmation")
	root.AddCommand(
		newAccountsCmd(a),
		newTxnCmd(a),
		newTagsCmd(a),
		newImportCmd(a),
		newQueryCmd(a),
		newUndoCmd(a),
		newResetCmd(a),
		newInfoCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.Setup(logging.FromSettings(cfg.Log.Level, cfg.Log.Format))
	a.renderer = tui.Renderer{CurrencySymbol: cfg.UI.CurrencySymbol, DateFormat: cfg.UI.DateFormat}
	if cmd.Annotations[skipDB] != "" {
		return nil
	}

	db, err := database.Bootstrap(cmd.Context(), cfg.Database.Path, a.logger)
	if err != nil {
		return err
	}
	a.db = db
	a.ledger = service.NewLedger(db, a.logger, cfg.Undo.MaxSteps)
	a.ledger.Query.Logger = a.logger
	a.ingest = &service.IngestService{Ledger: a.ledger, Logger: a.logger}
	a.maint = &service.MaintenanceService{DB: db}
	return nil
}

func (a *app) confirm(prompt string) (bool, error) {
	if a.assumeYes {
		return true, nil
	}
	return tui.Confirm(prompt, os.Stdin, os.Stdout)
}
