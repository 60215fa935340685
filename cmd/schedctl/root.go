package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vytor/cardsched/internal/config"
	"github.com/vytor/cardsched/internal/db"
	"github.com/vytor/cardsched/internal/logger"
	"github.com/vytor/cardsched/internal/models"
	"github.com/vytor/cardsched/internal/repository/sqlite"
	"github.com/vytor/cardsched/internal/sched"
	"github.com/vytor/cardsched/internal/services"
)

// app holds what the commands share once the collection is open.
type app struct {
	cfg      config.Config
	dbPath   string
	logLevel string

	database *db.DB
	study    services.StudyService
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Load()}

	root := &cobra.Command{
		Use:                "schedctl",
		Short:              "Study and maintain a card collection from the terminal",
		SilenceUsage:       true,
		PersistentPreRunE:  a.open,
		PersistentPostRunE: a.close,
	}
	root.PersistentFlags().StringVar(&a.dbPath, "db", a.cfg.DBPath, "collection database path")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "WARN", "log level (DEBUG, INFO, WARN, ERROR)")

	root.AddCommand(
		a.countsCmd(),
		a.nextCmd(),
		a.answerCmd(),
		a.batchCmd("suspend", "Suspend cards", func(s services.StudyService) batchOp { return s.Suspend }),
		a.batchCmd("unsuspend", "Unsuspend cards", func(s services.StudyService) batchOp { return s.Unsuspend }),
		a.batchCmd("bury", "Bury cards until the next day", func(s services.StudyService) batchOp { return s.Bury }),
		a.batchCmd("forget", "Move cards back to the end of the new queue", func(s services.StudyService) batchOp { return s.Forget }),
		a.unburyCmd(),
		a.decksCmd(),
		a.selectCmd(),
		a.rebuildCmd(),
		a.emptyCmd(),
		a.setVersionCmd(),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, _ []string) error {
	if !logger.ValidLevel(a.logLevel) {
		return fmt.Errorf("invalid --log-level %q", a.logLevel)
	}
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(a.logLevel)),
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithCaller(false),
	)
	logger.SetDefault(log)

	loc, err := a.cfg.Location()
	if err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	database, err := db.Open(a.dbPath)
	if err != nil {
		return fmt.Errorf("open collection: %w", err)
	}
	a.database = database

	ctx := logger.NewContext(cmd.Context(), log)
	cmd.SetContext(ctx)

	store := sqlite.NewStore(database.DB)
	s, err := sched.New(ctx, store,
		sched.WithLocation(loc),
		sched.WithHooks(sched.Hooks{Leech: func(ctx context.Context, card models.Card) {
			fmt.Fprintf(cmd.ErrOrStderr(), "card %d became a leech\n", card.ID)
		}}),
	)
	if err != nil {
		return fmt.Errorf("load scheduler: %w", err)
	}
	a.study = services.NewStudyService(s, store.Notes())
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.database == nil {
		return nil
	}
	err := a.database.Close()
	a.database = nil
	return err
}
