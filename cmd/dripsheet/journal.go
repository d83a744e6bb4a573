package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dripsheet/dripsheet/internal/database"
	"github.com/dripsheet/dripsheet/internal/repository"
)

var unreconciledCmd = &cobra.Command{
	Use:   "unreconciled",
	Short: "List sent emails whose sheet update failed",
	Args:  cobra.NoArgs,
	RunE:  runUnreconciled,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [id]",
	Short: "Mark a journal entry reconciled after fixing the sheet by hand",
	Args:  cobra.ExactArgs(1),
	RunE:  runReconcile,
}

func init() {
	rootCmd.AddCommand(unreconciledCmd)
	rootCmd.AddCommand(reconcileCmd)
}

// openJournal connects to the journal database without touching Google.
func openJournal() (*repository.JournalRepository, string, func() error, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, "", nil, err
	}
	if !cfg.Database.Enabled {
		return nil, "", nil, errors.New("the send journal is disabled; set database.enabled")
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return nil, "", nil, err
	}
	return repository.NewJournalRepository(db), cfg.Sheet.SpreadsheetID, db.Close, nil
}

func runUnreconciled(cmd *cobra.Command, args []string) error {
	journal, spreadsheetID, closeDB, err := openJournal()
	if err != nil {
		return err
	}
	defer closeDB()

	entries, err := journal.ListUnreconciled(cmd.Context(), spreadsheetID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to reconcile.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSENT AT\tROW\tEMAIL\tSTEP\tSET EMAILS SENT TO")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\n",
			e.ID, e.CreatedAt.Format("2006-01-02 15:04"), e.SheetRow, e.ContactEmail, e.Step, e.Step+1)
	}
	return tw.Flush()
}

func runReconcile(cmd *cobra.Command, args []string) error {
	journal, _, closeDB, err := openJournal()
	if err != nil {
		return err
	}
	defer closeDB()

	entry, err := journal.GetByID(cmd.Context(), args[0])
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("no journal entry %s", args[0])
	}
	if err != nil {
		return err
	}
	if !entry.NeedsReconciliation() {
		return fmt.Errorf("entry %s does not need reconciling (status %s, reconciled %v)", entry.ID, entry.Status, entry.Reconciled)
	}

	if err := journal.MarkReconciled(cmd.Context(), entry.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %s (row %d, %s) reconciled.\n", entry.ID, entry.SheetRow, entry.ContactEmail)
	return nil
}
