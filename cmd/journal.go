package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/evanofslack/ovh-reconcile/internal/journal"
	"github.com/evanofslack/ovh-reconcile/internal/metrics"
)

// openJournal opens the configured journal for reading. Tests replace it.
var openJournal = func(path string) (journal.Journal, error) {
	return journal.New(path, metrics.New(false))
}

func newJournalCmd() *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show the mutations recorded by previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cfg.Journal.Enabled {
				return errors.New("journal is disabled in config")
			}
			j, err := openJournal(cfg.Journal.Path)
			if err != nil {
				return fmt.Errorf("failed to open journal: %w", err)
			}
			defer j.Close()

			entries, err := j.List(cmd.Context(), runID)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), text.FgYellow.Sprint("No journal entries"))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Time", "Run", "Seq", "Kind", "Target", "Step", "Call"})
			for _, e := range entries {
				t.AppendRow(table.Row{
					e.Time.Format(time.RFC3339),
					e.RunID,
					strconv.Itoa(e.Seq),
					e.Kind,
					e.Target,
					e.Step,
					e.Method + " " + e.Path,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "only show the entries of this run id")
	return cmd
}
