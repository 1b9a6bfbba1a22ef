package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	msql "kimai-deck/internal/adapter/mysql"
	"kimai-deck/internal/ports"
)

func addHistory(topLevel *cobra.Command, ro *rootOptions) {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the latest key transitions from the toggle journal.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ro.cfg.Journal.DSN == "" {
				return errors.New("history needs the toggle journal, set JOURNAL_DSN")
			}
			ctx := cmd.Context()
			j, err := msql.NewClient(ctx, ro.cfg.Journal.DSN, ro.log)
			if err != nil {
				return err
			}
			defer j.Close()

			events, err := j.Recent(ctx, limit)
			if err != nil {
				return err
			}
			return writeHistory(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	topLevel.AddCommand(cmd)
}

// writeHistory prints journal events as a table.
func writeHistory(w io.Writer, events []ports.ToggleEvent) error {
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, color.New(color.Faint).Sprint("journal is empty"))
		return err
	}
	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow(bold.Sprint("AT"), bold.Sprint("KEY"), bold.Sprint("ENTRY"), bold.Sprint("PROJECT/ACTIVITY"), bold.Sprint("EVENT"))
	for _, ev := range events {
		tbl.AddRow(
			ev.At.Local().Format(time.DateTime),
			ev.Key,
			ev.EntryID,
			orDash(ev.ProjectID)+"/"+orDash(ev.ActivityID),
			kindColor(ev.Kind).Sprint(ev.Kind),
		)
	}
	_, err := fmt.Fprintln(w, tbl)
	return err
}

func kindColor(kind string) *color.Color {
	switch kind {
	case "started", "adopted":
		return color.New(color.FgGreen)
	case "stopped":
		return color.New(color.FgYellow)
	default:
		return color.New(color.Faint)
	}
}
