package commands

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"kimai-deck/internal/adapter/kimai"
	"kimai-deck/internal/config"
	"kimai-deck/internal/domain"
	"kimai-deck/internal/elapsed"
	"kimai-deck/internal/resolver"
)

func addStatus(topLevel *cobra.Command, ro *rootOptions) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the entry currently running on Kimai.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := kimai.NewClient(ro.cfg.Kimai.URL, ro.cfg.Kimai.APIToken, ro.cfg.Kimai.Timeout, ro.log)
			r := &resolver.Resolver{Log: ro.log, Client: client}

			e, err := r.Lookup(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if e == nil {
				fmt.Fprintln(out, color.New(color.Faint).Sprint("nothing running"))
				return nil
			}

			fmt.Fprintf(out, "%s %s  #%d\n",
				color.New(color.FgGreen, color.Bold).Sprint("■"),
				color.New(color.Bold).Sprint(elapsed.Render(e.Begin, time.Now())),
				e.ID,
			)
			fmt.Fprintf(out, "  customer  %s\n", orDash(e.Customer))
			fmt.Fprintf(out, "  project   %s (%d)\n", orDash(e.Project), e.ProjectID)
			fmt.Fprintf(out, "  activity  %s (%d)\n", orDash(e.Activity), e.ActivityID)
			fmt.Fprintf(out, "  since     %s\n", e.Begin)
			if e.Description != "" {
				fmt.Fprintf(out, "  note      %s\n", e.Description)
			}

			for _, k := range ro.cfg.Keys {
				if k.Kind != config.KindToggle {
					continue
				}
				project, activity, err := domain.ParseIDs(k.ProjectID, k.ActivityID)
				if err == nil && e.Matches(project, activity) {
					fmt.Fprintf(out, "  key       %s\n", color.CyanString(k.Name))
				}
			}
			return nil
		},
	}
	topLevel.AddCommand(cmd)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
