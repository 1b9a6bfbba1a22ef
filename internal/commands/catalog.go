package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"kimai-deck/internal/adapter/kimai"
	"kimai-deck/internal/ports"
)

func addCatalog(topLevel *cobra.Command, ro *rootOptions) {
	var (
		project int64
		hidden  bool
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List customers, projects and activities with their ids.",
		Long: `Catalog prints the ids to put into project_id and activity_id of the key
layout file.`,
		Example: `
kimai-deck catalog
kimai-deck catalog --project 12
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := kimai.NewClient(ro.cfg.Kimai.URL, ro.cfg.Kimai.APIToken, ro.cfg.Kimai.Timeout, ro.log)
			return writeCatalog(cmd.Context(), cmd.OutOrStdout(), client, project, hidden)
		},
	}
	cmd.Flags().Int64Var(&project, "project", 0, "only show this project and the activities usable with it")
	cmd.Flags().BoolVar(&hidden, "all", false, "include hidden entries")
	topLevel.AddCommand(cmd)
}

// writeCatalog prints customers, projects and activities as id tables.
func writeCatalog(ctx context.Context, w io.Writer, client ports.CatalogClient, project int64, hidden bool) error {
	customers, err := client.ListCustomers(ctx)
	if err != nil {
		return err
	}
	projects, err := client.ListProjects(ctx)
	if err != nil {
		return err
	}
	activities, err := client.ListActivities(ctx, project)
	if err != nil {
		return err
	}
	sort.Slice(projects, func(i, j int) bool {
		if projects[i].Customer != projects[j].Customer {
			return projects[i].Customer < projects[j].Customer
		}
		return projects[i].Name < projects[j].Name
	})
	sort.Slice(activities, func(i, j int) bool { return activities[i].Name < activities[j].Name })

	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "

	tbl.AddRow(bold.Sprint("CUSTOMERS"))
	tbl.AddRow("ID", "NAME")
	for _, c := range customers {
		if c.Visible || hidden {
			tbl.AddRow(c.ID, c.Name)
		}
	}

	tbl.AddRow("")
	tbl.AddRow(bold.Sprint("PROJECTS"))
	tbl.AddRow("ID", "NAME", "CUSTOMER")
	for _, p := range projects {
		if (p.Visible || hidden) && (project == 0 || p.ID == project) {
			tbl.AddRow(p.ID, p.Name, orDash(p.Customer))
		}
	}

	tbl.AddRow("")
	tbl.AddRow(bold.Sprint("ACTIVITIES"))
	tbl.AddRow("ID", "NAME", "PROJECT")
	for _, a := range activities {
		if !a.Visible && !hidden {
			continue
		}
		scope := "global"
		if a.ProjectID != nil {
			scope = strconv.FormatInt(*a.ProjectID, 10)
		}
		tbl.AddRow(a.ID, a.Name, scope)
	}
	_, err = fmt.Fprintln(w, tbl)
	return err
}
