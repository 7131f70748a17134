package commands

import (
	"bcfy-backend/lib/scrapers/broadcastify/systems"
	"bcfy-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var coverageCounty *int64
var coverageTag *int64

func init() {
	coverageCounty = coverageCmd.Flags().Int64("county", 0, "The county id to check coverage for.")
	coverageTag = coverageCmd.Flags().Int64("tag", 0, "Restrict coverage to a service tag, 0 means all.")
	coverageCmd.MarkFlagRequired("county")
	rootCmd.AddCommand(coverageCmd)
}

var coverageCmd = &cobra.Command{
	Use:   "coverage --county <id> [--tag <id>]",
	Short: "Lists the systems with call coverage in a county.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := systems.NewClient(createClient(ctx, false), limiter)

		entries, err := client.Coverage(ctx, *coverageCounty, *coverageTag)
		if err != nil {
			serviceutil.Fatal("failed to fetch coverage", err)
		}

		t := newTable("System", "Name")
		for _, entry := range entries {
			t.AppendRow(table.Row{entry.SystemID, entry.Name})
		}
		t.Render()
	},
}
