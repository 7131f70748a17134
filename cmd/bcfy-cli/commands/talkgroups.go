package commands

import (
	"bcfy-backend/lib/scrapers/broadcastify/systems"
	"bcfy-backend/lib/serviceutil"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var talkgroupsSystem *int64

func init() {
	talkgroupsSystem = talkgroupsCmd.Flags().Int64("system", 0, "The system id to list talkgroups for.")
	talkgroupsCmd.MarkFlagRequired("system")
	rootCmd.AddCommand(talkgroupsCmd)
}

var talkgroupsCmd = &cobra.Command{
	Use:   "talkgroups --system <id>",
	Short: "Lists the talkgroups of a trunked radio system.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := systems.NewClient(createClient(ctx, false), limiter)

		system, err := client.System(ctx, *talkgroupsSystem)
		if err != nil {
			serviceutil.Fatal("failed to fetch system", err)
		}
		slog.Info(
			"system",
			"name", system.Name,
			"location", system.Location,
			"type", system.Type,
		)

		talkgroups, err := client.Talkgroups(ctx, *talkgroupsSystem)
		if err != nil {
			serviceutil.Fatal("failed to fetch talkgroups", err)
		}

		t := newTable("ID", "Alpha", "Description", "Encrypted")
		for _, tg := range talkgroups {
			t.AppendRow(table.Row{tg.ID, tg.Alpha, tg.Description, tg.Encrypted})
		}
		t.Render()
	},
}
