package commands

import (
	"bcfy-backend/lib/scrapers/broadcastify/feeds"
	"bcfy-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var feedsState *string
var feedsCounty *int64
var feedsMetro *int64

func init() {
	feedsState = feedsCmd.Flags().String("state", "", "A state name or numeric id to list feeds for.")
	feedsCounty = feedsCmd.Flags().Int64("county", 0, "A county id to list feeds for.")
	feedsMetro = feedsCmd.Flags().Int64("metro", 0, "A metro area id to list feeds for.")
	rootCmd.AddCommand(feedsCmd)
}

var feedsCmd = &cobra.Command{
	Use:   "feeds --state <name|id> | --county <id> | --metro <id>",
	Short: "Lists the live audio feeds of a state, county or metro area.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client := feeds.NewClient(createClient(ctx, false), limiter)

		var list []feeds.Feed
		var err error
		switch {
		case *feedsState != "":
			list, err = client.FeedsByState(ctx, *feedsState)
		case *feedsCounty != 0:
			list, err = client.FeedsByCounty(ctx, *feedsCounty)
		case *feedsMetro != 0:
			list, err = client.FeedsByMetro(ctx, *feedsMetro)
		default:
			cmd.Help()
			return
		}
		if err != nil {
			serviceutil.Fatal("failed to list feeds", err)
		}

		t := newTable("ID", "Name", "Location", "Status", "Listeners")
		for _, feed := range list {
			t.AppendRow(table.Row{
				feed.ID, feed.Name, feed.Location, feed.Status, feed.Listeners,
			})
		}
		t.Render()
	},
}
