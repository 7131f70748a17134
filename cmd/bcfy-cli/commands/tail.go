package commands

import (
	"bcfy-backend/lib/callstore"
	"bcfy-backend/lib/scrapers/broadcastify/calls"
	"bcfy-backend/lib/serviceutil"
	"bcfy-backend/lib/telemetry"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var tailSystem *int64
var tailTalkgroup *int64
var tailInterval *time.Duration
var tailDb *string

func init() {
	tailSystem = tailCmd.Flags().Int64("system", 0, "The system id to tail.")
	tailTalkgroup = tailCmd.Flags().Int64("talkgroup", 0, "The talkgroup id to tail.")
	tailInterval = tailCmd.Flags().Duration("interval", time.Second*15, "How often to poll for new calls.")
	tailDb = tailCmd.Flags().String("db", "", "Record incoming calls to this sqlite database.")

	tailCmd.MarkFlagRequired("system")
	tailCmd.MarkFlagRequired("talkgroup")
	rootCmd.AddCommand(tailCmd)
}

func printCall(call calls.Call) {
	fmt.Printf(
		"%s  %6.1fs  %s (%d)  unit %d\n",
		time.Unix(call.StartTime, 0).Format(time.DateTime),
		call.Duration,
		call.TGName,
		call.Talkgroup,
		call.UnitRadioID,
	)
}

var tailCmd = &cobra.Command{
	Use:   "tail --system <id> --talkgroup <id> [--interval <duration>] [--db <path>]",
	Short: "Follows a talkgroup's live calls, printing each new call as it lands.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := serviceutil.SignalContext()
		telemetry.InstrumentPerfStats(ctx)

		session, err := calls.NewLiveSession(createClient(ctx, true), limiter, *tailSystem, *tailTalkgroup)
		if err != nil {
			serviceutil.Fatal("failed to create live session", err)
		}

		session.On(calls.EventUpdate, func(delta []calls.Call) {
			for _, call := range delta {
				printCall(call)
			}
		})
		if *tailDb != "" {
			store, err := callstore.Open(*tailDb)
			if err != nil {
				serviceutil.Fatal("failed to open call database", err)
			}
			defer store.Close()

			session.On(calls.EventUpdate, func(delta []calls.Call) {
				if err := store.Record(ctx, delta); err != nil {
					slog.Warn("failed to record calls", "err", err)
				}
			})
		}

		backlog, err := session.InitSession(ctx)
		if err != nil {
			serviceutil.Fatal("failed to initialize live session", err)
		}
		slog.Info("session initialized", "backlog", len(backlog))

		ticker := time.NewTicker(*tailInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("shutting down", "calls_seen", len(session.Calls()))
				return
			case <-ticker.C:
				_, err := session.Poll(ctx)
				if err != nil {
					slog.Warn("poll failed", "err", err)
				}
			}
		}
	},
}
