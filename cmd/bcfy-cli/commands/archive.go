package commands

import (
	"bcfy-backend/lib/archivecache"
	"bcfy-backend/lib/callstore"
	"bcfy-backend/lib/scrapers/broadcastify/calls"
	"bcfy-backend/lib/serviceutil"
	"context"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var archiveSystem *int64
var archiveTalkgroup *int64
var archiveTime *int64
var archiveDb *string
var archiveAudioDir *string
var archiveCacheDir *string

func init() {
	archiveSystem = archiveCmd.Flags().Int64("system", 0, "The system id to fetch calls for.")
	archiveTalkgroup = archiveCmd.Flags().Int64("talkgroup", 0, "The talkgroup id to fetch calls for.")
	archiveTime = archiveCmd.Flags().Int64("time", 0, "An epoch timestamp inside the half-hour to fetch, defaults to half an hour ago.")
	archiveDb = archiveCmd.Flags().String("db", "", "Also record the fetched calls to this sqlite database.")
	archiveAudioDir = archiveCmd.Flags().String("audio", "", "Also download call audio into this directory (requires --db).")
	archiveCacheDir = archiveCmd.Flags().String("cache", ".bcfy-cache", "The directory holding the archive response cache.")

	archiveCmd.MarkFlagRequired("system")
	archiveCmd.MarkFlagRequired("talkgroup")
	rootCmd.AddCommand(archiveCmd)
}

var archiveCmd = &cobra.Command{
	Use:   "archive --system <id> --talkgroup <id> [--time <epoch>] [--db <path>]",
	Short: "Fetches the archived calls of a talkgroup for one half-hour window.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		requestedTime := *archiveTime
		if requestedTime == 0 {
			requestedTime = time.Now().Add(-time.Minute * 30).Unix()
		}

		cache := archivecache.Open[calls.Call](archivecache.Options{
			Dir: *archiveCacheDir,
		})
		defer func() {
			if err := cache.Close(); err != nil {
				slog.Warn("failed to persist archive cache", "err", err)
			}
		}()

		client := calls.NewArchiveClient(createClient(ctx, true), cache, limiter)
		window, err := client.GetArchivedCalls(ctx, *archiveSystem, *archiveTalkgroup, requestedTime)
		if err != nil {
			serviceutil.Fatal("failed to fetch archived calls", err)
		}

		slog.Info(
			"fetched archive window",
			"start", window.Start,
			"end", window.End,
			"calls", len(window.Calls),
		)

		t := newTable("Start", "Duration", "Talkgroup", "Unit", "Media")
		for _, call := range window.Calls {
			t.AppendRow(table.Row{
				time.Unix(call.StartTime, 0).Format(time.DateTime),
				call.Duration,
				call.TGName,
				call.UnitRadioID,
				call.MediaURL(),
			})
		}
		t.Render()

		if *archiveDb != "" {
			recordCalls(ctx, window.Calls)
		}
	},
}

func recordCalls(ctx context.Context, list []calls.Call) {
	store, err := callstore.Open(*archiveDb)
	if err != nil {
		serviceutil.Fatal("failed to open call database", err)
	}
	defer store.Close()

	err = store.Record(ctx, list)
	if err != nil {
		serviceutil.Fatal("failed to record calls", err)
	}

	if *archiveAudioDir != "" {
		downloader := callstore.NewDownloader(createClient(ctx, false), limiter, *archiveAudioDir)
		err = downloader.DownloadAll(ctx, store, list)
		if err != nil {
			serviceutil.Fatal("failed to download call audio", err)
		}
	}
}
