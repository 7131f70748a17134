package callstore

import (
	"bcfy-backend/lib/ratelimit"
	"bcfy-backend/lib/scrapers/broadcastify/calls"
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/codes"
)

type Downloader struct {
	core    *core.Client
	limiter *ratelimit.Limiter
	dir     string
}

func NewDownloader(c *core.Client, limiter *ratelimit.Limiter, dir string) Downloader {
	return Downloader{core: c, limiter: limiter, dir: dir}
}

func (d Downloader) audioPath(call calls.Call) string {
	return filepath.Join(
		d.dir,
		fmt.Sprint(call.SystemID),
		fmt.Sprint(call.Talkgroup),
		fmt.Sprintf("%d_%s.mp3", call.StartTime, call.Filename),
	)
}

// Download fetches a call's audio to disk and returns the file path.
// Already-downloaded audio is not refetched.
func (d Downloader) Download(ctx context.Context, call calls.Call) (string, error) {
	ctx, span := tracer.Start(ctx, "callstore:Download")
	defer span.End()

	path := d.audioPath(call)
	if _, err := os.Stat(path); err == nil {
		slog.DebugContext(ctx, "audio already downloaded", "path", path)
		return path, nil
	}

	err := d.limiter.Wait(ctx, ratelimit.CategoryDefault)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return "", err
	}

	res, err := d.core.Http.R().
		SetContext(ctx).
		SetOutput(path).
		Get(call.MediaURL())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to download audio")
		return "", err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "audio request rejected")
		return "", fmt.Errorf("download audio: server error %d", res.StatusCode())
	}

	return path, nil
}

// DownloadAll fetches audio for every call and records the resulting
// paths in the store. Failures are logged and skipped so one missing
// file does not abort a backfill.
func (d Downloader) DownloadAll(ctx context.Context, store Store, list []calls.Call) error {
	ctx, span := tracer.Start(ctx, "callstore:DownloadAll")
	defer span.End()

	for _, call := range list {
		path, err := d.Download(ctx, call)
		if err != nil {
			slog.WarnContext(
				ctx, "failed to download call audio",
				"system", call.SystemID,
				"talkgroup", call.Talkgroup,
				"start_time", call.StartTime,
				"err", err,
			)
			continue
		}

		err = store.SetAudioPath(ctx, call, path)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to record audio path")
			return err
		}
	}
	return nil
}
