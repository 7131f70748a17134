package calls

import (
	"bcfy-backend/lib/archivecache"
	"bcfy-backend/lib/ratelimit"
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrUpstream covers non-success responses and responses missing the
// fields the client depends on. The client never retries these itself;
// retry policy belongs to the caller.
var ErrUpstream = fmt.Errorf("unexpected upstream response")

// ArchiveWindow is one cached bucket of archived calls together with
// the server-reported [Start, End) window.
type ArchiveWindow struct {
	Calls []Call
	Start int64
	End   int64
}

// ArchiveClient fetches archived calls for (system, talkgroup) pairs,
// answering repeat requests for the same half-hour bucket from the
// cache without touching the network or the rate limiter.
type ArchiveClient struct {
	core    *core.Client
	cache   *archivecache.Cache[Call]
	limiter *ratelimit.Limiter
}

func NewArchiveClient(c *core.Client, cache *archivecache.Cache[Call], limiter *ratelimit.Limiter) *ArchiveClient {
	return &ArchiveClient{
		core:    c,
		cache:   cache,
		limiter: limiter,
	}
}

type archiveEnvelope struct {
	Calls *[]json.RawMessage `json:"calls"`
	Start int64              `json:"start"`
	End   int64              `json:"end"`
}

// GetArchivedCalls returns the bucket of archived calls covering the
// requested epoch timestamp.
func (a *ArchiveClient) GetArchivedCalls(ctx context.Context, system, talkgroup, requestedTime int64) (ArchiveWindow, error) {
	ctx, span := tracer.Start(ctx, "archive:GetArchivedCalls")
	defer span.End()

	bucket := archivecache.BucketOf(requestedTime)
	span.SetAttributes(
		attribute.Int64("system", system),
		attribute.Int64("talkgroup", talkgroup),
		attribute.Int64("bucket", bucket),
	)

	if entry, hit := a.cache.Get(system, talkgroup, bucket); hit {
		span.AddEvent("cache hit")
		return ArchiveWindow{Calls: entry.Items, Start: entry.Start, End: entry.End}, nil
	}

	if !a.core.LoggedIn() {
		span.SetStatus(codes.Error, core.ErrNotAuthenticated.Error())
		return ArchiveWindow{}, core.ErrNotAuthenticated
	}

	err := a.limiter.Wait(ctx, ratelimit.CategoryArchive)
	if err != nil {
		return ArchiveWindow{}, err
	}

	res, err := a.core.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"group": fmt.Sprintf("%d-%d", system, talkgroup),
			"s":     strconv.FormatInt(bucket, 10),
		}).
		SetCookie(&http.Cookie{Name: core.CredentialCookie, Value: a.core.Credential()}).
		Get("/calls/apis/archivecall.php")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive request failed")
		return ArchiveWindow{}, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "archive request rejected")
		return ArchiveWindow{}, fmt.Errorf("%w: server error %d", ErrUpstream, res.StatusCode())
	}

	var envelope archiveEnvelope
	err = json.Unmarshal(res.Body(), &envelope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode archive response")
		return ArchiveWindow{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if envelope.Calls == nil {
		span.SetStatus(codes.Error, "calls key not found in response")
		return ArchiveWindow{}, fmt.Errorf("%w: calls key not found in response", ErrUpstream)
	}

	window := ArchiveWindow{
		Calls: parseCalls(*envelope.Calls),
		Start: envelope.Start,
		End:   envelope.End,
	}
	a.cache.Put(system, talkgroup, bucket, window.Calls, window.Start, window.End)

	return window, nil
}
