package calls

import (
	"bcfy-backend/lib/ratelimit"
	"bcfy-backend/lib/scrapers/broadcastify/core"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrSessionNotInitialized = fmt.Errorf("live session not initialized")
var ErrSessionInitialized = fmt.Errorf("live session already initialized")

// Event names the hooks a live session can fire. The set is closed.
type Event string

// EventUpdate fires after every poll that returned at least zero
// calls; observers receive exactly the new delta, not the accumulated
// list.
const EventUpdate Event = "update"

type Observer func(delta []Call)

const (
	modeInitialize  = "gettalkgroups"
	modeIncremental = "getupdate"
)

// LiveSession polls one (system, talkgroup) pair for new calls. The
// cursor only ever moves forward, and only when a poll actually
// returned calls, so an empty poll re-requests from the same position.
//
// A session is a single-writer structure: callers must not run
// InitSession/Poll concurrently on one session. Independent sessions
// are fully independent.
type LiveSession struct {
	core    *core.Client
	limiter *ratelimit.Limiter

	system    int64
	talkgroup int64

	// correlation id sent with every poll; not an auth artifact
	sessionToken string

	position    int64
	calls       []Call
	initialized bool
	observers   map[Event][]Observer
}

func NewLiveSession(c *core.Client, limiter *ratelimit.Limiter, system, talkgroup int64) (*LiveSession, error) {
	if !c.LoggedIn() {
		return nil, core.ErrNotAuthenticated
	}

	token, err := random.String(16)
	if err != nil {
		return nil, err
	}

	return &LiveSession{
		core:         c,
		limiter:      limiter,
		system:       system,
		talkgroup:    talkgroup,
		sessionToken: token,
		position:     time.Now().Unix(),
		observers:    map[Event][]Observer{},
	}, nil
}

// On registers an additional observer; earlier registrations for the
// same event keep firing first.
func (s *LiveSession) On(event Event, fn Observer) {
	s.observers[event] = append(s.observers[event], fn)
}

func (s *LiveSession) dispatch(event Event, delta []Call) {
	for _, fn := range s.observers[event] {
		fn(delta)
	}
}

// Position exposes the incremental cursor, mainly for observability.
func (s *LiveSession) Position() int64 {
	return s.position
}

// Calls returns every call seen over the lifetime of the session, in
// arrival order.
func (s *LiveSession) Calls() []Call {
	return s.calls
}

type liveEnvelope struct {
	Calls []json.RawMessage `json:"calls"`
}

func (s *LiveSession) request(ctx context.Context, mode string) ([]Call, error) {
	ctx, span := tracer.Start(ctx, "live:request")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("system", s.system),
		attribute.Int64("talkgroup", s.talkgroup),
		attribute.String("mode", mode),
		attribute.Int64("position", s.position),
	)

	err := s.limiter.Wait(ctx, ratelimit.CategoryLive)
	if err != nil {
		return nil, err
	}

	referer := fmt.Sprintf("%s/calls/tg/%d/%d", s.core.BaseUrl, s.system, s.talkgroup)
	res, err := s.core.Http.R().
		SetContext(ctx).
		SetHeader("accept", "application/json, text/javascript, */*; q=0.01").
		SetHeader("x-requested-with", "XMLHttpRequest").
		SetHeader("origin", s.core.BaseUrl.String()).
		SetHeader("referer", referer).
		SetCookie(&http.Cookie{Name: core.CredentialCookie, Value: s.core.Credential()}).
		SetFormData(map[string]string{
			"systemId":     strconv.FormatInt(s.system, 10),
			"talkgroupId":  strconv.FormatInt(s.talkgroup, 10),
			"lastUpdate":   strconv.FormatInt(s.position, 10),
			"sessionToken": s.sessionToken,
			"mode":         mode,
		}).
		Post("/calls/ajax/update")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "live poll request failed")
		return nil, err
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "live poll rejected")
		return nil, fmt.Errorf("%w: server error %d", ErrUpstream, res.StatusCode())
	}

	var envelope liveEnvelope
	err = json.Unmarshal(res.Body(), &envelope)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode live poll response")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	// an update without a calls key just means nothing new
	delta := parseCalls(envelope.Calls)

	s.calls = append(s.calls, delta...)
	if len(delta) > 0 {
		// the cursor advances to the last call's start time, never
		// start+1: the endpoint treats lastUpdate as exclusive
		last := delta[len(delta)-1]
		if last.StartTime > 0 {
			s.position = last.StartTime
		}
	}
	s.dispatch(EventUpdate, delta)

	return delta, nil
}

// InitSession fetches the current backlog and moves the session into
// its polling state. It must be called exactly once, before Poll.
// It returns the full accumulated call list.
func (s *LiveSession) InitSession(ctx context.Context) ([]Call, error) {
	if s.initialized {
		return nil, ErrSessionInitialized
	}

	_, err := s.request(ctx, modeInitialize)
	if err != nil {
		return nil, err
	}

	s.initialized = true
	return s.calls, nil
}

// Poll fetches calls newer than the cursor and returns only that
// delta.
func (s *LiveSession) Poll(ctx context.Context) ([]Call, error) {
	if !s.initialized {
		return nil, ErrSessionNotInitialized
	}

	return s.request(ctx, modeIncremental)
}
