// Package callstore persists call metadata to sqlite and fetches call
// audio to disk.
package callstore

import (
	"bcfy-backend/lib/callstore/db"
	"bcfy-backend/lib/scrapers/broadcastify/calls"
	"bcfy-backend/lib/sqliteutil"
	"bcfy-backend/lib/telemetry"
	"context"
	"database/sql"

	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("bcfy.lib.callstore")

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func Open(path string) (Store, error) {
	database, err := sqliteutil.OpenDB(db.Schema, path)
	if err != nil {
		return Store{}, err
	}
	return NewStore(database), nil
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

func (s Store) Close() error {
	return s.db.Close()
}

// Record inserts calls, skipping ones already recorded. Live polling
// and archive backfill overlap; the identity index absorbs replays.
func (s Store) Record(ctx context.Context, list []calls.Call) error {
	ctx, span := tracer.Start(ctx, "callstore:Record")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to begin transaction")
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	for _, call := range list {
		err := txqry.InsertCall(ctx, db.InsertCallParams{
			SystemID:    call.SystemID,
			Talkgroup:   call.Talkgroup,
			StartTime:   call.StartTime,
			Duration:    call.Duration,
			Filename:    call.Filename,
			TgName:      call.TGName,
			TgGroup:     call.TGGroup,
			UnitRadioID: call.UnitRadioID,
			Hash:        call.Hash,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to insert call")
			return err
		}
	}

	return tx.Commit()
}

// List returns the recorded calls of a talkgroup within [after, before),
// oldest first.
func (s Store) List(ctx context.Context, systemId, talkgroup, after, before int64) ([]db.Call, error) {
	ctx, span := tracer.Start(ctx, "callstore:List")
	defer span.End()

	rows, err := s.qry.ListCalls(ctx, db.ListCallsParams{
		SystemID:  systemId,
		Talkgroup: talkgroup,
		After:     after,
		Before:    before,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list calls")
		return nil, err
	}
	return rows, nil
}

// SetAudioPath marks a recorded call as having its audio on disk.
func (s Store) SetAudioPath(ctx context.Context, call calls.Call, path string) error {
	return s.qry.SetAudioPath(ctx, db.SetAudioPathParams{
		AudioPath: path,
		SystemID:  call.SystemID,
		Talkgroup: call.Talkgroup,
		StartTime: call.StartTime,
		Filename:  call.Filename,
	})
}

func (s Store) Count(ctx context.Context, systemId, talkgroup int64) (int64, error) {
	return s.qry.CountCalls(ctx, db.CountCallsParams{
		SystemID:  systemId,
		Talkgroup: talkgroup,
	})
}
