package registry

import (
	"context"

	"github.com/iliyamo/munon-registry/internal/model"
)

// Journal receives every state change after its preconditions passed and
// before it is applied in memory.  Returning an error aborts the operation
// and leaves the registry untouched, so an implementation backed by a
// database must only return nil once its own transaction has committed.
type Journal interface {
	RecordCreate(ctx context.Context, h model.Hackathon) error
	RecordJoin(ctx context.Context, id uint64, participant string, payment uint64) error
	RecordSponsor(ctx context.Context, id uint64, sponsor string, amount uint64) error
	RecordFinish(ctx context.Context, id uint64) error
}

// EventSink delivers creation events to external observers.  It is called
// after the registry lock is released; failures are logged and never undo
// the committed creation.
type EventSink interface {
	PublishCreation(ctx context.Context, ev model.HackathonCreation) error
}

type nopJournal struct{}

func (nopJournal) RecordCreate(context.Context, model.Hackathon) error           { return nil }
func (nopJournal) RecordJoin(context.Context, uint64, string, uint64) error     { return nil }
func (nopJournal) RecordSponsor(context.Context, uint64, string, uint64) error  { return nil }
func (nopJournal) RecordFinish(context.Context, uint64) error                   { return nil }
