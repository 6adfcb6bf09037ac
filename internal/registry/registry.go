// Package registry implements the hackathon registry state machine: a ledger
// of hackathon records that are created active, accept participants who pay
// the exact registration fee, accumulate a sponsor pot and are finished once
// by their host.
//
// Each Registry owns its records.  All mutating calls are serialised by a
// mutex and are atomic: either every precondition holds and the journal,
// the record, the held balance and the event log all change, or nothing does.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/iliyamo/munon-registry/internal/model"
)

// CreateInput carries the caller-supplied fields of a new hackathon.
type CreateInput struct {
	Name            string
	ImageHash       string
	RegistrationFee uint64
	Metrics         []string
}

type entry struct {
	rec    model.Hackathon
	joined map[string]struct{}
}

// Registry is the in-memory ledger.  The zero value is not usable; call New.
type Registry struct {
	mu         sync.Mutex
	hackathons map[uint64]*entry
	count      uint64
	balance    uint64
	events     []model.HackathonCreation

	journal Journal
	sink    EventSink
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithJournal persists every change through j before it is applied.
func WithJournal(j Journal) Option {
	return func(r *Registry) {
		if j != nil {
			r.journal = j
		}
	}
}

// WithEventSink forwards creation events to s.
func WithEventSink(s EventSink) Option {
	return func(r *Registry) { r.sink = s }
}

// WithLogger sets the logger used for sink failures.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New returns an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		hackathons: make(map[uint64]*entry),
		journal:    nopJournal{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Restore replaces the registry contents with previously journaled records.
// Records must carry dense ids starting at 1.
func (r *Registry) Restore(records []model.Hackathon, balance uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hs := make(map[uint64]*entry, len(records))
	var count uint64
	for _, rec := range records {
		if rec.ID == 0 {
			return fmt.Errorf("restore: record with id 0")
		}
		if _, dup := hs[rec.ID]; dup {
			return fmt.Errorf("restore: duplicate id %d", rec.ID)
		}
		if len(rec.Metrics) == 0 {
			return fmt.Errorf("restore: hackathon %d has no metrics", rec.ID)
		}
		if rec.Status != model.StatusActive && rec.Status != model.StatusFinished {
			return fmt.Errorf("restore: hackathon %d has invalid status %d", rec.ID, rec.Status)
		}
		e := &entry{rec: rec.Clone(), joined: make(map[string]struct{}, len(rec.Participants))}
		for _, p := range rec.Participants {
			e.joined[p] = struct{}{}
		}
		hs[rec.ID] = e
		if rec.ID > count {
			count = rec.ID
		}
	}
	if uint64(len(hs)) != count {
		return fmt.Errorf("restore: ids are not dense (count=%d, records=%d)", count, len(hs))
	}
	r.hackathons = hs
	r.count = count
	r.balance = balance
	r.events = nil
	return nil
}

// CreateHackathon stores a new active hackathon hosted by host and returns
// its id.  Exactly one HackathonCreation event is emitted on success.
func (r *Registry) CreateHackathon(ctx context.Context, host string, in CreateInput) (uint64, error) {
	if len(in.Metrics) == 0 {
		return 0, errNoMetrics
	}
	if host == "" {
		return 0, errNoCaller
	}

	r.mu.Lock()
	id := r.count + 1
	rec := model.Hackathon{
		ID:              id,
		Name:            in.Name,
		ImageHash:       in.ImageHash,
		Host:            host,
		RegistrationFee: in.RegistrationFee,
		Metrics:         append([]string(nil), in.Metrics...),
		Status:          model.StatusActive,
		Participants:    []string{},
		CreatedAt:       r.now().UTC(),
	}
	if err := r.journal.RecordCreate(ctx, rec); err != nil {
		r.mu.Unlock()
		return 0, fmt.Errorf("journal create: %w", err)
	}
	r.hackathons[id] = &entry{rec: rec, joined: make(map[string]struct{})}
	r.count = id
	ev := model.HackathonCreation{ID: id, Host: host, Name: rec.Name, CreatedAt: rec.CreatedAt}
	r.events = append(r.events, ev)
	r.mu.Unlock()

	r.publish(ctx, ev)
	return id, nil
}

// Join adds participant to hackathon id.  payment must equal the
// registration fee exactly; it is retained in the registry balance and does
// not feed the pot.  The record's status is not consulted: a finished
// hackathon still accepts participants who pay the fee.
func (r *Registry) Join(ctx context.Context, id uint64, participant string, payment uint64) error {
	if participant == "" {
		return errNoCaller
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.hackathons[id]
	if !ok {
		return errNotFound
	}
	if payment != e.rec.RegistrationFee {
		return errFeeMismatch
	}
	if _, dup := e.joined[participant]; dup {
		return errAlreadyJoined
	}
	if payment > math.MaxUint64-r.balance {
		return errBalanceOverflow
	}
	if err := r.journal.RecordJoin(ctx, id, participant, payment); err != nil {
		return fmt.Errorf("journal join: %w", err)
	}
	e.joined[participant] = struct{}{}
	e.rec.Participants = append(e.rec.Participants, participant)
	r.balance += payment
	return nil
}

// Sponsor adds payment to the pot of an active hackathon.
func (r *Registry) Sponsor(ctx context.Context, id uint64, sponsor string, payment uint64) error {
	if sponsor == "" {
		return errNoCaller
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.hackathons[id]
	if !ok {
		return errNotFound
	}
	if e.rec.Status == model.StatusFinished {
		return errFinished
	}
	if payment > math.MaxUint64-e.rec.Pot {
		return errPotOverflow
	}
	if payment > math.MaxUint64-r.balance {
		return errBalanceOverflow
	}
	if err := r.journal.RecordSponsor(ctx, id, sponsor, payment); err != nil {
		return fmt.Errorf("journal sponsor: %w", err)
	}
	e.rec.Pot += payment
	r.balance += payment
	return nil
}

// FinishHackathon moves hackathon id to FINISHED.  Only the host may call
// it, and only once.
func (r *Registry) FinishHackathon(ctx context.Context, id uint64, caller string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.hackathons[id]
	if !ok {
		return errNotFound
	}
	if caller != e.rec.Host {
		return errNotHost
	}
	if e.rec.Status == model.StatusFinished {
		return errFinished
	}
	if err := r.journal.RecordFinish(ctx, id); err != nil {
		return fmt.Errorf("journal finish: %w", err)
	}
	e.rec.Status = model.StatusFinished
	return nil
}

// HackathonCount returns the number of created hackathons, which is also
// the most recently assigned id.
func (r *Registry) HackathonCount() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Hackathons returns a copy of record id, or the zero record when id was
// never assigned.
func (r *Registry) Hackathons(id uint64) model.Hackathon {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.hackathons[id]
	if !ok {
		return model.Hackathon{}
	}
	return e.rec.Clone()
}

// ParticipantHasJoined reports whether identity joined hackathon id.
func (r *Registry) ParticipantHasJoined(id uint64, identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.hackathons[id]
	if !ok {
		return false
	}
	_, joined := e.joined[identity]
	return joined
}

// Balance returns the total amount held by the registry: every accepted
// join fee plus every sponsor payment.
func (r *Registry) Balance() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance
}

// Events returns the creation events emitted since New or the last Restore.
func (r *Registry) Events() []model.HackathonCreation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.HackathonCreation(nil), r.events...)
}

func (r *Registry) publish(ctx context.Context, ev model.HackathonCreation) {
	if r.sink == nil {
		return
	}
	if err := r.sink.PublishCreation(ctx, ev); err != nil {
		r.logger.Warn("publish hackathon creation failed", "hackathon_id", ev.ID, "error", err)
	}
}
