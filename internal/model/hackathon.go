package model

import "time"

// Status is the lifecycle state of a hackathon.  The integer values are part
// of the external contract: clients compare the status field against 1 and 2
// positionally, so the values must never be renumbered.
type Status uint8

const (
    StatusNone     Status = 0 // zero record returned for unknown ids
    StatusActive   Status = 1 // accepting participants and sponsors
    StatusFinished Status = 2 // terminal
)

// String returns the upper-case name used in logs.
func (s Status) String() string {
    switch s {
    case StatusActive:
        return "ACTIVE"
    case StatusFinished:
        return "FINISHED"
    }
    return "NONE"
}

// Hackathon is one record of the registry.  Every field except Pot, Status
// and Participants is fixed at creation time.
//
// Fields:
//  ID              – dense 1-based identifier assigned by the registry.
//  Name            – display name.
//  ImageHash       – content reference of the hackathon image.
//  Host            – address of the creating account; the only account
//                    allowed to finish the hackathon.
//  RegistrationFee – exact amount a participant pays to join.
//  Metrics         – judging criteria, at least one.
//  Pot             – sum of sponsor payments.
//  Status          – ACTIVE or FINISHED.
//  Participants    – addresses that joined, in join order.
type Hackathon struct {
    ID              uint64    `json:"id"`
    Name            string    `json:"name"`
    ImageHash       string    `json:"image_hash"`
    Host            string    `json:"host"`
    RegistrationFee uint64    `json:"registration_fee"`
    Metrics         []string  `json:"metrics"`
    Pot             uint64    `json:"pot"`
    Status          Status    `json:"status"`
    Participants    []string  `json:"participants"`
    CreatedAt       time.Time `json:"created_at"`
}

// Tuple returns the record in the fixed positional order
// [name, status, host, image_hash, registration_fee, pot, metrics].
func (h Hackathon) Tuple() []any {
    metrics := h.Metrics
    if metrics == nil {
        metrics = []string{}
    }
    return []any{h.Name, uint8(h.Status), h.Host, h.ImageHash, h.RegistrationFee, h.Pot, metrics}
}

// Clone returns a deep copy so callers cannot mutate registry state
// through shared slices.
func (h Hackathon) Clone() Hackathon {
    out := h
    if h.Metrics != nil {
        out.Metrics = append([]string(nil), h.Metrics...)
    }
    if h.Participants != nil {
        out.Participants = append([]string(nil), h.Participants...)
    }
    return out
}

// HackathonCreation is emitted once for every successful creation.
type HackathonCreation struct {
    ID        uint64    `json:"id"`
    Host      string    `json:"host"`
    Name      string    `json:"name"`
    CreatedAt time.Time `json:"created_at"`
}
