// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/iliyamo/munon-registry/internal/model"
)

// CreationQueue is the durable queue carrying HackathonCreatedEvent messages.
const CreationQueue = "hackathon.created"

// HackathonCreatedEvent is published when a hackathon is created.  It carries
// enough information for downstream consumers to index the new record
// without querying the registry.
type HackathonCreatedEvent struct {
    HackathonID uint64 `json:"hackathon_id"`
    Host        string `json:"host"`
    Name        string `json:"name"`
    CreatedAt   string `json:"created_at"`
}

// NewHackathonCreatedEvent converts the registry event into its wire form.
func NewHackathonCreatedEvent(ev model.HackathonCreation) HackathonCreatedEvent {
    return HackathonCreatedEvent{
        HackathonID: ev.ID,
        Host:        ev.Host,
        Name:        ev.Name,
        CreatedAt:   ev.CreatedAt.UTC().Format(time.RFC3339),
    }
}
