// Package audit records registry mutations for after-the-fact review. Every
// confirmed create and status toggle emits one event; reads emit nothing.
package audit

import (
	"context"
	"time"
)

// Action names a mutation kind.
type Action string

const (
	ActionVulnerabilityCreated Action = "vulnerability.created"
	ActionStatusChanged        Action = "vulnerability.status_changed"
)

// Event is one audit record. Identifiers and the ledger receipt are enough
// to reconstruct what happened; report content never enters the trail.
type Event struct {
	ID       string    `json:"id"`
	Action   Action    `json:"action"`
	BVCID    string    `json:"bvcId"`
	BaseID   string    `json:"baseId"`
	Version  uint64    `json:"version,omitempty"`
	IsActive *bool     `json:"isActive,omitempty"`
	TxHandle string    `json:"txHandle"`
	At       time.Time `json:"at"`
}

// Sink receives emitted events.
type Sink interface {
	Record(ctx context.Context, event Event) error
	Close() error
}
