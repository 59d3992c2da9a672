// Package models defines the registry's record shape and API payloads.
package models

import (
	"bvcregistry/internal/registry/domain"
)

// VulnerabilityRecord is one immutable version snapshot as the ledger
// reports it. The full write-up lives on the content network under
// ContentHash; the ledger keeps only identity, addressing and status.
//
// The ledger returns records as positional tuples; the ledger gateway maps
// them into this struct once, at the boundary, so nothing above it depends
// on field order.
type VulnerabilityRecord struct {
	BaseID        domain.BaseID `json:"baseId"`
	BVCID         string        `json:"bvcId"`
	Version       uint64        `json:"version"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	ContentHash   string        `json:"contentHash"`
	Platform      string        `json:"platform"`
	DiscoveryDate string        `json:"discoveryDate"`
	IsActive      bool          `json:"isActive"`
}

// Status renders the logical active flag the way the API exposes it.
func (r VulnerabilityRecord) Status() string {
	if r.IsActive {
		return "active"
	}
	return "inactive"
}

// TxReceipt identifies the ledger transaction that carried a mutation.
type TxReceipt struct {
	TxHandle string `json:"txHandle"`
	BlockRef string `json:"blockRef,omitempty"`
}

// SubmitResult is what the ledger reports after a confirmed submission.
type SubmitResult struct {
	BVCID   string
	Version uint64
	Receipt TxReceipt
}
