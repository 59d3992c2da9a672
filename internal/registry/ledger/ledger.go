// Package ledger is the gateway to the registry contract. The contract owns
// the canonical version counter, the BVCID allocation and the active flag;
// this package only adapts its wire shapes into models.VulnerabilityRecord
// and keeps the positional-tuple handling in one place.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"bvcregistry/internal/registry/domain"
	"bvcregistry/internal/registry/models"
)

var (
	// ErrNotFound: the contract has no record under the given identifier.
	ErrNotFound = errors.New("ledger: vulnerability does not exist")
	// ErrVersionNotFound: the base exists but the requested version does not.
	ErrVersionNotFound = errors.New("ledger: version does not exist")
	// ErrUnreachable: the ledger endpoint could not be reached or did not
	// answer in time.
	ErrUnreachable = errors.New("ledger: unreachable")
	// ErrPreviewUnsupported: the deployed contract revision cannot preview
	// the next BVCID sequence. Callers fall back to a placeholder name.
	ErrPreviewUnsupported = errors.New("ledger: sequence preview unsupported")
)

// RevertError carries a contract-level rejection verbatim. The reason is
// diagnostic gold and must never be swallowed.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("ledger: reverted: %s", e.Reason)
}

// SubmitParams is the payload of one submission transaction.
type SubmitParams struct {
	BaseID        domain.BaseID
	Title         string
	Description   string
	ContentHash   string
	Platform      string
	DiscoveryDate string
}

// VersionRef names one link of a version chain.
type VersionRef struct {
	BVCID   string
	Version uint64
}

// Gateway is the ledger contract surface the registry service consumes.
//
// Submit is atomic: on a fresh BaseID it allocates version 1 and a fresh
// BVCID, on resubmission it allocates the next version under the existing
// BVCID, and on contract-side validation failure it leaves no partial
// state. ListPage ordering is creation order, stable while the set does
// not change, so concatenated pages reconstruct ListAll exactly.
type Gateway interface {
	Submit(ctx context.Context, p SubmitParams) (models.SubmitResult, error)
	FetchLatest(ctx context.Context, bvcIDOrBaseID string) (models.VulnerabilityRecord, error)
	FetchVersion(ctx context.Context, baseID domain.BaseID, version uint64) (models.VulnerabilityRecord, error)
	ListVersions(ctx context.Context, baseID domain.BaseID) ([]VersionRef, error)
	ListAll(ctx context.Context) (baseIDs []domain.BaseID, bvcIDs []string, err error)
	ListPage(ctx context.Context, page, pageSize int) ([]string, error)
	SetActive(ctx context.Context, baseID domain.BaseID, isActive bool) (models.TxReceipt, error)
	PreviewBVCID(ctx context.Context, platform string, year int) (string, error)
	Health(ctx context.Context) error
}
