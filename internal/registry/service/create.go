package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"bvcregistry/internal/registry/domain"
	"bvcregistry/internal/registry/ledger"
	"bvcregistry/internal/registry/models"
	dErrors "bvcregistry/pkg/domain-errors"
	"bvcregistry/pkg/platform/audit"
)

// contentDocument is the full report body stored on the content network.
// The ledger never sees the technical fields.
type contentDocument struct {
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Platform         string            `json:"platform"`
	DiscoveryDate    string            `json:"discoveryDate"`
	TechnicalDetails string            `json:"technicalDetails,omitempty"`
	ProofOfExploit   string            `json:"proofOfExploit,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Create registers a new vulnerability or appends a version to an existing
// one. All validation happens before the first network call. The content
// write is two-phase: upload under the best available name, submit to the
// ledger, then re-upload under the authoritative BVCID when the names
// differ. A name mismatch is an expected outcome of optimistic
// pre-derivation, not an error.
//
// The content upload is not rolled back if the ledger submit fails; an
// orphaned, unreferenced blob is the accepted inconsistency.
func (s *Service) Create(ctx context.Context, req models.CreateRequest) (models.CreateResponse, error) {
	if err := req.ValidateRequired(); err != nil {
		return models.CreateResponse{}, err
	}
	if err := domain.ValidatePlatform(req.Platform); err != nil {
		return models.CreateResponse{}, err
	}
	year, err := domain.ValidateDiscoveryDate(req.DiscoveryDate)
	if err != nil {
		return models.CreateResponse{}, err
	}

	baseID := s.baseIDFor(req)
	doc, err := json.Marshal(contentDocument{
		Title:            req.Title,
		Description:      req.Description,
		Platform:         req.Platform,
		DiscoveryDate:    req.DiscoveryDate,
		TechnicalDetails: req.TechnicalDetails,
		ProofOfExploit:   req.ProofOfExploit,
		Metadata:         req.Metadata,
	})
	if err != nil {
		return models.CreateResponse{}, dErrors.Wrap(dErrors.CodeInternal, "encode content document", err)
	}

	provisionalName := s.provisionalName(ctx, baseID, req.Platform, year)
	hash, err := s.content.Put(ctx, doc, provisionalName)
	if err != nil {
		return models.CreateResponse{}, dErrors.Wrap(dErrors.CodeUnavailable, "content store upload failed", err)
	}

	if err := s.checkDuplicate(ctx, hash); err != nil {
		return models.CreateResponse{}, err
	}

	result, err := s.ledger.Submit(ctx, ledger.SubmitParams{
		BaseID:        baseID,
		Title:         req.Title,
		Description:   req.Description,
		ContentHash:   hash,
		Platform:      req.Platform,
		DiscoveryDate: req.DiscoveryDate,
	})
	if err != nil {
		return models.CreateResponse{}, s.mapLedgerErr(ctx, err, "submit")
	}

	s.reconcileName(ctx, doc, provisionalName, result.BVCID)
	s.markDuplicate(ctx, hash)

	if result.Version == 1 {
		s.regMetrics.VulnerabilitiesCreated.Inc()
	} else {
		s.regMetrics.VersionsAppended.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionVulnerabilityCreated,
		BVCID:    result.BVCID,
		BaseID:   string(baseID),
		Version:  result.Version,
		TxHandle: result.Receipt.TxHandle,
	})

	return models.CreateResponse{
		Identifiers: models.Identifiers{BVCID: result.BVCID, BaseID: string(baseID)},
		Version:     versionString(result.Version),
		Ledger:      result.Receipt,
		Content:     models.ContentPointer{Hash: hash, URL: s.contentURL(hash)},
	}, nil
}

// baseIDFor derives the ledger key: a supplied identifier is resolved (raw
// keys pass through, text is hashed); without one the key is synthesized
// from platform, title and the submission time.
func (s *Service) baseIDFor(req models.CreateRequest) domain.BaseID {
	if req.ID != "" {
		return domain.ResolveBaseID(req.ID)
	}
	return domain.SynthesizeBaseID(req.Platform, req.Title, s.now().Unix())
}

// provisionalName picks the upload name before the ledger has spoken. A
// known vulnerability keeps its existing BVCID; a new one gets the ledger's
// sequence preview when available, a uuid placeholder otherwise.
func (s *Service) provisionalName(ctx context.Context, baseID domain.BaseID, platform string, year int) string {
	if rec, err := s.ledger.FetchLatest(ctx, string(baseID)); err == nil {
		return rec.BVCID + ".json"
	}
	bvc, err := s.ledger.PreviewBVCID(ctx, platform, year)
	if err != nil {
		if !errors.Is(err, ledger.ErrPreviewUnsupported) {
			s.logger.WarnContext(ctx, "bvc id preview failed, using placeholder", "error", err)
		}
		return "pending-" + uuid.NewString() + ".json"
	}
	return bvc + ".json"
}

// reconcileName re-uploads the document under the authoritative name when
// the provisional one missed. Content addressing makes this a rename: the
// bytes and therefore the hash are unchanged, so the ledger record stays
// valid even if the re-upload itself fails.
func (s *Service) reconcileName(ctx context.Context, doc []byte, provisionalName, bvcID string) {
	authoritative := bvcID + ".json"
	if provisionalName == authoritative {
		return
	}
	if _, err := s.content.Put(ctx, doc, authoritative); err != nil {
		s.logger.WarnContext(ctx, "content re-upload under authoritative name failed",
			"provisional", provisionalName,
			"authoritative", authoritative,
			"error", err,
		)
	}
}

// checkDuplicate consults the guard when one is configured. A guard hit is
// a conflict; a guard failure is logged and waved through, since duplicate
// rejection is a courtesy the ledger can also enforce.
func (s *Service) checkDuplicate(ctx context.Context, hash string) error {
	if s.guard == nil {
		return nil
	}
	seen, err := s.guard.Seen(ctx, hash)
	if err != nil {
		s.logger.WarnContext(ctx, "duplicate guard check failed", "error", err)
		return nil
	}
	if seen {
		s.regMetrics.DuplicatesRejected.Inc()
		return dErrors.Newf(dErrors.CodeConflict, "identical content already submitted (hash %s)", hash)
	}
	return nil
}

func (s *Service) markDuplicate(ctx context.Context, hash string) {
	if s.guard == nil {
		return
	}
	if err := s.guard.Mark(ctx, hash); err != nil {
		s.logger.WarnContext(ctx, "duplicate guard mark failed", "error", err)
	}
}

func versionString(v uint64) string {
	return strconv.FormatUint(v, 10)
}
