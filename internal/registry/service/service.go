// Package service orchestrates the registry's operations across the ledger
// and content gateways. It holds no state of its own: every query
// round-trips to the collaborators, and the only cross-request facility is
// the optional duplicate-content guard in its external store.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"bvcregistry/internal/platform/metrics"
	"bvcregistry/internal/registry/content"
	"bvcregistry/internal/registry/domain"
	"bvcregistry/internal/registry/ledger"
	regmetrics "bvcregistry/internal/registry/metrics"
	"bvcregistry/internal/registry/models"
	"bvcregistry/internal/registry/store/dedupe"
	dErrors "bvcregistry/pkg/domain-errors"
	"bvcregistry/pkg/platform/audit"
	"bvcregistry/pkg/platform/audit/publisher"
)

const maxPageSize = 100

// Service implements the registry operations.
type Service struct {
	ledger  ledger.Gateway
	content content.Store
	guard   dedupe.Guard // nil when no external store is configured
	audit   *publisher.Publisher
	logger  *slog.Logger

	appMetrics *metrics.Metrics
	regMetrics *regmetrics.Metrics

	gatewayURL       string
	fetchConcurrency int

	now func() time.Time
}

// Options bundles the service's collaborators and tuning.
type Options struct {
	Ledger           ledger.Gateway
	Content          content.Store
	Guard            dedupe.Guard
	Audit            *publisher.Publisher
	Logger           *slog.Logger
	AppMetrics       *metrics.Metrics
	RegistryMetrics  *regmetrics.Metrics
	GatewayURL       string
	FetchConcurrency int
}

// New wires a Service.
func New(opts Options) *Service {
	concurrency := opts.FetchConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		ledger:           opts.Ledger,
		content:          opts.Content,
		guard:            opts.Guard,
		audit:            opts.Audit,
		logger:           opts.Logger,
		appMetrics:       opts.AppMetrics,
		regMetrics:       opts.RegistryMetrics,
		gatewayURL:       strings.TrimRight(opts.GatewayURL, "/"),
		fetchConcurrency: concurrency,
		now:              time.Now,
	}
}

// Fetch returns the latest version of one vulnerability by BVCID or raw
// BaseID. The content body is best effort: a content-network failure
// degrades the response to ledger metadata with an error annotation.
func (s *Service) Fetch(ctx context.Context, id string) (models.VulnerabilityView, error) {
	rec, err := s.ledger.FetchLatest(ctx, id)
	if err != nil {
		return models.VulnerabilityView{}, s.mapLedgerErr(ctx, err, "fetch latest")
	}
	return s.view(ctx, rec), nil
}

// List enumerates every registered vulnerability.
func (s *Service) List(ctx context.Context) (models.ListResponse, error) {
	_, bvcIDs, err := s.ledger.ListAll(ctx)
	if err != nil {
		return models.ListResponse{}, s.mapLedgerErr(ctx, err, "list all")
	}
	items := s.collect(ctx, bvcIDs)
	return models.ListResponse{Total: len(items), Items: items}, nil
}

// ListPage enumerates one 1-indexed page in the ledger's stable creation
// order, so walking pages reconstructs List exactly.
func (s *Service) ListPage(ctx context.Context, page, pageSize int) (models.ListResponse, error) {
	if page < 1 {
		return models.ListResponse{}, dErrors.New(dErrors.CodeBadRequest, "page: must be >= 1")
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return models.ListResponse{}, dErrors.Newf(dErrors.CodeBadRequest, "pageSize: must be between 1 and %d", maxPageSize)
	}
	bvcIDs, err := s.ledger.ListPage(ctx, page, pageSize)
	if err != nil {
		return models.ListResponse{}, s.mapLedgerErr(ctx, err, "list page")
	}
	items := s.collect(ctx, bvcIDs)
	return models.ListResponse{Total: len(items), Items: items}, nil
}

// ListByPlatform enumerates vulnerabilities whose BVCID carries the given
// platform. The platform component of the identifier is authoritative, so
// filtering happens before any detail fetch.
func (s *Service) ListByPlatform(ctx context.Context, platform string) (models.ListResponse, error) {
	if err := domain.ValidatePlatform(platform); err != nil {
		return models.ListResponse{}, err
	}
	_, bvcIDs, err := s.ledger.ListAll(ctx)
	if err != nil {
		return models.ListResponse{}, s.mapLedgerErr(ctx, err, "list all")
	}
	matched := make([]string, 0, len(bvcIDs))
	for _, bvc := range bvcIDs {
		id, err := domain.ParseBVCID(bvc)
		if err != nil {
			s.logger.WarnContext(ctx, "ledger returned unparseable bvc id", "bvc_id", bvc)
			continue
		}
		if id.Platform == platform {
			matched = append(matched, bvc)
		}
	}
	items := s.collect(ctx, matched)
	return models.ListResponse{Total: len(items), Items: items}, nil
}

// Versions returns the full version chain of one vulnerability in ascending
// order.
func (s *Service) Versions(ctx context.Context, id string) (models.VersionsResponse, error) {
	baseID, bvcID, err := s.resolve(ctx, id)
	if err != nil {
		return models.VersionsResponse{}, err
	}
	refs, err := s.ledger.ListVersions(ctx, baseID)
	if err != nil {
		return models.VersionsResponse{}, s.mapLedgerErr(ctx, err, "list versions")
	}

	views := make([]models.VulnerabilityView, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for i, ref := range refs {
		i, ref := i, ref
		g.Go(func() error {
			rec, err := s.ledger.FetchVersion(gctx, baseID, ref.Version)
			if err != nil {
				// Chain integrity is the ledger's invariant; a hole here
				// is worth surfacing, not papering over.
				return s.mapLedgerErr(gctx, err, "fetch version")
			}
			views[i] = s.view(gctx, rec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.VersionsResponse{}, err
	}

	return models.VersionsResponse{
		Identifiers: models.Identifiers{BVCID: bvcID, BaseID: string(baseID)},
		Versions:    views,
	}, nil
}

// SetStatus flips the logical active flag. No version is created and the
// content store is never touched.
func (s *Service) SetStatus(ctx context.Context, id string, isActive bool) (models.StatusResponse, error) {
	baseID, bvcID, err := s.resolve(ctx, id)
	if err != nil {
		return models.StatusResponse{}, err
	}
	receipt, err := s.ledger.SetActive(ctx, baseID, isActive)
	if err != nil {
		return models.StatusResponse{}, s.mapLedgerErr(ctx, err, "set active")
	}

	s.regMetrics.StatusToggles.Inc()
	s.emitAudit(ctx, audit.Event{
		Action:   audit.ActionStatusChanged,
		BVCID:    bvcID,
		BaseID:   string(baseID),
		IsActive: &isActive,
		TxHandle: receipt.TxHandle,
	})

	return models.StatusResponse{
		Identifiers: models.Identifiers{BVCID: bvcID, BaseID: string(baseID)},
		IsActive:    isActive,
		Ledger:      receipt,
	}, nil
}

// Health probes both collaborators independently. The ledger is the
// authority: the service is unhealthy whenever the ledger is unreachable,
// even with the content network up.
func (s *Service) Health(ctx context.Context) (models.HealthResponse, bool) {
	resp := models.HealthResponse{Status: "ok", Ledger: "up", ContentStore: "up"}
	healthy := true

	if err := s.ledger.Health(ctx); err != nil {
		s.logger.WarnContext(ctx, "ledger health check failed", "error", err)
		resp.Ledger = "down"
		resp.Status = "unavailable"
		healthy = false
	}
	s.appMetrics.CollaboratorUp.WithLabelValues("ledger").Set(boolToGauge(resp.Ledger == "up"))

	if err := s.content.Health(ctx); err != nil {
		s.logger.WarnContext(ctx, "content store health check failed", "error", err)
		resp.ContentStore = "down"
		if healthy {
			resp.Status = "degraded"
		}
	}
	s.appMetrics.CollaboratorUp.WithLabelValues("content_store").Set(boolToGauge(resp.ContentStore == "up"))

	return resp, healthy
}

// resolve maps a client-supplied identifier to the pair of ledger keys.
// Raw BaseIDs skip the ledger; anything else needs the ledger's own
// bvc-to-base index.
func (s *Service) resolve(ctx context.Context, id string) (domain.BaseID, string, error) {
	rec, err := s.ledger.FetchLatest(ctx, id)
	if err != nil {
		return "", "", s.mapLedgerErr(ctx, err, "resolve identifier")
	}
	return rec.BaseID, rec.BVCID, nil
}

// collect fetches the latest record and body for each BVCID, preserving
// input order. One item's failure annotates that item only; enumeration
// never drops entries.
func (s *Service) collect(ctx context.Context, bvcIDs []string) []models.VulnerabilityView {
	views := make([]models.VulnerabilityView, len(bvcIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)
	for i, bvc := range bvcIDs {
		i, bvc := i, bvc
		g.Go(func() error {
			rec, err := s.ledger.FetchLatest(gctx, bvc)
			if err != nil {
				s.logger.WarnContext(gctx, "detail fetch failed during enumeration", "bvc_id", bvc, "error", err)
				views[i] = models.VulnerabilityView{
					Identifiers:  models.Identifiers{BVCID: bvc},
					ContentError: "record unavailable",
				}
				return nil
			}
			views[i] = s.view(gctx, rec)
			return nil
		})
	}
	// Item failures are absorbed above; Wait only orders completion.
	_ = g.Wait()
	return views
}

// view combines a ledger record with its best-effort content body.
func (s *Service) view(ctx context.Context, rec models.VulnerabilityRecord) models.VulnerabilityView {
	body, err := s.content.Get(ctx, rec.ContentHash)
	if err != nil {
		s.appMetrics.ContentFetchMiss.Inc()
		s.logger.WarnContext(ctx, "content body fetch failed", "bvc_id", rec.BVCID, "content_hash", rec.ContentHash, "error", err)
	}
	return models.NewView(rec, body, s.contentURL(rec.ContentHash), err)
}

func (s *Service) contentURL(hash string) string {
	if s.gatewayURL == "" || hash == "" {
		return ""
	}
	return s.gatewayURL + "/" + hash
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit != nil {
		s.audit.Emit(ctx, event)
	}
}

// mapLedgerErr translates gateway errors into the domain taxonomy. Revert
// reasons ride along verbatim; they are the only diagnostics a contract
// rejection leaves behind.
func (s *Service) mapLedgerErr(ctx context.Context, err error, op string) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "vulnerability not found", err)
	case errors.Is(err, ledger.ErrVersionNotFound):
		return dErrors.Wrap(dErrors.CodeNotFound, "version not found", err)
	case errors.Is(err, ledger.ErrUnreachable):
		return dErrors.Wrap(dErrors.CodeUnavailable, "ledger unreachable", err)
	}
	var revert *ledger.RevertError
	if errors.As(err, &revert) {
		if isUniquenessRevert(revert.Reason) {
			return dErrors.Wrap(dErrors.CodeConflict, revert.Reason, err)
		}
		s.logger.ErrorContext(ctx, "unexpected ledger revert", "operation", op, "reason", revert.Reason)
		return dErrors.Wrap(dErrors.CodeInternal, "ledger revert: "+revert.Reason, err)
	}
	return dErrors.Wrap(dErrors.CodeInternal, op+" failed", err)
}

func isUniquenessRevert(reason string) bool {
	lower := strings.ToLower(reason)
	return strings.Contains(lower, "already") || strings.Contains(lower, "duplicate") || strings.Contains(lower, "exists")
}

func boolToGauge(up bool) float64 {
	if up {
		return 1
	}
	return 0
}
