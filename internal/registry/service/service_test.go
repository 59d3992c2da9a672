package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
	auditmem "bvcregistry/pkg/platform/audit/sink/memory"
)

var (
	appMetrics *metrics.Metrics
	regMetrics *regmetrics.Metrics
)

// Prometheus collectors register globally, so build them once for the
// whole package.
func TestMain(m *testing.M) {
	appMetrics = metrics.New()
	regMetrics = regmetrics.New()
	m.Run()
}

type fixture struct {
	svc     *Service
	ledger  ledger.Gateway
	content *content.Memory
	guard   *dedupe.MemoryGuard
	sink    *auditmem.Sink
}

func newFixture(t *testing.T, lg ledger.Gateway) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := content.NewMemory()
	guard := dedupe.NewMemoryGuard()
	sink := auditmem.New()
	pub := publisher.New(sink, logger)
	t.Cleanup(pub.Close)

	if lg == nil {
		lg = ledger.NewMemory()
	}
	svc := New(Options{
		Ledger:           lg,
		Content:          store,
		Guard:            guard,
		Audit:            pub,
		Logger:           logger,
		AppMetrics:       appMetrics,
		RegistryMetrics:  regMetrics,
		GatewayURL:       "https://ipfs.example/ipfs",
		FetchConcurrency: 4,
	})
	return &fixture{svc: svc, ledger: lg, content: store, guard: guard, sink: sink}
}

func createReq(id, title string) models.CreateRequest {
	return models.CreateRequest{
		ID:               id,
		Title:            title,
		Description:      "D",
		Platform:         "ETH",
		DiscoveryDate:    "2023-05-15",
		TechnicalDetails: "details for " + title,
	}
}

func TestCreateThenFetch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, createReq("vuln-one", "T"))
	require.NoError(t, err)
	assert.Regexp(t, `^BVC-ETH-2023-\d{3,5}$`, resp.Identifiers.BVCID)
	assert.Equal(t, "1", resp.Version)
	assert.NotEmpty(t, resp.Ledger.TxHandle)
	assert.NotEmpty(t, resp.Content.Hash)
	assert.Equal(t, "https://ipfs.example/ipfs/"+resp.Content.Hash, resp.Content.URL)

	view, err := f.svc.Fetch(ctx, resp.Identifiers.BVCID)
	require.NoError(t, err)
	assert.Equal(t, "1", view.Version)
	assert.Equal(t, "ETH", view.Platform)
	assert.Equal(t, "active", view.Status)
	assert.Contains(t, view.Content, "details for T")
	assert.Empty(t, view.ContentError)

	// Raw BaseID works at the same endpoint.
	byBase, err := f.svc.Fetch(ctx, resp.Identifiers.BaseID)
	require.NoError(t, err)
	assert.Equal(t, view.Identifiers, byBase.Identifiers)
}

func TestSecondEditCreatesVersionTwo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, createReq("vuln-two", "T"))
	require.NoError(t, err)

	second := createReq("vuln-two", "T")
	second.TechnicalDetails = "amended details"
	resp, err := f.svc.Create(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, "2", resp.Version)
	assert.Equal(t, first.Identifiers.BVCID, resp.Identifiers.BVCID, "BVCID is stable across versions")
	assert.NotEqual(t, first.Content.Hash, resp.Content.Hash)

	history, err := f.svc.Versions(ctx, resp.Identifiers.BVCID)
	require.NoError(t, err)
	require.Len(t, history.Versions, 2)
	assert.Equal(t, "1", history.Versions[0].Version)
	assert.Equal(t, "2", history.Versions[1].Version)
}

func TestFetchNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Fetch(context.Background(), "BVC-ZZZ-2099-99999")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestValidationFailsBeforeAnyCollaboratorCall(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, req := range []models.CreateRequest{
		{Description: "D", Platform: "ETH", DiscoveryDate: "2023-05-15"},          // missing title
		{Title: "T", Platform: "ETH", DiscoveryDate: "2023-05-15"},                // missing description
		{Title: "T", Description: "D", Platform: "eth", DiscoveryDate: "2023"},    // bad platform
		{Title: "T", Description: "D", Platform: "ETH", DiscoveryDate: "1989"},    // year too early
		{Title: "T", Description: "D", Platform: "ETH", DiscoveryDate: "2023-04-31"},
	} {
		_, err := f.svc.Create(ctx, req)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	}

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Zero(t, list.Total, "rejected input must not reach the ledger")
	assert.Empty(t, f.sink.Events(), "rejected input must not be audited")
}

func TestContentOutageDegradesRead(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, createReq("vuln-degraded", "T"))
	require.NoError(t, err)

	f.content.SetUnavailable(true)
	view, err := f.svc.Fetch(ctx, resp.Identifiers.BVCID)
	require.NoError(t, err, "content outage must not fail the read")
	assert.Equal(t, "1", view.Version)
	assert.Empty(t, view.Content)
	assert.Equal(t, "content body unavailable", view.ContentError)
	assert.Equal(t, resp.Content.Hash, view.ContentHash, "ledger metadata still served")
}

func TestListPaginationReconstructsList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		_, err := f.svc.Create(ctx, createReq("vuln-"+title, title))
		require.NoError(t, err)
	}

	all, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, all.Total)

	var walked []string
	for page := 1; ; page++ {
		resp, err := f.svc.ListPage(ctx, page, 3)
		require.NoError(t, err)
		if len(resp.Items) == 0 {
			break
		}
		for _, item := range resp.Items {
			walked = append(walked, item.Identifiers.BVCID)
		}
	}
	expected := make([]string, 0, all.Total)
	for _, item := range all.Items {
		expected = append(expected, item.Identifiers.BVCID)
	}
	assert.Equal(t, expected, walked)

	_, err = f.svc.ListPage(ctx, 0, 3)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	_, err = f.svc.ListPage(ctx, 1, 0)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	_, err = f.svc.ListPage(ctx, 1, maxPageSize+1)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestListByPlatform(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, createReq("eth-vuln", "T"))
	require.NoError(t, err)

	solReq := createReq("sol-vuln", "T")
	solReq.Platform = "SOL"
	_, err = f.svc.Create(ctx, solReq)
	require.NoError(t, err)

	resp, err := f.svc.ListByPlatform(ctx, "SOL")
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "SOL", resp.Items[0].Platform)

	_, err = f.svc.ListByPlatform(ctx, "sol")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func TestStatusToggleIndependence(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, createReq("toggle", "T"))
	require.NoError(t, err)

	off, err := f.svc.SetStatus(ctx, created.Identifiers.BVCID, false)
	require.NoError(t, err)
	assert.False(t, off.IsActive)
	assert.NotEmpty(t, off.Ledger.TxHandle)

	on, err := f.svc.SetStatus(ctx, created.Identifiers.BaseID, true)
	require.NoError(t, err)
	assert.True(t, on.IsActive)

	view, err := f.svc.Fetch(ctx, created.Identifiers.BVCID)
	require.NoError(t, err)
	assert.Equal(t, "1", view.Version, "toggling must not change the version")
	assert.Equal(t, created.Content.Hash, view.ContentHash, "toggling must not change the content hash")
	assert.Equal(t, "active", view.Status)

	_, err = f.svc.SetStatus(ctx, "BVC-ZZZ-2099-99999", false)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestDuplicateContentRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	req := createReq("dup-a", "T")
	_, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	// Different logical vulnerability, byte-identical content.
	req.ID = "dup-b"
	_, err = f.svc.Create(ctx, req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	// The rejected submission never reached the ledger.
	_, err = f.ledger.FetchLatest(ctx, string(domain.ResolveBaseID("dup-b")))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, createReq("audited", "T"))
	require.NoError(t, err)
	_, err = f.svc.SetStatus(ctx, created.Identifiers.BVCID, false)
	require.NoError(t, err)

	events := f.sink.Events()
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionVulnerabilityCreated, events[0].Action)
	assert.Equal(t, uint64(1), events[0].Version)
	assert.Equal(t, audit.ActionStatusChanged, events[1].Action)
	require.NotNil(t, events[1].IsActive)
	assert.False(t, *events[1].IsActive)
	for _, e := range events {
		assert.Equal(t, created.Identifiers.BVCID, e.BVCID)
		assert.NotEmpty(t, e.TxHandle)
	}
}

// previewlessLedger simulates a contract revision without the sequence
// preview so the placeholder-then-reconcile path runs.
type previewlessLedger struct {
	*ledger.Memory
}

func (p previewlessLedger) PreviewBVCID(context.Context, string, int) (string, error) {
	return "", ledger.ErrPreviewUnsupported
}

func TestCreateReconcilesPlaceholderName(t *testing.T) {
	f := newFixture(t, previewlessLedger{ledger.NewMemory()})
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, createReq("reconcile-me", "T"))
	require.NoError(t, err)

	// The re-upload renamed the blob to the authoritative BVCID.
	assert.Equal(t, resp.Identifiers.BVCID+".json", f.content.Name(resp.Content.Hash))

	body, err := f.content.Get(ctx, resp.Content.Hash)
	require.NoError(t, err)
	assert.Contains(t, string(body), "details for T")
}

func TestCreateWithPreviewUploadsUnderFinalName(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp, err := f.svc.Create(ctx, createReq("previewed", "T"))
	require.NoError(t, err)
	assert.Equal(t, resp.Identifiers.BVCID+".json", f.content.Name(resp.Content.Hash))
}

// downLedger fails every call; only Health matters to the tests using it.
type downLedger struct {
	ledger.Gateway
}

func (downLedger) Health(context.Context) error { return ledger.ErrUnreachable }

func TestHealth(t *testing.T) {
	t.Run("all up", func(t *testing.T) {
		f := newFixture(t, nil)
		resp, healthy := f.svc.Health(context.Background())
		assert.True(t, healthy)
		assert.Equal(t, "ok", resp.Status)
	})

	t.Run("content store down degrades but stays healthy", func(t *testing.T) {
		f := newFixture(t, nil)
		f.content.SetUnavailable(true)
		resp, healthy := f.svc.Health(context.Background())
		assert.True(t, healthy, "ledger is the authority")
		assert.Equal(t, "degraded", resp.Status)
		assert.Equal(t, "down", resp.ContentStore)
	})

	t.Run("ledger down is unhealthy even with content up", func(t *testing.T) {
		f := newFixture(t, downLedger{ledger.NewMemory()})
		resp, healthy := f.svc.Health(context.Background())
		assert.False(t, healthy)
		assert.Equal(t, "unavailable", resp.Status)
		assert.Equal(t, "down", resp.Ledger)
		assert.Equal(t, "up", resp.ContentStore)
	})
}
