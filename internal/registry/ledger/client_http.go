package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bvcregistry/internal/registry/domain"
	"bvcregistry/internal/registry/models"
)

var callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bvc_registry_ledger_call_duration_seconds",
	Help:    "Latency of ledger relayer calls by operation",
	Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"operation"})

// HTTPClient talks to the relayer that fronts the registry contract. The
// relayer submits transactions, waits for confirmation and surfaces
// contract reverts verbatim; retry and backoff are its business, not ours.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewHTTPClient builds a relayer-backed Gateway.
func NewHTTPClient(baseURL string, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger,
	}
}

type submitResponse struct {
	BVCID   string          `json:"bvcId"`
	Version json.Number     `json:"version"`
	TxHash  string          `json:"txHash"`
	Block   string          `json:"blockRef"`
	Record  json.RawMessage `json:"record,omitempty"`
}

// Submit sends one submission transaction and waits for confirmation.
func (c *HTTPClient) Submit(ctx context.Context, p SubmitParams) (models.SubmitResult, error) {
	defer observe("submit")()

	body := map[string]string{
		"baseId":        string(p.BaseID),
		"title":         p.Title,
		"description":   p.Description,
		"contentHash":   p.ContentHash,
		"platform":      p.Platform,
		"discoveryDate": p.DiscoveryDate,
	}
	var resp submitResponse
	if err := c.do(ctx, http.MethodPost, "/registry/vulnerabilities", body, &resp); err != nil {
		return models.SubmitResult{}, err
	}
	version, err := strconv.ParseUint(resp.Version.String(), 10, 64)
	if err != nil {
		return models.SubmitResult{}, fmt.Errorf("ledger: bad version %q in submit response: %w", resp.Version, err)
	}
	return models.SubmitResult{
		BVCID:   resp.BVCID,
		Version: version,
		Receipt: models.TxReceipt{TxHandle: resp.TxHash, BlockRef: resp.Block},
	}, nil
}

// FetchLatest resolves either identifier kind; the contract keeps a
// bvcId-to-baseId index of its own.
func (c *HTTPClient) FetchLatest(ctx context.Context, id string) (models.VulnerabilityRecord, error) {
	defer observe("fetch_latest")()

	var tuple []json.RawMessage
	path := "/registry/vulnerabilities/" + url.PathEscape(id) + "/latest"
	if err := c.do(ctx, http.MethodGet, path, nil, &tuple); err != nil {
		return models.VulnerabilityRecord{}, err
	}
	return decodeRecordTuple(tuple)
}

func (c *HTTPClient) FetchVersion(ctx context.Context, baseID domain.BaseID, version uint64) (models.VulnerabilityRecord, error) {
	defer observe("fetch_version")()

	var tuple []json.RawMessage
	path := fmt.Sprintf("/registry/vulnerabilities/%s/versions/%d", url.PathEscape(string(baseID)), version)
	if err := c.do(ctx, http.MethodGet, path, nil, &tuple); err != nil {
		return models.VulnerabilityRecord{}, err
	}
	return decodeRecordTuple(tuple)
}

func (c *HTTPClient) ListVersions(ctx context.Context, baseID domain.BaseID) ([]VersionRef, error) {
	defer observe("list_versions")()

	var resp struct {
		Versions []struct {
			BVCID   string `json:"bvcId"`
			Version uint64 `json:"version"`
		} `json:"versions"`
	}
	path := "/registry/vulnerabilities/" + url.PathEscape(string(baseID)) + "/versions"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	refs := make([]VersionRef, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		refs = append(refs, VersionRef{BVCID: v.BVCID, Version: v.Version})
	}
	return refs, nil
}

func (c *HTTPClient) ListAll(ctx context.Context) ([]domain.BaseID, []string, error) {
	defer observe("list_all")()

	var resp struct {
		BaseIDs []string `json:"baseIds"`
		BVCIDs  []string `json:"bvcIds"`
	}
	if err := c.do(ctx, http.MethodGet, "/registry/vulnerabilities", nil, &resp); err != nil {
		return nil, nil, err
	}
	if len(resp.BaseIDs) != len(resp.BVCIDs) {
		return nil, nil, fmt.Errorf("ledger: parallel id sequences differ in length (%d vs %d)", len(resp.BaseIDs), len(resp.BVCIDs))
	}
	bases := make([]domain.BaseID, len(resp.BaseIDs))
	for i, b := range resp.BaseIDs {
		bases[i] = domain.BaseID(b)
	}
	return bases, resp.BVCIDs, nil
}

func (c *HTTPClient) ListPage(ctx context.Context, page, pageSize int) ([]string, error) {
	defer observe("list_page")()

	var resp struct {
		BVCIDs []string `json:"bvcIds"`
	}
	path := fmt.Sprintf("/registry/vulnerabilities/page?page=%d&pageSize=%d", page, pageSize)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.BVCIDs, nil
}

func (c *HTTPClient) SetActive(ctx context.Context, baseID domain.BaseID, isActive bool) (models.TxReceipt, error) {
	defer observe("set_active")()

	body := map[string]any{"baseId": string(baseID), "isActive": isActive}
	var resp struct {
		TxHash string `json:"txHash"`
		Block  string `json:"blockRef"`
	}
	if err := c.do(ctx, http.MethodPost, "/registry/vulnerabilities/status", body, &resp); err != nil {
		return models.TxReceipt{}, err
	}
	return models.TxReceipt{TxHandle: resp.TxHash, BlockRef: resp.Block}, nil
}

// PreviewBVCID asks the relayer for the identifier the next submission in
// (platform, year) would receive. Older contract revisions do not expose
// the sequence counter; that surfaces as ErrPreviewUnsupported.
func (c *HTTPClient) PreviewBVCID(ctx context.Context, platform string, year int) (string, error) {
	defer observe("preview_bvcid")()

	var resp struct {
		BVCID string `json:"bvcId"`
	}
	path := fmt.Sprintf("/registry/sequence?platform=%s&year=%d", url.QueryEscape(platform), year)
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	if err != nil {
		var status *statusError
		if errors.Is(err, ErrNotFound) {
			return "", ErrPreviewUnsupported
		}
		if errors.As(err, &status) && status.code == http.StatusNotImplemented {
			return "", ErrPreviewUnsupported
		}
		return "", err
	}
	return resp.BVCID, nil
}

func (c *HTTPClient) Health(ctx context.Context) error {
	defer observe("health")()
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ledger: relayer returned %d: %s", e.code, e.body)
}

// do performs one relayer round-trip and maps transport and status failures
// onto the package's error vocabulary.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ledger: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ledger: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		if strings.Contains(path, "/versions/") {
			return ErrVersionNotFound
		}
		return ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		var revert struct {
			Reason string `json:"reason"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(raw, &revert); err != nil || revert.Reason == "" {
			revert.Reason = string(raw)
		}
		c.logger.WarnContext(ctx, "ledger transaction reverted", "path", path, "reason", revert.Reason)
		return &RevertError{Reason: revert.Reason}
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ledger: decode %s response: %w", path, err)
	}
	return nil
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		callDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
