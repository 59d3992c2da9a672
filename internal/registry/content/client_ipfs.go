package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "bvc_registry_content_call_duration_seconds",
	Help:    "Latency of content network calls by operation",
	Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
}, []string{"operation"})

// IPFSClient speaks the kubo HTTP RPC API of a pinning node. Uploads pin by
// default; fetches carry a short timeout so outages degrade reads instead of
// hanging them.
type IPFSClient struct {
	apiURL       string
	http         *http.Client
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// NewIPFSClient builds a Store against a node API endpoint, e.g.
// http://localhost:5001.
func NewIPFSClient(apiURL string, fetchTimeout time.Duration, logger *slog.Logger) *IPFSClient {
	return &IPFSClient{
		apiURL:       strings.TrimRight(apiURL, "/"),
		http:         &http.Client{Timeout: 60 * time.Second},
		fetchTimeout: fetchTimeout,
		logger:       logger,
	}
}

// Put adds data to the node under name and returns the reported CID.
func (c *IPFSClient) Put(ctx context.Context, data []byte, name string) (string, error) {
	defer observe("add")()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return "", fmt.Errorf("content: build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("content: build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("content: build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/add?pin=true", &body)
	if err != nil {
		return "", fmt.Errorf("content: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("%w: add returned %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var added struct {
		Hash string `json:"Hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("content: decode add response: %w", err)
	}
	if added.Hash == "" {
		return "", fmt.Errorf("content: add returned no hash")
	}
	return added.Hash, nil
}

// Get cats a blob by hash under the configured fetch timeout.
func (c *IPFSClient) Get(ctx context.Context, hash string) ([]byte, error) {
	defer observe("cat")()

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/cat?arg="+url.QueryEscape(hash), nil)
	if err != nil {
		return nil, fmt.Errorf("content: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: cat returned %d: %s", ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	return data, nil
}

// Health checks node reachability via the version endpoint.
func (c *IPFSClient) Health(ctx context.Context) error {
	defer observe("version")()

	ctx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/api/v0/version", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: version returned %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func observe(operation string) func() {
	start := time.Now()
	return func() {
		fetchDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
