package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bvcregistry/internal/registry/domain"
	"bvcregistry/internal/registry/models"
)

// Memory is an in-process Gateway with the contract's full semantics:
// per-(platform, year) sequence allocation, gapless version chains, a
// one-time BVCID assignment and creation-order listing. It backs unit tests
// and local development; it is not a persistence layer.
type Memory struct {
	mu        sync.RWMutex
	versions  map[domain.BaseID][]models.VulnerabilityRecord
	bvcByBase map[domain.BaseID]string
	baseByBVC map[string]domain.BaseID
	active    map[domain.BaseID]bool
	seq       map[string]int
	order     []domain.BaseID
	txCount   uint64
	block     uint64
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		versions:  make(map[domain.BaseID][]models.VulnerabilityRecord),
		bvcByBase: make(map[domain.BaseID]string),
		baseByBVC: make(map[string]domain.BaseID),
		active:    make(map[domain.BaseID]bool),
		seq:       make(map[string]int),
	}
}

// Submit appends a version under p.BaseID, allocating the BVCID and version 1
// on first contact. Contract-side re-validation happens before any state is
// touched so a revert leaves nothing behind.
func (m *Memory) Submit(_ context.Context, p SubmitParams) (models.SubmitResult, error) {
	if err := domain.ValidatePlatform(p.Platform); err != nil {
		return models.SubmitResult{}, &RevertError{Reason: "invalid platform"}
	}
	year, err := domain.ValidateDiscoveryDate(p.DiscoveryDate)
	if err != nil {
		return models.SubmitResult{}, &RevertError{Reason: "invalid discovery date"}
	}
	if p.ContentHash == "" {
		return models.SubmitResult{}, &RevertError{Reason: "empty content hash"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bvc, known := m.bvcByBase[p.BaseID]
	if !known {
		key := seqKey(p.Platform, year)
		m.seq[key]++
		bvc = domain.NewBVCID(p.Platform, year, m.seq[key]).String()
		m.bvcByBase[p.BaseID] = bvc
		m.baseByBVC[bvc] = p.BaseID
		m.active[p.BaseID] = true
		m.order = append(m.order, p.BaseID)
	}

	version := uint64(len(m.versions[p.BaseID]) + 1)
	m.versions[p.BaseID] = append(m.versions[p.BaseID], models.VulnerabilityRecord{
		BaseID:        p.BaseID,
		BVCID:         bvc,
		Version:       version,
		Title:         p.Title,
		Description:   p.Description,
		ContentHash:   p.ContentHash,
		Platform:      p.Platform,
		DiscoveryDate: p.DiscoveryDate,
	})

	return models.SubmitResult{BVCID: bvc, Version: version, Receipt: m.nextReceipt()}, nil
}

func (m *Memory) FetchLatest(_ context.Context, id string) (models.VulnerabilityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	base, err := m.resolve(id)
	if err != nil {
		return models.VulnerabilityRecord{}, err
	}
	chain := m.versions[base]
	return m.snapshot(chain[len(chain)-1]), nil
}

func (m *Memory) FetchVersion(_ context.Context, baseID domain.BaseID, version uint64) (models.VulnerabilityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain, ok := m.versions[baseID]
	if !ok {
		return models.VulnerabilityRecord{}, ErrNotFound
	}
	if version < 1 || version > uint64(len(chain)) {
		return models.VulnerabilityRecord{}, ErrVersionNotFound
	}
	return m.snapshot(chain[version-1]), nil
}

func (m *Memory) ListVersions(_ context.Context, baseID domain.BaseID) ([]VersionRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	chain, ok := m.versions[baseID]
	if !ok {
		return nil, ErrNotFound
	}
	refs := make([]VersionRef, len(chain))
	for i, rec := range chain {
		refs[i] = VersionRef{BVCID: rec.BVCID, Version: rec.Version}
	}
	return refs, nil
}

func (m *Memory) ListAll(_ context.Context) ([]domain.BaseID, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bases := make([]domain.BaseID, len(m.order))
	bvcs := make([]string, len(m.order))
	for i, base := range m.order {
		bases[i] = base
		bvcs[i] = m.bvcByBase[base]
	}
	return bases, bvcs, nil
}

// ListPage returns the 1-indexed page of BVCIDs in creation order. Pages
// past the end are empty, not an error, so callers can walk until exhausted.
func (m *Memory) ListPage(_ context.Context, page, pageSize int) ([]string, error) {
	if page < 1 || pageSize < 1 {
		return nil, &RevertError{Reason: "page and pageSize must be positive"}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	start := (page - 1) * pageSize
	if start >= len(m.order) {
		return []string{}, nil
	}
	end := min(start+pageSize, len(m.order))
	out := make([]string, 0, end-start)
	for _, base := range m.order[start:end] {
		out = append(out, m.bvcByBase[base])
	}
	return out, nil
}

// SetActive flips the logical active flag. Versions and content are
// untouched; status is not a property of any snapshot.
func (m *Memory) SetActive(_ context.Context, baseID domain.BaseID, isActive bool) (models.TxReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.versions[baseID]; !ok {
		return models.TxReceipt{}, ErrNotFound
	}
	m.active[baseID] = isActive
	return m.nextReceipt(), nil
}

// PreviewBVCID reports the identifier the next new vulnerability in
// (platform, year) would be assigned.
func (m *Memory) PreviewBVCID(_ context.Context, platform string, year int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return domain.NewBVCID(platform, year, m.seq[seqKey(platform, year)]+1).String(), nil
}

func (m *Memory) Health(context.Context) error { return nil }

// resolve must be called under the read lock.
func (m *Memory) resolve(id string) (domain.BaseID, error) {
	if domain.IsLikelyBaseID(id) {
		// Hex case is not significant; records are keyed lower case.
		base := domain.BaseID(strings.ToLower(id))
		if _, ok := m.versions[base]; !ok {
			return "", ErrNotFound
		}
		return base, nil
	}
	base, ok := m.baseByBVC[id]
	if !ok {
		return "", ErrNotFound
	}
	return base, nil
}

// snapshot stamps the logical active flag onto a stored version.
func (m *Memory) snapshot(rec models.VulnerabilityRecord) models.VulnerabilityRecord {
	rec.IsActive = m.active[rec.BaseID]
	return rec
}

func (m *Memory) nextReceipt() models.TxReceipt {
	m.txCount++
	m.block++
	return models.TxReceipt{
		TxHandle: fmt.Sprintf("0x%064x", m.txCount),
		BlockRef: fmt.Sprintf("%d", m.block),
	}
}

func seqKey(platform string, year int) string {
	return fmt.Sprintf("%s|%d", platform, year)
}
