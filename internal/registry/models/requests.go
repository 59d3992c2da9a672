package models

import (
	"strconv"

	dErrors "bvcregistry/pkg/domain-errors"
)

// CreateRequest is the body of POST /vulnerabilities. Technical fields
// beyond the required four travel to the content network untouched.
type CreateRequest struct {
	ID            string `json:"id,omitempty"` // optional text identifier for the logical vulnerability
	Title         string `json:"title"`
	Description   string `json:"description"`
	Platform      string `json:"platform"`
	DiscoveryDate string `json:"discoveryDate"`

	TechnicalDetails string            `json:"technicalDetails,omitempty"`
	ProofOfExploit   string            `json:"proofOfExploit,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// ValidateRequired checks field presence before any grammar validation so
// the error names the first missing field.
func (r CreateRequest) ValidateRequired() error {
	for _, f := range []struct{ name, value string }{
		{"title", r.Title},
		{"description", r.Description},
		{"platform", r.Platform},
		{"discoveryDate", r.DiscoveryDate},
	} {
		if f.value == "" {
			return dErrors.Newf(dErrors.CodeBadRequest, "%s: required field is missing", f.name)
		}
	}
	return nil
}

// StatusRequest is the body of POST /vulnerabilities/status.
type StatusRequest struct {
	ID       string `json:"id"`
	IsActive *bool  `json:"isActive"`
}

// Identifiers pairs the two keys of one logical vulnerability.
type Identifiers struct {
	BVCID  string `json:"bvcId"`
	BaseID string `json:"baseId"`
}

// ContentPointer locates a stored report body.
type ContentPointer struct {
	Hash string `json:"hash"`
	URL  string `json:"url,omitempty"`
}

// CreateResponse is returned with 201 on a confirmed submission.
type CreateResponse struct {
	Identifiers Identifiers    `json:"identifiers"`
	Version     string         `json:"version"`
	Ledger      TxReceipt      `json:"ledger"`
	Content     ContentPointer `json:"content"`
}

// VulnerabilityView is a record combined with its best-effort content body.
// ContentError is set instead of Content when the body could not be fetched;
// the record itself is still served.
type VulnerabilityView struct {
	Identifiers   Identifiers `json:"identifiers"`
	Version       string      `json:"version"`
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Platform      string      `json:"platform"`
	DiscoveryDate string      `json:"discoveryDate"`
	Status        string      `json:"status"`
	ContentHash   string      `json:"contentHash"`
	ContentURL    string      `json:"contentUrl,omitempty"`
	Content       string      `json:"content,omitempty"`
	ContentError  string      `json:"contentError,omitempty"`
}

// NewView builds the API view of a record. body may be nil when the content
// network was unreachable; fetchErr annotates why.
func NewView(rec VulnerabilityRecord, body []byte, contentURL string, fetchErr error) VulnerabilityView {
	v := VulnerabilityView{
		Identifiers:   Identifiers{BVCID: rec.BVCID, BaseID: string(rec.BaseID)},
		Version:       strconv.FormatUint(rec.Version, 10),
		Title:         rec.Title,
		Description:   rec.Description,
		Platform:      rec.Platform,
		DiscoveryDate: rec.DiscoveryDate,
		Status:        rec.Status(),
		ContentHash:   rec.ContentHash,
		ContentURL:    contentURL,
	}
	if fetchErr != nil {
		v.ContentError = "content body unavailable"
		return v
	}
	v.Content = string(body)
	return v
}

// ListResponse wraps enumeration results.
type ListResponse struct {
	Total int                 `json:"total"`
	Items []VulnerabilityView `json:"items"`
}

// VersionsResponse is the ordered version chain of one logical vulnerability.
type VersionsResponse struct {
	Identifiers Identifiers         `json:"identifiers"`
	Versions    []VulnerabilityView `json:"versions"`
}

// StatusResponse acknowledges a status toggle.
type StatusResponse struct {
	Identifiers Identifiers `json:"identifiers"`
	IsActive    bool        `json:"isActive"`
	Ledger      TxReceipt   `json:"ledger"`
}

// HealthResponse reports collaborator reachability independently.
type HealthResponse struct {
	Status       string `json:"status"`
	Ledger       string `json:"ledger"`
	ContentStore string `json:"contentStore"`
}
