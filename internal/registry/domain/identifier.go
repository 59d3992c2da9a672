// Package domain holds the pure identifier and date logic of the registry.
// Nothing here performs I/O; the ledger and content gateways build on these
// primitives.
package domain

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/crypto/sha3"

	dErrors "bvcregistry/pkg/domain-errors"
)

// BaseID is the ledger's internal key for one logical vulnerability: the
// Keccak-256 of a human-chosen text identifier, hex encoded with an 0x
// prefix. Immutable once created, never reused.
type BaseID string

// BVCID is the human-readable identifier BVC-<PLATFORM>-<YEAR>-<SEQ>.
// Assigned once per BaseID at first submission and stable across versions.
type BVCID struct {
	Platform string
	Year     int
	Sequence int

	// seqWidth preserves the zero-padding of a parsed identifier so
	// String is the exact inverse of ParseBVCID.
	seqWidth int
}

var (
	bvcIDPattern  = regexp.MustCompile(`^BVC-([A-Z]{2,5})-(\d{4})-(\d{3,5})$`)
	baseIDPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	platformRe    = regexp.MustCompile(`^[A-Z]{2,5}$`)
)

// DeriveBaseID hashes a text identifier into the ledger key. Deterministic:
// the same text always yields the same BaseID. Keccak-256 matches the
// registry contract's own hashing, so keys derived off-chain and on-chain
// agree.
func DeriveBaseID(text string) BaseID {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(text))
	return BaseID("0x" + hex.EncodeToString(h.Sum(nil)))
}

// SynthesizeBaseID builds the key for a submission without a text
// identifier from the tuple the contract uses: platform, title and the
// submission timestamp (unix seconds).
func SynthesizeBaseID(platform, title string, submittedAt int64) BaseID {
	return DeriveBaseID(fmt.Sprintf("%s|%s|%d", platform, title, submittedAt))
}

// NewBVCID constructs an identifier with the default three-digit padding.
func NewBVCID(platform string, year, sequence int) BVCID {
	return BVCID{Platform: platform, Year: year, Sequence: sequence, seqWidth: 3}
}

// String renders the canonical BVC-<PLATFORM>-<YEAR>-<SEQ> form. The
// sequence keeps at least three digits and grows naturally past 999.
func (id BVCID) String() string {
	width := id.seqWidth
	if width < 3 {
		width = 3
	}
	return fmt.Sprintf("BVC-%s-%04d-%0*d", id.Platform, id.Year, width, id.Sequence)
}

// ParseBVCID validates s against the fixed grammar BVC-[A-Z]{2,5}-\d{4}-\d{3,5}
// and splits it into its parts. The result round-trips: id.String() == s.
func ParseBVCID(s string) (BVCID, error) {
	m := bvcIDPattern.FindStringSubmatch(s)
	if m == nil {
		return BVCID{}, dErrors.Newf(dErrors.CodeBadRequest, "id: %q does not match BVC-<PLATFORM>-<YEAR>-<SEQ>", s)
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return BVCID{}, dErrors.Newf(dErrors.CodeBadRequest, "id: bad year in %q", s)
	}
	seq, err := strconv.Atoi(m[3])
	if err != nil {
		return BVCID{}, dErrors.Newf(dErrors.CodeBadRequest, "id: bad sequence in %q", s)
	}
	return BVCID{Platform: m[1], Year: year, Sequence: seq, seqWidth: len(m[3])}, nil
}

// IsLikelyBaseID reports whether s has the fixed-length 0x-hex shape of a
// BaseID. Endpoints that accept either identifier kind disambiguate here,
// in one place, instead of repeating the heuristic per call site.
func IsLikelyBaseID(s string) bool {
	return baseIDPattern.MatchString(s)
}

// ResolveBaseID maps an arbitrary client-supplied identifier to a ledger
// key: raw BaseIDs pass through (normalized to lower case); anything else,
// a BVCID or a legacy text identifier, is hashed.
func ResolveBaseID(id string) BaseID {
	if IsLikelyBaseID(id) {
		return BaseID("0x" + strings.ToLower(id[2:]))
	}
	return DeriveBaseID(id)
}

// ValidatePlatform enforces the 2-5 uppercase-letter platform grammar.
func ValidatePlatform(platform string) error {
	if !platformRe.MatchString(platform) {
		return dErrors.Newf(dErrors.CodeBadRequest, "platform: %q must be 2-5 uppercase letters", platform)
	}
	return nil
}
