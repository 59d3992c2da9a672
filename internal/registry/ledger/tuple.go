package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"

	"bvcregistry/internal/registry/domain"
	"bvcregistry/internal/registry/models"
)

// The relayer forwards contract return values as positional JSON arrays in
// declaration order. The field count has grown across contract revisions
// (8, 9, then 11 entries); everything past the first nine is additions we
// do not consume. Decoding happens here and nowhere else.
const recordTupleLen = 9

// decodeRecordTuple maps one positional record tuple into the named struct.
func decodeRecordTuple(raw []json.RawMessage) (models.VulnerabilityRecord, error) {
	if len(raw) < recordTupleLen {
		return models.VulnerabilityRecord{}, fmt.Errorf("record tuple has %d fields, need %d", len(raw), recordTupleLen)
	}

	var (
		rec  models.VulnerabilityRecord
		base string
	)
	fields := []struct {
		name string
		dst  any
	}{
		{"baseId", &base},
		{"bvcId", &rec.BVCID},
		{"version", &rec.Version},
		{"title", &rec.Title},
		{"description", &rec.Description},
		{"contentHash", &rec.ContentHash},
		{"platform", &rec.Platform},
		{"discoveryDate", &rec.DiscoveryDate},
		{"isActive", &rec.IsActive},
	}
	for i, f := range fields {
		if err := json.Unmarshal(raw[i], f.dst); err != nil {
			// Contracts return uint256 versions as decimal strings once
			// they exceed JSON-safe integers; accept both encodings.
			if f.name == "version" {
				var s string
				if serr := json.Unmarshal(raw[i], &s); serr == nil {
					v, perr := strconv.ParseUint(s, 10, 64)
					if perr == nil {
						rec.Version = v
						continue
					}
				}
			}
			return models.VulnerabilityRecord{}, fmt.Errorf("record tuple field %d (%s): %w", i, f.name, err)
		}
	}
	rec.BaseID = domain.BaseID(base)
	return rec, nil
}
