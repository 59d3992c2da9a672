//go:build go1.18

package domain

import (
	"testing"
)

// FuzzParseBVCID verifies that parsing never panics on arbitrary input and
// that every accepted identifier round-trips through String exactly.
func FuzzParseBVCID(f *testing.F) {
	f.Add("BVC-ETH-2023-001")
	f.Add("BVC-AB-1990-0001")
	f.Add("BVC-POLYA-9999-12345")
	f.Add("")
	f.Add("BVC-ETH-2023-001\x00suffix")
	f.Add("'; DROP TABLE vulnerabilities;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseBVCID(input)
		if err != nil {
			return
		}
		if got := id.String(); got != input {
			t.Errorf("round-trip changed identifier: %q -> %q", input, got)
		}
		if IsLikelyBaseID(input) {
			t.Errorf("%q classified as both BVCID and BaseID", input)
		}
	})
}

// FuzzResolveBaseID checks the disambiguation invariant: every input maps to
// exactly one well-formed BaseID, raw keys pass through unchanged apart from
// case.
func FuzzResolveBaseID(f *testing.F) {
	f.Add("BVC-ETH-2023-001")
	f.Add(string(DeriveBaseID("seed")))
	f.Add("")

	f.Fuzz(func(t *testing.T, input string) {
		base := ResolveBaseID(input)
		if !IsLikelyBaseID(string(base)) {
			t.Errorf("resolved key %q is not a well-formed BaseID", base)
		}
		if ResolveBaseID(input) != base {
			t.Error("resolution is not deterministic")
		}
	})
}
