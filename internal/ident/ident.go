// Package ident provides stable identifiers for runs and queries:
// query hashing, run-id minting, and FI classification-code normalization.
package ident

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// QueryHash computes a stable 16-hex-char hash over a query string and its
// filters. The same query + filters always hash to the same value, so lane
// rankings for repeated searches land on the same sorted-set key.
//
// The payload is canonical JSON with sorted keys; filters may be nil.
func QueryHash(query string, filters any) string {
	if filters == nil {
		filters = map[string]any{}
	}
	payload := map[string]any{
		"q":       query,
		"filters": filters,
	}
	// encoding/json sorts map keys, which keeps the digest canonical.
	raw, err := json.Marshal(payload)
	if err != nil {
		// Filters are plain data; marshal only fails on exotic types.
		raw = []byte(query)
	}
	sum := sha1.Sum(raw)
	return hex.EncodeToString(sum[:])[:16]
}

// NewLaneRunID mints a run id for a lane run: "{lane}-{8 hex}".
// The suffix is drawn from crypto/rand; uniqueness within the store TTL is
// the operative requirement.
func NewLaneRunID(lane string) string {
	return fmt.Sprintf("%s-%s", lane, randomHex(4))
}

// NewFusionRunID mints a run id for a fusion run: "fusion-{10 hex}".
func NewFusionRunID() string {
	return fmt.Sprintf("fusion-%s", randomHex(5))
}

// randomHex returns 2*n hex characters from a cryptographically
// unpredictable source.
func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("ident: crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// NormalizeFI normalizes an FI classification code to subgroup form by
// stripping a trailing single-letter edition identifier.
//
//	"G06V10/82A" -> "G06V10/82"
//	"H04L1/00"   -> "H04L1/00" (unchanged)
//
// Normalization is idempotent.
func NormalizeFI(code string) string {
	c := strings.ToUpper(strings.TrimSpace(code))
	if c == "" {
		return ""
	}
	if len(c) > 1 && isAlpha(c[len(c)-1]) && isDigit(c[len(c)-2]) {
		return c[:len(c)-1]
	}
	return c
}

// NormalizeFIList maps NormalizeFI over a code list, dropping empties and
// preserving first-seen order without duplicates.
func NormalizeFIList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		norm := NormalizeFI(code)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

func isAlpha(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
