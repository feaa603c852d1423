package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefix for diff hashing. The version suffix enables a future
// serialization change without old and new hashes ever colliding.
const DomainDiff = "sync-team/diff/v1"

// Diff is the ordered list of Actions that moves one platform's live
// state toward the desired state.
//
// Ordering invariant: any Action that creates an entity precedes every
// Action that references that entity's identity. The executor replays
// Actions strictly in slice order.
type Diff struct {
	Platform string
	Actions  []Action
}

// Empty reports whether the Diff contains no Actions.
func (d Diff) Empty() bool { return len(d.Actions) == 0 }

// Hash computes the SHA-256 digest of the Diff over its canonical
// serialization. Any change to the content or order of Actions changes
// the hash; calling Hash twice on the same Diff returns the same
// digest. No timestamps or other run-local values participate.
func (d Diff) Hash() (string, error) {
	cv, err := d.canonicalValue()
	if err != nil {
		return "", err
	}
	canonical, err := MarshalCanonical(cv)
	if err != nil {
		return "", fmt.Errorf("diff %s: canonical marshal: %w", d.Platform, err)
	}
	return hashWithDomain(DomainDiff, canonical), nil
}

// CombinedHash hashes a sequence of per-platform Diffs as one unit, in
// the order given. The confirmation gate approves a whole run, not a
// single platform, so the run order is part of the digest.
func CombinedHash(diffs []Diff) (string, error) {
	all := make([]any, len(diffs))
	for i, d := range diffs {
		cv, err := d.canonicalValue()
		if err != nil {
			return "", err
		}
		all[i] = cv
	}
	canonical, err := MarshalCanonical(all)
	if err != nil {
		return "", fmt.Errorf("combined diffs: canonical marshal: %w", err)
	}
	return hashWithDomain(DomainDiff, canonical), nil
}

func (d Diff) canonicalValue() (map[string]any, error) {
	actions := make([]any, len(d.Actions))
	for i, a := range d.Actions {
		cv, err := a.canonicalValue()
		if err != nil {
			return nil, fmt.Errorf("diff %s: action %d: %w", d.Platform, i, err)
		}
		actions[i] = cv
	}
	return map[string]any{
		"platform": d.Platform,
		"actions":  actions,
	}, nil
}

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
