// Package confirm implements the approval checkpoint between diff
// computation and apply. An approval is a hash of the reviewed plan;
// the gate recomputes the hash of the plan about to execute and only
// lets the two match. Live state moving between review and execution
// therefore surfaces as drift, never as a silently different apply.
package confirm

import (
	"fmt"
	"strings"

	"github.com/rust-lang/sync-team/internal/plan"
)

// State is the gate's three-state machine. Proposed is the initial
// state; Approved and Stale are terminal.
type State string

const (
	// StateProposed: no approval supplied; the plan is published for
	// review and apply must not run.
	StateProposed State = "proposed"
	// StateApproved: the supplied approval hash equals the recomputed
	// hash of the current plan; apply may run.
	StateApproved State = "approved"
	// StateStale: an approval was supplied but the plan changed since
	// it was reviewed; apply must not run, a new cycle is required.
	StateStale State = "stale"
)

// Approval is the externally supplied out-of-band approval.
type Approval struct {
	Hash     string
	Approver string
}

// Record is the gate's decision for one run.
type Record struct {
	State    State
	Hash     string // recomputed hash of the current plan
	Approver string // set only when Approved
}

// Decide evaluates the gate for the given diffs. The hash is always
// recomputed from the diffs at decision time; a previously recorded
// intent is never trusted.
func Decide(diffs []plan.Diff, approval *Approval) (Record, error) {
	hash, err := plan.CombinedHash(diffs)
	if err != nil {
		return Record{}, fmt.Errorf("hash plan: %w", err)
	}
	if approval == nil || approval.Hash == "" {
		return Record{State: StateProposed, Hash: hash}, nil
	}
	if approval.Hash == hash {
		return Record{State: StateApproved, Hash: hash, Approver: approval.Approver}, nil
	}
	return Record{State: StateStale, Hash: hash}, nil
}

// Publisher delivers gate outcomes to the review channel.
type Publisher interface {
	// PublishProposal announces a plan awaiting approval.
	PublishProposal(diffs []plan.Diff, hash string) error
	// PublishStale announces that the plan changed since approval.
	PublishStale(diffs []plan.Diff, hash string) error
	// PublishApplied announces a successfully applied plan.
	PublishApplied(hash, approver string) error
}

// RenderApprovalMessage builds the review-channel body: each
// platform's plan in a fenced block, the hash, and the approval link
// embedding it.
func RenderApprovalMessage(diffs []plan.Diff, hash, baseURL string) string {
	var b strings.Builder
	for _, d := range diffs {
		fmt.Fprintf(&b, "\n**%s:**\n```text\n", d.Platform)
		d.Render(&b)
		b.WriteString("```")
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "Hash: `%s`\n", hash)
	fmt.Fprintf(&b, "[Approve](%s/%s) (requires authentication)\n", baseURL, hash)
	return b.String()
}
