package confirm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-lang/sync-team/internal/plan"
)

func gateDiffs() []plan.Diff {
	return []plan.Diff{
		{
			Platform: "github",
			Actions: []plan.Action{{
				Kind:   plan.EditField,
				Entity: plan.EntityTeam,
				Target: plan.Committed("1"),
				Slug:   "rust-lang/lang",
				Field:  "privacy",
				Old:    "secret",
				New:    "closed",
			}},
		},
		{Platform: "zulip"},
	}
}

func TestDecideProposedWithoutApproval(t *testing.T) {
	rec, err := Decide(gateDiffs(), nil)
	require.NoError(t, err)
	assert.Equal(t, StateProposed, rec.State)
	assert.NotEmpty(t, rec.Hash)
	assert.Empty(t, rec.Approver)

	// An approval with an empty hash is no approval.
	rec, err = Decide(gateDiffs(), &Approval{Approver: "alice"})
	require.NoError(t, err)
	assert.Equal(t, StateProposed, rec.State)
}

func TestDecideApprovedOnMatchingHash(t *testing.T) {
	hash, err := plan.CombinedHash(gateDiffs())
	require.NoError(t, err)

	rec, err := Decide(gateDiffs(), &Approval{Hash: hash, Approver: "alice"})
	require.NoError(t, err)
	assert.Equal(t, StateApproved, rec.State)
	assert.Equal(t, hash, rec.Hash)
	assert.Equal(t, "alice", rec.Approver)
}

func TestDecideStaleWhenPlanChanged(t *testing.T) {
	approvedHash, err := plan.CombinedHash(gateDiffs())
	require.NoError(t, err)

	// The plan drifts between review and execution.
	drifted := gateDiffs()
	drifted[0].Actions[0].New = "secret"

	rec, err := Decide(drifted, &Approval{Hash: approvedHash, Approver: "alice"})
	require.NoError(t, err)
	assert.Equal(t, StateStale, rec.State)
	assert.NotEqual(t, approvedHash, rec.Hash)
	// A stale record never carries the approver: their approval did
	// not cover this plan.
	assert.Empty(t, rec.Approver)
}

func TestRenderApprovalMessage(t *testing.T) {
	diffs := gateDiffs()
	hash, err := plan.CombinedHash(diffs)
	require.NoError(t, err)

	msg := RenderApprovalMessage(diffs, hash, "https://example.com/approve")
	assert.Contains(t, msg, "**github:**")
	assert.Contains(t, msg, "**zulip:**")
	assert.Contains(t, msg, "```text")
	assert.Contains(t, msg, "Hash: `"+hash+"`")
	assert.Contains(t, msg, "[Approve](https://example.com/approve/"+hash+") (requires authentication)")
}
