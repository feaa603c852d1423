package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDiff() Diff {
	return Diff{
		Platform: "github",
		Actions: []Action{
			{
				Kind:   CreateEntity,
				Entity: EntityTeam,
				Target: Pending("rust-lang/lang"),
				Slug:   "rust-lang/lang",
				Attrs: map[string]any{
					"name":        "lang",
					"description": "The language team",
					"privacy":     "closed",
				},
			},
			{
				Kind:    AddRelation,
				Entity:  EntityMembership,
				Target:  Pending("rust-lang/lang"),
				Slug:    "rust-lang/lang",
				Related: "alice",
				Attrs:   map[string]any{"role": "member"},
			},
			{
				Kind:   EditField,
				Entity: EntityRepository,
				Target: Committed("1234"),
				Slug:   "rust-lang/rust",
				Field:  "description",
				Old:    "old",
				New:    "new",
			},
		},
	}
}

func TestDiffHashStable(t *testing.T) {
	d := sampleDiff()

	first, err := d.Hash()
	require.NoError(t, err)
	assert.Len(t, first, 64)

	for i := 0; i < 20; i++ {
		again, err := sampleDiff().Hash()
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestDiffHashSensitiveToContent(t *testing.T) {
	base := sampleDiff()
	baseHash, err := base.Hash()
	require.NoError(t, err)

	changed := sampleDiff()
	changed.Actions[2].New = "different"
	changedHash, err := changed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, baseHash, changedHash)
}

func TestDiffHashSensitiveToOrder(t *testing.T) {
	base := sampleDiff()
	baseHash, err := base.Hash()
	require.NoError(t, err)

	reordered := sampleDiff()
	reordered.Actions[1], reordered.Actions[2] = reordered.Actions[2], reordered.Actions[1]
	reorderedHash, err := reordered.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, baseHash, reorderedHash)
}

func TestDiffHashDistinguishesIdentityVariant(t *testing.T) {
	pending := Diff{Platform: "github", Actions: []Action{{
		Kind:   EditField,
		Entity: EntityTeam,
		Target: Pending("42"),
		Slug:   "rust-lang/lang",
		Field:  "privacy",
		Old:    "secret",
		New:    "closed",
	}}}
	committed := pending
	committed.Actions = []Action{pending.Actions[0]}
	committed.Actions[0].Target = Committed("42")

	ph, err := pending.Hash()
	require.NoError(t, err)
	ch, err := committed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ph, ch)
}

func TestDiffHashRejectsFloatValues(t *testing.T) {
	d := Diff{Platform: "github", Actions: []Action{{
		Kind:   EditField,
		Entity: EntityTeam,
		Target: Committed("1"),
		Slug:   "rust-lang/lang",
		Field:  "weight",
		Old:    1.5,
		New:    2.5,
	}}}

	_, err := d.Hash()
	assert.Error(t, err)
}

func TestCombinedHashOrderMatters(t *testing.T) {
	github := sampleDiff()
	zulip := Diff{Platform: "zulip"}

	forward, err := CombinedHash([]Diff{github, zulip})
	require.NoError(t, err)
	backward, err := CombinedHash([]Diff{zulip, github})
	require.NoError(t, err)
	assert.NotEqual(t, forward, backward)
}

func TestCombinedHashDiffersFromSingleHash(t *testing.T) {
	d := sampleDiff()

	single, err := d.Hash()
	require.NoError(t, err)
	combined, err := CombinedHash([]Diff{d})
	require.NoError(t, err)
	assert.NotEqual(t, single, combined)
}

func TestDiffEmpty(t *testing.T) {
	assert.True(t, Diff{Platform: "github"}.Empty())
	assert.False(t, sampleDiff().Empty())
}
