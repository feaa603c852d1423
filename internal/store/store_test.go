package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-lang/sync-team/internal/executor"
	"github.com/rust-lang/sync-team/internal/plan"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	// Reopening applies pragmas and schema again without error.
	st, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestRunJournalRoundtrip(t *testing.T) {
	st := openTestStore(t)

	journal, err := st.BeginRun(true)
	require.NoError(t, err)
	assert.NotEmpty(t, journal.RunID())

	action := plan.Action{
		Kind:   plan.CreateEntity,
		Entity: plan.EntityTeam,
		Target: plan.Pending("rust-lang/lang"),
		Slug:   "rust-lang/lang",
		Attrs:  map[string]any{"name": "lang"},
	}
	require.NoError(t, journal.RecordAction("github", 0, action, executor.StatusDryRun, ""))
	require.NoError(t, journal.RecordConfirmation("approved", "abc123", "alice"))
	require.NoError(t, journal.FinishRun("abc123", "dry-run"))

	runs, err := st.ListRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, journal.RunID(), runs[0].ID)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, "abc123", runs[0].Hash)
	assert.Equal(t, "dry-run", runs[0].Outcome)
	assert.False(t, runs[0].StartedAt.IsZero())
}

func TestRecordActionReplaceIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	journal, err := st.BeginRun(false)
	require.NoError(t, err)

	action := plan.Action{
		Kind:   plan.EditField,
		Entity: plan.EntityTeam,
		Target: plan.Committed("1"),
		Slug:   "rust-lang/lang",
		Field:  "privacy",
		Old:    "secret",
		New:    "closed",
	}
	require.NoError(t, journal.RecordAction("github", 0, action, executor.StatusFailed, "boom"))
	require.NoError(t, journal.RecordAction("github", 0, action, executor.StatusApplied, ""))

	counts, err := st.ActionCounts(journal.RunID())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"applied": 1}, counts)
}

func TestActionCountsPerStatus(t *testing.T) {
	st := openTestStore(t)
	journal, err := st.BeginRun(false)
	require.NoError(t, err)

	action := plan.Action{Kind: plan.RemoveRelation, Entity: plan.EntityMembership, Target: plan.Committed("1"), Slug: "a", Related: "x"}
	require.NoError(t, journal.RecordAction("github", 0, action, executor.StatusApplied, ""))
	require.NoError(t, journal.RecordAction("github", 1, action, executor.StatusFailed, "boom"))
	require.NoError(t, journal.RecordAction("github", 2, action, executor.StatusSkipped, ""))
	require.NoError(t, journal.RecordAction("zulip", 0, action, executor.StatusApplied, ""))

	counts, err := st.ActionCounts(journal.RunID())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"applied": 2, "failed": 1, "skipped": 1}, counts)
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	st := openTestStore(t)

	var ids []string
	for i := 0; i < 3; i++ {
		journal, err := st.BeginRun(false)
		require.NoError(t, err)
		ids = append(ids, journal.RunID())
	}

	runs, err := st.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
