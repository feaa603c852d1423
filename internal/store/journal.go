package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rust-lang/sync-team/internal/executor"
	"github.com/rust-lang/sync-team/internal/plan"
)

// Run is one journaled run.
type Run struct {
	ID        string
	StartedAt time.Time
	DryRun    bool
	Hash      string
	Outcome   string
}

// RunJournal scopes journal writes to one run. It implements
// executor.Journal.
type RunJournal struct {
	store *Store
	runID string
}

// BeginRun inserts a run row and returns the journal scoped to it.
func (s *Store) BeginRun(dryRun bool) (*RunJournal, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, started_at, dry_run) VALUES (?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), dryRun,
	)
	if err != nil {
		return nil, fmt.Errorf("journal run: %w", err)
	}
	return &RunJournal{store: s, runID: id}, nil
}

// RunID returns the journaled run's id.
func (j *RunJournal) RunID() string { return j.runID }

// RecordAction journals one action outcome.
func (j *RunJournal) RecordAction(platform string, seq int, a plan.Action, status executor.Status, errMsg string) error {
	_, err := j.store.db.Exec(
		`INSERT OR REPLACE INTO actions (run_id, seq, platform, kind, entity, target, detail, status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, seq, platform, string(a.Kind), string(a.Entity), a.Slug, a.Describe(), string(status), errMsg,
	)
	if err != nil {
		return fmt.Errorf("journal action: %w", err)
	}
	return nil
}

// RecordConfirmation journals the gate decision for the run.
func (j *RunJournal) RecordConfirmation(state, hash, approver string) error {
	_, err := j.store.db.Exec(
		`INSERT OR REPLACE INTO confirmations (run_id, state, hash, approver) VALUES (?, ?, ?, ?)`,
		j.runID, state, hash, approver,
	)
	if err != nil {
		return fmt.Errorf("journal confirmation: %w", err)
	}
	return nil
}

// FinishRun records the run's final outcome and plan hash.
func (j *RunJournal) FinishRun(hash, outcome string) error {
	_, err := j.store.db.Exec(
		`UPDATE runs SET hash = ?, outcome = ? WHERE id = ?`,
		hash, outcome, j.runID,
	)
	if err != nil {
		return fmt.Errorf("finish journal run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at, dry_run, hash, outcome FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.DryRun, &r.Hash, &r.Outcome); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, started); perr == nil {
			r.StartedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ActionCounts returns how many actions a run recorded per status.
func (s *Store) ActionCounts(runID string) (map[string]int, error) {
	rows, err := s.db.Query(
		`SELECT status, COUNT(*) FROM actions WHERE run_id = ? GROUP BY status`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("count actions: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan action count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
