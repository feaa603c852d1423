// Package executor replays an approved Diff against a platform's
// write client, strictly in Diff order, fail-fast and idempotently.
package executor

import (
	"fmt"
	"log/slog"

	"github.com/rust-lang/sync-team/internal/plan"
)

// Status is the outcome of one Action.
type Status string

const (
	// StatusApplied: the write succeeded (or was already satisfied).
	StatusApplied Status = "applied"
	// StatusDryRun: the write was simulated and logged.
	StatusDryRun Status = "dry-run"
	// StatusFailed: the write failed; it aborts the rest of the Diff.
	StatusFailed Status = "failed"
	// StatusSkipped: not attempted because an earlier Action failed.
	StatusSkipped Status = "skipped"
)

// Outcome is what an Applier reports back for one Action. RemoteID is
// set when a CreateEntity materialized the entity (or synthesized a
// placeholder under dry-run), and resolves the Pending identity that
// later Actions in the same Diff reference.
type Outcome struct {
	Status   Status
	RemoteID string
}

// Applier is a platform write client. Apply must be idempotent:
// replaying an Action whose target already matches its goal is a
// no-op, never an error.
type Applier interface {
	Apply(a plan.Action) (Outcome, error)
}

// Journal records per-action outcomes for the audit trail. A nil
// journal disables recording.
type Journal interface {
	RecordAction(platform string, seq int, a plan.Action, status Status, errMsg string) error
}

// ActionResult reports how far execution progressed, one entry per
// Action in the Diff.
type ActionResult struct {
	Seq    int
	Action plan.Action
	Status Status
	Err    error
}

// Apply replays the Diff in order. The first failing Action aborts the
// remainder (fail-fast, non-transactional); already-applied Actions
// are not rolled back. Because every Action is individually
// idempotent, re-running the same partially-satisfied Diff after
// fixing the cause converges to the same end state.
//
// Successful creates resolve their Pending identity; subsequent
// Actions referencing the same local key are rewritten to the
// Committed identity before being handed to the applier. Dry-run
// appliers synthesize a placeholder RemoteID so this resolution also
// happens (and gets reported) in a dry-run pass.
func Apply(d plan.Diff, applier Applier, journal Journal, log *slog.Logger) ([]ActionResult, error) {
	if log == nil {
		log = slog.Default()
	}
	results := make([]ActionResult, 0, len(d.Actions))
	resolved := make(map[string]string)

	var failed error
	for i, action := range d.Actions {
		if failed != nil {
			results = append(results, record(journal, log, d.Platform, i, action, StatusSkipped, nil))
			continue
		}

		if action.Target.IsPending() {
			if remote, ok := resolved[action.Target.LocalKey()]; ok {
				action.Target = action.Target.Resolve(remote)
			}
		}

		outcome, err := applier.Apply(action)
		if err != nil {
			failed = fmt.Errorf("%s: action %d (%s): %w", d.Platform, i, action.Describe(), err)
			results = append(results, record(journal, log, d.Platform, i, action, StatusFailed, err))
			continue
		}
		if action.Kind == plan.CreateEntity && outcome.RemoteID != "" {
			resolved[action.Target.LocalKey()] = outcome.RemoteID
		}
		results = append(results, record(journal, log, d.Platform, i, action, outcome.Status, nil))
	}
	return results, failed
}

func record(journal Journal, log *slog.Logger, platform string, seq int, a plan.Action, status Status, err error) ActionResult {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	if journal != nil {
		if jerr := journal.RecordAction(platform, seq, a, status, errMsg); jerr != nil {
			// The journal is an audit aid; losing a row is logged but
			// never aborts an apply already in flight.
			log.Warn("journal write failed", "platform", platform, "seq", seq, "error", jerr)
		}
	}
	switch status {
	case StatusFailed:
		log.Error("action failed", "platform", platform, "seq", seq, "action", a.Describe(), "error", err)
	case StatusSkipped:
		log.Warn("action skipped after failure", "platform", platform, "seq", seq, "action", a.Describe())
	default:
		log.Info("action", "platform", platform, "seq", seq, "status", status, "action", a.Describe())
	}
	return ActionResult{Seq: seq, Action: a, Status: status, Err: err}
}
