package github

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/rust-lang/sync-team/internal/plan"
	"github.com/rust-lang/sync-team/internal/team"
)

// Platform is the name this service carries in Diffs and the journal.
const Platform = "github"

// Sync drives the GitHub pipeline: snapshot live state for every
// desired org, then diff. Apply happens through the Writer via the
// executor; Sync itself never writes.
type Sync struct {
	read    Read
	orgs    []team.Org
	ignored []string
	log     *slog.Logger
}

// NewSync builds the GitHub pipeline over the desired orgs. Orgs in
// ignored are excluded from reconciliation entirely.
func NewSync(read Read, orgs []team.Org, ignored []string, log *slog.Logger) *Sync {
	if log == nil {
		log = slog.Default()
	}
	return &Sync{read: read, orgs: orgs, ignored: ignored, log: log}
}

// DiffAll computes the full GitHub Diff across all non-ignored orgs,
// in declared org order. Any read error aborts: a partial snapshot
// must never produce a Diff.
func (s *Sync) DiffAll() (plan.Diff, error) {
	diff := plan.Diff{Platform: Platform}
	for _, org := range s.orgs {
		if slices.Contains(s.ignored, org.Name) {
			s.log.Info("skipping ignored org", "org", org.Name)
			continue
		}
		live, err := Snapshot(s.read, org)
		if err != nil {
			return plan.Diff{}, fmt.Errorf("snapshot org %s: %w", org.Name, err)
		}
		live.LogUnmanaged(org, s.log)
		diff.Actions = append(diff.Actions, DiffOrg(org, live)...)
	}
	return diff, nil
}
