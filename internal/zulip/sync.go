package zulip

import (
	"log/slog"
	"slices"
	"strconv"

	"github.com/rust-lang/sync-team/internal/plan"
	"github.com/rust-lang/sync-team/internal/team"
)

// Platform is the name this service carries in Diffs and the journal.
const Platform = "zulip"

// Sync mirrors desired teams into Zulip user groups. Zulip accounts
// are matched to desired members by email; members without a known
// email are skipped with a warning, never guessed.
type Sync struct {
	api  *API
	orgs []team.Org
	log  *slog.Logger
}

func NewSync(api *API, orgs []team.Org, log *slog.Logger) *Sync {
	if log == nil {
		log = slog.Default()
	}
	return &Sync{api: api, orgs: orgs, log: log}
}

// DiffAll computes the Zulip Diff: one user group per desired team,
// across all orgs. Groups are managed by membership only; groups on
// the instance that no desired team names are left alone.
func (s *Sync) DiffAll() (plan.Diff, error) {
	users, err := s.api.Users()
	if err != nil {
		return plan.Diff{}, err
	}
	byEmail := make(map[string]int64, len(users))
	for _, u := range users {
		if u.Email != "" {
			byEmail[u.Email] = u.UserID
		}
	}

	groups, err := s.api.UserGroups()
	if err != nil {
		return plan.Diff{}, err
	}
	byName := make(map[string]UserGroup, len(groups))
	for _, g := range groups {
		byName[g.Name] = g
	}

	diff := plan.Diff{Platform: Platform}
	for _, org := range s.orgs {
		for _, t := range org.Teams {
			diff.Actions = append(diff.Actions, s.diffTeam(t, byEmail, byName)...)
		}
	}
	return diff, nil
}

// DiffGroups is the pure core of DiffAll, exposed for direct use with
// pre-fetched state.
func (s *Sync) diffTeam(t team.Team, byEmail map[string]int64, byName map[string]UserGroup) []plan.Action {
	desired := s.resolveMembers(t, byEmail)

	group, exists := byName[t.Name]
	var identity plan.Identity
	var actions []plan.Action
	var current map[int64]bool
	if !exists {
		identity = plan.Pending(Platform + "/" + t.Name)
		actions = append(actions, plan.Action{
			Kind:   plan.CreateEntity,
			Entity: plan.EntityUserGroup,
			Target: identity,
			Slug:   t.Name,
			Attrs: map[string]any{
				"name":        t.Name,
				"description": t.Description,
			},
		})
		current = map[int64]bool{}
	} else {
		identity = plan.Committed(strconv.FormatInt(group.ID, 10))
		current = make(map[int64]bool, len(group.Members))
		for _, id := range group.Members {
			current[id] = true
		}
	}

	for _, id := range desired {
		if !current[id] {
			actions = append(actions, plan.Action{
				Kind:    plan.AddRelation,
				Entity:  plan.EntityMembership,
				Target:  identity,
				Slug:    t.Name,
				Related: strconv.FormatInt(id, 10),
			})
		}
	}

	wanted := make(map[int64]bool, len(desired))
	for _, id := range desired {
		wanted[id] = true
	}
	var removals []int64
	for id := range current {
		if !wanted[id] {
			removals = append(removals, id)
		}
	}
	slices.Sort(removals)
	for _, id := range removals {
		actions = append(actions, plan.Action{
			Kind:    plan.RemoveRelation,
			Entity:  plan.EntityMembership,
			Target:  identity,
			Slug:    t.Name,
			Related: strconv.FormatInt(id, 10),
		})
	}
	return actions
}

// resolveMembers maps a desired member list to Zulip user ids, sorted
// for deterministic action order.
func (s *Sync) resolveMembers(t team.Team, byEmail map[string]int64) []int64 {
	var ids []int64
	for _, m := range t.Members {
		if m.Email == "" {
			s.log.Warn("desired member has no email, skipping on zulip", "team", t.Name, "member", m.Name)
			continue
		}
		id, ok := byEmail[m.Email]
		if !ok {
			s.log.Warn("no zulip account for desired member", "team", t.Name, "member", m.Name)
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

