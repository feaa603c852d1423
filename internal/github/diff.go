package github

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/rust-lang/sync-team/internal/plan"
	"github.com/rust-lang/sync-team/internal/team"
)

// DiffOrg computes the Actions that move one org's live state toward
// its desired state. It is a pure function: no I/O, no hidden state,
// and identical inputs always produce the identical Action sequence
// (the confirmation hash depends on this).
//
// Per entity kind:
//   - desired but not live: one CreateEntity, followed by the
//     relations expressed against its Pending identity
//   - present in both: one EditField per differing managed field
//   - live but not desired: relations (memberships, grants,
//     protection rules) are removed; teams and repositories
//     themselves are never deleted
func DiffOrg(desired team.Org, live *OrgState) []plan.Action {
	var actions []plan.Action
	for _, dt := range desired.Teams {
		actions = append(actions, diffTeam(desired.Name, dt, live)...)
	}
	for _, dr := range desired.Repos {
		actions = append(actions, diffRepo(desired.Name, dr, live)...)
	}
	return actions
}

func diffTeam(org string, dt team.Team, live *OrgState) []plan.Action {
	slug := TeamSlug(dt.Name)
	path := org + "/" + slug

	lt, exists := live.Teams[slug]
	var identity plan.Identity
	var actions []plan.Action
	if !exists {
		identity = plan.Pending(path)
		actions = append(actions, plan.Action{
			Kind:   plan.CreateEntity,
			Entity: plan.EntityTeam,
			Target: identity,
			Slug:   path,
			Attrs: map[string]any{
				"name":        dt.Name,
				"description": dt.Description,
				"privacy":     dt.Privacy,
			},
		})
	} else {
		identity = plan.Committed(strconv.FormatInt(lt.ID, 10))
		actions = append(actions, editField(plan.EntityTeam, identity, path, "name", lt.Name, dt.Name)...)
		actions = append(actions, editField(plan.EntityTeam, identity, path, "description", lt.Description, dt.Description)...)
		actions = append(actions, editField(plan.EntityTeam, identity, path, "privacy", string(lt.Privacy), dt.Privacy)...)
	}

	members := live.TeamMembers[slug]
	invites := live.TeamInvites[slug]

	sorted := slices.Clone(dt.Members)
	slices.SortFunc(sorted, func(a, b team.Member) int {
		return cmp.Compare(a.ID, b.ID)
	})

	desiredIDs := make(map[int64]bool, len(sorted))
	for _, dm := range sorted {
		desiredIDs[dm.ID] = true
		login := live.Usernames[dm.ID]
		if login == "" {
			login = dm.Name
		}
		// GitHub forces org owners to be team maintainers, so the
		// expected role for an owner is maintainer regardless of the
		// desired role; diffing the raw role would flap forever.
		role := dm.Role
		if live.Owners[dm.ID] {
			role = string(RoleMaintainer)
		}
		lm, present := members[dm.ID]
		switch {
		case !present && invites[login]:
			// Invited but not yet accepted counts as present; nothing
			// to do until the invitation resolves.
		case !present:
			actions = append(actions, plan.Action{
				Kind:    plan.AddRelation,
				Entity:  plan.EntityMembership,
				Target:  identity,
				Slug:    path,
				Related: login,
				Attrs:   map[string]any{"role": role},
			})
		case string(lm.Role) != role:
			actions = append(actions, plan.Action{
				Kind:    plan.EditField,
				Entity:  plan.EntityMembership,
				Target:  identity,
				Slug:    path,
				Field:   "role",
				Old:     string(lm.Role),
				New:     role,
				Related: lm.Login,
			})
		}
	}

	var removeIDs []int64
	for id := range members {
		if !desiredIDs[id] {
			removeIDs = append(removeIDs, id)
		}
	}
	slices.Sort(removeIDs)
	for _, id := range removeIDs {
		actions = append(actions, plan.Action{
			Kind:    plan.RemoveRelation,
			Entity:  plan.EntityMembership,
			Target:  identity,
			Slug:    path,
			Related: members[id].Login,
		})
	}
	return actions
}

func diffRepo(org string, dr team.Repo, live *OrgState) []plan.Action {
	path := org + "/" + dr.Name

	lr, exists := live.Repos[dr.Name]
	var identity plan.Identity
	var repoNodeID string
	var actions []plan.Action
	if !exists {
		identity = plan.Pending(path)
		actions = append(actions, plan.Action{
			Kind:   plan.CreateEntity,
			Entity: plan.EntityRepository,
			Target: identity,
			Slug:   path,
			Attrs: map[string]any{
				"name":        dr.Name,
				"description": dr.Description,
				"homepage":    dr.Homepage,
			},
		})
	} else {
		identity = plan.Committed(strconv.FormatInt(lr.ID, 10))
		repoNodeID = lr.NodeID
		actions = append(actions, editField(plan.EntityRepository, identity, path, "description", lr.Description, dr.Description)...)
		actions = append(actions, editField(plan.EntityRepository, identity, path, "homepage", lr.Homepage, dr.Homepage)...)
		actions = append(actions, editFieldBool(plan.EntityRepository, identity, path, "archived", lr.Archived, dr.Archived)...)
	}

	actions = append(actions, diffGrants(identity, path, "team", dr.Teams, teamGrants(live.RepoTeams[dr.Name]))...)
	actions = append(actions, diffGrants(identity, path, "user", dr.Members, userGrants(live.RepoCollaborators[dr.Name]))...)
	actions = append(actions, diffProtections(identity, path, repoNodeID, dr.BranchProtections, live.Protections[dr.Name])...)
	return actions
}

// diffGrants reconciles access grants (team or collaborator) on a
// repository. kind distinguishes the two because the write endpoints
// differ, but the diff logic is identical.
func diffGrants(repo plan.Identity, path, kind string, desired []team.Permission, liveGrants map[string]string) []plan.Action {
	var actions []plan.Action
	wanted := make(map[string]bool, len(desired))
	for _, grant := range desired {
		wanted[grant.Name] = true
		current, present := liveGrants[grant.Name]
		switch {
		case !present:
			actions = append(actions, plan.Action{
				Kind:    plan.AddRelation,
				Entity:  plan.EntityRepoPermission,
				Target:  repo,
				Slug:    path,
				Related: kind + ":" + grant.Name,
				Attrs:   map[string]any{"permission": grant.Permission},
			})
		case current != grant.Permission:
			actions = append(actions, plan.Action{
				Kind:    plan.EditField,
				Entity:  plan.EntityRepoPermission,
				Target:  repo,
				Slug:    path,
				Field:   "permission",
				Old:     current,
				New:     grant.Permission,
				Related: kind + ":" + grant.Name,
			})
		}
	}

	var removals []string
	for name := range liveGrants {
		if !wanted[name] {
			removals = append(removals, name)
		}
	}
	slices.Sort(removals)
	for _, name := range removals {
		actions = append(actions, plan.Action{
			Kind:    plan.RemoveRelation,
			Entity:  plan.EntityRepoPermission,
			Target:  repo,
			Slug:    path,
			Related: kind + ":" + name,
		})
	}
	return actions
}

func diffProtections(repo plan.Identity, path, repoNodeID string, desired []team.BranchProtection, liveRules map[string]BranchProtection) []plan.Action {
	var actions []plan.Action
	wanted := make(map[string]bool, len(desired))
	for _, dp := range desired {
		wanted[dp.Pattern] = true
		rulePath := path + "#" + dp.Pattern
		lp, present := liveRules[dp.Pattern]
		if !present {
			actions = append(actions, plan.Action{
				Kind:    plan.AddRelation,
				Entity:  plan.EntityBranchProtection,
				Target:  repo,
				Slug:    path,
				Related: dp.Pattern,
				Attrs: map[string]any{
					"repository_id":      repoNodeID,
					"pattern":            dp.Pattern,
					"required_approvals": dp.RequiredApprovals,
					"dismiss_stale":      dp.DismissStale,
					"admin_enforced":     dp.AdminEnforced,
					"required_checks":    sortedCopy(dp.RequiredChecks),
					"push_allowances":    sortedCopy(dp.PushAllowances),
				},
			})
			continue
		}

		rule := plan.Committed(lp.ID)
		actions = append(actions, editFieldBool(plan.EntityBranchProtection, rule, rulePath, "admin_enforced", lp.AdminEnforced, dp.AdminEnforced)...)
		actions = append(actions, editFieldBool(plan.EntityBranchProtection, rule, rulePath, "dismiss_stale", lp.DismissStale, dp.DismissStale)...)
		if lp.RequiredApprovals != dp.RequiredApprovals {
			actions = append(actions, plan.Action{
				Kind:   plan.EditField,
				Entity: plan.EntityBranchProtection,
				Target: rule,
				Slug:   rulePath,
				Field:  "required_approvals",
				Old:    lp.RequiredApprovals,
				New:    dp.RequiredApprovals,
			})
		}
		// Check and allowance lists are compared as sets: the
		// platform does not guarantee a stable order.
		if !slices.Equal(sortedCopy(lp.RequiredChecks), sortedCopy(dp.RequiredChecks)) {
			actions = append(actions, plan.Action{
				Kind:   plan.EditField,
				Entity: plan.EntityBranchProtection,
				Target: rule,
				Slug:   rulePath,
				Field:  "required_checks",
				Old:    sortedCopy(lp.RequiredChecks),
				New:    sortedCopy(dp.RequiredChecks),
			})
		}
		if !slices.Equal(sortedCopy(lp.PushAllowances), sortedCopy(dp.PushAllowances)) {
			actions = append(actions, plan.Action{
				Kind:   plan.EditField,
				Entity: plan.EntityBranchProtection,
				Target: rule,
				Slug:   rulePath,
				Field:  "push_allowances",
				Old:    sortedCopy(lp.PushAllowances),
				New:    sortedCopy(dp.PushAllowances),
			})
		}
	}

	var removals []string
	for pattern := range liveRules {
		if !wanted[pattern] {
			removals = append(removals, pattern)
		}
	}
	slices.Sort(removals)
	for _, pattern := range removals {
		actions = append(actions, plan.Action{
			Kind:    plan.RemoveRelation,
			Entity:  plan.EntityBranchProtection,
			Target:  repo,
			Slug:    path,
			Related: pattern,
			Attrs:   map[string]any{"rule_id": liveRules[pattern].ID},
		})
	}
	return actions
}

func editField(entity plan.EntityKind, target plan.Identity, path, field, old, new string) []plan.Action {
	if old == new {
		return nil
	}
	return []plan.Action{{
		Kind:   plan.EditField,
		Entity: entity,
		Target: target,
		Slug:   path,
		Field:  field,
		Old:    old,
		New:    new,
	}}
}

func editFieldBool(entity plan.EntityKind, target plan.Identity, path, field string, old, new bool) []plan.Action {
	if old == new {
		return nil
	}
	return []plan.Action{{
		Kind:   plan.EditField,
		Entity: entity,
		Target: target,
		Slug:   path,
		Field:  field,
		Old:    old,
		New:    new,
	}}
}

func teamGrants(grants []RepoTeam) map[string]string {
	m := make(map[string]string, len(grants))
	for _, g := range grants {
		m[g.Name] = g.Permission
	}
	return m
}

func userGrants(grants []RepoUser) map[string]string {
	m := make(map[string]string, len(grants))
	for _, g := range grants {
		m[g.Login] = g.Permission
	}
	return m
}

func sortedCopy(s []string) []string {
	c := slices.Clone(s)
	slices.Sort(c)
	if c == nil {
		c = []string{}
	}
	return c
}
