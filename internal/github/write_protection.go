package github

import (
	"fmt"
	"strings"

	"github.com/rust-lang/sync-team/internal/executor"
	"github.com/rust-lang/sync-team/internal/plan"
)

const createProtectionMutation = `
	mutation($input: CreateBranchProtectionRuleInput!) {
		createBranchProtectionRule(input: $input) {
			branchProtectionRule {
				id
			}
		}
	}
`

const updateProtectionMutation = `
	mutation($input: UpdateBranchProtectionRuleInput!) {
		updateBranchProtectionRule(input: $input) {
			branchProtectionRule {
				id
			}
		}
	}
`

const deleteProtectionMutation = `
	mutation($input: DeleteBranchProtectionRuleInput!) {
		deleteBranchProtectionRule(input: $input) {
			clientMutationId
		}
	}
`

func (w *Writer) applyProtection(a plan.Action) (executor.Outcome, error) {
	if w.dryRun {
		return w.dry(a, "")
	}
	switch a.Kind {
	case plan.AddRelation:
		return w.createProtection(a)
	case plan.EditField:
		return w.updateProtection(a)
	case plan.RemoveRelation:
		ruleID := attrString(a.Attrs, "rule_id")
		if ruleID == "" {
			return executor.Outcome{}, fmt.Errorf("github: protection removal for %s %s carries no rule id", a.Slug, a.Related)
		}
		input := map[string]any{"branchProtectionRuleId": ruleID}
		if err := w.client.GraphQL(deleteProtectionMutation, map[string]any{"input": input}, nil); err != nil {
			return executor.Outcome{}, err
		}
		return executor.Outcome{Status: executor.StatusApplied}, nil
	}
	return executor.Outcome{}, fmt.Errorf("github: unsupported branch protection action %q", a.Kind)
}

func (w *Writer) createProtection(a plan.Action) (executor.Outcome, error) {
	repoNodeID := attrString(a.Attrs, "repository_id")
	if repoNodeID == "" {
		// The repository was created earlier in this run, so the
		// snapshot had no node id to embed. The mutation needs the
		// GraphQL node id, not the numeric id a create resolves to,
		// so look the repo up by name.
		org, name := splitSlug(a.Slug)
		repo, err := w.repoByName(org, name)
		if err != nil {
			return executor.Outcome{}, fmt.Errorf("github: resolving repository node id for %s: %w", a.Slug, err)
		}
		repoNodeID = repo.NodeID
	}

	checks := attrStrings(a.Attrs, "required_checks")
	allowances := attrStrings(a.Attrs, "push_allowances")
	approvals, _ := a.Attrs["required_approvals"].(int64)

	input := map[string]any{
		"repositoryId":                 repoNodeID,
		"pattern":                      attrString(a.Attrs, "pattern"),
		"isAdminEnforced":              a.Attrs["admin_enforced"] == true,
		"dismissesStaleReviews":        a.Attrs["dismiss_stale"] == true,
		"requiresApprovingReviews":     approvals > 0,
		"requiredApprovingReviewCount": approvals,
		"requiresStatusChecks":         len(checks) > 0,
		"requiredStatusCheckContexts":  checks,
	}
	if len(allowances) > 0 {
		actorIDs, err := w.resolveActorIDs(allowances)
		if err != nil {
			return executor.Outcome{}, err
		}
		input["restrictsPushes"] = true
		input["pushActorIds"] = actorIDs
	}
	if err := w.client.GraphQL(createProtectionMutation, map[string]any{"input": input}, nil); err != nil {
		return executor.Outcome{}, err
	}
	return executor.Outcome{Status: executor.StatusApplied}, nil
}

func (w *Writer) updateProtection(a plan.Action) (executor.Outcome, error) {
	input := map[string]any{"branchProtectionRuleId": a.Target.RemoteID()}
	switch a.Field {
	case "admin_enforced":
		input["isAdminEnforced"] = a.New == true
	case "dismiss_stale":
		input["dismissesStaleReviews"] = a.New == true
	case "required_approvals":
		approvals, _ := a.New.(int64)
		input["requiresApprovingReviews"] = approvals > 0
		input["requiredApprovingReviewCount"] = approvals
	case "required_checks":
		checks := anyStrings(a.New)
		input["requiresStatusChecks"] = len(checks) > 0
		input["requiredStatusCheckContexts"] = checks
	case "push_allowances":
		allowances := anyStrings(a.New)
		actorIDs, err := w.resolveActorIDs(allowances)
		if err != nil {
			return executor.Outcome{}, err
		}
		input["restrictsPushes"] = len(actorIDs) > 0
		input["pushActorIds"] = actorIDs
	default:
		return executor.Outcome{}, fmt.Errorf("github: unmanaged branch protection field %q", a.Field)
	}
	if err := w.client.GraphQL(updateProtectionMutation, map[string]any{"input": input}, nil); err != nil {
		return executor.Outcome{}, err
	}
	return executor.Outcome{Status: executor.StatusApplied}, nil
}

const userIDQuery = `
	query($login: String!) {
		user(login: $login) {
			id
		}
	}
`

const teamIDQuery = `
	query($org: String!, $team: String!) {
		organization(login: $org) {
			team(slug: $team) {
				id
			}
		}
	}
`

// resolveActorIDs maps push allowance names to GraphQL actor node
// ids. A name containing a slash is an org-qualified team; anything
// else is a user login.
func (w *Writer) resolveActorIDs(names []string) ([]string, error) {
	ids := make([]string, 0, len(names))
	for _, name := range names {
		if owner, teamName, isTeam := strings.Cut(name, "/"); isTeam {
			var resp struct {
				Organization *struct {
					Team *struct {
						ID string `json:"id"`
					} `json:"team"`
				} `json:"organization"`
			}
			vars := map[string]any{"org": owner, "team": TeamSlug(teamName)}
			if err := w.client.GraphQL(teamIDQuery, vars, &resp); err != nil {
				return nil, err
			}
			if resp.Organization == nil || resp.Organization.Team == nil {
				return nil, fmt.Errorf("github: push allowance team %q not found", name)
			}
			ids = append(ids, resp.Organization.Team.ID)
			continue
		}
		var resp struct {
			User *struct {
				ID string `json:"id"`
			} `json:"user"`
		}
		if err := w.client.GraphQL(userIDQuery, map[string]any{"login": name}, &resp); err != nil {
			return nil, err
		}
		if resp.User == nil {
			return nil, fmt.Errorf("github: push allowance user %q not found", name)
		}
		ids = append(ids, resp.User.ID)
	}
	return ids, nil
}

func attrStrings(attrs map[string]any, key string) []string {
	return anyStrings(attrs[key])
}

func anyStrings(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, elem := range val {
			if s, ok := elem.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
