package github

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rust-lang/sync-team/internal/executor"
	"github.com/rust-lang/sync-team/internal/httpclient"
	"github.com/rust-lang/sync-team/internal/plan"
)

// Writer replays GitHub Actions. Dry-run is a construction-time mode:
// a dry Writer logs every write as a no-op and synthesizes placeholder
// ids for creates, so the rest of the pass can still resolve
// references coherently.
type Writer struct {
	client *httpclient.Client
	dryRun bool
	log    *slog.Logger
}

// NewWriter builds a write client. With dryRun set, no request that
// mutates GitHub is ever issued.
func NewWriter(client *httpclient.Client, dryRun bool, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{client: client, dryRun: dryRun, log: log}
}

// Apply dispatches one Action to the matching write endpoint.
func (w *Writer) Apply(a plan.Action) (executor.Outcome, error) {
	switch a.Entity {
	case plan.EntityTeam:
		return w.applyTeam(a)
	case plan.EntityMembership:
		return w.applyMembership(a)
	case plan.EntityRepository:
		return w.applyRepo(a)
	case plan.EntityRepoPermission:
		return w.applyPermission(a)
	case plan.EntityBranchProtection:
		return w.applyProtection(a)
	}
	return executor.Outcome{}, fmt.Errorf("github: no write operation for entity %q", a.Entity)
}

func (w *Writer) applyTeam(a plan.Action) (executor.Outcome, error) {
	org, slug := splitSlug(a.Slug)
	switch a.Kind {
	case plan.CreateEntity:
		if w.dryRun {
			return w.dry(a, "dry-run:"+a.Target.LocalKey())
		}
		body := map[string]any{
			"name":        attrString(a.Attrs, "name"),
			"description": attrString(a.Attrs, "description"),
			"privacy":     attrString(a.Attrs, "privacy"),
		}
		var created Team
		err := w.client.Do(http.MethodPost, fmt.Sprintf("orgs/%s/teams", org), body, &created)
		if alreadyExists(err) {
			// Converged by an earlier partial run; adopt the live team.
			existing, gerr := w.teamBySlug(org, slug)
			if gerr != nil {
				return executor.Outcome{}, gerr
			}
			created = *existing
			err = nil
		}
		if err != nil {
			return executor.Outcome{}, err
		}
		return executor.Outcome{Status: executor.StatusApplied, RemoteID: fmt.Sprintf("%d", created.ID)}, nil

	case plan.EditField:
		if w.dryRun {
			return w.dry(a, "")
		}
		body := map[string]any{a.Field: a.New}
		if err := w.client.Do(http.MethodPatch, "teams/"+a.Target.RemoteID(), body, nil); err != nil {
			return executor.Outcome{}, err
		}
		return executor.Outcome{Status: executor.StatusApplied}, nil
	}
	return executor.Outcome{}, fmt.Errorf("github: unsupported team action %q", a.Kind)
}

func (w *Writer) applyMembership(a plan.Action) (executor.Outcome, error) {
	if w.dryRun {
		return w.dry(a, "")
	}
	url := fmt.Sprintf("teams/%s/memberships/%s", a.Target.RemoteID(), a.Related)
	switch a.Kind {
	case plan.AddRelation:
		// PUT is idempotent: setting an existing membership to the
		// same role is a no-op on the platform side.
		body := map[string]any{"role": attrString(a.Attrs, "role")}
		if err := w.client.Do(http.MethodPut, url, body, nil); err != nil {
			return executor.Outcome{}, err
		}
	case plan.EditField:
		body := map[string]any{"role": a.New}
		if err := w.client.Do(http.MethodPut, url, body, nil); err != nil {
			return executor.Outcome{}, err
		}
	case plan.RemoveRelation:
		if err := w.delete(url); err != nil {
			return executor.Outcome{}, err
		}
	default:
		return executor.Outcome{}, fmt.Errorf("github: unsupported membership action %q", a.Kind)
	}
	return executor.Outcome{Status: executor.StatusApplied}, nil
}

func (w *Writer) applyRepo(a plan.Action) (executor.Outcome, error) {
	org, name := splitSlug(a.Slug)
	switch a.Kind {
	case plan.CreateEntity:
		if w.dryRun {
			return w.dry(a, "dry-run:"+a.Target.LocalKey())
		}
		body := map[string]any{
			"name":        attrString(a.Attrs, "name"),
			"description": attrString(a.Attrs, "description"),
			"homepage":    attrString(a.Attrs, "homepage"),
		}
		var created Repo
		err := w.client.Do(http.MethodPost, fmt.Sprintf("orgs/%s/repos", org), body, &created)
		if alreadyExists(err) {
			existing, gerr := w.repoByName(org, name)
			if gerr != nil {
				return executor.Outcome{}, gerr
			}
			created = *existing
			err = nil
		}
		if err != nil {
			return executor.Outcome{}, err
		}
		return executor.Outcome{Status: executor.StatusApplied, RemoteID: fmt.Sprintf("%d", created.ID)}, nil

	case plan.EditField:
		if w.dryRun {
			return w.dry(a, "")
		}
		body := map[string]any{a.Field: a.New}
		if err := w.client.Do(http.MethodPatch, fmt.Sprintf("repos/%s/%s", org, name), body, nil); err != nil {
			return executor.Outcome{}, err
		}
		return executor.Outcome{Status: executor.StatusApplied}, nil
	}
	return executor.Outcome{}, fmt.Errorf("github: unsupported repository action %q", a.Kind)
}

func (w *Writer) applyPermission(a plan.Action) (executor.Outcome, error) {
	if w.dryRun {
		return w.dry(a, "")
	}
	org, repo := splitSlug(a.Slug)
	kind, grantee, ok := strings.Cut(a.Related, ":")
	if !ok {
		return executor.Outcome{}, fmt.Errorf("github: malformed permission grantee %q", a.Related)
	}

	var url string
	switch kind {
	case "team":
		url = fmt.Sprintf("orgs/%s/teams/%s/repos/%s/%s", org, grantee, org, repo)
	case "user":
		url = fmt.Sprintf("repos/%s/%s/collaborators/%s", org, repo, grantee)
	default:
		return executor.Outcome{}, fmt.Errorf("github: unknown grantee kind %q", kind)
	}

	switch a.Kind {
	case plan.AddRelation:
		body := map[string]any{"permission": permissionToAPI(attrString(a.Attrs, "permission"))}
		if err := w.client.Do(http.MethodPut, url, body, nil); err != nil {
			return executor.Outcome{}, err
		}
	case plan.EditField:
		newPerm, _ := a.New.(string)
		body := map[string]any{"permission": permissionToAPI(newPerm)}
		if err := w.client.Do(http.MethodPut, url, body, nil); err != nil {
			return executor.Outcome{}, err
		}
	case plan.RemoveRelation:
		if err := w.delete(url); err != nil {
			return executor.Outcome{}, err
		}
	default:
		return executor.Outcome{}, fmt.Errorf("github: unsupported permission action %q", a.Kind)
	}
	return executor.Outcome{Status: executor.StatusApplied}, nil
}

// dry logs the simulated write. Creates report a placeholder id so
// subsequent Actions in the same dry-run pass resolve coherently.
func (w *Writer) dry(a plan.Action, placeholder string) (executor.Outcome, error) {
	w.log.Info("dry-run", "action", a.Describe())
	return executor.Outcome{Status: executor.StatusDryRun, RemoteID: placeholder}, nil
}

// delete issues a DELETE and treats 404 as success: the relation is
// already gone, which is the goal state.
func (w *Writer) delete(url string) error {
	err := w.client.Do(http.MethodDelete, url, nil, nil)
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil
	}
	return err
}

func (w *Writer) teamBySlug(org, slug string) (*Team, error) {
	var t Team
	found, err := w.client.DoOption(http.MethodGet, fmt.Sprintf("orgs/%s/teams/%s", org, slug), &t)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("github: team %s/%s reported as existing but not found", org, slug)
	}
	return &t, nil
}

func (w *Writer) repoByName(org, name string) (*Repo, error) {
	var r Repo
	found, err := w.client.DoOption(http.MethodGet, fmt.Sprintf("repos/%s/%s", org, name), &r)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("github: repo %s/%s reported as existing but not found", org, name)
	}
	return &r, nil
}

// alreadyExists matches the 422 GitHub returns when creating an
// entity that is already there.
func alreadyExists(err error) bool {
	var se *httpclient.StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnprocessableEntity
}

func attrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}

func splitSlug(slug string) (org, rest string) {
	org, rest, _ = strings.Cut(slug, "/")
	// Protection rule paths carry a "#pattern" suffix.
	rest, _, _ = strings.Cut(rest, "#")
	return org, rest
}
