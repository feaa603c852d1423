package zulip

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/rust-lang/sync-team/internal/executor"
	"github.com/rust-lang/sync-team/internal/plan"
)

// Writer replays Zulip Actions. Dry-run is a construction-time mode:
// a dry Writer logs every write and synthesizes placeholder group ids
// for creates.
type Writer struct {
	api    *API
	dryRun bool
	log    *slog.Logger
}

func NewWriter(api *API, dryRun bool, log *slog.Logger) *Writer {
	if log == nil {
		log = slog.Default()
	}
	return &Writer{api: api, dryRun: dryRun, log: log}
}

// Apply dispatches one Action to the matching Zulip endpoint.
func (w *Writer) Apply(a plan.Action) (executor.Outcome, error) {
	if w.dryRun {
		w.log.Info("dry-run", "action", a.Describe())
		placeholder := ""
		if a.Kind == plan.CreateEntity {
			placeholder = "dry-run:" + a.Target.LocalKey()
		}
		return executor.Outcome{Status: executor.StatusDryRun, RemoteID: placeholder}, nil
	}

	switch a.Kind {
	case plan.CreateEntity:
		name := a.Slug
		if err := w.api.CreateUserGroup(name, attrString(a.Attrs, "description"), nil); err != nil {
			return executor.Outcome{}, err
		}
		// The create endpoint does not return the id; fetch it so the
		// membership actions that follow can address the group.
		group, err := w.api.GroupByName(name)
		if err != nil {
			return executor.Outcome{}, err
		}
		if group == nil {
			return executor.Outcome{}, fmt.Errorf("zulip: group %q missing right after creation", name)
		}
		return executor.Outcome{Status: executor.StatusApplied, RemoteID: strconv.FormatInt(group.ID, 10)}, nil

	case plan.AddRelation, plan.RemoveRelation:
		groupID, err := strconv.ParseInt(a.Target.RemoteID(), 10, 64)
		if err != nil {
			return executor.Outcome{}, fmt.Errorf("zulip: action on unresolved group %s", a.Target)
		}
		userID, err := strconv.ParseInt(a.Related, 10, 64)
		if err != nil {
			return executor.Outcome{}, fmt.Errorf("zulip: malformed user id %q", a.Related)
		}
		var add, remove []int64
		if a.Kind == plan.AddRelation {
			add = []int64{userID}
		} else {
			remove = []int64{userID}
		}
		if err := w.api.UpdateUserGroupMembers(groupID, add, remove); err != nil {
			return executor.Outcome{}, err
		}
		return executor.Outcome{Status: executor.StatusApplied}, nil
	}
	return executor.Outcome{}, fmt.Errorf("zulip: no write operation for action %q on %q", a.Kind, a.Entity)
}

func attrString(attrs map[string]any, key string) string {
	if v, ok := attrs[key].(string); ok {
		return v
	}
	return ""
}
