package plan

import "fmt"

// Kind tags the operation an Action performs.
type Kind string

const (
	// CreateEntity materializes a new entity remotely. Must be ordered
	// before any Action that references the entity's identity.
	CreateEntity Kind = "create-entity"
	// EditField changes a single field of an existing entity. One
	// Action per differing field, never a whole-record replace.
	EditField Kind = "edit-field"
	// AddRelation attaches a related entity (member, permission,
	// protection rule) to a target entity.
	AddRelation Kind = "add-relation"
	// RemoveRelation detaches a related entity from a target entity.
	RemoveRelation Kind = "remove-relation"
)

// EntityKind enumerates the entity types the reconciler manages.
type EntityKind string

const (
	EntityOrganization     EntityKind = "organization"
	EntityTeam             EntityKind = "team"
	EntityMembership       EntityKind = "membership"
	EntityRepository       EntityKind = "repository"
	EntityRepoPermission   EntityKind = "repo-permission"
	EntityBranchProtection EntityKind = "branch-protection"
	EntityAppInstallation  EntityKind = "app-installation"
	EntityUserGroup        EntityKind = "user-group"
)

// Action is one field-granular step of a Diff. An Action is
// self-contained: it carries everything the platform writer needs to
// replay it, and replaying it when the target already matches its goal
// is a no-op, never an error.
//
// Field semantics by Kind:
//
//	CreateEntity:   Target (Pending), Slug, Attrs = creation payload
//	EditField:      Target, Slug, Field, Old, New
//	AddRelation:    Target, Slug, Related, Attrs = relation attributes
//	RemoveRelation: Target, Slug, Related
type Action struct {
	Kind   Kind
	Entity EntityKind

	// Target identifies the entity acted on. Pending for entities
	// proposed earlier in the same Diff.
	Target Identity

	// Slug is the human-readable path of the target, e.g.
	// "rust-lang/lang" for a team or "rust-lang/rust" for a repo.
	Slug string

	// Field, Old and New are set for EditField only. Old and New hold
	// canonical values (strings, ints, bools, string slices).
	Field string
	Old   any
	New   any

	// Related names the relation peer for Add/RemoveRelation: a
	// username, a team slug, or a branch protection pattern.
	Related string

	// Attrs carries the creation payload or relation attributes
	// (role, permission, protection settings). Values must be
	// canonical-serializable.
	Attrs map[string]any
}

// Describe renders a one-line human-readable form of the Action, used
// by plan output and review messages.
func (a Action) Describe() string {
	switch a.Kind {
	case CreateEntity:
		return fmt.Sprintf("create %s %s %s", a.Entity, a.Slug, describeAttrs(a.Attrs))
	case EditField:
		return fmt.Sprintf("edit %s %s: %s %v -> %v", a.Entity, a.Slug, a.Field, a.Old, a.New)
	case AddRelation:
		return fmt.Sprintf("add %s to %s %s %s", a.Related, a.Entity, a.Slug, describeAttrs(a.Attrs))
	case RemoveRelation:
		return fmt.Sprintf("remove %s from %s %s", a.Related, a.Entity, a.Slug)
	}
	return fmt.Sprintf("unknown action %q on %s %s", a.Kind, a.Entity, a.Slug)
}

// canonicalValue builds the map over which the canonical serialization
// runs. Empty optional fields are omitted rather than serialized as
// empty values, so adding a new optional field later does not change
// the hash of existing plans.
func (a Action) canonicalValue() (map[string]any, error) {
	m := map[string]any{
		"kind":   string(a.Kind),
		"entity": string(a.Entity),
		"target": a.Target.canonical(),
		"slug":   a.Slug,
	}
	if a.Field != "" {
		m["field"] = a.Field
	}
	if a.Old != nil {
		v, err := canonicalizeValue(a.Old)
		if err != nil {
			return nil, fmt.Errorf("action %s %s: old value: %w", a.Kind, a.Slug, err)
		}
		m["old"] = v
	}
	if a.New != nil {
		v, err := canonicalizeValue(a.New)
		if err != nil {
			return nil, fmt.Errorf("action %s %s: new value: %w", a.Kind, a.Slug, err)
		}
		m["new"] = v
	}
	if a.Related != "" {
		m["related"] = a.Related
	}
	if len(a.Attrs) > 0 {
		attrs := make(map[string]any, len(a.Attrs))
		for k, v := range a.Attrs {
			cv, err := canonicalizeValue(v)
			if err != nil {
				return nil, fmt.Errorf("action %s %s: attr %q: %w", a.Kind, a.Slug, k, err)
			}
			attrs[k] = cv
		}
		m["attrs"] = attrs
	}
	return m, nil
}

func describeAttrs(attrs map[string]any) string {
	if len(attrs) == 0 {
		return ""
	}
	b, err := MarshalCanonical(attrs)
	if err != nil {
		return fmt.Sprintf("(%d attrs)", len(attrs))
	}
	return string(b)
}
