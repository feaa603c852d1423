// Package github implements the GitHub side of the reconciler: the
// paginated read client that snapshots live org state, the pure diff
// over desired vs. live snapshots, and the write client that replays
// approved Actions.
package github

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// TeamPrivacy is the GitHub team visibility setting.
type TeamPrivacy string

const (
	PrivacyClosed TeamPrivacy = "closed"
	PrivacySecret TeamPrivacy = "secret"
)

// TeamRole is a member's role within a team.
type TeamRole string

const (
	RoleMember     TeamRole = "member"
	RoleMaintainer TeamRole = "maintainer"
)

// Team mirrors the REST representation of a team.
type Team struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Privacy     TeamPrivacy `json:"privacy"`
}

// TeamMember is one membership edge, read via GraphQL.
type TeamMember struct {
	ID    int64
	Login string
	Role  TeamRole
}

// Repo mirrors the REST representation of a repository. NodeID is the
// GraphQL node id, needed by branch protection mutations.
type Repo struct {
	ID          int64  `json:"id"`
	NodeID      string `json:"node_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Homepage    string `json:"homepage"`
	Archived    bool   `json:"archived"`
}

// RepoTeam is a team access grant on a repository.
type RepoTeam struct {
	Name       string `json:"slug"`
	Permission string `json:"permission"`
}

// RepoUser is a direct collaborator on a repository.
type RepoUser struct {
	Login      string `json:"login"`
	Permission string `json:"role_name"`
}

// BranchProtection is the managed subset of a branch protection rule.
// ID is the GraphQL node id of the rule, empty for rules proposed by
// the current run.
type BranchProtection struct {
	ID                string
	Pattern           string
	AdminEnforced     bool
	DismissStale      bool
	RequiredChecks    []string
	RequiredApprovals int64
	PushAllowances    []string
}

// OrgAppInstallation is a GitHub App installed on an organization.
type OrgAppInstallation struct {
	ID      int64  `json:"id"`
	AppSlug string `json:"app_slug"`
}

// RepoAppInstallation is a repository enabled for an app installation.
type RepoAppInstallation struct {
	Name string `json:"name"`
}

// permissionFromAPI normalizes REST permission vocabulary to the
// desired-state one (pull/push are read/write everywhere else).
func permissionFromAPI(p string) string {
	switch p {
	case "pull":
		return "read"
	case "push":
		return "write"
	default:
		return p
	}
}

// permissionToAPI converts a desired-state permission to the value
// the REST write endpoints accept.
func permissionToAPI(p string) string {
	switch p {
	case "read":
		return "pull"
	case "write":
		return "push"
	default:
		return p
	}
}

// TeamSlug derives the slug GitHub will assign to a team name.
func TeamSlug(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}

// userNodeID encodes a user database id as a GraphQL node id.
func userNodeID(id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("04:User%d", id)))
}

// teamNodeID encodes a team database id as a GraphQL node id.
func teamNodeID(id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("04:Team%d", id)))
}
