// Package team loads the desired state: the authoritative description
// of organizations, teams, memberships, repositories and protection
// rules that the platforms are reconciled toward.
//
// The reconciler consumes this snapshot verbatim; nothing here infers
// or rewrites intent.
package team

// Org is the desired state of one organization across platforms.
type Org struct {
	Name  string `json:"name" yaml:"name"`
	Teams []Team `json:"teams" yaml:"teams"`
	Repos []Repo `json:"repos" yaml:"repos"`
}

// Team is a desired team and its member list.
type Team struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Privacy     string   `json:"privacy" yaml:"privacy"` // "closed" or "secret"
	Members     []Member `json:"members" yaml:"members"`
}

// Member is one desired team member. ID is the platform-stable user
// id; Name is the login used by membership write endpoints; Email is
// used to resolve the same person on platforms keyed by email.
type Member struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  string `json:"role" yaml:"role"` // "member" or "maintainer"
}

// Repo is a desired repository with its access grants and protection
// rules.
type Repo struct {
	Name              string             `json:"name" yaml:"name"`
	Description       string             `json:"description" yaml:"description"`
	Homepage          string             `json:"homepage" yaml:"homepage"`
	Archived          bool               `json:"archived" yaml:"archived"`
	Teams             []Permission       `json:"teams" yaml:"teams"`
	Members           []Permission       `json:"members" yaml:"members"`
	BranchProtections []BranchProtection `json:"branch_protections" yaml:"branch_protections"`
}

// Permission grants a team or user a role on a repository.
type Permission struct {
	Name       string `json:"name" yaml:"name"`
	Permission string `json:"permission" yaml:"permission"`
}

// BranchProtection is a desired protection rule for branches matching
// Pattern. The field list here is exactly the set of fields the
// reconciler manages; anything else on the platform rule is left
// untouched.
type BranchProtection struct {
	Pattern           string   `json:"pattern" yaml:"pattern"`
	RequiredApprovals int64    `json:"required_approvals" yaml:"required_approvals"`
	DismissStale      bool     `json:"dismiss_stale" yaml:"dismiss_stale"`
	AdminEnforced     bool     `json:"admin_enforced" yaml:"admin_enforced"`
	RequiredChecks    []string `json:"required_checks" yaml:"required_checks"`
	PushAllowances    []string `json:"push_allowances" yaml:"push_allowances"`
}
