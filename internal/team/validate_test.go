package team

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOrg() Org {
	return Org{
		Name: "rust-lang",
		Teams: []Team{{
			Name:        "lang",
			Description: "The language team",
			Privacy:     "closed",
			Members: []Member{
				{ID: 1, Name: "alice", Email: "alice@example.com", Role: "maintainer"},
				{ID: 2, Name: "bob", Role: "member"},
			},
		}},
		Repos: []Repo{{
			Name:  "rust",
			Teams: []Permission{{Name: "lang", Permission: "write"}},
			BranchProtections: []BranchProtection{{
				Pattern:           "master",
				RequiredApprovals: 1,
				RequiredChecks:    []string{"ci"},
			}},
		}},
	}
}

func TestValidateAcceptsValidOrg(t *testing.T) {
	require.NoError(t, Validate(validOrg()))
}

func TestValidateAcceptsEmptyLists(t *testing.T) {
	require.NoError(t, Validate(Org{Name: "rust-lang"}))
}

func TestValidateRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Org)
	}{
		{"empty org name", func(o *Org) { o.Name = "" }},
		{"bad privacy", func(o *Org) { o.Teams[0].Privacy = "public" }},
		{"bad role", func(o *Org) { o.Teams[0].Members[0].Role = "owner" }},
		{"zero member id", func(o *Org) { o.Teams[0].Members[0].ID = 0 }},
		{"empty member name", func(o *Org) { o.Teams[0].Members[0].Name = "" }},
		{"bad permission", func(o *Org) { o.Repos[0].Teams[0].Permission = "root" }},
		{"empty protection pattern", func(o *Org) { o.Repos[0].BranchProtections[0].Pattern = "" }},
		{"negative approvals", func(o *Org) { o.Repos[0].BranchProtections[0].RequiredApprovals = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			org := validOrg()
			tt.mutate(&org)
			assert.Error(t, Validate(org))
		})
	}
}
