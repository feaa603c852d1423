package github

import (
	"fmt"
	"net/http"

	"github.com/rust-lang/sync-team/internal/httpclient"
)

// Read is the read-only view of GitHub the diff engine snapshots
// from. Absence (a team or repo that does not exist yet) is a value,
// not an error.
type Read interface {
	// Usernames resolves user database ids to current logins.
	Usernames(ids []int64) (map[int64]string, error)
	// OrgOwners returns the user ids of the org's owners.
	OrgOwners(org string) (map[int64]bool, error)
	// OrgMembers returns the user ids of all org members.
	OrgMembers(org string) (map[int64]bool, error)
	// OrgAppInstallations lists GitHub Apps installed on the org.
	OrgAppInstallations(org string) ([]OrgAppInstallation, error)
	// AppInstallationRepos lists the repositories enabled for an app
	// installation.
	AppInstallationRepos(installationID int64) ([]RepoAppInstallation, error)
	// OrgTeams lists all teams in the org.
	OrgTeams(org string) ([]Team, error)
	// Team fetches one team by slug, nil when it does not exist.
	Team(org, slug string) (*Team, error)
	// TeamMemberships returns the current members of a team keyed by
	// user id.
	TeamMemberships(team *Team) (map[int64]TeamMember, error)
	// TeamInvitations returns the logins of users with a pending
	// invitation to the team.
	TeamInvitations(org, slug string) (map[string]bool, error)
	// Repo fetches one repository, nil when it does not exist.
	Repo(org, name string) (*Repo, error)
	// RepoTeams lists team access grants on a repository.
	RepoTeams(org, name string) ([]RepoTeam, error)
	// RepoCollaborators lists direct (non-team) collaborators.
	RepoCollaborators(org, name string) ([]RepoUser, error)
	// BranchProtections returns the repo's protection rules keyed by
	// pattern.
	BranchProtections(org, name string) (map[string]BranchProtection, error)
}

// NewRead builds the production Read implementation on top of the
// shared transport.
func NewRead(client *httpclient.Client) Read {
	return &apiRead{client: client}
}

type apiRead struct {
	client *httpclient.Client
}

const usernamesQuery = `
	query($ids: [ID!]!) {
		nodes(ids: $ids) {
			... on User {
				databaseId
				login
			}
		}
	}
`

func (r *apiRead) Usernames(ids []int64) (map[int64]string, error) {
	type node struct {
		DatabaseID int64  `json:"databaseId"`
		Login      string `json:"login"`
	}
	result := make(map[int64]string, len(ids))
	// The nodes() query caps out at 100 ids per request.
	for start := 0; start < len(ids); start += 100 {
		end := min(start+100, len(ids))
		nodeIDs := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			nodeIDs = append(nodeIDs, userNodeID(id))
		}
		var resp struct {
			Nodes []*node `json:"nodes"`
		}
		if err := r.client.GraphQL(usernamesQuery, map[string]any{"ids": nodeIDs}, &resp); err != nil {
			return nil, fmt.Errorf("resolve usernames: %w", err)
		}
		for _, n := range resp.Nodes {
			if n != nil {
				result[n.DatabaseID] = n.Login
			}
		}
	}
	return result, nil
}

func (r *apiRead) OrgOwners(org string) (map[int64]bool, error) {
	return r.memberIDs(fmt.Sprintf("orgs/%s/members?role=admin", org))
}

func (r *apiRead) OrgMembers(org string) (map[int64]bool, error) {
	return r.memberIDs(fmt.Sprintf("orgs/%s/members", org))
}

func (r *apiRead) memberIDs(url string) (map[int64]bool, error) {
	type user struct {
		ID int64 `json:"id"`
	}
	ids := make(map[int64]bool)
	err := httpclient.Paginated(r.client, http.MethodGet, url, func(page []user) error {
		for _, u := range page {
			ids[u.ID] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *apiRead) OrgAppInstallations(org string) ([]OrgAppInstallation, error) {
	type page struct {
		Installations []OrgAppInstallation `json:"installations"`
	}
	var installations []OrgAppInstallation
	err := httpclient.Paginated(r.client, http.MethodGet, fmt.Sprintf("orgs/%s/installations", org), func(p page) error {
		installations = append(installations, p.Installations...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return installations, nil
}

func (r *apiRead) AppInstallationRepos(installationID int64) ([]RepoAppInstallation, error) {
	type page struct {
		Repositories []RepoAppInstallation `json:"repositories"`
	}
	var repos []RepoAppInstallation
	url := fmt.Sprintf("user/installations/%d/repositories", installationID)
	err := httpclient.Paginated(r.client, http.MethodGet, url, func(p page) error {
		repos = append(repos, p.Repositories...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repos, nil
}

func (r *apiRead) OrgTeams(org string) ([]Team, error) {
	var teams []Team
	err := httpclient.Paginated(r.client, http.MethodGet, fmt.Sprintf("orgs/%s/teams", org), func(page []Team) error {
		teams = append(teams, page...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *apiRead) Team(org, slug string) (*Team, error) {
	var team Team
	found, err := r.client.DoOption(http.MethodGet, fmt.Sprintf("orgs/%s/teams/%s", org, slug), &team)
	if err != nil || !found {
		return nil, err
	}
	return &team, nil
}

const teamMembershipsQuery = `
	query($team: ID!, $cursor: String) {
		node(id: $team) {
			... on Team {
				members(after: $cursor) {
					pageInfo {
						endCursor
						hasNextPage
					}
					edges {
						role
						node {
							databaseId
							login
						}
					}
				}
			}
		}
	}
`

func (r *apiRead) TeamMemberships(team *Team) (map[int64]TeamMember, error) {
	type edge struct {
		Role string `json:"role"`
		Node struct {
			DatabaseID int64  `json:"databaseId"`
			Login      string `json:"login"`
		} `json:"node"`
	}
	type resp struct {
		Node *struct {
			Members struct {
				PageInfo httpclient.PageInfo `json:"pageInfo"`
				Edges    []edge              `json:"edges"`
			} `json:"members"`
		} `json:"node"`
	}

	memberships := make(map[int64]TeamMember)
	page := httpclient.StartPage()
	for page.HasNextPage {
		var res resp
		vars := map[string]any{
			"team":   teamNodeID(team.ID),
			"cursor": page.Cursor(),
		}
		if err := r.client.GraphQL(teamMembershipsQuery, vars, &res); err != nil {
			return nil, fmt.Errorf("team %s memberships: %w", team.Slug, err)
		}
		if res.Node == nil {
			break
		}
		page = res.Node.Members.PageInfo
		for _, e := range res.Node.Members.Edges {
			role := RoleMember
			// GraphQL reports roles in SCREAMING_SNAKE_CASE.
			if e.Role == "MAINTAINER" {
				role = RoleMaintainer
			}
			memberships[e.Node.DatabaseID] = TeamMember{
				ID:    e.Node.DatabaseID,
				Login: e.Node.Login,
				Role:  role,
			}
		}
	}
	return memberships, nil
}

func (r *apiRead) TeamInvitations(org, slug string) (map[string]bool, error) {
	type login struct {
		Login string `json:"login"`
	}
	invites := make(map[string]bool)
	url := fmt.Sprintf("orgs/%s/teams/%s/invitations", org, slug)
	err := httpclient.Paginated(r.client, http.MethodGet, url, func(page []login) error {
		for _, l := range page {
			invites[l.Login] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}

func (r *apiRead) Repo(org, name string) (*Repo, error) {
	var repo Repo
	found, err := r.client.DoOption(http.MethodGet, fmt.Sprintf("repos/%s/%s", org, name), &repo)
	if err != nil || !found {
		return nil, err
	}
	return &repo, nil
}

func (r *apiRead) RepoTeams(org, name string) ([]RepoTeam, error) {
	var teams []RepoTeam
	url := fmt.Sprintf("repos/%s/%s/teams", org, name)
	err := httpclient.Paginated(r.client, http.MethodGet, url, func(page []RepoTeam) error {
		for _, t := range page {
			t.Permission = permissionFromAPI(t.Permission)
			teams = append(teams, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *apiRead) RepoCollaborators(org, name string) ([]RepoUser, error) {
	var users []RepoUser
	url := fmt.Sprintf("repos/%s/%s/collaborators?affiliation=direct", org, name)
	err := httpclient.Paginated(r.client, http.MethodGet, url, func(page []RepoUser) error {
		for _, u := range page {
			u.Permission = permissionFromAPI(u.Permission)
			users = append(users, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

const branchProtectionsQuery = `
	query($org: String!, $repo: String!) {
		repository(owner: $org, name: $repo) {
			branchProtectionRules(first: 100) {
				nodes {
					id
					pattern
					isAdminEnforced
					dismissesStaleReviews
					requiredStatusCheckContexts
					requiredApprovingReviewCount
					pushAllowances(first: 100) {
						nodes {
							actor {
								... on Actor {
									login
								}
								... on Team {
									organization {
										login
									}
									name
								}
							}
						}
					}
				}
			}
		}
	}
`

func (r *apiRead) BranchProtections(org, name string) (map[string]BranchProtection, error) {
	type actor struct {
		Login        string `json:"login"`
		Name         string `json:"name"`
		Organization *struct {
			Login string `json:"login"`
		} `json:"organization"`
	}
	type ruleNode struct {
		ID                           string   `json:"id"`
		Pattern                      string   `json:"pattern"`
		IsAdminEnforced              bool     `json:"isAdminEnforced"`
		DismissesStaleReviews        bool     `json:"dismissesStaleReviews"`
		RequiredStatusCheckContexts  []string `json:"requiredStatusCheckContexts"`
		RequiredApprovingReviewCount int64    `json:"requiredApprovingReviewCount"`
		PushAllowances               struct {
			Nodes []struct {
				Actor actor `json:"actor"`
			} `json:"nodes"`
		} `json:"pushAllowances"`
	}
	var resp struct {
		Repository *struct {
			BranchProtectionRules struct {
				Nodes []*ruleNode `json:"nodes"`
			} `json:"branchProtectionRules"`
		} `json:"repository"`
	}
	vars := map[string]any{"org": org, "repo": name}
	if err := r.client.GraphQL(branchProtectionsQuery, vars, &resp); err != nil {
		return nil, fmt.Errorf("repo %s/%s branch protections: %w", org, name, err)
	}

	rules := make(map[string]BranchProtection)
	if resp.Repository == nil {
		return rules, nil
	}
	for _, node := range resp.Repository.BranchProtectionRules.Nodes {
		if node == nil {
			continue
		}
		var allowances []string
		for _, pa := range node.PushAllowances.Nodes {
			if pa.Actor.Organization != nil {
				allowances = append(allowances, pa.Actor.Name)
			} else if pa.Actor.Login != "" {
				allowances = append(allowances, pa.Actor.Login)
			}
		}
		rules[node.Pattern] = BranchProtection{
			ID:                node.ID,
			Pattern:           node.Pattern,
			AdminEnforced:     node.IsAdminEnforced,
			DismissStale:      node.DismissesStaleReviews,
			RequiredChecks:    node.RequiredStatusCheckContexts,
			RequiredApprovals: node.RequiredApprovingReviewCount,
			PushAllowances:    allowances,
		}
	}
	return rules, nil
}
