package github

import (
	"fmt"
	"log/slog"

	"github.com/rust-lang/sync-team/internal/team"
)

// OrgState is the live-state snapshot for one organization. It covers
// exactly the entities the desired state names; the diff engine is a
// pure function over (team.Org, OrgState).
type OrgState struct {
	Org string

	// Owners and Members are the org-level rosters. Owners are never
	// removed from teams by the reconciler.
	Owners  map[int64]bool
	Members map[int64]bool

	// Usernames maps desired member ids to their current logins, so
	// renamed accounts are addressed by their live login.
	Usernames map[int64]string

	// Teams, memberships and pending invitations, keyed by team slug.
	Teams       map[string]Team
	TeamMembers map[string]map[int64]TeamMember
	TeamInvites map[string]map[string]bool

	// Repositories and their grants, keyed by repo name.
	Repos             map[string]Repo
	RepoTeams         map[string][]RepoTeam
	RepoCollaborators map[string][]RepoUser
	Protections       map[string]map[string]BranchProtection

	// App installations, reported as unmanaged context only.
	Installations     []OrgAppInstallation
	InstallationRepos map[int64][]RepoAppInstallation
}

// Snapshot reads the live state relevant to one desired org. Entities
// the desired state does not mention are not fetched (except the
// org rosters and app installations, which inform removal policy and
// the unmanaged report).
func Snapshot(read Read, desired team.Org) (*OrgState, error) {
	state := &OrgState{
		Org:               desired.Name,
		Teams:             make(map[string]Team),
		TeamMembers:       make(map[string]map[int64]TeamMember),
		TeamInvites:       make(map[string]map[string]bool),
		Repos:             make(map[string]Repo),
		RepoTeams:         make(map[string][]RepoTeam),
		RepoCollaborators: make(map[string][]RepoUser),
		Protections:       make(map[string]map[string]BranchProtection),
		InstallationRepos: make(map[int64][]RepoAppInstallation),
	}

	var err error
	if state.Owners, err = read.OrgOwners(desired.Name); err != nil {
		return nil, fmt.Errorf("org %s owners: %w", desired.Name, err)
	}
	if state.Members, err = read.OrgMembers(desired.Name); err != nil {
		return nil, fmt.Errorf("org %s members: %w", desired.Name, err)
	}

	ids := desiredMemberIDs(desired)
	if state.Usernames, err = read.Usernames(ids); err != nil {
		return nil, fmt.Errorf("org %s usernames: %w", desired.Name, err)
	}

	for _, dt := range desired.Teams {
		slug := TeamSlug(dt.Name)
		t, err := read.Team(desired.Name, slug)
		if err != nil {
			return nil, fmt.Errorf("org %s team %s: %w", desired.Name, slug, err)
		}
		if t == nil {
			continue
		}
		state.Teams[slug] = *t
		members, err := read.TeamMemberships(t)
		if err != nil {
			return nil, err
		}
		state.TeamMembers[slug] = members
		invites, err := read.TeamInvitations(desired.Name, slug)
		if err != nil {
			return nil, fmt.Errorf("org %s team %s invitations: %w", desired.Name, slug, err)
		}
		state.TeamInvites[slug] = invites
	}

	for _, dr := range desired.Repos {
		repo, err := read.Repo(desired.Name, dr.Name)
		if err != nil {
			return nil, fmt.Errorf("repo %s/%s: %w", desired.Name, dr.Name, err)
		}
		if repo == nil {
			continue
		}
		state.Repos[dr.Name] = *repo
		if state.RepoTeams[dr.Name], err = read.RepoTeams(desired.Name, dr.Name); err != nil {
			return nil, fmt.Errorf("repo %s/%s teams: %w", desired.Name, dr.Name, err)
		}
		if state.RepoCollaborators[dr.Name], err = read.RepoCollaborators(desired.Name, dr.Name); err != nil {
			return nil, fmt.Errorf("repo %s/%s collaborators: %w", desired.Name, dr.Name, err)
		}
		if state.Protections[dr.Name], err = read.BranchProtections(desired.Name, dr.Name); err != nil {
			return nil, err
		}
	}

	if state.Installations, err = read.OrgAppInstallations(desired.Name); err != nil {
		return nil, fmt.Errorf("org %s app installations: %w", desired.Name, err)
	}
	for _, inst := range state.Installations {
		repos, err := read.AppInstallationRepos(inst.ID)
		if err != nil {
			return nil, fmt.Errorf("org %s installation %d repos: %w", desired.Name, inst.ID, err)
		}
		state.InstallationRepos[inst.ID] = repos
	}

	return state, nil
}

// LogUnmanaged reports live entities the desired state does not cover.
// Per the removal policy these are left alone, not deleted; the log
// line is the only signal.
func (s *OrgState) LogUnmanaged(desired team.Org, log *slog.Logger) {
	wantTeams := make(map[string]bool, len(desired.Teams))
	for _, t := range desired.Teams {
		wantTeams[TeamSlug(t.Name)] = true
	}
	for slug := range s.Teams {
		if !wantTeams[slug] {
			log.Info("unmanaged team left untouched", "org", s.Org, "team", slug)
		}
	}
	for _, inst := range s.Installations {
		log.Debug("app installation (unmanaged)",
			"org", s.Org, "app", inst.AppSlug, "repos", len(s.InstallationRepos[inst.ID]))
	}
}

func desiredMemberIDs(desired team.Org) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, t := range desired.Teams {
		for _, m := range t.Members {
			if !seen[m.ID] {
				seen[m.ID] = true
				ids = append(ids, m.ID)
			}
		}
	}
	return ids
}
