package github

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rust-lang/sync-team/internal/httpclient"
)

func readClient(t *testing.T, handler http.Handler) Read {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRead(httpclient.New(srv.URL, "sync-team tests", nil))
}

func TestUsernamesChunksRequests(t *testing.T) {
	var batches []int
	read := readClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path)
		var req struct {
			Variables struct {
				IDs []string `json:"ids"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		batches = append(batches, len(req.Variables.IDs))
		fmt.Fprint(w, `{"data":{"nodes":[{"databaseId":1,"login":"alice"},null]}}`)
	}))

	ids := make([]int64, 150)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	result, err := read.Usernames(ids)
	require.NoError(t, err)

	// 150 ids split into a full chunk of 100 and a remainder of 50;
	// null nodes (deleted accounts) are skipped.
	assert.Equal(t, []int{100, 50}, batches)
	assert.Equal(t, map[int64]string{1: "alice"}, result)
}

func TestTeamAbsenceIsNil(t *testing.T) {
	read := readClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/orgs/rust-lang/teams/lang" {
			fmt.Fprint(w, `{"id":100,"name":"lang","slug":"lang","privacy":"closed"}`)
			return
		}
		http.NotFound(w, r)
	}))

	team, err := read.Team("rust-lang", "lang")
	require.NoError(t, err)
	require.NotNil(t, team)
	assert.Equal(t, int64(100), team.ID)

	team, err = read.Team("rust-lang", "missing")
	require.NoError(t, err)
	assert.Nil(t, team)
}

func TestOrgMembersPaginates(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/orgs/rust-lang/members?page=2>; rel="next"`, srv.URL))
			fmt.Fprint(w, `[{"id":1},{"id":2}]`)
			return
		}
		fmt.Fprint(w, `[{"id":3}]`)
	}))
	defer srv.Close()
	read := NewRead(httpclient.New(srv.URL, "sync-team tests", nil))

	members, err := read.OrgMembers("rust-lang")
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 2: true, 3: true}, members)
}

func TestTeamMembershipsCursorLoopAndRoleMapping(t *testing.T) {
	var cursors []any
	read := readClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		cursors = append(cursors, req.Variables["cursor"])
		if req.Variables["cursor"] == nil {
			fmt.Fprint(w, `{"data":{"node":{"members":{
				"pageInfo":{"endCursor":"CUR1","hasNextPage":true},
				"edges":[{"role":"MAINTAINER","node":{"databaseId":1,"login":"alice"}}]}}}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"node":{"members":{
			"pageInfo":{"endCursor":null,"hasNextPage":false},
			"edges":[{"role":"MEMBER","node":{"databaseId":2,"login":"bob"}}]}}}}`)
	}))

	members, err := read.TeamMemberships(&Team{ID: 100, Slug: "lang"})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, "CUR1"}, cursors)
	assert.Equal(t, RoleMaintainer, members[1].Role)
	assert.Equal(t, RoleMember, members[2].Role)
	assert.Equal(t, "bob", members[2].Login)
}

func TestRepoTeamsNormalizesPermissions(t *testing.T) {
	read := readClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"slug":"lang","permission":"push"},{"slug":"core","permission":"admin"}]`)
	}))

	teams, err := read.RepoTeams("rust-lang", "rust")
	require.NoError(t, err)
	require.Len(t, teams, 2)
	assert.Equal(t, "write", teams[0].Permission)
	assert.Equal(t, "admin", teams[1].Permission)
}

func TestBranchProtectionsActorResolution(t *testing.T) {
	read := readClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"repository":{"branchProtectionRules":{"nodes":[{
			"id":"BPR_1",
			"pattern":"master",
			"isAdminEnforced":true,
			"dismissesStaleReviews":false,
			"requiredStatusCheckContexts":["ci"],
			"requiredApprovingReviewCount":2,
			"pushAllowances":{"nodes":[
				{"actor":{"login":"bors"}},
				{"actor":{"name":"infra","organization":{"login":"rust-lang"}}}
			]}
		}]}}}}`)
	}))

	rules, err := read.BranchProtections("rust-lang", "rust")
	require.NoError(t, err)
	rule, ok := rules["master"]
	require.True(t, ok)
	assert.Equal(t, "BPR_1", rule.ID)
	assert.True(t, rule.AdminEnforced)
	assert.Equal(t, int64(2), rule.RequiredApprovals)
	assert.Equal(t, []string{"bors", "infra"}, rule.PushAllowances)
}

func TestBranchProtectionsMissingRepo(t *testing.T) {
	read := readClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"repository":null}}`)
	}))

	rules, err := read.BranchProtections("rust-lang", "ghost")
	require.NoError(t, err)
	assert.Empty(t, rules)
}
