package zulip

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserGroupToleratesExisting(t *testing.T) {
	api := zulipTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/user_groups/create", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"msg":"User group 'lang' already exists.","result":"error"}`)
	}))

	// Replaying a create against an existing group converges.
	assert.NoError(t, api.CreateUserGroup("lang", "The language team", nil))
}

func TestCreateUserGroupOtherBadRequestFails(t *testing.T) {
	api := zulipTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"msg":"Invalid characters in group name","result":"error"}`)
	}))

	err := api.CreateUserGroup("bad name", "", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid characters")
}

func TestUpdateUserGroupMembersForm(t *testing.T) {
	var gotPath, gotBody string
	api := zulipTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{"result":"success"}`)
	}))

	require.NoError(t, api.UpdateUserGroupMembers(5, []int64{11, 12}, []int64{13}))
	assert.Equal(t, "/user_groups/5/members", gotPath)

	values, err := url.ParseQuery(gotBody)
	require.NoError(t, err)
	assert.Equal(t, "[11,12]", values.Get("add"))
	assert.Equal(t, "[13]", values.Get("delete"))
}

func TestUpdateUserGroupMembersEmptyIsNoop(t *testing.T) {
	var called bool
	api := zulipTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	require.NoError(t, api.UpdateUserGroupMembers(5, nil, nil))
	assert.False(t, called)
}

func TestUpdateUserGroupMembersRejectionIsSettled(t *testing.T) {
	api := zulipTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"msg":"Cannot add deactivated users","result":"error"}`)
	}))

	// Deactivated accounts are logged and treated as settled rather
	// than failing the whole run.
	assert.NoError(t, api.UpdateUserGroupMembers(5, []int64{11}, nil))
}

func TestGroupByName(t *testing.T) {
	api := fixtureAPI(t, `{"members":[]}`,
		`{"user_groups":[{"id":5,"name":"lang","members":[1]},{"id":6,"name":"infra","members":[]}]}`)

	group, err := api.GroupByName("infra")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, int64(6), group.ID)

	group, err = api.GroupByName("missing")
	require.NoError(t, err)
	assert.Nil(t, group)
}

func TestPostMessageForm(t *testing.T) {
	var gotBody string
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		fmt.Fprint(w, `{"result":"success"}`)
	}))
	defer srv.Close()
	api := NewAPI(srv.URL, "bot@example.com", "secret", "sync-team tests", nil)

	require.NoError(t, api.PostMessage("t-infra", "sync", "Hash: `abc`"))

	values, err := url.ParseQuery(gotBody)
	require.NoError(t, err)
	assert.Equal(t, "stream", values.Get("type"))
	assert.Equal(t, "t-infra", values.Get("to"))
	assert.Equal(t, "sync", values.Get("topic"))
	assert.Equal(t, "Hash: `abc`", values.Get("content"))
}

func TestSerializeIDs(t *testing.T) {
	assert.Equal(t, "[]", serializeIDs(nil))
	assert.Equal(t, "[7]", serializeIDs([]int64{7}))
	assert.Equal(t, "[1,2,3]", serializeIDs([]int64{1, 2, 3}))
}
