package team

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orgYAML = `name: %s
teams:
  - name: lang
    description: The language team
    privacy: closed
    members:
      - id: 1
        name: alice
        email: alice@example.com
        role: maintainer
`

func writeOrg(t *testing.T, dir, file, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(fmt.Sprintf(orgYAML, name)), 0o644))
}

func TestLocalSourceLoadsSortedByFileName(t *testing.T) {
	dir := t.TempDir()
	writeOrg(t, dir, "rust-lang.yaml", "rust-lang")
	writeOrg(t, dir, "crates-io.yaml", "crates-io")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("not an org"), 0o644))

	orgs, err := LocalSource{Dir: dir}.Load()
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "crates-io", orgs[0].Name)
	assert.Equal(t, "rust-lang", orgs[1].Name)
	assert.Equal(t, "lang", orgs[0].Teams[0].Name)
}

func TestLocalSourceDefaultsOrgNameFromFileName(t *testing.T) {
	dir := t.TempDir()
	content := `teams:
  - name: lang
    description: ""
    privacy: closed
    members: []
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rust-lang.yaml"), []byte(content), 0o644))

	orgs, err := LocalSource{Dir: dir}.Load()
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "rust-lang", orgs[0].Name)
}

func TestLocalSourceRejectsInvalidOrg(t *testing.T) {
	dir := t.TempDir()
	content := `name: rust-lang
teams:
  - name: lang
    description: ""
    privacy: everyone
    members: []
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rust-lang.yaml"), []byte(content), 0o644))

	_, err := LocalSource{Dir: dir}.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate")
}

func TestLocalSourceEmptyDirFails(t *testing.T) {
	_, err := LocalSource{Dir: t.TempDir()}.Load()
	assert.Error(t, err)
}

func TestRemoteSourceFetchesOrgs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/orgs.json", r.URL.Path)
		fmt.Fprint(w, `{"orgs":[{"name":"rust-lang","teams":[{"name":"lang","description":"","privacy":"closed","members":[]}],"repos":[]}]}`)
	}))
	defer srv.Close()

	orgs, err := RemoteSource{URL: srv.URL, UserAgent: "sync-team tests"}.Load()
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "rust-lang", orgs[0].Name)
}

func TestRemoteSourceRejectsInvalidOrg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"orgs":[{"name":"","teams":[],"repos":[]}]}`)
	}))
	defer srv.Close()

	_, err := RemoteSource{URL: srv.URL, UserAgent: "sync-team tests"}.Load()
	assert.Error(t, err)
}
