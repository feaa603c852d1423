package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMinimalOrg(t *testing.T, dir string) {
	t.Helper()
	content := `name: rust-lang
teams:
  - name: lang
    description: ""
    privacy: closed
    members: []
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rust-lang.yaml"), []byte(content), 0o644))
}

func executeCommand(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestMutuallyExclusiveFlags(t *testing.T) {
	err := executeCommand(t, "--only-print-plan", "--require-confirmation")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestUnknownServiceRejected(t *testing.T) {
	err := executeCommand(t, "discord")
	require.Error(t, err)
}

func TestMissingCredentialsFailCleanly(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("ZULIP_USERNAME", "")
	t.Setenv("ZULIP_API_TOKEN", "")
	// Use a local team repo so the failure is the missing token, not
	// the network.
	dir := t.TempDir()
	writeMinimalOrg(t, dir)

	err := executeCommand(t, "--team-repo", dir, "--only-print-plan", "github")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GITHUB_TOKEN")
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"github", "zulip"}, dedupe([]string{"github", "zulip", "github"}))
	assert.Equal(t, []string{"zulip"}, dedupe([]string{"zulip", "zulip"}))
}

func TestIgnoredOrgsParsing(t *testing.T) {
	bindEnv()

	t.Setenv("GITHUB_IGNORED_ORGS", "rust-lang-deprecated, sandbox ,")
	assert.Equal(t, []string{"rust-lang-deprecated", "sandbox"}, ignoredOrgs())

	t.Setenv("GITHUB_IGNORED_ORGS", "")
	assert.Nil(t, ignoredOrgs())
}

func TestExitErrorCodes(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flags")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := WrapExitError(ExitFailure, "applying the plan failed", errors.New("boom"))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Contains(t, wrapped.Error(), "boom")
}

func TestPrintErrorChain(t *testing.T) {
	var buf bytes.Buffer
	inner := errors.New("connection refused")
	err := WrapExitError(ExitFailure, "snapshot org rust-lang", inner)
	PrintErrorChain(&buf, err)

	out := buf.String()
	assert.Contains(t, out, "error: snapshot org rust-lang: connection refused")
	assert.Contains(t, out, "caused by: connection refused")
}
