package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityVariants(t *testing.T) {
	pending := Pending("rust-lang/lang")
	assert.True(t, pending.IsPending())
	assert.Equal(t, "rust-lang/lang", pending.LocalKey())
	assert.Equal(t, "pending:rust-lang/lang", pending.String())

	committed := Committed("1234")
	assert.False(t, committed.IsPending())
	assert.Equal(t, "1234", committed.RemoteID())
	assert.Equal(t, "committed:1234", committed.String())
}

func TestIdentityResolve(t *testing.T) {
	resolved := Pending("rust-lang/lang").Resolve("99")
	assert.False(t, resolved.IsPending())
	assert.Equal(t, "99", resolved.RemoteID())

	// Resolving a committed identity keeps the original id.
	already := Committed("1").Resolve("2")
	assert.Equal(t, "1", already.RemoteID())
}
