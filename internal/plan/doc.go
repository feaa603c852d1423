// Package plan defines the platform-independent change model: Actions,
// ordered Diffs, two-variant entity identities, and the canonical
// serialization used to hash a Diff for confirmation.
//
// Everything in this package is a plain value. Computing a Diff never
// talks to the network, and hashing the same Diff twice always yields
// the same digest; the confirmation gate depends on that.
package plan
