package plan

import "fmt"

// Identity names an entity on a remote platform. It has exactly two
// variants:
//
//   - Committed: the entity exists remotely and carries its remote id.
//   - Pending: the entity is proposed by the current run and is known
//     only by a local key until a create Action materializes it.
//
// "Not yet created" is a variant, not a nullable id. Actions that
// reference a Pending identity are resolved by the executor once the
// corresponding create succeeds (or is simulated under dry-run).
type Identity struct {
	remote string
	local  string
}

// Committed returns the identity of an entity confirmed to exist on
// the platform, carrying its remote id.
func Committed(remoteID string) Identity {
	return Identity{remote: remoteID}
}

// Pending returns the identity of an entity proposed by this run,
// keyed by a deterministic local key (for example "org/team-slug").
// The key must be stable across runs so that diff hashes are stable.
func Pending(localKey string) Identity {
	return Identity{local: localKey}
}

// IsPending reports whether the entity has not been created remotely.
func (id Identity) IsPending() bool { return id.remote == "" }

// RemoteID returns the remote id of a Committed identity. It is empty
// for Pending identities; callers must check IsPending first.
func (id Identity) RemoteID() string { return id.remote }

// LocalKey returns the local key of a Pending identity.
func (id Identity) LocalKey() string { return id.local }

// Resolve converts a Pending identity into a Committed one. Resolving
// an already-committed identity is a no-op.
func (id Identity) Resolve(remoteID string) Identity {
	if id.IsPending() {
		return Identity{remote: remoteID}
	}
	return id
}

func (id Identity) String() string {
	if id.IsPending() {
		return fmt.Sprintf("pending:%s", id.local)
	}
	return fmt.Sprintf("committed:%s", id.remote)
}

// canonical returns the token used in canonical serialization. The
// variant tag is part of the token so a diff computed against a live
// entity never hashes equal to one that proposes creating it.
func (id Identity) canonical() string { return id.String() }
