package vfs

// AuthPolicy describes a scheme's authentication requirements. It drives the
// upfront credential check of the change task: prompting before the first
// I/O attempt avoids a resolution round-trip whose only outcome would be an
// authentication error.
type AuthPolicy int

const (
	// AuthNone - the scheme never authenticates (local files, archives).
	AuthNone AuthPolicy = iota
	// AuthOptional - credentials may apply; prompt upfront only when the
	// store already holds a matching entry.
	AuthOptional
	// AuthRequired - the scheme cannot be accessed anonymously.
	AuthRequired
)

var schemePolicies = map[string]AuthPolicy{
	"file":  AuthNone,
	"zip":   AuthNone,
	"http":  AuthOptional,
	"https": AuthOptional,
	"s3":    AuthRequired,
}

// PolicyFor returns the authentication policy of a scheme. Unknown schemes
// default to optional.
func PolicyFor(scheme string) AuthPolicy {
	if p, ok := schemePolicies[scheme]; ok {
		return p
	}
	return AuthOptional
}

// FollowsCanonicalAlways reports whether the scheme must have canonical
// paths followed unconditionally, regardless of the symlink preference.
// HTTP redirects leave the displayed location stale otherwise.
func FollowsCanonicalAlways(scheme string) bool {
	return scheme == "http" || scheme == "https"
}
