package store

// AccessCheck verifies the calling identity may use the secure store. It runs before every
// native operation.
type AccessCheck func() error

// NoAccessCheck skips the precondition.
func NoAccessCheck() error { return nil }

const ownershipRemediation = "Credentials written now would land in another user's store and become " +
	"inaccessible. Run the command as the user who owns the session (for sudo, use 'sudo -H' or run " +
	"git without sudo)."
