//go:build unix

package store

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CheckOwnership fails when the effective user differs from the real user, or does not own
// the home directory the OS keyring is resolved from. Both happen under sudo or setuid and
// silently redirect credentials into another user's store.
func CheckOwnership() error {
	euid := unix.Geteuid()
	if uid := unix.Getuid(); uid != euid {
		return &AccessError{
			Op:      "access",
			Message: ownershipRemediation,
			Err:     fmt.Errorf("%w: effective uid %d, real uid %d", ErrOwnershipMismatch, euid, uid),
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	var st unix.Stat_t
	if err := unix.Stat(home, &st); err != nil {
		return nil
	}
	if int(st.Uid) != euid {
		return &AccessError{
			Op:      "access",
			Message: ownershipRemediation,
			Err:     fmt.Errorf("%w: %s is owned by uid %d, process runs as uid %d", ErrOwnershipMismatch, home, st.Uid, euid),
		}
	}
	return nil
}
