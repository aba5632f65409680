//go:build !unix

package store

// CheckOwnership is a no-op where the OS store is bound to the logon session.
func CheckOwnership() error {
	return nil
}
