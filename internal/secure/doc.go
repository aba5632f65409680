// Package secure keeps secret material encrypted while it sits in process memory.
//
// The in-memory secret cache stores every password and token value in a SecureBuffer, so
// a core dump or swapped page of a long-lived helper process does not expose plaintext.
// Plaintext exists only for the duration of a read:
//
//	buf, _ := secure.NewSecureString(password)
//	defer buf.Destroy()
//
//	value, err := buf.Reveal()
//
// Memory locking depends on RLIMIT_MEMLOCK on Linux. When mlock is unavailable memguard
// degrades to ordinary memory; the data stays encrypted either way.
//
// Call memguard.Purge at process exit to wipe the enclave keys.
package secure
