//go:build linux || darwin

package crypto

import "golang.org/x/sys/unix"

// LockKey pins key material so it is never swapped to disk. Best effort: a
// failure (RLIMIT_MEMLOCK exhausted) is reported but callers keep working.
func LockKey(b []byte) error { return unix.Mlock(b) }

// UnlockKey releases a LockKey pin; call after zeroizing.
func UnlockKey(b []byte) error { return unix.Munlock(b) }
