package domain

import "errors"

// Failure taxonomy. Callers classify with errors.Is; the CLI boundary maps
// every unrecoverable failure to exit code 1.
var (
	// ErrRuntimeUnavailable means the container runtime could not be reached.
	ErrRuntimeUnavailable = errors.New("container runtime unavailable")

	// ErrNoInstance means no running instance matched the service name.
	ErrNoInstance = errors.New("no running instance")

	// ErrPullFailed means the registry pull did not complete.
	ErrPullFailed = errors.New("image pull failed")

	// ErrBackupFailed means the pre-update snapshot could not be produced.
	// Fatal before a destructive update unless explicitly overridden.
	ErrBackupFailed = errors.New("backup failed")

	// ErrCorruptBackup means an archive exists but cannot be extracted.
	// Distinct from "no backup": restore aborts instead of falling through
	// to a clean install.
	ErrCorruptBackup = errors.New("corrupt backup archive")

	// ErrVerificationTimeout means the replacement instance never reported
	// healthy within the bounded retry window.
	ErrVerificationTimeout = errors.New("health verification timed out")

	// ErrPortConflict means a required host port is already bound.
	ErrPortConflict = errors.New("host port already in use")

	// ErrPermissionDenied means a prerequisite permission check failed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrBusy means another run holds the exclusive run lock.
	ErrBusy = errors.New("another run is in progress")
)
