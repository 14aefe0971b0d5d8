package backup

import "errors"

// Error kinds surfaced to callers. Worker-path failures are additionally
// folded into the FAILED state plus ErrorMessage; these sentinels let
// synchronous call sites branch with errors.Is.
var (
	// ErrAlreadyRunning is returned by StartBackup when the manager is not
	// idle (a job is running or has already reached a terminal state).
	ErrAlreadyRunning = errors.New("backup already in progress or not idle")

	// ErrInvalidArgument is returned for an empty backup path.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCancelled marks a backup aborted by user request.
	ErrCancelled = errors.New("backup cancelled by user")

	// ErrVerificationFailed marks a size, metadata, or checksum mismatch
	// detected after the backup was written.
	ErrVerificationFailed = errors.New("backup verification failed")

	// ErrBackupMissing is returned by restore when the backup directory
	// does not exist.
	ErrBackupMissing = errors.New("backup not found")

	// ErrTargetExists is returned by restore when the target path already
	// exists.
	ErrTargetExists = errors.New("restore target already exists")

	// ErrCorruptMetadata is returned when a metadata file fails to
	// deserialise cleanly.
	ErrCorruptMetadata = errors.New("corrupt backup metadata")

	// ErrPageNotPreserved is returned when reading a page the shadow file
	// does not hold.
	ErrPageNotPreserved = errors.New("page not preserved in shadow file")
)
