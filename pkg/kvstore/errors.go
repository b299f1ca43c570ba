package kvstore

import "errors"

var (
	// ErrWitnessRequired is returned by [Replay.Get] when the witness is not
	// a *witness.ArrayWitness.
	ErrWitnessRequired = errors.New("kvstore: replay requires an array witness")

	// ErrWitnessMismatch is returned by [Replay.Get] when the next hint was
	// recorded for a different key, i.e. the replayed run diverged.
	ErrWitnessMismatch = errors.New("kvstore: witness hint does not match read")

	// ErrSchemaVersion is returned by [OpenSQLite] when the database was
	// created by an incompatible version of this package.
	ErrSchemaVersion = errors.New("kvstore: unsupported schema version")

	// ErrClosed is returned when using a closed store.
	ErrClosed = errors.New("kvstore: store is closed")
)
