package workset

import "errors"

var (
	// ErrChildActive is returned when a scope is used while one of its
	// children is still open. The child must be committed or reverted first.
	ErrChildActive = errors.New("workset: scope has an open child")

	// ErrAborted is returned by every operation on a scope after a merge
	// into it failed. The wrapped error is the original merge conflict.
	ErrAborted = errors.New("workset: scope aborted")

	// ErrClosed is returned when using a scope that was committed, reverted
	// or frozen.
	ErrClosed = errors.New("workset: scope is closed")

	// ErrRootOnly is returned when calling Freeze on a child scope.
	ErrRootOnly = errors.New("workset: operation is only valid on the root scope")

	// ErrChildOnly is returned when calling Commit or Revert on the root.
	ErrChildOnly = errors.New("workset: operation is only valid on a child scope")
)
