package gitutil

import "errors"

var (
	// ErrPushRejected is returned when a compare-and-swap push loses the
	// race because the remote ref moved since we last looked at it.
	ErrPushRejected = errors.New("remote ref advanced, push rejected")

	// ErrPatchNotApplicable is returned when a dry-run apply finds hunks
	// that no longer fit the working tree.
	ErrPatchNotApplicable = errors.New("patch does not apply cleanly")
)
