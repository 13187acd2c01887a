package domain

import "errors"

// Error taxonomy shared by the dispatch boundary, the browser layer
// and the streaming loops. Matched with errors.Is.
var (
	// ErrNotStarted is returned by browser operations when no live page exists.
	ErrNotStarted = errors.New("browser not started")

	// ErrNoSession is returned for input or control commands when the room
	// has no running automated session.
	ErrNoSession = errors.New("no browser session")

	// ErrNotController is returned for input commands from a participant
	// other than the room's current controller.
	ErrNotController = errors.New("not the controller")

	// ErrForbidden is returned when a non-host attempts a host-only action.
	ErrForbidden = errors.New("host only")

	// ErrNotFound is returned when a target participant or room is absent.
	ErrNotFound = errors.New("not found")

	// ErrDeviceBusy is returned when the audio capture device is already
	// held by another room.
	ErrDeviceBusy = errors.New("audio device busy")

	// ErrCollaborator wraps failures of the persistence/lookup collaborators.
	ErrCollaborator = errors.New("collaborator failure")
)
