package bridge

import "errors"

var (
	// ErrOpenFailed wraps every open or configure failure of a device.
	ErrOpenFailed = errors.New("failed to open device")
	// ErrTransferFault wraps device or network I/O failures inside a session.
	ErrTransferFault = errors.New("transfer fault")
	// ErrServerClosed is returned by Server methods after shutdown completed.
	ErrServerClosed = errors.New("bridge server closed")
	// ErrDuplicateSession reports an open refused by the reject policy.
	ErrDuplicateSession = errors.New("device already has a running session")
	// ErrTakeoverTimeout reports a takeover whose previous session did not stop in time.
	ErrTakeoverTimeout = errors.New("takeover timed out")
	// ErrLineTooLong reports a command line over maxCommandLen bytes.
	ErrLineTooLong = errors.New("command line too long")
)
