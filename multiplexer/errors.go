package multiplexer

import "github.com/pkg/errors"

var (
	// ErrMuxAlreadyStarted is returned by Start once a role is fixed. The
	// caller should treat the multiplexer as already running, not retry
	// with a different role.
	ErrMuxAlreadyStarted = errors.New("multiplexer already started")

	// ErrInvalidRole is returned by Start for a role that cannot start a
	// multiplexer. This is a caller bug.
	ErrInvalidRole = errors.New("not a valid multiplexer role")

	// ErrInvalidDLCI means the operation referenced a DLCI with no usable
	// channel, typically a stale reference from the peer. Safe to ignore.
	ErrInvalidDLCI = errors.New("no session channel for dlci")

	// ErrChannelAlreadyEstablished means an establish or flow control
	// change arrived for a channel that is already up. Nothing was
	// mutated; safe to ignore.
	ErrChannelAlreadyEstablished = errors.New("session channel already established")
)
