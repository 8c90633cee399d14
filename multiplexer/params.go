package multiplexer

// SessionParameters are the session wide settings fixed by parameter
// negotiation: whether channels use credit based flow control, and the
// largest frame payload either side may send.
type SessionParameters struct {
	CreditBasedFlow bool
	MaxFrameSize    uint16
}

// DefaultPreferredParameters are the values this endpoint asks for when it
// drives negotiation itself: credit based flow control on, frames as large
// as the underlying transport allows.
func DefaultPreferredParameters(maxPacketSize uint16) SessionParameters {
	return SessionParameters{
		CreditBasedFlow: true,
		MaxFrameSize:    maxPacketSize,
	}
}

// negotiate resolves a parameter request against the current values. The
// flow control choice is taken from the request outright; the frame size is
// capped to whatever both sides can handle.
func negotiate(current, requested SessionParameters) SessionParameters {
	mfs := current.MaxFrameSize
	if requested.MaxFrameSize < mfs {
		mfs = requested.MaxFrameSize
	}
	return SessionParameters{
		CreditBasedFlow: requested.CreditBasedFlow,
		MaxFrameSize:    mfs,
	}
}

// negotiationState tracks whether the session parameters have been confirmed
// by at least one negotiation, or are still only this side's preference.
type negotiationState struct {
	negotiated bool
	params     SessionParameters
}

// current returns the held parameters whether or not they are confirmed.
func (n *negotiationState) current() SessionParameters {
	return n.params
}

// negotiate resolves requested against the current parameters and records
// the result as the active session set. Suppressing renegotiation once a
// DLC is up is the multiplexer's job, not this type's.
func (n *negotiationState) negotiate(requested SessionParameters) SessionParameters {
	n.params = negotiate(n.params, requested)
	n.negotiated = true
	return n.params
}
