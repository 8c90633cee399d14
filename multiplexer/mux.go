// Package multiplexer implements the RFCOMM session multiplexer: one
// reliable transport connection carrying many logical data link connections,
// each keyed by a DLCI, with a single session wide parameter set negotiated
// once and then frozen.
//
// A SessionMultiplexer is driven by exactly one session task. All mutation
// is serialized by that ownership; there is no internal locking. The only
// concurrent piece is the per channel forwarding goroutine, which is handed
// everything it needs at establishment and is torn down cooperatively on
// close.
package multiplexer

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/rigado/rfcomm"
	"github.com/rigado/rfcomm/frames"
	"github.com/rigado/rfcomm/transport"
)

type SessionMultiplexer struct {
	role          Role
	maxPacketSize uint16
	params        negotiationState
	channels      map[frames.DLCI]*SessionChannel

	observer SessionObserver

	rfcomm.Logger
}

// Option configures a SessionMultiplexer at construction.
type Option func(*SessionMultiplexer)

// WithLogger replaces the default logger.
func WithLogger(l rfcomm.Logger) Option {
	return func(m *SessionMultiplexer) {
		m.Logger = l
	}
}

// WithObserver attaches a diagnostics observer.
func WithObserver(o SessionObserver) Option {
	return func(m *SessionMultiplexer) {
		if o != nil {
			m.observer = o
		}
	}
}

// New creates an unstarted multiplexer for a transport that can carry RFCOMM
// packets of at most maxPacketSize bytes. The preferred session parameters
// are seeded from that limit and stay unconfirmed until negotiation.
func New(maxPacketSize uint16, opts ...Option) *SessionMultiplexer {
	m := &SessionMultiplexer{
		role:          RoleUnassigned,
		maxPacketSize: maxPacketSize,
		params:        negotiationState{params: DefaultPreferredParameters(maxPacketSize)},
		channels:      make(map[frames.DLCI]*SessionChannel),
		observer:      noopObserver{},
		Logger:        rfcomm.GetLogger().ChildLogger(map[string]interface{}{"session": "mux"}),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Reset returns the multiplexer to its freshly created state: role
// unassigned, parameters back to the unconfirmed preference, registry empty.
// Every existing channel's forwarding task is asked to stop; teardown
// completes asynchronously.
func (m *SessionMultiplexer) Reset() {
	for dlci, ch := range m.channels {
		ch.stop()
		m.observer.OnChannelRemoved(dlci)
	}
	m.role = RoleUnassigned
	m.params = negotiationState{params: DefaultPreferredParameters(m.maxPacketSize)}
	m.channels = make(map[frames.DLCI]*SessionChannel)
	m.Debug("session multiplexer reset")
}

func (m *SessionMultiplexer) Role() Role {
	return m.role
}

// SetRole records the multiplexer role and reports it to the observer. Use
// Start for the guarded transition into a started role.
func (m *SessionMultiplexer) SetRole(role Role) {
	m.Debugf("role %v -> %v", m.role, role)
	m.role = role
	m.observer.OnRoleChanged(role)
}

// Started reports whether the multiplexer startup exchange has completed.
func (m *SessionMultiplexer) Started() bool {
	return m.role.IsStarted()
}

// Start fixes the multiplexer role after the startup exchange resolves. The
// role only ever progresses toward started; a second Start fails and a
// non-started role is rejected outright.
func (m *SessionMultiplexer) Start(role Role) error {
	if m.Started() {
		return errors.Wrapf(ErrMuxAlreadyStarted, "as %v", m.role)
	}
	if !role.IsStarted() {
		return errors.Wrapf(ErrInvalidRole, "%v", role)
	}
	m.SetRole(role)
	m.Infof("multiplexer started as %v", role)
	return nil
}

// MaxPacketSize is the transport limit this session was created with.
func (m *SessionMultiplexer) MaxPacketSize() uint16 {
	return m.maxPacketSize
}

// ParametersNegotiated reports whether the session parameters have been
// confirmed by at least one negotiation.
func (m *SessionMultiplexer) ParametersNegotiated() bool {
	return m.params.negotiated
}

// Parameters returns the current session parameters whether or not they have
// been negotiated yet.
func (m *SessionMultiplexer) Parameters() SessionParameters {
	return m.params.current()
}

// NegotiateParameters resolves a parameter request, local or remote, against
// the current session set. Once any DLC is established the parameters are
// frozen: the request is answered with the active set, unchanged. RFCOMM
// leaves renegotiation after establishment optional and this implementation
// echoes instead of erroring.
func (m *SessionMultiplexer) NegotiateParameters(requested SessionParameters) SessionParameters {
	if m.DLCEstablished() {
		m.Warnf("parameter negotiation after DLC establishment, echoing active set %+v", m.Parameters())
		return m.Parameters()
	}
	p := m.params.negotiate(requested)
	m.Debugf("negotiated session parameters %+v", p)
	m.observer.OnParametersChanged(p)
	return p
}

// DLCIEstablished reports whether dlci has an established channel.
func (m *SessionMultiplexer) DLCIEstablished(dlci frames.DLCI) bool {
	ch, ok := m.channels[dlci]
	return ok && ch.Established()
}

// DLCEstablished reports whether any channel in the registry is established.
func (m *SessionMultiplexer) DLCEstablished() bool {
	for _, ch := range m.channels {
		if ch.Established() {
			return true
		}
	}
	return false
}

// OpenDLCIs lists the DLCIs currently in the registry, established or not.
func (m *SessionMultiplexer) OpenDLCIs() []frames.DLCI {
	out := make([]frames.DLCI, 0, len(m.channels))
	for dlci := range m.channels {
		out = append(out, dlci)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FindOrCreateSessionChannel returns the channel registered for dlci,
// inserting a fresh unestablished one stamped with the current role if
// needed.
func (m *SessionMultiplexer) FindOrCreateSessionChannel(dlci frames.DLCI) *SessionChannel {
	if ch, ok := m.channels[dlci]; ok {
		return ch
	}
	ch := newSessionChannel(dlci, m.role, m.Logger)
	m.channels[dlci] = ch
	m.Debugf("created session channel for %v", dlci)
	m.observer.OnChannelCreated(dlci)
	return ch
}

// SetFlowControl sets the flow control mode for the channel registered at
// dlci. It fails if no channel exists or the channel is already established.
func (m *SessionMultiplexer) SetFlowControl(dlci frames.DLCI, mode FlowControlMode) error {
	ch, ok := m.channels[dlci]
	if !ok {
		return errors.Wrapf(ErrInvalidDLCI, "set flow control on %v", dlci)
	}
	return ch.SetFlowControl(mode)
}

// EstablishSessionChannel brings up the DLC for dlci and returns the remote
// endpoint half for the profile layer. If no parameter negotiation happened
// yet, the session first self negotiates its own preferred values, mirroring
// the peer behavior when no explicit exchange occurred. Fails with
// ErrChannelAlreadyEstablished, without touching existing state, if the DLC
// is already up.
func (m *SessionMultiplexer) EstablishSessionChannel(dlci frames.DLCI, out rfcomm.OutboundSender) (rfcomm.Endpoint, error) {
	if !m.ParametersNegotiated() {
		m.Debug("no negotiated session parameters, using preferred set")
		m.NegotiateParameters(m.Parameters())
	}

	ch := m.FindOrCreateSessionChannel(dlci)
	if ch.Established() {
		return nil, errors.Wrapf(ErrChannelAlreadyEstablished, "establish %v", dlci)
	}

	params := m.Parameters()
	if !ch.ParametersNegotiated() {
		mode := FlowControlNone
		if params.CreditBasedFlow {
			mode = FlowControlCreditBased
		}
		// channel is not established, cannot fail
		ch.SetFlowControl(mode)
	}

	local, remote := transport.Pipe(params.MaxFrameSize)
	ch.establish(local, out, params.MaxFrameSize)
	m.Infof("established %v, flow control %v, max frame size %v", dlci, ch.FlowControl(), params.MaxFrameSize)
	return remote, nil
}

// CloseSessionChannel removes the channel for dlci from the registry and
// reports whether one was present. Removal requests cancellation of the
// forwarding task but does not wait for it; the DLCI slot is reusable as
// soon as this returns.
func (m *SessionMultiplexer) CloseSessionChannel(dlci frames.DLCI) bool {
	ch, ok := m.channels[dlci]
	if !ok {
		return false
	}
	ch.stop()
	delete(m.channels, dlci)
	m.Infof("closed session channel %v", dlci)
	m.observer.OnChannelRemoved(dlci)
	return true
}

// ReceiveUserData routes inbound user data from the frame layer to the
// channel registered at dlci. Delivery may block on the channel endpoint's
// buffer; that backpressure is how a slow profile layer throttles the peer.
func (m *SessionMultiplexer) ReceiveUserData(dlci frames.DLCI, data frames.FlowControlledData) error {
	ch, ok := m.channels[dlci]
	if !ok {
		return errors.Wrapf(ErrInvalidDLCI, "receive %v bytes for %v", len(data.Data), dlci)
	}
	return ch.receiveUserData(data)
}
