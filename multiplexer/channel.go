package multiplexer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/rigado/rfcomm"
	"github.com/rigado/rfcomm/frames"
)

// FlowControlMode is a channel's flow control scheme. It starts unset and is
// fixed at establishment time.
type FlowControlMode int

const (
	FlowControlUnset FlowControlMode = iota
	FlowControlNone
	FlowControlCreditBased
)

func (m FlowControlMode) String() string {
	switch m {
	case FlowControlUnset:
		return "unset"
	case FlowControlNone:
		return "none"
	case FlowControlCreditBased:
		return "credit-based"
	}
	return "unknown"
}

// SessionChannel is the per DLCI state: a two state machine (unestablished,
// established), the flow control bookkeeping, and, once established, the
// local half of the channel's endpoint pair plus the forwarding task that
// pumps bytes written by the profile layer into the session's outbound
// queue.
//
// Like the multiplexer that owns it, a SessionChannel is mutated only by the
// session driver task; the forwarding goroutine never touches channel state.
type SessionChannel struct {
	dlci        frames.DLCI
	role        Role
	established bool
	flowControl FlowControlMode

	// credits the peer has granted us for the transmit path; replenished
	// by piggybacked credits on inbound data
	txCredits uint16

	local  rfcomm.Endpoint
	cancel context.CancelFunc
	done   chan struct{}

	rfcomm.Logger
}

func newSessionChannel(dlci frames.DLCI, role Role, l rfcomm.Logger) *SessionChannel {
	return &SessionChannel{
		dlci:   dlci,
		role:   role,
		Logger: l.ChildLogger(map[string]interface{}{"dlci": dlci.String()}),
	}
}

func (sc *SessionChannel) DLCI() frames.DLCI {
	return sc.dlci
}

func (sc *SessionChannel) Role() Role {
	return sc.role
}

func (sc *SessionChannel) Established() bool {
	return sc.established
}

// ParametersNegotiated reports whether this channel's flow control has been
// finalized. A channel can exist in the registry before session negotiation
// completes, so this is distinct from the session level flag.
func (sc *SessionChannel) ParametersNegotiated() bool {
	return sc.flowControl != FlowControlUnset
}

func (sc *SessionChannel) FlowControl() FlowControlMode {
	return sc.flowControl
}

// TxCredits is the current transmit allowance granted by the peer. The
// transmit side of the frame layer decrements it; it is surfaced here for
// that path and for diagnostics.
func (sc *SessionChannel) TxCredits() uint16 {
	return sc.txCredits
}

// SetFlowControl records the channel's flow control mode. The mode is fixed
// once the channel is established.
func (sc *SessionChannel) SetFlowControl(mode FlowControlMode) error {
	if sc.established {
		return errors.Wrapf(ErrChannelAlreadyEstablished, "set flow control on %v", sc.dlci)
	}
	sc.flowControl = mode
	return nil
}

// establish transitions the channel to established, takes ownership of the
// local endpoint, and spawns the forwarding task. The multiplexer guarantees
// this runs at most once per channel.
func (sc *SessionChannel) establish(local rfcomm.Endpoint, out rfcomm.OutboundSender, maxFrameSize uint16) {
	if sc.established {
		// the public API is supposed to make this unreachable
		panic("establish on established session channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sc.local = local
	sc.cancel = cancel
	sc.done = make(chan struct{})
	sc.established = true

	go sc.forward(ctx, local, out, maxFrameSize)
}

// forward pumps bytes the profile layer writes into its endpoint half out to
// the session's write path, one frame payload at a time. It exits when the
// channel is stopped or either side of the path fails.
func (sc *SessionChannel) forward(ctx context.Context, local rfcomm.Endpoint, out rfcomm.OutboundSender, maxFrameSize uint16) {
	defer close(sc.done)

	if maxFrameSize == 0 {
		maxFrameSize = 1
	}
	buf := make([]byte, maxFrameSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := local.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ud := frames.UserData{DLCI: sc.dlci, Payload: frames.NoCredits(data)}
			if serr := out.SendFrame(ctx, ud); serr != nil {
				sc.Debugf("forwarding stopped on %v: %v", sc.dlci, serr)
				return
			}
		}
		if err != nil {
			sc.Debugf("forwarding done on %v: %v", sc.dlci, err)
			return
		}
	}
}

// stop requests cancellation of the forwarding task and closes the local
// endpoint so a blocked read wakes up. It does not wait; callers that need
// the task fully gone wait on Done.
func (sc *SessionChannel) stop() {
	if sc.cancel != nil {
		sc.cancel()
	}
	if sc.local != nil {
		sc.local.Close()
	}
}

var channelNeverRan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// Done is closed once the forwarding task has fully exited. For a channel
// that never established it is already closed.
func (sc *SessionChannel) Done() <-chan struct{} {
	if sc.done == nil {
		return channelNeverRan
	}
	return sc.done
}

// receiveUserData delivers inbound frame layer data to the channel: credit
// bookkeeping first, then the payload bytes into the local endpoint for the
// profile layer to read. The write blocks while the endpoint buffer is full;
// that backpressure is intentional.
func (sc *SessionChannel) receiveUserData(data frames.FlowControlledData) error {
	if !sc.established {
		return errors.Wrapf(ErrInvalidDLCI, "%v not established", sc.dlci)
	}

	if sc.flowControl == FlowControlCreditBased && data.Credits > 0 {
		if nv := uint32(sc.txCredits) + uint32(data.Credits); nv > 0xffff {
			sc.Warnf("tx credits on %v would overflow, capping", sc.dlci)
			sc.txCredits = 0xffff
		} else {
			sc.txCredits += uint16(data.Credits)
		}
	}

	if len(data.Data) == 0 {
		return nil
	}

	if _, err := sc.local.Write(data.Data); err != nil {
		return errors.Wrapf(err, "deliver %v bytes to %v", len(data.Data), sc.dlci)
	}
	return nil
}
