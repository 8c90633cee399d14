package multiplexer

import "github.com/rigado/rfcomm/frames"

// SessionObserver receives diagnostics callouts from the multiplexer: role
// changes, negotiated parameters, and channel create/remove. Callbacks are
// side effect only; a no-op implementation is indistinguishable from an
// active one as far as protocol behavior goes. Callbacks run on the session
// driver task and must not block.
type SessionObserver interface {
	OnRoleChanged(Role)
	OnParametersChanged(SessionParameters)
	OnChannelCreated(frames.DLCI)
	OnChannelRemoved(frames.DLCI)
}

type noopObserver struct{}

func (noopObserver) OnRoleChanged(Role)                    {}
func (noopObserver) OnParametersChanged(SessionParameters) {}
func (noopObserver) OnChannelCreated(frames.DLCI)          {}
func (noopObserver) OnChannelRemoved(frames.DLCI)          {}
