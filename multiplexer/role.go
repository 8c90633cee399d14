package multiplexer

// Role is this endpoint's side of the session multiplexer. It is Unassigned
// until the multiplexer startup exchange resolves, optionally Negotiating
// while that exchange is in flight, and then fixed as Initiator or Responder
// for the life of the session.
type Role int

const (
	RoleUnassigned Role = iota
	RoleNegotiating
	RoleInitiator
	RoleResponder
)

// IsStarted reports whether the multiplexer startup exchange has completed
// with this role.
func (r Role) IsStarted() bool {
	return r == RoleInitiator || r == RoleResponder
}

func (r Role) String() string {
	switch r {
	case RoleUnassigned:
		return "unassigned"
	case RoleNegotiating:
		return "negotiating"
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	}
	return "unknown"
}
