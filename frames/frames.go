// Package frames holds the value types shared between the frame codec and
// the session layer. The wire encoding itself lives with the codec; the
// session layer treats these as opaque payloads.
package frames

// FlowControlledData is the payload of a user data frame. When credit based
// flow control is active on a channel, Credits piggybacks a replenishment of
// the sender's allowance.
type FlowControlledData struct {
	Credits uint8
	Data    []byte
}

// NoCredits wraps data with no piggybacked credits.
func NoCredits(data []byte) FlowControlledData {
	return FlowControlledData{Data: data}
}

// WithCredits wraps data together with a credit grant.
func WithCredits(credits uint8, data []byte) FlowControlledData {
	return FlowControlledData{Credits: credits, Data: data}
}

// UserData is a framed payload addressed to one channel. The per channel
// forwarding task emits these into the session's outbound queue; the frame
// codec turns them into UIH frames on the wire.
type UserData struct {
	DLCI    DLCI
	Payload FlowControlledData
}
