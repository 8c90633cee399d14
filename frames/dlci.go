package frames

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	// MuxControlDLCI carries multiplexer control traffic, never user data.
	MuxControlDLCI = DLCI(0)

	// DLCIs are a 6 bit field on the wire. 1 is reserved; 2..61 address
	// user data channels.
	minUserDLCI = 2
	maxDLCI     = 61
)

// DLCI identifies one logical data link connection within a session.
type DLCI uint8

// NewDLCI validates v against the 6 bit wire range.
func NewDLCI(v uint8) (DLCI, error) {
	d := DLCI(v)
	if v > maxDLCI {
		return d, errors.Errorf("dlci %v out of range, must be <= %v", v, maxDLCI)
	}
	if v == 1 {
		return d, errors.New("dlci 1 is reserved")
	}
	return d, nil
}

// NewUserDLCI validates v as a user data channel identifier.
func NewUserDLCI(v uint8) (DLCI, error) {
	d, err := NewDLCI(v)
	if err != nil {
		return d, err
	}
	if !d.ValidUserDLCI() {
		return d, errors.Errorf("dlci %v is not a user channel", v)
	}
	return d, nil
}

// ValidUserDLCI reports whether d may carry user data.
func (d DLCI) ValidUserDLCI() bool {
	return d >= minUserDLCI && d <= maxDLCI
}

func (d DLCI) String() string {
	if d == MuxControlDLCI {
		return "dlci(mux control)"
	}
	return fmt.Sprintf("dlci(%d)", uint8(d))
}
