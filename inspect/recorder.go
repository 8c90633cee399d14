// Package inspect is an optional diagnostics sink for the session
// multiplexer. It implements multiplexer.SessionObserver, keeping a live
// snapshot of the session plus an ordered event log, and can serialize both
// for external tooling. It has no influence on protocol behavior.
package inspect

import (
	"fmt"
	"io/ioutil"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/rigado/rfcomm/frames"
	"github.com/rigado/rfcomm/multiplexer"
)

type Event struct {
	Seq    int    `json:"seq"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

type Snapshot struct {
	Role            string  `json:"role"`
	ParametersSet   bool    `json:"parametersSet"`
	CreditBasedFlow bool    `json:"creditBasedFlow"`
	MaxFrameSize    uint16  `json:"maxFrameSize"`
	OpenDLCIs       []uint8 `json:"openDlcis"`
	Events          []Event `json:"events"`
}

// Recorder collects multiplexer callbacks. The multiplexer invokes it from
// the session driver task, while snapshot readers may live anywhere, so the
// recorder locks where the multiplexer does not.
type Recorder struct {
	lock sync.Mutex

	role      multiplexer.Role
	params    multiplexer.SessionParameters
	paramsSet bool
	open      []frames.DLCI
	events    []Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnRoleChanged(role multiplexer.Role) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.role = role
	r.record("role", role.String())
}

func (r *Recorder) OnParametersChanged(p multiplexer.SessionParameters) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.params = p
	r.paramsSet = true
	r.record("parameters", fmt.Sprintf("creditBasedFlow=%v maxFrameSize=%v", p.CreditBasedFlow, p.MaxFrameSize))
}

func (r *Recorder) OnChannelCreated(dlci frames.DLCI) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.open = append(r.open, dlci)
	r.record("channel created", dlci.String())
}

func (r *Recorder) OnChannelRemoved(dlci frames.DLCI) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for i, d := range r.open {
		if d == dlci {
			r.open = append(r.open[:i], r.open[i+1:]...)
			break
		}
	}
	r.record("channel removed", dlci.String())
}

// record assumes the lock is held.
func (r *Recorder) record(kind, detail string) {
	r.events = append(r.events, Event{Seq: len(r.events), Kind: kind, Detail: detail})
}

// Snapshot returns the current session view.
func (r *Recorder) Snapshot() Snapshot {
	r.lock.Lock()
	defer r.lock.Unlock()

	snap := Snapshot{
		Role:            r.role.String(),
		ParametersSet:   r.paramsSet,
		CreditBasedFlow: r.params.CreditBasedFlow,
		MaxFrameSize:    r.params.MaxFrameSize,
		OpenDLCIs:       make([]uint8, 0, len(r.open)),
		Events:          make([]Event, len(r.events)),
	}
	for _, d := range r.open {
		snap.OpenDLCIs = append(snap.OpenDLCIs, uint8(d))
	}
	copy(snap.Events, r.events)
	return snap
}

// MarshalSnapshot serializes the current session view.
func (r *Recorder) MarshalSnapshot() ([]byte, error) {
	bb, err := jsoniter.MarshalIndent(r.Snapshot(), "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "marshal session snapshot")
	}
	return bb, nil
}

// WriteFile dumps the current session view to a file.
func (r *Recorder) WriteFile(filename string) error {
	bb, err := r.MarshalSnapshot()
	if err != nil {
		return err
	}
	if err := ioutil.WriteFile(filename, bb, 0644); err != nil {
		return errors.Wrapf(err, "write session snapshot to %s", filename)
	}
	return nil
}
