// Package rfcomm provides a session multiplexer for RFCOMM, the serial port
// emulation protocol carried over a single L2CAP channel. One physical
// connection hosts many logical data link connections (DLCs), each addressed
// by a DLCI; the multiplexer in the multiplexer subpackage owns the per
// session state, while this package defines the contracts between it and its
// collaborators: the frame layer driving it, the transport endpoints it hands
// to profile level callers, and the outbound queue feeding the write path.
package rfcomm

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/rigado/rfcomm/frames"
)

// Endpoint is one half of a connected byte stream pair. The session layer
// owns the local half of an established channel; the remote half goes to the
// profile level caller. Read blocks until data or closure; Write blocks when
// the peer is slow, which is the backpressure mechanism.
type Endpoint interface {
	io.ReadWriteCloser
}

// OutboundSender is the session's write path: a bounded, single consumer
// queue of framed payloads. Per channel forwarding tasks are the producers;
// the frame layer drains it onto the wire. SendFrame blocks while the queue
// is full and returns the context error if ctx ends first.
type OutboundSender interface {
	SendFrame(ctx context.Context, data frames.UserData) error
}

// ErrQueueClosed is returned by SendFrame after the queue has been closed.
var ErrQueueClosed = errors.New("outbound queue closed")

// FrameQueue is a channel backed OutboundSender. The frame layer reads
// Frames; everything else goes through SendFrame.
type FrameQueue struct {
	frames    chan frames.UserData
	done      chan struct{}
	closeOnce sync.Once
}

// NewFrameQueue makes a queue holding at most depth undelivered frames.
func NewFrameQueue(depth int) *FrameQueue {
	if depth < 1 {
		depth = 1
	}
	return &FrameQueue{
		frames: make(chan frames.UserData, depth),
		done:   make(chan struct{}),
	}
}

func (q *FrameQueue) SendFrame(ctx context.Context, data frames.UserData) error {
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.frames <- data:
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "outbound send")
	}
}

// Frames is the consumer side. Only the frame layer should read from it.
func (q *FrameQueue) Frames() <-chan frames.UserData {
	return q.frames
}

// Close unblocks pending and future senders. Frames already queued remain
// readable.
func (q *FrameQueue) Close() {
	q.closeOnce.Do(func() { close(q.done) })
}
