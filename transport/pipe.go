// Package transport produces connected byte stream endpoint pairs for the
// session layer. The session keeps one half of a pair for its forwarding
// task and hands the other to the profile level caller.
package transport

import (
	"io"
	"sync"
)

// Queue depth per direction, in chunks of at most the pair's MTU.
const pipeQueueDepth = 8

// Pipe returns a connected in-memory endpoint pair. Writes are split into
// chunks no larger than mtu, so the pair buffers at most a few MTUs per
// direction before writers block. Closing either half unblocks both.
func Pipe(mtu uint16) (local, remote io.ReadWriteCloser) {
	if mtu == 0 {
		mtu = 1
	}

	ab := make(chan []byte, pipeQueueDepth)
	ba := make(chan []byte, pipeQueueDepth)
	doneA := make(chan struct{})
	doneB := make(chan struct{})

	a := &pipeEndpoint{mtu: int(mtu), rd: ba, wr: ab, localDone: doneA, peerDone: doneB}
	b := &pipeEndpoint{mtu: int(mtu), rd: ab, wr: ba, localDone: doneB, peerDone: doneA}
	return a, b
}

type pipeEndpoint struct {
	mtu int

	rd chan []byte
	wr chan []byte

	localDone chan struct{}
	peerDone  chan struct{}
	closeOnce sync.Once

	// remainder of a chunk the last Read did not fully consume; only the
	// reader side touches it
	pending []byte
}

func (p *pipeEndpoint) Read(b []byte) (int, error) {
	if len(p.pending) > 0 {
		n := copy(b, p.pending)
		p.pending = p.pending[n:]
		return n, nil
	}

	select {
	case chunk := <-p.rd:
		n := copy(b, chunk)
		p.pending = chunk[n:]
		return n, nil
	case <-p.localDone:
		return 0, io.ErrClosedPipe
	case <-p.peerDone:
		// the peer may have closed with chunks still buffered
		select {
		case chunk := <-p.rd:
			n := copy(b, chunk)
			p.pending = chunk[n:]
			return n, nil
		default:
			return 0, io.EOF
		}
	}
}

func (p *pipeEndpoint) Write(b []byte) (int, error) {
	total := 0
	for len(b) > 0 {
		n := p.mtu
		if n > len(b) {
			n = len(b)
		}
		chunk := make([]byte, n)
		copy(chunk, b[:n])

		select {
		case p.wr <- chunk:
			total += n
			b = b[n:]
		case <-p.localDone:
			return total, io.ErrClosedPipe
		case <-p.peerDone:
			return total, io.ErrClosedPipe
		}
	}
	return total, nil
}

func (p *pipeEndpoint) Close() error {
	p.closeOnce.Do(func() { close(p.localDone) })
	return nil
}
