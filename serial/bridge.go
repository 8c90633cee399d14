// Package serial bridges an established DLC endpoint to a host serial port.
// RFCOMM emulates a serial link, so the canonical consumer of a channel's
// remote endpoint is a tty: bytes read from the port go up the channel,
// bytes delivered by the channel go out the port.
package serial

import (
	"io"
	"sync"

	goserial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"

	"github.com/rigado/rfcomm"
)

type Bridge struct {
	endpoint io.ReadWriteCloser
	port     io.ReadWriteCloser

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	rfcomm.Logger
}

// Start opens the serial port described by opts and begins pumping bytes
// both ways between it and endpoint. The bridge owns both until Stop.
func Start(endpoint io.ReadWriteCloser, opts goserial.OpenOptions, l rfcomm.Logger) (*Bridge, error) {
	// a zero minimum read size makes Read return whatever is available
	opts.MinimumReadSize = 0
	if opts.InterCharacterTimeout == 0 {
		opts.InterCharacterTimeout = 100
	}

	sp, err := goserial.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial port %s", opts.PortName)
	}

	if l == nil {
		l = rfcomm.GetLogger()
	}
	b := &Bridge{
		endpoint: endpoint,
		port:     sp,
		done:     make(chan struct{}),
		Logger:   l.ChildLogger(map[string]interface{}{"bridge": opts.PortName}),
	}

	b.wg.Add(2)
	go b.pump("port->channel", sp, endpoint)
	go b.pump("channel->port", endpoint, sp)
	go func() {
		b.wg.Wait()
		close(b.done)
	}()

	return b, nil
}

func (b *Bridge) pump(dir string, src io.Reader, dst io.Writer) {
	defer b.wg.Done()
	n, err := io.Copy(dst, src)
	b.Debugf("%s finished after %v bytes: %v", dir, n, err)
}

// Stop closes both ends, which unblocks the copy loops. Wait on Done for
// full teardown.
func (b *Bridge) Stop() {
	b.closeOnce.Do(func() {
		b.endpoint.Close()
		b.port.Close()
	})
}

// Done is closed once both pump directions have exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}
