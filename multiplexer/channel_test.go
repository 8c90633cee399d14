package multiplexer

import (
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/rigado/rfcomm"
	"github.com/rigado/rfcomm/frames"
	"github.com/rigado/rfcomm/transport"
)

func testChannel(t *testing.T, v uint8) *SessionChannel {
	t.Helper()
	dlci, err := frames.NewUserDLCI(v)
	if err != nil {
		t.Fatalf("bad test dlci %v: %v", v, err)
	}
	return newSessionChannel(dlci, RoleInitiator, rfcomm.GetLogger())
}

func TestChannelFlowControlFixedAtEstablishment(t *testing.T) {
	ch := testChannel(t, 9)
	if ch.ParametersNegotiated() {
		t.Fatal("fresh channel must not have finalized flow control")
	}

	if err := ch.SetFlowControl(FlowControlCreditBased); err != nil {
		t.Fatalf("set flow control failed: %v", err)
	}
	if !ch.ParametersNegotiated() {
		t.Fatal("flow control should be finalized after set")
	}
	if ch.FlowControl() != FlowControlCreditBased {
		t.Fatalf("mode %v, want credit-based", ch.FlowControl())
	}

	local, _ := transport.Pipe(64)
	ch.establish(local, rfcomm.NewFrameQueue(1), 64)

	if err := ch.SetFlowControl(FlowControlNone); errors.Cause(err) != ErrChannelAlreadyEstablished {
		t.Fatalf("got %v, want ErrChannelAlreadyEstablished", err)
	}
	if ch.FlowControl() != FlowControlCreditBased {
		t.Fatal("failed set must not change the mode")
	}
}

func TestChannelReceiveBeforeEstablishment(t *testing.T) {
	ch := testChannel(t, 9)
	err := ch.receiveUserData(frames.NoCredits([]byte{1, 2}))
	if errors.Cause(err) != ErrInvalidDLCI {
		t.Fatalf("got %v, want ErrInvalidDLCI", err)
	}
}

func TestChannelCreditAccounting(t *testing.T) {
	ch := testChannel(t, 9)
	if err := ch.SetFlowControl(FlowControlCreditBased); err != nil {
		t.Fatalf("set flow control failed: %v", err)
	}

	local, remote := transport.Pipe(64)
	ch.establish(local, rfcomm.NewFrameQueue(1), 64)

	if err := ch.receiveUserData(frames.WithCredits(5, nil)); err != nil {
		t.Fatalf("credit only frame failed: %v", err)
	}
	if ch.TxCredits() != 5 {
		t.Fatalf("tx credits %v, want 5", ch.TxCredits())
	}

	if err := ch.receiveUserData(frames.WithCredits(2, []byte("ab"))); err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if ch.TxCredits() != 7 {
		t.Fatalf("tx credits %v, want 7", ch.TxCredits())
	}

	buf := make([]byte, 8)
	n, err := remote.Read(buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(buf[:n]) != "ab" {
		t.Fatalf("got %q, want \"ab\"", buf[:n])
	}
}

func TestChannelIgnoresCreditsWithoutCreditBasedFlow(t *testing.T) {
	ch := testChannel(t, 9)
	if err := ch.SetFlowControl(FlowControlNone); err != nil {
		t.Fatalf("set flow control failed: %v", err)
	}

	local, _ := transport.Pipe(64)
	ch.establish(local, rfcomm.NewFrameQueue(1), 64)

	if err := ch.receiveUserData(frames.WithCredits(9, nil)); err != nil {
		t.Fatalf("receive failed: %v", err)
	}
	if ch.TxCredits() != 0 {
		t.Fatalf("credits tracked without credit based flow: %v", ch.TxCredits())
	}
}

func TestChannelDoneBeforeEstablishment(t *testing.T) {
	ch := testChannel(t, 9)
	select {
	case <-ch.Done():
	default:
		t.Fatal("Done of a never established channel should be closed")
	}
}

func TestChannelStopTerminatesForwarding(t *testing.T) {
	ch := testChannel(t, 9)
	local, _ := transport.Pipe(64)
	ch.establish(local, rfcomm.NewFrameQueue(1), 64)

	ch.stop()

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("forwarding task did not observe stop")
	}
}
