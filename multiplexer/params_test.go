package multiplexer

import "testing"

func TestNegotiateTakesRequestedFlowAndMinFrameSize(t *testing.T) {
	cases := []struct {
		current, requested, want SessionParameters
	}{
		{
			current:   SessionParameters{CreditBasedFlow: true, MaxFrameSize: 900},
			requested: SessionParameters{CreditBasedFlow: true, MaxFrameSize: 1000},
			want:      SessionParameters{CreditBasedFlow: true, MaxFrameSize: 900},
		},
		{
			current:   SessionParameters{CreditBasedFlow: true, MaxFrameSize: 900},
			requested: SessionParameters{CreditBasedFlow: false, MaxFrameSize: 500},
			want:      SessionParameters{CreditBasedFlow: false, MaxFrameSize: 500},
		},
		{
			current:   SessionParameters{CreditBasedFlow: false, MaxFrameSize: 100},
			requested: SessionParameters{CreditBasedFlow: true, MaxFrameSize: 800},
			want:      SessionParameters{CreditBasedFlow: true, MaxFrameSize: 100},
		},
	}

	for i, c := range cases {
		got := negotiate(c.current, c.requested)
		if got != c.want {
			t.Fatalf("case %v: got %+v, want %+v", i, got, c.want)
		}
	}
}

func TestNegotiateFlowControlIsOverwriteNotMerge(t *testing.T) {
	cur := SessionParameters{CreditBasedFlow: false, MaxFrameSize: 672}
	got := negotiate(cur, SessionParameters{CreditBasedFlow: true, MaxFrameSize: 672})
	if !got.CreditBasedFlow {
		t.Fatal("requested credit based flow was not taken")
	}
	got = negotiate(got, SessionParameters{CreditBasedFlow: false, MaxFrameSize: 672})
	if got.CreditBasedFlow {
		t.Fatal("most recent request must win")
	}
}

func TestDefaultPreferredParameters(t *testing.T) {
	p := DefaultPreferredParameters(900)
	if !p.CreditBasedFlow {
		t.Fatal("default preference should select credit based flow")
	}
	if p.MaxFrameSize != 900 {
		t.Fatalf("got max frame size %v, want 900", p.MaxFrameSize)
	}
}

func TestNegotiationStateStoresResult(t *testing.T) {
	n := negotiationState{params: DefaultPreferredParameters(900)}
	if n.negotiated {
		t.Fatal("fresh state should not be negotiated")
	}
	if n.current() != DefaultPreferredParameters(900) {
		t.Fatal("current should return the preference before negotiation")
	}

	got := n.negotiate(SessionParameters{CreditBasedFlow: true, MaxFrameSize: 1000})
	want := SessionParameters{CreditBasedFlow: true, MaxFrameSize: 900}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	if !n.negotiated {
		t.Fatal("state should be negotiated after negotiate")
	}
	if n.current() != want {
		t.Fatal("current should return the negotiated value")
	}
}

func TestRolePredicates(t *testing.T) {
	started := map[Role]bool{
		RoleUnassigned:  false,
		RoleNegotiating: false,
		RoleInitiator:   true,
		RoleResponder:   true,
	}
	for r, want := range started {
		if r.IsStarted() != want {
			t.Fatalf("%v: IsStarted() = %v, want %v", r, r.IsStarted(), want)
		}
	}
}
