package controlsws

import (
	"testing"

	"github.com/mfdrelay/relay/internal/controls"
)

func TestReadyToPushRequiresSubscriptionAndAcknowledgement(t *testing.T) {
	st := &connState{subscribed: map[string]bool{}, acknowledged: true}
	if st.readyToPush() {
		t.Fatal("should not be ready with no subscriptions")
	}

	st.subscribed["UFC_1"] = true
	if !st.readyToPush() {
		t.Fatal("should be ready once subscribed and acknowledged")
	}

	st.markPushed()
	if st.readyToPush() {
		t.Fatal("should not be ready again until acknowledged")
	}

	st.markAcknowledged()
	if !st.readyToPush() {
		t.Fatal("should be ready again after acknowledge")
	}
}

func TestWireInputToDomainMapsKinds(t *testing.T) {
	cases := []struct {
		in   wireInput
		want controls.InputValueKind
	}{
		{wireInput{Kind: "increase"}, controls.InputValueIncrease},
		{wireInput{Kind: "decrease"}, controls.InputValueDecrease},
		{wireInput{Kind: "toggle"}, controls.InputValueToggle},
		{wireInput{Kind: "set_state", Value: 7}, controls.InputValueInteger},
	}
	for _, c := range cases {
		got := c.in.toDomain()
		if got.Value.Kind != c.want {
			t.Errorf("kind %q: got %v, want %v", c.in.Kind, got.Value.Kind, c.want)
		}
	}
}

func TestNamesSnapshotsCurrentSubscriptions(t *testing.T) {
	st := &connState{subscribed: map[string]bool{"A": true, "B": true}}
	names := st.names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %v", names)
	}
}
