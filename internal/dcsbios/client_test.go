package dcsbios

import (
	"testing"

	"github.com/mfdrelay/relay/internal/controls"
)

func TestSendDropsWhenUplinkFull(t *testing.T) {
	c := New("127.0.0.1:0", nil)

	for i := 0; i < uplinkCapacity; i++ {
		if !c.Send(controls.Input{Name: "X", Value: controls.InputValue{Kind: controls.InputValueToggle}}) {
			t.Fatalf("expected send %d to succeed while queue has room", i)
		}
	}

	if c.Send(controls.Input{Name: "OVERFLOW"}) {
		t.Fatal("expected send to report dropped once the uplink queue is full")
	}
}

func TestMirrorReturnsIndependentCopy(t *testing.T) {
	c := New("127.0.0.1:0", nil)
	c.mirror[5] = 0x42

	snap := c.Mirror()
	snap[5] = 0x00

	if c.mirror[5] != 0x42 {
		t.Fatal("mutating the returned snapshot should not affect the live mirror")
	}
}
