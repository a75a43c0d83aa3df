package l2tp

import (
	"testing"
)

func TestFsmTransitions(t *testing.T) {
	var calls []string
	record := func(name string) fsmCallback {
		return func(args []interface{}) {
			calls = append(calls, name)
		}
	}

	f := fsm{
		current: "closed",
		table: []eventDesc{
			{from: "closed", events: []string{"open"}, cb: record("open"), to: "open"},
			{from: "open", events: []string{"ping", "pong"}, cb: record("keepalive"), to: "open"},
			{from: "open", events: []string{"close"}, to: "closed"},
		},
	}

	if err := f.handleEvent("open"); err != nil {
		t.Fatalf("handleEvent(open): %v", err)
	}
	if f.state() != "open" {
		t.Fatalf("expected state open, got %v", f.state())
	}
	if err := f.handleEvent("ping"); err != nil {
		t.Fatalf("handleEvent(ping): %v", err)
	}
	if err := f.handleEvent("pong"); err != nil {
		t.Fatalf("handleEvent(pong): %v", err)
	}
	if err := f.handleEvent("close"); err != nil {
		t.Fatalf("handleEvent(close): %v", err)
	}
	if f.state() != "closed" {
		t.Fatalf("expected state closed, got %v", f.state())
	}

	if len(calls) != 3 || calls[0] != "open" || calls[1] != "keepalive" || calls[2] != "keepalive" {
		t.Errorf("unexpected callback sequence %v", calls)
	}
}

func TestFsmRejectsUndefinedEvent(t *testing.T) {
	f := fsm{
		current: "closed",
		table: []eventDesc{
			{from: "closed", events: []string{"open"}, to: "open"},
		},
	}
	if err := f.handleEvent("close"); err == nil {
		t.Fatal("expected an error for an event with no transition")
	}
	if f.state() != "closed" {
		t.Fatalf("state changed on a rejected event: %v", f.state())
	}
}
