package ipc

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Event{
		Type:   TypeWagonChecked,
		Wagon:  "BUSINESS",
		Status: "MUSAIT",
		Price:  "450TL",
	}
	line, err := Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out, ok := Decode(line)
	if !ok {
		t.Fatalf("Decode rejected %q", line)
	}
	if out.V != Version {
		t.Errorf("V = %d, want %d", out.V, Version)
	}
	if out.Type != in.Type || out.Wagon != in.Wagon || out.Status != in.Status || out.Price != in.Price {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestDecodeRejectsNonProtocolLines(t *testing.T) {
	lines := []string{
		"",
		"   ",
		"WARNING: slow selector, retrying",
		"{not json",
		`{"type":"log"}`,                // no version
		`{"v":99,"type":"log"}`,         // future version
		`{"v":1}`,                       // no type
		`plain text with { brace in it`, // not JSON-leading
	}
	for _, line := range lines {
		if _, ok := Decode(line); ok {
			t.Errorf("Decode(%q) should be rejected", line)
		}
	}
}

func TestDecodeTrimsWhitespace(t *testing.T) {
	e, ok := Decode("  " + `{"v":1,"type":"exhausted"}` + "\r\n")
	if !ok {
		t.Fatal("Decode rejected padded line")
	}
	if e.Type != TypeExhausted {
		t.Errorf("Type = %q, want %q", e.Type, TypeExhausted)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		event Event
		want  string
	}{
		{Event{Type: TypeCycleStarted, N: 3, At: "10:15:00"}, "check #3 at 10:15:00"},
		{Event{Type: TypeWagonChecked, Wagon: "BUSINESS", Status: "DOLU"}, "BUSINESS: DOLU"},
		{Event{Type: TypeWagonChecked, Wagon: "BUSINESS", Status: "MUSAIT", Price: "450TL"}, "BUSINESS: MUSAIT (450TL)"},
		{Event{Type: TypeTransition, Wagon: "EKONOMİ", Price: "225TL"}, "EKONOMİ opened up! price 225TL"},
		{Event{Type: TypeTicketFound, Wagons: []string{"EKONOMİ", "BUSINESS"}}, "ticket found: EKONOMİ, BUSINESS"},
		{Event{Type: TypeWagonAbsent, Wagon: "YATAKLI"}, "YATAKLI is not offered on this trip"},
		{Event{Type: TypeRetrying, Attempt: 2, Reason: "timeout"}, "retrying (attempt 2): timeout"},
		{Event{Type: TypeExhausted}, "watch ended without finding a ticket"},
		{Event{Type: TypeLog, Message: "hello"}, "hello"},
	}
	for _, tt := range tests {
		if got := tt.event.Render(); got != tt.want {
			t.Errorf("Render(%s) = %q, want %q", tt.event.Type, got, tt.want)
		}
	}
}

func TestEmitterWritesOneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	m := NewEmitter(&buf)

	if err := m.Emit(Event{Type: TypeCycleStarted, N: 1, At: "09:00:00"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	m.Logf("checking %s", "BUSINESS")

	scanner := bufio.NewScanner(strings.NewReader(buf.String()))
	var events []Event
	for scanner.Scan() {
		e, ok := Decode(scanner.Text())
		if !ok {
			t.Fatalf("emitter produced undecodable line: %q", scanner.Text())
		}
		events = append(events, e)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != TypeCycleStarted || events[0].N != 1 {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != TypeLog || events[1].Message != "checking BUSINESS" {
		t.Errorf("second event = %+v", events[1])
	}
}
