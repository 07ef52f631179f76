package model

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseWagonType(t *testing.T) {
	tests := []struct {
		in      string
		want    WagonType
		wantErr bool
	}{
		{"EKONOMİ", WagonEkonomi, false},
		{"EKONOMI", WagonEkonomi, false},
		{"ekonomi", WagonEkonomi, false},
		{"BUSINESS", WagonBusiness, false},
		{"business", WagonBusiness, false},
		{"YATAKLI", WagonYatakli, false},
		{"yataklı", WagonYatakli, false},
		{"ALL", WagonAll, false},
		{"all", WagonAll, false},
		{"", WagonAll, false},
		{"PULLMAN", "", true},
	}
	for _, tt := range tests {
		got, err := ParseWagonType(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseWagonType(%q): expected error, got %q", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWagonType(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseWagonType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWatchParamsValidate(t *testing.T) {
	valid := WatchParams{From: "Çiğli", To: "Konya", Date: "2026-01-20"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}

	missing := WatchParams{To: "Konya"}
	err := missing.Validate()
	if err == nil {
		t.Fatal("expected error for missing fields")
	}
	for _, field := range []string{"from", "date"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q should name missing field %q", err, field)
		}
	}
	if strings.Contains(err.Error(), "to,") || strings.HasSuffix(err.Error(), "to") {
		t.Errorf("error %q should not name the present field to", err)
	}
}

func TestWagonStateAbsent(t *testing.T) {
	price := "450TL"
	tests := []struct {
		name  string
		state WagonState
		want  bool
	}{
		{"explicit flag", WagonState{Status: StatusFull, WagonNotFound: true}, true},
		{"legacy encoding", WagonState{Status: StatusFull, Price: nil}, true},
		{"full with price", WagonState{Status: StatusFull, Price: &price}, false},
		{"available", WagonState{Status: StatusAvailable, Price: &price}, false},
	}
	for _, tt := range tests {
		if got := tt.state.Absent(); got != tt.want {
			t.Errorf("%s: Absent() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSessionStatusAppendLogBounded(t *testing.T) {
	var s SessionStatus
	for i := 0; i < MaxStatusLogs+15; i++ {
		s.AppendLog(fmt.Sprintf("line %d", i))
	}
	if len(s.Logs) != MaxStatusLogs {
		t.Fatalf("got %d log lines, want %d", len(s.Logs), MaxStatusLogs)
	}
	if s.Logs[0] != "line 15" {
		t.Errorf("oldest retained line = %q, want %q", s.Logs[0], "line 15")
	}
	if s.Logs[len(s.Logs)-1] != fmt.Sprintf("line %d", MaxStatusLogs+14) {
		t.Errorf("newest line = %q", s.Logs[len(s.Logs)-1])
	}
}

func TestSessionStatusClone(t *testing.T) {
	params := WatchParams{From: "Ankara", To: "Konya", Date: "2026-01-20"}
	s := SessionStatus{Watching: true, Params: &params}
	s.AppendLog("one")

	clone := s.Clone()
	clone.Logs[0] = "mutated"
	clone.Params.From = "İzmir"

	if s.Logs[0] != "one" {
		t.Error("clone shares the log slice with the original")
	}
	if s.Params.From != "Ankara" {
		t.Error("clone shares params with the original")
	}
}
