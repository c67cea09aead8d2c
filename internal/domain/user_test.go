package domain

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewIdentity(t *testing.T) {
	cases := []struct {
		in   string
		want Identity
		err  error
	}{
		{"alice", "alice", nil},
		{"  bob  ", "bob", nil},
		{"", "", ErrNameEmpty},
		{"   ", "", ErrNameEmpty},
		{strings.Repeat("x", MaxNameLen+1), "", ErrNameTooLong},
	}
	for _, tc := range cases {
		got, err := NewIdentity(tc.in)
		if err != tc.err {
			t.Errorf("NewIdentity(%q) err = %v, want %v", tc.in, err, tc.err)
		}
		if got != tc.want {
			t.Errorf("NewIdentity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewRoomID(t *testing.T) {
	if _, err := NewRoomID(""); err != ErrRoomEmpty {
		t.Fatalf("empty room err = %v", err)
	}
	if _, err := NewRoomID(strings.Repeat("r", MaxRoomLen+1)); err != ErrRoomTooLong {
		t.Fatalf("long room err = %v", err)
	}
	r, err := NewRoomID(" R1 ")
	if err != nil || r != "R1" {
		t.Fatalf("NewRoomID = %q, %v", r, err)
	}
}

func TestMessageTypeClasses(t *testing.T) {
	for _, mt := range []MessageType{TypeOffer, TypeAnswer, TypeICE, TypeHangup} {
		if !mt.IsRoomRelay() || mt.IsDM() || mt.IsGroupNegotiation() {
			t.Errorf("%s misclassified", mt)
		}
	}
	for _, mt := range []MessageType{TypeDMCallRequest, TypeDMOffer, TypeDMHangup} {
		if !mt.IsDM() || mt.IsRoomRelay() {
			t.Errorf("%s misclassified", mt)
		}
	}
	if !TypeGroupICE.IsGroupNegotiation() || TypeGroupJoin.IsGroupNegotiation() {
		t.Error("group types misclassified")
	}
}

func TestGroupNoticeKeepsZeroCount(t *testing.T) {
	b, err := json.Marshal(GroupNotice{Type: TypeGroupLeave, Max: 4})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"count":0`) {
		t.Fatalf("count dropped: %s", b)
	}
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m.Count == nil || *m.Count != 0 {
		t.Fatalf("decoded count = %v", m.Count)
	}
}
