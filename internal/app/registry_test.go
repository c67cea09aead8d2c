package app

import (
	"slices"
	"testing"

	"github.com/dkeye/convo/internal/domain"
)

func TestRegistryBindLookup(t *testing.T) {
	r := NewRegistry()
	a := newFakeConn("a")
	r.Open(a)

	if prev, ok := r.Bind("a", "alice", "R1"); !ok || prev != nil {
		t.Fatalf("fresh bind = %v, %v", prev, ok)
	}
	conn, ok := r.Lookup("alice")
	if !ok || conn.ID() != "a" {
		t.Fatalf("Lookup(alice) = %v, %v", conn, ok)
	}
	b, ok := r.BindingOf("a")
	if !ok || b.Name != "alice" || b.Room != "R1" {
		t.Fatalf("BindingOf(a) = %+v, %v", b, ok)
	}
	if got := r.RoomMembers("R1"); len(got) != 1 {
		t.Fatalf("RoomMembers(R1) = %d", len(got))
	}
}

func TestRegistryBindUnknownConn(t *testing.T) {
	r := NewRegistry()
	if _, ok := r.Bind("nope", "x", "R"); ok {
		t.Fatal("bind on unknown connection succeeded")
	}
	if _, ok := r.Lookup("x"); ok {
		t.Fatal("unknown connection became resolvable")
	}
}

func TestRegistryRebindReleasesOldName(t *testing.T) {
	r := NewRegistry()
	r.Open(newFakeConn("a"))
	r.Bind("a", "alice", "R1")
	r.Bind("a", "alicia", "R2")

	if _, ok := r.Lookup("alice"); ok {
		t.Fatal("old name still resolves after rebind")
	}
	b, _ := r.BindingOf("a")
	if b.Name != "alicia" || b.Room != "R2" {
		t.Fatalf("binding = %+v", b)
	}
	if len(r.RoomMembers("R1")) != 0 {
		t.Fatal("connection still listed in old room")
	}
}

func TestRegistryLastWriterWins(t *testing.T) {
	r := NewRegistry()
	r.Open(newFakeConn("old"))
	r.Open(newFakeConn("new"))
	r.Bind("old", "alice", "R1")

	prev, ok := r.Bind("new", "alice", "R1")
	if !ok || prev == nil || prev.ID() != "old" {
		t.Fatalf("takeover = %v, %v", prev, ok)
	}
	conn, _ := r.Lookup("alice")
	if conn.ID() != "new" {
		t.Fatalf("alice resolves to %s", conn.ID())
	}
	if r.ReleaseName("old", "alice") {
		t.Fatal("superseded connection released the name")
	}
	r.Close("old")
	if conn, ok := r.Lookup("alice"); !ok || conn.ID() != "new" {
		t.Fatal("closing superseded connection dropped the newer mapping")
	}
	if len(r.RoomMembers("R1")) != 1 {
		t.Fatal("closed connection still in room")
	}
}

func TestRegistryViewsAgree(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		r.Open(newFakeConn(id))
	}
	r.Bind("a", "alice", "R1")
	r.Bind("b", "bob", "R1")
	r.Bind("c", "carol", "R2")
	r.Unbind("b")
	r.Close("c")
	r.Close("c")

	for _, name := range r.Identities() {
		conn, ok := r.Lookup(name)
		if !ok {
			t.Fatalf("%s listed but not resolvable", name)
		}
		b, ok := r.BindingOf(conn.ID())
		if !ok || b.Name != name {
			t.Fatalf("%s -> %s -> %+v", name, conn.ID(), b)
		}
	}
	if got := r.Identities(); !slices.Equal(got, []domain.Identity{"alice"}) {
		t.Fatalf("Identities = %v", got)
	}
	if got := len(r.Connections()); got != 2 {
		t.Fatalf("Connections = %d, want 2 (b unbound but open)", got)
	}
	if got := r.RoomCounts(); got["R1"] != 1 || got["R2"] != 0 {
		t.Fatalf("RoomCounts = %v", got)
	}
}
