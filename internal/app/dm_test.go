package app

import "testing"

func TestPairingsSymmetric(t *testing.T) {
	p := NewPairings()
	if broken := p.Pair("A", "B"); len(broken) != 0 {
		t.Fatalf("fresh pair broke %v", broken)
	}
	if b, ok := p.PeerOf("A"); !ok || b != "B" {
		t.Fatalf("PeerOf(A) = %q, %v", b, ok)
	}
	if a, ok := p.PeerOf("B"); !ok || a != "A" {
		t.Fatalf("PeerOf(B) = %q, %v", a, ok)
	}

	peer, ok := p.Clear("B")
	if !ok || peer != "A" {
		t.Fatalf("Clear(B) = %q, %v", peer, ok)
	}
	if _, ok := p.PeerOf("A"); ok {
		t.Fatal("pairing left one-sided")
	}
	if p.Len() != 0 {
		t.Fatalf("Len = %d", p.Len())
	}
	if _, ok := p.Clear("A"); ok {
		t.Fatal("second clear found a pairing")
	}
}

func TestPairingsRepairBreaksStale(t *testing.T) {
	p := NewPairings()
	p.Pair("A", "C")
	broken := p.Pair("A", "B")
	if len(broken) != 1 || broken[0] != (Pair{A: "A", B: "C"}) {
		t.Fatalf("broken = %v", broken)
	}
	if _, ok := p.PeerOf("C"); ok {
		t.Fatal("C still paired")
	}
	if b, _ := p.PeerOf("A"); b != "B" {
		t.Fatalf("A paired with %q", b)
	}
	if p.Len() != 2 {
		t.Fatalf("Len = %d", p.Len())
	}
	if broken := p.Pair("B", "A"); len(broken) != 0 {
		t.Fatalf("re-pairing the same call broke %v", broken)
	}
}
