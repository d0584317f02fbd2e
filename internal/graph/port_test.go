package graph

import (
	"testing"
)

func TestPortEvictsOldestAtCapacity(t *testing.T) {
	port := NewPort(3)

	first := NewPacket(1)
	packets := []Packet{first, NewPacket(2), NewPacket(3), NewPacket(4)}
	for i := range packets {
		port.Write(packets[i])
	}

	if port.Size() != 3 {
		t.Fatalf("expected size 3, got %d", port.Size())
	}

	for _, want := range []int{2, 3, 4} {
		got, err := Value[int](port.Read())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
	if port.Dropped() == 0 {
		t.Fatal("expected the evicted packet to be counted as dropped")
	}
	if port.Latest() != packets[3].Timestamp() {
		t.Fatalf("expected latest %d, got %d", packets[3].Timestamp(), port.Latest())
	}
}

func TestPortDropsStalePackets(t *testing.T) {
	port := NewPort(3)
	fresh := NewPacket(10)
	port.Write(fresh)

	stale := packetAt(99, fresh.Timestamp()-1)
	port.Write(stale)

	if port.Size() != 1 {
		t.Fatalf("expected stale packet to be dropped, size %d", port.Size())
	}
	if port.Latest() != fresh.Timestamp() {
		t.Fatalf("expected latest to stay %d, got %d", fresh.Timestamp(), port.Latest())
	}
}

func TestPortDropsInvalidPackets(t *testing.T) {
	port := NewPort(3)
	port.Write(EmptyPacket())
	if port.Size() != 0 {
		t.Fatal("expected the invalid packet to be dropped")
	}
}

func TestPortReadsInAcceptanceOrder(t *testing.T) {
	port := NewPort(10)
	var accepted []Timestamp
	for i := 0; i < 5; i++ {
		p := NewPacket(i)
		accepted = append(accepted, p.Timestamp())
		port.Write(p)
	}

	for i, want := range accepted {
		got := port.Read()
		if got.Timestamp() != want {
			t.Fatalf("read %d: expected timestamp %d, got %d", i, want, got.Timestamp())
		}
	}
}

func TestPortLatestDoesNotDecreaseOnRead(t *testing.T) {
	port := NewPort(10)
	p := NewPacket(1)
	port.Write(p)
	latest := port.Latest()

	_ = port.Read()

	if port.Latest() != latest {
		t.Fatalf("expected latest to stay %d after read, got %d", latest, port.Latest())
	}

	replay := packetAt(1, latest)
	port.Write(replay)
	if port.Size() != 0 {
		t.Fatal("expected a replayed timestamp to be rejected after read")
	}
}

func TestPortEmptyReadReturnsInvalidPacket(t *testing.T) {
	port := NewPort(3)
	p := port.Read()
	if p.Valid() {
		t.Fatal("expected an empty read to yield the invalid packet")
	}
}

func TestPortNeverExceedsCapacity(t *testing.T) {
	port := NewPort(5)
	for i := 0; i < 50; i++ {
		port.Write(NewPacket(i))
		if port.Size() > 5 {
			t.Fatalf("size %d exceeded capacity after write %d", port.Size(), i)
		}
	}
}
