package registry

import "testing"

func TestEntryWinsOverByRegisteredAt(t *testing.T) {
	earlier := Entry{Name: "svc", NodeID: "b@127.0.0.1:1", RegisteredAt: 100}
	later := Entry{Name: "svc", NodeID: "a@127.0.0.1:1", RegisteredAt: 200}

	if !earlier.winsOver(later) {
		t.Fatal("smaller RegisteredAt should win regardless of NodeID")
	}
	if later.winsOver(earlier) {
		t.Fatal("larger RegisteredAt should not win")
	}
}

func TestEntryWinsOverByNodeIDTiebreak(t *testing.T) {
	a := Entry{Name: "svc", NodeID: "a@127.0.0.1:1", RegisteredAt: 100}
	b := Entry{Name: "svc", NodeID: "b@127.0.0.1:1", RegisteredAt: 100}

	if !a.winsOver(b) {
		t.Fatal("lexicographically smaller NodeID should win on tie")
	}
	if b.winsOver(a) {
		t.Fatal("lexicographically larger NodeID should not win")
	}
}

func TestEntrySameRegistration(t *testing.T) {
	e := Entry{ActorID: "x", NodeID: "a@127.0.0.1:1", RegisteredAt: 100}
	same := Entry{ActorID: "x", NodeID: "a@127.0.0.1:1", RegisteredAt: 100, Removed: true}
	different := Entry{ActorID: "y", NodeID: "a@127.0.0.1:1", RegisteredAt: 100}

	if !e.sameRegistration(same) {
		t.Fatal("identical actor/node/registeredAt should match regardless of Removed")
	}
	if e.sameRegistration(different) {
		t.Fatal("different ActorID should not match")
	}
}
