package registry

import "github.com/orbitrt/orbit/cluster/wire"

// Entry is one binding in the replicated global registry (spec §4.11),
// the in-memory counterpart of wire.RegistryEntry. Removed marks a
// tombstone: the owning node's actor terminated and this delta is
// propagating that fact, not a live binding.
type Entry struct {
	Name         string
	ActorID      string
	NodeID       string
	RegisteredAt int64
	Removed      bool
}

// sameRegistration reports whether e and other name the same concrete
// registration instance (same actor, same node, same registration
// time), as opposed to merely sharing a Name - used to decide whether a
// tombstone applies to the entry currently held.
func (e Entry) sameRegistration(other Entry) bool {
	return e.ActorID == other.ActorID && e.NodeID == other.NodeID &&
		e.RegisteredAt == other.RegisteredAt
}

// winsOver implements spec §4.11's deterministic priority rule: for the
// same name, the entry with the smaller (registeredAt, nodeId) tuple
// wins.
func (e Entry) winsOver(other Entry) bool {
	if e.RegisteredAt != other.RegisteredAt {
		return e.RegisteredAt < other.RegisteredAt
	}
	return e.NodeID < other.NodeID
}

func (e Entry) toWire() wire.RegistryEntry {
	return wire.RegistryEntry{
		Name:         e.Name,
		ActorID:      e.ActorID,
		NodeID:       e.NodeID,
		RegisteredAt: e.RegisteredAt,
		Removed:      e.Removed,
	}
}

func entryFromWire(w wire.RegistryEntry) Entry {
	return Entry{
		Name:         w.Name,
		ActorID:      w.ActorID,
		NodeID:       w.NodeID,
		RegisteredAt: w.RegisteredAt,
		Removed:      w.Removed,
	}
}
