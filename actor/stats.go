package actor

import "time"

// ActorStats is a point-in-time snapshot of one actor, the building block
// for observer's per-actor reporting (spec §4.12).
type ActorStats struct {
	ID            string
	Name          string
	Status        string
	MailboxLen    int
	TotalMessages uint64
	StartedAt     time.Time
	UptimeMs      int64
}

// StatsProvider is implemented by every localRef; observer type-asserts
// against it so it never needs a generic parameter over State/CallMsg/
// CastMsg/Reply.
type StatsProvider interface {
	Stats() ActorStats
}

func (s status) String() string {
	switch s {
	case statusInitializing:
		return "initializing"
	case statusRunning:
		return "running"
	case statusStopping:
		return "stopping"
	case statusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ActorStats returns a snapshot of every actor currently known to sys,
// for every Ref that implements StatsProvider (every locally-started
// actor; a remote proxy Ref does not).
func (sys *System) ActorStats() []ActorStats {
	sys.mu.RLock()
	refs := make([]Ref, 0, len(sys.actors))
	for _, ref := range sys.actors {
		refs = append(refs, ref)
	}
	sys.mu.RUnlock()

	out := make([]ActorStats, 0, len(refs))
	for _, ref := range refs {
		if provider, ok := ref.(StatsProvider); ok {
			out = append(out, provider.Stats())
		}
	}
	return out
}
