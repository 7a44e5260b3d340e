package cluster

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/orbitrt/orbit/cluster/wire"
)

// MessageHandler observes every ClusterMessage a Node receives, after
// the Node's own membership bookkeeping (heartbeat/node_down handling)
// has run. Generalizes actor.LifecycleHandler (events.go) from
// in-process lifecycle events to wire-level cluster messages.
type MessageHandler func(from string, msg wire.ClusterMessage)

// JoinHandler observes a previously-unknown peer's first heartbeat.
// cluster/registry uses this to push a full registry_sync to a newly
// discovered peer (spec §4.11's join-time sync), without this package
// importing cluster/registry.
type JoinHandler func(peerID string)

// Unsubscribe detaches a previously registered MessageHandler or
// JoinHandler.
type Unsubscribe func()

// Node is one cluster member: it owns the listener, the membership
// table (spec §4.6), and one *conn per connected peer. cluster/remote
// and cluster/registry are built on top of it via OnMessage/Send/
// Broadcast, rather than this package importing them, keeping the
// dependency direction the same as the teacher's layered
// internal/baselib -> internal/<feature> packages.
type Node struct {
	cfg  Config
	self wire.NodeInfo

	members *membership

	mu      sync.Mutex
	conns   map[string]*conn
	dialing map[string]bool

	listener net.Listener

	busMu         sync.RWMutex
	handlers      map[int]MessageHandler
	nextHandlerID int

	joinMu         sync.RWMutex
	joinHandlers   map[int]JoinHandler
	nextJoinID     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	started bool
}

// NewNode validates cfg and constructs a Node. Start must be called to
// begin listening and dialing seeds.
func NewNode(cfg Config) (*Node, error) {
	cfg = cfg.normalized()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	self := wire.NodeInfo{ID: cfg.NodeID(), Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}

	return &Node{
		cfg:          cfg,
		self:         self,
		members:      newMembership(self),
		conns:        make(map[string]*conn),
		dialing:      make(map[string]bool),
		handlers:     make(map[int]MessageHandler),
		joinHandlers: make(map[int]JoinHandler),
	}, nil
}

// NodeID returns this node's `name@host:port` identity.
func (n *Node) NodeID() string { return n.self.ID }

// OnMessage subscribes handler to every received ClusterMessage.
func (n *Node) OnMessage(handler MessageHandler) Unsubscribe {
	n.busMu.Lock()
	id := n.nextHandlerID
	n.nextHandlerID++
	n.handlers[id] = handler
	n.busMu.Unlock()

	return func() {
		n.busMu.Lock()
		delete(n.handlers, id)
		n.busMu.Unlock()
	}
}

// OnJoin subscribes handler to be called once for each peer the first
// time this node learns of it (its first heartbeat, or the dial that
// first connected to it).
func (n *Node) OnJoin(handler JoinHandler) Unsubscribe {
	n.joinMu.Lock()
	id := n.nextJoinID
	n.nextJoinID++
	n.joinHandlers[id] = handler
	n.joinMu.Unlock()

	return func() {
		n.joinMu.Lock()
		delete(n.joinHandlers, id)
		n.joinMu.Unlock()
	}
}

func (n *Node) publishJoin(peerID string) {
	n.joinMu.RLock()
	defer n.joinMu.RUnlock()

	for _, h := range n.joinHandlers {
		h(peerID)
	}
}

func (n *Node) publish(from string, msg wire.ClusterMessage) {
	n.busMu.RLock()
	defer n.busMu.RUnlock()

	for _, h := range n.handlers {
		h(from, msg)
	}
}

// Start opens the listener, launches the heartbeat/stale-check loops,
// and performs one concurrent round of seed-dial attempts (fanned out
// with errgroup, grounded on golang.org/x/sync already being part of
// the teacher's dependency tree) before returning. Seeds that fail this
// initial round, and any connection that later drops, are retried by a
// persistent per-target backoff supervisor that keeps running after
// Start returns.
func (n *Node) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port))
	if err != nil {
		return fmt.Errorf("cluster: listen on %s:%d: %w", n.cfg.Host, n.cfg.Port, err)
	}
	n.listener = ln
	n.ctx, n.cancel = context.WithCancel(context.Background())
	n.started = true

	n.wg.Add(1)
	go n.acceptLoop()

	n.wg.Add(1)
	go n.heartbeatLoop()

	n.wg.Add(1)
	go n.staleCheckLoop()

	if len(n.cfg.Seeds) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, seed := range n.cfg.Seeds {
			seed := seed
			g.Go(func() error {
				n.attemptDial(gctx, seed)
				return nil
			})
		}
		_ = g.Wait()

		for _, seed := range n.cfg.Seeds {
			n.ensureSupervisor(seed)
		}
	}

	return nil
}

// Stop sends a graceful node_down to every connected peer, then tears
// down every connection and the listener (spec §5: "Cluster.stop ->
// flush send queues, send node_down{graceful_shutdown}, close sockets").
func (n *Node) Stop(ctx context.Context) error {
	if !n.started {
		return ErrClusterNotStarted
	}

	n.Broadcast(wire.NodeDown{
		NodeID:     n.self.ID,
		DetectedAt: time.Now().UnixMilli(),
		Reason:     wire.ReasonGracefulShutdown,
	})
	// Give the writer goroutines a chance to flush the just-broadcast
	// frame before sockets are torn down.
	time.Sleep(50 * time.Millisecond)

	n.cancel()
	_ = n.listener.Close()

	n.mu.Lock()
	for _, c := range n.conns {
		c.Close()
	}
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send enqueues msg for delivery to targetNodeID, or ErrNodeNotConnected
// if no live connection exists.
func (n *Node) Send(targetNodeID string, msg wire.ClusterMessage) error {
	n.mu.Lock()
	c, ok := n.conns[targetNodeID]
	n.mu.Unlock()
	if !ok {
		return ErrNodeNotConnected
	}

	return c.enqueue(wire.Envelope{
		Version:   wire.ProtocolVersion,
		From:      n.self.ID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   msg,
	})
}

// Broadcast enqueues msg for delivery to every currently connected peer.
func (n *Node) Broadcast(msg wire.ClusterMessage) {
	n.mu.Lock()
	targets := make([]*conn, 0, len(n.conns))
	for _, c := range n.conns {
		targets = append(targets, c)
	}
	n.mu.Unlock()

	env := wire.Envelope{
		Version:   wire.ProtocolVersion,
		From:      n.self.ID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   msg,
	}
	for _, c := range targets {
		_ = c.enqueue(env)
	}
}

// Connected returns the node ids of every peer this node currently
// considers up.
func (n *Node) Connected() []string {
	snap := n.members.snapshot()
	out := make([]string, 0, len(snap))
	for id, up := range snap {
		if up {
			out = append(out, id)
		}
	}
	return out
}

// IsConnected reports whether id is currently tracked as up.
func (n *Node) IsConnected(id string) bool {
	return n.members.isUp(id)
}

func (n *Node) acceptLoop() {
	defer n.wg.Done()

	for {
		nc, err := n.listener.Accept()
		if err != nil {
			if n.ctx.Err() != nil {
				return
			}
			log.WarnS(n.ctx, "cluster: accept failed", err)
			continue
		}

		c := newConn(nc, n.cfg.MaxFrameSize, []byte(n.cfg.ClusterSecret))
		n.wg.Add(1)
		go n.readLoop("", c)
	}
}

// readLoop drains one connection's frames until it errors or the node
// shuts down. knownID is non-empty for connections this node dialed
// itself; for inbound connections it starts empty and is learned from
// the peer's first envelope (the handshake spec §4.6 describes).
func (n *Node) readLoop(knownID string, c *conn) {
	defer n.wg.Done()
	defer c.Close()

	id := knownID
	if id != "" {
		n.registerConn(id, c)
	}

	for {
		env, err := c.readEnvelope()
		if err != nil {
			if id != "" {
				n.handleDisconnect(id, c)
			}
			return
		}

		if id == "" {
			id = env.From
			n.registerConn(id, c)
		}

		n.dispatch(id, c, env)
	}
}

func (n *Node) registerConn(id string, c *conn) {
	n.mu.Lock()
	n.conns[id] = c
	n.mu.Unlock()
}

// handleDisconnect removes the connection and declares the peer down
// with reason connection_closed, unless it already left gracefully.
func (n *Node) handleDisconnect(id string, c *conn) {
	n.mu.Lock()
	if n.conns[id] == c {
		delete(n.conns, id)
	}
	n.mu.Unlock()

	n.declareDown(id, wire.ReasonConnectionClosed)
}

// dispatch applies built-in membership handling for heartbeat/node_down
// payloads, then forwards every message (including those two) to
// subscribers.
func (n *Node) dispatch(from string, c *conn, env wire.Envelope) {
	switch msg := env.Payload.(type) {
	case *wire.Heartbeat:
		n.handleHeartbeat(from, msg)
	case *wire.NodeDown:
		n.declareDown(msg.NodeID, msg.Reason)
	}

	n.publish(from, env.Payload)
}

func (n *Node) handleHeartbeat(from string, hb *wire.Heartbeat) {
	isNew := n.members.upsert(hb.NodeInfo)
	if !isNew {
		n.members.touch(from, time.Now())
	} else {
		n.publishJoin(from)
	}

	for _, known := range hb.KnownNodes {
		if known.ID == n.self.ID {
			continue
		}
		if !n.members.isKnown(known.ID) {
			n.ensureSupervisor(known.ID)
		}
	}
}

// declareDown marks id down (if not already) and notifies subscribers
// exactly once per transition (spec §4.6 node_down semantics).
func (n *Node) declareDown(id string, reason wire.NodeDownReason) {
	if !n.members.markDown(id) {
		return
	}

	n.mu.Lock()
	if c, ok := n.conns[id]; ok {
		delete(n.conns, id)
		c.Close()
	}
	n.mu.Unlock()

	n.publish(id, &wire.NodeDown{
		NodeID:     id,
		DetectedAt: time.Now().UnixMilli(),
		Reason:     reason,
	})
}

func (n *Node) heartbeatLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n.Broadcast(wire.Heartbeat{
				NodeInfo:   n.self,
				KnownNodes: n.members.knownNodes(),
			})
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) staleCheckLoop() {
	defer n.wg.Done()

	ticker := time.NewTicker(n.cfg.heartbeatInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stale := n.members.staleIDs(time.Now(), n.cfg.heartbeatInterval(),
				n.cfg.HeartbeatMissThreshold)
			for _, id := range stale {
				n.declareDown(id, wire.ReasonHeartbeatTimeout)
			}
		case <-n.ctx.Done():
			return
		}
	}
}

// attemptDial makes one bounded connection attempt to targetID, adopting
// the connection on success. Failures are logged, not returned, since
// Start's errgroup round is best-effort diagnostics, not a precondition
// for a successful Start.
func (n *Node) attemptDial(ctx context.Context, targetID string) {
	addr, err := addrFromNodeID(targetID)
	if err != nil {
		log.WarnS(ctx, "cluster: cannot dial seed", err, "seed", targetID)
		return
	}

	d := net.Dialer{Timeout: 5 * time.Second}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		log.DebugS(ctx, "cluster: initial seed dial failed, will retry", "seed", targetID, "err", err)
		return
	}

	n.adoptConn(targetID, nc)
}

// adoptConn registers a freshly dialed connection, sends the immediate
// handshake heartbeat, and starts its read loop.
func (n *Node) adoptConn(targetID string, nc net.Conn) {
	c := newConn(nc, n.cfg.MaxFrameSize, []byte(n.cfg.ClusterSecret))
	n.registerConn(targetID, c)
	isNew := n.members.upsert(wire.NodeInfo{ID: targetID, Address: nc.RemoteAddr().String()})

	_ = c.enqueue(wire.Envelope{
		Version:   wire.ProtocolVersion,
		From:      n.self.ID,
		Timestamp: time.Now().UnixMilli(),
		Payload:   wire.Heartbeat{NodeInfo: n.self, KnownNodes: n.members.knownNodes()},
	})
	if isNew {
		n.publishJoin(targetID)
	}

	n.wg.Add(1)
	go n.readLoop(targetID, c)
}

// ensureSupervisor starts, at most once per targetID, a goroutine that
// keeps a connection to targetID alive: dialing with full-jitter backoff
// whenever it is not currently connected (spec §4.6's reconnect policy).
func (n *Node) ensureSupervisor(targetID string) {
	n.mu.Lock()
	if n.dialing[targetID] {
		n.mu.Unlock()
		return
	}
	n.dialing[targetID] = true
	n.mu.Unlock()

	n.wg.Add(1)
	go n.superviseDial(targetID)
}

func (n *Node) superviseDial(targetID string) {
	defer n.wg.Done()

	attempt := 0
	for {
		if n.ctx.Err() != nil {
			return
		}

		n.mu.Lock()
		c, connected := n.conns[targetID]
		n.mu.Unlock()

		if connected {
			select {
			case <-c.closed:
			case <-n.ctx.Done():
				return
			}
			attempt = 0
			continue
		}

		addr, err := addrFromNodeID(targetID)
		if err != nil {
			return
		}

		d := net.Dialer{Timeout: 5 * time.Second}
		nc, err := d.DialContext(n.ctx, "tcp", addr)
		if err != nil {
			delay := fullJitterBackoff(attempt, n.cfg.reconnectBase(), n.cfg.reconnectMax())
			attempt++

			select {
			case <-time.After(delay):
			case <-n.ctx.Done():
				return
			}
			continue
		}

		n.adoptConn(targetID, nc)
		attempt = 0
	}
}
