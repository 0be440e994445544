package channel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kioskops/fleet-hub/internal/store"
)

// Store is the persistence contract the channel layer consumes. The concrete
// implementation lives in internal/store; tests substitute mocks.
type Store interface {
	FindTenantByNamespace(ctx context.Context, namespace string) (*store.Tenant, error)
	ListTenants(ctx context.Context) ([]store.Tenant, error)
	UpsertKiosk(ctx context.Context, params store.UpsertKioskParams) error
}

// KioskRoom is the deterministic addressing group name for a kiosk.
func KioskRoom(kioskID string) string {
	return "kiosk:" + kioskID
}

// Channel is the per-tenant real-time scope. It owns its connections, the
// kiosk membership map (at most one connection id per kiosk, last writer
// wins) and the per-kiosk addressing rooms. Channels are created by the
// Registry and live for the whole process.
type Channel struct {
	Namespace string

	mu     sync.RWMutex
	conns  map[string]*Conn            // conn id -> conn
	kiosks map[string]string           // kiosk id -> conn id
	rooms  map[string]map[string]*Conn // room -> conn id -> conn

	store Store
	gate  *Gate
}

func newChannel(namespace string, st Store, verifier TokenVerifier) *Channel {
	return &Channel{
		Namespace: namespace,
		conns:     make(map[string]*Conn),
		kiosks:    make(map[string]string),
		rooms:     make(map[string]map[string]*Conn),
		store:     st,
		gate:      newGate(namespace, verifier),
	}
}

// Gate returns the channel's handshake authenticator.
func (ch *Channel) Gate() *Gate {
	return ch.gate
}

func (ch *Channel) addConn(conn *Conn) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.conns[conn.ID] = conn
}

func (ch *Channel) removeConn(conn *Conn) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	delete(ch.conns, conn.ID)
	for room, members := range ch.rooms {
		delete(members, conn.ID)
		if len(members) == 0 {
			delete(ch.rooms, room)
		}
	}
}

func (ch *Channel) joinRoom(room string, conn *Conn) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	members, ok := ch.rooms[room]
	if !ok {
		members = make(map[string]*Conn)
		ch.rooms[room] = members
	}
	members[conn.ID] = conn
}

// RoomMembers returns the current live members of an addressing room.
func (ch *Channel) RoomMembers(room string) []*Conn {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	members := make([]*Conn, 0, len(ch.rooms[room]))
	for _, conn := range ch.rooms[room] {
		members = append(members, conn)
	}
	return members
}

// setKioskConn records the membership entry for a kiosk, superseding any
// previous connection. The superseded connection is not closed here; its own
// disconnect is a no-op once the entry no longer points at it.
func (ch *Channel) setKioskConn(kioskID, connID string) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if previous, ok := ch.kiosks[kioskID]; ok && previous != connID {
		slog.Warn("Kiosk already connected, superseding membership entry",
			"namespace", ch.Namespace,
			"kiosk_id", kioskID,
			"previous_conn_id", previous,
			"conn_id", connID)
	}
	ch.kiosks[kioskID] = connID
}

// clearKioskConn removes the membership entry only if it still points at the
// given connection id. Guards against a stale disconnect wiping out a newer
// connection's entry.
func (ch *Channel) clearKioskConn(kioskID, connID string) bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if current, ok := ch.kiosks[kioskID]; !ok || current != connID {
		return false
	}
	delete(ch.kiosks, kioskID)
	return true
}

// KioskConn returns the connection id currently mapped for a kiosk.
func (ch *Channel) KioskConn(kioskID string) (string, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	connID, ok := ch.kiosks[kioskID]
	return connID, ok
}

// KioskIDs lists the kiosks with a membership entry, for diagnostics.
func (ch *Channel) KioskIDs() []string {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	ids := make([]string, 0, len(ch.kiosks))
	for id := range ch.kiosks {
		ids = append(ids, id)
	}
	return ids
}

// ConnCount returns the number of live connections in the channel.
func (ch *Channel) ConnCount() int {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	return len(ch.conns)
}

func (ch *Channel) allConns() []*Conn {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	conns := make([]*Conn, 0, len(ch.conns))
	for _, conn := range ch.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Broadcast queues an event for every connection in the channel. Events
// queued by one caller keep their relative order per connection. Per-conn
// failures are logged, not propagated; a notification is fire-and-forget.
func (ch *Channel) Broadcast(name string, payload any) {
	evt, err := NewEvent(name, payload)
	if err != nil {
		slog.Error("Failed to encode broadcast event", "namespace", ch.Namespace, "event", name, "error", err)
		return
	}
	for _, conn := range ch.allConns() {
		if err := conn.send(evt); err != nil {
			slog.Warn("Failed to deliver broadcast event",
				"namespace", ch.Namespace,
				"event", name,
				"conn_id", conn.ID,
				"error", err)
		}
	}
}
