package channel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/store"
)

type Role string

const (
	RoleKiosk     Role = "kiosk"
	RoleDashboard Role = "dashboard"
	RoleUnknown   Role = "unknown"
)

const (
	sendChannelBuffer = 100
	sendTimeout       = 5 * time.Second
)

// Conn is one live session in a channel. Outbound events are queued on SendCh
// and drained by the transport's write loop; a full queue or a closed
// connection turns an Emit into a delivery error.
type Conn struct {
	ID      string
	Role    Role
	KioskID string
	Claims  *auth.Claims
	SendCh  chan Event

	tenant    *store.Tenant
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func newConn(role Role, kioskID string, claims *auth.Claims, tenant *store.Tenant) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		ID:      uuid.New().String(),
		Role:    role,
		KioskID: kioskID,
		Claims:  claims,
		SendCh:  make(chan Event, sendChannelBuffer),
		tenant:  tenant,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Context is done once the connection is closed; the transport's pumps hang
// off it.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// Close marks the connection dead. It does not remove the connection from its
// channel; Channel.Disconnect does that.
func (c *Conn) Close() {
	c.closeOnce.Do(c.cancel)
}

func (c *Conn) send(evt Event) error {
	select {
	case <-c.ctx.Done():
		return fmt.Errorf("connection %s closed", c.ID)
	default:
	}

	select {
	case c.SendCh <- evt:
		return nil
	case <-time.After(sendTimeout):
		return fmt.Errorf("timeout sending %s to connection %s", evt.Name, c.ID)
	case <-c.ctx.Done():
		return fmt.Errorf("connection %s closed", c.ID)
	}
}

// Emit queues an outbound event for this connection.
func (c *Conn) Emit(name string, payload any) error {
	evt, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	return c.send(evt)
}

// EmitAck queues an ack reply carrying the caller-supplied ack id.
func (c *Conn) EmitAck(ackID int64, payload any) error {
	evt, err := newAckEvent(ackID, payload)
	if err != nil {
		return err
	}
	return c.send(evt)
}
