package channel

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/store"
)

const testSecret = "test-secret"

// MockStore is a mock implementation of Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindTenantByNamespace(ctx context.Context, namespace string) (*store.Tenant, error) {
	args := m.Called(ctx, namespace)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Tenant), args.Error(1)
}

func (m *MockStore) ListTenants(ctx context.Context) ([]store.Tenant, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]store.Tenant), args.Error(1)
}

func (m *MockStore) UpsertKiosk(ctx context.Context, params store.UpsertKioskParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func testTenant() *store.Tenant {
	return &store.Tenant{
		ID:        "brand-1",
		Name:      "Test Brand",
		Namespace: "t1",
	}
}

func kioskToken(t *testing.T, kioskID string) string {
	t.Helper()
	token, err := auth.GenerateToken(auth.Config{Secret: testSecret}, kioskID, auth.RoleKiosk, "", "brand-1")
	require.NoError(t, err)
	return token
}

func dashboardClaims(brandID string) *auth.Claims {
	return &auth.Claims{UserID: "user-1", Role: auth.RoleBrandAdmin, BrandID: brandID}
}

func kioskClaims(kioskID string) *auth.Claims {
	return &auth.Claims{UserID: kioskID, Role: auth.RoleKiosk, BrandID: "brand-1"}
}

// recvEvent reads the next queued event for a connection, failing the test if
// none arrives promptly.
func recvEvent(t *testing.T, conn *Conn) Event {
	t.Helper()
	select {
	case evt := <-conn.SendCh:
		return evt
	case <-time.After(time.Second):
		t.Fatal("no event queued")
		return Event{}
	}
}

// requireNoEvent asserts the connection has nothing queued.
func requireNoEvent(t *testing.T, conn *Conn) {
	t.Helper()
	select {
	case evt := <-conn.SendCh:
		t.Fatalf("unexpected event queued: %s", evt.Name)
	default:
	}
}

func mustEventFrame(t *testing.T, name string, payload any) Event {
	t.Helper()
	evt, err := NewEvent(name, payload)
	require.NoError(t, err)
	return evt
}

func withAck(evt Event, id int64) Event {
	evt.Ack = &id
	return evt
}

func decodePayload[T any](t *testing.T, evt Event) T {
	t.Helper()
	var payload T
	require.NoError(t, json.Unmarshal(evt.Data, &payload))
	return payload
}
