package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/store"
)

func newTestChannel(t *testing.T, mockStore *MockStore) *Channel {
	t.Helper()
	return newChannel("t1", mockStore, auth.NewVerifier(testSecret))
}

func onlineUpsert(kioskID string) interface{} {
	return mock.MatchedBy(func(params store.UpsertKioskParams) bool {
		return params.ID == kioskID &&
			params.BrandID == "brand-1" &&
			params.Status == store.KioskStatusOnline &&
			!params.LastSeen.IsZero()
	})
}

func offlineUpsert(kioskID string) interface{} {
	return mock.MatchedBy(func(params store.UpsertKioskParams) bool {
		return params.ID == kioskID && params.Status == store.KioskStatusOffline
	})
}

func joinKiosk(t *testing.T, ch *Channel, kioskID string) *Conn {
	t.Helper()
	conn, err := ch.Join(context.Background(), JoinParams{
		Claims:  kioskClaims(kioskID),
		Role:    RoleKiosk,
		KioskID: kioskID,
	})
	require.NoError(t, err)
	return conn
}

func joinDashboard(t *testing.T, ch *Channel) *Conn {
	t.Helper()
	conn, err := ch.Join(context.Background(), JoinParams{
		Claims: dashboardClaims("brand-1"),
		Role:   RoleDashboard,
	})
	require.NoError(t, err)
	return conn
}

func TestJoin_KioskComesOnline(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, onlineUpsert("k1")).Return(nil).Once()

	ch := newTestChannel(t, mockStore)
	dashboard := joinDashboard(t, ch)

	kiosk := joinKiosk(t, ch, "k1")

	// Membership entry and addressing room point at the new connection.
	connID, ok := ch.KioskConn("k1")
	require.True(t, ok)
	assert.Equal(t, kiosk.ID, connID)
	members := ch.RoomMembers(KioskRoom("k1"))
	require.Len(t, members, 1)
	assert.Equal(t, kiosk.ID, members[0].ID)

	// Exactly two notifications, refresh first.
	assert.Equal(t, EventRefreshUI, recvEvent(t, dashboard).Name)
	statusEvt := recvEvent(t, dashboard)
	assert.Equal(t, EventKioskStatus, statusEvt.Name)
	status := decodePayload[StatusPayload](t, statusEvt)
	assert.Equal(t, "k1", status.KioskID)
	assert.Equal(t, store.KioskStatusOnline, status.Status)
	requireNoEvent(t, dashboard)

	mockStore.AssertExpectations(t)
}

func TestJoin_TenantUnresolved(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(nil, store.ErrTenantNotFound)

	ch := newTestChannel(t, mockStore)
	conn, err := ch.Join(context.Background(), JoinParams{
		Claims:  kioskClaims("k1"),
		Role:    RoleKiosk,
		KioskID: "k1",
	})

	assert.ErrorIs(t, err, ErrTenantUnresolved)
	assert.Nil(t, conn)
	assert.Equal(t, 0, ch.ConnCount())
	mockStore.AssertNotCalled(t, "UpsertKiosk", mock.Anything, mock.Anything)
}

func TestJoin_DashboardTenantMismatch(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)

	ch := newTestChannel(t, mockStore)
	conn, err := ch.Join(context.Background(), JoinParams{
		Claims: dashboardClaims("other-brand"),
		Role:   RoleDashboard,
	})

	assert.ErrorIs(t, err, ErrTenantMismatch)
	assert.Nil(t, conn)
	assert.Equal(t, 0, ch.ConnCount())
}

func TestJoin_SuperAdminDashboardAnyTenant(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)

	ch := newTestChannel(t, mockStore)
	conn, err := ch.Join(context.Background(), JoinParams{
		Claims: &auth.Claims{UserID: "root", Role: auth.RoleSuperAdmin},
		Role:   RoleDashboard,
	})

	require.NoError(t, err)
	assert.Equal(t, RoleDashboard, conn.Role)
}

func TestJoin_EagerHandshakeMetadata(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, mock.MatchedBy(func(params store.UpsertKioskParams) bool {
		return params.ID == "k1" &&
			params.Status == store.KioskStatusOnline &&
			params.Specs != nil && params.Specs["cpu"] == "arm64" &&
			params.AppVersion != nil && *params.AppVersion == "2.1.0"
	})).Return(nil).Once()

	ch := newTestChannel(t, mockStore)
	dashboard := joinDashboard(t, ch)

	_, err := ch.Join(context.Background(), JoinParams{
		Claims:  kioskClaims("k1"),
		Role:    RoleKiosk,
		KioskID: "k1",
		Meta: &RegisterMeta{
			Specs:      map[string]interface{}{"cpu": "arm64"},
			AppVersion: "2.1.0",
		},
	})
	require.NoError(t, err)

	// Registration path emits refresh, status, and registered. A single
	// upsert covers both the online transition and the metadata.
	assert.Equal(t, EventRefreshUI, recvEvent(t, dashboard).Name)
	assert.Equal(t, EventKioskStatus, recvEvent(t, dashboard).Name)
	registered := recvEvent(t, dashboard)
	assert.Equal(t, EventKioskRegistered, registered.Name)
	payload := decodePayload[RegisteredPayload](t, registered)
	assert.Equal(t, "k1", payload.KioskID)
	assert.Equal(t, "brand-1", payload.BrandID)

	mockStore.AssertExpectations(t)
}

func TestJoin_EagerMetadataFailureStillComesOnline(t *testing.T) {
	// Handshake metadata is best-effort: when its registration upsert fails,
	// the join still records the plain online transition and announces it,
	// so dashboards never miss a connected kiosk.
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, mock.MatchedBy(func(params store.UpsertKioskParams) bool {
		return params.Location != nil
	})).Return(assert.AnError).Once()
	mockStore.On("UpsertKiosk", mock.Anything, onlineUpsert("k1")).Return(nil).Once()

	ch := newTestChannel(t, mockStore)
	dashboard := joinDashboard(t, ch)

	kiosk, err := ch.Join(context.Background(), JoinParams{
		Claims:  kioskClaims("k1"),
		Role:    RoleKiosk,
		KioskID: "k1",
		Meta:    &RegisterMeta{Location: "lobby"},
	})
	require.NoError(t, err)

	connID, ok := ch.KioskConn("k1")
	require.True(t, ok)
	assert.Equal(t, kiosk.ID, connID)

	// The plain online notifications go out; the registered event does not,
	// since the registration itself failed.
	assert.Equal(t, EventRefreshUI, recvEvent(t, dashboard).Name)
	statusEvt := recvEvent(t, dashboard)
	assert.Equal(t, EventKioskStatus, statusEvt.Name)
	status := decodePayload[StatusPayload](t, statusEvt)
	assert.Equal(t, store.KioskStatusOnline, status.Status)
	requireNoEvent(t, dashboard)

	mockStore.AssertExpectations(t)
}

func TestDisconnect_KioskGoesOffline(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, onlineUpsert("k1")).Return(nil).Once()
	mockStore.On("UpsertKiosk", mock.Anything, offlineUpsert("k1")).Return(nil).Once()

	ch := newTestChannel(t, mockStore)
	kiosk := joinKiosk(t, ch, "k1")
	dashboard := joinDashboard(t, ch)

	ch.Disconnect(context.Background(), kiosk)

	_, ok := ch.KioskConn("k1")
	assert.False(t, ok)
	assert.Empty(t, ch.RoomMembers(KioskRoom("k1")))

	assert.Equal(t, EventRefreshUI, recvEvent(t, dashboard).Name)
	statusEvt := recvEvent(t, dashboard)
	status := decodePayload[StatusPayload](t, statusEvt)
	assert.Equal(t, store.KioskStatusOffline, status.Status)

	mockStore.AssertExpectations(t)
}

func TestDisconnect_SupersededConnectionKeepsMembership(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, onlineUpsert("k1")).Return(nil).Times(2)

	ch := newTestChannel(t, mockStore)
	first := joinKiosk(t, ch, "k1")
	second := joinKiosk(t, ch, "k1")

	dashboard := joinDashboard(t, ch)

	// The old connection disconnecting must not clobber the new one.
	ch.Disconnect(context.Background(), first)

	connID, ok := ch.KioskConn("k1")
	require.True(t, ok)
	assert.Equal(t, second.ID, connID)

	// No offline transition was recorded or announced.
	requireNoEvent(t, dashboard)
	mockStore.AssertNotCalled(t, "UpsertKiosk", mock.Anything, offlineUpsert("k1"))
}

func TestJoin_PersistenceFailureKeepsInMemoryState(t *testing.T) {
	// When the online upsert fails, the membership entry and room join are
	// deliberately not rolled back; the durable record lags until the next
	// event. This pins the accepted gap rather than fixing it.
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, mock.Anything).Return(assert.AnError)

	ch := newTestChannel(t, mockStore)
	kiosk := joinKiosk(t, ch, "k1")

	connID, ok := ch.KioskConn("k1")
	require.True(t, ok)
	assert.Equal(t, kiosk.ID, connID)
	assert.Len(t, ch.RoomMembers(KioskRoom("k1")), 1)
}

func TestHandleEvent_ReportConfig(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, onlineUpsert("k1")).Return(nil)

	ch := newTestChannel(t, mockStore)
	kiosk := joinKiosk(t, ch, "k1")
	dashboard := joinDashboard(t, ch)

	ch.HandleEvent(context.Background(), kiosk, mustEventFrame(t, EventKioskReportConfig,
		map[string]interface{}{"resolution": "1920x1080"}))

	assert.Equal(t, EventRefreshUI, recvEvent(t, dashboard).Name)
	requireNoEvent(t, dashboard)

	mockStore.AssertCalled(t, "UpsertKiosk", mock.Anything, mock.MatchedBy(func(params store.UpsertKioskParams) bool {
		return params.ID == "k1" && params.Specs != nil && params.Specs["resolution"] == "1920x1080"
	}))
}

func TestHandleEvent_ReportConfig_StoreFailureSkipsRefresh(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)
	mockStore.On("UpsertKiosk", mock.Anything, onlineUpsert("k1")).Return(nil).Once()

	ch := newTestChannel(t, mockStore)
	kiosk := joinKiosk(t, ch, "k1")
	dashboard := joinDashboard(t, ch)

	mockStore.On("UpsertKiosk", mock.Anything, mock.Anything).Return(assert.AnError)
	ch.HandleEvent(context.Background(), kiosk, mustEventFrame(t, EventKioskReportConfig,
		map[string]interface{}{"resolution": "1920x1080"}))

	// Kiosks get no explicit error feedback, only the missing refresh.
	requireNoEvent(t, dashboard)
}

func TestHandleEvent_WrongRoleDropped(t *testing.T) {
	mockStore := new(MockStore)
	mockStore.On("FindTenantByNamespace", mock.Anything, "t1").Return(testTenant(), nil)

	ch := newTestChannel(t, mockStore)
	dashboard := joinDashboard(t, ch)

	ch.HandleEvent(context.Background(), dashboard, mustEventFrame(t, EventKioskReportConfig,
		map[string]interface{}{"resolution": "1920x1080"}))

	mockStore.AssertNotCalled(t, "UpsertKiosk", mock.Anything, mock.Anything)
}
