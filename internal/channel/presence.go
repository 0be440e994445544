package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/store"
)

var (
	// ErrTenantUnresolved means the channel's tenant no longer exists in the
	// store. Fatal for the connection, not retried.
	ErrTenantUnresolved = errors.New("tenant not found for namespace")

	// ErrTenantMismatch means a brand-scoped dashboard tried to join a
	// different brand's channel.
	ErrTenantMismatch = errors.New("dashboard tenant does not match channel")
)

// JoinParams is the connection-establishment metadata, collected by the
// transport after the Gate has authenticated the credential.
type JoinParams struct {
	Claims  *auth.Claims
	Role    Role
	KioskID string
	// Meta carries eager self-reported kiosk metadata supplied in the
	// handshake, if any.
	Meta *RegisterMeta
}

// Join runs role-specific setup for an authenticated connection and admits it
// to the channel. Kiosks come online (room join, membership entry, store
// upsert, notifications); dashboards are checked for tenant match; anything
// else is admitted with role unknown and no handlers.
func (ch *Channel) Join(ctx context.Context, params JoinParams) (*Conn, error) {
	tenant, err := ch.store.FindTenantByNamespace(ctx, ch.Namespace)
	if err != nil {
		slog.Error("No tenant found for namespace", "namespace", ch.Namespace, "error", err)
		return nil, fmt.Errorf("%w: %s", ErrTenantUnresolved, ch.Namespace)
	}

	switch {
	case params.Role == RoleKiosk && params.KioskID != "":
		return ch.joinKiosk(ctx, params, tenant)

	case params.Role == RoleDashboard:
		return ch.joinDashboard(params, tenant)

	default:
		conn := newConn(RoleUnknown, "", params.Claims, tenant)
		ch.addConn(conn)
		slog.Debug("Connection admitted without role", "namespace", ch.Namespace, "conn_id", conn.ID)
		return conn, nil
	}
}

func (ch *Channel) joinKiosk(ctx context.Context, params JoinParams, tenant *store.Tenant) (*Conn, error) {
	conn := newConn(RoleKiosk, params.KioskID, params.Claims, tenant)
	ch.addConn(conn)
	ch.joinRoom(KioskRoom(params.KioskID), conn)
	ch.setKioskConn(params.KioskID, conn.ID)

	slog.Info("Kiosk connected",
		"namespace", ch.Namespace,
		"kiosk_id", params.KioskID,
		"conn_id", conn.ID)

	if params.Meta != nil {
		// Eager handshake metadata is best-effort: on success the
		// registration covers the online upsert and notifications in one
		// pass. On failure the plain online transition below still runs so
		// dashboards learn about the kiosk either way.
		err := ch.registerOrUpdate(ctx, params.KioskID, tenant, *params.Meta)
		if err == nil {
			return conn, nil
		}
		slog.Warn("Eager kiosk registration failed",
			"namespace", ch.Namespace,
			"kiosk_id", params.KioskID,
			"error", err)
	}

	if err := ch.store.UpsertKiosk(ctx, store.UpsertKioskParams{
		ID:       params.KioskID,
		BrandID:  tenant.ID,
		Status:   store.KioskStatusOnline,
		LastSeen: time.Now(),
	}); err != nil {
		// In-memory state is already online; the store catches up on the
		// next event. Known eventual-consistency gap.
		slog.Error("Failed to persist kiosk online status",
			"namespace", ch.Namespace,
			"kiosk_id", params.KioskID,
			"error", err)
	}

	ch.Broadcast(EventRefreshUI, nil)
	ch.Broadcast(EventKioskStatus, StatusPayload{KioskID: params.KioskID, Status: store.KioskStatusOnline})

	return conn, nil
}

func (ch *Channel) joinDashboard(params JoinParams, tenant *store.Tenant) (*Conn, error) {
	if params.Claims != nil && params.Claims.Role == auth.RoleBrandAdmin && params.Claims.BrandID != tenant.ID {
		slog.Warn("Brand admin attempted to join a different namespace",
			"namespace", ch.Namespace,
			"user_id", params.Claims.UserID,
			"brand_id", params.Claims.BrandID)
		return nil, ErrTenantMismatch
	}

	conn := newConn(RoleDashboard, "", params.Claims, tenant)
	ch.addConn(conn)

	slog.Info("Dashboard connected",
		"namespace", ch.Namespace,
		"conn_id", conn.ID,
		"user_id", userID(params.Claims))

	return conn, nil
}

// Disconnect removes a connection from the channel. For kiosks whose
// membership entry still points at this connection it also records the
// offline transition; a superseded connection tears down silently so it
// cannot clobber its replacement's state.
func (ch *Channel) Disconnect(ctx context.Context, conn *Conn) {
	ch.removeConn(conn)
	conn.Close()

	if conn.Role != RoleKiosk {
		slog.Debug("Connection closed", "namespace", ch.Namespace, "conn_id", conn.ID)
		return
	}

	if !ch.clearKioskConn(conn.KioskID, conn.ID) {
		slog.Debug("Superseded kiosk connection closed, membership kept",
			"namespace", ch.Namespace,
			"kiosk_id", conn.KioskID,
			"conn_id", conn.ID)
		return
	}

	slog.Info("Kiosk disconnected",
		"namespace", ch.Namespace,
		"kiosk_id", conn.KioskID,
		"conn_id", conn.ID)

	if err := ch.store.UpsertKiosk(ctx, store.UpsertKioskParams{
		ID:       conn.KioskID,
		BrandID:  conn.tenant.ID,
		Status:   store.KioskStatusOffline,
		LastSeen: time.Now(),
	}); err != nil {
		slog.Error("Failed to persist kiosk offline status",
			"namespace", ch.Namespace,
			"kiosk_id", conn.KioskID,
			"error", err)
	}

	ch.Broadcast(EventRefreshUI, nil)
	ch.Broadcast(EventKioskStatus, StatusPayload{KioskID: conn.KioskID, Status: store.KioskStatusOffline})
}

// handleReportConfig refreshes a kiosk's stored specs from a self-report.
// Status stays online; last seen is bumped.
func (ch *Channel) handleReportConfig(ctx context.Context, conn *Conn, specs map[string]interface{}) {
	if err := ch.store.UpsertKiosk(ctx, store.UpsertKioskParams{
		ID:       conn.KioskID,
		BrandID:  conn.tenant.ID,
		Status:   store.KioskStatusOnline,
		LastSeen: time.Now(),
		Specs:    specs,
	}); err != nil {
		slog.Error("Failed to persist kiosk config report",
			"namespace", ch.Namespace,
			"kiosk_id", conn.KioskID,
			"error", err)
		return
	}

	ch.Broadcast(EventRefreshUI, nil)
}

// updateScreenshot stores the latest screenshot reference for a kiosk. Only
// the reference and last seen are written; status stays as recorded.
func (ch *Channel) updateScreenshot(ctx context.Context, conn *Conn, image string) error {
	return ch.store.UpsertKiosk(ctx, store.UpsertKioskParams{
		ID:             conn.KioskID,
		BrandID:        conn.tenant.ID,
		LastSeen:       time.Now(),
		LastScreenshot: &image,
	})
}

func userID(claims *auth.Claims) string {
	if claims == nil {
		return ""
	}
	return claims.UserID
}
