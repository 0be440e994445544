package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kioskops/fleet-hub/internal/store"
)

// registerOrUpdate merges self-reported kiosk metadata into the stored
// record. Only fields present in meta are written; registration always sets
// the kiosk online and bumps last seen. In-memory membership already made is
// not rolled back on a store failure; the error surfaces through the caller's
// ack when one was requested.
func (ch *Channel) registerOrUpdate(ctx context.Context, kioskID string, tenant *store.Tenant, meta RegisterMeta) error {
	params := store.UpsertKioskParams{
		ID:       kioskID,
		BrandID:  tenant.ID,
		Status:   store.KioskStatusOnline,
		LastSeen: time.Now(),
		Specs:    meta.Specs,
		Metadata: meta.Metadata,
	}
	if meta.OrgID != "" {
		params.OrgID = &meta.OrgID
	}
	if meta.AppVersion != "" {
		params.AppVersion = &meta.AppVersion
	}
	if meta.Location != "" {
		params.Location = &meta.Location
	}

	if err := ch.store.UpsertKiosk(ctx, params); err != nil {
		return fmt.Errorf("register kiosk %s: %w", kioskID, err)
	}

	slog.Info("Kiosk registered",
		"namespace", ch.Namespace,
		"kiosk_id", kioskID,
		"brand_id", tenant.ID)

	ch.Broadcast(EventRefreshUI, nil)
	ch.Broadcast(EventKioskStatus, StatusPayload{KioskID: kioskID, Status: store.KioskStatusOnline})
	ch.Broadcast(EventKioskRegistered, RegisteredPayload{
		KioskID: kioskID,
		BrandID: tenant.ID,
		OrgID:   meta.OrgID,
	})

	return nil
}
