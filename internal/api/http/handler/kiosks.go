package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kioskops/fleet-hub/internal/api/http/dto"
	"github.com/kioskops/fleet-hub/internal/api/http/middleware"
	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/channel"
	"github.com/kioskops/fleet-hub/internal/store"
)

type KioskHandler struct {
	store    *store.Service
	registry *channel.Registry
}

func NewKioskHandler(st *store.Service, registry *channel.Registry) *KioskHandler {
	return &KioskHandler{store: st, registry: registry}
}

// List returns the kiosks of one namespace. Brand admins only see their own.
func (h *KioskHandler) List(c *gin.Context) {
	namespace := c.Param("id")
	claims := middleware.Claims(c)

	if claims != nil && claims.Role == auth.RoleBrandAdmin {
		tenant, err := h.store.FindTenantByNamespace(c.Request.Context(), namespace)
		if err != nil || tenant.ID != claims.BrandID {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
	}

	kiosks, err := h.store.ListKiosksByNamespace(c.Request.Context(), namespace)
	if err != nil {
		slog.Error("Failed to list kiosks", "namespace", namespace, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list kiosks"})
		return
	}

	response := make([]dto.KioskResponse, len(kiosks))
	for i, k := range kiosks {
		response[i] = dto.KioskResponse{
			ID:         k.ID,
			BrandID:    k.BrandID,
			OrgID:      k.OrgID,
			Status:     k.Status,
			LastSeen:   k.LastSeen,
			Specs:      k.Specs,
			AppVersion: k.AppVersion,
			Location:   k.Location,
			Metadata:   k.Metadata,
		}
	}
	c.JSON(http.StatusOK, response)
}

// SetURL updates a kiosk's display URL and pushes a set-url command down to
// the device through its tenant channel.
func (h *KioskHandler) SetURL(c *gin.Context) {
	kioskID := c.Param("id")

	var req dto.SetURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kiosk, err := h.store.GetKiosk(c.Request.Context(), kioskID)
	if err != nil {
		if errors.Is(err, store.ErrKioskNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "kiosk not found"})
			return
		}
		slog.Error("Failed to load kiosk", "kiosk_id", kioskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	tenant, err := h.store.GetTenantByID(c.Request.Context(), kiosk.BrandID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "brand not found"})
		return
	}

	claims := middleware.Claims(c)
	if claims != nil && claims.Role == auth.RoleBrandAdmin && claims.BrandID != tenant.ID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	// Merge the url into the stored specs so the record survives restarts.
	specs := kiosk.Specs
	if specs == nil {
		specs = make(map[string]interface{})
	}
	specs["url"] = req.URL
	if err := h.store.UpsertKiosk(c.Request.Context(), store.UpsertKioskParams{
		ID:       kiosk.ID,
		BrandID:  kiosk.BrandID,
		Status:   kiosk.Status,
		LastSeen: kiosk.LastSeen,
		Specs:    specs,
	}); err != nil {
		slog.Error("Failed to persist kiosk url", "kiosk_id", kioskID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	ch, ok := h.registry.Get(tenant.Namespace)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "channel not active"})
		return
	}

	payload, _ := json.Marshal(map[string]string{"url": req.URL})
	commandID := uuid.New().String()
	result := ch.RouteCommand(kioskID, commandID, "set-url", payload)

	c.JSON(http.StatusOK, dto.SetURLResponse{
		OK:        result.Outcome != channel.OutcomeFailed,
		Outcome:   string(result.Outcome),
		CommandID: commandID,
	})
}
