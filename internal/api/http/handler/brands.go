package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kioskops/fleet-hub/internal/api/http/dto"
	"github.com/kioskops/fleet-hub/internal/api/http/middleware"
	"github.com/kioskops/fleet-hub/internal/auth"
	"github.com/kioskops/fleet-hub/internal/channel"
	"github.com/kioskops/fleet-hub/internal/store"
)

type BrandHandler struct {
	store    *store.Service
	registry *channel.Registry
}

func NewBrandHandler(st *store.Service, registry *channel.Registry) *BrandHandler {
	return &BrandHandler{store: st, registry: registry}
}

// Create provisions a new brand and brings its channel live immediately, no
// process restart needed.
func (h *BrandHandler) Create(c *gin.Context) {
	var req dto.CreateBrandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := middleware.Claims(c)

	// Org admins only provision brands inside their own org.
	orgID := req.OrgID
	if claims != nil && claims.Role == auth.RoleOrgAdmin {
		orgID = claims.OrgID
	}

	namespace := strings.TrimPrefix(req.SocketNamespace, "/")
	tenant, err := h.store.CreateTenant(c.Request.Context(), req.Name, orgID, namespace)
	if err != nil {
		if errors.Is(err, store.ErrNamespaceConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "namespace already in use"})
			return
		}
		slog.Error("Failed to create brand", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create brand"})
		return
	}

	h.registry.Ensure(tenant.Namespace)

	c.JSON(http.StatusCreated, dto.BrandResponse{
		ID:              tenant.ID,
		Name:            tenant.Name,
		OrgID:           tenant.OrgID,
		SocketNamespace: tenant.Namespace,
		CreatedAt:       tenant.CreatedAt.Format(time.RFC3339),
	})
}
