package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"

	"github.com/kioskops/fleet-hub/internal/channel"
)

const writeTimeout = 5 * time.Second

// Handler upgrades HTTP requests into live channel connections. One endpoint
// per tenant namespace; the channel's gate runs before the upgrade so a
// rejected credential never allocates a socket.
type Handler struct {
	registry *channel.Registry
}

func NewHandler(registry *channel.Registry) *Handler {
	return &Handler{registry: registry}
}

// Serve handles GET /ws/:namespace. Connection-establishment metadata comes
// from the query string (`type`, `kioskId`, optional `kioskMeta` JSON); the
// bearer credential from the Authorization header, with a `token` query
// parameter kept as a compatibility fallback.
func (h *Handler) Serve(c *gin.Context) {
	namespace := c.Param("namespace")

	ch, ok := h.registry.Get(namespace)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown namespace"})
		return
	}

	claims, err := ch.Gate().Authenticate(bearerToken(c))
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, channel.ErrTokenMissing) {
			c.JSON(status, gin.H{"error": "authentication error: token missing"})
		} else {
			c.JSON(status, gin.H{"error": "authentication error"})
		}
		return
	}

	params := channel.JoinParams{
		Claims:  claims,
		Role:    channel.Role(c.Query("type")),
		KioskID: c.Query("kioskId"),
	}
	if raw := c.Query("kioskMeta"); raw != "" {
		var meta channel.RegisterMeta
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			slog.Warn("Invalid kioskMeta on handshake", "namespace", namespace, "error", err)
		} else {
			params.Meta = &meta
		}
	}

	sock, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("Websocket accept failed", "namespace", namespace, "error", err)
		return
	}

	ctx := c.Request.Context()

	conn, err := ch.Join(ctx, params)
	if err != nil {
		// Tenant resolution and cross-tenant failures are fatal for the
		// connection and silent to the peer beyond the close itself.
		_ = sock.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	h.pump(ctx, ch, conn, sock)
}

func (h *Handler) pump(ctx context.Context, ch *channel.Channel, conn *channel.Conn, sock *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	defer func() {
		ch.Disconnect(context.WithoutCancel(ctx), conn)
		_ = sock.Close(websocket.StatusNormalClosure, "closed")
	}()

	go h.writeLoop(ctx, cancel, conn, sock)

	for {
		var evt channel.Event
		if err := wsjson.Read(ctx, sock, &evt); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("Websocket read ended",
					"namespace", ch.Namespace,
					"conn_id", conn.ID,
					"error", err)
			}
			return
		}
		ch.HandleEvent(ctx, conn, evt)
	}
}

func (h *Handler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *channel.Conn, sock *websocket.Conn) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-conn.Context().Done():
			return
		case evt := <-conn.SendCh:
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, sock, evt)
			cancelWrite()
			if err != nil {
				slog.Warn("Websocket write failed", "conn_id", conn.ID, "event", evt.Name, "error", err)
				return
			}
		}
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}
