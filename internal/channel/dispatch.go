package channel

import (
	"context"
	"encoding/json"
	"log/slog"
)

// HandleEvent dispatches one inbound frame from a connection. Events bound to
// the wrong role are dropped with a warning; handler errors never tear the
// connection down, they surface through acks where one was requested.
func (ch *Channel) HandleEvent(ctx context.Context, conn *Conn, evt Event) {
	switch evt.Name {
	case EventKioskReportConfig:
		if !requireRole(conn, RoleKiosk, evt.Name) {
			return
		}
		var specs map[string]interface{}
		if !decodeData(evt.Data, &specs, conn, evt.Name) {
			return
		}
		ch.handleReportConfig(ctx, conn, specs)

	case EventRegisterKiosk:
		if !requireRole(conn, RoleKiosk, evt.Name) {
			return
		}
		var meta RegisterMeta
		if !decodeData(evt.Data, &meta, conn, evt.Name) {
			return
		}
		ch.handleRegisterKiosk(ctx, conn, meta, evt.Ack)

	case EventKioskScreenshotReport:
		if !requireRole(conn, RoleKiosk, evt.Name) {
			return
		}
		var report ScreenshotPayload
		if !decodeData(evt.Data, &report, conn, evt.Name) {
			return
		}
		ch.handleScreenshotReport(ctx, conn, report)

	case EventCommandResponse:
		if !requireRole(conn, RoleKiosk, evt.Name) {
			return
		}
		var response CommandResponsePayload
		if !decodeData(evt.Data, &response, conn, evt.Name) {
			return
		}
		ch.Broadcast(EventCommandResponseUI, CommandResponseUIPayload{
			KioskID:   conn.KioskID,
			CommandID: response.CommandID,
			Result:    response.Result,
		})

	case EventSendCommand:
		if !requireRole(conn, RoleDashboard, evt.Name) {
			return
		}
		ch.handleSendCommand(conn, evt)

	default:
		slog.Warn("Unknown event",
			"namespace", ch.Namespace,
			"conn_id", conn.ID,
			"event", evt.Name)
	}
}

func (ch *Channel) handleRegisterKiosk(ctx context.Context, conn *Conn, meta RegisterMeta, ackID *int64) {
	err := ch.registerOrUpdate(ctx, conn.KioskID, conn.tenant, meta)

	if ackID == nil {
		return
	}

	ack := RegisterAck{OK: err == nil}
	if err != nil {
		ack.Error = err.Error()
	}
	if ackErr := conn.EmitAck(*ackID, ack); ackErr != nil {
		slog.Warn("Failed to deliver register ack",
			"namespace", ch.Namespace,
			"conn_id", conn.ID,
			"error", ackErr)
	}
}

func (ch *Channel) handleScreenshotReport(ctx context.Context, conn *Conn, report ScreenshotPayload) {
	if err := ch.updateScreenshot(ctx, conn, report.Image); err != nil {
		slog.Error("Failed to persist kiosk screenshot",
			"namespace", ch.Namespace,
			"kiosk_id", conn.KioskID,
			"error", err)
		return
	}

	ch.Broadcast(EventScreenshotReportUI, ScreenshotUIPayload{
		KioskID: conn.KioskID,
		Image:   report.Image,
	})
}

func (ch *Channel) handleSendCommand(conn *Conn, evt Event) {
	var req CommandRequest
	if err := json.Unmarshal(evt.Data, &req); err != nil {
		slog.Warn("Malformed command request",
			"namespace", ch.Namespace,
			"conn_id", conn.ID,
			"error", err)
		if evt.Ack != nil {
			_ = conn.EmitAck(*evt.Ack, CommandAck{OK: false, Reason: err.Error()})
		}
		return
	}

	result := ch.RouteCommand(req.Target, req.CommandID, req.Cmd, req.Payload)

	if evt.Ack == nil {
		return
	}
	if err := conn.EmitAck(*evt.Ack, result.Ack()); err != nil {
		slog.Warn("Failed to deliver command ack",
			"namespace", ch.Namespace,
			"conn_id", conn.ID,
			"command_id", req.CommandID,
			"error", err)
	}
}

func requireRole(conn *Conn, role Role, event string) bool {
	if conn.Role == role {
		return true
	}
	slog.Warn("Event from wrong role dropped",
		"conn_id", conn.ID,
		"role", conn.Role,
		"event", event)
	return false
}

func decodeData(data json.RawMessage, into any, conn *Conn, event string) bool {
	if err := json.Unmarshal(data, into); err != nil {
		slog.Warn("Malformed event payload",
			"conn_id", conn.ID,
			"event", event,
			"error", err)
		return false
	}
	return true
}
