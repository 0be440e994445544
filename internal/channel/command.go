package channel

import (
	"encoding/json"
	"log/slog"
)

// DeliveryOutcome is the result of one command routing step.
type DeliveryOutcome string

const (
	// OutcomeForwarded: the target's addressing room had live members and
	// the command went to them directly.
	OutcomeForwarded DeliveryOutcome = "forwarded"
	// OutcomeBroadcasted: the room was empty, so the command went to the
	// whole channel with the target id attached. Degraded fallback for a
	// membership map gone stale relative to the live sockets.
	OutcomeBroadcasted DeliveryOutcome = "broadcasted"
	// OutcomeFailed: delivery itself errored.
	OutcomeFailed DeliveryOutcome = "failed"
)

type DeliveryResult struct {
	Outcome DeliveryOutcome
	Reason  string
}

// Ack is the synchronous acknowledgment shape the dashboard caller always
// receives for a routed command.
func (r DeliveryResult) Ack() CommandAck {
	switch r.Outcome {
	case OutcomeForwarded:
		return CommandAck{OK: true, Forwarded: true}
	case OutcomeBroadcasted:
		return CommandAck{OK: true, Forwarded: false, Broadcasted: true}
	default:
		return CommandAck{OK: false, Forwarded: false, Reason: r.Reason}
	}
}

// RouteCommand delivers a dashboard-issued command to the target kiosk.
// Two-phase: direct delivery to the kiosk's addressing room, else a
// whole-channel broadcast carrying the target id so only the intended device
// acts on it. The command id is caller-supplied and opaque here; it matters
// downstream for response matching and device-side de-duplication.
func (ch *Channel) RouteCommand(target, commandID, cmd string, payload json.RawMessage) DeliveryResult {
	room := KioskRoom(target)
	members := ch.RoomMembers(room)

	if len(members) > 0 {
		evt, err := NewEvent(EventCommand, CommandPayload{
			CommandID: commandID,
			Cmd:       cmd,
			Payload:   payload,
		})
		if err != nil {
			return DeliveryResult{Outcome: OutcomeFailed, Reason: err.Error()}
		}

		delivered := 0
		var lastErr error
		for _, conn := range members {
			if sendErr := conn.send(evt); sendErr != nil {
				slog.Error("Failed to forward command to kiosk connection",
					"namespace", ch.Namespace,
					"kiosk_id", target,
					"conn_id", conn.ID,
					"command_id", commandID,
					"error", sendErr)
				lastErr = sendErr
				continue
			}
			delivered++
		}
		if delivered == 0 {
			return DeliveryResult{Outcome: OutcomeFailed, Reason: lastErr.Error()}
		}

		slog.Info("Command forwarded",
			"namespace", ch.Namespace,
			"kiosk_id", target,
			"command_id", commandID,
			"cmd", cmd)
		return DeliveryResult{Outcome: OutcomeForwarded}
	}

	slog.Warn("No connections in addressing room, broadcasting command",
		"namespace", ch.Namespace,
		"room", room,
		"known_kiosks", ch.KioskIDs())

	evt, err := NewEvent(EventCommand, CommandPayload{
		CommandID: commandID,
		Cmd:       cmd,
		Payload:   payload,
		Target:    target,
	})
	if err != nil {
		return DeliveryResult{Outcome: OutcomeFailed, Reason: err.Error()}
	}

	conns := ch.allConns()
	failed := 0
	var lastErr error
	for _, conn := range conns {
		if sendErr := conn.send(evt); sendErr != nil {
			slog.Warn("Failed to deliver fallback broadcast",
				"namespace", ch.Namespace,
				"conn_id", conn.ID,
				"command_id", commandID,
				"error", sendErr)
			failed++
			lastErr = sendErr
		}
	}
	if len(conns) > 0 && failed == len(conns) {
		return DeliveryResult{Outcome: OutcomeFailed, Reason: lastErr.Error()}
	}

	slog.Info("Command broadcasted as fallback",
		"namespace", ch.Namespace,
		"target", target,
		"command_id", commandID,
		"cmd", cmd)
	return DeliveryResult{Outcome: OutcomeBroadcasted}
}
