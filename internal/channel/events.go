package channel

import (
	"encoding/json"
	"fmt"
)

// Wire event names. These are the compatibility contract with deployed kiosk
// and dashboard clients and must not change.
const (
	// Inbound, from kiosk connections.
	EventKioskReportConfig     = "kiosk-report-config"
	EventRegisterKiosk         = "register-kiosk"
	EventKioskScreenshotReport = "kiosk-screenshot-report"
	EventCommandResponse       = "mcp-command-response"

	// Inbound, from dashboard connections.
	EventSendCommand = "send-mcp-command"

	// Outbound.
	EventRefreshUI          = "refresh-ui"
	EventKioskStatus        = "kiosk-status"
	EventKioskRegistered    = "kiosk-registered"
	EventCommandResponseUI  = "mcp-command-response-ui"
	EventScreenshotReportUI = "kiosk-screenshot-report-ui"
	EventCommand            = "mcp-command"
	EventAck                = "ack"
)

// Event is one JSON frame on the wire. Frames carrying an ack id expect an
// "ack" frame back with the same id.
type Event struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
	Ack  *int64          `json:"ack,omitempty"`
}

// NewEvent builds an outbound frame, encoding the payload.
func NewEvent(name string, payload any) (Event, error) {
	evt := Event{Name: name}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
		}
		evt.Data = data
	}
	return evt, nil
}

func newAckEvent(ackID int64, payload any) (Event, error) {
	evt, err := NewEvent(EventAck, payload)
	if err != nil {
		return Event{}, err
	}
	evt.Ack = &ackID
	return evt, nil
}

type StatusPayload struct {
	KioskID string `json:"kioskId"`
	Status  string `json:"status"`
}

type RegisteredPayload struct {
	KioskID string `json:"kioskId"`
	BrandID string `json:"brandId"`
	OrgID   string `json:"orgId"`
}

// RegisterMeta is the self-reported metadata a kiosk may supply, either
// eagerly at handshake time or through a register-kiosk event. Absent fields
// leave the stored record untouched.
type RegisterMeta struct {
	OrgID      string                 `json:"orgId,omitempty"`
	Specs      map[string]interface{} `json:"specs,omitempty"`
	AppVersion string                 `json:"appVersion,omitempty"`
	Location   string                 `json:"location,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

type CommandRequest struct {
	Target    string          `json:"target"`
	CommandID string          `json:"commandId"`
	Cmd       string          `json:"cmd"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// CommandPayload is the mcp-command frame delivered to kiosks. Target is only
// set on the whole-channel fallback broadcast so the intended device can
// filter for itself.
type CommandPayload struct {
	CommandID string          `json:"commandId"`
	Cmd       string          `json:"cmd"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Target    string          `json:"target,omitempty"`
}

type CommandResponsePayload struct {
	CommandID string          `json:"commandId"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type CommandResponseUIPayload struct {
	KioskID   string          `json:"kioskId"`
	CommandID string          `json:"commandId"`
	Result    json.RawMessage `json:"result,omitempty"`
}

type ScreenshotPayload struct {
	Image string `json:"image"`
}

type ScreenshotUIPayload struct {
	KioskID string `json:"kioskId"`
	Image   string `json:"image"`
}

type RegisterAck struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type CommandAck struct {
	OK          bool   `json:"ok"`
	Forwarded   bool   `json:"forwarded"`
	Broadcasted bool   `json:"broadcasted,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
