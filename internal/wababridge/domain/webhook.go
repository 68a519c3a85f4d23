package domain

import "encoding/json"

// Webhook envelope types delivered by Gupshup. Other types exist
// (billing-event, template-event, ...) and are ignored by the bridge.
const (
	EventTypeMessage      = "message"
	EventTypeMessageEvent = "message-event"
	EventTypeUserEvent    = "user-event"
)

// WebhookEnvelope is the outer shape of every Gupshup callback. The payload
// is kept raw and decoded per event type; unknown fields never abort
// processing.
type WebhookEnvelope struct {
	App       string          `json:"app"`
	Timestamp int64           `json:"timestamp"`
	Version   int             `json:"version"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
}

// InboundSender is the counterpart identity attached to inbound messages.
type InboundSender struct {
	Phone       string `json:"phone"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	DialCode    string `json:"dial_code"`
}

// InboundContext references the quoted message when the user replied to one.
type InboundContext struct {
	ID   string `json:"id"`
	GsID string `json:"gsId"`
}

// SharedContact is one contact card forwarded by the user.
type SharedContact struct {
	Name struct {
		FormattedName string `json:"formatted_name"`
		FirstName     string `json:"first_name"`
		LastName      string `json:"last_name"`
	} `json:"name"`
	Phones []struct {
		Phone string `json:"phone"`
		WaID  string `json:"wa_id"`
		Type  string `json:"type"`
	} `json:"phones"`
}

// InboundMessagePayload is the payload of a type="message" envelope. It is a
// superset of all per-kind shapes: Type discriminates, and only the fields
// for that kind are populated.
type InboundMessagePayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	Text    string `json:"text"`
	Caption string `json:"caption"`

	URL         string `json:"url"`
	Name        string `json:"name"`
	MimeType    string `json:"mimeType"`
	PreviewURL  string `json:"previewUrl"`
	OriginalURL string `json:"originalUrl"`

	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Label     string  `json:"label"`
	Address   string  `json:"address"`

	Contacts []SharedContact `json:"contacts"`

	Sender    InboundSender   `json:"sender"`
	Context   *InboundContext `json:"context"`
	Timestamp string          `json:"timestamp"`
}

// MediaURL returns whichever media link the provider populated.
func (p *InboundMessagePayload) MediaURL() string {
	if p.URL != "" {
		return p.URL
	}
	return p.OriginalURL
}

// MessageEventPayload is the payload of a type="message-event" envelope,
// reporting a delivery-status change for a previously sent message. GsID is
// the provider-assigned id returned at submit time.
type MessageEventPayload struct {
	ID          string `json:"id"`
	GsID        string `json:"gsId"`
	Type        string `json:"type"`
	Destination string `json:"destination"`
	EventType   string `json:"eventType"`
	EventTs     int64  `json:"eventTs"`
	Cause       string `json:"cause"`
	ErrorCode   string `json:"errorCode"`
}

// UserEventPayload is the payload of a type="user-event" envelope
// (opt-in/opt-out). Observed and logged only.
type UserEventPayload struct {
	Phone       string `json:"phone"`
	CountryCode string `json:"country_code"`
	DialCode    string `json:"dial_code"`
	Type        string `json:"type"` // "opted-in" | "opted-out"
}
