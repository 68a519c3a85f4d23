package domain

import "time"

// AckStatus is the delivery acknowledgment state of an outbound message.
// The happy path advances pending -> sent -> delivered -> read, but "failed"
// may arrive from any state and status events may be duplicated or arrive
// out of order; the last write observed wins.
type AckStatus string

const (
	AckPending   AckStatus = "pending"
	AckSent      AckStatus = "sent"
	AckDelivered AckStatus = "delivered"
	AckRead      AckStatus = "read"
	AckFailed    AckStatus = "failed"
)

// AckFromProviderStatus maps Gupshup's message-event vocabulary to the
// internal acknowledgment state. The strings happen to be identical today,
// but the mapping stays explicit so an unknown provider value is reported
// instead of leaking through.
func AckFromProviderStatus(status string) (AckStatus, bool) {
	switch status {
	case "sent":
		return AckSent, true
	case "delivered":
		return AckDelivered, true
	case "read":
		return AckRead, true
	case "failed":
		return AckFailed, true
	default:
		return "", false
	}
}

// Content kinds recorded on messages.
const (
	ContentText     = "text"
	ContentImage    = "image"
	ContentVideo    = "video"
	ContentAudio    = "audio"
	ContentDocument = "document"
	ContentLocation = "location"
	ContentContact  = "contact"
)

// Message is an immutable record of one inbound or outbound content unit.
// ID is the provider-assigned message id when available, otherwise a locally
// generated one; the acknowledgment state is the only field mutated after
// creation.
type Message struct {
	ID          string
	TicketID    int64
	ContactID   int64
	TenantID    int64
	Body        string
	FromMe      bool
	ContentKind string
	MediaName   string
	QuotedMsgID string
	Ack         AckStatus
	Timestamp   time.Time
	CreatedAt   time.Time
}
