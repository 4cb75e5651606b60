package domain

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// ErrNoPendingOutboxEvents is the shared sentinel a Store implementation's
// claim query returns when nothing is due. Living here (rather than in
// pkg/storage/postgres or pkg/outbox) lets both depend on it without either
// depending on the other.
var ErrNoPendingOutboxEvents = errors.New("no pending outbox events")

// OutboxEventStatus is the dispatch state of a durable outbox row.
type OutboxEventStatus string

const (
	OutboxStatusPending    OutboxEventStatus = "pending"
	OutboxStatusInFlight   OutboxEventStatus = "in_flight"
	OutboxStatusPublished  OutboxEventStatus = "published"
	OutboxStatusFailed     OutboxEventStatus = "failed"
	OutboxStatusDeadLetter OutboxEventStatus = "dead_letter"
)

// EventType enumerates the recognized outbox event types.
type EventType string

// EventTypeProtocolUploaded is the only trigger event the pipeline recognizes
// (SPEC_FULL.md §6.1). Other event types may be produced by pipeline nodes for
// audit/notification purposes but do not drive the pipeline itself.
const EventTypeProtocolUploaded EventType = "protocol_uploaded"

// OutboxEvent is a durable event record written in the same transaction as
// the domain write it announces (SPEC_FULL.md §4.1).
type OutboxEvent struct {
	ID             string
	EventType      EventType
	AggregateType  string
	AggregateID    string
	Payload        json.RawMessage
	IdempotencyKey string
	Status         OutboxEventStatus
	RetryCount     int
	CreatedAt      time.Time
	NextAttemptAt  time.Time
	PublishedAt    *time.Time
}

// ProtocolUploadedPayload is the payload shape for EventTypeProtocolUploaded.
type ProtocolUploadedPayload struct {
	ProtocolID string `json:"protocol_id"`
	FileURI    string `json:"file_uri"`
	Title      string `json:"title"`
}

// UploadIdempotencyKey builds the idempotency key spec.md §6.1 mandates:
// protocol_id + ":upload:" + version. Re-processing bumps version.
func UploadIdempotencyKey(protocolID string, version int) string {
	return protocolID + ":upload:" + strconv.Itoa(version)
}
