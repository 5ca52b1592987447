package model

import "time"

// AuditOutcome classifies what happened to one webhook delivery.
type AuditOutcome string

const (
	AuditProcessed   AuditOutcome = "processed"    // state changed and committed
	AuditNoop        AuditOutcome = "noop"         // already in the target state
	AuditRecorded    AuditOutcome = "recorded"     // audit-only event (order.created)
	AuditUnresolved  AuditOutcome = "unresolved"   // no owner or no matching order
	AuditIgnored     AuditOutcome = "ignored"      // unknown event type
	AuditMalformed   AuditOutcome = "malformed"    // body or entity shape rejected
	AuditDuplicate   AuditOutcome = "duplicate"    // delivery id seen before
	AuditWriteFailed AuditOutcome = "write_failed" // store write gave up after retries
)

// PaymentLogEntry is an immutable audit record of one delivery.
type PaymentLogEntry struct {
	ID        string       `json:"id" firestore:"-"`
	EventType string       `json:"eventType" firestore:"eventType"`
	EventID   string       `json:"eventId,omitempty" firestore:"eventId,omitempty"`
	Outcome   AuditOutcome `json:"outcome" firestore:"outcome"`
	UserID    string       `json:"userId,omitempty" firestore:"userId,omitempty"`
	OrderID   string       `json:"orderId,omitempty" firestore:"orderId,omitempty"`
	PaymentID string       `json:"paymentId,omitempty" firestore:"paymentId,omitempty"`
	Error     string       `json:"error,omitempty" firestore:"error,omitempty"`
	RawData   string       `json:"rawData" firestore:"rawData"`
	Timestamp time.Time    `json:"timestamp" firestore:"timestamp"`
}
