package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Order events
	EventOrderCreated                = "order.created"
	EventOrderVerificationCompleted  = "order.verification.completed"
	EventOrderVerificationOverridden = "order.verification.overridden"

	// Prescriber registry events
	EventPrescriberUpserted = "prescriber.upserted"
	EventPrescriberDeleted  = "prescriber.deleted"
)

// Exchange names
const (
	ExchangePharmacyEvents = "pharmacy.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Order Events

// OrderCreatedEvent is published once an order row is committed
type OrderCreatedEvent struct {
	OrderID            string  `json:"order_id"`
	UserID             string  `json:"user_id"`
	PaymentMethod      string  `json:"payment_method"`
	TotalAmount        float64 `json:"total_amount"`
	HasPrescription    bool    `json:"has_prescription"`
	VerificationStatus string  `json:"verification_status"`
}

// OrderVerificationCompletedEvent carries the pipeline's verdict for an order
type OrderVerificationCompletedEvent struct {
	OrderID         string    `json:"order_id"`
	Verdict         string    `json:"verdict"`
	Reason          string    `json:"reason"`
	DetectedLicense string    `json:"detected_license"`
	PrescriptionRef string    `json:"prescription_ref"`
	VerifiedAt      time.Time `json:"verified_at"`
}

// OrderVerificationOverriddenEvent is published when staff replace a verdict
type OrderVerificationOverriddenEvent struct {
	OrderID    string `json:"order_id"`
	ActorID    string `json:"actor_id"`
	ActorEmail string `json:"actor_email,omitempty"`
	OldVerdict string `json:"old_verdict"`
	NewVerdict string `json:"new_verdict"`
	Reason     string `json:"reason"`
}

// Prescriber Events

// PrescriberUpsertedEvent is published when a registry record is created or changed
type PrescriberUpsertedEvent struct {
	LicenseID  string `json:"license_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date"` // YYYY-MM-DD
}

// PrescriberDeletedEvent is published when a registry record is removed
type PrescriberDeletedEvent struct {
	LicenseID string `json:"license_id"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
