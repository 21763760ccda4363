package domain

import (
	"time"

	rx "github.com/nanba/pharmacy-backend/internal/prescription/domain"
)

// PaymentMethod is how the customer pays on delivery or upfront
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentUPI  PaymentMethod = "upi"
	PaymentCard PaymentMethod = "card"
)

// Valid reports whether p is a supported payment method
func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCOD, PaymentUPI, PaymentCard:
		return true
	}
	return false
}

// Order is a placed checkout with its prescription verification result
type Order struct {
	ID            string        `json:"id" db:"id"`
	UserID        string        `json:"user_id" db:"user_id"`
	FullName      string        `json:"full_name" db:"full_name"`
	Address       string        `json:"address" db:"address"`
	Phone         string        `json:"phone" db:"phone"`
	PaymentMethod PaymentMethod `json:"payment_method" db:"payment_method"`
	TotalAmount   float64       `json:"total_amount" db:"total_amount"`

	// PrescriptionRef is the storage key of the uploaded prescription, if any
	PrescriptionRef *string `json:"prescription_ref,omitempty" db:"prescription_ref"`

	VerificationStatus    rx.Verdict `json:"verification_status" db:"verification_status"`
	FlagReason            string     `json:"flag_reason" db:"flag_reason"`
	DoctorLicenseDetected string     `json:"doctor_license_detected" db:"doctor_license_detected"`
	VerifiedAt            *time.Time `json:"verified_at,omitempty" db:"verified_at"`
	OverriddenBy          *string    `json:"overridden_by,omitempty" db:"overridden_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ApplyOutcome copies a verification outcome onto the order
func (o *Order) ApplyOutcome(outcome rx.Outcome) {
	o.VerificationStatus = outcome.Verdict
	o.FlagReason = outcome.Reason
	o.DoctorLicenseDetected = outcome.DetectedLicense
}

// NeedsFollowUp reports whether staff should look at the order before fulfillment
func (o *Order) NeedsFollowUp() bool {
	return o.VerificationStatus == rx.VerdictBlocked || o.VerificationStatus == rx.VerdictError
}

// HasPrescription reports whether a prescription was accepted at checkout
func (o *Order) HasPrescription() bool {
	return o.PrescriptionRef != nil && *o.PrescriptionRef != ""
}

// MaxTotalAmount is the largest total the orders.total_amount NUMERIC(12, 2)
// column holds. Keep in sync with the validate tag below.
const MaxTotalAmount = 9999999999.99

// CreateOrderRequest is the form part of a checkout
type CreateOrderRequest struct {
	FullName      string        `json:"full_name" validate:"required,min=2,max=100"`
	Address       string        `json:"address" validate:"required,max=500"`
	Phone         string        `json:"phone" validate:"required,min=7,max=20"`
	PaymentMethod PaymentMethod `json:"payment_method" validate:"required,oneof=cod upi card"`
	TotalAmount   float64       `json:"total_amount" validate:"gt=0,lte=9999999999.99"`
}

// OverrideRequest replaces an order's verdict after staff review
type OverrideRequest struct {
	Verdict rx.Verdict `json:"verdict" validate:"required,oneof=Approved Flagged Blocked ManualReview"`
	Reason  string     `json:"reason" validate:"required,max=500"`
}

// ListFilter narrows order listings
type ListFilter struct {
	UserID string
	Status rx.Verdict
	Limit  int
	Offset int
}
