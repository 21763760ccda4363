package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	orderdomain "github.com/nanba/pharmacy-backend/internal/order/domain"
	rx "github.com/nanba/pharmacy-backend/internal/prescription/domain"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	counter int
	now     time.Time
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{
		now: time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC),
	}
}

// Now is the reference instant fixtures are built around
func (f *FixtureFactory) Now() time.Time {
	return f.now
}

func (f *FixtureFactory) next() int {
	f.counter++
	return f.counter
}

// PrescriberOption customizes a prescriber fixture
type PrescriberOption func(*rx.PrescriberRecord)

// WithLicenseID sets the license number
func WithLicenseID(id string) PrescriberOption {
	return func(p *rx.PrescriberRecord) { p.LicenseID = id }
}

// Suspended marks the prescriber suspended
func Suspended() PrescriberOption {
	return func(p *rx.PrescriberRecord) { p.Status = rx.PrescriberSuspended }
}

// ExpiresOn sets the license expiry date
func ExpiresOn(d time.Time) PrescriberOption {
	return func(p *rx.PrescriberRecord) { p.ExpiryDate = d }
}

// Prescriber creates an active prescriber whose license is valid for a year
func (f *FixtureFactory) Prescriber(opts ...PrescriberOption) *rx.PrescriberRecord {
	n := f.next()
	p := &rx.PrescriberRecord{
		LicenseID:  fmt.Sprintf("REG-%05d", 10000+n),
		Name:       fmt.Sprintf("Dr Test %d", n),
		Status:     rx.PrescriberActive,
		ExpiryDate: time.Date(f.now.Year()+1, f.now.Month(), f.now.Day(), 0, 0, 0, 0, time.UTC),
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OrderOption customizes an order fixture
type OrderOption func(*orderdomain.Order)

// OwnedBy sets the order's user
func OwnedBy(userID string) OrderOption {
	return func(o *orderdomain.Order) { o.UserID = userID }
}

// WithOutcome applies a verification outcome and a prescription reference
func WithOutcome(outcome rx.Outcome) OrderOption {
	return func(o *orderdomain.Order) {
		o.ApplyOutcome(outcome)
		if outcome.Verdict != rx.VerdictPending {
			ref := fmt.Sprintf("prescriptions/ab/%064d.png", 0)
			o.PrescriptionRef = &ref
			at := o.CreatedAt
			o.VerifiedAt = &at
		}
	}
}

// Order creates a cash-on-delivery order without a prescription
func (f *FixtureFactory) Order(opts ...OrderOption) *orderdomain.Order {
	n := f.next()
	o := &orderdomain.Order{
		ID:            uuid.NewString(),
		UserID:        uuid.NewString(),
		FullName:      fmt.Sprintf("Customer %d", n),
		Address:       fmt.Sprintf("%d Anna Salai, Chennai", n),
		Phone:         "+919800000000",
		PaymentMethod: orderdomain.PaymentCOD,
		TotalAmount:   145.50,
		CreatedAt:     f.now,
		UpdatedAt:     f.now,
	}
	o.ApplyOutcome(rx.NoPrescription())
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Permission sets for request contexts
var (
	CustomerPerms   = []string{"orders.create", "orders.read"}
	PharmacistPerms = []string{"orders.*", "prescribers.*", "prescriptions.verify"}
)
