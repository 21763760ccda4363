package domain

import (
	"encoding/json"
	"time"
)

// DateLayout is the wire format for calendar dates such as expiry_date
const DateLayout = "2006-01-02"

// PrescriberStatus is the registry standing of a prescriber
type PrescriberStatus string

const (
	PrescriberActive    PrescriberStatus = "Active"
	PrescriberSuspended PrescriberStatus = "Suspended"
)

// Valid reports whether s is a known status
func (s PrescriberStatus) Valid() bool {
	return s == PrescriberActive || s == PrescriberSuspended
}

// PrescriberRecord is one licensed prescriber known to the registry
type PrescriberRecord struct {
	LicenseID  string           `json:"license_id" db:"license_id"`
	Name       string           `json:"name" db:"name"`
	Status     PrescriberStatus `json:"status" db:"status"`
	ExpiryDate time.Time        `json:"-" db:"expiry_date"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

// MarshalJSON renders expiry_date as a calendar date
func (p PrescriberRecord) MarshalJSON() ([]byte, error) {
	type alias PrescriberRecord
	return json.Marshal(struct {
		alias
		ExpiryDate string `json:"expiry_date"`
	}{alias(p), p.ExpiryDate.Format(DateLayout)})
}

// UpsertPrescriberRequest is the admin payload for creating or replacing a
// registry entry. The license id comes from the path.
type UpsertPrescriberRequest struct {
	Name       string           `json:"name" validate:"required,min=2,max=255"`
	Status     PrescriberStatus `json:"status" validate:"required,oneof=Active Suspended"`
	ExpiryDate string           `json:"expiry_date" validate:"required,datetime=2006-01-02"`
}

// Record builds the registry entry for licenseID. ExpiryDate must already be
// validated.
func (r UpsertPrescriberRequest) Record(licenseID string) (*PrescriberRecord, error) {
	expiry, err := time.Parse(DateLayout, r.ExpiryDate)
	if err != nil {
		return nil, err
	}
	return &PrescriberRecord{
		LicenseID:  licenseID,
		Name:       r.Name,
		Status:     r.Status,
		ExpiryDate: expiry,
	}, nil
}

// Verdict is the trust judgment attached to an order
type Verdict string

const (
	// VerdictPending means no prescription was supplied and nothing was checked
	VerdictPending      Verdict = "Pending"
	VerdictApproved     Verdict = "Approved"
	VerdictFlagged      Verdict = "Flagged"
	VerdictBlocked      Verdict = "Blocked"
	VerdictManualReview Verdict = "ManualReview"
	VerdictError        Verdict = "Error"
)

var verdicts = map[Verdict]struct{}{
	VerdictPending:      {},
	VerdictApproved:     {},
	VerdictFlagged:      {},
	VerdictBlocked:      {},
	VerdictManualReview: {},
	VerdictError:        {},
}

// Valid reports whether v is a known verdict
func (v Verdict) Valid() bool {
	_, ok := verdicts[v]
	return ok
}

// Sentinels stored in place of a detected license
const (
	LicenseUnknown = "Unknown"
	LicenseError   = "Error"
)

// Reasons produced by the pipeline
const (
	ReasonNoPrescription  = "No prescription supplied"
	ReasonLicenseNotFound = "License number not found"
	ReasonNotInRegistry   = "Prescriber not in registry"
	ReasonSuspended       = "Prescriber is suspended"
	ReasonExpired         = "License expired"
	ReasonVerified        = "Verified successfully"
)

// Outcome is the triple written onto an order
type Outcome struct {
	Verdict         Verdict `json:"verdict"`
	Reason          string  `json:"reason"`
	DetectedLicense string  `json:"detected_license"`
}

// NoPrescription is the outcome for checkouts without an accepted upload
func NoPrescription() Outcome {
	return Outcome{
		Verdict:         VerdictPending,
		Reason:          ReasonNoPrescription,
		DetectedLicense: LicenseUnknown,
	}
}

// Failed converts an extraction fault into an Error outcome. The reason is
// the fault's message verbatim.
func Failed(err error) Outcome {
	reason := "text extraction failed"
	if err != nil && err.Error() != "" {
		reason = err.Error()
	}
	return Outcome{
		Verdict:         VerdictError,
		Reason:          reason,
		DetectedLicense: LicenseError,
	}
}

// Attempt is one run of the verification pipeline against one upload.
// It is not persisted; its Outcome is folded into the order.
type Attempt struct {
	SourceRef     string `json:"source_ref"`
	ExtractedText string `json:"extracted_text"`
	Engine        string `json:"engine,omitempty"`
	Outcome
	VerifiedAt time.Time `json:"verified_at"`
}
