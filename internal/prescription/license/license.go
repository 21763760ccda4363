// Package license turns OCR text into a verification outcome: it normalizes
// engine fragments, finds the prescriber license number and applies the
// registry decision table.
package license

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
)

// Pattern is the license number format: "REG-" followed by five digits.
var Pattern = regexp.MustCompile(`REG-\d{5}`)

var exact = regexp.MustCompile(`^REG-\d{5}$`)

// Valid reports whether id is exactly one license number
func Valid(id string) bool {
	return exact.MatchString(id)
}

// Lookup resolves a license number against the prescriber registry.
// It returns (nil, nil) when no record exists.
type Lookup interface {
	FindByLicenseID(ctx context.Context, licenseID string) (*domain.PrescriberRecord, error)
}

// LookupFunc adapts a function to Lookup
type LookupFunc func(ctx context.Context, licenseID string) (*domain.PrescriberRecord, error)

func (f LookupFunc) FindByLicenseID(ctx context.Context, licenseID string) (*domain.PrescriberRecord, error) {
	return f(ctx, licenseID)
}

// Normalize joins fragments in engine order with a single space and
// upper-cases the result.
func Normalize(fragments []string) string {
	return strings.ToUpper(strings.Join(fragments, " "))
}

// Extract returns the first license number in text
func Extract(text string) (string, bool) {
	match := Pattern.FindString(text)
	return match, match != ""
}

// Evaluate applies the decision table to an extracted license and its
// registry record (nil if absent). Rules are checked in order:
// no match, unknown prescriber, suspended, expired, approved.
//
// today is compared by calendar date; a license expiring today is valid.
func Evaluate(license string, matched bool, record *domain.PrescriberRecord, today time.Time) domain.Outcome {
	switch {
	case !matched:
		return domain.Outcome{
			Verdict:         domain.VerdictFlagged,
			Reason:          domain.ReasonLicenseNotFound,
			DetectedLicense: domain.LicenseUnknown,
		}
	case record == nil:
		return domain.Outcome{
			Verdict:         domain.VerdictBlocked,
			Reason:          domain.ReasonNotInRegistry,
			DetectedLicense: license,
		}
	case record.Status == domain.PrescriberSuspended:
		return domain.Outcome{
			Verdict:         domain.VerdictBlocked,
			Reason:          domain.ReasonSuspended,
			DetectedLicense: license,
		}
	case Expired(record.ExpiryDate, today):
		return domain.Outcome{
			Verdict:         domain.VerdictFlagged,
			Reason:          domain.ReasonExpired,
			DetectedLicense: license,
		}
	default:
		return domain.Outcome{
			Verdict:         domain.VerdictApproved,
			Reason:          domain.ReasonVerified,
			DetectedLicense: license,
		}
	}
}

// Expired reports whether expiry falls on a calendar date strictly before
// today. Each value is read in its own location.
func Expired(expiry, today time.Time) bool {
	ey, em, ed := expiry.Date()
	ty, tm, td := today.Date()
	return time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC).
		Before(time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC))
}

// Decide runs extraction, registry lookup and evaluation over normalized
// text. A lookup failure is treated as "no record" and returned alongside
// the outcome so the caller can log it.
func Decide(ctx context.Context, text string, lookup Lookup, today time.Time) (domain.Outcome, error) {
	match, ok := Extract(text)
	if !ok {
		return Evaluate("", false, nil, today), nil
	}

	record, err := lookup.FindByLicenseID(ctx, match)
	if err != nil {
		return Evaluate(match, true, nil, today), err
	}

	return Evaluate(match, true, record, today), nil
}
