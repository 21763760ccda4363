package license

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var today = time.Date(2026, time.March, 14, 15, 30, 0, 0, time.UTC)

func registry(records ...*domain.PrescriberRecord) Lookup {
	byID := make(map[string]*domain.PrescriberRecord, len(records))
	for _, r := range records {
		byID[r.LicenseID] = r
	}
	return LookupFunc(func(ctx context.Context, id string) (*domain.PrescriberRecord, error) {
		return byID[id], nil
	})
}

func prescriber(id string, status domain.PrescriberStatus, expiry time.Time) *domain.PrescriberRecord {
	return &domain.PrescriberRecord{LicenseID: id, Name: "Dr " + id, Status: status, ExpiryDate: expiry}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "PATIENT RX FROM REG-12345", Normalize([]string{"patient rx", "from", "reg-12345"}))
	assert.Equal(t, "", Normalize(nil))
	// engine order is kept
	assert.Equal(t, "B A", Normalize([]string{"b", "a"}))
}

func TestExtract(t *testing.T) {
	tests := []struct {
		text  string
		want  string
		found bool
	}{
		{"PATIENT RX FROM REG-12345 DR ARUN", "REG-12345", true},
		{"REG-11111 AND REG-22222", "REG-11111", true},
		{"REG-1234", "", false},
		{"REG 12345", "", false},
		{"REG-ABCDE", "", false},
		{"", "", false},
		{"XREG-54321Y", "REG-54321", true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := Extract(tt.text)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_DecisionTable(t *testing.T) {
	future := today.AddDate(1, 0, 0)
	past := today.AddDate(0, 0, -1)

	tests := []struct {
		name    string
		license string
		matched bool
		record  *domain.PrescriberRecord
		want    domain.Outcome
	}{
		{
			name: "no match",
			want: domain.Outcome{Verdict: domain.VerdictFlagged, Reason: "License number not found", DetectedLicense: "Unknown"},
		},
		{
			name:    "not in registry",
			license: "REG-00001",
			matched: true,
			want:    domain.Outcome{Verdict: domain.VerdictBlocked, Reason: "Prescriber not in registry", DetectedLicense: "REG-00001"},
		},
		{
			name:    "suspended",
			license: "REG-99999",
			matched: true,
			record:  prescriber("REG-99999", domain.PrescriberSuspended, future),
			want:    domain.Outcome{Verdict: domain.VerdictBlocked, Reason: "Prescriber is suspended", DetectedLicense: "REG-99999"},
		},
		{
			name:    "suspended and expired is blocked",
			license: "REG-99998",
			matched: true,
			record:  prescriber("REG-99998", domain.PrescriberSuspended, past),
			want:    domain.Outcome{Verdict: domain.VerdictBlocked, Reason: "Prescriber is suspended", DetectedLicense: "REG-99998"},
		},
		{
			name:    "expired",
			license: "REG-55555",
			matched: true,
			record:  prescriber("REG-55555", domain.PrescriberActive, past),
			want:    domain.Outcome{Verdict: domain.VerdictFlagged, Reason: "License expired", DetectedLicense: "REG-55555"},
		},
		{
			name:    "expires today is still valid",
			license: "REG-44444",
			matched: true,
			record:  prescriber("REG-44444", domain.PrescriberActive, time.Date(2026, time.March, 14, 0, 0, 0, 0, time.UTC)),
			want:    domain.Outcome{Verdict: domain.VerdictApproved, Reason: "Verified successfully", DetectedLicense: "REG-44444"},
		},
		{
			name:    "active and valid",
			license: "REG-12345",
			matched: true,
			record:  prescriber("REG-12345", domain.PrescriberActive, future),
			want:    domain.Outcome{Verdict: domain.VerdictApproved, Reason: "Verified successfully", DetectedLicense: "REG-12345"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.license, tt.matched, tt.record, today)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpired(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*3600+1800)
	// 2026-03-14 01:00 in UTC+5:30 is still 2026-03-13 in UTC
	localToday := time.Date(2026, time.March, 14, 1, 0, 0, 0, loc)
	expiry := time.Date(2026, time.March, 13, 0, 0, 0, 0, time.UTC)

	assert.True(t, Expired(expiry, localToday))
	assert.False(t, Expired(expiry, localToday.UTC()))
	assert.False(t, Expired(expiry.AddDate(0, 0, 1), localToday))
}

func TestDecide_Scenarios(t *testing.T) {
	reg := registry(
		prescriber("REG-12345", domain.PrescriberActive, today.AddDate(2, 0, 0)),
		prescriber("REG-99999", domain.PrescriberSuspended, today.AddDate(2, 0, 0)),
		prescriber("REG-55555", domain.PrescriberActive, today.AddDate(0, 0, -1)),
	)

	tests := []struct {
		name string
		text string
		want domain.Outcome
	}{
		{"A approved", "PATIENT RX FROM REG-12345 DR ARUN", domain.Outcome{Verdict: domain.VerdictApproved, Reason: "Verified successfully", DetectedLicense: "REG-12345"}},
		{"B no license", "NO LICENSE VISIBLE", domain.Outcome{Verdict: domain.VerdictFlagged, Reason: "License number not found", DetectedLicense: "Unknown"}},
		{"C suspended", "DR X REG-99999", domain.Outcome{Verdict: domain.VerdictBlocked, Reason: "Prescriber is suspended", DetectedLicense: "REG-99999"}},
		{"D expired", "REG-55555 AMOXICILLIN", domain.Outcome{Verdict: domain.VerdictFlagged, Reason: "License expired", DetectedLicense: "REG-55555"}},
		{"unknown prescriber", "REG-00000", domain.Outcome{Verdict: domain.VerdictBlocked, Reason: "Prescriber not in registry", DetectedLicense: "REG-00000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decide(context.Background(), tt.text, reg, today)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// identical input and registry state give an identical triple
			again, err := Decide(context.Background(), tt.text, reg, today)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestDecide_LookupFailureIsNoRecord(t *testing.T) {
	failing := LookupFunc(func(ctx context.Context, id string) (*domain.PrescriberRecord, error) {
		return nil, fmt.Errorf("connection refused")
	})

	got, err := Decide(context.Background(), "REG-12345", failing, today)
	assert.Error(t, err)
	assert.Equal(t, domain.VerdictBlocked, got.Verdict)
	assert.Equal(t, domain.ReasonNotInRegistry, got.Reason)
	assert.Equal(t, "REG-12345", got.DetectedLicense)
}

func TestDecide_NoMatchSkipsLookup(t *testing.T) {
	called := false
	lookup := LookupFunc(func(ctx context.Context, id string) (*domain.PrescriberRecord, error) {
		called = true
		return nil, nil
	})

	_, err := Decide(context.Background(), "NOTHING HERE", lookup, today)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("REG-12345"))
	assert.False(t, Valid("REG-1234"))
	assert.False(t, Valid("REG-123456"))
	assert.False(t, Valid("reg-12345"))
	assert.False(t, Valid(" REG-12345"))
}
