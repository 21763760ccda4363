package invoice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rx "github.com/nanba/pharmacy-backend/internal/prescription/domain"
	"github.com/nanba/pharmacy-backend/internal/prescription/ocr"
	"github.com/nanba/pharmacy-backend/pkg/testutil"
)

func TestNumber(t *testing.T) {
	o := testutil.NewFixtureFactory().Order()
	o.ID = "5f2b8c1e-3d4a-4b6c-8e9f-0a1b2c3d4e5f"

	assert.Equal(t, "INV-5F2B8C1E", Number(o))
	assert.Equal(t, "invoice_5f2b8c1e-3d4a-4b6c-8e9f-0a1b2c3d4e5f.pdf", Filename(o))
}

func TestRender(t *testing.T) {
	o := testutil.NewFixtureFactory().Order(testutil.WithOutcome(rx.Outcome{
		Verdict: rx.VerdictApproved, Reason: rx.ReasonVerified, DetectedLicense: "REG-12345",
	}))
	o.FullName = "José Kurian"
	o.TotalAmount = 1299

	data, err := Render(o, time.Date(2026, time.March, 14, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "%PDF-"))

	fragments, err := ocr.NewPDFTextEngine().Extract(context.Background(), data, "pdf")
	require.NoError(t, err)
	text := strings.Join(fragments, " ")

	assert.Contains(t, text, "NANBA ONLINE PHARMACY")
	assert.Contains(t, text, Number(o))
	assert.Contains(t, text, "Rs. 1299.00")
	assert.Contains(t, text, "Approved")
	assert.Contains(t, text, "14 Mar 2026")
}
