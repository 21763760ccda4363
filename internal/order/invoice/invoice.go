// Package invoice renders order invoices as PDF documents.
package invoice

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/nanba/pharmacy-backend/internal/order/domain"
)

const (
	storeName = "NANBA ONLINE PHARMACY"
	lineItem  = "Medicines (Prescription Based Order)"
	thanks    = "Thank you for choosing Nanba Pharmacy! Get well soon."
)

// Number is the human-facing invoice number for an order
func Number(o *domain.Order) string {
	id := strings.ReplaceAll(o.ID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "INV-" + strings.ToUpper(id)
}

// Filename is the download name for an order's invoice
func Filename(o *domain.Order) string {
	return fmt.Sprintf("invoice_%s.pdf", o.ID)
}

func amount(v float64) string {
	return fmt.Sprintf("Rs. %.2f", v)
}

// Render produces the invoice for o dated issuedAt
func Render(o *domain.Order, issuedAt time.Time) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(Number(o), true)
	doc.SetCreator(storeName, true)
	doc.AddPage()

	// Core fonts are cp1252; names and addresses arrive as UTF-8
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Arial", "B", 20)
	doc.CellFormat(190, 10, storeName, "", 1, "C", false, 0, "")
	doc.SetFont("Arial", "", 12)
	doc.CellFormat(190, 10, "Official Medical Invoice", "", 1, "C", false, 0, "")
	doc.Ln(10)

	doc.SetFont("Arial", "B", 12)
	doc.CellFormat(100, 10, "Invoice ID: #"+Number(o), "", 0, "L", false, 0, "")
	doc.CellFormat(90, 10, "Date: "+issuedAt.Format("02 Jan 2006"), "", 1, "R", false, 0, "")
	doc.Ln(5)

	doc.SetFont("Arial", "", 12)
	doc.CellFormat(190, 7, tr("Customer Name: "+o.FullName), "", 1, "L", false, 0, "")
	doc.CellFormat(190, 7, tr("Phone: "+o.Phone), "", 1, "L", false, 0, "")
	doc.MultiCell(0, 7, tr("Address: "+o.Address), "", "L", false)
	doc.CellFormat(190, 7, "Payment: "+strings.ToUpper(string(o.PaymentMethod)), "", 1, "L", false, 0, "")
	doc.Ln(8)

	doc.SetFillColor(200, 220, 255)
	doc.SetFont("Arial", "B", 12)
	doc.CellFormat(130, 10, "Description", "1", 0, "L", true, 0, "")
	doc.CellFormat(60, 10, "Amount", "1", 1, "C", true, 0, "")

	doc.SetFont("Arial", "", 12)
	doc.CellFormat(130, 10, lineItem, "1", 0, "L", false, 0, "")
	doc.CellFormat(60, 10, amount(o.TotalAmount), "1", 1, "C", false, 0, "")

	doc.Ln(5)
	doc.SetFont("Arial", "B", 14)
	doc.CellFormat(130, 10, "Total Amount Paid:", "", 0, "R", false, 0, "")
	doc.CellFormat(60, 10, amount(o.TotalAmount), "", 1, "C", false, 0, "")

	doc.Ln(6)
	doc.SetFont("Arial", "", 10)
	doc.CellFormat(190, 6, tr(fmt.Sprintf("Prescription check: %s (%s)", o.VerificationStatus, o.FlagReason)),
		"", 1, "L", false, 0, "")

	doc.Ln(14)
	doc.SetFont("Arial", "I", 10)
	doc.CellFormat(190, 10, thanks, "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice: %w", err)
	}
	return buf.Bytes(), nil
}
