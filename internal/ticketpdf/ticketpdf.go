// Package ticketpdf renders the e-ticket PDF attached to delivery
// emails: order summary plus the check-in QR code.
package ticketpdf

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// Ticket is everything printed on the PDF.  It is deliberately a
// plain value type so callers in any layer can build one without
// dragging their own types into this package.
type Ticket struct {
	EventName   string
	Venue       string
	StartsAt    string
	OrderNumber string
	BuyerName   string
	Quantity    uint32
	TierName    string
	TotalCents  uint32
}

// Render produces a single-page A4 ticket.  qrPNG is the
// already-rendered credential QR image.
func Render(t Ticket, qrPNG []byte) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 12, t.EventName, "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, t.Venue, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 8, t.StartsAt, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(40, 8, "Order", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, t.OrderNumber, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(40, 8, "Name", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, t.BuyerName, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(40, 8, "Tickets", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("%d x %s", t.Quantity, t.TierName), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(40, 8, "Total", "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("%d.%02d", t.TotalCents/100, t.TotalCents%100), "", 1, "L", false, 0, "")
	pdf.Ln(8)

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("credential-qr", opts, bytes.NewReader(qrPNG))
	// Centered 60mm QR block; A4 is 210mm wide.
	pdf.ImageOptions("credential-qr", 75, pdf.GetY(), 60, 60, false, opts, 0, "")
	pdf.SetY(pdf.GetY() + 64)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 6, "Present this QR code at the entrance. Valid for one check-in only.", "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
