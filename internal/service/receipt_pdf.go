package service

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jung-kurt/gofpdf"

	"swiftpay/internal/domain"
)

// ReceiptService renders withdrawal receipts as printable PDF documents.
type ReceiptService struct{}

// NewReceiptService creates a new ReceiptService.
func NewReceiptService() *ReceiptService {
	return &ReceiptService{}
}

// A4 layout in millimeters.
const (
	pageWidth  = 210.0
	pageMargin = 14.0
)

type rgb struct{ r, g, b int }

var (
	colorPrimary   = rgb{34, 90, 172}
	colorGreen     = rgb{16, 185, 129}
	colorRed       = rgb{239, 68, 68}
	colorAmber     = rgb{245, 158, 11}
	colorInk       = rgb{17, 24, 39}
	colorMutedInk  = rgb{107, 114, 128}
	colorHairline  = rgb{229, 231, 235}
	colorFaintGray = rgb{243, 244, 246}
	colorSlate     = rgb{71, 85, 105}
	colorFooter    = rgb{156, 163, 175}
)

// statusStyle maps a receipt status to its banner text and color.
// "loan_released" appears on historical records only; the withdrawal flow
// never assigns it.
func statusStyle(status domain.Status) (string, rgb) {
	switch status {
	case domain.StatusProcessing:
		return "PROCESSING", colorGreen
	case domain.StatusPending:
		return "PENDING", colorAmber
	case domain.StatusCancelled, domain.StatusError, domain.StatusSTKFailed:
		return "FAILED", colorRed
	case domain.Status("loan_released"):
		return "DISBURSED", colorGreen
	}
	return "COMPLETED", colorGreen
}

// RenderPDF writes the receipt document to w.
func (s *ReceiptService) RenderPDF(receipt *domain.Receipt, w io.Writer) error {
	statusText, statusColor := statusStyle(receipt.Status)
	contentWidth := pageWidth - 2*pageMargin

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	// Header band.
	pdf.SetFillColor(colorPrimary.r, colorPrimary.g, colorPrimary.b)
	pdf.Rect(0, 0, pageWidth, 48, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.SetXY(pageMargin, 9)
	pdf.CellFormat(contentWidth, 10, "SWIFTLOAN KENYA", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetX(pageMargin)
	pdf.CellFormat(contentWidth, 7, "Official Loan Withdrawal Receipt", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetX(pageMargin)
	pdf.CellFormat(contentWidth, 6, "Regulated by Central Bank of Kenya  |  CHASE BANK Partner", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetX(pageMargin)
	pdf.CellFormat(contentWidth, 7, "Account: STNYGP", "", 1, "C", false, 0, "")

	// Status banner.
	y := 55.0
	pdf.SetFillColor(statusColor.r, statusColor.g, statusColor.b)
	pdf.RoundedRect(pageMargin, y, contentWidth, 16, 2.5, "1234", "F")
	pdf.SetFont("Helvetica", "B", 17)
	pdf.SetXY(pageMargin, y+4)
	pdf.CellFormat(contentWidth, 8, statusText, "", 1, "C", false, 0, "")

	// Transaction details.
	y += 24
	detailsHeight := 78.0
	pdf.SetDrawColor(colorHairline.r, colorHairline.g, colorHairline.b)
	pdf.RoundedRect(pageMargin, y, contentWidth, detailsHeight, 2, "1234", "D")
	pdf.SetTextColor(colorPrimary.r, colorPrimary.g, colorPrimary.b)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(pageMargin+5, y+4)
	pdf.CellFormat(contentWidth-10, 7, "TRANSACTION DETAILS", "", 1, "L", false, 0, "")
	pdf.Line(pageMargin+5, y+12, pageMargin+contentWidth-5, y+12)

	details := [][2]string{
		{"Account Number", "STNYGP"},
		{"Reference Number", orDefault(receipt.Reference, "N/A")},
		{"Transaction ID", orDefault(receipt.TransactionID, "N/A")},
		{"M-Pesa Receipt", orDefault(receipt.TransactionCode, "Pending")},
		{"Processing Fee", "KES " + formatKES(receipt.Amount)},
		{"Loan Amount", "KES " + formatKESString(receipt.LoanAmount)},
		{"Phone Number", orDefault(receipt.Phone, "N/A")},
		{"Customer Name", orDefault(receipt.CustomerName, "N/A")},
	}

	rowY := y + 15
	for _, row := range details {
		pdf.SetTextColor(colorMutedInk.r, colorMutedInk.g, colorMutedInk.b)
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetXY(pageMargin+6, rowY)
		pdf.CellFormat(55, 6, row[0], "", 0, "L", false, 0, "")
		pdf.SetTextColor(colorInk.r, colorInk.g, colorInk.b)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentWidth-67, 6, row[1], "", 1, "L", false, 0, "")
		rowY += 7.5
	}

	// Date box.
	y += detailsHeight + 7
	pdf.SetFillColor(colorFaintGray.r, colorFaintGray.g, colorFaintGray.b)
	pdf.RoundedRect(pageMargin, y, contentWidth, 18, 2, "1234", "F")
	pdf.SetTextColor(colorMutedInk.r, colorMutedInk.g, colorMutedInk.b)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(pageMargin+6, y+3)
	pdf.CellFormat(contentWidth-12, 5, "Date & Time", "", 1, "L", false, 0, "")
	pdf.SetTextColor(colorInk.r, colorInk.g, colorInk.b)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetX(pageMargin + 6)
	pdf.CellFormat(contentWidth-12, 6, receipt.Timestamp.Format("Monday, 02 January 2006 15:04:05"), "", 1, "L", false, 0, "")

	// Status note.
	y += 25
	if receipt.StatusNote != "" {
		bg, border, text := rgb{240, 253, 244}, rgb{134, 239, 172}, rgb{22, 101, 52}
		switch receipt.Status {
		case domain.StatusCancelled, domain.StatusError, domain.StatusSTKFailed:
			bg, border, text = rgb{254, 242, 242}, rgb{252, 165, 165}, rgb{153, 27, 27}
		case domain.StatusPending:
			bg, border, text = rgb{255, 251, 235}, rgb{252, 211, 77}, rgb{146, 64, 14}
		}

		noteHeight := 28.0
		pdf.SetFillColor(bg.r, bg.g, bg.b)
		pdf.SetDrawColor(border.r, border.g, border.b)
		pdf.RoundedRect(pageMargin, y, contentWidth, noteHeight, 2, "1234", "FD")
		pdf.SetTextColor(text.r, text.g, text.b)
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetXY(pageMargin+5, y+3)
		pdf.CellFormat(contentWidth-10, 5, "STATUS NOTE", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetXY(pageMargin+5, y+9)
		pdf.MultiCell(contentWidth-10, 3.8, receipt.StatusNote, "", "L", false)

		y += noteHeight + 7
	}

	// Retry banner for failed withdrawals.
	if receipt.Status.Retryable() {
		pdf.SetFillColor(colorPrimary.r, colorPrimary.g, colorPrimary.b)
		pdf.RoundedRect(pageMargin, y, contentWidth, 16, 2, "1234", "F")
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetXY(pageMargin, y+2.5)
		pdf.CellFormat(contentWidth, 6, "RETRY AVAILABLE", "", 1, "C", false, 0, "")
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetX(pageMargin)
		pdf.CellFormat(contentWidth, 5, "Visit our app to retry this withdrawal", "", 1, "C", false, 0, "")
		y += 22
	}

	// Important information.
	infoHeight := 30.0
	pdf.SetFillColor(248, 250, 252)
	pdf.SetDrawColor(203, 213, 225)
	pdf.RoundedRect(pageMargin, y, contentWidth, infoHeight, 2, "1234", "FD")
	pdf.SetTextColor(colorPrimary.r, colorPrimary.g, colorPrimary.b)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(pageMargin+5, y+3)
	pdf.CellFormat(contentWidth-10, 6, "IMPORTANT INFORMATION", "", 1, "L", false, 0, "")
	pdf.SetTextColor(colorSlate.r, colorSlate.g, colorSlate.b)
	pdf.SetFont("Helvetica", "", 7.5)
	infoLines := []string{
		"- Your loan account number: STNYGP (CHASE BANK)",
		"- Loan disbursement will be processed within 24 hours after fee confirmation",
		"- For any queries, contact support via the chat button or call +254 700 000 000",
		"- Keep this receipt for your records - Reference: " + receipt.Reference,
	}
	lineY := y + 10
	for _, line := range infoLines {
		pdf.SetXY(pageMargin+5, lineY)
		pdf.CellFormat(contentWidth-10, 4, line, "", 1, "L", false, 0, "")
		lineY += 4.5
	}

	// Footer.
	footerY := 272.0
	pdf.SetDrawColor(colorHairline.r, colorHairline.g, colorHairline.b)
	pdf.Line(pageMargin, footerY, pageWidth-pageMargin, footerY)
	pdf.SetTextColor(colorFooter.r, colorFooter.g, colorFooter.b)
	pdf.SetFont("Helvetica", "", 7.5)
	pdf.SetXY(pageMargin, footerY+4)
	pdf.CellFormat(contentWidth, 4, "SwiftLoan Kenya  |  Licensed by Central Bank of Kenya", "", 1, "C", false, 0, "")
	pdf.SetX(pageMargin)
	pdf.CellFormat(contentWidth, 4, "For support: support@swiftloan.ke  |  +254 700 000 000", "", 1, "C", false, 0, "")
	pdf.SetX(pageMargin)
	pdf.CellFormat(contentWidth, 4, fmt.Sprintf("(c) %d SwiftLoan Kenya. All rights reserved.", receipt.Timestamp.Year()), "", 1, "C", false, 0, "")

	// Rotated status watermark.
	pdf.SetAlpha(0.08, "Normal")
	pdf.SetTextColor(statusColor.r, statusColor.g, statusColor.b)
	pdf.SetFont("Helvetica", "B", 72)
	pdf.TransformBegin()
	pdf.TransformRotate(35, pageWidth/2, 148)
	pdf.SetXY(0, 134)
	pdf.CellFormat(pageWidth, 28, statusText, "", 0, "C", false, 0, "")
	pdf.TransformEnd()
	pdf.SetAlpha(1, "Normal")

	return pdf.Output(w)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// formatKESString formats numeric loan amounts; free-form values pass through.
func formatKESString(s string) string {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return formatKES(n)
	}
	return s
}

// formatKES renders an amount with thousands separators, e.g. 50000 -> 50,000.
func formatKES(amount int64) string {
	s := strconv.FormatInt(amount, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		return "-" + s
	}
	return s
}
