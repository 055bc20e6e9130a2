package voucher

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/booking"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/product"
	"github.com/sanosuguru/go-tour-slot-reservation/internal/domain/slot"
)

// ErrNotIssuable は確定前またはキャンセル済みの予約に対するバウチャー発行要求
var ErrNotIssuable = errors.New("確定済みまたは完了済みの予約のみバウチャーを発行できます")

const maxItemsPerPage = 12

// Renderer は予約バウチャーPDFを生成する
type Renderer struct {
	issuer string
}

// NewRenderer はフッターに issuer を表示する Renderer を作成する
func NewRenderer(issuer string) *Renderer {
	return &Renderer{issuer: issuer}
}

// Render は予約のバウチャーを1ページのPDFとして返す
// products は明細の商品IDから商品情報を引くためのもので、欠けていてもIDで代替する
func (r *Renderer) Render(b *booking.Booking, products map[string]*product.Product) ([]byte, error) {
	if b.Status != booking.StatusConfirmed && b.Status != booking.StatusCompleted {
		return nil, ErrNotIssuable
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.Cell(0, 15, "TOUR BOOKING VOUCHER")
	pdf.Ln(20)

	pdf.SetDrawColor(220, 220, 220)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(8)

	yStart := pdf.GetY()
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(15, yStart, 180, 42, "F")
	pdf.SetXY(20, yStart+6)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, "BOOKING SUMMARY")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Confirmation code: "+b.ConfirmationCode)
	pdf.Ln(6)
	pdf.Cell(0, 7, "Booking ID: "+b.ID)
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Status: %s / Payment: %s", b.Status, b.PaymentStatus))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Total: %d", b.TotalPrice))
	pdf.SetY(yStart + 50)

	sectionTitle(pdf, "TOURS")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(80, 8, "Tour", "B", 0, "L", false, 0, "")
	pdf.CellFormat(35, 8, "Date", "B", 0, "L", false, 0, "")
	pdf.CellFormat(25, 8, "Guests", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	for i, it := range b.Items {
		if i >= maxItemsPerPage {
			pdf.Cell(0, 8, fmt.Sprintf("... and %d more", len(b.Items)-maxItemsPerPage))
			pdf.Ln(8)
			break
		}
		name := it.ProductID
		if p, ok := products[it.ProductID]; ok && p.Name != "" {
			name = p.Name
		}
		pdf.CellFormat(80, 8, tr(name), "", 0, "L", false, 0, "")
		pdf.CellFormat(35, 8, slot.FormatDate(it.Date), "", 0, "L", false, 0, "")
		pdf.CellFormat(25, 8, fmt.Sprintf("%d", it.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 8, fmt.Sprintf("%d", it.Subtotal()), "", 1, "R", false, 0, "")
		if p, ok := products[it.ProductID]; ok && p.Location != "" {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 5, tr("   Meeting point: "+p.Location), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 11)
		}
	}
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.Cell(0, 6, "Present this voucher or the confirmation code at the meeting point.")

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(15, 285, 195, 285)
	pdf.SetY(288)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 8, tr(r.issuer), "", 0, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("バウチャー生成に失敗: %w", err)
	}
	return buf.Bytes(), nil
}

func sectionTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(0, 9, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
}
