// Package pdf renders invoices into PDF documents. Rendering is a pure
// function of the stored invoice: the creation date is pinned to the issue
// date and only core fonts are used, so the same invoice always produces
// byte-identical output.
package pdf

import (
	"bytes"
	"fmt"
	"time"

	"billing-service/internal/models"

	"github.com/jung-kurt/gofpdf"
)

const dateLayout = "02.01.2006"

// Renderer builds invoice PDF documents.
type Renderer struct{}

// NewRenderer creates a new renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render produces the PDF for an invoice and its lines.
func (r *Renderer) Render(inv *models.Invoice, items []models.InvoiceItem) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(inv.IssueDate.UTC())
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, false)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	r.header(pdf, inv)
	r.parties(pdf, inv)
	r.dates(pdf, inv)
	r.itemTable(pdf, inv, items)
	r.summary(pdf, inv)
	r.paymentBlock(pdf, inv)

	if inv.Note != nil && *inv.Note != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(180, 5, *inv.Note, "", "L", false)
	}

	pdf.SetY(-25)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(180, 5, fmt.Sprintf("%s | ICO %s | DIC %s", inv.SellerName, inv.SellerICO, inv.SellerDIC), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) header(pdf *gofpdf.Fpdf, inv *models.Invoice) {
	pdf.SetFont("Helvetica", "B", 18)
	title := "INVOICE"
	if inv.Type == models.InvoiceTypeProforma {
		title = "PROFORMA INVOICE"
	}
	pdf.CellFormat(120, 10, title, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(60, 10, inv.InvoiceNumber, "", 1, "R", false, 0, "")

	if inv.Status == models.InvoiceStatusCancelled {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.SetTextColor(200, 0, 0)
		pdf.CellFormat(180, 6, "CANCELLED", "", 1, "R", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(4)
}

func (r *Renderer) parties(pdf *gofpdf.Fpdf, inv *models.Invoice) {
	top := pdf.GetY()

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 5, "Supplier", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	addressLines(pdf, 90,
		inv.SellerName,
		inv.SellerStreet,
		inv.SellerZIP+" "+inv.SellerCity,
		inv.SellerCountry,
		"ICO: "+inv.SellerICO,
		"DIC: "+inv.SellerDIC,
		"IC DPH: "+inv.SellerICDPH,
	)
	bottom := pdf.GetY()

	pdf.SetXY(105, top)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(90, 5, "Customer", "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	buyer := []string{
		inv.BuyerName,
		inv.BuyerStreet,
		inv.BuyerZIP + " " + inv.BuyerCity,
		inv.BuyerCountry,
	}
	if inv.BuyerICO != nil && *inv.BuyerICO != "" {
		buyer = append(buyer, "ICO: "+*inv.BuyerICO)
	}
	if inv.BuyerDIC != nil && *inv.BuyerDIC != "" {
		buyer = append(buyer, "DIC: "+*inv.BuyerDIC)
	}
	if inv.BuyerICDPH != nil && *inv.BuyerICDPH != "" {
		buyer = append(buyer, "IC DPH: "+*inv.BuyerICDPH)
	}
	for _, line := range buyer {
		pdf.SetX(105)
		pdf.CellFormat(90, 4.5, line, "", 2, "L", false, 0, "")
	}

	if y := pdf.GetY(); y > bottom {
		bottom = y
	}
	pdf.SetY(bottom + 6)
}

func addressLines(pdf *gofpdf.Fpdf, width float64, lines ...string) {
	for _, line := range lines {
		pdf.CellFormat(width, 4.5, line, "", 1, "L", false, 0, "")
	}
}

func (r *Renderer) dates(pdf *gofpdf.Fpdf, inv *models.Invoice) {
	pdf.SetFont("Helvetica", "", 9)
	dateRow(pdf, "Issue date", inv.IssueDate)
	dateRow(pdf, "Delivery date", inv.DeliveryDate)
	dateRow(pdf, "Due date", inv.DueDate)
	pdf.Ln(4)
}

func dateRow(pdf *gofpdf.Fpdf, label string, t time.Time) {
	pdf.CellFormat(40, 5, label+":", "", 0, "L", false, 0, "")
	pdf.CellFormat(50, 5, t.Format(dateLayout), "", 1, "L", false, 0, "")
}

func (r *Renderer) itemTable(pdf *gofpdf.Fpdf, inv *models.Invoice, items []models.InvoiceItem) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(235, 235, 235)
	pdf.CellFormat(72, 7, "Item", "1", 0, "L", true, 0, "")
	pdf.CellFormat(28, 7, "SKU", "1", 0, "L", true, 0, "")
	pdf.CellFormat(14, 7, "Qty", "1", 0, "R", true, 0, "")
	pdf.CellFormat(24, 7, "Unit excl.", "1", 0, "R", true, 0, "")
	pdf.CellFormat(16, 7, "VAT %", "1", 0, "R", true, 0, "")
	pdf.CellFormat(26, 7, "Total incl.", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, it := range items {
		pdf.CellFormat(72, 6, truncate(it.ProductName, 44), "1", 0, "L", false, 0, "")
		pdf.CellFormat(28, 6, truncate(it.ProductSKU, 16), "1", 0, "L", false, 0, "")
		pdf.CellFormat(14, 6, fmt.Sprintf("%d", it.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(24, 6, it.PriceWithoutVAT.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(16, 6, it.VATRate.StringFixed(0), "1", 0, "R", false, 0, "")
		pdf.CellFormat(26, 6, it.LineTotal.StringFixed(2), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

func (r *Renderer) summary(pdf *gofpdf.Fpdf, inv *models.Invoice) {
	summaryRow(pdf, "Subtotal (excl. VAT)", inv.Subtotal.StringFixed(2)+" "+inv.Currency, false)
	summaryRow(pdf, "VAT", inv.VATTotal.StringFixed(2)+" "+inv.Currency, false)
	summaryRow(pdf, "Shipping", inv.ShippingCost.StringFixed(2)+" "+inv.Currency, false)
	if inv.DiscountAmount.IsPositive() {
		summaryRow(pdf, "Discount", "-"+inv.DiscountAmount.StringFixed(2)+" "+inv.Currency, false)
	}
	summaryRow(pdf, "Total", inv.Total.StringFixed(2)+" "+inv.Currency, true)
	pdf.Ln(4)
}

func summaryRow(pdf *gofpdf.Fpdf, label, value string, bold bool) {
	style := ""
	if bold {
		style = "B"
	}
	pdf.SetFont("Helvetica", style, 10)
	pdf.CellFormat(130, 6, "", "", 0, "L", false, 0, "")
	pdf.CellFormat(28, 6, label, "", 0, "L", false, 0, "")
	pdf.CellFormat(22, 6, value, "", 1, "R", false, 0, "")
}

func (r *Renderer) paymentBlock(pdf *gofpdf.Fpdf, inv *models.Invoice) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(180, 6, "Payment", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	paymentRow(pdf, "Method", inv.PaymentMethod)
	paymentRow(pdf, "Variable symbol", inv.VariableSymbol)
	paymentRow(pdf, "Bank account", inv.SellerBankAccount)
	paymentRow(pdf, "Bank", inv.SellerBankName)
	if inv.PaidAt != nil {
		paymentRow(pdf, "Paid on", inv.PaidAt.Format(dateLayout))
	}
}

func paymentRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(40, 5, label+":", "", 0, "L", false, 0, "")
	pdf.CellFormat(140, 5, value, "", 1, "L", false, 0, "")
}

// truncate shortens s to max characters. It counts runes, not bytes, so
// names with diacritics are never cut mid-character.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
