// Package export renders paid invoices into the XML feed consumed by the
// external bookkeeping system. The feed carries document-level amounts only;
// line detail stays on the invoice document itself.
package export

import (
	"encoding/xml"
	"time"

	"billing-service/internal/models"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Document is the export envelope for one accounting period.
type Document struct {
	XMLName    xml.Name        `xml:"InvoiceExport"`
	PeriodFrom string          `xml:"PeriodFrom"`
	PeriodTo   string          `xml:"PeriodTo"`
	Count      int             `xml:"InvoiceCount"`
	Total      string          `xml:"TotalAmount"`
	Currency   string          `xml:"Currency,omitempty"`
	Invoices   []InvoiceRecord `xml:"Invoices>Invoice"`
}

// InvoiceRecord is one paid invoice in the feed.
type InvoiceRecord struct {
	Number         string `xml:"Number"`
	VariableSymbol string `xml:"VariableSymbol"`
	IssueDate      string `xml:"IssueDate"`
	DueDate        string `xml:"DueDate"`
	PaidAt         string `xml:"PaidAt,omitempty"`
	BuyerName      string `xml:"Buyer>Name"`
	BuyerICO       string `xml:"Buyer>ICO,omitempty"`
	BuyerDIC       string `xml:"Buyer>DIC,omitempty"`
	BuyerICDPH     string `xml:"Buyer>ICDPH,omitempty"`
	Subtotal       string `xml:"Amounts>Subtotal"`
	VATTotal       string `xml:"Amounts>VAT"`
	Shipping       string `xml:"Amounts>Shipping"`
	Discount       string `xml:"Amounts>Discount"`
	Total          string `xml:"Amounts>Total"`
	Currency       string `xml:"Amounts>Currency"`
}

// Marshal builds the export document for invoices issued inside [from, to].
func Marshal(from, to time.Time, invoices []models.Invoice) ([]byte, error) {
	doc := Document{
		PeriodFrom: from.Format(dateLayout),
		PeriodTo:   to.Format(dateLayout),
		Count:      len(invoices),
		Invoices:   make([]InvoiceRecord, 0, len(invoices)),
	}

	total := decimal.Zero
	for _, inv := range invoices {
		rec := InvoiceRecord{
			Number:         inv.InvoiceNumber,
			VariableSymbol: inv.VariableSymbol,
			IssueDate:      inv.IssueDate.Format(dateLayout),
			DueDate:        inv.DueDate.Format(dateLayout),
			BuyerName:      inv.BuyerName,
			Subtotal:       inv.Subtotal.StringFixed(2),
			VATTotal:       inv.VATTotal.StringFixed(2),
			Shipping:       inv.ShippingCost.StringFixed(2),
			Discount:       inv.DiscountAmount.StringFixed(2),
			Total:          inv.Total.StringFixed(2),
			Currency:       inv.Currency,
		}
		if inv.PaidAt != nil {
			rec.PaidAt = inv.PaidAt.Format(dateLayout)
		}
		if inv.BuyerICO != nil {
			rec.BuyerICO = *inv.BuyerICO
		}
		if inv.BuyerDIC != nil {
			rec.BuyerDIC = *inv.BuyerDIC
		}
		if inv.BuyerICDPH != nil {
			rec.BuyerICDPH = *inv.BuyerICDPH
		}

		total = total.Add(inv.Total)
		if doc.Currency == "" {
			doc.Currency = inv.Currency
		}
		doc.Invoices = append(doc.Invoices, rec)
	}
	doc.Total = total.StringFixed(2)

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
