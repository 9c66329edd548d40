package document

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/money"
	"github.com/odyssey-erp/invoicer/internal/payment"
	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
	"github.com/odyssey-erp/invoicer/internal/settings"
	"github.com/odyssey-erp/invoicer/internal/words"
)

// RenderError reports an invoice that cannot be turned into a document.
type RenderError struct {
	Reason string
}

func (e *RenderError) Error() string {
	return "document: cannot render invoice: " + e.Reason
}

// Unwrap maps to the shared unprocessable sentinel.
func (e *RenderError) Unwrap() error { return httpx.ErrUnprocessable }

const (
	noNumberCaption = "Invoice number not available yet."
	linkCaption     = "View Invoice Online"
	signedDefault   = "Signed by client"
	unsignedDefault = "Authorized Signature"
	noItemsText     = "No items"
)

var columns = []string{"Description", "Qty", "Unit Price", "Total"}

// Renderer resolves invoices into document trees.
type Renderer struct {
	settings settings.Source
	baseURL  string
}

// NewRenderer constructs a Renderer. baseURL prefixes payment links.
func NewRenderer(src settings.Source, baseURL string) *Renderer {
	return &Renderer{settings: src, baseURL: baseURL}
}

// Render builds the tree for rec. Records with an unknown status or a
// non-finite amount are rejected before anything is built.
func (r *Renderer) Render(rec *invoice.Record) (*Tree, error) {
	if err := check(rec); err != nil {
		return nil, err
	}
	company := r.settings.Current()
	status := rec.Status
	if status == "" {
		status = invoice.StatusDue
	}
	totals := rec.Totals(company)
	currency := company.Currency

	// Unsaved drafts have no invoice date yet.
	invoiceDate := orPlaceholder(rec.Timeline.InvoiceDate.String())

	tree := &Tree{
		Header: Header{
			Logo:        company.Logo,
			CompanyName: company.CompanyName,
			Email:       company.CompanyEmail,
			Phone:       company.CompanyPhone,
			Website:     company.Website,
		},
		Meta: Meta{Number: rec.InvoiceNumber, InvoiceDate: invoiceDate},
		Client: Client{
			Name:    rec.ClientName,
			Email:   rec.ClientEmail,
			Address: rec.ClientAddress,
		},
		Items:         buildTable(rec.Items, totals, currency),
		TotalInWords:  words.Phrase(totals.Total),
		Notes:         strings.TrimSpace(rec.Notes),
		PaymentStatus: StatusLabel{Label: string(status), Badge: status.Badge()},
		Payment: PaymentDetails{
			Options:      rec.PaymentOptionsOr(company),
			Reference:    rec.PaymentReferenceOr(),
			Instructions: rec.PaymentInstructionsOr(company),
		},
		Bank: Bank{
			Name:       company.BankDetails.Bank,
			AccountNo:  company.BankDetails.AccountNo,
			BranchCode: company.BankDetails.BranchCode,
		},
		Timeline: []TimelineEntry{
			{Label: "Quote", Value: orPlaceholder(rec.Timeline.QuoteDate.String())},
			{Label: "Invoice", Value: invoiceDate},
			{Label: "Payment", Value: orPlaceholder(rec.Timeline.PaymentDate.String())},
		},
		PaymentLink: r.paymentLink(rec.InvoiceNumber),
		Terms:       rec.TermsOr(company),
		Slogan:      company.Slogan,
		Signature:   signature(rec),
		Amounts:     totals,
		Currency:    currency,
		SavedAt:     rec.SavedAt,
	}
	return tree, nil
}

func check(rec *invoice.Record) error {
	if rec == nil {
		return &RenderError{Reason: "no invoice"}
	}
	if rec.Status != "" && !rec.Status.Valid() {
		return &RenderError{Reason: fmt.Sprintf("unknown status %q", rec.Status)}
	}
	for i, item := range rec.Items {
		if !finite(item.Quantity) || !finite(item.UnitPrice) {
			return &RenderError{Reason: fmt.Sprintf("item %d has a non-numeric amount", i+1)}
		}
	}
	return nil
}

func buildTable(items []invoice.LineItem, totals money.Breakdown, currency string) Table {
	table := Table{Columns: columns, Rows: make([]Row, 0, len(items))}
	for _, item := range items {
		line := money.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
		table.Rows = append(table.Rows, Row{
			Description: item.Description,
			Quantity:    strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			UnitPrice:   money.WithSymbol(currency, item.UnitPrice),
			Total:       money.WithSymbol(currency, money.LineTotal(line)),
		})
	}
	if len(table.Rows) == 0 {
		table.EmptyText = noItemsText
	}
	table.Summary = append(table.Summary, SummaryRow{Label: "Subtotal", Amount: money.WithSymbol(currency, totals.Subtotal)})
	if totals.IncludeVAT {
		table.Summary = append(table.Summary, SummaryRow{
			Label:  fmt.Sprintf("VAT (%d%%)", int(math.Round(money.VATRate*100))),
			Amount: money.WithSymbol(currency, totals.VAT),
		})
	}
	table.Summary = append(table.Summary, SummaryRow{Label: "Total", Amount: money.WithSymbol(currency, totals.Total), Emphasis: true})
	return table
}

func (r *Renderer) paymentLink(number string) PaymentLink {
	if strings.TrimSpace(number) == "" {
		return PaymentLink{Caption: noNumberCaption}
	}
	return PaymentLink{URL: payment.URL(number, r.baseURL), Caption: linkCaption}
}

func signature(rec *invoice.Record) Signature {
	name := strings.TrimSpace(rec.SignatureName)
	if rec.SignatureImage != "" {
		if name == "" {
			name = signedDefault
		}
		return Signature{Image: rec.SignatureImage, Name: name}
	}
	if name == "" {
		name = unsignedDefault
	}
	return Signature{Name: name}
}

func orPlaceholder(v string) string {
	if v == "" {
		return Placeholder
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
