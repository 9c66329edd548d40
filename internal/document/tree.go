// Package document turns an invoice into a backend-agnostic document tree
// and encodes that tree as HTML or PDF.
package document

import (
	"time"

	"github.com/odyssey-erp/invoicer/internal/money"
)

// Placeholder is shown for absent timeline dates.
const Placeholder = "—"

// Tree is the resolved content of one invoice document. Every fallback has
// already been applied; encoders only lay it out.
type Tree struct {
	Header        Header          `json:"header"`
	Meta          Meta            `json:"meta"`
	Client        Client          `json:"client"`
	Items         Table           `json:"items"`
	TotalInWords  string          `json:"totalInWords"`
	Notes         string          `json:"notes,omitempty"`
	PaymentStatus StatusLabel     `json:"paymentStatus"`
	Payment       PaymentDetails  `json:"payment"`
	Bank          Bank            `json:"bank"`
	Timeline      []TimelineEntry `json:"timeline"`
	PaymentLink   PaymentLink     `json:"paymentLink"`
	Terms         string          `json:"terms"`
	Slogan        string          `json:"slogan,omitempty"`
	Signature     Signature       `json:"signature"`
	Amounts       money.Breakdown `json:"amounts"`
	Currency      string          `json:"currency"`
	SavedAt       time.Time       `json:"savedAt"`
}

// Header carries the issuing company's branding.
type Header struct {
	Logo        string `json:"logo,omitempty"`
	CompanyName string `json:"companyName"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Website     string `json:"website,omitempty"`
}

// Meta identifies the invoice.
type Meta struct {
	Number      string `json:"number"`
	InvoiceDate string `json:"invoiceDate"`
}

// Client is the billed party.
type Client struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address,omitempty"`
}

// Table is the line item table with its summary rows.
type Table struct {
	Columns   []string     `json:"columns"`
	Rows      []Row        `json:"rows"`
	EmptyText string       `json:"emptyText,omitempty"`
	Summary   []SummaryRow `json:"summary"`
}

// Row is one preformatted line item.
type Row struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Total       string `json:"total"`
}

// SummaryRow is a subtotal, VAT or total line.
type SummaryRow struct {
	Label    string `json:"label"`
	Amount   string `json:"amount"`
	Emphasis bool   `json:"emphasis,omitempty"`
}

// StatusLabel is the payment status and its badge variant.
type StatusLabel struct {
	Label string `json:"label"`
	Badge string `json:"badge"`
}

// PaymentDetails tells the payer how to pay.
type PaymentDetails struct {
	Options      string `json:"options"`
	Reference    string `json:"reference"`
	Instructions string `json:"instructions"`
}

// Bank is the account payments go to.
type Bank struct {
	Name       string `json:"name"`
	AccountNo  string `json:"accountNo"`
	BranchCode string `json:"branchCode"`
}

// TimelineEntry is one milestone.
type TimelineEntry struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// PaymentLink is the QR/link block. URL is empty when the invoice has no
// number yet.
type PaymentLink struct {
	URL     string `json:"url,omitempty"`
	Caption string `json:"caption"`
}

// Available reports whether a payment URL exists.
func (p PaymentLink) Available() bool { return p.URL != "" }

// Signature is either a captured image or a blank signing line.
type Signature struct {
	Image string `json:"image,omitempty"`
	Name  string `json:"name"`
}

// Signed reports whether a signature image was captured.
func (s Signature) Signed() bool { return s.Image != "" }
