// Package invoice models invoice records, their persistence-time defaulting
// and the collection they are stored in.
package invoice

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/invoicer/internal/money"
	"github.com/odyssey-erp/invoicer/internal/settings"
)

// Status enumerates the payment state of an invoice.
type Status string

const (
	StatusDue     Status = "DUE"
	StatusPaid    Status = "PAID"
	StatusPartial Status = "PARTIAL"
	StatusOverdue Status = "OVERDUE"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDue, StatusPaid, StatusPartial, StatusOverdue:
		return true
	}
	return false
}

// Badge returns the visual variant used for the status label.
func (s Status) Badge() string {
	switch s {
	case StatusPaid:
		return "success"
	case StatusOverdue:
		return "danger"
	case StatusPartial:
		return "info"
	default:
		return "warning"
	}
}

// LineItem is one billable row.
type LineItem struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"price"`
}

// UnmarshalJSON tolerates numeric strings, null and garbage in the numeric
// fields; anything that is not a finite number decodes to 0.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID          string          `json:"id"`
		Description string          `json:"description"`
		Quantity    json.RawMessage `json:"quantity"`
		UnitPrice   json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	li.ID = aux.ID
	li.Description = aux.Description
	li.Quantity = lenientNumber(aux.Quantity)
	li.UnitPrice = lenientNumber(aux.UnitPrice)
	return nil
}

func lenientNumber(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var v float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
		v = parsed
	} else if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

const dateLayout = "2006-01-02"

// Date is an optional calendar date. The zero value means absent.
type Date struct {
	t time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate accepts YYYY-MM-DD or RFC 3339; blank input yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return NewDate(t), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t), nil
}

// IsZero reports whether the date is absent.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time { return d.t }

// String renders YYYY-MM-DD, or "" when absent.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

// MarshalJSON encodes absent dates as null.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "", null, YYYY-MM-DD and RFC 3339.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Timeline tracks the quote, invoice and payment milestones.
type Timeline struct {
	QuoteDate   Date `json:"quoteDate"`
	InvoiceDate Date `json:"invoiceDate"`
	PaymentDate Date `json:"paymentDate"`
}

// Record is a persisted invoice.
type Record struct {
	ID                  string     `json:"id"`
	InvoiceNumber       string     `json:"invoiceNumber"`
	ClientName          string     `json:"clientName"`
	ClientEmail         string     `json:"clientEmail"`
	ClientAddress       string     `json:"clientAddress"`
	Items               []LineItem `json:"items"`
	IncludeVAT          *bool      `json:"includeVAT,omitempty"`
	Status              Status     `json:"status"`
	Notes               string     `json:"notes"`
	Terms               string     `json:"terms"`
	SignatureName       string     `json:"signatureName"`
	SignatureImage      string     `json:"signatureImage"`
	PaymentOptions      string     `json:"paymentOptions"`
	PaymentReference    string     `json:"paymentReference"`
	PaymentInstructions string     `json:"paymentInstructions"`
	Timeline            Timeline   `json:"timeline"`
	SavedAt             time.Time  `json:"savedAt"`
}

// VATIncluded resolves the record's VAT flag against the settings default.
func (r Record) VATIncluded(s settings.CompanySettings) bool {
	if r.IncludeVAT != nil {
		return *r.IncludeVAT
	}
	return s.IncludeVAT
}

// PaymentOptionsOr returns the record's payment options or the company's.
func (r Record) PaymentOptionsOr(s settings.CompanySettings) string {
	return firstNonBlank(r.PaymentOptions, s.PaymentOptions)
}

// PaymentInstructionsOr returns the record's instructions or the company's.
func (r Record) PaymentInstructionsOr(s settings.CompanySettings) string {
	return firstNonBlank(r.PaymentInstructions, s.PaymentInstructions)
}

// PaymentReferenceOr falls back to the invoice number.
func (r Record) PaymentReferenceOr() string {
	return firstNonBlank(r.PaymentReference, r.InvoiceNumber)
}

// TermsOr returns the record's terms or the company default.
func (r Record) TermsOr(s settings.CompanySettings) string {
	return firstNonBlank(r.Terms, s.Terms)
}

// Lines projects the items onto money lines.
func (r Record) Lines() []money.Line {
	lines := make([]money.Line, 0, len(r.Items))
	for _, item := range r.Items {
		lines = append(lines, money.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return lines
}

// Totals derives subtotal, VAT and total.
func (r Record) Totals(s settings.CompanySettings) money.Breakdown {
	return money.Compute(r.Lines(), r.VATIncluded(s))
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// BoolPtr is a helper for the optional VAT flag.
func BoolPtr(v bool) *bool { return &v }
