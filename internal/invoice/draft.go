package invoice

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/invoicer/internal/settings"
)

const (
	numberPrefix      = "INV-"
	numberMin         = 100000
	numberSpan        = 900000
	maxNumberAttempts = 64
)

// Invoice numbers travel unescaped in payment links.
var numberPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// NewDraft returns an empty invoice ready for editing.
func NewDraft(s settings.CompanySettings) Record {
	return Record{
		ID:         uuid.NewString(),
		Items:      []LineItem{{ID: uuid.NewString(), Quantity: 1}},
		IncludeVAT: BoolPtr(true),
		Status:     StatusDue,
		Terms:      s.Terms,
	}
}

// saveRules are the constraints a record must meet before it is persisted.
type saveRules struct {
	ClientName    string `validate:"required"`
	ClientEmail   string `validate:"required"`
	InvoiceNumber string `validate:"omitempty,max=64,invoicenumber"`
	Status        string `validate:"oneof=DUE PAID PARTIAL OVERDUE"`
}

var ruleFields = map[string]string{
	"ClientName":    "clientName",
	"ClientEmail":   "clientEmail",
	"InvoiceNumber": "invoiceNumber",
	"Status":        "status",
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("invoicenumber", func(fl validator.FieldLevel) bool {
		return numberPattern.MatchString(fl.Field().String())
	})
	return v
}

// Normalizer applies persistence-time defaults. It is the only place records
// are completed before they reach the store.
type Normalizer struct {
	settings settings.Source
	validate *validator.Validate

	// Now and Draw are replaceable for tests.
	Now  func() time.Time
	Draw func() int
}

// NewNormalizer constructs a Normalizer reading defaults from src.
func NewNormalizer(src settings.Source) *Normalizer {
	return &Normalizer{
		settings: src,
		validate: newValidator(),
		Now:      time.Now,
		Draw:     func() int { return numberMin + rand.IntN(numberSpan) },
	}
}

// NormalizeForSave validates draft and fills every derived field. existing
// lists the invoice numbers already in use.
func (n *Normalizer) NormalizeForSave(draft Record, existing []string) (Record, error) {
	rec := draft
	rec.ClientName = strings.TrimSpace(rec.ClientName)
	rec.ClientEmail = strings.TrimSpace(rec.ClientEmail)
	rec.InvoiceNumber = strings.TrimSpace(rec.InvoiceNumber)
	if rec.Status == "" {
		rec.Status = StatusDue
	}

	if err := n.check(rec); err != nil {
		return Record{}, err
	}

	if rec.InvoiceNumber == "" {
		number, err := n.allocateNumber(existing)
		if err != nil {
			return Record{}, err
		}
		rec.InvoiceNumber = number
	}

	now := n.Now()
	today := NewDate(now)
	rec.Timeline.InvoiceDate = today
	if rec.Timeline.QuoteDate.IsZero() {
		rec.Timeline.QuoteDate = today
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.SavedAt = now.UTC()
	if strings.TrimSpace(rec.Terms) == "" {
		rec.Terms = n.settings.Current().Terms
	}

	items := make([]LineItem, 0, len(rec.Items))
	for _, item := range rec.Items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.Quantity = nonNegative(item.Quantity)
		item.UnitPrice = nonNegative(item.UnitPrice)
		items = append(items, item)
	}
	rec.Items = items
	return rec, nil
}

func (n *Normalizer) check(rec Record) error {
	err := n.validate.Struct(saveRules{
		ClientName:    rec.ClientName,
		ClientEmail:   rec.ClientEmail,
		InvoiceNumber: rec.InvoiceNumber,
		Status:        string(rec.Status),
	})
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := "is required"
		switch fe.Tag() {
		case "oneof":
			msg = "must be one of DUE, PAID, PARTIAL, OVERDUE"
		case "max":
			msg = "must be at most 64 characters"
		case "invoicenumber":
			msg = "may only contain letters, digits, dot, dash and underscore"
		}
		fields[ruleFields[fe.Field()]] = msg
	}
	return &ValidationError{Fields: fields}
}

func (n *Normalizer) allocateNumber(existing []string) (string, error) {
	taken := make(map[string]struct{}, len(existing))
	for _, number := range existing {
		taken[number] = struct{}{}
	}
	for range maxNumberAttempts {
		candidate := fmt.Sprintf("%s%06d", numberPrefix, n.Draw())
		if _, ok := taken[candidate]; !ok {
			return candidate, nil
		}
	}
	return "", ErrNumberExhausted
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
