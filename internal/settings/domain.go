// Package settings owns the issuer configuration used for document branding
// and as the fallback source for invoice fields.
package settings

// Key is the persistence key of the settings singleton.
const Key = "settings"

// DefaultTerms is the standard terms block printed on invoices.
const DefaultTerms = `Payment Terms: Payment due within 7 calendar days of invoice date. Late payments will incur a 2% monthly fee.

Warranty: Services/products include a 12-month workmanship warranty unless otherwise stated.

Refund Policy: Refunds are only applicable for cancellations made within 5 days of invoice date. No refunds on delivered or executed work.

SARS Compliance: This invoice is compliant with the VAT Act and SARS invoice formatting requirements.

POPIA Notice: Client information is securely processed and stored in compliance with the Protection of Personal Information Act (POPIA).`

// BankDetails identifies the account payments go to.
type BankDetails struct {
	Bank       string `json:"bank"`
	AccountNo  string `json:"accountNo"`
	BranchCode string `json:"branchCode"`
}

// CompanySettings describes the invoicing company.
type CompanySettings struct {
	CompanyName         string      `json:"companyName" validate:"required"`
	CompanyEmail        string      `json:"companyEmail" validate:"omitempty,email"`
	CompanyPhone        string      `json:"companyPhone"`
	Website             string      `json:"website"`
	Logo                string      `json:"logo"`
	IncludeVAT          bool        `json:"includeVAT"`
	Currency            string      `json:"currency" validate:"required,len=3"`
	BankDetails         BankDetails `json:"bankDetails"`
	Terms               string      `json:"terms"`
	Slogan              string      `json:"slogan"`
	PaymentOptions      string      `json:"paymentOptions"`
	PaymentInstructions string      `json:"paymentInstructions"`
}

// Source hands out the current settings. Consumers never mutate the result.
type Source interface {
	Current() CompanySettings
}

// Static is a fixed Source.
type Static CompanySettings

// Current returns the wrapped settings.
func (s Static) Current() CompanySettings { return CompanySettings(s) }

// Defaults returns the first-run settings.
func Defaults() CompanySettings {
	return CompanySettings{
		CompanyName:  "Future Finance Group",
		CompanyEmail: "info@futurefinance.co.za",
		CompanyPhone: "+27 87 123 4567",
		Website:      "www.futurefinance.co.za",
		Logo:         "/static/img/logo.png",
		IncludeVAT:   true,
		Currency:     "ZAR",
		BankDetails: BankDetails{
			Bank:       "Standard Bank",
			AccountNo:  "123 456 789",
			BranchCode: "051001",
		},
		Terms:               DefaultTerms,
		Slogan:              "Empowering your future, one invoice at a time.",
		PaymentOptions:      "SnapScan, EFT, Credit Card",
		PaymentInstructions: "Use invoice number as payment reference.",
	}
}
