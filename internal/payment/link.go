// Package payment builds the public payment link of an invoice, its QR
// encoding and the page the link resolves to.
package payment

import "strings"

// Mount is where the payment handler is routed.
const Mount = "/pay"

// Path returns the payment page path for an invoice number.
func Path(invoiceNumber string) string {
	return Mount + "/" + invoiceNumber
}

// URL joins the deployment base URL and the payment path.
func URL(invoiceNumber, baseURL string) string {
	return strings.TrimRight(strings.TrimSpace(baseURL), "/") + Path(invoiceNumber)
}
