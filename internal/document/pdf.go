package document

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/odyssey-erp/invoicer/internal/payment"
)

const (
	pageMargin   = 15.0
	contentWidth = 180.0
	qrSizeMM     = 35.0
)

var colWidths = []float64{90, 20, 35, 35}

// Encoder turns a document tree into bytes of one output format.
type Encoder interface {
	Encode(ctx context.Context, tree *Tree) ([]byte, error)
}

// FPDF encodes trees natively with gofpdf. Output is byte-stable for a given
// tree: the creation date comes from the record's save time.
type FPDF struct {
	assets fs.FS
}

// NewFPDF constructs the native PDF encoder. assets serves /static/ images.
func NewFPDF(assets fs.FS) *FPDF {
	return &FPDF{assets: assets}
}

// Encode lays the tree out on A4 pages.
func (f *FPDF) Encode(ctx context.Context, tree *Tree) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetCatalogSort(true)
	if !tree.SavedAt.IsZero() {
		pdf.SetCreationDate(tree.SavedAt)
	}
	pdf.SetTitle("Invoice "+tree.Meta.Number, true)
	pdf.SetAuthor(tree.Header.CompanyName, true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	f.header(pdf, tr, tree)
	f.items(pdf, tr, tree)
	f.details(pdf, tr, tree)
	f.paymentLink(pdf, tr, tree)
	f.closing(pdf, tr, tree)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("document: layout pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("document: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *FPDF) header(pdf *gofpdf.Fpdf, tr func(string) string, tree *Tree) {
	top := pdf.GetY()
	if tree.Header.Logo != "" {
		if img, err := loadImage(f.assets, tree.Header.Logo); err == nil && f.register(pdf, "logo", img) {
			pdf.ImageOptions("logo", pageMargin+contentWidth-30, top, 30, 0, false, gofpdf.ImageOptions{ImageType: img.gofpdfType()}, 0, "")
		}
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(140, 8, tr(tree.Header.CompanyName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{tree.Header.Email, tree.Header.Phone, tree.Header.Website} {
		if line != "" {
			pdf.CellFormat(140, 5, tr(line), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 7, tr("Invoice #: "+tree.Meta.Number), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Date: "+tree.Meta.InvoiceDate), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, tr("Client: "+tree.Client.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr(tree.Client.Email), "", 1, "L", false, 0, "")
	if tree.Client.Address != "" {
		pdf.MultiCell(100, 5, tr(tree.Client.Address), "", "L", false)
	}
	pdf.Ln(4)
}

func (f *FPDF) items(pdf *gofpdf.Fpdf, tr func(string) string, tree *Tree) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(230, 236, 245)
	aligns := []string{"L", "R", "R", "R"}
	for i, col := range tree.Items.Columns {
		pdf.CellFormat(colWidths[i], 8, tr(col), "1", 0, aligns[i], true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	if len(tree.Items.Rows) == 0 {
		pdf.CellFormat(contentWidth, 8, tr(tree.Items.EmptyText), "1", 1, "C", false, 0, "")
	}
	for _, row := range tree.Items.Rows {
		cells := []string{row.Description, row.Quantity, row.UnitPrice, row.Total}
		for i, cell := range cells {
			pdf.CellFormat(colWidths[i], 7, tr(cell), "1", 0, aligns[i], false, 0, "")
		}
		pdf.Ln(-1)
	}

	labelWidth := colWidths[0] + colWidths[1] + colWidths[2]
	for _, sum := range tree.Items.Summary {
		style := ""
		if sum.Emphasis {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(labelWidth, 7, tr(sum.Label), "", 0, "R", false, 0, "")
		pdf.CellFormat(colWidths[3], 7, tr(sum.Amount), "", 1, "R", false, 0, "")
	}
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(contentWidth, 5, tr("Total in Words: "+tree.TotalInWords), "", "L", false)
	pdf.Ln(3)
}

func (f *FPDF) details(pdf *gofpdf.Fpdf, tr func(string) string, tree *Tree) {
	if tree.Notes != "" {
		section(pdf, tr, "Notes")
		pdf.MultiCell(contentWidth, 5, tr(tree.Notes), "", "L", false)
		pdf.Ln(2)
	}

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, tr("Payment Status: "+tree.PaymentStatus.Label), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr("Payment Options: "+tree.Payment.Options), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Payment Reference: "+tree.Payment.Reference), "", 1, "L", false, 0, "")
	pdf.MultiCell(contentWidth, 5, tr(tree.Payment.Instructions), "", "L", false)
	pdf.Ln(2)

	section(pdf, tr, "Bank Details")
	pdf.CellFormat(0, 5, tr("Bank: "+tree.Bank.Name), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Account No: "+tree.Bank.AccountNo), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Branch Code: "+tree.Bank.BranchCode), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	section(pdf, tr, "Timeline")
	for _, entry := range tree.Timeline {
		pdf.CellFormat(0, 5, tr(entry.Label+": "+entry.Value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

func (f *FPDF) paymentLink(pdf *gofpdf.Fpdf, tr func(string) string, tree *Tree) {
	if !tree.PaymentLink.Available() {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 5, tr(tree.PaymentLink.Caption), "", 1, "L", false, 0, "")
		pdf.Ln(2)
		return
	}
	png, err := payment.QRCode(tree.PaymentLink.URL, payment.DefaultQROptions())
	if err != nil || !f.register(pdf, "qr", image{mimeType: "image/png", data: png}) {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(0, 5, tr(tree.PaymentLink.URL), "", 1, "L", false, 0, tree.PaymentLink.URL)
		return
	}
	if pdf.GetY()+qrSizeMM+10 > 297-pageMargin {
		pdf.AddPage()
	}
	y := pdf.GetY()
	pdf.ImageOptions("qr", pageMargin, y, qrSizeMM, qrSizeMM, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, tree.PaymentLink.URL)
	pdf.SetXY(pageMargin, y+qrSizeMM+1)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(qrSizeMM, 4, tr(tree.PaymentLink.Caption), "", 1, "C", false, 0, tree.PaymentLink.URL)
	pdf.Ln(3)
}

func (f *FPDF) closing(pdf *gofpdf.Fpdf, tr func(string) string, tree *Tree) {
	if strings.TrimSpace(tree.Terms) != "" {
		section(pdf, tr, "Terms & Conditions")
		pdf.SetFont("Helvetica", "", 8)
		pdf.MultiCell(contentWidth, 4, tr(tree.Terms), "", "L", false)
		pdf.Ln(3)
	}
	if tree.Slogan != "" {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 5, tr(tree.Slogan), "", 1, "C", false, 0, "")
		pdf.Ln(4)
	}

	if tree.Signature.Signed() {
		if img, err := decodeDataURI(tree.Signature.Image); err == nil && f.register(pdf, "signature", img) {
			pdf.ImageOptions("signature", pageMargin, pdf.GetY(), 50, 0, true, gofpdf.ImageOptions{ImageType: img.gofpdfType()}, 0, "")
		}
	} else {
		pdf.Ln(10)
		y := pdf.GetY()
		pdf.Line(pageMargin, y, pageMargin+60, y)
		pdf.Ln(1)
	}
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(60, 5, tr(tree.Signature.Name), "", 1, "L", false, 0, "")
}

// register adds an image under name; false means it cannot be embedded.
func (f *FPDF) register(pdf *gofpdf.Fpdf, name string, img image) bool {
	typ := img.gofpdfType()
	if typ == "" {
		return false
	}
	info := pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: typ}, bytes.NewReader(img.data))
	if info == nil || pdf.Err() {
		// A broken image must not fail the whole document.
		pdf.ClearError()
		return false
	}
	return true
}

func section(pdf *gofpdf.Fpdf, tr func(string) string, title string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
}
