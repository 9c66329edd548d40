package document

import (
	"bytes"
	"context"
	"html/template"
	"io"
	"io/fs"
	"log/slog"

	"github.com/odyssey-erp/invoicer/internal/payment"
	"github.com/odyssey-erp/invoicer/internal/view"
)

// PrintTemplate is the standalone print view of an invoice.
const PrintTemplate = "documents/invoice.html"

// PrintView is the data the print template consumes. Image sources are
// pre-resolved to inline URIs so the page renders without network access.
type PrintView struct {
	*Tree
	LogoSrc      template.URL
	SignatureSrc template.URL
	QRSrc        template.URL
	Toolbar      bool
}

// HTML encodes trees through the print template.
type HTML struct {
	engine *view.Engine
	assets fs.FS
	logger *slog.Logger
}

// NewHTML constructs the HTML encoder. assets serves /static/ images.
func NewHTML(engine *view.Engine, assets fs.FS, logger *slog.Logger) *HTML {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTML{engine: engine, assets: assets, logger: logger}
}

// View resolves the images of tree.
func (h *HTML) View(tree *Tree, toolbar bool) PrintView {
	pv := PrintView{Tree: tree, Toolbar: toolbar}
	if tree.Header.Logo != "" {
		if img, err := loadImage(h.assets, tree.Header.Logo); err == nil {
			pv.LogoSrc = template.URL(img.dataURI())
		} else {
			h.logger.Debug("logo not embeddable", slog.String("logo", tree.Header.Logo), slog.Any("error", err))
		}
	}
	if tree.Signature.Signed() {
		if img, err := decodeDataURI(tree.Signature.Image); err == nil {
			pv.SignatureSrc = template.URL(img.dataURI())
		}
	}
	if tree.PaymentLink.Available() {
		if uri, err := payment.QRDataURI(tree.PaymentLink.URL, payment.DefaultQROptions()); err == nil {
			pv.QRSrc = template.URL(uri)
		} else {
			h.logger.Warn("qr encode", slog.Any("error", err))
		}
	}
	return pv
}

// Write renders the print page to w.
func (h *HTML) Write(w io.Writer, tree *Tree, toolbar bool) error {
	return h.engine.Execute(w, PrintTemplate, h.View(tree, toolbar))
}

// Encode renders a standalone page, suitable for HTML-to-PDF conversion.
func (h *HTML) Encode(_ context.Context, tree *Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := h.Write(&buf, tree, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
