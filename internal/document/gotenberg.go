package document

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

// HTMLConverter converts an HTML page into a PDF.
type HTMLConverter interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Gotenberg encodes trees by converting the print view remotely.
type Gotenberg struct {
	html      *HTML
	converter HTMLConverter
}

// NewGotenberg constructs the remote PDF encoder.
func NewGotenberg(html *HTML, converter HTMLConverter) *Gotenberg {
	return &Gotenberg{html: html, converter: converter}
}

// Encode renders the print view and converts it.
func (g *Gotenberg) Encode(ctx context.Context, tree *Tree) ([]byte, error) {
	page, err := g.html.Encode(ctx, tree)
	if err != nil {
		return nil, err
	}
	pdf, err := g.converter.RenderHTML(ctx, string(page))
	if err != nil {
		return nil, fmt.Errorf("document: convert via gotenberg: %w: %w", httpx.ErrUpstream, err)
	}
	return pdf, nil
}
