package document

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/observability"
)

// Service resolves invoices into documents and cached PDFs.
type Service struct {
	invoices *invoice.Service
	renderer *Renderer
	pdf      Encoder
	format   string
	cache    *Cache
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// ServiceParams groups the document service dependencies.
type ServiceParams struct {
	Invoices *invoice.Service
	Renderer *Renderer
	PDF      Encoder
	// Format names the PDF engine in cache keys and metrics.
	Format  string
	Cache   *Cache
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

// NewService wires the document service.
func NewService(p ServiceParams) *Service {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Cache == nil {
		p.Cache = NewCache(nil, 0, p.Logger)
	}
	if p.Format == "" {
		p.Format = "pdf"
	}
	return &Service{
		invoices: p.Invoices,
		renderer: p.Renderer,
		pdf:      p.PDF,
		format:   p.Format,
		cache:    p.Cache,
		metrics:  p.Metrics,
		logger:   p.Logger,
	}
}

// Tree renders the saved invoice with the given number.
func (s *Service) Tree(ctx context.Context, number string) (*Tree, error) {
	rec, err := s.invoices.Get(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(&rec)
}

// Preview renders an unsaved draft.
func (s *Service) Preview(draft invoice.Record) (*Tree, error) {
	return s.renderer.Render(&draft)
}

// PDF returns the encoded PDF of a saved invoice, served from the cache when
// possible.
func (s *Service) PDF(ctx context.Context, number string) ([]byte, error) {
	tree, err := s.Tree(ctx, number)
	if err != nil {
		return nil, err
	}
	key, err := s.cache.Key(ctx, s.format, number, strconv.FormatInt(tree.SavedAt.UnixNano(), 10))
	if err != nil {
		s.logger.Warn("document cache version unavailable", slog.Any("error", err))
		key = fmt.Sprintf("invoicer:document:%s:%s:uncached", s.format, number)
	}
	pdf, hit, err := s.cache.Fetch(ctx, key, func(ctx context.Context) ([]byte, error) {
		out, err := s.pdf.Encode(ctx, tree)
		s.metrics.DocumentRendered(s.format, err)
		return out, err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.DocumentCache(hit)
	return pdf, nil
}
