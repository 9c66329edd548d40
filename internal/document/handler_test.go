package document

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/observability"
	"github.com/odyssey-erp/invoicer/internal/platform/kv"
	"github.com/odyssey-erp/invoicer/internal/settings"
	"github.com/odyssey-erp/invoicer/internal/view"
)

type countingEncoder struct {
	inner Encoder
	calls atomic.Int32
}

func (c *countingEncoder) Encode(ctx context.Context, tree *Tree) ([]byte, error) {
	c.calls.Add(1)
	return c.inner.Encode(ctx, tree)
}

type fixture struct {
	router   http.Handler
	invoices *invoice.Service
	store    *invoice.Store
	cache    *Cache
	encoder  *countingEncoder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	src := settings.Static(settings.Defaults())
	store := invoice.NewStore(kv.NewMemory(), nil)
	invoices := invoice.NewService(store, invoice.NewNormalizer(src), src, nil)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute, nil)

	encoder := &countingEncoder{inner: NewFPDF(staticAssets(t))}
	svc := NewService(ServiceParams{
		Invoices: invoices,
		Renderer: NewRenderer(src, "https://pay.example.com"),
		PDF:      encoder,
		Format:   "fpdf",
		Cache:    cache,
		Metrics:  observability.NewMetrics(),
	})
	engine, err := view.NewEngine()
	require.NoError(t, err)
	h := NewHandler(nil, svc, NewHTML(engine, staticAssets(t), nil), engine)

	r := chi.NewRouter()
	r.Route("/api/invoices", h.MountAPIRoutes)
	r.Route("/api/documents", h.MountPreviewRoutes)
	r.Route("/invoices", h.MountPrintRoutes)
	return fixture{router: r, invoices: invoices, store: store, cache: cache, encoder: encoder}
}

func (f fixture) save(t *testing.T) invoice.Record {
	t.Helper()
	rec, err := f.invoices.Save(context.Background(), invoice.Record{
		ClientName:  "Jane Doe",
		ClientEmail: "jane@x.com",
		Items:       []invoice.LineItem{{Description: "Design", Quantity: 2, UnitPrice: 50}},
		IncludeVAT:  invoice.BoolPtr(true),
	})
	require.NoError(t, err)
	return rec
}

func (f fixture) do(method, path string, body []byte) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(method, path, bytes.NewReader(body)))
	return res
}

func TestDocumentEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.save(t)

	res := f.do(http.MethodGet, "/api/invoices/"+rec.InvoiceNumber+"/document", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var tree Tree
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &tree))
	assert.Equal(t, rec.InvoiceNumber, tree.Meta.Number)
	assert.Equal(t, "One Hundred Fifteen Rand only", tree.TotalInWords)
	assert.Equal(t, "https://pay.example.com/pay/"+rec.InvoiceNumber, tree.PaymentLink.URL)

	res = f.do(http.MethodGet, "/api/invoices/INV-000000/document", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestPreviewDraft(t *testing.T) {
	f := newFixture(t)
	res := f.do(http.MethodPost, "/api/documents/preview", []byte(`{"clientName":"A","items":[]}`))
	require.Equal(t, http.StatusOK, res.Code)

	var tree Tree
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &tree))
	assert.Equal(t, "No items", tree.Items.EmptyText)
	assert.Equal(t, "Invoice number not available yet.", tree.PaymentLink.Caption)

	res = f.do(http.MethodPost, "/api/documents/preview", []byte(`{"status":"VOID"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = f.do(http.MethodPost, "/api/documents/preview", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestPrintView(t *testing.T) {
	f := newFixture(t)
	rec := f.save(t)

	res := f.do(http.MethodGet, "/invoices/"+rec.InvoiceNumber+"/print", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Header().Get("Content-Type"), "text/html")
	body := res.Body.String()
	assert.Contains(t, body, "Invoice #: "+rec.InvoiceNumber)
	assert.Contains(t, body, `data-action="print"`)

	res = f.do(http.MethodGet, "/invoices/INV-000000/print", nil)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "Invoice not found. Please check the link.")
}

func TestPrintViewRejectsUnrenderableInvoice(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Upsert(context.Background(), invoice.Record{
		ID:            "broken",
		InvoiceNumber: "INV-999999",
		ClientName:    "X",
		Status:        "VOID",
	}))

	res := f.do(http.MethodGet, "/invoices/INV-999999/print", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)
	assert.Contains(t, res.Body.String(), "unknown status")
}

func TestPDFIsCachedUntilBump(t *testing.T) {
	f := newFixture(t)
	rec := f.save(t)
	path := "/invoices/" + rec.InvoiceNumber + "/pdf"

	first := f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "application/pdf", first.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(first.Body.String(), "%PDF-"))
	assert.Contains(t, first.Header().Get("Content-Disposition"), rec.InvoiceNumber+".pdf")

	second := f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.Bytes(), second.Body.Bytes())
	assert.Equal(t, int32(1), f.encoder.calls.Load())

	require.NoError(t, f.cache.Bump(context.Background()))
	third := f.do(http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, third.Code)
	assert.Equal(t, int32(2), f.encoder.calls.Load())
}

func TestQRImage(t *testing.T) {
	f := newFixture(t)
	rec := f.save(t)

	res := f.do(http.MethodGet, "/invoices/"+rec.InvoiceNumber+"/qr.png", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "image/png", res.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(res.Body.Bytes(), []byte("\x89PNG")))
}
