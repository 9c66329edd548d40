package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicer/internal/document"
	"github.com/odyssey-erp/invoicer/internal/email"
	"github.com/odyssey-erp/invoicer/internal/invoice"
	"github.com/odyssey-erp/invoicer/internal/observability"
	"github.com/odyssey-erp/invoicer/internal/payment"
	"github.com/odyssey-erp/invoicer/internal/platform/kv"
	"github.com/odyssey-erp/invoicer/internal/settings"
	"github.com/odyssey-erp/invoicer/internal/shared"
	_ "github.com/odyssey-erp/invoicer/internal/testing/guard"
	"github.com/odyssey-erp/invoicer/internal/view"
	"github.com/odyssey-erp/invoicer/jobs"
	"github.com/odyssey-erp/invoicer/report"
	"github.com/odyssey-erp/invoicer/web"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()
	cfg := &Config{AppEnv: "test", AppRequestTimeout: 5 * time.Second, AppRateLimit: 1000, InvoiceDueDays: 7}

	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	store := kv.NewMemory()
	provider, err := settings.Load(ctx, store, nil)
	require.NoError(t, err)
	invoiceStore := invoice.NewStore(store, nil)
	invoiceService := invoice.NewService(invoiceStore, invoice.NewNormalizer(provider), provider, nil)

	templates, err := view.NewEngine()
	require.NoError(t, err)
	staticFS, err := fs.Sub(web.Static, "static")
	require.NoError(t, err)
	htmlEncoder := document.NewHTML(templates, staticFS, nil)
	metrics := observability.NewMetrics()
	documentService := document.NewService(document.ServiceParams{
		Invoices: invoiceService,
		Renderer: document.NewRenderer(provider, "http://invoicer.test"),
		PDF:      document.NewFPDF(staticFS),
		Format:   EngineFPDF,
		Cache:    document.NewCache(redisClient, time.Minute, nil),
		Metrics:  metrics,
	})
	csrf := shared.NewCSRFManager("csrf-secret")

	return NewRouter(RouterParams{
		Config:          cfg,
		SessionManager:  shared.NewSessionManager(redisClient, "invoicer_session", "session-secret", time.Hour, false),
		CSRFManager:     csrf,
		InvoiceHandler:  invoice.NewHandler(nil, invoiceService, invoiceStore),
		DocumentHandler: document.NewHandler(nil, documentService, htmlEncoder, templates),
		EmailHandler:    email.NewHandler(nil, invoiceService, documentService, email.NewSender("http://127.0.0.1:0", nil), metrics),
		SettingsHandler: settings.NewHandler(nil, provider),
		PaymentHandler:  payment.NewHandler(nil, invoiceService, templates, csrf),
		ReportHandler:   report.NewHandler(nil, EngineFPDF, nil),
		JobHandler:      jobs.NewHandler(nil, nil, cfg.InvoiceDueDays, nil),
		Metrics:         metrics,
	})
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestHealthzAndSecurityHeaders(t *testing.T) {
	router := newTestRouter(t)
	res := do(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.Contains(t, res.Header().Get("Content-Security-Policy"), "img-src 'self' data:")
}

func TestStaticAssets(t *testing.T) {
	router := newTestRouter(t)
	res := do(router, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "public, max-age=3600", res.Header().Get("Cache-Control"))
	assert.Contains(t, res.Header().Get("Content-Type"), "text/css")
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/report/ping", "/jobs/health", "/api/settings", "/api/invoices/draft"} {
		res := do(router, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, res.Code, path)
	}

	res := do(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), "invoicer_http_requests_total")
}

var csrfInput = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func TestSaveThenPayThroughPaymentLink(t *testing.T) {
	router := newTestRouter(t)

	body := `{"clientName":"Jane Doe","clientEmail":"jane@x.com","items":[{"description":"Design","quantity":2,"price":50}],"includeVAT":true}`
	req := httptest.NewRequest(http.MethodPost, "/api/invoices", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := do(router, req)
	require.Equal(t, http.StatusOK, res.Code, res.Body.String())

	var saved struct {
		Invoice      invoice.Record `json:"invoice"`
		Notification struct {
			Message string `json:"message"`
		} `json:"notification"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &saved))
	number := saved.Invoice.InvoiceNumber
	assert.Equal(t, "Invoice "+number+" saved! You can now view it via QR.", saved.Notification.Message)

	page := do(router, httptest.NewRequest(http.MethodGet, payment.Path(number), nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "R115.00")
	cookies := page.Result().Cookies()
	require.NotEmpty(t, cookies)
	match := csrfInput.FindStringSubmatch(page.Body.String())
	require.Len(t, match, 2)

	// Without a token the form post is rejected.
	forged := httptest.NewRequest(http.MethodPost, payment.Path(number)+"/confirm", nil)
	for _, c := range cookies {
		forged.AddCookie(c)
	}
	assert.Equal(t, http.StatusForbidden, do(router, forged).Code)

	form := url.Values{"csrf_token": {match[1]}}
	confirm := httptest.NewRequest(http.MethodPost, payment.Path(number)+"/confirm", strings.NewReader(form.Encode()))
	confirm.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		confirm.AddCookie(c)
	}
	res = do(router, confirm)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, payment.Path(number), res.Header().Get("Location"))

	followUp := httptest.NewRequest(http.MethodGet, payment.Path(number), nil)
	for _, c := range cookies {
		followUp.AddCookie(c)
	}
	page = do(router, followUp)
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "Payment Confirmed")

	res = do(router, httptest.NewRequest(http.MethodGet, "/api/invoices/"+number, nil))
	require.Equal(t, http.StatusOK, res.Code)
	var rec invoice.Record
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &rec))
	assert.Equal(t, invoice.StatusPaid, rec.Status)

	res = do(router, httptest.NewRequest(http.MethodGet, "/invoices/"+number+"/pdf", nil))
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, bytes.HasPrefix(res.Body.Bytes(), []byte("%PDF-")))
}

func TestSessionWriterFlushCommitsSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cfg := MiddlewareConfig{
		SessionManager: shared.NewSessionManager(client, "invoicer_session", "session-secret", time.Hour, false),
	}

	handler := SessionMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)
		flusher.Flush()
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/pay/INV-1", nil))
	assert.True(t, res.Flushed)
	assert.Contains(t, res.Header().Get("Set-Cookie"), "invoicer_session=")
}
