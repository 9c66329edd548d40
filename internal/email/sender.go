// Package email delivers invoice PDFs through the external mail endpoint.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

const sendPath = "/api/send-invoice"

// DeliveryError reports a failed hand-off to the mail endpoint.
type DeliveryError struct {
	Status int
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("email: delivery failed with status %d", e.Status)
	}
	return fmt.Sprintf("email: delivery failed: %v", e.Err)
}

// Unwrap exposes both the upstream sentinel and the transport cause.
func (e *DeliveryError) Unwrap() []error {
	if e.Err == nil {
		return []error{httpx.ErrUpstream}
	}
	return []error{httpx.ErrUpstream, e.Err}
}

// Sender posts invoices to the mail endpoint. It makes exactly one attempt.
type Sender struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSender constructs a Sender for the given base URL.
func NewSender(endpoint string, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Send uploads pdf as {number}.pdf together with the recipient address.
func (s *Sender) Send(ctx context.Context, number, recipient string, pdf []byte) error {
	if s.endpoint == "" {
		return &DeliveryError{Err: errors.New("email endpoint not configured")}
	}
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("pdf", number+".pdf")
	if err != nil {
		return err
	}
	if _, err := part.Write(pdf); err != nil {
		return err
	}
	if err := writer.WriteField("email", recipient); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+sendPath, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		s.logger.Warn("email endpoint rejected invoice",
			slog.String("invoice", number),
			slog.Int("status", resp.StatusCode),
			slog.String("detail", string(detail)))
		return &DeliveryError{Status: resp.StatusCode}
	}
	return nil
}
