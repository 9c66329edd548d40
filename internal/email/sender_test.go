package email

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicer/internal/platform/httpx"
)

func TestSenderPostsMultipart(t *testing.T) {
	var (
		gotEmail    string
		gotFilename string
		gotPDF      []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/send-invoice", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotEmail = r.FormValue("email")
		file, header, err := r.FormFile("pdf")
		require.NoError(t, err)
		defer file.Close()
		gotFilename = header.Filename
		gotPDF, _ = io.ReadAll(file)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewSender(server.URL+"/", nil)
	err := sender.Send(context.Background(), "INV-123456", "jane@x.com", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "jane@x.com", gotEmail)
	assert.Equal(t, "INV-123456.pdf", gotFilename)
	assert.Equal(t, []byte("%PDF-1.3"), gotPDF)
}

func TestSenderSingleAttemptOnFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "mailbox unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	err := NewSender(server.URL, nil).Send(context.Background(), "INV-1", "a@b.c", []byte("x"))
	require.Error(t, err)
	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, http.StatusServiceUnavailable, derr.Status)
	assert.True(t, errors.Is(err, httpx.ErrUpstream))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSenderTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	err := NewSender(url, nil).Send(context.Background(), "INV-1", "a@b.c", []byte("x"))
	var derr *DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Zero(t, derr.Status)
	assert.ErrorIs(t, err, httpx.ErrUpstream)
}

func TestSenderUnconfigured(t *testing.T) {
	err := NewSender("", nil).Send(context.Background(), "INV-1", "a@b.c", nil)
	assert.ErrorIs(t, err, httpx.ErrUpstream)
}
