package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/invoicer/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStatusNotFoundPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	res := httptest.NewRecorder()
	err = engine.RenderStatus(res, http.StatusNotFound, "pages/not_found.html", TemplateData{
		Title: "Invoice not found",
		Flash: &shared.FlashMessage{Kind: "danger", Message: "Invoice not found. Please check the link."},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Contains(t, res.Body.String(), "Invoice not found. Please check the link.")
	assert.Equal(t, "text/html; charset=utf-8", res.Header().Get("Content-Type"))
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	res := httptest.NewRecorder()
	err = engine.Render(res, "pages/missing.html", TemplateData{})
	assert.Error(t, err)
	assert.Empty(t, res.Body.String())
}

func TestNilEngine(t *testing.T) {
	var engine *Engine
	assert.Error(t, engine.Execute(httptest.NewRecorder(), "x", nil))
}
