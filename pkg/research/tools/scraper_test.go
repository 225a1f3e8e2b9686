package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFReader_Read(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body struct {
			Model    string            `json:"model"`
			Document map[string]string `json:"document"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mistral-ocr-latest", body.Model)
		assert.Equal(t, "https://example.com/paper.pdf", body.Document["document_url"])
		_, _ = w.Write([]byte(`{"pages":[{"index":0,"markdown":"# Title"},{"index":1,"markdown":"body"}]}`))
	}))
	defer srv.Close()

	p := NewPDFReader("secret")
	p.BaseURL = srv.URL
	got, err := p.Read(context.Background(), "http://example.com/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "- Page 0 -\n# Title\n\n- Page 1 -\nbody", got)
}

func TestPDFReader_Errors(t *testing.T) {
	_, err := NewPDFReader("").Read(context.Background(), "https://x/a.pdf")
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad document", http.StatusBadRequest)
	}))
	defer srv.Close()
	p := NewPDFReader("secret")
	p.BaseURL = srv.URL
	_, err = p.Read(context.Background(), "https://x/a.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad document")
}
