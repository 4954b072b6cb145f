package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRaw_JSONBodyAndHeaders(t *testing.T) {
	var gotBody, gotType, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody, gotType, gotAuth = string(b), r.Header.Get("Content-Type"), r.Header.Get("Authorization")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer srv.Close()

	resp, err := NewClient().SendRaw(context.Background(), &RequestOptions{
		Method:  MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer k"},
		Body:    map[string]string{"model": "gpt-4o"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "status is returned, not judged")
	assert.JSONEq(t, `{"error":{"message":"slow down"}}`, string(resp.Body))
	assert.JSONEq(t, `{"model":"gpt-4o"}`, gotBody)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "Bearer k", gotAuth)
}

func TestSendRaw_RawBodyKeepsCallerContentType(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
	}))
	defer srv.Close()

	_, err := NewClient().SendRaw(context.Background(), &RequestOptions{
		Method:  MethodPost,
		URL:     srv.URL,
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "text/plain", gotType)
}

func TestSendRaw_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient().SendRaw(context.Background(), &RequestOptions{Method: MethodGet, URL: url})
	assert.Error(t, err)
}
