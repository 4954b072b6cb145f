package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
)

func TestOpenAICompat_Success(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"signal\":\"bullish\"}"}}],"usage":{"prompt_tokens":120,"completion_tokens":40}}`)
	}))
	defer srv.Close()

	a := NewOpenAICompat(models.ProviderDeepSeek, srv.URL+"/v1/", time.Second)
	resp, err := a.Complete(context.Background(), models.AIRequest{
		SystemPrompt: "you are an analyst", UserPrompt: "BTC?", ResponseSchema: `{"signal":"string"}`, MaxTokens: 256,
	}, "deepseek-chat", "sk-test")
	require.NoError(t, err)

	assert.Equal(t, models.ProviderDeepSeek, resp.Provider)
	assert.Equal(t, "deepseek-chat", resp.Model)
	assert.Equal(t, 120, resp.TokensInput)
	assert.Equal(t, 40, resp.TokensOutput)
	assert.Equal(t, `{"signal":"bullish"}`, resp.Content)

	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, `{"signal":"string"}`)
	assert.Equal(t, "BTC?", got.Messages[1].Content)
	assert.Equal(t, 256, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAICompat_StatusMapping(t *testing.T) {
	cases := []struct {
		status    int
		code      string
		retryable bool
	}{
		{http.StatusTooManyRequests, errs.CodeRateLimited, true},
		{http.StatusUnauthorized, errs.CodeAuthFailed, false},
		{http.StatusForbidden, errs.CodeAuthFailed, false},
		{http.StatusBadRequest, errs.CodeBadRequest, false},
		{http.StatusInternalServerError, errs.CodeServerError, true},
		{http.StatusBadGateway, errs.CodeServerError, true},
		{http.StatusGatewayTimeout, errs.CodeTimeout, true},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, `{"error":{"message":"nope"}}`)
			}))
			defer srv.Close()

			_, err := NewOpenAICompat(models.ProviderOpenAI, srv.URL, time.Second).
				Complete(context.Background(), models.AIRequest{UserPrompt: "x"}, "gpt-4o", "k")

			var pe *errs.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.code, pe.Code)
			assert.Equal(t, tc.retryable, pe.Retryable)
			assert.Contains(t, pe.Message, "nope")
		})
	}
}

func TestOpenAICompat_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewOpenAICompat(models.ProviderOpenAI, srv.URL, 50*time.Millisecond).
		Complete(context.Background(), models.AIRequest{UserPrompt: "x"}, "gpt-4o", "k")
	assert.Equal(t, errs.CodeTimeout, errs.CodeOf(err))
	assert.False(t, errs.IsNonRetryable(err))
}

func TestOpenAICompat_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewOpenAICompat(models.ProviderOpenAI, url, time.Second).
		Complete(context.Background(), models.AIRequest{UserPrompt: "x"}, "gpt-4o", "k")
	assert.Equal(t, errs.CodeNetwork, errs.CodeOf(err))
}

func TestOpenAICompat_EmptyChoicesIsBadResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}))
	defer srv.Close()

	_, err := NewOpenAICompat(models.ProviderGemini, srv.URL, time.Second).
		Complete(context.Background(), models.AIRequest{UserPrompt: "x"}, "gemini-1.5-flash", "k")
	assert.Equal(t, errs.CodeBadResponse, errs.CodeOf(err))
}
