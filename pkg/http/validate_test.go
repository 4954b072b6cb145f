package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Provider  string  `json:"provider" validate:"required,oneof=openai anthropic"`
	Prompt    string  `json:"prompt" validate:"min=3"`
	MaxTokens int     `json:"maxTokens" default:"256" validate:"gt=0"`
	Budget    float64 `json:"budget" validate:"lte=10"`
}

func bindJSON(t *testing.T, body string, req interface{}) []ValidationError {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	r.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := echo.New().NewContext(r, httptest.NewRecorder())
	return ReadAndValidateRequest(c, req)
}

func TestReadAndValidateRequest_AppliesDefaults(t *testing.T) {
	var req sampleRequest
	errs := bindJSON(t, `{"provider":"openai","prompt":"hello"}`, &req)
	require.Nil(t, errs)
	assert.Equal(t, 256, req.MaxTokens)
}

func TestReadAndValidateRequest_FieldErrorsUseJSONNames(t *testing.T) {
	var req sampleRequest
	errs := bindJSON(t, `{"provider":"mistral","prompt":"hi","budget":12}`, &req)
	require.Len(t, errs, 3)

	byField := map[string]ValidationError{}
	for _, e := range errs {
		byField[e.Field] = e
	}

	assert.Equal(t, "ERR_ONEOF", byField["provider"].Code)
	assert.Equal(t, []string{"openai", "anthropic"}, byField["provider"].Params["options"])
	assert.Equal(t, "prompt must be at least 3 characters", byField["prompt"].Message)
	assert.Equal(t, "budget must be less than or equal to 10", byField["budget"].Message)
	assert.Equal(t, "10", byField["budget"].Params["max"])
}

func TestReadAndValidateRequest_MalformedBody(t *testing.T) {
	var req sampleRequest
	errs := bindJSON(t, `{"provider":`, &req)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}
