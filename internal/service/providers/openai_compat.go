package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"AlphaDesk/internal/domain/errs"
	"AlphaDesk/internal/domain/models"
	pkghttp "AlphaDesk/pkg/http"
)

// Default endpoints; every provider here exposes an OpenAI-style chat completions API.
var DefaultBaseURLs = map[models.ProviderID]string{
	models.ProviderOpenAI:    "https://api.openai.com/v1",
	models.ProviderAnthropic: "https://api.anthropic.com/v1",
	models.ProviderGemini:    "https://generativelanguage.googleapis.com/v1beta/openai",
	models.ProviderDeepSeek:  "https://api.deepseek.com/v1",
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAICompat talks to any provider that serves POST {base}/chat/completions.
type OpenAICompat struct {
	provider models.ProviderID
	baseURL  string
	client   *pkghttp.Client
	now      func() time.Time
}

func NewOpenAICompat(provider models.ProviderID, baseURL string, timeout time.Duration) *OpenAICompat {
	if baseURL == "" {
		baseURL = DefaultBaseURLs[provider]
	}
	var opts []pkghttp.ClientOption
	if timeout > 0 {
		opts = append(opts, pkghttp.WithTimeout(timeout))
	}
	return &OpenAICompat{
		provider: provider,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   pkghttp.NewClient(opts...),
		now:      time.Now,
	}
}

func (a *OpenAICompat) Complete(ctx context.Context, req models.AIRequest, model, apiKey string) (*models.AIResponse, error) {
	body := chatRequest{Model: model, MaxTokens: req.MaxTokens}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: systemPrompt(req)})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.UserPrompt})
	if req.ResponseSchema != "" {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	start := a.now()
	resp, err := a.client.SendRaw(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    a.baseURL + "/chat/completions",
		Headers: map[string]string{
			"Authorization": "Bearer " + apiKey,
			"Content-Type":  "application/json",
		},
		Body: body,
	})
	latency := a.now().Sub(start)
	if err != nil {
		return nil, a.transportError(ctx, err)
	}

	var parsed chatResponse
	decodeErr := json.Unmarshal(resp.Body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, a.statusError(resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, &errs.ProviderError{Provider: string(a.provider), Code: errs.CodeBadResponse, Message: "decode response", Retryable: true, Err: decodeErr}
	}
	if len(parsed.Choices) == 0 {
		return nil, &errs.ProviderError{Provider: string(a.provider), Code: errs.CodeBadResponse, Message: "no choices in response", Retryable: true}
	}

	return &models.AIResponse{
		Provider:     a.provider,
		Model:        model,
		TokensInput:  parsed.Usage.PromptTokens,
		TokensOutput: parsed.Usage.CompletionTokens,
		LatencyMs:    latency.Milliseconds(),
		Content:      parsed.Choices[0].Message.Content,
	}, nil
}

func systemPrompt(req models.AIRequest) string {
	if req.ResponseSchema == "" {
		return req.SystemPrompt
	}
	return req.SystemPrompt + "\n\nRespond with a single JSON object matching this schema:\n" + req.ResponseSchema
}

// StatusCode maps an HTTP status to a provider error code and whether retrying elsewhere may help.
func StatusCode(status int) (code string, retryable bool) {
	switch {
	case status == http.StatusTooManyRequests:
		return errs.CodeRateLimited, true
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.CodeAuthFailed, false
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errs.CodeTimeout, true
	case status >= 500:
		return errs.CodeServerError, true
	case status >= 400:
		return errs.CodeBadRequest, false
	}
	return errs.CodeUnknown, true
}

func (a *OpenAICompat) statusError(status int, msg string) error {
	code, retryable := StatusCode(status)
	return &errs.ProviderError{
		Provider:  string(a.provider),
		Code:      code,
		Message:   fmt.Sprintf("http %d: %s", status, msg),
		Retryable: retryable,
	}
}

func (a *OpenAICompat) transportError(ctx context.Context, err error) error {
	var ne net.Error
	code := errs.CodeNetwork
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil || (errors.As(err, &ne) && ne.Timeout()) {
		code = errs.CodeTimeout
	}
	return &errs.ProviderError{Provider: string(a.provider), Code: code, Message: err.Error(), Retryable: true, Err: err}
}
