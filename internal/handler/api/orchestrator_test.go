package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AlphaDesk/internal/domain/models"
	domsvc "AlphaDesk/internal/domain/service"
	"AlphaDesk/internal/usecase"
	xlogger "AlphaDesk/pkg/logger"
)

type staticStatus usecase.StatusReport

func (s staticStatus) Status(context.Context) usecase.StatusReport { return usecase.StatusReport(s) }

type fakeHalt struct {
	halted bool
	last   *models.EmergencyEvent
	reqs   []domsvc.HaltRequest
}

func (f *fakeHalt) TriggerIfNormal(_ context.Context, req domsvc.HaltRequest) (*models.EmergencyEvent, bool, error) {
	if f.halted {
		return f.last, false, nil
	}
	f.reqs = append(f.reqs, req)
	f.halted = true
	f.last = &models.EmergencyEvent{ID: "ev-1", Reason: req.Reason, Metadata: models.EmergencyMetadata{RiskScore: req.RiskScore}}
	return f.last, true, nil
}

func (f *fakeHalt) Halted() bool                      { return f.halted }
func (f *fakeHalt) LastEvent() *models.EmergencyEvent { return f.last }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *OrchestratorHandler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(path, "/api") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestStatus(t *testing.T) {
	report := staticStatus{
		Agents:      []usecase.AgentStatus{{Name: "Risk", Status: usecase.HealthActive}},
		DailyAICost: 1.5,
	}
	h := NewOrchestratorHandler(xlogger.NewNop(), report, &fakeHalt{}, nil)

	rec, env := serve(t, h, http.MethodGet, "/api/orchestrator/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var got usecase.StatusReport
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got.Agents, 1)
	assert.Equal(t, usecase.HealthActive, got.Agents[0].Status)
	assert.InDelta(t, 1.5, got.DailyAICost, 1e-9)
}

func TestTriggerEmergency(t *testing.T) {
	halt := &fakeHalt{}
	h := NewOrchestratorHandler(xlogger.NewNop(), staticStatus{}, halt, nil)

	rec, env := serve(t, h, http.MethodPost, "/api/emergency", `{"reason":"exchange outage","riskScore":90}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, halt.reqs, 1)
	assert.Equal(t, "manual: exchange outage", halt.reqs[0].Reason)

	var st EmergencyState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Halted)
	assert.Equal(t, "ev-1", st.Event.ID)

	rec, _ = serve(t, h, http.MethodPost, "/api/emergency", `{"reason":"again"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Len(t, halt.reqs, 1)
}

func TestTriggerEmergency_Validation(t *testing.T) {
	halt := &fakeHalt{}
	h := NewOrchestratorHandler(xlogger.NewNop(), staticStatus{}, halt, nil)

	rec, _ := serve(t, h, http.MethodPost, "/api/emergency", `{"riskScore":150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, halt.reqs)
}

func TestEmergencyState(t *testing.T) {
	halt := &fakeHalt{halted: true, last: &models.EmergencyEvent{ID: "ev-9"}}
	h := NewOrchestratorHandler(xlogger.NewNop(), staticStatus{}, halt, nil)

	_, env := serve(t, h, http.MethodGet, "/api/emergency", "")
	var st EmergencyState
	require.NoError(t, json.Unmarshal(env.Data, &st))
	assert.True(t, st.Halted)
	assert.Equal(t, "ev-9", st.Event.ID)
}

func TestHealthz(t *testing.T) {
	h := NewOrchestratorHandler(xlogger.NewNop(), staticStatus{}, &fakeHalt{}, nil)
	rec, _ := serve(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","halted":false}`, rec.Body.String())
}
