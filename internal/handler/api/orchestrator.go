package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"AlphaDesk/internal/domain/models"
	domsvc "AlphaDesk/internal/domain/service"
	"AlphaDesk/internal/usecase"
	xhttp "AlphaDesk/pkg/http"
	xlogger "AlphaDesk/pkg/logger"
)

type StatusReporter interface {
	Status(ctx context.Context) usecase.StatusReport
}

type HaltController interface {
	TriggerIfNormal(ctx context.Context, req domsvc.HaltRequest) (*models.EmergencyEvent, bool, error)
	Halted() bool
	LastEvent() *models.EmergencyEvent
}

// EmergencyState is the read model for the halt switch.
type EmergencyState struct {
	Halted bool                   `json:"halted"`
	Event  *models.EmergencyEvent `json:"event,omitempty"`
}

// EmergencyRequest is a manual, operator-initiated halt.
type EmergencyRequest struct {
	Reason    string   `json:"reason" validate:"required,max=500"`
	RiskScore int      `json:"riskScore" validate:"gte=0,lte=100"`
	Warnings  []string `json:"warnings" validate:"max=20"`
}

// OrchestratorHandler exposes the thin status surface and the live stream.
type OrchestratorHandler struct {
	logger *xlogger.Logger
	status StatusReporter
	halt   HaltController
	stream http.Handler
}

func NewOrchestratorHandler(logger *xlogger.Logger, status StatusReporter, halt HaltController, stream http.Handler) *OrchestratorHandler {
	return &OrchestratorHandler{logger: logger, status: status, halt: halt, stream: stream}
}

func (h *OrchestratorHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	if h.stream != nil {
		e.GET("/ws", echo.WrapHandler(h.stream))
	}

	g := e.Group("/api")
	g.GET("/orchestrator/status", h.Status)
	g.GET("/emergency", h.Emergency)
	g.POST("/emergency", h.TriggerEmergency)
}

func (h *OrchestratorHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"halted": h.halt.Halted(),
	})
}

func (h *OrchestratorHandler) Status(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, h.status.Status(c.Request().Context()))
}

func (h *OrchestratorHandler) Emergency(c echo.Context) error {
	return xhttp.SuccessResponse(c, EmergencyState{Halted: h.halt.Halted(), Event: h.halt.LastEvent()})
}

func (h *OrchestratorHandler) TriggerEmergency(c echo.Context) error {
	req := &EmergencyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ev, triggered, err := h.halt.TriggerIfNormal(c.Request().Context(), domsvc.HaltRequest{
		Reason:    "manual: " + req.Reason,
		RiskScore: req.RiskScore,
		Warnings:  req.Warnings,
	})
	if err != nil {
		h.logger.Error("manual emergency stop failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("emergency stop failed").WithError(err))
	}
	if !triggered {
		appErr := xhttp.ConflictError("trading is already halted")
		if ev != nil {
			appErr.WithParam("eventId", ev.ID)
		}
		return xhttp.AppErrorResponse(c, appErr)
	}
	h.logger.Warn("manual emergency stop", xlogger.String("event_id", ev.ID), xlogger.String("remote", c.RealIP()))
	return xhttp.CreatedResponse(c, EmergencyState{Halted: true, Event: ev})
}
