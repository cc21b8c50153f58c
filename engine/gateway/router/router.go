// Package router exposes the gateway over HTTP.
package router

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/taskgate/taskgate/engine/auth"
	"github.com/taskgate/taskgate/engine/gateway/uc"
	"github.com/taskgate/taskgate/engine/provider"
	"github.com/taskgate/taskgate/engine/task"
	"github.com/taskgate/taskgate/pkg/logger"
)

// HealthFunc probes a downstream dependency.
type HealthFunc func(ctx context.Context) error

// Handler handles gateway HTTP requests.
type Handler struct {
	exec     *uc.ExecuteTask
	verifier auth.Verifier
	health   HealthFunc
}

func NewHandler(exec *uc.ExecuteTask, verifier auth.Verifier, health HealthFunc) *Handler {
	return &Handler{exec: exec, verifier: verifier, health: health}
}

// Register wires the gateway routes onto the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.healthz)
	api := r.Group("/api/v0/ai")
	api.POST("/tasks/execute", h.executeTask)
}

type executeRequest struct {
	ModuleID string         `json:"moduleId"`
	TaskID   string         `json:"taskId"`
	Provider string         `json:"provider"`
	Inputs   map[string]any `json:"inputs"`
	Toggles  map[string]any `json:"toggles"`
	Cache    *cacheOptions  `json:"cache"`
	TeamID   string         `json:"teamId"`
}

type cacheOptions struct {
	Bypass bool `json:"bypass"`
}

func (h *Handler) executeTask(c *gin.Context) {
	requestID := uuid.NewString()
	ctx := c.Request.Context()
	log := logger.FromContext(ctx).With("request_id", requestID)
	ctx = logger.ContextWithLogger(ctx, log)

	var body executeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, requestID, http.StatusBadRequest, "Invalid JSON body.")
		return
	}

	moduleID := strings.TrimSpace(body.ModuleID)
	taskID := strings.TrimSpace(body.TaskID)
	if moduleID == "" || taskID == "" {
		respondError(c, requestID, http.StatusBadRequest, "Both moduleId and taskId are required.")
		return
	}

	token := auth.BearerToken(c.GetHeader("Authorization"))
	identity, err := h.verifier.Verify(ctx, token)
	if err != nil {
		respondError(c, requestID, http.StatusUnauthorized, "Unauthorized.")
		return
	}
	ctx = auth.ContextWithIdentity(ctx, identity)

	input := &uc.ExecuteTaskInput{
		RequestID: requestID,
		ModuleID:  moduleID,
		TaskID:    taskID,
		Provider:  strings.TrimSpace(body.Provider),
		Inputs:    body.Inputs,
		Toggles:   task.NormalizeSelections(body.Toggles),
		TeamID:    strings.TrimSpace(body.TeamID),
		Caller: task.Caller{
			UserID: identity.UserID,
			Email:  identity.Email,
			TeamID: strings.TrimSpace(body.TeamID),
		},
	}
	if input.Inputs == nil {
		input.Inputs = map[string]any{}
	}
	if body.Cache != nil {
		input.BypassCache = body.Cache.Bypass
	}

	out, err := h.exec.Execute(ctx, input)
	if err != nil {
		h.respondExecuteError(c, requestID, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) respondExecuteError(c *gin.Context, requestID string, err error) {
	log := logger.FromContext(c.Request.Context())

	var notFound *task.NotFoundError
	var invalid *task.ValidationError
	var resolution *provider.ResolutionError
	var execution *provider.ExecutionError
	var contextLoad *uc.ContextLoadError
	var captureErr *uc.CaptureError
	var taskLoad *uc.TaskLoadError

	switch {
	case errors.As(err, &notFound):
		respondError(c, requestID, http.StatusNotFound, notFound.Error())
	case errors.As(err, &invalid):
		respondError(c, requestID, http.StatusUnprocessableEntity, invalid.Error())
	case errors.As(err, &resolution):
		respondError(c, requestID, http.StatusBadRequest, resolution.Error())
	case errors.As(err, &execution):
		log.Error("AI provider execution failed", "request_id", requestID, "error", err)
		respondError(c, requestID, http.StatusBadGateway, "AI provider execution failed.")
	case errors.As(err, &contextLoad):
		respondError(c, requestID, http.StatusInternalServerError, contextLoad.Error())
	case errors.As(err, &captureErr):
		respondError(c, requestID, http.StatusInternalServerError, "Failed to persist AI task results.")
	case errors.As(err, &taskLoad):
		log.Error("failed to load AI task definition", "request_id", requestID, "error", err)
		respondError(c, requestID, http.StatusInternalServerError, "Failed to load AI task definition.")
	default:
		log.Error("unexpected gateway failure", "request_id", requestID, "error", err)
		respondError(c, requestID, http.StatusInternalServerError, "Internal server error.")
	}
}

func respondError(c *gin.Context, requestID string, status int, message string) {
	c.JSON(status, gin.H{"error": message, "requestId": requestID})
}

func (h *Handler) healthz(c *gin.Context) {
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
