// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rename

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AleutianAI/AleutianRename/services/rename/journal"
	"github.com/AleutianAI/AleutianRename/services/rename/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// requestIDHeader carries the caller's request ID, echoed in responses.
const requestIDHeader = "X-Request-ID"

// requestIDKey holds the request ID in the gin context.
const requestIDKey = "request_id"

// =============================================================================
// Request and Response Types
// =============================================================================

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// MethodRequest names a method as "Type.name(params)".
type MethodRequest struct {
	Method string `json:"method" binding:"required"`
}

// ScopeRequest asks for the search scope of a method.
type ScopeRequest struct {
	Method string `json:"method" binding:"required"`

	// Ripple widens the scope to the whole ripple set.
	Ripple bool `json:"ripple"`
}

// PlanRequestBody asks for a rename plan.
type PlanRequestBody struct {
	Method  string `json:"method" binding:"required"`
	NewName string `json:"new_name" binding:"required"`

	// Preview includes the unified diff of the edits.
	Preview bool `json:"preview"`
}

// PlanResponse is an evaluated plan.
type PlanResponse struct {
	*Plan
	Blocking bool   `json:"blocking"`
	Preview  string `json:"preview,omitempty"`
}

// PlansResponse lists recorded plans.
type PlansResponse struct {
	Plans []*journal.Metadata `json:"plans"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Health string `json:"status"`
	Status
}

// =============================================================================
// Handlers
// =============================================================================

// Handlers serves the rename API.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers over svc.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleRipple handles POST /v1/rename/ripple.
//
// Response:
//
//	200 OK: ripple.Result
//	400 Bad Request: Missing or malformed method
//	404 Not Found: Unknown method
//	408 Request Timeout: Request cancelled
func (h *Handlers) HandleRipple(c *gin.Context) {
	logger := requestLogger(c, "HandleRipple")

	var req MethodRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := parseMethod(c, req.Method)
	if !ok {
		return
	}
	res, err := h.svc.Resolve(c.Request.Context(), id)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleScope handles POST /v1/rename/scope.
//
// Response:
//
//	200 OK: ScopeResult
//	400 Bad Request: Missing or malformed method
//	404 Not Found: Unknown method
//	408 Request Timeout: Request cancelled
func (h *Handlers) HandleScope(c *gin.Context) {
	logger := requestLogger(c, "HandleScope")

	var req ScopeRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := parseMethod(c, req.Method)
	if !ok {
		return
	}
	res, err := h.svc.Scope(c.Request.Context(), id, req.Ripple)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandlePlan handles POST /v1/rename/plan.
//
// Description:
//
//	Evaluates the rename without applying it. A plan with blocking
//	conflicts is still a 200; clients check the blocking field.
//
// Response:
//
//	200 OK: PlanResponse
//	400 Bad Request: Malformed request or invalid new name
//	404 Not Found: Unknown method
//	408 Request Timeout: Request cancelled
func (h *Handlers) HandlePlan(c *gin.Context) {
	logger := requestLogger(c, "HandlePlan")

	var req PlanRequestBody
	if !bindJSON(c, &req) {
		return
	}
	id, ok := parseMethod(c, req.Method)
	if !ok {
		return
	}
	plan, err := h.svc.Plan(c.Request.Context(), PlanRequest{Method: id, NewName: req.NewName})
	if err != nil {
		writeError(c, logger, err)
		return
	}

	resp := PlanResponse{Plan: plan, Blocking: plan.Blocking()}
	if req.Preview {
		preview, err := plan.Preview()
		if err != nil {
			writeError(c, logger, err)
			return
		}
		resp.Preview = preview
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListPlans handles GET /v1/rename/plans.
//
// Query Parameters:
//
//	limit: Maximum results, default 100
//
// Response:
//
//	200 OK: PlansResponse
//	503 Service Unavailable: Journal disabled
func (h *Handlers) HandleListPlans(c *gin.Context) {
	logger := requestLogger(c, "HandleListPlans")

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	plans, err := h.svc.History(c.Request.Context(), limit)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	if plans == nil {
		plans = []*journal.Metadata{}
	}
	c.JSON(http.StatusOK, PlansResponse{Plans: plans})
}

// HandleGetPlan handles GET /v1/rename/plans/:id.
//
// Response:
//
//	200 OK: journal.Record
//	404 Not Found: Unknown plan
//	503 Service Unavailable: Journal disabled
func (h *Handlers) HandleGetPlan(c *gin.Context) {
	logger := requestLogger(c, "HandleGetPlan")

	rec, err := h.svc.Recorded(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// HandleHealth handles GET /v1/rename/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Health: "healthy", Status: h.svc.Status()})
}

// =============================================================================
// Helpers
// =============================================================================

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header(requestIDHeader, id)
	return id
}

func requestLogger(c *gin.Context, handler string) *slog.Logger {
	return slog.With("request_id", getOrCreateRequestID(c), "handler", handler)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid request: " + err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return false
	}
	return true
}

func parseMethod(c *gin.Context, s string) (model.MethodID, bool) {
	id, err := model.ParseMethodID(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_METHOD",
		})
		return model.MethodID{}, false
	}
	return id, true
}

// errorStatus maps an error to its HTTP status and response code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrCancelled):
		return http.StatusRequestTimeout, "CANCELLED"
	case errors.Is(err, ErrInvalidName):
		return http.StatusBadRequest, "INVALID_NAME"
	case errors.Is(err, model.ErrUnresolvedBinding), errors.Is(err, model.ErrUnresolvedType):
		return http.StatusNotFound, "UNRESOLVED"
	case errors.Is(err, journal.ErrNotFound):
		return http.StatusNotFound, "PLAN_NOT_FOUND"
	case errors.Is(err, ErrJournalDisabled):
		return http.StatusServiceUnavailable, "JOURNAL_DISABLED"
	case errors.Is(err, model.ErrInvalidEdit):
		return http.StatusUnprocessableEntity, "INVALID_EDIT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("code", code), slog.Any("error", err))
	} else {
		logger.Debug("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}
