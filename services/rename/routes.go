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
	"net/http"

	"github.com/AleutianAI/AleutianRename/services/rename/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"
)

// serviceName identifies the API in otelgin spans.
const serviceName = "aleutian-rename"

// RegisterRoutes registers all rename routes with the router.
//
// Description:
//
//	Registers all /v1/rename/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	POST /v1/rename/ripple - Ripple set of a method
//	POST /v1/rename/scope - Search scope of a method or its ripple set
//	POST /v1/rename/plan - Evaluate a rename
//	GET  /v1/rename/plans - List recorded plans
//	GET  /v1/rename/plans/:id - Load a recorded plan
//	GET  /v1/rename/health - Health check
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	rename := rg.Group("/rename")
	{
		rename.POST("/ripple", handlers.HandleRipple)
		rename.POST("/scope", handlers.HandleScope)
		rename.POST("/plan", handlers.HandlePlan)

		rename.GET("/plans", handlers.HandleListPlans)
		rename.GET("/plans/:id", handlers.HandleGetPlan)

		rename.GET("/health", handlers.HandleHealth)
	}
}

// NewRouter builds the API engine with recovery, request IDs, tracing,
// metrics and rate limiting middleware.
func NewRouter(svc *Service, cfg config.ServerConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(MetricsMiddleware())
	if cfg.RateLimitRPS > 0 {
		router.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), max(cfg.RateLimitBurst, 1))))
	}

	v1 := router.Group("/v1")
	RegisterRoutes(v1, NewHandlers(svc))
	return router
}

// RequestIDMiddleware echoes the caller's X-Request-ID, or assigns a new
// one, on every response. Handlers read it back with getOrCreateRequestID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// RateLimitMiddleware rejects requests beyond the limiter's rate with 429.
// Health checks are never limited.
func RateLimitMiddleware(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "/v1/rename/health" {
			c.Next()
			return
		}
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: "rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
			return
		}
		c.Next()
	}
}
