package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/trackline/backend/api/handler"
	"github.com/trackline/backend/api/ws"
	"github.com/trackline/backend/internal/middleware"
)

type Handlers struct {
	Auth      *apiHandler.AuthHandler
	Team      *apiHandler.TeamHandler
	Task      *apiHandler.TaskHandler
	Dashboard *apiHandler.DashboardHandler
	Health    *apiHandler.HealthHandler
	Gateway   *ws.Gateway
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler, limiter *middleware.RateLimiter) *router.Router {
	r := router.New()

	limited := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		if limiter == nil {
			return h
		}
		return limiter.Handler(h)
	}
	protected := func(h fasthttp.RequestHandler) fasthttp.RequestHandler {
		return limited(authMiddleware(h))
	}

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/auth/register", limited(handlers.Auth.Register))
	r.POST("/api/auth/login", limited(handlers.Auth.Login))
	r.POST("/api/auth/refresh-token", limited(handlers.Auth.Refresh))
	r.POST("/api/auth/logout", protected(handlers.Auth.Logout))
	r.GET("/api/auth/profile", protected(handlers.Auth.Profile))

	// Team routes
	r.GET("/api/teams", protected(handlers.Team.List))
	r.POST("/api/teams", protected(handlers.Team.Create))

	// Task routes
	r.GET("/api/tasks", protected(handlers.Task.List))
	r.POST("/api/tasks", protected(handlers.Task.Create))
	r.GET("/api/tasks/{taskId}", protected(handlers.Task.Get))
	r.PUT("/api/tasks/{taskId}", protected(handlers.Task.Update))
	r.DELETE("/api/tasks/{taskId}", protected(handlers.Task.Delete))
	r.POST("/api/tasks/{taskId}/comments", protected(handlers.Task.AddComment))
	r.POST("/api/tasks/{taskId}/subtasks", protected(handlers.Task.AddSubtask))
	r.PUT("/api/tasks/{taskId}/subtasks/{subtaskId}", protected(handlers.Task.UpdateSubtask))
	r.DELETE("/api/tasks/{taskId}/subtasks/{subtaskId}", protected(handlers.Task.RemoveSubtask))

	// Dashboard
	r.GET("/api/dashboard", protected(handlers.Dashboard.Get))

	// Realtime gateway authenticates on its own via the token query parameter.
	r.GET("/ws", handlers.Gateway.Handle)

	return r
}
