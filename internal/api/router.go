package api

import (
	"log/slog"
	"net/http"
	"time"

	"userdesk/internal/api/handler"
	"userdesk/internal/app/service"
	"userdesk/internal/platform/logging"
	"userdesk/internal/view"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const requestTimeout = 60 * time.Second

func NewRouter(
	userService *service.UserService,
	renderer *view.Renderer,
	wsHandler http.Handler,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(logging.HTTPMiddleware(logger))

	pageHandler := handler.NewPageHandler(userService, renderer)
	r.Use(recoverer(pageHandler.Fallback))
	r.NotFound(pageHandler.NotFound)
	r.MethodNotAllowed(pageHandler.NotFound)

	// The websocket lives outside the timeout group: a session may stay open
	// far longer than any request.
	r.Handle("/ws", wsHandler)

	r.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		handler.NewHealthHandler(userService).RegisterRoutes(r)
		pageHandler.RegisterRoutes(r)

		userHandler := handler.NewUserHandler(userService)
		r.Route("/api", userHandler.RegisterRoutes)
	})

	return r
}
