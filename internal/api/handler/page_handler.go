package handler

import (
	"errors"
	"net/http"

	"userdesk/internal/app/service"
	"userdesk/internal/common"
	"userdesk/internal/platform/logging"
	"userdesk/internal/view"

	"github.com/go-chi/chi/v5"
)

// PageHandler serves the HTML views.
type PageHandler struct {
	userService *service.UserService
	renderer    *view.Renderer
}

func NewPageHandler(us *service.UserService, renderer *view.Renderer) *PageHandler {
	return &PageHandler{userService: us, renderer: renderer}
}

func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/chat", h.chat)
}

func (h *PageHandler) index(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Admin(r.Context())
	if errors.Is(err, common.ErrNotFound) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("load admin for index page", "error", err)
		h.Fallback(w, r, http.StatusInternalServerError)
		return
	}
	h.page(w, r, http.StatusOK, view.Index, view.Data{Request: view.RequestInfoFrom(r), User: user})
}

func (h *PageHandler) chat(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, http.StatusOK, view.Chat, view.Data{Request: view.RequestInfoFrom(r)})
}

// NotFound renders the not-found view. It also answers unmatched routes and
// disallowed methods.
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Fallback(w, r, http.StatusNotFound)
}

// Fallback renders the not-found view with status. Failed page loads and
// recovered panics end here as well.
func (h *PageHandler) Fallback(w http.ResponseWriter, r *http.Request, status int) {
	h.page(w, r, status, view.NotFound, view.Data{Request: view.RequestInfoFrom(r)})
}

func (h *PageHandler) page(w http.ResponseWriter, r *http.Request, status int, name string, data view.Data) {
	if err := h.renderer.Page(w, status, name, data); err != nil {
		logging.FromContext(r.Context()).Error("render page", "template", name, "error", err)
		http.Error(w, common.ErrInternalServer.Error(), http.StatusInternalServerError)
	}
}
