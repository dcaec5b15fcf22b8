package handler

import (
	"net/http"
	"net/url"

	"userdesk/internal/app/service"
	"userdesk/internal/common"
	"userdesk/internal/domain/model"
	"userdesk/internal/platform/logging"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(us *service.UserService) *UserHandler {
	return &UserHandler{userService: us}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/home", h.home)                         // GET /api/home
	r.Get("/create_user_by_get", h.createUserByGet) // GET /api/create_user_by_get?username=..&password=..
}

func (h *UserHandler) home(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.Admin(r.Context())
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) createUserByGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := service.CreateUserRequest{
		Username: q.Get("username"),
		Password: q.Get("password"),
		Rights:   queryOr(q, "rights", model.FlagOff),
		Enabled:  queryOr(q, "enabled", model.FlagOff),
	}

	user, err := h.userService.CreateIfAbsent(r.Context(), req)
	if err != nil {
		respondWithErr(w, r, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

// queryOr returns the first value of key, or fallback when key is absent.
// A present but empty value is returned as is.
func queryOr(q url.Values, key, fallback string) string {
	if values, ok := q[key]; ok && len(values) > 0 {
		return values[0]
	}
	return fallback
}

// respondWithErr logs server-side failures before writing the JSON error.
func respondWithErr(w http.ResponseWriter, r *http.Request, err error) {
	if common.HTTPStatusFromError(err) >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "error", err)
	}
	common.RespondWithErr(w, err)
}
