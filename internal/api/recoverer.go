package api

import (
	"errors"
	"net/http"
	"runtime/debug"

	"userdesk/internal/platform/logging"
)

// recoverer is chi's middleware.Recoverer with the response swapped for
// fallback, which renders the not-found view.
func recoverer(fallback func(w http.ResponseWriter, r *http.Request, status int)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					// Let net/http abort the response silently.
					panic(rvr)
				}

				logging.FromContext(r.Context()).Error("panic recovered",
					"panic", rvr,
					"stack", string(debug.Stack()),
				)

				// A hijacked websocket connection has no response to write.
				if r.Header.Get("Connection") != "Upgrade" {
					fallback(w, r, http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
