package auth

import (
	"log/slog"
	"net/http"
)

// HTTPHandler rejects requests without a bearer credential. next reads the
// credential from the request itself, so every request acts with its own.
type HTTPHandler struct {
	next   http.Handler
	logger *slog.Logger
}

// NewHTTPHandler wraps next with bearer credential extraction.
func NewHTTPHandler(next http.Handler, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{next: next, logger: logger}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if _, err := FromRequest(r); err != nil {
		h.logger.Debug("request without bearer credential", slog.String("path", r.URL.Path))
		w.Header().Set("WWW-Authenticate", `Bearer realm="gmail-agent"`)
		http.Error(w, "Token not found", http.StatusUnauthorized)
		return
	}

	h.next.ServeHTTP(w, r)
}
