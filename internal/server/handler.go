// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hal9000y/gmail-agent/internal/agent"
	"github.com/hal9000y/gmail-agent/internal/auth"
	"github.com/hal9000y/gmail-agent/internal/logging"
)

// Error texts returned to clients.
const (
	ErrTextMissingInput     = "Missing prompt or access token."
	ErrTextNotConfigured    = "Gemini API key not configured."
	ErrTextInternal         = "Internal Server Error"
	ErrTextTimeout          = "Upstream Timeout"
	ErrTextInvalidJSON      = "Invalid JSON body."
	ErrTextMethodNotAllowed = "Method not allowed."
	ErrTextTooManyRequests  = "Too many requests."
)

const maxBodyBytes = 1 << 20

// AgentRequest is the body of POST /agent.
type AgentRequest struct {
	Prompt      string `json:"prompt"`
	AccessToken string `json:"accessToken"`
}

// AgentResponse is the success body of POST /agent.
type AgentResponse struct {
	Response string `json:"response"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type runner interface {
	Run(ctx context.Context, prompt string, cred auth.Credential) (string, error)
}

// AgentHandler serves POST /agent.
type AgentHandler struct {
	agent  runner
	logger *slog.Logger
}

// NewAgentHandler creates the /agent handler.
func NewAgentHandler(a runner, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{
		agent:  a,
		logger: logging.WithOperation(logger, "http.agent"),
	}
}

func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With(logging.RequestID(RequestIDFrom(ctx)))

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: ErrTextMethodNotAllowed})
		return
	}

	var req AgentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		logger.DebugContext(ctx, "invalid request body", logging.Err(err))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrTextInvalidJSON})
		return
	}

	cred, err := credential(r, req)
	if err != nil || req.Prompt == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ErrTextMissingInput})
		return
	}

	logger.DebugContext(ctx, "running agent", logging.Token(cred.AccessToken()))

	out, err := h.agent.Run(ctx, req.Prompt, cred)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, AgentResponse{Response: out})
	case errors.Is(err, agent.ErrModelNotConfigured):
		logger.ErrorContext(ctx, "model access is not configured")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrTextNotConfigured})
	case errors.Is(err, agent.ErrModelTimeout):
		logger.WarnContext(ctx, "agent timed out", logging.Err(err))
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{Error: ErrTextTimeout, Details: err.Error()})
	default:
		logger.ErrorContext(ctx, "agent failed", logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrTextInternal, Details: err.Error()})
	}
}

// credential prefers the body token and falls back to the bearer header.
func credential(r *http.Request, req AgentRequest) (auth.Credential, error) {
	if req.AccessToken != "" {
		return auth.NewCredential(req.AccessToken)
	}
	return auth.FromRequest(r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
