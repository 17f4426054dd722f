package handler

import (
	"log/slog"
	"net/http"

	"github.com/aiwriterpros/aiwriter/internal/auth"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/service"
)

// maxGenerateBody leaves room for the longest brief plus JSON framing.
const maxGenerateBody = service.MaxInputLength + 4<<10

// GenerateHandler runs the writing tools.
//
// Route:
//   - POST /api/generate/{tool} -> Generate
type GenerateHandler struct {
	generation service.GenerationService
	logger     *slog.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(generation service.GenerationService, logger *slog.Logger) *GenerateHandler {
	return &GenerateHandler{generation: generation, logger: logger}
}

// RegisterRoutes registers generation routes. limit wraps the handler with
// the per-user rate limiter.
func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux, requireUser, limit func(http.Handler) http.Handler) {
	mux.Handle("POST /api/generate/{tool}", requireUser(limit(http.HandlerFunc(h.Generate))))
}

// GenerateRequest is the body of POST /api/generate/{tool}.
type GenerateRequest struct {
	Input string `json:"input"`
}

// Generate produces content with the tool named in the path.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req GenerateRequest
	if err := decodeJSON(w, r, maxGenerateBody, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	gen, err := h.generation.Generate(r.Context(), domain.GenerateParams{
		UserID: user.ID,
		Tool:   domain.ToolID(r.PathValue("tool")),
		Input:  req.Input,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, gen)
}
