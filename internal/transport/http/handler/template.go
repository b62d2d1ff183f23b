package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

type TemplateHandler struct {
	templates *usecase.TemplateUsecase
	logger    *slog.Logger
}

func NewTemplateHandler(templates *usecase.TemplateUsecase, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{templates: templates, logger: logger.With("component", "template_handler")}
}

type createTemplateRequest struct {
	Name        string          `json:"name"        binding:"required"`
	Description string          `json:"description"`
	Actions     []domain.Action `json:"actions"     binding:"required"`
}

func (h *TemplateHandler) Create(ctx *gin.Context) {
	var req createTemplateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	tmpl, err := h.templates.Create(ctx.Request.Context(), usecase.CreateTemplateInput{
		Name:        req.Name,
		Description: req.Description,
		Actions:     req.Actions,
	})
	if err != nil {
		writeError(ctx, h.logger, "create template", err)
		return
	}

	ctx.JSON(http.StatusCreated, toTemplateResponse(tmpl))
}

func (h *TemplateHandler) GetByID(ctx *gin.Context) {
	tmpl, err := h.templates.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, "get template", err)
		return
	}
	ctx.JSON(http.StatusOK, toTemplateResponse(tmpl))
}

func (h *TemplateHandler) List(ctx *gin.Context) {
	list, err := h.templates.List(ctx.Request.Context(), queryLimit(ctx))
	if err != nil {
		writeError(ctx, h.logger, "list templates", err)
		return
	}

	resp := make([]templateResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, toTemplateResponse(t))
	}
	ctx.JSON(http.StatusOK, gin.H{"journeys": resp})
}

// queryLimit returns 0 for a missing or malformed limit, which the
// usecases replace with their default.
func queryLimit(ctx *gin.Context) int {
	n, err := strconv.Atoi(ctx.Query("limit"))
	if err != nil {
		return 0
	}
	return n
}
