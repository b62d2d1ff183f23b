package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
)

const (
	errInternalServer    = "Internal server error"
	errJobNotFound       = "Job not found"
	errDuplicateJob      = "Action is already queued for this journey"
	errTemplateNotFound  = "Journey template not found"
	errEmployeeNotFound  = "Employee not found"
	errInstanceNotFound  = "Employee journey not found"
	errDuplicateEmployee = "Employee with this email already exists"
	errInvalidState      = "Invalid state value"
	errInvalidStartDate  = "startDate must be a date or an RFC 3339 timestamp"
)

// writeError maps domain errors to a status and a client-safe message.
// Anything unrecognised is logged and reported as a 500.
func writeError(ctx *gin.Context, logger *slog.Logger, op string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, domain.ErrJobNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errJobNotFound})
	case errors.Is(err, domain.ErrTemplateNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errTemplateNotFound})
	case errors.Is(err, domain.ErrEmployeeNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errEmployeeNotFound})
	case errors.Is(err, domain.ErrInstanceNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errInstanceNotFound})
	case errors.Is(err, domain.ErrDuplicateEmployee):
		ctx.JSON(http.StatusConflict, gin.H{"error": errDuplicateEmployee})
	case errors.Is(err, domain.ErrDuplicateJob):
		ctx.JSON(http.StatusConflict, gin.H{"error": errDuplicateJob})
	case errors.Is(err, domain.ErrInvalidOperation):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTemplate),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidInstance),
		errors.Is(err, domain.ErrInvalidEmployee):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.ErrorContext(ctx.Request.Context(), op, "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

// bindError reports a request body that failed to decode or bind. Action
// configs decode into typed variants, so their errors arrive as
// validation errors.
func bindError(ctx *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}
	ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
