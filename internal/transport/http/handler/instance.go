package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

type InstanceHandler struct {
	journeys *usecase.JourneyUsecase
	logger   *slog.Logger
}

func NewInstanceHandler(journeys *usecase.JourneyUsecase, logger *slog.Logger) *InstanceHandler {
	return &InstanceHandler{journeys: journeys, logger: logger.With("component", "instance_handler")}
}

type createInstanceRequest struct {
	EmployeeID      string               `json:"employeeId"        binding:"required"`
	TemplateID      string               `json:"journeyTemplateId" binding:"required"`
	StartDate       string               `json:"startDate"         binding:"required"`
	ActionSchedules map[string]time.Time `json:"actionSchedules"`
}

func (h *InstanceHandler) Create(ctx *gin.Context) {
	var req createInstanceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}
	enroll(ctx, h.journeys, h.logger, req.EmployeeID, req.TemplateID, req.StartDate, req.ActionSchedules)
}

func (h *InstanceHandler) GetByID(ctx *gin.Context) {
	inst, err := h.journeys.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, "get employee journey", err)
		return
	}
	ctx.JSON(http.StatusOK, toInstanceResponse(inst))
}

// enroll accepts startDate as a full timestamp or a bare date.
func enroll(
	ctx *gin.Context,
	journeys *usecase.JourneyUsecase,
	logger *slog.Logger,
	employeeID, templateID, startDate string,
	schedules map[string]time.Time,
) {
	start, err := parseStartDate(startDate)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidStartDate, "field": "startDate"})
		return
	}

	inst, err := journeys.Enroll(ctx.Request.Context(), usecase.EnrollInput{
		EmployeeID:      employeeID,
		TemplateID:      templateID,
		StartDate:       start,
		ActionSchedules: schedules,
	})
	if err != nil {
		writeError(ctx, logger, "enroll employee", err)
		return
	}
	ctx.JSON(http.StatusCreated, toInstanceResponse(inst))
}

func parseStartDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
