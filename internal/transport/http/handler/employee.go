package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

type EmployeeHandler struct {
	employees *usecase.EmployeeUsecase
	journeys  *usecase.JourneyUsecase
	logger    *slog.Logger
}

func NewEmployeeHandler(employees *usecase.EmployeeUsecase, journeys *usecase.JourneyUsecase, logger *slog.Logger) *EmployeeHandler {
	return &EmployeeHandler{
		employees: employees,
		journeys:  journeys,
		logger:    logger.With("component", "employee_handler"),
	}
}

type createEmployeeRequest struct {
	Name       string     `json:"name"       binding:"required"`
	Email      string     `json:"email"      binding:"required"`
	Phone      string     `json:"phone"`
	Department string     `json:"department"`
	Position   string     `json:"position"`
	HireDate   *time.Time `json:"hireDate"`
}

func (h *EmployeeHandler) Create(ctx *gin.Context) {
	var req createEmployeeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}

	input := usecase.CreateEmployeeInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Department: req.Department,
		Position:   req.Position,
	}
	if req.HireDate != nil {
		input.HireDate = *req.HireDate
	}

	emp, err := h.employees.Create(ctx.Request.Context(), input)
	if err != nil {
		writeError(ctx, h.logger, "create employee", err)
		return
	}
	ctx.JSON(http.StatusCreated, toEmployeeResponse(emp))
}

func (h *EmployeeHandler) GetByID(ctx *gin.Context) {
	emp, err := h.employees.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, "get employee", err)
		return
	}
	ctx.JSON(http.StatusOK, toEmployeeResponse(emp))
}

func (h *EmployeeHandler) List(ctx *gin.Context) {
	list, err := h.employees.List(ctx.Request.Context(), queryLimit(ctx))
	if err != nil {
		writeError(ctx, h.logger, "list employees", err)
		return
	}

	resp := make([]employeeResponse, 0, len(list))
	for _, e := range list {
		resp = append(resp, toEmployeeResponse(e))
	}
	ctx.JSON(http.StatusOK, gin.H{"employees": resp})
}

// Journeys lists every journey the employee was enrolled in.
func (h *EmployeeHandler) Journeys(ctx *gin.Context) {
	list, err := h.journeys.ListByEmployee(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, "list employee journeys", err)
		return
	}

	resp := make([]instanceResponse, 0, len(list))
	for _, j := range list {
		resp = append(resp, toInstanceResponse(j))
	}
	ctx.JSON(http.StatusOK, gin.H{"employeeJourneys": resp})
}

type enrollEmployeeRequest struct {
	TemplateID      string               `json:"journeyTemplateId" binding:"required"`
	StartDate       string               `json:"startDate"         binding:"required"`
	ActionSchedules map[string]time.Time `json:"actionSchedules"`
}

// Enroll starts a journey for the employee named in the path.
func (h *EmployeeHandler) Enroll(ctx *gin.Context) {
	var req enrollEmployeeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		bindError(ctx, err)
		return
	}
	enroll(ctx, h.journeys, h.logger, ctx.Param("id"), req.TemplateID, req.StartDate, req.ActionSchedules)
}
