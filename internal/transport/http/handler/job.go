package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ErlanBelekov/journey-engine/internal/domain"
	"github.com/ErlanBelekov/journey-engine/internal/usecase"
)

type JobHandler struct {
	queue  *usecase.QueueUsecase
	logger *slog.Logger
}

func NewJobHandler(queue *usecase.QueueUsecase, logger *slog.Logger) *JobHandler {
	return &JobHandler{queue: queue, logger: logger.With("component", "job_handler")}
}

func (h *JobHandler) List(ctx *gin.Context) {
	state := domain.JobState(ctx.Query("state"))
	if state != "" && !state.Valid() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": errInvalidState, "field": "state"})
		return
	}

	jobs, err := h.queue.ListJobs(ctx.Request.Context(), usecase.ListJobsInput{
		State:             state,
		EmployeeJourneyID: ctx.Query("employeeJourneyId"),
		Limit:             queryLimit(ctx),
	})
	if err != nil {
		writeError(ctx, h.logger, "list jobs", err)
		return
	}

	resp := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}
	ctx.JSON(http.StatusOK, gin.H{"jobs": resp})
}

func (h *JobHandler) GetByID(ctx *gin.Context) {
	job, err := h.queue.GetJob(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, "get job", err)
		return
	}
	ctx.JSON(http.StatusOK, toJobResponse(job))
}

// Remove deletes a job that is not mid-dispatch.
func (h *JobHandler) Remove(ctx *gin.Context) {
	if err := h.queue.RemoveJob(ctx.Request.Context(), ctx.Param("id")); err != nil {
		writeError(ctx, h.logger, "remove job", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *JobHandler) Clear(ctx *gin.Context) {
	n, err := h.queue.ClearJobs(ctx.Request.Context())
	if err != nil {
		writeError(ctx, h.logger, "clear jobs", err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"removed": n})
}

func (h *JobHandler) Attempts(ctx *gin.Context) {
	attempts, err := h.queue.Attempts(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, h.logger, "list job attempts", err)
		return
	}

	resp := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		resp = append(resp, attemptResponse{
			ID:          a.ID,
			JobID:       a.JobID,
			AttemptNum:  a.AttemptNum,
			WorkerID:    a.WorkerID,
			StartedAt:   a.StartedAt,
			CompletedAt: a.CompletedAt,
			StatusCode:  a.StatusCode,
			Error:       a.Error,
			DurationMS:  a.DurationMS,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"attempts": resp})
}

type queueStatsResponse struct {
	Waiting   int       `json:"waiting"`
	Active    int       `json:"active"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// Stats reports job counts per state.
func (h *JobHandler) Stats(ctx *gin.Context) {
	counts, err := h.queue.Counts(ctx.Request.Context())
	if err != nil {
		writeError(ctx, h.logger, "queue stats", err)
		return
	}

	resp := queueStatsResponse{
		Waiting:   counts[domain.JobWaiting],
		Active:    counts[domain.JobActive],
		Completed: counts[domain.JobCompleted],
		Failed:    counts[domain.JobFailed],
		Timestamp: time.Now().UTC(),
	}
	resp.Total = resp.Waiting + resp.Active + resp.Completed + resp.Failed
	ctx.JSON(http.StatusOK, resp)
}
