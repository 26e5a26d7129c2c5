package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"tributary/internal/models"
	"tributary/internal/services"
	"tributary/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// APIHandler exposes job submission and status over HTTP.
type APIHandler struct {
	Jobs *services.JobService
}

func NewAPIHandler(jobs *services.JobService) *APIHandler {
	return &APIHandler{Jobs: jobs}
}

// SubmitJobRequest is the POST /jobs body.
type SubmitJobRequest struct {
	TenantID  string   `json:"tenant_id"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	DataTypes []string `json:"data_types"`
}

// SubmitJobHandler validates the request and creates+enqueues the job.
// Invalid input is rejected here, before any Job row is created.
func (h *APIHandler) SubmitJobHandler(c *gin.Context) {
	var req SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	job, err := h.Jobs.Submit(c.Request.Context(), services.SubmitJobParams{
		TenantID:  req.TenantID,
		Start:     req.StartDate,
		End:       req.EndDate,
		DataTypes: req.DataTypes,
	})
	if err != nil {
		if isValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("failed to submit job: %v", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": job})
}

// GetJobHandler returns the full job record for pollers.
func (h *APIHandler) GetJobHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, "invalid job id")
		return
	}

	job, err := h.Jobs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, "job not found")
			return
		}
		Internal(c, fmt.Sprintf("failed to load job: %v", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": job})
}

// ListJobsHandler returns a tenant's recent jobs.
func (h *APIHandler) ListJobsHandler(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	jobs, err := h.Jobs.List(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		if isValidationError(err) {
			BadRequest(c, err.Error())
			return
		}
		Internal(c, fmt.Sprintf("failed to list jobs: %v", err))
		return
	}
	if jobs == nil {
		jobs = []*models.Job{}
	}

	c.JSON(http.StatusOK, gin.H{"data": jobs})
}

func isValidationError(err error) bool {
	return errors.Is(err, models.ErrInvalidDateRange) ||
		errors.Is(err, models.ErrNoDataTypes) ||
		errors.Is(err, models.ErrNoTenant)
}
