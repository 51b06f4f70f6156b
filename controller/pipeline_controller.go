// controller/pipeline_controller.go
package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/audit"
	gk_errors "github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/errors"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/model"
	"github.com/Milip-bit/AWS-CICD-Secure-Cloud-Lab/util"
)

// IPipelineService is the single entry point of the gatekeeper: one change
// in, one terminal outcome out.
type IPipelineService interface {
	Run(ctx context.Context, cd model.ChangeDescriptor) model.Outcome
}

type PipelineController struct {
	pipelineService IPipelineService
	auditService    audit.Service
}

func NewPipelineController(pipelineService IPipelineService, auditService audit.Service) *PipelineController {
	return &PipelineController{
		pipelineService: pipelineService,
		auditService:    auditService,
	}
}

// RegisterRoutes registers the API routes
func (pc *PipelineController) RegisterRoutes(r *gin.RouterGroup) {
	pipelines := r.Group("/pipelines")
	{
		pipelines.POST("", pc.RunPipeline)
		pipelines.GET("/outcomes", pc.QueryOutcomes)
	}
}

// RunPipeline endpoint: the CI trigger submits a change descriptor and the
// call returns the run's terminal outcome.
func (pc *PipelineController) RunPipeline(c *gin.Context) {
	var cd model.ChangeDescriptor
	if err := c.ShouldBindJSON(&cd); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid change descriptor", err)
		return
	}
	if submitter := util.GetSubmitterFromContext(c); submitter != "" {
		cd.Submitter = submitter
	}

	outcome := pc.pipelineService.Run(c.Request.Context(), cd)

	// Every terminal state returns the full outcome document; the status
	// code just mirrors the verdict for dumb CI clients.
	status := http.StatusOK
	switch outcome.State {
	case "BLOCKED":
		status = http.StatusForbidden
	case "FAILED":
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, outcome)
}

// QueryOutcomes endpoint
func (pc *PipelineController) QueryOutcomes(c *gin.Context) {
	from, err := parseTimeParam(c.DefaultQuery("from", time.Now().Add(-24*time.Hour).Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid from time", err)
		return
	}
	to, err := parseTimeParam(c.DefaultQuery("to", time.Now().Format(time.RFC3339)))
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid to time", err)
		return
	}

	records, err := pc.auditService.Query(c.Request.Context(), from, to,
		c.Query("environment"), c.Query("state"))
	if err != nil {
		util.RespondWithError(c, http.StatusInternalServerError, "Failed to query outcomes", gk_errors.ErrInternalServer)
		return
	}
	c.JSON(http.StatusOK, records)
}

func parseTimeParam(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, raw)
}
