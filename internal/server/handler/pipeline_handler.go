package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"tradepilot/internal/common"
	"tradepilot/internal/server/middleware"
	"tradepilot/internal/server/model"
	"tradepilot/internal/server/service"
	"tradepilot/pkg/flow"
)

type PipelineHandler struct {
	svc *service.PipelineService
}

func NewPipelineHandler(svc *service.PipelineService) *PipelineHandler {
	return &PipelineHandler{svc: svc}
}

// PipelineBrief is one row of the pipeline list.
type PipelineBrief struct {
	ID             string              `json:"id"`
	Name           string              `json:"name"`
	Status         flow.PipelineStatus `json:"status"`
	ExecutionCount int64               `json:"execution_count"`
	LastExecuted   string              `json:"last_executed,omitempty"`
	NextExecution  string              `json:"next_execution,omitempty"`
}

func briefOf(p *model.Pipeline) PipelineBrief {
	brief := PipelineBrief{
		ID:             p.ID,
		Name:           p.Name,
		Status:         p.Status,
		ExecutionCount: p.ExecutionCount,
	}
	if p.LastExecuted != nil {
		brief.LastExecuted = p.LastExecuted.Format("2006-01-02 15:04:05")
	}
	if next := p.Metadata.Data().NextExecution; next != nil {
		brief.NextExecution = next.Format("2006-01-02 15:04:05")
	}
	return brief
}

// CreatePipeline accepts the definition as YAML or JSON.
func (h *PipelineHandler) CreatePipeline(c *gin.Context) {
	content, err := c.GetRawData()
	if err != nil || len(content) == 0 {
		common.Error(c, common.NewErrNo(common.RequestInvalid))
		return
	}

	cfg, err := flow.ParsePipelineConfig(content)
	if err != nil {
		common.Error(c, common.WithMsg(common.PipelineInvalid, err.Error()))
		return
	}

	resp, err := h.svc.Create(c, middleware.UserID(c), cfg)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, resp)
}

func (h *PipelineHandler) ListPipelines(c *gin.Context) {
	pipelines, err := h.svc.List(c, middleware.UserID(c))
	if err != nil {
		common.Error(c, err)
		return
	}
	briefs := make([]PipelineBrief, 0, len(pipelines))
	for _, p := range pipelines {
		briefs = append(briefs, briefOf(p))
	}
	common.Success(c, briefs)
}

func (h *PipelineHandler) GetPipeline(c *gin.Context) {
	pipeline, err := h.svc.Get(c, middleware.UserID(c), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, pipeline)
}

func (h *PipelineHandler) PausePipeline(c *gin.Context) {
	if err := h.svc.Pause(c, middleware.UserID(c), c.Param("id")); err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, nil)
}

func (h *PipelineHandler) ResumePipeline(c *gin.Context) {
	jobID, err := h.svc.Resume(c, middleware.UserID(c), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, common.CreatePipelineResponse{ID: c.Param("id"), JobID: jobID})
}

func (h *PipelineHandler) TriggerPipeline(c *gin.Context) {
	entry, err := h.svc.Run(c, middleware.UserID(c), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, entry)
}

func (h *PipelineHandler) DeletePipeline(c *gin.Context) {
	if err := h.svc.Delete(c, middleware.UserID(c), c.Param("id")); err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, nil)
}

func (h *PipelineHandler) ListExecutionHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			common.Error(c, common.NewErrNo(common.RequestInvalid))
			return
		}
		limit = n
	}
	entries, err := h.svc.History(c, middleware.UserID(c), c.Param("id"), limit)
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, entries)
}

func (h *PipelineHandler) ListPlans(c *gin.Context) {
	records, err := h.svc.Plans(c, middleware.UserID(c), c.Param("id"))
	if err != nil {
		common.Error(c, err)
		return
	}
	common.Success(c, records)
}
