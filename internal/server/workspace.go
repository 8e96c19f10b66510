package server

import (
	"net/http"
	"time"

	"github.com/creatorhq/creditd/internal/plan"
	workspacedomain "github.com/creatorhq/creditd/internal/workspace/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ProvisionWorkspace(c *gin.Context) {
	var req workspacedomain.ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	overview, err := s.workspaceSvc.Provision(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, overview)
}

func (s *Server) GetWorkspaceOverview(c *gin.Context) {
	overview, err := s.workspaceSvc.Overview(c.Request.Context(), c.Param("workspace_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

type changePlanRequest struct {
	Plan string `json:"plan"`
}

func (s *Server) ChangeWorkspacePlan(c *gin.Context) {
	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	overview, err := s.workspaceSvc.ChangePlan(c.Request.Context(), c.Param("workspace_id"), plan.ParseTier(req.Plan))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

type advancePeriodRequest struct {
	At time.Time `json:"at"`
}

func (s *Server) AdvanceWorkspacePeriod(c *gin.Context) {
	var req advancePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.At.IsZero() {
		AbortWithError(c, newValidationError("at", "invalid_at", "period start timestamp is required"))
		return
	}

	if err := s.workspaceSvc.AdvancePeriod(c.Request.Context(), c.Param("workspace_id"), req.At); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ResetWorkspaceDaily(c *gin.Context) {
	if err := s.workspaceSvc.ResetDaily(c.Request.Context(), c.Param("workspace_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
