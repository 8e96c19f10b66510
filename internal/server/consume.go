package server

import (
	"net/http"

	entitlementdomain "github.com/creatorhq/creditd/internal/entitlement/domain"
	"github.com/gin-gonic/gin"
)

type consumeRequest struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
	Ref    string `json:"ref"`
}

func (s *Server) ConsumeCredits(c *gin.Context) {
	var req consumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.entitlementSvc.CheckAndConsume(c.Request.Context(), entitlementdomain.ConsumeRequest{
		WorkspaceID: c.Param("workspace_id"),
		Kind:        req.Kind,
		Amount:      req.Amount,
		Ref:         req.Ref,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
