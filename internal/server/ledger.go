package server

import (
	"net/http"

	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

type grantRequest struct {
	Kind   string `json:"kind"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	Ref    string `json:"ref"`
}

func (s *Server) GrantCredits(c *gin.Context) {
	var req grantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ledgerSvc.Grant(c.Request.Context(), ledgerdomain.GrantRequest{
		WorkspaceID: c.Param("workspace_id"),
		Kind:        req.Kind,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Ref:         req.Ref,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) ListLedgerEntries(c *gin.Context) {
	req, err := parseLedgerListQuery(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.ledgerSvc.Entries(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
