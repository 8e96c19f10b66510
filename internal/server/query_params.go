package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	ledgerdomain "github.com/creatorhq/creditd/internal/ledger/domain"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

func parseLedgerListQuery(c *gin.Context) (ledgerdomain.ListRequest, error) {
	req := ledgerdomain.ListRequest{
		WorkspaceID: c.Param("workspace_id"),
		Kind:        strings.TrimSpace(c.Query("kind")),
		PageToken:   strings.TrimSpace(c.Query("page_token")),
	}

	since, err := parseOptionalTime(c.Query("since"))
	if err != nil {
		return req, newValidationError("since", "invalid_time", "invalid timestamp")
	}
	if since != nil {
		req.Since = *since
	}

	pageSize, err := parseOptionalInt64(c.Query("page_size"))
	if err != nil {
		return req, newValidationError("page_size", "invalid_page_size", "invalid page size")
	}
	if pageSize != nil {
		req.PageSize = int(*pageSize)
	}

	return req, nil
}

func parseOptionalInt64(value string) (*int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}
