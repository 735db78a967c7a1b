package logaudit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zkemail/paytox/pkg/rest"
)

const maxLimit = 1000

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

func (h *Handler) Routes() []rest.Route {
	return []rest.Route{
		rest.NewRoute(rest.GET, "v1", "/logs", h.List),
	}
}

// GET /v1/logs?service=&level=&limit=50&offset=0
func (h *Handler) List(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
		return
	}
	if limit > maxLimit {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit cannot exceed 1000"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must not be negative"})
		return
	}

	entries, err := h.repo.List(c.Request.Context(), Filter{
		Service: c.Query("service"),
		Level:   c.Query("level"),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve log entries"})
		return
	}
	c.JSON(http.StatusOK, entries)
}
