package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// getStatus returns the controller snapshot: cameras recorded last cycle,
// pipeline state and disk usage.
func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Status())
}

// listArchives returns the archive ledger, newest first.
func (s *Server) listArchives(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	records, err := s.db.ListArchives(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"archives": records,
		"count":    len(records),
	})
}
