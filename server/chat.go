package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/framepoint/framepoint/agent"
)

// chatRequest is the turn request body. VideoID is the client's currently
// selected video; the scope router may override it.
type chatRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
	VideoID  string `json:"video_id"`
}

// handleChat streams one conversation turn as text/plain with in-band
// markers. The status code is committed before the first byte, so failures
// past that point arrive inside the stream as an Error line.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid request body", "code": http.StatusBadRequest})
		return
	}
	if strings.TrimSpace(req.ThreadID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "thread_id is required", "code": http.StatusBadRequest})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "query is required", "code": http.StatusBadRequest})
		return
	}

	events, err := s.turns.StreamTurn(c.Request.Context(), agent.Turn{
		Query:    req.Query,
		ThreadID: req.ThreadID,
		VideoID:  req.VideoID,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, agent.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"message": err.Error(), "code": status})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)

	var writeErr error
	for ev := range events {
		if writeErr != nil {
			continue // drain so the turn goroutine can finish
		}
		if _, err := io.WriteString(c.Writer, ev.Render()); err != nil {
			writeErr = err
			continue
		}
		c.Writer.Flush()
	}
}
