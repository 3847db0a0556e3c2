package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lveselov/remedy/internal/buildlog"
	"github.com/lveselov/remedy/internal/healing"
	"go.uber.org/zap"
)

// handleResolve starts a healing attempt for the project. The attempt runs
// on its own goroutine so attempts for different projects proceed
// concurrently; callers observe progress through the status endpoint.
func (s *Server) handleResolve(c *gin.Context) {
	projectID := c.Param("id")
	credential := c.GetHeader(callerHeader)
	if credential == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing caller credential"})
		return
	}

	// Authorization and project resolution happen inside Run; surface the
	// fast failures synchronously by probing the directory first.
	if _, err := s.directory.Project(c.Request.Context(), projectID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// The attempt id is minted here so the caller can correlate the
	// eventual report with this trigger.
	attemptID := uuid.NewString()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
		defer cancel()

		_, err := s.healer.RunAttempt(ctx, projectID, credential, attemptID)
		if err != nil {
			var stageErr *healing.StageError
			if errors.As(err, &stageErr) {
				s.log.Warn("healing attempt stopped",
					zap.String("project", stageErr.ProjectID),
					zap.String("attempt", attemptID),
					zap.String("stage", stageErr.Stage.String()),
					zap.Error(stageErr.Err))
				return
			}
			s.log.Warn("healing attempt rejected", zap.String("project", projectID), zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"project_id": projectID, "attempt_id": attemptID, "status": "started"})
}

// handleStatus reports the last recorded healing stage for the project.
func (s *Server) handleStatus(c *gin.Context) {
	projectID := c.Param("id")

	state, err := s.healer.Current(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"project_id": projectID,
		"stage":      state.Stage.String(),
		"terminal":   state.Stage.Terminal(),
	}
	if !state.UpdatedAt.IsZero() {
		resp["updated_at"] = state.UpdatedAt
	}
	c.JSON(http.StatusOK, resp)
}

// handleEvents returns the stage audit trail, newest first.
func (s *Server) handleEvents(c *gin.Context) {
	projectID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := s.archive.Events(c.Request.Context(), projectID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": projectID, "events": events})
}

// handleReports lists persisted deployment reports for the project.
func (s *Server) handleReports(c *gin.Context) {
	projectID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	reports, err := s.archive.ListReports(c.Request.Context(), projectID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"project_id": projectID, "reports": reports})
}

// handleBuildDetail fetches a build's console log and returns its parsed
// step hierarchy alongside the build-level result. Steps carry a fixed
// per-step status, so the build outcome comes from the build itself.
func (s *Server) handleBuildDetail(c *gin.Context) {
	projectID := c.Param("id")
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid build number"})
		return
	}

	project, err := s.directory.Project(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	console, err := s.builds.ConsoleLog(c.Request.Context(), project.JenkinsJob, number)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	result, err := s.builds.BuildResult(c.Request.Context(), project.JenkinsJob, number)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"project_id": projectID,
		"build":      number,
		"result":     result,
		"steps":      buildlog.Parse(console),
	})
}
