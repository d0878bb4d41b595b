package api

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resumeforge/resumeforge/internal/generator"
	"github.com/resumeforge/resumeforge/pkg/errors"
)

// handleGenerate runs one export job and streams the PDF back
func (s *Server) handleGenerate(c *gin.Context) {
	var req generator.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, errors.CategoryValidation, "request body is not a valid generation request")
		return
	}
	req.RequestID = requestID(c)

	result, err := s.generation.Generate(c.Request.Context(), req)
	if err != nil {
		s.respondGenerationError(c, err)
		return
	}

	opts := req.Options.Normalize()
	filename := opts.FilenameHint + ".pdf"

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Generation-Strategy", string(result.Strategy))
	c.Header("X-Generation-Duration-Ms", fmt.Sprintf("%d", result.Duration.Milliseconds()))
	c.Header("X-Generation-Pages", fmt.Sprintf("%d", result.PageCount))
	c.Data(http.StatusOK, "application/pdf", result.PDF)
}

func (s *Server) respondGenerationError(c *gin.Context, err error) {
	var failure *generator.Failure
	if stderrors.As(err, &failure) {
		status := http.StatusBadGateway
		switch failure.Classified.Category {
		case errors.CategoryContent, errors.CategoryValidation:
			status = http.StatusUnprocessableEntity
		}

		var suggestions []string
		if s.health != nil {
			suggestions = s.health.Report().Recommendations
		}

		respondFailure(c, status, failure, suggestions)
		return
	}

	if classified, ok := errors.AsClassified(err); ok && classified.Category == errors.CategoryValidation {
		respondError(c, http.StatusBadRequest, classified.Category, classified.Message)
		return
	}

	respondError(c, http.StatusInternalServerError, errors.GetCategory(err), "generation failed unexpectedly")
}

// handleHealth is the liveness probe
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "resumeforge-exportd",
	})
}

// handleHealthReport exposes the monitor's diagnostics
func (s *Server) handleHealthReport(c *gin.Context) {
	c.JSON(http.StatusOK, s.health.Report())
}

// handleCapabilities returns the cached capability snapshot
func (s *Server) handleCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, s.capabilities.Detect())
}

// handleCapabilityRefresh forces re-detection
func (s *Server) handleCapabilityRefresh(c *gin.Context) {
	s.capabilities.Invalidate()
	c.JSON(http.StatusOK, s.capabilities.Detect())
}

// handleCacheStats reports per-partition cache occupancy
func (s *Server) handleCacheStats(c *gin.Context) {
	stats := s.cache.Stats()
	c.JSON(http.StatusOK, gin.H{
		"partitions": stats,
		"total":      stats.TotalEntries(),
	})
}

// handleCacheClear empties every cache partition
func (s *Server) handleCacheClear(c *gin.Context) {
	s.cache.ClearAll()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
