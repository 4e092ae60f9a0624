package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/ingest"
	"github.com/andresuchdata/inventory-analyzer/internal/service"
)

// writeError maps service and analysis errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var (
		missing *analysis.MissingColumnsError
		noRows  *analysis.NoValidRowsError
		invalid *analysis.InvalidFilterError
	)

	switch {
	case errors.As(err, &missing):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":   err.Error(),
			"type":    "missing_required_columns",
			"missing": missing.Missing,
			"headers": missing.Headers,
		})
	case errors.As(err, &noRows):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":      err.Error(),
			"type":       "no_valid_rows",
			"total_rows": noRows.TotalRows,
		})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
			"type":  "invalid_filter",
			"key":   invalid.Key,
			"value": invalid.Value,
		})
	case errors.Is(err, ingest.ErrUnsupportedFormat),
		errors.Is(err, ingest.ErrEmptyTable),
		errors.Is(err, service.ErrEmptyUpload):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "type": "invalid_file"})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "type": "session_not_found"})
	case errors.Is(err, service.ErrUploadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error(), "type": "upload_too_large"})
	default:
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "type": "internal"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "type": "bad_request"})
}
