package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventory-analyzer/internal/analysis"
	"github.com/andresuchdata/inventory-analyzer/internal/domain"
	"github.com/andresuchdata/inventory-analyzer/internal/service"
)

// uploadFields are the multipart fields accepted for the data file, newest first.
var uploadFields = []string{"file", "csvFile"}

type AnalysisHandler struct {
	service *service.AnalysisService
}

func NewAnalysisHandler(service *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{service: service}
}

// Upload processes a single spreadsheet and opens a session for it.
func (h *AnalysisHandler) Upload(c *gin.Context) {
	maxBytes := h.service.MaxUploadBytes()
	// allow room for the multipart envelope
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)

	header, err := uploadedFile(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, fmt.Errorf("%w: request body over %d bytes", service.ErrUploadTooLarge, tooLarge.Limit))
			return
		}
		badRequest(c, err.Error())
		return
	}
	if header.Size > maxBytes {
		writeError(c, fmt.Errorf("%w: %d bytes (max %d)", service.ErrUploadTooLarge, header.Size, maxBytes))
		return
	}

	f, err := header.Open()
	if err != nil {
		badRequest(c, "cannot open uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		badRequest(c, "cannot read uploaded file")
		return
	}

	result, err := h.service.Upload(c.Request.Context(), domain.UploadedFile{
		Filename: filepath.Base(header.Filename),
		Data:     data,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func uploadedFile(c *gin.Context) (*multipart.FileHeader, error) {
	var lastErr error
	for _, field := range uploadFields {
		header, err := c.FormFile(field)
		if err == nil {
			return header, nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		lastErr = err
	}
	if errors.Is(lastErr, http.ErrMissingFile) {
		return nil, errors.New("no file provided: use the \"file\" form field")
	}
	return nil, fmt.Errorf("invalid form data: %w", lastErr)
}

type resolveRequest struct {
	Headers []string `json:"headers" binding:"required"`
}

// ResolveColumns reports the role mapping for a header list.
func (h *AnalysisHandler) ResolveColumns(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body must be {\"headers\": [...]}")
		return
	}

	mapping, err := h.service.ResolveColumns(req.Headers)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"mapping": mapping})
}

func (h *AnalysisHandler) GetKPIs(c *gin.Context) {
	kpis, err := h.service.KPIs(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, kpis)
}

func (h *AnalysisHandler) GetReorders(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	rows, err := h.service.PriorityReorders(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}

func (h *AnalysisHandler) GetReorderPlan(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	plan, err := h.service.ReorderPlan(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": plan, "count": len(plan)})
}

func (h *AnalysisHandler) GetCategories(c *gin.Context) {
	stats, err := h.service.Categories(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": stats})
}

func (h *AnalysisHandler) GetMovers(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	movers, err := h.service.Movers(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movers)
}

// GetProducts filters by query parameters: category, status, abc_class and search.
func (h *AnalysisHandler) GetProducts(c *gin.Context) {
	raw := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}
	h.filter(c, raw)
}

// FilterProducts filters by a JSON object of the same keys.
func (h *AnalysisHandler) FilterProducts(c *gin.Context) {
	raw := make(map[string]string)
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&raw); err != nil {
			badRequest(c, "body must be a JSON object of string filters")
			return
		}
	}
	h.filter(c, raw)
}

func (h *AnalysisHandler) filter(c *gin.Context, raw map[string]string) {
	criteria, err := analysis.ParseFilterCriteria(raw)
	if err != nil {
		writeError(c, err)
		return
	}

	rows, err := h.service.Filter(c.Request.Context(), c.Param("id"), criteria)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows, "count": len(rows)})
}

func (h *AnalysisHandler) GetFilterOptions(c *gin.Context) {
	opts, err := h.service.FilterOptions(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (h *AnalysisHandler) GetInsights(c *gin.Context) {
	insights, err := h.service.Insights(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, insights)
}

func (h *AnalysisHandler) GetColumns(c *gin.Context) {
	info, err := h.service.ColumnsInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Export streams the filtered rows as a CSV attachment.
func (h *AnalysisHandler) Export(c *gin.Context) {
	raw := make(map[string]string)
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}
	criteria, err := analysis.ParseFilterCriteria(raw)
	if err != nil {
		writeError(c, err)
		return
	}

	var buf strings.Builder
	if _, err := h.service.Export(c.Request.Context(), c.Param("id"), criteria, &buf); err != nil {
		writeError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=inventory-%s.csv", c.Param("id")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(buf.String()))
}

func (h *AnalysisHandler) GetStats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := strings.TrimSpace(c.Query("limit"))
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		badRequest(c, "limit must be a non-negative integer")
		return 0, false
	}
	return limit, true
}
