package analyses

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bjj-backend/internal/shared/server/respond"
)

const defaultMaxUploadBytes = 200 << 20

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc            *Service
	MaxUploadBytes int64
	limiter        *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		Svc:            svc,
		MaxUploadBytes: maxUploadBytes,
		limiter:        newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.startAnalysis)
	rg.GET("/status/:analysis_id", h.getStatus)
	rg.POST("/analyze-complete", h.analyzeComplete)
}

type analyzeRequest struct {
	VideoFileName       string `form:"video_file_name" json:"video_file_name"`
	UserDescription     string `form:"user_description" json:"user_description"`
	OpponentDescription string `form:"opponent_description" json:"opponent_description"`
	ActivityType        string `form:"activity_type" json:"activity_type"`
}

// bindAnalyzeRequest accepts the analyze parameters as query params, a JSON
// body, or form fields, in that order of precedence.
func bindAnalyzeRequest(c *gin.Context) analyzeRequest {
	req := analyzeRequest{
		VideoFileName:       c.Query("video_file_name"),
		UserDescription:     c.Query("user_description"),
		OpponentDescription: c.Query("opponent_description"),
		ActivityType:        c.Query("activity_type"),
	}
	if req.VideoFileName != "" {
		return req
	}
	if strings.Contains(c.ContentType(), "json") {
		var body analyzeRequest
		if err := c.ShouldBindJSON(&body); err == nil {
			return body
		}
		return req
	}
	req.VideoFileName = c.PostForm("video_file_name")
	if req.UserDescription == "" {
		req.UserDescription = c.PostForm("user_description")
	}
	if req.OpponentDescription == "" {
		req.OpponentDescription = c.PostForm("opponent_description")
	}
	if req.ActivityType == "" {
		req.ActivityType = c.PostForm("activity_type")
	}
	return req
}

func (h *Handler) startAnalysis(c *gin.Context) {
	req := bindAnalyzeRequest(c)
	if strings.TrimSpace(req.VideoFileName) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "video_file_name is required", nil)
		return
	}
	if strings.TrimSpace(req.UserDescription) == "" || strings.TrimSpace(req.OpponentDescription) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "user_description and opponent_description are required", nil)
		return
	}

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	analysis, err := h.Svc.Create(ctx, req.VideoFileName, req.UserDescription, req.OpponentDescription, req.ActivityType)
	if err != nil {
		switch {
		case errors.Is(err, ErrVideoNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "video not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to start analysis", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{"analysis_id": analysis.ID})
}

func (h *Handler) getStatus(c *gin.Context) {
	analysisID := c.Param("analysis_id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	if !h.limiter.Allow(analysisID, c.ClientIP()) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "polling too fast", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "Not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	resp := gin.H{
		"analysis_id":   analysis.ID,
		"status":        analysis.Status,
		"progress":      analysis.Progress,
		"used_fallback": analysis.UsedFallback,
	}
	if analysis.Result != nil {
		resp["data"] = analysis.Result
	}
	respond.JSON(c, http.StatusOK, resp)
}

// analyzeComplete runs the pipeline synchronously. The dashboard accepts
// both "completed" and "completed_with_fallback" here, so pipeline failures
// still answer 200 with a well-formed result.
func (h *Handler) analyzeComplete(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}
	userDescription := c.PostForm("user_description")
	opponentDescription := c.PostForm("opponent_description")
	if strings.TrimSpace(userDescription) == "" || strings.TrimSpace(opponentDescription) == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "user_description and opponent_description are required", nil)
		return
	}
	activityType := c.DefaultPostForm("activity_type", DefaultActivityType)

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	outcome, err := h.Svc.Complete(ctx, fileHeader.Filename, file, userDescription, opponentDescription, activityType)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{
			"status":        "completed_with_fallback",
			"data":          outcome.Result,
			"error":         sanitizeError(err),
			"used_fallback": true,
		})
		return
	}

	respond.JSON(c, http.StatusOK, gin.H{
		"status":          "completed",
		"data":            outcome.Result,
		"processing_time": fmt.Sprintf("%.2fs", outcome.ProcessingSeconds),
		"used_fallback":   outcome.UsedFallback,
		"method":          "smart_weighted_frames",
	})
}
