package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/readinglog/internal/insights"
)

// InsightsController serves the reading dashboard aggregates.
type InsightsController struct {
	source InsightsSource
}

func NewInsightsController(source InsightsSource) *InsightsController {
	return &InsightsController{source: source}
}

type insightsResponse struct {
	*insights.Insights
	HasSessions           bool   `json:"has_sessions"`
	TotalDuration         string `json:"total_duration"`
	AverageTimePerSession string `json:"average_time_per_session"`
}

// Summary handles GET /api/insights
func (ic *InsightsController) Summary(c *gin.Context) {
	summary, err := ic.source.Summarize(c.Request.Context())
	if err != nil {
		respondAppError(c, err, "summarize sessions")
		return
	}
	c.JSON(http.StatusOK, insightsResponse{
		Insights:              summary,
		HasSessions:           summary.HasSessions(),
		TotalDuration:         insights.FormatDuration(summary.TotalDurationMs),
		AverageTimePerSession: insights.FormatDuration(int64(summary.AverageTimePerSessionMs)),
	})
}

// Daily handles GET /api/insights/daily
func (ic *InsightsController) Daily(c *gin.Context) {
	summary, err := ic.source.Summarize(c.Request.Context())
	if err != nil {
		respondAppError(c, err, "summarize sessions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": summary.Daily()})
}

// Completion handles GET /api/insights/completion
func (ic *InsightsController) Completion(c *gin.Context) {
	books, err := ic.source.PerBookCompletion(c.Request.Context())
	if err != nil {
		respondAppError(c, err, "book completion")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}

// Reading handles GET /api/insights/reading?limit=
func (ic *InsightsController) Reading(c *gin.Context) {
	limit, ok := parseLimitQuery(c, "limit", insights.DefaultReadingLimit)
	if !ok {
		return
	}
	books, err := ic.source.CurrentlyReading(c.Request.Context(), limit)
	if err != nil {
		respondAppError(c, err, "currently reading")
		return
	}
	c.JSON(http.StatusOK, gin.H{"books": books})
}
