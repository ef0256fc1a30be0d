package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// MetricsOverviewResponse summarizes interception counters.
type MetricsOverviewResponse struct {
	TotalRequests int64    `json:"total_requests"`
	FailedCount   int64    `json:"failed_count"`
	WriteFailures int64    `json:"write_failures"`
	HitRate       float64  `json:"hit_rate"`
	Strategies    []string `json:"strategies"`
}

// GetMetricsOverview returns the interception metrics overview
// GET /api/v1/metrics
func (s *APIV1Service) GetMetricsOverview(c echo.Context) error {
	snap := s.Metrics.Snapshot()
	return c.JSON(http.StatusOK, MetricsOverviewResponse{
		TotalRequests: snap.RequestTotal,
		FailedCount:   snap.RequestFailed,
		WriteFailures: snap.WriteFailed,
		HitRate:       snap.HitRate(),
		Strategies:    snap.StrategyNames(),
	})
}
