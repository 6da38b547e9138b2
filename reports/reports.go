// Package reports is the client for the aggregated report endpoints,
// including the PDF download.
package reports

import (
	"context"
	"errors"
	"fmt"

	"github.com/exman-app/exman-go/api"
)

// Period selects a report window.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Summary is a server-computed report over a period.
type Summary struct {
	Period     string             `json:"period"`
	TotalHours float64            `json:"total_hours"`
	TotalSpent float64            `json:"total_spent"`
	ByCategory map[string]float64 `json:"by_category"`
}

// Service talks to the report endpoints.
type Service struct {
	api *api.Client
}

// NewService creates a reports client over the pipeline.
func NewService(apiClient *api.Client) (*Service, error) {
	if apiClient == nil {
		return nil, errors.New("[reports.NewService] api client is required")
	}
	return &Service{api: apiClient}, nil
}

// Weekly returns the weekly summary.
func (s *Service) Weekly(ctx context.Context) (*Summary, error) {
	return s.fetch(ctx, PeriodWeekly)
}

// Monthly returns the monthly summary.
func (s *Service) Monthly(ctx context.Context) (*Summary, error) {
	return s.fetch(ctx, PeriodMonthly)
}

// DownloadPDF fetches the rendered PDF report for a period. The bytes are
// returned as-is; the server does the rendering.
func (s *Service) DownloadPDF(ctx context.Context, period Period) ([]byte, error) {
	return s.api.GetRaw(ctx, fmt.Sprintf("/reports/download/%s", period))
}

func (s *Service) fetch(ctx context.Context, period Period) (*Summary, error) {
	var summary Summary
	if err := s.api.Get(ctx, fmt.Sprintf("/reports/%s", period), &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
