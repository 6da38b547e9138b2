// Package entries is the client for the work-hour and expense entry
// endpoints. It is plain CRUD glue over the request pipeline; all validation
// and persistence live server-side.
package entries

import (
	"context"
	"errors"
	"fmt"

	"github.com/exman-app/exman-go/api"
)

// Entry is a single tracked work or expense item.
type Entry struct {
	ID       int     `json:"id,omitempty"`
	Date     string  `json:"date"` // ISO date, e.g. "2026-08-31"
	Category string  `json:"category"`
	Hours    float64 `json:"hours,omitempty"`
	Amount   float64 `json:"amount,omitempty"`
	Note     string  `json:"note,omitempty"`
}

// Service talks to the entry endpoints.
type Service struct {
	api *api.Client
}

// NewService creates an entries client over the pipeline.
func NewService(apiClient *api.Client) (*Service, error) {
	if apiClient == nil {
		return nil, errors.New("[entries.NewService] api client is required")
	}
	return &Service{api: apiClient}, nil
}

// Add creates a new entry.
func (s *Service) Add(ctx context.Context, entry Entry) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := s.api.Post(ctx, "/entry/add", entry, &resp); err != nil {
		return err
	}
	if !resp.Success {
		if resp.Message != "" {
			return errors.New(resp.Message)
		}
		return errors.New("failed to add entry")
	}
	return nil
}

// List returns the current user's entries from the dashboard endpoint.
func (s *Service) List(ctx context.Context) ([]Entry, error) {
	var resp struct {
		Entries []Entry `json:"entries"`
	}
	if err := s.api.Get(ctx, "/dashboard", &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Delete removes an entry by ID.
func (s *Service) Delete(ctx context.Context, entryID int) error {
	return s.api.Post(ctx, fmt.Sprintf("/entry/delete/%d", entryID), nil, nil)
}
