// Package settings is the client for the account settings endpoints.
// Profile updates normally go through auth.Engine.UpdateProfile so the held
// session stays in sync; this package covers the read side and account
// deletion.
package settings

import (
	"context"
	"errors"

	"github.com/exman-app/exman-go/api"
	"github.com/exman-app/exman-go/sessions"
)

// Settings is the server-held account configuration.
type Settings struct {
	User          sessions.Session `json:"user"`
	Currency      string           `json:"currency"`
	WeekStartsOn  string           `json:"week_starts_on"`
	Notifications bool             `json:"notifications"`
}

// Service talks to the settings endpoints.
type Service struct {
	api *api.Client
}

// NewService creates a settings client over the pipeline.
func NewService(apiClient *api.Client) (*Service, error) {
	if apiClient == nil {
		return nil, errors.New("[settings.NewService] api client is required")
	}
	return &Service{api: apiClient}, nil
}

// Get fetches the current account settings.
func (s *Service) Get(ctx context.Context) (*Settings, error) {
	var settings Settings
	if err := s.api.Get(ctx, "/settings", &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// DeleteAccount permanently deletes the account server-side. The caller
// should log out afterwards; the backend invalidates the session.
func (s *Service) DeleteAccount(ctx context.Context) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := s.api.Post(ctx, "/settings/delete", nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		if resp.Message != "" {
			return errors.New(resp.Message)
		}
		return errors.New("failed to delete account")
	}
	return nil
}
