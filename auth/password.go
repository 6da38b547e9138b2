package auth

import (
	"context"
	"errors"

	"github.com/exman-app/exman-go/identity"
)

// neutralResetMessage is returned whether or not the account exists, so the
// reset endpoint cannot be used to enumerate registered addresses.
const neutralResetMessage = "If this email exists, you will receive a password reset link."

// RequestPasswordReset dispatches a password-reset email through the
// federated provider or the legacy backend endpoint and returns the
// user-facing confirmation message.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e.configured {
		err := e.provider.SendPasswordReset(ctx, email)
		switch {
		case err == nil, errors.Is(err, identity.ErrUserNotFound):
			return neutralResetMessage, nil
		default:
			return "", e.normalizeIdentityError(err)
		}
	}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := e.api.Post(ctx, forgotPasswordPath, map[string]string{"email": email}, &resp); err != nil {
		return "", e.normalizeAPIError(err)
	}
	if !resp.Success {
		return "", errors.New(orDefault(resp.Message, "failed to send reset link"))
	}
	return orDefault(resp.Message, neutralResetMessage), nil
}

// ResetPassword completes the legacy emailed-token reset flow.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	body := map[string]string{"token": token, "new_password": newPassword}

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := e.api.Post(ctx, resetPasswordPath, body, &resp); err != nil {
		return e.normalizeAPIError(err)
	}
	if !resp.Success {
		return errors.New(orDefault(resp.Message, "password reset failed"))
	}
	return nil
}
