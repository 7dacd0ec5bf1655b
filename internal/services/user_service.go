package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"welth/internal/core"
)

type UserService struct {
	store UserStore
}

func NewUserService(store UserStore) *UserService {
	return &UserService{store: store}
}

// CheckUser maps an authenticated identity to a stored user, provisioning
// one on first sight. It returns nil when there is no identity, no email to
// provision with, or the store fails; callers treat nil as unauthenticated.
func (s *UserService) CheckUser(ctx context.Context, id *core.Identity) *core.User {
	if id == nil || id.ExternalID == "" {
		return nil
	}

	u, err := s.store.GetUserByExternalID(ctx, id.ExternalID)
	if err == nil {
		return u
	}
	if !errors.Is(err, core.ErrNotFound) {
		slog.ErrorContext(ctx, "Failed to look up user", "external_id", id.ExternalID, "error", err)
		return nil
	}

	email := strings.TrimSpace(id.Email)
	if email == "" {
		return nil
	}
	u, err = s.store.GetUserByEmail(ctx, email)
	if err == nil {
		return u
	}
	if !errors.Is(err, core.ErrNotFound) {
		slog.ErrorContext(ctx, "Failed to look up user by email", "error", err)
		return nil
	}

	u, err = s.store.CreateUser(ctx, core.User{
		ExternalID: id.ExternalID,
		Email:      email,
		Name:       strings.TrimSpace(id.FirstName + " " + id.LastName),
		ImageURL:   id.ImageURL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "Failed to provision user", "external_id", id.ExternalID, "error", err)
		return nil
	}
	return u
}
