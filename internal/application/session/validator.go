// Package session decides whether a supplied credential pair may be
// used, consulting the vault before the portal so repeat contacts
// with unchanged credentials never cost a portal round trip.
package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unisight/backend/internal/domain/portal"
	"github.com/unisight/backend/internal/infrastructure/vault"
)

// Validator validates credential pairs against the vault and, when
// necessary, the portal itself.
type Validator struct {
	vault  *vault.Vault
	auth   portal.Authenticator
	logger *zap.Logger
}

// NewValidator creates a credential validator.
func NewValidator(v *vault.Vault, auth portal.Authenticator, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{
		vault:  v,
		auth:   auth,
		logger: logger,
	}
}

// Validate runs the enrollment-aware validation flow and returns the
// password to use for subsequent portal calls.
//
// firstContact forces a live portal check and (on success) stores the
// pair. On repeat contacts a stored pair matching the supplied one is
// accepted without touching the portal; a mismatch triggers a live
// re-check and, on success, replaces the stored pair.
//
// Errors are portal.ErrNotAllowed, portal.ErrInvalidCredentials, or a
// wrapped portal.ErrAuthCheckFailed when the portal could not be
// consulted at all.
func (s *Validator) Validate(ctx context.Context, username, password string, firstContact bool) (string, error) {
	if !s.vault.IsAllowed(ctx, username) {
		s.logger.Warn("validation attempt by user outside allow list",
			zap.String("username", username))
		return "", portal.ErrNotAllowed
	}

	if !firstContact {
		if stored, ok := s.vault.Fetch(ctx, username); ok {
			if stored == password {
				return password, nil
			}
			s.logger.Info("supplied credentials differ from stored, re-verifying",
				zap.String("username", username))
		}
	}

	if err := s.verify(ctx, username, password); err != nil {
		return "", err
	}

	if !s.vault.Store(ctx, username, password) {
		// Verified but not persisted. The caller can proceed with the
		// supplied pair; the next contact will verify again.
		s.logger.Warn("verified credentials could not be stored",
			zap.String("username", username))
	}
	return password, nil
}

// ValidateReadOnly accepts a credential pair without ever writing to
// the vault. Intended for query endpoints that must not enroll users.
// A stored pair is authoritative: a mismatch is rejected without a
// portal round trip. A user with no stored pair gets a single
// portal check valid for this call only.
func (s *Validator) ValidateReadOnly(ctx context.Context, username, password string) (string, error) {
	if !s.vault.IsAllowed(ctx, username) {
		return "", portal.ErrNotAllowed
	}

	if stored, ok := s.vault.Fetch(ctx, username); ok {
		if stored == password {
			return password, nil
		}
		s.logger.Info("supplied credentials differ from stored, rejecting",
			zap.String("username", username))
		return "", portal.ErrInvalidCredentials
	}

	if err := s.verify(ctx, username, password); err != nil {
		return "", err
	}
	return password, nil
}

func (s *Validator) verify(ctx context.Context, username, password string) error {
	ok, err := s.auth.Authenticate(ctx, username, password)
	if err != nil {
		s.logger.Error("credential check could not be completed",
			zap.String("username", username),
			zap.Error(err))
		return fmt.Errorf("%w: %v", portal.ErrAuthCheckFailed, err)
	}
	if !ok {
		s.logger.Info("portal rejected credentials", zap.String("username", username))
		return portal.ErrInvalidCredentials
	}
	return nil
}
