package engine

import (
	"context"

	"techfixer/internal/domain"
	"techfixer/internal/engine/auth"
)

func (e Engine) ListRoles(ctx context.Context) ([]domain.Role, error) {
	return e.Repo.ListRoles(ctx)
}

func (e Engine) ListStates(ctx context.Context) ([]domain.State, error) {
	return e.Repo.ListStates(ctx)
}

func (e Engine) GetState(ctx context.Context, id domain.StateID) (domain.State, error) {
	s, err := e.Repo.GetState(ctx, id)
	if err != nil {
		return domain.State{}, notFound("state", int64(id), err)
	}
	return s, nil
}

// TokenIssuer returns the issuer configured for this engine.
func (e Engine) TokenIssuer() auth.Issuer {
	iss := auth.Issuer{Now: e.now}
	if e.Config != nil {
		iss.Secret = e.Config.Auth.JWTSecret
		iss.TTL = e.Config.Auth.TokenTTL
	}
	return iss
}
