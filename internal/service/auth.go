package service

import (
	"context"
	"errors"

	"github.com/bayline/shop-sync-service/internal/config"
)

// ErrUnauthenticated rejects a handshake whose token cannot be validated.
// The connection fails closed: no partially authenticated state exists.
var ErrUnauthenticated = errors.New("unauthenticated principal")

// Principal is the already-authenticated identity handed to the core by the
// auth collaborator.
type Principal struct {
	ID   string
	Name string
}

// Auther is the external auth collaborator. The real platform supplies a
// session-backed implementation; the config-backed one below stands in for
// standalone and test deployments.
type Auther interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

type StaticTokenAuth struct {
	cfg *config.Config
}

func NewStaticTokenAuth(cfg *config.Config) *StaticTokenAuth {
	return &StaticTokenAuth{cfg: cfg}
}

func (a *StaticTokenAuth) Authenticate(_ context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	principalID, ok := a.cfg.CurrentAuth().Tokens[token]
	if !ok {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{ID: principalID}, nil
}
